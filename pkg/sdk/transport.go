package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const (
	// MaxBatchEntries is the server's per-request entry ceiling. The
	// transport rejects larger batches locally instead of chunking.
	MaxBatchEntries = 100

	ingestPath        = "/ingest/logs"
	defaultMaxRetries = 3
)

// Transport ships batches to the ingest API. Network failures and 5xx
// responses are retried with exponential backoff (1s, 2s, 4s, ...);
// 400, 401, and 429 are returned immediately.
type Transport struct {
	client     *http.Client
	baseURL    string
	apiKey     string
	maxRetries int

	// sleep is replaceable in tests.
	sleep func(time.Duration)
}

// NewTransport creates a transport for the given base URL and API key.
func NewTransport(baseURL, apiKey string, timeout time.Duration, maxRetries int) *Transport {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	if maxRetries < 0 {
		maxRetries = defaultMaxRetries
	}
	return &Transport{
		client:     &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		maxRetries: maxRetries,
		sleep:      time.Sleep,
	}
}

// batchEnvelope is the wire format for one ingest request.
type batchEnvelope struct {
	Logs []*Entry `json:"logs"`
}

// Send POSTs the batch and returns the server's acknowledgment.
func (t *Transport) Send(ctx context.Context, entries []*Entry) (*Ack, error) {
	if len(entries) == 0 {
		return &Ack{}, nil
	}
	if len(entries) > MaxBatchEntries {
		return nil, fmt.Errorf("%w: %d entries, maximum is %d", ErrBatchTooLarge, len(entries), MaxBatchEntries)
	}

	body, err := json.Marshal(batchEnvelope{Logs: entries})
	if err != nil {
		return nil, fmt.Errorf("sdk: marshal batch: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= t.maxRetries; attempt++ {
		if attempt > 0 {
			t.sleep(time.Duration(1<<(attempt-1)) * time.Second)
		}
		if err := ctx.Err(); err != nil {
			return nil, &TransportError{Err: err}
		}

		ack, retry, err := t.post(ctx, body)
		if err == nil {
			return ack, nil
		}
		if !retry {
			return nil, err
		}
		lastErr = err
	}

	return nil, lastErr
}

// post performs a single attempt. The second return value reports whether
// the failure is retryable.
func (t *Transport) post(ctx context.Context, body []byte) (*Ack, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+ingestPath, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("sdk: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", t.apiKey)
	req.Header.Set("User-Agent", Version)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, true, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, &TransportError{Err: err}
	}

	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		var ack Ack
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &ack); err != nil {
				return nil, false, fmt.Errorf("sdk: decode ack: %w", err)
			}
		}
		return &ack, false, nil
	case resp.StatusCode == http.StatusUnauthorized:
		return nil, false, &AuthError{Message: serverMessage(raw)}
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, false, &RateLimitError{Message: serverMessage(raw)}
	case resp.StatusCode >= 500:
		return nil, true, &APIError{StatusCode: resp.StatusCode, Message: serverMessage(raw)}
	default:
		// 400 and other client errors carry the server's message and are
		// never retried.
		return nil, false, &APIError{StatusCode: resp.StatusCode, Message: serverMessage(raw)}
	}
}

// serverMessage extracts the error message from a structured error body,
// falling back to the raw body.
func serverMessage(raw []byte) string {
	var body struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(raw, &body); err == nil {
		if body.Message != "" {
			return body.Message
		}
		if body.Error != "" {
			return body.Error
		}
	}
	return strings.TrimSpace(string(raw))
}
