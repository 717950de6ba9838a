package sdk

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	// DefaultBaseURL is the hosted ingest endpoint. Override for
	// self-hosted deployments.
	DefaultBaseURL = "https://api.regulateai.io"

	defaultTimeout       = 10 * time.Second
	defaultBufferSize    = 50
	defaultFlushInterval = 5 * time.Second
)

// Config configures a Client.
type Config struct {
	// APIKey is the project ingestion key. Required.
	APIKey string
	// BaseURL overrides the API endpoint. Defaults to DefaultBaseURL.
	BaseURL string
	// Timeout is the per-request HTTP timeout. Defaults to 10s.
	Timeout time.Duration
	// BufferSize is the number of entries buffered before a batch is
	// sent. Defaults to 50 and is capped at the server's per-request
	// limit of 100.
	BufferSize int
	// FlushInterval is the period of the background flush. Zero disables
	// the timer. Defaults to 5s; use a negative value to disable.
	FlushInterval time.Duration
	// MaxRetries bounds transport retries on 5xx and network errors.
	// Defaults to 3.
	MaxRetries int
	// OnError receives delivery failures. Batches are dropped after the
	// transport gives up; they are never re-queued. Defaults to a slog
	// warning.
	OnError func(error)
}

// Client buffers compliance log entries and ships them to the platform.
// All methods are safe for concurrent use.
type Client struct {
	transport *Transport
	buffer    *Buffer
	onError   func(error)

	// last model seen by Log, for client-side change detection
	mu          sync.Mutex
	hasPrev     bool
	prevModel   string
	prevVersion string
}

// New creates a Client. The API key is required.
func New(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = defaultBufferSize
	}
	if bufferSize > MaxBatchEntries {
		bufferSize = MaxBatchEntries
	}
	flushInterval := cfg.FlushInterval
	if flushInterval == 0 {
		flushInterval = defaultFlushInterval
	}
	if flushInterval < 0 {
		flushInterval = 0
	}
	onError := cfg.OnError
	if onError == nil {
		onError = func(err error) {
			slog.Warn("regulateai delivery failed", "error", err)
		}
	}

	c := &Client{
		transport: NewTransport(baseURL, cfg.APIKey, cfg.Timeout, cfg.MaxRetries),
		onError:   onError,
	}
	c.buffer = NewBuffer(bufferSize, flushInterval, c.deliver)
	return c, nil
}

// Log validates and buffers one entry. The timestamp and SDK version are
// stamped here. When the model or model version differs from the previous
// Log call on this client, the entry's metadata is annotated with
// _model_changed, _previous_model, and _previous_model_version.
func (c *Client) Log(entry *Entry) error {
	if entry == nil || strings.TrimSpace(entry.Prompt) == "" {
		return &ValidationError{Field: "prompt"}
	}
	if strings.TrimSpace(entry.Output) == "" {
		return &ValidationError{Field: "output"}
	}
	if strings.TrimSpace(entry.Model) == "" {
		return &ValidationError{Field: "model"}
	}

	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	entry.SDKVersion = Version

	c.noteModelChange(entry)
	c.buffer.Add(entry)
	return nil
}

// noteModelChange compares the entry against the previous Log call and
// annotates the entry when the model or version changed.
func (c *Client) noteModelChange(entry *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.hasPrev && (entry.Model != c.prevModel || entry.ModelVersion != c.prevVersion) {
		entry.setMeta("_model_changed", true)
		entry.setMeta("_previous_model", c.prevModel)
		entry.setMeta("_previous_model_version", c.prevVersion)
	}

	c.hasPrev = true
	c.prevModel = entry.Model
	c.prevVersion = entry.ModelVersion
}

// WrapOptions configures a Wrap call.
type WrapOptions struct {
	// Prompt is the prompt sent to the model, recorded on the entry.
	Prompt string
	// Model is required; it is overridden when the result carries its own
	// model identifier.
	Model string
	// ModelVersion is optional.
	ModelVersion string
	// Framework is optional and inferred from the result shape when empty.
	Framework string
	// SessionID is optional.
	SessionID string
}

// Wrap measures the wall-clock latency of fn, extracts the interaction
// from its result, and logs exactly one entry. The result and error of fn
// are returned unchanged; logging failures never surface. When the result
// shape is not recognized, a fallback entry with _extraction_failed
// metadata is logged instead.
func (c *Client) Wrap(ctx context.Context, opts WrapOptions, fn func(ctx context.Context) (any, error)) (any, error) {
	start := time.Now()
	result, err := fn(ctx)
	latency := int(time.Since(start).Milliseconds())

	entry := &Entry{
		Prompt:       opts.Prompt,
		Model:        opts.Model,
		ModelVersion: opts.ModelVersion,
		Framework:    opts.Framework,
		SessionID:    opts.SessionID,
		LatencyMs:    &latency,
		Status:       StatusSuccess,
	}
	if entry.Prompt == "" {
		entry.Prompt = "(not captured)"
	}

	if err != nil {
		entry.Status = StatusError
		entry.ErrorMessage = err.Error()
		entry.Output = "(call failed)"
	} else {
		ext, ok := extract(result)
		if ok {
			entry.Output = ext.Output
			if ext.Model != "" {
				entry.Model = ext.Model
			}
			if entry.Framework == "" {
				entry.Framework = ext.Framework
			}
			entry.TokensInput = ext.TokensInput
			entry.TokensOutput = ext.TokensOutput
		} else {
			entry.Output = "(extraction failed)"
			entry.setMeta("_extraction_failed", true)
		}
	}

	if logErr := c.Log(entry); logErr != nil {
		c.onError(logErr)
	}

	return result, err
}

// Flush drains the buffer and delivers the batch, blocking until the
// transport finishes. Delivery failures are reported to OnError, never
// returned.
func (c *Client) Flush(ctx context.Context) {
	if batch := c.buffer.Drain(); len(batch) > 0 {
		c.send(ctx, batch)
	}
}

// Close stops the background flush and delivers any remaining entries.
func (c *Client) Close(ctx context.Context) {
	c.buffer.Stop()
	c.Flush(ctx)
}

// deliver is the buffer's flush function.
func (c *Client) deliver(batch []*Entry) {
	c.send(context.Background(), batch)
}

// send pushes one batch through the transport. Failed batches are dropped
// after the transport's retries; the error goes to OnError.
func (c *Client) send(ctx context.Context, batch []*Entry) {
	if _, err := c.transport.Send(ctx, batch); err != nil {
		c.onError(err)
	}
}
