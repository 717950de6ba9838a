package sdk

import (
	"errors"
	"fmt"
)

// ErrMissingAPIKey is returned by New when no API key is configured.
var ErrMissingAPIKey = errors.New("sdk: api key is required")

// ErrBatchTooLarge is returned when a batch exceeds the per-request limit.
var ErrBatchTooLarge = errors.New("sdk: batch exceeds maximum request size")

// ValidationError reports a locally rejected entry. These entries are never
// buffered or sent.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("sdk: %s is required and must be non-empty", e.Field)
}

// APIError is returned when the server rejects a request with a
// non-retryable status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("sdk: server returned %d: %s", e.StatusCode, e.Message)
}

// AuthError indicates the API key was rejected (HTTP 401). Never retried.
type AuthError struct {
	Message string
}

func (e *AuthError) Error() string {
	return "sdk: authentication failed: " + e.Message
}

// RateLimitError indicates the server throttled the request (HTTP 429).
// The transport does not retry; the caller decides when to resend.
type RateLimitError struct {
	Message string
}

func (e *RateLimitError) Error() string {
	return "sdk: rate limited: " + e.Message
}

// TransportError wraps a network-level failure after retries are exhausted.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return "sdk: transport failed: " + e.Err.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Err
}
