// Package sdk is the Go client for the RegulateAI compliance logging
// platform. Interactions are buffered in memory and shipped to the ingest
// API in batches, either when the buffer fills or on a timer.
package sdk

import "time"

// Version identifies the SDK build; stamped on every entry.
const Version = "regulateai-go/2.0.0"

// Entry is a single AI interaction recorded for compliance.
// Prompt, Output, and Model are required; everything else is optional.
type Entry struct {
	Prompt         string         `json:"prompt"`
	Output         string         `json:"output"`
	Model          string         `json:"model"`
	ModelVersion   string         `json:"model_version,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	LatencyMs      *int           `json:"latency_ms,omitempty"`
	TokensInput    *int           `json:"tokens_input,omitempty"`
	TokensOutput   *int           `json:"tokens_output,omitempty"`
	HumanReviewed  bool           `json:"human_reviewed,omitempty"`
	Framework      string         `json:"framework,omitempty"`
	Status         string         `json:"status,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	UserIdentifier string         `json:"user_identifier,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Timestamp      time.Time      `json:"timestamp,omitempty"`
	SDKVersion     string         `json:"sdk_version,omitempty"`
}

// Entry status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// setMeta records a key in the entry's metadata, allocating the map when
// needed.
func (e *Entry) setMeta(key string, value any) {
	if e.Metadata == nil {
		e.Metadata = make(map[string]any)
	}
	e.Metadata[key] = value
}

// Ack is the server's acknowledgment for one ingested batch.
type Ack struct {
	Accepted  int          `json:"accepted"`
	Rejected  int          `json:"rejected"`
	Errors    []EntryError `json:"errors"`
	ProjectID string       `json:"project_id"`
}

// EntryError reports a rejected entry by its index within the batch.
type EntryError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}
