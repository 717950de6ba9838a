package models

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// LogStatus indicates whether the logged AI call succeeded.
type LogStatus string

const (
	LogStatusSuccess LogStatus = "success"
	LogStatusError   LogStatus = "error"
)

// LogEntry represents a single AI interaction recorded for compliance.
type LogEntry struct {
	ID             string         `json:"id,omitempty"`
	ProjectID      string         `json:"project_id,omitempty"`
	Prompt         string         `json:"prompt"`
	Output         string         `json:"output"`
	Model          string         `json:"model"`
	ModelVersion   string         `json:"model_version,omitempty"`
	Confidence     *float64       `json:"confidence,omitempty"`
	LatencyMs      *int           `json:"latency_ms,omitempty"`
	TokensInput    *int           `json:"tokens_input,omitempty"`
	TokensOutput   *int           `json:"tokens_output,omitempty"`
	HumanReviewed  bool           `json:"human_reviewed"`
	Framework      string         `json:"framework,omitempty"`
	Status         LogStatus      `json:"status,omitempty"`
	ErrorMessage   string         `json:"error_message,omitempty"`
	SessionID      string         `json:"session_id,omitempty"`
	UserIdentifier string         `json:"user_identifier,omitempty"`
	Metadata       map[string]any `json:"metadata,omitempty"`
	Timestamp      time.Time      `json:"timestamp,omitempty"`
	SDKVersion     string         `json:"sdk_version,omitempty"`
	CreatedAt      time.Time      `json:"created_at,omitempty"`
}

// Validation errors for log entries.
var (
	ErrLogPromptRequired = errors.New("prompt is required")
	ErrLogOutputRequired = errors.New("output is required")
	ErrLogModelRequired  = errors.New("model is required")
)

// Validate checks the entry's required fields and value ranges.
func (e *LogEntry) Validate() error {
	if strings.TrimSpace(e.Prompt) == "" {
		return ErrLogPromptRequired
	}
	if strings.TrimSpace(e.Output) == "" {
		return ErrLogOutputRequired
	}
	if strings.TrimSpace(e.Model) == "" {
		return ErrLogModelRequired
	}
	if e.Confidence != nil && (*e.Confidence < 0 || *e.Confidence > 1) {
		return fmt.Errorf("confidence must be between 0 and 1, got %v", *e.Confidence)
	}
	switch e.Status {
	case "", LogStatusSuccess, LogStatusError:
	default:
		return fmt.Errorf("invalid status %q", e.Status)
	}
	return nil
}

// LogFilter narrows log list queries.
type LogFilter struct {
	Models    []string  // match any of these model names
	Status    LogStatus // empty means all
	SessionID string
	Since     time.Time
	Until     time.Time
	Limit     int
	Offset    int
}

// LogCounts aggregates per-project log statistics used for scoring.
type LogCounts struct {
	Total         int `json:"total"`
	Errors        int `json:"errors"`
	HumanReviewed int `json:"human_reviewed"`
	WithLatency   int `json:"with_latency"`
	DistinctDays  int `json:"distinct_days"`
}
