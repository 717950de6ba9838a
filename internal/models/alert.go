package models

import "time"

// AlertType identifies the condition that raised an alert.
type AlertType string

const (
	// AlertModelChange is raised when ingested logs reference a model or
	// version different from the project's most recent stored log.
	AlertModelChange AlertType = "model_change"
)

// AlertSeverity indicates how urgently an alert needs attention.
type AlertSeverity string

const (
	SeverityInfo     AlertSeverity = "info"
	SeverityWarning  AlertSeverity = "warning"
	SeverityCritical AlertSeverity = "critical"
)

// AlertStatus is the lifecycle state of an alert.
type AlertStatus string

const (
	AlertOpen     AlertStatus = "open"
	AlertResolved AlertStatus = "resolved"
)

// Alert records a compliance-relevant event detected during ingestion.
type Alert struct {
	ID         string         `json:"id"`
	ProjectID  string         `json:"project_id"`
	Type       AlertType      `json:"type"`
	Severity   AlertSeverity  `json:"severity"`
	Status     AlertStatus    `json:"status"`
	Message    string         `json:"message"`
	Detail     map[string]any `json:"detail,omitempty"`
	CreatedAt  time.Time      `json:"created_at"`
	ResolvedAt *time.Time     `json:"resolved_at,omitempty"`
	ResolvedBy string         `json:"resolved_by,omitempty"`
}
