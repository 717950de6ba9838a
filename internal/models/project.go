package models

import (
	"errors"
	"strings"
	"time"
)

// RiskCategory classifies an AI system under the EU AI Act risk tiers.
type RiskCategory string

const (
	RiskMinimal      RiskCategory = "minimal"
	RiskLimited      RiskCategory = "limited"
	RiskHigh         RiskCategory = "high"
	RiskUnacceptable RiskCategory = "unacceptable"
)

// Project represents a single AI system tracked for compliance.
type Project struct {
	ID           string       `json:"id"`
	OrgID        string       `json:"org_id"`
	Name         string       `json:"name"`
	Description  string       `json:"description,omitempty"`
	RiskCategory RiskCategory `json:"risk_category"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

// Validation errors for projects.
var (
	ErrProjectNameRequired = errors.New("project name is required")
	ErrProjectNameTooLong  = errors.New("project name must be 63 characters or less")
	ErrProjectOrgRequired  = errors.New("project organization is required")
	ErrInvalidRiskCategory = errors.New("invalid risk category")
)

// Validate validates the project fields.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return ErrProjectNameRequired
	}
	if len(p.Name) > 63 {
		return ErrProjectNameTooLong
	}
	if p.OrgID == "" {
		return ErrProjectOrgRequired
	}
	switch p.RiskCategory {
	case RiskMinimal, RiskLimited, RiskHigh, RiskUnacceptable:
		return nil
	case "":
		p.RiskCategory = RiskMinimal
		return nil
	default:
		return ErrInvalidRiskCategory
	}
}

// APIKey represents a project-scoped ingestion credential.
// Only the SHA-256 hash of the raw key is stored.
type APIKey struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Name       string     `json:"name"`
	KeyHash    string     `json:"-"`
	Prefix     string     `json:"prefix"` // first characters of the raw key, for display
	CreatedAt  time.Time  `json:"created_at"`
	LastUsedAt *time.Time `json:"last_used_at,omitempty"`
	RevokedAt  *time.Time `json:"revoked_at,omitempty"`
}

// Revoked reports whether the key has been revoked.
func (k *APIKey) Revoked() bool {
	return k.RevokedAt != nil
}
