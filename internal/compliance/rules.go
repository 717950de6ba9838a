// Package compliance computes project compliance scores and generates
// compliance documents from logged AI interactions.
package compliance

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Rules defines the weighted checks that make up a compliance score.
// Weights are relative; they are normalized at scoring time.
type Rules struct {
	// Weights per check, keyed by check name.
	Weights map[string]float64 `yaml:"weights"`
	// MinLogsForCoverage is the entry count below which logging coverage is
	// considered incomplete.
	MinLogsForCoverage int `yaml:"min_logs_for_coverage"`
	// TargetReviewRate is the human review rate treated as full marks.
	TargetReviewRate float64 `yaml:"target_review_rate"`
	// MaxErrorRate is the error rate above which the error check scores zero.
	MaxErrorRate float64 `yaml:"max_error_rate"`
}

// Check names recognised in the weights map.
const (
	CheckLoggingCoverage = "logging_coverage"
	CheckHumanReview     = "human_review"
	CheckErrorRate       = "error_rate"
	CheckDocumentation   = "documentation"
	CheckAlertHygiene    = "alert_hygiene"
)

// DefaultRules returns the built-in scoring rules.
func DefaultRules() *Rules {
	return &Rules{
		Weights: map[string]float64{
			CheckLoggingCoverage: 0.30,
			CheckHumanReview:     0.20,
			CheckErrorRate:       0.20,
			CheckDocumentation:   0.15,
			CheckAlertHygiene:    0.15,
		},
		MinLogsForCoverage: 100,
		TargetReviewRate:   0.10,
		MaxErrorRate:       0.05,
	}
}

// LoadRules reads scoring rules from a YAML file. Missing fields fall back
// to the defaults.
func LoadRules(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading rules file: %w", err)
	}

	rules := DefaultRules()
	if err := yaml.Unmarshal(data, rules); err != nil {
		return nil, fmt.Errorf("parsing rules file: %w", err)
	}

	if err := rules.Validate(); err != nil {
		return nil, err
	}

	return rules, nil
}

// Validate checks the rules for consistency.
func (r *Rules) Validate() error {
	if len(r.Weights) == 0 {
		return fmt.Errorf("rules must define at least one weight")
	}
	var total float64
	for name, w := range r.Weights {
		if w < 0 {
			return fmt.Errorf("weight for %q must not be negative", name)
		}
		total += w
	}
	if total == 0 {
		return fmt.Errorf("rule weights must not all be zero")
	}
	if r.TargetReviewRate <= 0 || r.TargetReviewRate > 1 {
		return fmt.Errorf("target_review_rate must be in (0, 1]")
	}
	if r.MaxErrorRate <= 0 || r.MaxErrorRate > 1 {
		return fmt.Errorf("max_error_rate must be in (0, 1]")
	}
	return nil
}
