package compliance

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// Score is a weighted compliance score for a project, in [0, 100].
type Score struct {
	ProjectID  string             `json:"project_id"`
	Score      float64            `json:"score"`
	Breakdown  map[string]float64 `json:"breakdown"` // per-check score in [0, 1]
	Window     string             `json:"window"`
	ComputedAt time.Time          `json:"computed_at"`
}

// Scorer computes compliance scores from stored logs, alerts, and documents.
type Scorer struct {
	store  store.Store
	rules  *Rules
	window time.Duration
	logger *slog.Logger
}

// NewScorer creates a scorer. Nil rules selects the defaults.
func NewScorer(st store.Store, rules *Rules, window time.Duration, logger *slog.Logger) *Scorer {
	if rules == nil {
		rules = DefaultRules()
	}
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Scorer{
		store:  st,
		rules:  rules,
		window: window,
		logger: logger,
	}
}

// ProjectScore computes the compliance score for a single project.
func (s *Scorer) ProjectScore(ctx context.Context, projectID string) (*Score, error) {
	since := time.Now().UTC().Add(-s.window)

	counts, err := s.store.Logs().CountsSince(ctx, projectID, since)
	if err != nil {
		return nil, fmt.Errorf("aggregating logs: %w", err)
	}

	openAlerts, err := s.store.Alerts().CountOpen(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("counting open alerts: %w", err)
	}

	docs, err := s.store.Documents().List(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}

	breakdown := map[string]float64{
		CheckLoggingCoverage: s.loggingCoverage(counts),
		CheckHumanReview:     s.humanReview(counts),
		CheckErrorRate:       s.errorRate(counts),
		CheckDocumentation:   s.documentation(docs),
		CheckAlertHygiene:    s.alertHygiene(openAlerts),
	}

	var total, weightSum float64
	for check, weight := range s.rules.Weights {
		val, ok := breakdown[check]
		if !ok {
			s.logger.Warn("unknown check in scoring rules", "check", check)
			continue
		}
		total += val * weight
		weightSum += weight
	}
	if weightSum == 0 {
		return nil, errors.New("scoring rules have no usable weights")
	}

	return &Score{
		ProjectID:  projectID,
		Score:      math.Round(total/weightSum*1000) / 10, // one decimal, 0-100
		Breakdown:  breakdown,
		Window:     s.window.String(),
		ComputedAt: time.Now().UTC(),
	}, nil
}

// loggingCoverage scores how consistently the project logs interactions.
func (s *Scorer) loggingCoverage(counts *models.LogCounts) float64 {
	if counts.Total == 0 {
		return 0
	}
	volume := math.Min(1, float64(counts.Total)/float64(s.rules.MinLogsForCoverage))
	// Distinct active days cap at 30 within the default window.
	regularity := math.Min(1, float64(counts.DistinctDays)/30.0)
	return 0.7*volume + 0.3*regularity
}

// humanReview scores the fraction of entries marked human reviewed against
// the configured target rate.
func (s *Scorer) humanReview(counts *models.LogCounts) float64 {
	if counts.Total == 0 {
		return 0
	}
	rate := float64(counts.HumanReviewed) / float64(counts.Total)
	return math.Min(1, rate/s.rules.TargetReviewRate)
}

// errorRate scores inversely to the fraction of error-status entries.
func (s *Scorer) errorRate(counts *models.LogCounts) float64 {
	if counts.Total == 0 {
		return 1
	}
	rate := float64(counts.Errors) / float64(counts.Total)
	if rate >= s.rules.MaxErrorRate {
		return 0
	}
	return 1 - rate/s.rules.MaxErrorRate
}

// documentation scores the presence of ready compliance documents.
func (s *Scorer) documentation(docs []*models.Document) float64 {
	var hasModelCard, hasReport bool
	for _, d := range docs {
		if d.Status != models.DocumentReady {
			continue
		}
		switch d.Type {
		case models.DocumentModelCard:
			hasModelCard = true
		case models.DocumentTransparencyReport:
			hasReport = true
		}
	}
	switch {
	case hasModelCard && hasReport:
		return 1
	case hasModelCard || hasReport:
		return 0.5
	default:
		return 0
	}
}

// alertHygiene scores down for unresolved alerts.
func (s *Scorer) alertHygiene(openAlerts int) float64 {
	// Each open alert costs a third, floored at zero.
	return math.Max(0, 1-float64(openAlerts)/3.0)
}
