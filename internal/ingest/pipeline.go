// Package ingest implements the log ingestion pipeline: batch validation,
// bulk insertion, model-change detection, and alert generation.
package ingest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// DefaultMaxBatchSize is the server-enforced batch ceiling per request.
const DefaultMaxBatchSize = 100

// ErrBatchTooLarge is returned when a request exceeds the batch ceiling.
var ErrBatchTooLarge = errors.New("batch exceeds maximum size")

// ErrEmptyBatch is returned for requests with no entries.
var ErrEmptyBatch = errors.New("batch contains no entries")

// EntryError describes a rejected entry by batch index.
type EntryError struct {
	Index int    `json:"index"`
	Error string `json:"error"`
}

// Result is the acknowledgment returned to the client.
type Result struct {
	Accepted  int          `json:"accepted"`
	Rejected  int          `json:"rejected"`
	Errors    []EntryError `json:"errors"`
	ProjectID string       `json:"project_id"`
}

// Config holds pipeline tuning.
type Config struct {
	// MaxBatchSize is the per-request entry ceiling.
	MaxBatchSize int
	// LookbackWindow bounds the model-change detection query.
	LookbackWindow time.Duration
}

// Pipeline validates, stores, and inspects incoming log batches.
type Pipeline struct {
	store          store.Store
	maxBatchSize   int
	lookbackWindow time.Duration
	logger         *slog.Logger
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(st store.Store, cfg Config, logger *slog.Logger) *Pipeline {
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = DefaultMaxBatchSize
	}
	if cfg.LookbackWindow <= 0 {
		cfg.LookbackWindow = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pipeline{
		store:          st,
		maxBatchSize:   cfg.MaxBatchSize,
		lookbackWindow: cfg.LookbackWindow,
		logger:         logger,
	}
}

// MaxBatchSize returns the configured per-request ceiling.
func (p *Pipeline) MaxBatchSize() int {
	return p.maxBatchSize
}

// Ingest processes one batch for the given project. Invalid entries are
// rejected with per-index errors; valid entries are bulk-inserted. Model
// change detection runs before the insert so the comparison baseline is the
// previously stored state, then a model_change alert is raised at most once
// per open window.
func (p *Pipeline) Ingest(ctx context.Context, projectID string, entries []*models.LogEntry) (*Result, error) {
	if len(entries) == 0 {
		return nil, ErrEmptyBatch
	}
	if len(entries) > p.maxBatchSize {
		return nil, fmt.Errorf("%w: %d entries, maximum is %d", ErrBatchTooLarge, len(entries), p.maxBatchSize)
	}

	result := &Result{ProjectID: projectID, Errors: []EntryError{}}

	valid := make([]*models.LogEntry, 0, len(entries))
	for i, e := range entries {
		if err := e.Validate(); err != nil {
			result.Rejected++
			result.Errors = append(result.Errors, EntryError{Index: i, Error: err.Error()})
			continue
		}
		valid = append(valid, e)
	}

	// Capture the stored baseline before inserting the new batch.
	change := p.detectModelChange(ctx, projectID, valid)

	if len(valid) > 0 {
		if err := p.store.Logs().BulkInsert(ctx, projectID, valid); err != nil {
			return nil, fmt.Errorf("inserting batch: %w", err)
		}
		result.Accepted = len(valid)
	}

	if change != nil {
		p.raiseModelChangeAlert(ctx, projectID, change)
	}

	p.logger.Info("batch ingested",
		"project_id", projectID,
		"accepted", result.Accepted,
		"rejected", result.Rejected,
	)

	return result, nil
}

// modelChange describes a detected model transition.
type modelChange struct {
	PreviousModel   string
	PreviousVersion string
	NewModel        string
	NewVersion      string
}

// detectModelChange compares the first valid entry of the batch against the
// project's most recent stored entry. Best effort: lookup failures are
// logged, never surfaced to the caller.
func (p *Pipeline) detectModelChange(ctx context.Context, projectID string, valid []*models.LogEntry) *modelChange {
	if len(valid) == 0 {
		return nil
	}

	prevModel, prevVersion, err := p.store.Logs().LatestModel(ctx, projectID, time.Now().UTC().Add(-p.lookbackWindow))
	if err != nil {
		if !errors.Is(err, store.ErrNotFound) {
			p.logger.Warn("model change lookback failed", "error", err, "project_id", projectID)
		}
		return nil
	}

	first := valid[0]
	if first.Model == prevModel && first.ModelVersion == prevVersion {
		return nil
	}

	return &modelChange{
		PreviousModel:   prevModel,
		PreviousVersion: prevVersion,
		NewModel:        first.Model,
		NewVersion:      first.ModelVersion,
	}
}

// raiseModelChangeAlert records the change unless an open model_change alert
// already exists. Best effort.
func (p *Pipeline) raiseModelChangeAlert(ctx context.Context, projectID string, change *modelChange) {
	alert := &models.Alert{
		ID:        uuid.New().String(),
		ProjectID: projectID,
		Type:      models.AlertModelChange,
		Severity:  models.SeverityWarning,
		Status:    models.AlertOpen,
		Message: fmt.Sprintf("model changed from %s to %s",
			formatModel(change.PreviousModel, change.PreviousVersion),
			formatModel(change.NewModel, change.NewVersion)),
		Detail: map[string]any{
			"previous_model":         change.PreviousModel,
			"previous_model_version": change.PreviousVersion,
			"new_model":              change.NewModel,
			"new_model_version":      change.NewVersion,
		},
	}

	created, err := p.store.Alerts().CreateIfNoneOpen(ctx, alert)
	if err != nil {
		p.logger.Warn("failed to create model change alert", "error", err, "project_id", projectID)
		return
	}
	if created {
		p.logger.Info("model change alert raised",
			"project_id", projectID,
			"previous", formatModel(change.PreviousModel, change.PreviousVersion),
			"new", formatModel(change.NewModel, change.NewVersion),
		)
	}
}

func formatModel(model, version string) string {
	if version == "" {
		return model
	}
	return model + "@" + version
}
