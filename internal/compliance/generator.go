package compliance

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/secrets"
	"github.com/regulateai/platform/internal/store"
)

// Generator renders compliance documents from project data and stores them
// encrypted. It is driven by the document worker.
type Generator struct {
	store  store.Store
	scorer *Scorer
	cipher *secrets.Cipher
	window time.Duration
	logger *slog.Logger
}

// NewGenerator creates a document generator.
func NewGenerator(st store.Store, scorer *Scorer, cipher *secrets.Cipher, window time.Duration, logger *slog.Logger) *Generator {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Generator{
		store:  st,
		scorer: scorer,
		cipher: cipher,
		window: window,
		logger: logger,
	}
}

// Process renders the document for the given job, encrypts it, and stores it.
// Failures are recorded on the document record and returned.
func (g *Generator) Process(ctx context.Context, job *models.DocumentJob) error {
	content, err := g.render(ctx, job)
	if err != nil {
		if ferr := g.store.Documents().SetFailed(ctx, job.DocumentID, err.Error()); ferr != nil {
			g.logger.Error("failed to mark document failed", "error", ferr, "document_id", job.DocumentID)
		}
		return err
	}

	ciphertext, err := g.cipher.Encrypt(ctx, []byte(content))
	if err != nil {
		if ferr := g.store.Documents().SetFailed(ctx, job.DocumentID, "encryption failed"); ferr != nil {
			g.logger.Error("failed to mark document failed", "error", ferr, "document_id", job.DocumentID)
		}
		return fmt.Errorf("encrypting document: %w", err)
	}

	if err := g.store.Documents().SetContent(ctx, job.DocumentID, ciphertext); err != nil {
		return fmt.Errorf("storing document content: %w", err)
	}

	g.logger.Info("document generated",
		"document_id", job.DocumentID,
		"project_id", job.ProjectID,
		"type", job.Type,
	)
	return nil
}

// render produces the document body in Markdown.
func (g *Generator) render(ctx context.Context, job *models.DocumentJob) (string, error) {
	project, err := g.store.Projects().Get(ctx, job.ProjectID)
	if err != nil {
		return "", fmt.Errorf("loading project: %w", err)
	}

	since := time.Now().UTC().Add(-g.window)
	counts, err := g.store.Logs().CountsSince(ctx, job.ProjectID, since)
	if err != nil {
		return "", fmt.Errorf("aggregating logs: %w", err)
	}

	switch job.Type {
	case models.DocumentModelCard:
		return g.renderModelCard(ctx, project, counts, since)
	case models.DocumentTransparencyReport:
		return g.renderTransparencyReport(ctx, project, counts, since)
	default:
		return "", models.ErrInvalidDocumentType
	}
}

func (g *Generator) renderModelCard(ctx context.Context, project *models.Project, counts *models.LogCounts, since time.Time) (string, error) {
	modelNames, err := g.store.Logs().DistinctModels(ctx, project.ID, since)
	if err != nil {
		return "", fmt.Errorf("listing models: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Model Card: %s\n\n", project.Name)
	fmt.Fprintf(&b, "Generated: %s\n\n", time.Now().UTC().Format(time.RFC3339))
	fmt.Fprintf(&b, "## System\n\n")
	fmt.Fprintf(&b, "- Risk category: %s\n", project.RiskCategory)
	if project.Description != "" {
		fmt.Fprintf(&b, "- Description: %s\n", project.Description)
	}
	fmt.Fprintf(&b, "\n## Models in use (last %d days)\n\n", int(g.window.Hours()/24))
	if len(modelNames) == 0 {
		b.WriteString("No models observed in the reporting window.\n")
	}
	for _, m := range modelNames {
		fmt.Fprintf(&b, "- %s\n", m)
	}
	fmt.Fprintf(&b, "\n## Usage statistics\n\n")
	fmt.Fprintf(&b, "- Logged interactions: %d\n", counts.Total)
	fmt.Fprintf(&b, "- Human reviewed: %d\n", counts.HumanReviewed)
	fmt.Fprintf(&b, "- Errors: %d\n", counts.Errors)

	return b.String(), nil
}

func (g *Generator) renderTransparencyReport(ctx context.Context, project *models.Project, counts *models.LogCounts, since time.Time) (string, error) {
	score, err := g.scorer.ProjectScore(ctx, project.ID)
	if err != nil {
		return "", fmt.Errorf("computing score: %w", err)
	}

	alerts, err := g.store.Alerts().List(ctx, project.ID, "", 50)
	if err != nil {
		return "", fmt.Errorf("listing alerts: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# Transparency Report: %s\n\n", project.Name)
	fmt.Fprintf(&b, "Reporting window: %s to %s\n\n",
		since.Format("2006-01-02"), time.Now().UTC().Format("2006-01-02"))
	fmt.Fprintf(&b, "## Compliance score: %.1f / 100\n\n", score.Score)
	for check, val := range score.Breakdown {
		fmt.Fprintf(&b, "- %s: %.0f%%\n", check, val*100)
	}
	fmt.Fprintf(&b, "\n## Activity\n\n")
	fmt.Fprintf(&b, "- Logged interactions: %d\n", counts.Total)
	fmt.Fprintf(&b, "- Error rate: %.2f%%\n", errorPercent(counts))
	fmt.Fprintf(&b, "- Human review rate: %.2f%%\n", reviewPercent(counts))
	fmt.Fprintf(&b, "\n## Alerts\n\n")
	if len(alerts) == 0 {
		b.WriteString("No alerts raised in the reporting window.\n")
	}
	for _, a := range alerts {
		fmt.Fprintf(&b, "- [%s] %s (%s, %s)\n", a.Status, a.Message, a.Type, a.CreatedAt.Format("2006-01-02"))
	}

	return b.String(), nil
}

func errorPercent(c *models.LogCounts) float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.Errors) / float64(c.Total) * 100
}

func reviewPercent(c *models.LogCounts) float64 {
	if c.Total == 0 {
		return 0
	}
	return float64(c.HumanReviewed) / float64(c.Total) * 100
}
