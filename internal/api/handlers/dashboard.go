package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/compliance"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// DashboardHandler aggregates per-project statistics for the dashboard.
type DashboardHandler struct {
	store  store.Store
	scorer *compliance.Scorer
	window time.Duration
	logger *slog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(st store.Store, scorer *compliance.Scorer, window time.Duration, logger *slog.Logger) *DashboardHandler {
	if window <= 0 {
		window = 30 * 24 * time.Hour
	}
	return &DashboardHandler{
		store:  st,
		scorer: scorer,
		window: window,
		logger: logger,
	}
}

// Stats is the dashboard summary for one project.
type Stats struct {
	ProjectID  string            `json:"project_id"`
	Window     string            `json:"window"`
	Counts     *models.LogCounts `json:"counts"`
	OpenAlerts int               `json:"open_alerts"`
	Models     []string          `json:"models"`
}

// Stats handles GET /v1/projects/{projectID}/stats.
func (h *DashboardHandler) Stats(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	since := time.Now().UTC().Add(-h.window)

	counts, err := h.store.Logs().CountsSince(r.Context(), project.ID, since)
	if err != nil {
		h.logger.Error("failed to aggregate logs", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to compute statistics")
		return
	}

	openAlerts, err := h.store.Alerts().CountOpen(r.Context(), project.ID)
	if err != nil {
		h.logger.Error("failed to count open alerts", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to compute statistics")
		return
	}

	modelList, err := h.store.Logs().DistinctModels(r.Context(), project.ID, since)
	if err != nil {
		h.logger.Error("failed to list models", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to compute statistics")
		return
	}
	if modelList == nil {
		modelList = []string{}
	}

	WriteJSON(w, http.StatusOK, &Stats{
		ProjectID:  project.ID,
		Window:     h.window.String(),
		Counts:     counts,
		OpenAlerts: openAlerts,
		Models:     modelList,
	})
}

// Score handles GET /v1/projects/{projectID}/score.
func (h *DashboardHandler) Score(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	score, err := h.scorer.ProjectScore(r.Context(), project.ID)
	if err != nil {
		h.logger.Error("failed to compute compliance score", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to compute compliance score")
		return
	}

	WriteJSON(w, http.StatusOK, score)
}
