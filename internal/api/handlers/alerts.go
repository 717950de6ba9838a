package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// AlertHandler serves compliance alerts.
type AlertHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewAlertHandler creates a new alert handler.
func NewAlertHandler(st store.Store, logger *slog.Logger) *AlertHandler {
	return &AlertHandler{
		store:  st,
		logger: logger,
	}
}

// List handles GET /v1/projects/{projectID}/alerts?status=open|resolved.
func (h *AlertHandler) List(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	status := models.AlertStatus(r.URL.Query().Get("status"))
	switch status {
	case "", models.AlertOpen, models.AlertResolved:
	default:
		WriteBadRequest(w, "status must be open or resolved")
		return
	}

	limit := 100
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, 500)
		}
	}

	alerts, err := h.store.Alerts().List(r.Context(), project.ID, status, limit)
	if err != nil {
		h.logger.Error("failed to list alerts", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to list alerts")
		return
	}

	if alerts == nil {
		alerts = []*models.Alert{}
	}

	WriteJSON(w, http.StatusOK, alerts)
}

// Resolve handles POST /v1/projects/{projectID}/alerts/{alertID}/resolve.
func (h *AlertHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	alertID := chi.URLParam(r, "alertID")
	if alertID == "" {
		WriteBadRequest(w, "alert ID is required")
		return
	}

	userID := middleware.GetUserID(r.Context())
	if err := h.store.Alerts().Resolve(r.Context(), alertID, userID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "alert not found or already resolved")
			return
		}
		h.logger.Error("failed to resolve alert", "error", err, "alert_id", alertID)
		WriteInternalError(w, "failed to resolve alert")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
