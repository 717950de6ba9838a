package handlers

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// LogHandler serves stored log entries to the dashboard.
type LogHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewLogHandler creates a new log handler.
func NewLogHandler(st store.Store, logger *slog.Logger) *LogHandler {
	return &LogHandler{
		store:  st,
		logger: logger,
	}
}

const (
	defaultLogLimit = 50
	maxLogLimit     = 500
)

// parseLogFilter builds a LogFilter from query parameters.
func parseLogFilter(r *http.Request) models.LogFilter {
	q := r.URL.Query()

	filter := models.LogFilter{
		Status:    models.LogStatus(q.Get("status")),
		SessionID: q.Get("session_id"),
		Limit:     defaultLogLimit,
	}

	if models := q["model"]; len(models) > 0 {
		filter.Models = models
	}
	if v := q.Get("since"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Since = t
		}
	}
	if v := q.Get("until"); v != "" {
		if t, err := time.Parse(time.RFC3339, v); err == nil {
			filter.Until = t
		}
	}
	if v := q.Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			filter.Limit = min(n, maxLogLimit)
		}
	}
	if v := q.Get("offset"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			filter.Offset = n
		}
	}

	return filter
}

// List handles GET /v1/projects/{projectID}/logs.
func (h *LogHandler) List(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	filter := parseLogFilter(r)
	logs, err := h.store.Logs().List(r.Context(), project.ID, filter)
	if err != nil {
		h.logger.Error("failed to list logs", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to list logs")
		return
	}

	if logs == nil {
		logs = []*models.LogEntry{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{
		"logs":   logs,
		"limit":  filter.Limit,
		"offset": filter.Offset,
	})
}

// Get handles GET /v1/projects/{projectID}/logs/{logID}.
func (h *LogHandler) Get(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	logID := chi.URLParam(r, "logID")
	if logID == "" {
		WriteBadRequest(w, "log ID is required")
		return
	}

	entry, err := h.store.Logs().Get(r.Context(), project.ID, logID)
	if err != nil {
		WriteNotFound(w, "log entry not found")
		return
	}

	WriteJSON(w, http.StatusOK, entry)
}

// Search handles GET /v1/projects/{projectID}/logs/search?q=...
// Full-text search over prompt and output.
func (h *LogHandler) Search(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	query := r.URL.Query().Get("q")
	if query == "" {
		WriteBadRequest(w, "query parameter q is required")
		return
	}

	limit := defaultLogLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			limit = min(n, maxLogLimit)
		}
	}

	logs, err := h.store.Logs().Search(r.Context(), project.ID, query, limit)
	if err != nil {
		h.logger.Error("log search failed", "error", err, "project_id", project.ID)
		WriteInternalError(w, "search failed")
		return
	}

	if logs == nil {
		logs = []*models.LogEntry{}
	}

	WriteJSON(w, http.StatusOK, map[string]any{"logs": logs, "query": query})
}

// Export handles GET /v1/projects/{projectID}/logs/export?format=csv|json.
// Exports up to the filter limit (default raised for exports) as a download.
func (h *LogHandler) Export(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	filter := parseLogFilter(r)
	if r.URL.Query().Get("limit") == "" {
		filter.Limit = maxLogLimit
	}

	logs, err := h.store.Logs().List(r.Context(), project.ID, filter)
	if err != nil {
		h.logger.Error("failed to export logs", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to export logs")
		return
	}

	format := r.URL.Query().Get("format")
	filename := fmt.Sprintf("logs-%s-%s", project.ID, time.Now().UTC().Format("20060102-150405"))

	switch format {
	case "", "json":
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.json"`)
		json.NewEncoder(w).Encode(logs)
	case "csv":
		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`.csv"`)
		h.writeCSV(w, logs)
	default:
		WriteBadRequest(w, "format must be csv or json")
	}
}

func (h *LogHandler) writeCSV(w http.ResponseWriter, logs []*models.LogEntry) {
	cw := csv.NewWriter(w)
	defer cw.Flush()

	cw.Write([]string{
		"id", "timestamp", "model", "model_version", "status", "prompt", "output",
		"confidence", "latency_ms", "tokens_input", "tokens_output",
		"human_reviewed", "framework", "session_id", "error_message",
	})

	for _, e := range logs {
		cw.Write([]string{
			e.ID,
			e.Timestamp.UTC().Format(time.RFC3339),
			e.Model,
			e.ModelVersion,
			string(e.Status),
			e.Prompt,
			e.Output,
			formatFloat(e.Confidence),
			formatInt(e.LatencyMs),
			formatInt(e.TokensInput),
			formatInt(e.TokensOutput),
			strconv.FormatBool(e.HumanReviewed),
			e.Framework,
			e.SessionID,
			e.ErrorMessage,
		})
	}
}

func formatFloat(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func formatInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}
