package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/ingest"
	"github.com/regulateai/platform/internal/models"
)

// IngestHandler accepts log batches from SDK clients.
type IngestHandler struct {
	pipeline *ingest.Pipeline
	logger   *slog.Logger
}

// NewIngestHandler creates a new ingest handler.
func NewIngestHandler(pipeline *ingest.Pipeline, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		pipeline: pipeline,
		logger:   logger,
	}
}

// IngestRequest is the batch envelope sent by SDK clients.
type IngestRequest struct {
	Logs []*models.LogEntry `json:"logs"`
}

// Ingest handles POST /ingest/logs. The project is resolved from the API
// key by middleware. Responds with a per-batch acknowledgment: accepted
// and rejected counts plus per-index errors for rejected entries.
func (h *IngestHandler) Ingest(w http.ResponseWriter, r *http.Request) {
	projectID := middleware.GetProjectID(r.Context())
	if projectID == "" {
		WriteUnauthorized(w, "API key required")
		return
	}

	var req IngestRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	result, err := h.pipeline.Ingest(r.Context(), projectID, req.Logs)
	if err != nil {
		switch {
		case errors.Is(err, ingest.ErrEmptyBatch):
			WriteBadRequest(w, "batch contains no entries")
		case errors.Is(err, ingest.ErrBatchTooLarge):
			WriteBadRequest(w, err.Error())
		default:
			h.logger.Error("ingest failed", "error", err, "project_id", projectID)
			WriteInternalError(w, "failed to ingest batch")
		}
		return
	}

	WriteJSON(w, http.StatusOK, result)
}
