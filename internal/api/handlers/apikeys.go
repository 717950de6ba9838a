package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/auth"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// APIKeyHandler handles project API key management.
type APIKeyHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewAPIKeyHandler creates a new API key handler.
func NewAPIKeyHandler(st store.Store, logger *slog.Logger) *APIKeyHandler {
	return &APIKeyHandler{
		store:  st,
		logger: logger,
	}
}

// CreateKeyRequest represents the request body for creating an API key.
type CreateKeyRequest struct {
	Name string `json:"name"`
}

// CreateKeyResponse carries the raw key. It is returned exactly once;
// only the hash is stored.
type CreateKeyResponse struct {
	Key    *models.APIKey `json:"key"`
	RawKey string         `json:"raw_key"`
}

// Create handles POST /v1/projects/{projectID}/keys.
func (h *APIKeyHandler) Create(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	var req CreateKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if req.Name == "" {
		req.Name = "default"
	}

	rawKey, err := auth.GenerateAPIKey()
	if err != nil {
		h.logger.Error("failed to generate API key", "error", err)
		WriteInternalError(w, "failed to generate API key")
		return
	}

	key := &models.APIKey{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Name:      req.Name,
		KeyHash:   auth.HashAPIKey(rawKey),
		Prefix:    auth.KeyPrefix(rawKey),
	}

	if err := h.store.APIKeys().Create(r.Context(), key); err != nil {
		h.logger.Error("failed to store API key", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to create API key")
		return
	}

	WriteJSON(w, http.StatusCreated, &CreateKeyResponse{Key: key, RawKey: rawKey})
}

// List handles GET /v1/projects/{projectID}/keys.
func (h *APIKeyHandler) List(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	keys, err := h.store.APIKeys().List(r.Context(), project.ID)
	if err != nil {
		h.logger.Error("failed to list API keys", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to list API keys")
		return
	}

	if keys == nil {
		keys = []*models.APIKey{}
	}

	WriteJSON(w, http.StatusOK, keys)
}

// Revoke handles DELETE /v1/projects/{projectID}/keys/{keyID}.
func (h *APIKeyHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	keyID := chi.URLParam(r, "keyID")
	if keyID == "" {
		WriteBadRequest(w, "key ID is required")
		return
	}

	if err := h.store.APIKeys().Revoke(r.Context(), keyID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "API key not found or already revoked")
			return
		}
		h.logger.Error("failed to revoke API key", "error", err, "key_id", keyID)
		WriteInternalError(w, "failed to revoke API key")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
