package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/queue"
	"github.com/regulateai/platform/internal/secrets"
	"github.com/regulateai/platform/internal/store"
)

// DocumentHandler manages compliance document generation and retrieval.
// Document content is encrypted at rest and decrypted on read.
type DocumentHandler struct {
	store  store.Store
	queue  queue.Queue
	cipher *secrets.Cipher
	logger *slog.Logger
}

// NewDocumentHandler creates a new document handler.
func NewDocumentHandler(st store.Store, q queue.Queue, cipher *secrets.Cipher, logger *slog.Logger) *DocumentHandler {
	return &DocumentHandler{
		store:  st,
		queue:  q,
		cipher: cipher,
		logger: logger,
	}
}

// GenerateRequest is the request body for document generation.
type GenerateRequest struct {
	Type  models.DocumentType `json:"type"`
	Title string              `json:"title"`
}

// Generate handles POST /v1/projects/{projectID}/documents. It records a
// pending document and enqueues a generation job for the worker.
func (h *DocumentHandler) Generate(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	var req GenerateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}
	if err := models.ValidateDocumentType(req.Type); err != nil {
		WriteBadRequest(w, "type must be model_card or transparency_report")
		return
	}

	title := req.Title
	if title == "" {
		switch req.Type {
		case models.DocumentModelCard:
			title = project.Name + " Model Card"
		case models.DocumentTransparencyReport:
			title = project.Name + " Transparency Report"
		}
	}

	doc := &models.Document{
		ID:        uuid.New().String(),
		ProjectID: project.ID,
		Type:      req.Type,
		Status:    models.DocumentPending,
		Title:     title,
	}

	if err := h.store.Documents().Create(r.Context(), doc); err != nil {
		h.logger.Error("failed to create document", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to create document")
		return
	}

	job := &models.DocumentJob{
		ID:          uuid.New().String(),
		DocumentID:  doc.ID,
		ProjectID:   project.ID,
		Type:        req.Type,
		RequestedBy: middleware.GetUserID(r.Context()),
		CreatedAt:   time.Now().UTC(),
	}
	if err := h.queue.Enqueue(r.Context(), job); err != nil {
		h.logger.Error("failed to enqueue document job", "error", err, "document_id", doc.ID)
		if err := h.store.Documents().SetFailed(r.Context(), doc.ID, "failed to queue generation"); err != nil {
			h.logger.Error("failed to mark document failed", "error", err, "document_id", doc.ID)
		}
		WriteInternalError(w, "failed to queue document generation")
		return
	}

	WriteJSON(w, http.StatusAccepted, doc)
}

// List handles GET /v1/projects/{projectID}/documents. Content is omitted.
func (h *DocumentHandler) List(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	docs, err := h.store.Documents().List(r.Context(), project.ID)
	if err != nil {
		h.logger.Error("failed to list documents", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to list documents")
		return
	}

	if docs == nil {
		docs = []*models.Document{}
	}

	WriteJSON(w, http.StatusOK, docs)
}

// Get handles GET /v1/projects/{projectID}/documents/{documentID}.
// Ready documents are decrypted before being returned.
func (h *DocumentHandler) Get(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	docID := chi.URLParam(r, "documentID")
	if docID == "" {
		WriteBadRequest(w, "document ID is required")
		return
	}

	doc, ciphertext, err := h.store.Documents().Get(r.Context(), project.ID, docID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "document not found")
			return
		}
		h.logger.Error("failed to get document", "error", err, "document_id", docID)
		WriteInternalError(w, "failed to get document")
		return
	}

	if doc.Status == models.DocumentReady && len(ciphertext) > 0 {
		if h.cipher == nil || !h.cipher.CanDecrypt() {
			WriteInternalError(w, "document decryption is not configured")
			return
		}
		plaintext, err := h.cipher.Decrypt(r.Context(), ciphertext)
		if err != nil {
			h.logger.Error("failed to decrypt document", "error", err, "document_id", docID)
			WriteInternalError(w, "failed to decrypt document")
			return
		}
		doc.Content = string(plaintext)
	}

	WriteJSON(w, http.StatusOK, doc)
}
