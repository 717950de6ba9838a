package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// OrgHandler handles organization-related HTTP requests.
type OrgHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewOrgHandler creates a new organization handler.
func NewOrgHandler(st store.Store, logger *slog.Logger) *OrgHandler {
	return &OrgHandler{
		store:  st,
		logger: logger,
	}
}

// CreateOrgRequest represents the request body for creating an organization.
type CreateOrgRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// Create handles POST /v1/orgs - creates a new organization.
func (h *OrgHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "unauthorized")
		return
	}

	var req CreateOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	org := &models.Organization{
		ID:          uuid.New().String(),
		Name:        req.Name,
		Slug:        req.Slug,
		Description: req.Description,
	}
	if org.Slug == "" {
		org.Slug = models.GenerateSlug(org.Name)
	}
	if err := org.Validate(); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	err := h.store.WithTx(r.Context(), func(tx store.Store) error {
		if err := tx.Orgs().Create(r.Context(), org); err != nil {
			return err
		}
		return tx.Orgs().AddMember(r.Context(), org.ID, userID, models.RoleOwner)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			WriteConflict(w, "an organization with this slug already exists")
			return
		}
		h.logger.Error("failed to create organization", "error", err)
		WriteInternalError(w, "failed to create organization")
		return
	}

	WriteJSON(w, http.StatusCreated, org)
}

// List handles GET /v1/orgs - lists all organizations for the current user.
func (h *OrgHandler) List(w http.ResponseWriter, r *http.Request) {
	userID := middleware.GetUserID(r.Context())
	if userID == "" {
		WriteUnauthorized(w, "unauthorized")
		return
	}

	orgs, err := h.store.Orgs().List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list organizations", "error", err)
		WriteInternalError(w, "failed to list organizations")
		return
	}

	if orgs == nil {
		orgs = []*models.Organization{}
	}

	WriteJSON(w, http.StatusOK, orgs)
}

// requireMember verifies the requesting user belongs to the organization.
// Foreign organizations are reported as not found.
func (h *OrgHandler) requireMember(w http.ResponseWriter, r *http.Request, orgID string) bool {
	userID := middleware.GetUserID(r.Context())
	isMember, err := h.store.Orgs().IsMember(r.Context(), orgID, userID)
	if err != nil {
		h.logger.Error("failed to check org membership", "error", err, "org_id", orgID)
		WriteInternalError(w, "failed to verify membership")
		return false
	}
	if !isMember {
		WriteNotFound(w, "organization not found")
		return false
	}
	return true
}

// Get handles GET /v1/orgs/{orgID} - gets an organization by ID.
func (h *OrgHandler) Get(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		WriteBadRequest(w, "organization ID is required")
		return
	}
	if !h.requireMember(w, r, orgID) {
		return
	}

	org, err := h.store.Orgs().Get(r.Context(), orgID)
	if err != nil {
		h.logger.Debug("failed to get organization", "error", err, "org_id", orgID)
		WriteNotFound(w, "organization not found")
		return
	}

	WriteJSON(w, http.StatusOK, org)
}

// UpdateOrgRequest represents the request body for updating an organization.
type UpdateOrgRequest struct {
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
}

// Update handles PATCH /v1/orgs/{orgID} - updates an organization.
func (h *OrgHandler) Update(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		WriteBadRequest(w, "organization ID is required")
		return
	}

	if !h.requireMember(w, r, orgID) {
		return
	}

	var req UpdateOrgRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	org, err := h.store.Orgs().Get(r.Context(), orgID)
	if err != nil {
		WriteNotFound(w, "organization not found")
		return
	}

	if req.Name != "" {
		org.Name = req.Name
	}
	if req.Slug != "" {
		org.Slug = req.Slug
	}
	if req.Description != "" {
		org.Description = req.Description
	}
	if err := org.Validate(); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if err := h.store.Orgs().Update(r.Context(), org); err != nil {
		h.logger.Error("failed to update organization", "error", err)
		WriteInternalError(w, "failed to update organization")
		return
	}

	WriteJSON(w, http.StatusOK, org)
}

// Delete handles DELETE /v1/orgs/{orgID} - deletes an organization.
// A user cannot delete the only organization they belong to.
func (h *OrgHandler) Delete(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		WriteBadRequest(w, "organization ID is required")
		return
	}

	if !h.requireMember(w, r, orgID) {
		return
	}

	userID := middleware.GetUserID(r.Context())
	owned, err := h.store.Orgs().List(r.Context(), userID)
	if err != nil {
		h.logger.Error("failed to list organizations", "error", err)
		WriteInternalError(w, "failed to delete organization")
		return
	}
	if len(owned) == 1 && owned[0].ID == orgID {
		WriteBadRequest(w, models.ErrLastOrgDelete.Error())
		return
	}

	if err := h.store.Orgs().Delete(r.Context(), orgID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			WriteNotFound(w, "organization not found")
			return
		}
		h.logger.Error("failed to delete organization", "error", err)
		WriteInternalError(w, "failed to delete organization")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ListMembers handles GET /v1/orgs/{orgID}/members.
func (h *OrgHandler) ListMembers(w http.ResponseWriter, r *http.Request) {
	orgID := chi.URLParam(r, "orgID")
	if orgID == "" {
		WriteBadRequest(w, "organization ID is required")
		return
	}
	if !h.requireMember(w, r, orgID) {
		return
	}

	members, err := h.store.Orgs().ListMembers(r.Context(), orgID)
	if err != nil {
		h.logger.Error("failed to list members", "error", err, "org_id", orgID)
		WriteInternalError(w, "failed to list members")
		return
	}

	if members == nil {
		members = []*models.OrgMembership{}
	}

	WriteJSON(w, http.StatusOK, members)
}
