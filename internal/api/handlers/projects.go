package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/regulateai/platform/internal/api/middleware"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// ProjectHandler handles project-related HTTP requests.
type ProjectHandler struct {
	store  store.Store
	logger *slog.Logger
}

// NewProjectHandler creates a new project handler.
func NewProjectHandler(st store.Store, logger *slog.Logger) *ProjectHandler {
	return &ProjectHandler{
		store:  st,
		logger: logger,
	}
}

// CreateProjectRequest represents the request body for creating a project.
type CreateProjectRequest struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	RiskCategory models.RiskCategory `json:"risk_category"`
}

// Create handles POST /v1/projects - creates a project in the current org.
func (h *ProjectHandler) Create(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r.Context())
	if org == nil {
		WriteUnauthorized(w, "organization context required")
		return
	}

	var req CreateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	project := &models.Project{
		ID:           uuid.New().String(),
		OrgID:        org.ID,
		Name:         req.Name,
		Description:  req.Description,
		RiskCategory: req.RiskCategory,
	}
	if err := project.Validate(); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if err := h.store.Projects().Create(r.Context(), project); err != nil {
		if errors.Is(err, store.ErrDuplicateName) {
			WriteConflict(w, "a project with this name already exists")
			return
		}
		h.logger.Error("failed to create project", "error", err)
		WriteInternalError(w, "failed to create project")
		return
	}

	WriteJSON(w, http.StatusCreated, project)
}

// List handles GET /v1/projects - lists projects in the current org.
func (h *ProjectHandler) List(w http.ResponseWriter, r *http.Request) {
	org := middleware.GetOrg(r.Context())
	if org == nil {
		WriteUnauthorized(w, "organization context required")
		return
	}

	projects, err := h.store.Projects().List(r.Context(), org.ID)
	if err != nil {
		h.logger.Error("failed to list projects", "error", err, "org_id", org.ID)
		WriteInternalError(w, "failed to list projects")
		return
	}

	if projects == nil {
		projects = []*models.Project{}
	}

	WriteJSON(w, http.StatusOK, projects)
}

// Get handles GET /v1/projects/{projectID}.
// The project is loaded and access-checked by middleware.
func (h *ProjectHandler) Get(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}
	WriteJSON(w, http.StatusOK, project)
}

// UpdateProjectRequest represents the request body for updating a project.
type UpdateProjectRequest struct {
	Name         string              `json:"name"`
	Description  string              `json:"description"`
	RiskCategory models.RiskCategory `json:"risk_category"`
}

// Update handles PATCH /v1/projects/{projectID}.
func (h *ProjectHandler) Update(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	var req UpdateProjectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	if req.Name != "" {
		project.Name = req.Name
	}
	if req.Description != "" {
		project.Description = req.Description
	}
	if req.RiskCategory != "" {
		project.RiskCategory = req.RiskCategory
	}
	if err := project.Validate(); err != nil {
		WriteBadRequest(w, err.Error())
		return
	}

	if err := h.store.Projects().Update(r.Context(), project); err != nil {
		h.logger.Error("failed to update project", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to update project")
		return
	}

	WriteJSON(w, http.StatusOK, project)
}

// Delete handles DELETE /v1/projects/{projectID}.
func (h *ProjectHandler) Delete(w http.ResponseWriter, r *http.Request) {
	project := middleware.GetProject(r.Context())
	if project == nil {
		WriteNotFound(w, "project not found")
		return
	}

	if err := h.store.Projects().Delete(r.Context(), project.ID); err != nil {
		h.logger.Error("failed to delete project", "error", err, "project_id", project.ID)
		WriteInternalError(w, "failed to delete project")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
