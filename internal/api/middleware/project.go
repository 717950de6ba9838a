package middleware

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// ProjectContextKey is the context key for the project loaded by ProjectAccess.
const ProjectContextKey contextKey = "project"

// GetProject extracts the project from the request context.
func GetProject(ctx context.Context) *models.Project {
	if v := ctx.Value(ProjectContextKey); v != nil {
		return v.(*models.Project)
	}
	return nil
}

// ProjectAccess returns a middleware that loads the project named by the
// projectID URL parameter and verifies it belongs to the organization in
// the request context.
func ProjectAccess(st store.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			org := GetOrg(r.Context())
			if org == nil {
				writeUnauthorized(w, "Organization context required")
				return
			}

			projectID := chi.URLParam(r, "projectID")
			if projectID == "" {
				next.ServeHTTP(w, r)
				return
			}

			project, err := st.Projects().Get(r.Context(), projectID)
			if err != nil {
				logger.Debug("failed to get project for access check", "error", err, "project_id", projectID)
				writeNotFound(w, "Project not found")
				return
			}

			if project.OrgID != org.ID {
				logger.Debug("project access check failed",
					"org_id", org.ID,
					"project_org_id", project.OrgID,
					"project_id", projectID,
				)
				writeNotFound(w, "Project not found")
				return
			}

			ctx := context.WithValue(r.Context(), ProjectContextKey, project)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
