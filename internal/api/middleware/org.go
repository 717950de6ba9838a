package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// OrgContextKey is the context key for the organization.
const OrgContextKey contextKey = "org"

// OrgContext returns a middleware that extracts and validates organization context.
// It extracts the organization from:
// 1. X-Org-ID or X-Org-Slug header
// 2. current_org cookie
// 3. Falls back to user's default organization
//
// The middleware validates that the user is a member of the organization.
func OrgContext(st store.Store, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := GetUserID(r.Context())
			if userID == "" {
				writeUnauthorized(w, "Authentication required")
				return
			}

			orgID := r.Header.Get("X-Org-ID")
			orgSlug := r.Header.Get("X-Org-Slug")
			if orgSlug == "" && orgID == "" {
				if cookie, err := r.Cookie("current_org"); err == nil {
					orgSlug = cookie.Value
				}
			}

			var org *models.Organization
			var err error

			switch {
			case orgID != "":
				org, err = st.Orgs().Get(r.Context(), orgID)
			case orgSlug != "":
				org, err = st.Orgs().GetBySlug(r.Context(), orgSlug)
			default:
				org, err = st.Orgs().GetDefaultForUser(r.Context(), userID)
				if errors.Is(err, store.ErrNotFound) {
					logger.Debug("no default organization for user", "user_id", userID)
					writeForbidden(w, "No organization found")
					return
				}
				if err != nil {
					logger.Error("failed to get default organization", "error", err, "user_id", userID)
					writeInternalError(w, "Failed to get default organization")
					return
				}
				if org == nil {
					writeForbidden(w, "No organization found")
					return
				}
				// Default org comes from the membership table, no extra check needed.
				ctx := context.WithValue(r.Context(), OrgContextKey, org)
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			if err != nil {
				logger.Debug("organization not found", "id", orgID, "slug", orgSlug, "error", err)
				writeNotFound(w, "Organization not found")
				return
			}

			isMember, err := st.Orgs().IsMember(r.Context(), org.ID, userID)
			if err != nil {
				logger.Error("failed to check org membership", "error", err, "org_id", org.ID, "user_id", userID)
				writeInternalError(w, "Failed to verify organization membership")
				return
			}
			if !isMember {
				logger.Debug("user not member of organization",
					"user_id", userID,
					"org_id", org.ID,
				)
				writeForbidden(w, "Not a member of this organization")
				return
			}

			ctx := context.WithValue(r.Context(), OrgContextKey, org)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetOrg extracts the organization from the request context.
func GetOrg(ctx context.Context) *models.Organization {
	if v := ctx.Value(OrgContextKey); v != nil {
		return v.(*models.Organization)
	}
	return nil
}

// GetOrgID extracts the organization ID from the request context.
// Returns empty string if no organization is set.
func GetOrgID(ctx context.Context) string {
	if org := GetOrg(ctx); org != nil {
		return org.ID
	}
	return ""
}
