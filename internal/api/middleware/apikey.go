package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/regulateai/platform/internal/auth"
	"github.com/regulateai/platform/internal/store"
)

// ProjectIDKey is the context key for the project resolved from an API key.
const ProjectIDKey contextKey = "project_id"

// GetProjectID extracts the ingest project ID from the request context.
func GetProjectID(ctx context.Context) string {
	if v := ctx.Value(ProjectIDKey); v != nil {
		return v.(string)
	}
	return ""
}

// APIKeyMiddleware authenticates ingest requests with a project-scoped API key.
type APIKeyMiddleware struct {
	authService *auth.Service
	apiKeys     store.APIKeyStore
	header      string
	logger      *slog.Logger
}

// NewAPIKeyMiddleware creates a new API key middleware. The header defaults
// to "x-api-key" when empty.
func NewAPIKeyMiddleware(authService *auth.Service, apiKeys store.APIKeyStore, header string, logger *slog.Logger) *APIKeyMiddleware {
	if header == "" {
		header = "x-api-key"
	}
	return &APIKeyMiddleware{
		authService: authService,
		apiKeys:     apiKeys,
		header:      header,
		logger:      logger,
	}
}

// Authenticate validates the API key header and binds the owning project to
// the request context. A missing or invalid key yields 401 so SDK clients
// can distinguish bad credentials from transient failures.
func (m *APIKeyMiddleware) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rawKey := r.Header.Get(m.header)
		if rawKey == "" {
			writeUnauthorized(w, "Missing API key")
			return
		}

		key, err := m.authService.ValidateAPIKey(r.Context(), rawKey)
		if err != nil {
			if errors.Is(err, auth.ErrKeyRevoked) {
				m.logger.Debug("revoked API key used", "prefix", auth.KeyPrefix(rawKey))
				writeUnauthorized(w, "API key revoked")
				return
			}
			m.logger.Debug("API key validation failed", "error", err)
			writeUnauthorized(w, "Invalid API key")
			return
		}

		// Best effort; a failed touch must not block ingestion.
		if err := m.apiKeys.TouchLastUsed(r.Context(), key.ID, time.Now().UTC()); err != nil {
			m.logger.Debug("failed to update key last_used_at", "error", err, "key_id", key.ID)
		}

		ctx := context.WithValue(r.Context(), ProjectIDKey, key.ProjectID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
