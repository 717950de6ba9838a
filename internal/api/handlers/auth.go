// Package handlers provides HTTP handlers for the API.
package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/regulateai/platform/internal/auth"
	"github.com/regulateai/platform/internal/models"
	"github.com/regulateai/platform/internal/store"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	store       store.Store
	authService *auth.Service
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(st store.Store, authSvc *auth.Service, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		store:       st,
		authService: authSvc,
		logger:      logger,
	}
}

// RegisterRequest is the request body for user registration.
type RegisterRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
	OrgName  string `json:"org_name"`
}

// AuthResponse is returned on successful registration or login.
type AuthResponse struct {
	Token string               `json:"token"`
	User  *store.User          `json:"user"`
	Org   *models.Organization `json:"org,omitempty"`
}

// Register handles POST /auth/register. It creates the user and their
// default organization in a single transaction.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		WriteBadRequest(w, "email and password required")
		return
	}
	if len(req.Password) < 8 {
		WriteBadRequest(w, "password must be at least 8 characters")
		return
	}

	orgName := req.OrgName
	if orgName == "" {
		orgName = req.Email
	}

	var user *store.User
	org := &models.Organization{
		ID:   uuid.New().String(),
		Name: orgName,
		Slug: models.GenerateSlug(orgName),
	}

	err := h.store.WithTx(r.Context(), func(tx store.Store) error {
		var err error
		user, err = tx.Users().Create(r.Context(), req.Email, req.Name, req.Password)
		if err != nil {
			return err
		}
		if err := tx.Orgs().Create(r.Context(), org); err != nil {
			return err
		}
		return tx.Orgs().AddMember(r.Context(), org.ID, user.ID, models.RoleOwner)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) || errors.Is(err, store.ErrDuplicateName) {
			WriteConflict(w, "an account with this email already exists")
			return
		}
		h.logger.Error("registration failed", "error", err)
		WriteInternalError(w, "failed to register")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteInternalError(w, "failed to generate token")
		return
	}

	WriteJSON(w, http.StatusCreated, &AuthResponse{Token: token, User: user, Org: org})
}

// LoginRequest is the request body for login.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login handles POST /auth/login.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		WriteBadRequest(w, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		WriteBadRequest(w, "email and password required")
		return
	}

	user, err := h.store.Users().Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		h.logger.Debug("authentication failed", "email", req.Email)
		WriteUnauthorized(w, "invalid email or password")
		return
	}

	token, err := h.authService.GenerateToken(user.ID, user.Email)
	if err != nil {
		h.logger.Error("failed to generate token", "error", err)
		WriteInternalError(w, "failed to generate token")
		return
	}

	org, err := h.store.Orgs().GetDefaultForUser(r.Context(), user.ID)
	if err != nil {
		h.logger.Debug("no default org for user", "user_id", user.ID, "error", err)
	}

	WriteJSON(w, http.StatusOK, &AuthResponse{Token: token, User: user, Org: org})
}
