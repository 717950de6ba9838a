package handlers

import (
	"net/http"

	apierrors "github.com/regulateai/platform/internal/api/errors"
)

// APIError is the error response format shared across the API.
type APIError = apierrors.APIError

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	apierrors.WriteJSON(w, status, data)
}

// WriteBadRequest writes a 400 Bad Request response.
func WriteBadRequest(w http.ResponseWriter, message string) {
	apierrors.WriteError(w, apierrors.NewValidationError(message))
}

// WriteNotFound writes a 404 Not Found response.
func WriteNotFound(w http.ResponseWriter, message string) {
	apierrors.WriteError(w, apierrors.NewNotFoundError(message))
}

// WriteConflict writes a 409 Conflict response.
func WriteConflict(w http.ResponseWriter, message string) {
	apierrors.WriteError(w, apierrors.NewConflictError(message))
}

// WriteUnauthorized writes a 401 Unauthorized response.
func WriteUnauthorized(w http.ResponseWriter, message string) {
	apierrors.WriteError(w, apierrors.NewUnauthorizedError(message))
}

// WriteForbidden writes a 403 Forbidden response.
func WriteForbidden(w http.ResponseWriter, message string) {
	apierrors.WriteError(w, apierrors.NewForbiddenError(message))
}

// WriteInternalError writes a 500 Internal Server Error response.
func WriteInternalError(w http.ResponseWriter, message string) {
	apierrors.WriteError(w, apierrors.NewInternalError(message))
}
