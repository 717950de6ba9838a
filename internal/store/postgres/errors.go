package postgres

import (
	"strings"

	"github.com/regulateai/platform/internal/store"
)

// Sentinel errors are shared with the store package so callers can match
// them without importing the postgres implementation.
var (
	ErrNotFound      = store.ErrNotFound
	ErrDuplicateName = store.ErrDuplicateName
	ErrDuplicateKey  = store.ErrDuplicateKey
	ErrKeyRevoked    = store.ErrKeyRevoked
)

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	// PostgreSQL error code 23505 is unique_violation
	return strings.Contains(err.Error(), "23505") ||
		strings.Contains(err.Error(), "unique constraint") ||
		strings.Contains(err.Error(), "duplicate key")
}
