package store

import "errors"

// Sentinel errors shared by all store implementations.
var (
	// ErrNotFound is returned when a requested resource does not exist.
	ErrNotFound = errors.New("resource not found")

	// ErrDuplicateName is returned when attempting to create a resource with a duplicate name.
	ErrDuplicateName = errors.New("duplicate name")

	// ErrDuplicateKey is returned when attempting to create a resource with a duplicate key.
	ErrDuplicateKey = errors.New("duplicate key")

	// ErrKeyRevoked is returned when a revoked API key is used.
	ErrKeyRevoked = errors.New("api key revoked")
)
