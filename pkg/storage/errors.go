package storage

import "errors"

// Sentinel errors for storage operations.
var (
	// ErrNotFound is returned when a user or endpoint does not exist.
	ErrNotFound = errors.New("not found")

	// ErrConflict is returned when a user with the given name already exists.
	ErrConflict = errors.New("already exists")

	// ErrInvalidUser is returned when a user definition is incomplete.
	ErrInvalidUser = errors.New("invalid user")
)
