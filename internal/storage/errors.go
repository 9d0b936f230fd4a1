package storage

import "errors"

// Errors shared by every backend. Run results are append-only: a key
// collision means the same run or trade was produced twice.
var (
	// ErrNotFound is returned when a requested record does not exist.
	ErrNotFound = errors.New("not found")

	// ErrDuplicateKey is returned on insert of an existing key. Stores
	// never update in place; a re-run must not overwrite its results.
	ErrDuplicateKey = errors.New("duplicate key: store is append-only")

	// ErrInvalidInput is returned when input validation fails.
	ErrInvalidInput = errors.New("invalid input")
)
