package database

import "errors"

var (
	// ErrDuplicateIdentity is returned when an identity with the same case-folded name exists.
	ErrDuplicateIdentity = errors.New("identity already exists")

	// ErrEmptyName is returned when an identity name folds to the empty string.
	ErrEmptyName = errors.New("identity name is required")

	// ErrDimensionMismatch is returned when an embedding's length differs from the store's.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrStorage marks failures of the durable layer. A write that fails with
	// ErrStorage did not happen.
	ErrStorage = errors.New("storage I/O error")
)
