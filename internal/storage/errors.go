package storage

import "errors"

// Sentinel errors shared by every backend. Historical records are immutable
// once written, so a key collision is rejected rather than updated.
var (
	// ErrNotFound reports that no record matches the lookup.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateKey reports an insert whose key is already stored.
	ErrDuplicateKey = errors.New("duplicate key: historical records are immutable")

	// ErrInvalidInput reports a record rejected by validation before any write.
	ErrInvalidInput = errors.New("invalid input")
)
