package store

import "errors"

// Sentinel error kinds per the error-handling policy: internal invariants
// fail loud, external conditions are recoverable and reported through these
// typed errors so callers can branch without string matching.
var (
	// ErrStoreCorrupt means the database file exists but cannot be parsed.
	ErrStoreCorrupt = errors.New("store: database file is corrupt")

	// ErrSchemaTooNew means the on-disk schema version is newer than the
	// code-declared version; downgrading in place is not supported.
	ErrSchemaTooNew = errors.New("store: schema version is newer than this build supports")

	// ErrBusy means another process held the write lock past the
	// configured busy-timeout.
	ErrBusy = errors.New("store: database busy, timed out waiting for lock")

	// ErrNotFound means a get-by-id/name lookup found nothing. Callers that
	// accept absence treat this as a nil result, not a returned error.
	ErrNotFound = errors.New("store: not found")

	// ErrInvalidInput means the caller supplied a structurally invalid
	// argument (empty id, out-of-range confidence, unknown kind).
	ErrInvalidInput = errors.New("store: invalid input")
)
