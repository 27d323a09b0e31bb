package repository

import "errors"

var (
	// ErrDuplicateOrder is returned by Insert when the unique session-id
	// index rejects a second order for the same checkout session. Callers
	// treat it as the idempotent-replay signal.
	ErrDuplicateOrder = errors.New("order already exists for session")

	// ErrNotFound is returned when a lookup matches no document.
	ErrNotFound = errors.New("not found")

	// ErrInvalidPreference is returned when a preference update names a flag
	// outside the allowed set.
	ErrInvalidPreference = errors.New("unknown preference key")
)
