package domain

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by the registry wraps exactly one of them.
var (
	// ErrNotFound marks references to an activity that is not in the catalog.
	ErrNotFound = errors.New("not found")
	// ErrConflict marks mutations that would break a roster invariant.
	ErrConflict = errors.New("conflict")
)

var (
	// ErrActivityNotFound is returned when the activity name is not in the registry.
	ErrActivityNotFound = fmt.Errorf("activity %w", ErrNotFound)
	// ErrAlreadySignedUp is returned when the email is already on the roster.
	ErrAlreadySignedUp = fmt.Errorf("%w: already signed up", ErrConflict)
	// ErrNotSignedUp is returned when removing an email that is not on the roster.
	ErrNotSignedUp = fmt.Errorf("%w: not signed up", ErrConflict)
	// ErrActivityFull is returned by signup when capacity enforcement is on and the roster is full.
	ErrActivityFull = fmt.Errorf("%w: activity is full", ErrConflict)
)

// ErrInvalidCatalog wraps seed validation failures.
var ErrInvalidCatalog = errors.New("invalid catalog")
