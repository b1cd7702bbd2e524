package store

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when a referenced test or variant does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState marks a structural invariant broken in persisted data,
	// e.g. a test with no control variant. Creation validation makes this
	// unreachable in practice; evaluation still checks for it.
	ErrInvalidState = errors.New("invalid state")
)

// ValidationError describes a malformed test or variant definition.
// Nothing is persisted when one is returned.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("validation failed: %s", e.Message)
	}
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}
