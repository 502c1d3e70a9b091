package lifecycle

import (
	"errors"
	"fmt"
)

var (
	// ErrForbidden means the access predicate failed. No state changed.
	ErrForbidden = errors.New("access denied")

	// ErrNotFound covers missing entities and out-of-range row indices.
	ErrNotFound = errors.New("not found")

	// ErrConflict surfaces a unique-constraint collision that survived
	// the bounded internal retry.
	ErrConflict = errors.New("conflict on unique constraint")
)

// ValidationError carries field-level detail back to the caller.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
