package services

import (
	"fmt"

	"github.com/juju/errors"
)

// Errors that are not covered by the juju/errors taxonomy (NotValid,
// Forbidden, NotFound).
const (
	// ErrConflict means the record changed or its state does not allow the
	// transition; callers should re-fetch and retry.
	ErrConflict = errors.ConstError("conflict")

	// ErrDependencyFailure marks a failed side effect (calendar, email,
	// storage). It is reported as a Warning and never fails the primary write.
	ErrDependencyFailure = errors.ConstError("dependency failure")
)

func conflictf(format string, args ...interface{}) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}

func dependencyFailure(kind string, err error) error {
	return fmt.Errorf("%s: %v: %w", kind, err, ErrDependencyFailure)
}

// Warning is a non-fatal side effect failure attached to an operation result
type Warning struct {
	Kind     string `json:"kind"`
	EntityID string `json:"entity_id"`
	Message  string `json:"message"`
}
