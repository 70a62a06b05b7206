package models

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ValidationError reports malformed user input. It is surfaced to the
// caller as a structured rejection and never logged as a system error.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// IsValidationError reports whether err is (or wraps) a ValidationError.
func IsValidationError(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ErrDuplicateDestination is returned when a user already owns an
// equivalent destination. Equivalence is defined per medium.
var ErrDuplicateDestination = errors.New("destination already exists")

// ReferentialConflictError reports an operation rejected because another
// entity still references the target, e.g. deleting a filter that is in
// use by a notification profile. The target is left untouched.
type ReferentialConflictError struct {
	Entity       string
	ID           string
	ReferencedBy string
}

func (e *ReferentialConflictError) Error() string {
	return fmt.Sprintf("%s %s is referenced by %s", e.Entity, e.ID, e.ReferencedBy)
}

// IsReferentialConflict reports whether err is (or wraps) a
// ReferentialConflictError.
func IsReferentialConflict(err error) bool {
	var rc *ReferentialConflictError
	return errors.As(err, &rc)
}

// ErrNotFound is returned by repositories when an entity does not exist.
var ErrNotFound = errors.New("not found")

func newID() string {
	return uuid.NewString()
}

// NewID returns a fresh entity ID.
func NewID() string {
	return newID()
}
