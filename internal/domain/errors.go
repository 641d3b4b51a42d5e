package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors shared by every layer. Store and resolver code wraps
// them with context; the HTTP layer maps them to status codes in one
// place.
var (
	// ErrNotFound covers both "does not exist" and "exists but the
	// caller may not see it". The two cases are deliberately
	// indistinguishable to callers.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned when the caller may see a resource
	// but not perform the requested mutation on it.
	ErrForbidden = errors.New("forbidden")
)

// ValidationError rejects malformed input before it reaches storage.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// Validationf builds a ValidationError from a format string.
func Validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// ConflictError reports a uniqueness collision on the named field.
// It is produced exclusively by the store's constraint translation,
// never by pre-checking reads.
type ConflictError struct {
	Field string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already taken", e.Field)
}

// Conflict builds a ConflictError for the given field.
func Conflict(field string) error {
	return &ConflictError{Field: field}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
