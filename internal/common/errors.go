// Package common defines shared constants and sentinel errors used across
// the components of filevault. Callers should use errors.Is to match these
// values.
package common

import (
	"errors"
	"fmt"
)

var (
	// Repository-level errors.
	ErrNotFound = errors.New("not found")

	// Service-level errors (generic/internal flow control).
	ErrInternal     = errors.New("internal error")
	ErrUnauthorized = errors.New("unauthorized")

	// ErrNoContent is returned when byte retrieval is requested for a folder.
	ErrNoContent = errors.New("a folder doesn't have content")

	// Session errors (missing, unknown or expired token).
	ErrSessionExpired = errors.New("session expired")
)

// ValidationError reports a rejected request field. Msg carries the exact
// user-facing message ("Missing name", "Parent is not a folder", ...) and is
// returned verbatim to the client.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// NewValidationError builds a ValidationError with the given message.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
