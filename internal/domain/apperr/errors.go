// Package apperr defines the typed error taxonomy shared by every layer.
// Callers classify failures with errors.Is against the sentinels below.
package apperr

import (
	"errors"
	"fmt"
)

var (
	// ErrNotFound is returned when an expense, policy, user or company does not exist.
	ErrNotFound = errors.New("not found")

	// ErrUnauthorized is returned when the actor lacks rights for the action,
	// including any cross-company access attempt.
	ErrUnauthorized = errors.New("not authorized")

	// ErrInvalidState is returned when the action is illegal for the current
	// expense status, e.g. approving a draft or editing a terminal expense.
	ErrInvalidState = errors.New("invalid state")

	// ErrValidation is returned for malformed input: a blank rejection comment,
	// an out-of-range percentage, missing required fields.
	ErrValidation = errors.New("validation failed")

	// ErrConflict is returned when a concurrent mutation won the race; the
	// caller should re-read and retry or surface a "state changed" error.
	ErrConflict = errors.New("conflicting update")

	// ErrExternalUnavailable is returned when an external collaborator (rate
	// source, directory) is unreachable. Only currency lookups may degrade
	// gracefully; directory failures are mapped to ErrUnauthorized by the engine.
	ErrExternalUnavailable = errors.New("external service unavailable")
)

// NotFound wraps ErrNotFound with a formatted message.
func NotFound(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrNotFound, args)...)
}

// Unauthorized wraps ErrUnauthorized with a formatted message.
func Unauthorized(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrUnauthorized, args)...)
}

// InvalidState wraps ErrInvalidState with a formatted message.
func InvalidState(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrInvalidState, args)...)
}

// Validation wraps ErrValidation with a formatted message.
func Validation(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrValidation, args)...)
}

// Conflict wraps ErrConflict with a formatted message.
func Conflict(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrConflict, args)...)
}

// ExternalUnavailable wraps ErrExternalUnavailable with a formatted message.
func ExternalUnavailable(format string, args ...interface{}) error {
	return fmt.Errorf("%w: "+format, prepend(ErrExternalUnavailable, args)...)
}

// Kind returns a stable machine-readable name for the error's taxonomy class,
// or "internal" when the error does not belong to the taxonomy.
func Kind(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrUnauthorized):
		return "unauthorized"
	case errors.Is(err, ErrInvalidState):
		return "invalid_state"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrExternalUnavailable):
		return "external_unavailable"
	default:
		return "internal"
	}
}

func prepend(err error, args []interface{}) []interface{} {
	return append([]interface{}{err}, args...)
}
