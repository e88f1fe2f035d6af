// Package apperr holds the error kinds shared by the stores, services and
// transports. Callers classify with errors.Is; detail is added by wrapping.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrAlreadyExists    = errors.New("already exists")
	ErrValidation       = errors.New("validation failed")
	ErrAuthFailed       = errors.New("invalid credentials")
	ErrDenied           = errors.New("denied")
	ErrStoreUnavailable = errors.New("store unavailable")

	// edit session
	ErrDraftActive = errors.New("an edit draft is active")
	ErrNoDraft     = errors.New("no edit draft is active")
)

// Validation returns an ErrValidation carrying a human readable reason.
func Validation(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrValidation, fmt.Sprintf(format, args...))
}

// Unavailable wraps a driver failure so callers can tell it apart from the
// domain outcomes above.
func Unavailable(op string, cause error) error {
	return fmt.Errorf("%s: %w: %w", op, ErrStoreUnavailable, cause)
}

// HTTPStatus maps an error kind onto the response status of the API.
func HTTPStatus(err error) int {
	switch {
	case errors.Is(err, ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrDraftActive), errors.Is(err, ErrNoDraft):
		return http.StatusConflict
	case errors.Is(err, ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, ErrAuthFailed):
		return http.StatusUnauthorized
	case errors.Is(err, ErrDenied):
		return http.StatusForbidden
	case errors.Is(err, ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
