package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError is the error shape every handler converts to before replying,
// either as a scoped websocket event or as a REST envelope.
type AppError struct {
	Code       string `json:"code"`
	Message    string `json:"message"`
	StatusCode int    `json:"-"`
	Internal   error  `json:"-"`
}

func (e *AppError) Error() string {
	if e == nil {
		return "<nil>"
	}

	if e.Internal != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	}

	return e.Message
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches on Code so that copies made by WithMessage / WithInternal still
// compare equal to the sentinel they came from.
func (e *AppError) Is(target error) bool {
	var t *AppError
	if !errors.As(target, &t) || e == nil || t == nil {
		return false
	}
	return e.Code == t.Code
}

// WithInternal returns a copy carrying the underlying cause.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Internal = err
	return &cpy
}

// WithMessage returns a copy with a caller-facing message.
func (e *AppError) WithMessage(format string, args ...any) *AppError {
	if e == nil {
		return nil
	}

	cpy := *e
	cpy.Message = fmt.Sprintf(format, args...)
	return &cpy
}

var (
	ErrAuth = &AppError{
		Code:       "AUTH_ERROR",
		Message:    "Authentication required",
		StatusCode: http.StatusUnauthorized,
	}

	ErrNotFound = &AppError{
		Code:       "NOT_FOUND",
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	ErrForbidden = &AppError{
		Code:       "FORBIDDEN",
		Message:    "Permission denied",
		StatusCode: http.StatusForbidden,
	}

	ErrConflict = &AppError{
		Code:       "CONFLICT",
		Message:    "Operation not allowed in the current state",
		StatusCode: http.StatusConflict,
	}

	ErrUpstreamUnavailable = &AppError{
		Code:       "UPSTREAM_UNAVAILABLE",
		Message:    "A backing service is unavailable",
		StatusCode: http.StatusServiceUnavailable,
	}

	ErrBadRequest = &AppError{
		Code:       "BAD_REQUEST",
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}
)

func NotFound(format string, args ...any) *AppError {
	return ErrNotFound.WithMessage(format, args...)
}

func Forbidden(format string, args ...any) *AppError {
	return ErrForbidden.WithMessage(format, args...)
}

func Conflict(format string, args ...any) *AppError {
	return ErrConflict.WithMessage(format, args...)
}

func BadRequest(format string, args ...any) *AppError {
	return ErrBadRequest.WithMessage(format, args...)
}

// Upstream wraps a store or collaborator failure.
func Upstream(err error, message string) *AppError {
	cpy := ErrUpstreamUnavailable.WithInternal(err)
	cpy.Message = message
	return cpy
}

// FromError converts any error into an AppError. Unknown errors are treated
// as upstream failures since every non-domain error comes from I/O.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}

	return ErrUpstreamUnavailable.WithInternal(err)
}
