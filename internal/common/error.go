// Package common defines the error kinds shared by the vidtube server layers.
// Callers should use errors.Is to match these values; errors.As with
// *AppError gives access to the HTTP status and the client-facing message.
package common

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// Repository-level errors.
	ErrorNotFound = errors.New("not found")
	ErrorConflict = errors.New("conflict")

	// Service-level kinds. Every AppError unwraps to exactly one of these.
	ErrorValidation   = errors.New("validation error")
	ErrorUnauthorized = errors.New("unauthorized")
	ErrorInternal     = errors.New("internal error")

	// Token errors (invalid or malformed token, expired token).
	ErrInvalidToken = errors.New("invalid token")
	ErrTokenExpired = errors.New("token expired")
)

// AppError is a terminal, client-facing failure. Kind is one of the sentinel
// kinds above, Cause is the underlying error kept for logging only.
type AppError struct {
	Status  int
	Message string
	Kind    error
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap exposes the kind, not the cause, so that errors.Is(err, ErrorNotFound)
// is only true for a not-found result and never for a wrapped repository miss.
func (e *AppError) Unwrap() error {
	return e.Kind
}

func newAppError(kind error, status int, msg string, cause error) *AppError {
	return &AppError{Status: status, Message: msg, Kind: kind, Cause: cause}
}

func NewValidationError(msg string) *AppError {
	return newAppError(ErrorValidation, http.StatusBadRequest, msg, nil)
}

// conflict: 409
func NewConflictError(msg string) *AppError {
	return newAppError(ErrorConflict, http.StatusConflict, msg, nil)
}

func NewNotFoundError(msg string) *AppError {
	return newAppError(ErrorNotFound, http.StatusNotFound, msg, nil)
}

func NewUnauthorizedError(msg string, cause error) *AppError {
	return newAppError(ErrorUnauthorized, http.StatusUnauthorized, msg, cause)
}

func NewInternalError(msg string, cause error) *AppError {
	return newAppError(ErrorInternal, http.StatusInternalServerError, msg, cause)
}

// AsAppError returns err as an *AppError. Anything that is not already an
// AppError is treated as an internal failure with a generic message.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError(http.StatusText(http.StatusInternalServerError), err)
}
