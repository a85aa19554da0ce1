// Package apierr carries HTTP status information on errors returned by
// services so handlers can render them into the response envelope.
package apierr

import (
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"
)

// FieldError describes a single invalid request field
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag,omitempty"`
	Message string `json:"message"`
}

// Error is an error that maps to an HTTP status
type Error struct {
	Status  int
	Message string
	Errors  []FieldError
	err     error
}

// Error returns the error message.
func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.err)
	}
	return e.Message
}

// Unwrap returns the underlying error for error chain compatibility.
func (e *Error) Unwrap() error {
	return e.err
}

// Wrap attaches an underlying cause. The cause is logged, never rendered.
func (e *Error) Wrap(err error) *Error {
	return &Error{Status: e.Status, Message: e.Message, Errors: e.Errors, err: err}
}

func newError(status int, message string) *Error {
	return &Error{Status: status, Message: message}
}

// Validation creates a 400 error for missing or malformed input.
func Validation(message string, fields ...FieldError) *Error {
	return &Error{Status: fiber.StatusBadRequest, Message: message, Errors: fields}
}

// NotFound creates a 404 error for an absent entity.
func NotFound(message string) *Error {
	return newError(fiber.StatusNotFound, message)
}

// Unauthenticated creates a 401 error for a missing, invalid or expired token.
func Unauthenticated(message string) *Error {
	return newError(fiber.StatusUnauthorized, message)
}

// Forbidden creates a 403 error for an authenticated caller without the required role or relationship.
func Forbidden(message string) *Error {
	return newError(fiber.StatusForbidden, message)
}

// Conflict creates a 409 error for duplicates and stale writes.
func Conflict(message string) *Error {
	return newError(fiber.StatusConflict, message)
}

// Internal creates a 500 error for unexpected server-side failures.
func Internal(message string) *Error {
	return newError(fiber.StatusInternalServerError, message)
}

// StatusOf extracts the HTTP status from an error. Fiber errors keep their
// code; anything else is a 500.
func StatusOf(err error) int {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	var fiberErr *fiber.Error
	if errors.As(err, &fiberErr) {
		return fiberErr.Code
	}
	return fiber.StatusInternalServerError
}
