// Package apperrors defines the shared error taxonomy for the permit platform.
//
// IMPORTANT: All cross-package error kinds are defined here so the HTTP
// boundary can map service outcomes to transport codes in one place. Services
// return these typed errors; they never return transport codes themselves.
package apperrors

import (
	"errors"
	"fmt"
)

// ErrNotFound indicates the requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrForbidden indicates the principal lacks the required permission.
// Distinct from ErrNotFound: the entity exists but access was denied.
var ErrForbidden = errors.New("forbidden")

// NotFound wraps ErrNotFound with the entity kind for log context.
func NotFound(entity string) error {
	return fmt.Errorf("%s: %w", entity, ErrNotFound)
}

// Forbidden wraps ErrForbidden with the denied operation for log context.
// The wrapped detail is for logs only; the boundary renders a generic message.
func Forbidden(operation string) error {
	return fmt.Errorf("%s: %w", operation, ErrForbidden)
}

// IsNotFound reports whether err is or wraps ErrNotFound.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsForbidden reports whether err is or wraps ErrForbidden.
func IsForbidden(err error) bool {
	return errors.Is(err, ErrForbidden)
}

// ValidationError indicates malformed create/update input, caught before any
// state change. Only the first failing field is reported.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed on %s: %s", e.Field, e.Message)
}

// Validation creates a ValidationError for a single field.
func Validation(field, message string) error {
	return &ValidationError{Field: field, Message: message}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

// AsValidation extracts the ValidationError from err, if any.
func AsValidation(err error) (*ValidationError, bool) {
	var ve *ValidationError
	ok := errors.As(err, &ve)
	return ve, ok
}

// ConflictError indicates a duplicate unique key, such as two memberships for
// the same user and permit, or two default templates for one permit type.
type ConflictError struct {
	Resource string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("%s already exists", e.Resource)
}

// Conflict creates a ConflictError for the named resource.
func Conflict(resource string) error {
	return &ConflictError{Resource: resource}
}

// IsConflict reports whether err is a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
