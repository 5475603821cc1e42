package domain

import (
	"errors"
	"fmt"
)

// Sentinel errors for validation failures.
var (
	ErrInvalidPayload    = errors.New("invalid payload format")
	ErrMissingMake       = errors.New("make is required")
	ErrMissingModel      = errors.New("model is required")
	ErrNoGenerations     = errors.New("generation list is required")
	ErrNoEngines         = errors.New("engine list is required")
	ErrInvalidEngineCode = errors.New("invalid engine code")
	ErrUnsafePath        = errors.New("name cannot be used as a path segment")
)

// ValidationError wraps a sentinel with context.
type ValidationError struct {
	Field   string
	Value   string
	Wrapped error
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation: %s: %s (value=%q)", e.Wrapped, e.Field, e.Value)
}

// Unwrap exposes both the specific sentinel and ErrInvalidPayload, so
// callers can match either.
func (e *ValidationError) Unwrap() []error {
	if e.Wrapped == ErrInvalidPayload {
		return []error{e.Wrapped}
	}
	return []error{e.Wrapped, ErrInvalidPayload}
}

// NewValidationError creates a ValidationError.
func NewValidationError(field, value string, wrapped error) *ValidationError {
	return &ValidationError{Field: field, Value: value, Wrapped: wrapped}
}
