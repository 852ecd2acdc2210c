package models

import (
	"errors"
	"fmt"
)

// ErrValidation represents a validation error with field and message.
type ErrValidation struct {
	Field   string
	Message string
	Err     error
}

// Error implements the error interface.
func (e ErrValidation) Error() string {
	return fmt.Sprintf("validation error on field %s: %s", e.Field, e.Message)
}

// Unwrap returns the underlying sentinel, if any.
func (e ErrValidation) Unwrap() error {
	return e.Err
}

// Common validation errors for models.
var (
	// ErrImmutableField indicates an attempt to rewrite identity or stream locator.
	ErrImmutableField = errors.New("field is immutable")

	// ErrUnknownField indicates a field name that is not addressable.
	ErrUnknownField = errors.New("unknown field")

	// ErrTargetRequired indicates a watch snapshot without a target name.
	ErrTargetRequired = errors.New("target is required")
)
