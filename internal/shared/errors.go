package shared

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrValidation marks malformed input rejected before any computation.
	ErrValidation = errors.New("validation failed")
)

// FieldError describes one rejected input field.
type FieldError struct {
	Field   string `json:"field"`
	Tag     string `json:"tag"`
	Message string `json:"message"`
}

// ValidationError is returned for malformed financial or lock input.
type ValidationError struct {
	Op     string       `json:"op"`
	Fields []FieldError `json:"fields"`
}

// NewValidationError builds a ValidationError for op.
func NewValidationError(op string, fields ...FieldError) *ValidationError {
	return &ValidationError{Op: op, Fields: fields}
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ErrValidation.Error()
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, fmt.Sprintf("%s %s", f.Field, f.Message))
	}
	if len(parts) == 0 {
		return fmt.Sprintf("%s: %s", e.Op, ErrValidation)
	}
	return fmt.Sprintf("%s: %s: %s", e.Op, ErrValidation, strings.Join(parts, "; "))
}

// Unwrap lets errors.Is(err, ErrValidation) match.
func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

// HasField reports whether the named field was rejected.
func (e *ValidationError) HasField(name string) bool {
	if e == nil {
		return false
	}
	for _, f := range e.Fields {
		if f.Field == name {
			return true
		}
	}
	return false
}
