package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Error kinds surfaced by the claim workflows. The HTTP layer maps them to
// status codes.
var (
	ErrValidation            = errors.New("validation failed")
	ErrNotFound              = errors.New("record not found")
	ErrForbidden             = errors.New("forbidden")
	ErrInvalidTransition     = errors.New("invalid status transition")
	ErrConflict              = errors.New("claim was modified concurrently")
	ErrDependencyUnavailable = errors.New("dependency unavailable")
)

// ValidationError carries per-field messages. It matches ErrValidation
// under errors.Is.
type ValidationError struct {
	Fields map[string]string `json:"errors"`
}

// NewValidationError builds a ValidationError with one field message.
func NewValidationError(field, message string) *ValidationError {
	v := &ValidationError{}
	v.Add(field, message)
	return v
}

// Add records a message for a field.
func (v *ValidationError) Add(field, message string) {
	if v.Fields == nil {
		v.Fields = make(map[string]string)
	}
	v.Fields[field] = message
}

// HasErrors reports whether any field failed.
func (v *ValidationError) HasErrors() bool {
	return v != nil && len(v.Fields) > 0
}

// Error implements the error interface. Fields are sorted for stable output.
func (v *ValidationError) Error() string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	msgs := make([]string, 0, len(keys))
	for _, k := range keys {
		msgs = append(msgs, fmt.Sprintf("%s: %s", k, v.Fields[k]))
	}
	return "validation failed: " + strings.Join(msgs, "; ")
}

// Unwrap lets errors.Is match ErrValidation.
func (v *ValidationError) Unwrap() error {
	return ErrValidation
}

// Unavailable wraps a storage failure as ErrDependencyUnavailable.
// ErrNotFound and ErrConflict pass through untouched.
func Unavailable(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) || errors.Is(err, ErrConflict) {
		return err
	}
	return fmt.Errorf("%s: %w: %w", op, ErrDependencyUnavailable, err)
}
