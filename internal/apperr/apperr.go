// Package apperr defines the error kinds shared across the service.
package apperr

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrValidation = errors.New("validation failed")
	ErrUpstream   = errors.New("upstream service failed")
	ErrConflict   = errors.New("conflict")
)

// ValidationError names the rule a contract or change set broke.
type ValidationError struct {
	Rule   string
	Field  string
	Detail string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Rule, e.Detail, e.Field)
	}
	return fmt.Sprintf("%s: %s", e.Rule, e.Detail)
}

func (e *ValidationError) Is(target error) bool { return target == ErrValidation }

func Validation(rule, field, format string, args ...any) error {
	return &ValidationError{Rule: rule, Field: field, Detail: fmt.Sprintf(format, args...)}
}

// UpstreamError wraps a failure of the extraction or LLM collaborator after retries.
type UpstreamError struct {
	Service  string
	Attempts int
	Err      error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("%s failed after %d attempt(s): %v", e.Service, e.Attempts, e.Err)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

func (e *UpstreamError) Is(target error) bool { return target == ErrUpstream }

// NotFoundf wraps ErrNotFound with context.
func NotFoundf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrNotFound)
}

// Conflictf wraps ErrConflict with context.
func Conflictf(format string, args ...any) error {
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), ErrConflict)
}
