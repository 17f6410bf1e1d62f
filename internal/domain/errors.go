package domain

import (
	"errors"
	"fmt"
)

// Error classes. Typed errors below unwrap to one of these so callers can use errors.Is.
var (
	ErrValidation   = errors.New("validation failed")
	ErrComputation  = errors.New("computation invariant violated")
	ErrNotConverged = errors.New("estimate did not converge")
)

// ValidationError reports malformed or out-of-range caller input.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// ComputationError reports a broken internal invariant. It is a defect in an
// engine or its configuration, never a user mistake.
type ComputationError struct {
	Op     string
	Period int // -1 when not tied to a period
	Detail string
}

func (e *ComputationError) Error() string {
	if e.Period >= 0 {
		return fmt.Sprintf("%s: period %d: %s", e.Op, e.Period, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Op, e.Detail)
}

func (e *ComputationError) Unwrap() error { return ErrComputation }

// ConvergenceWarning is returned alongside a best-available estimate when a
// randomized estimate did not stabilize within its budget or was cancelled.
type ConvergenceWarning struct {
	Iterations int
	StdErr     float64
	Tolerance  float64
	Cancelled  bool
}

func (w *ConvergenceWarning) Error() string {
	if w.Cancelled {
		return fmt.Sprintf("estimate cancelled after %d iterations (stderr %.4f)", w.Iterations, w.StdErr)
	}
	return fmt.Sprintf("estimate not converged after %d iterations (stderr %.4f > %.4f)", w.Iterations, w.StdErr, w.Tolerance)
}

func (w *ConvergenceWarning) Unwrap() error { return ErrNotConverged }
