package forecast

import (
	"errors"
	"fmt"
)

var (
	// ErrSchemaMismatch means a record or estimator does not fit the feature schema.
	ErrSchemaMismatch = errors.New("schema mismatch")
	// ErrInsufficientHistory means the run could not be seeded with resolved demand.
	ErrInsufficientHistory = errors.New("insufficient history")
	// ErrEstimatorFailure means an estimator failed to produce a finite value.
	ErrEstimatorFailure = errors.New("estimator failure")
	// ErrInvalidInput means timestamps are not strictly increasing across history and horizon.
	ErrInvalidInput = errors.New("invalid input")
)

// SeedStep is the step index reported for failures detected before the first step.
const SeedStep = -1

// RunError is the fatal error of a run. Kind is one of the sentinel errors
// above, so callers can test it with errors.Is.
type RunError struct {
	Step int
	Kind error
	Err  error
}

func (e *RunError) Error() string {
	if e.Step == SeedStep {
		return fmt.Sprintf("forecast: %v: %v", e.Kind, e.Err)
	}
	return fmt.Sprintf("forecast: step %d: %v: %v", e.Step, e.Kind, e.Err)
}

func (e *RunError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func runErr(step int, kind, err error) *RunError {
	return &RunError{Step: step, Kind: kind, Err: err}
}

// KindOf returns a short label for the error kind, suitable for metrics.
func KindOf(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrSchemaMismatch):
		return "schema_mismatch"
	case errors.Is(err, ErrInsufficientHistory):
		return "insufficient_history"
	case errors.Is(err, ErrEstimatorFailure):
		return "estimator_failure"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "other"
	}
}
