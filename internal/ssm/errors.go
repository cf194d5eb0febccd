package ssm

import (
	"errors"
	"fmt"
)

// Domain errors for the modeling kernel.
var (
	// ErrInvalidConfiguration indicates an unrecognized apparatus variant,
	// detector mode or discretization scheme. Fatal at setup.
	ErrInvalidConfiguration = errors.New("ssm: invalid configuration")

	// ErrDomain indicates a value outside the domain of a closed-form solve,
	// such as a zero voltage magnitude in the equilibrium equations.
	ErrDomain = errors.New("ssm: domain error")

	// ErrSingular indicates a singular discretization operator (I - Ts/2*A).
	// It corrupts every subsequent step and must propagate to the caller.
	ErrSingular = errors.New("ssm: singular discretization operator")

	// ErrDimensionMismatch indicates state/input/output lengths inconsistent
	// with the model's signal list. Checked once at setup, not per step.
	ErrDimensionMismatch = errors.New("ssm: dimension mismatch")

	// ErrNotReady indicates a lifecycle call before Setup has completed.
	ErrNotReady = errors.New("ssm: discretizer not set up")

	// ErrReleased indicates a call after Release.
	ErrReleased = errors.New("ssm: discretizer released")
)

// StepError wraps an error with the step index and simulation time at which
// it occurred.
type StepError struct {
	Step    int
	Time    float64
	Wrapped error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("step %d (t=%.6f): %v", e.Step, e.Time, e.Wrapped)
}

func (e *StepError) Unwrap() error {
	return e.Wrapped
}
