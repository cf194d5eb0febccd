package ssm

import (
	"fmt"
	"math"
)

// EvalMode selects which half of the state-space description
// StateEquation evaluates.
type EvalMode int

const (
	// Derivative evaluates f(x,u), the state derivative vector.
	Derivative EvalMode = iota
	// OutputEval evaluates g(x,u), the output vector.
	OutputEval
)

// Signals carries the ordered signal names of a model. It is pure metadata
// and must be stable across calls.
type Signals struct {
	States  []string
	Inputs  []string
	Outputs []string
}

// PowerFlow is the operating-point specification of a device: active and
// reactive power, terminal voltage magnitude, angle offset and per-unit
// frequency.
type PowerFlow struct {
	P  float64
	Q  float64
	V  float64
	Xi float64
	W  float64
}

// Equilibrium is the steady-state anchor (x_e, u_e, xi) computed once at
// setup and read-only afterwards.
type Equilibrium struct {
	X  State
	U  Input
	Xi float64
}

// Model is the contract every apparatus variant satisfies.
//
// StateEquation must be a pure function of its arguments: the linearization
// and discretization engines call it with perturbed and blended vectors.
type Model interface {
	Signals() Signals
	Equilibrium(pf PowerFlow) (Equilibrium, error)
	StateEquation(x State, u Input, mode EvalMode) State
}

// Configurable is implemented by models whose physical parameters can be
// adjusted by name, for parameter sweeps.
type Configurable interface {
	Params() map[string]float64
	SetParam(name string, value float64) error
}

// Verify checks the structural contract of a model against an equilibrium:
// vector lengths match the signal list, the state equation returns vectors
// of the advertised lengths, and the final (angle) state does not feed back
// into any other state's derivative.
func Verify(m Model, eq Equilibrium) error {
	sig := m.Signals()
	n, nu, ny := len(sig.States), len(sig.Inputs), len(sig.Outputs)
	if n < 2 || nu < 2 || ny < 3 {
		return fmt.Errorf("%w: need at least 2 states, 2 inputs, 3 outputs (got %d/%d/%d)",
			ErrDimensionMismatch, n, nu, ny)
	}
	if len(eq.X) != n {
		return fmt.Errorf("%w: equilibrium state has %d entries, signal list %d",
			ErrDimensionMismatch, len(eq.X), n)
	}
	if len(eq.U) != nu {
		return fmt.Errorf("%w: equilibrium input has %d entries, signal list %d",
			ErrDimensionMismatch, len(eq.U), nu)
	}
	if f := m.StateEquation(eq.X, eq.U, Derivative); len(f) != n {
		return fmt.Errorf("%w: derivative has %d entries, signal list %d",
			ErrDimensionMismatch, len(f), n)
	}
	if g := m.StateEquation(eq.X, eq.U, OutputEval); len(g) != ny {
		return fmt.Errorf("%w: output has %d entries, signal list %d",
			ErrDimensionMismatch, len(g), ny)
	}
	if err := verifyAngleDecoupled(m, eq); err != nil {
		return err
	}
	return nil
}

// verifyAngleDecoupled perturbs the angle state and requires all other
// derivatives to be unchanged.
func verifyAngleDecoupled(m Model, eq Equilibrium) error {
	n := len(eq.X)
	f0 := m.StateEquation(eq.X, eq.U, Derivative)

	xp := eq.X.Clone()
	xp[n-1] += 0.1
	fp := m.StateEquation(xp, eq.U, Derivative)

	for i := 0; i < n-1; i++ {
		if math.Abs(fp[i]-f0[i]) > 1e-12 {
			return fmt.Errorf("%w: angle state feeds back into state %d (%s)",
				ErrInvalidConfiguration, i, m.Signals().States[i])
		}
	}
	return nil
}
