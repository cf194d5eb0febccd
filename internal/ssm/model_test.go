package ssm

import (
	"errors"
	"math"
	"testing"
)

// stub is a minimal two-state model: one first-order lag plus the angle.
type stub struct {
	angleFeedback bool
}

func (s *stub) Signals() Signals {
	return Signals{
		States:  []string{"z", "theta"},
		Inputs:  []string{"v_d", "v_q"},
		Outputs: []string{"i_d", "i_q", "w"},
	}
}

func (s *stub) Equilibrium(pf PowerFlow) (Equilibrium, error) {
	return Equilibrium{X: State{0, pf.Xi}, U: Input{pf.V, 0}, Xi: pf.Xi}, nil
}

func (s *stub) StateEquation(x State, u Input, mode EvalMode) State {
	if mode == OutputEval {
		return State{x[0], 0, 1}
	}
	f := State{-x[0] + u[1], 0}
	if s.angleFeedback {
		f[0] += x[1]
	}
	return f
}

func TestVerifyAcceptsContractModel(t *testing.T) {
	m := &stub{}
	eq, _ := m.Equilibrium(PowerFlow{V: 1, W: 1})
	if err := Verify(m, eq); err != nil {
		t.Fatalf("expected contract model to verify, got %v", err)
	}
}

func TestVerifyRejectsAngleFeedback(t *testing.T) {
	m := &stub{angleFeedback: true}
	eq, _ := m.Equilibrium(PowerFlow{V: 1, W: 1})
	err := Verify(m, eq)
	if !errors.Is(err, ErrInvalidConfiguration) {
		t.Fatalf("expected ErrInvalidConfiguration for angle feedback, got %v", err)
	}
}

func TestVerifyRejectsWrongDimensions(t *testing.T) {
	m := &stub{}
	eq := Equilibrium{X: State{0, 0, 0}, U: Input{1, 0}}
	err := Verify(m, eq)
	if !errors.Is(err, ErrDimensionMismatch) {
		t.Fatalf("expected ErrDimensionMismatch, got %v", err)
	}
}

func TestStepErrorUnwrap(t *testing.T) {
	e := &StepError{Step: 3, Time: 0.0003, Wrapped: ErrSingular}
	if !errors.Is(e, ErrSingular) {
		t.Error("expected StepError to unwrap to ErrSingular")
	}
}

func TestStateHelpers(t *testing.T) {
	s := State{3, 4}
	if s.Norm() != 5 {
		t.Errorf("expected norm 5, got %f", s.Norm())
	}

	c := s.Clone()
	c[0] = 99
	if s[0] != 3 {
		t.Error("clone must not alias the original")
	}

	d := s.Sub(State{1, 1})
	if d[0] != 2 || d[1] != 3 {
		t.Errorf("unexpected difference %v", d)
	}

	if (State{1, math.NaN()}).IsValid() {
		t.Error("NaN state must be invalid")
	}
	if !(State{1, 2}).IsValid() {
		t.Error("finite state must be valid")
	}
}
