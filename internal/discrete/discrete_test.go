package discrete

import (
	"errors"
	"math"
	"testing"

	"github.com/emtlab/gridsig/internal/devices"
	"github.com/emtlab/gridsig/internal/ssm"
)

var testPF = ssm.PowerFlow{P: 0.5, Q: 0, V: 1.0, Xi: 0, W: 1.0}

func testModel(t *testing.T, variant int) ssm.Model {
	t.Helper()
	m, err := devices.NewGridFollowing(variant, devices.QuadratureVoltage, testPF)
	if err != nil {
		t.Fatal(err)
	}
	return m
}

func TestParseScheme(t *testing.T) {
	if s, err := ParseScheme(""); err != nil || s != Trapezoidal {
		t.Errorf("empty scheme should default to trapezoidal, got %v %v", s, err)
	}
	if _, err := ParseScheme("simpson"); !errors.Is(err, ssm.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration, got %v", err)
	}
}

func TestLifecycle(t *testing.T) {
	m := testModel(t, devices.VariantDCVoltage)
	d := New(m, Trapezoidal, 1e-4, nil)

	if _, err := d.Output(make(ssm.Input, 4)); !errors.Is(err, ssm.ErrNotReady) {
		t.Fatalf("expected ErrNotReady before setup, got %v", err)
	}

	if err := d.Setup(testPF); err != nil {
		t.Fatal(err)
	}
	u := d.Equilibrium().U
	if _, err := d.Step(u); err != nil {
		t.Fatal(err)
	}
	if d.Steps() != 1 {
		t.Errorf("steps = %d, want 1", d.Steps())
	}

	if err := d.Reset(); err != nil {
		t.Fatal(err)
	}
	if d.Steps() != 0 {
		t.Errorf("steps after reset = %d, want 0", d.Steps())
	}

	d.Release()
	if _, err := d.Step(u); !errors.Is(err, ssm.ErrReleased) {
		t.Fatalf("expected ErrReleased, got %v", err)
	}
	if err := d.Reset(); !errors.Is(err, ssm.ErrReleased) {
		t.Fatalf("expected ErrReleased from reset, got %v", err)
	}
}

func TestSetupRejectsBadInput(t *testing.T) {
	m := testModel(t, devices.VariantDCVoltage)

	d := New(m, Trapezoidal, 0, nil)
	if err := d.Setup(testPF); !errors.Is(err, ssm.ErrInvalidConfiguration) {
		t.Errorf("expected ErrInvalidConfiguration for Ts=0, got %v", err)
	}

	d = New(m, Trapezoidal, 1e-4, ssm.State{1, 2})
	if err := d.Setup(testPF); !errors.Is(err, ssm.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for short x0, got %v", err)
	}

	d = New(m, Trapezoidal, 1e-4, nil)
	if err := d.Setup(testPF); err != nil {
		t.Fatal(err)
	}
	if _, err := d.Step(ssm.Input{1, 0}); !errors.Is(err, ssm.ErrDimensionMismatch) {
		t.Errorf("expected ErrDimensionMismatch for short input, got %v", err)
	}
}

// Holding the equilibrium input must leave the state at x_e under every
// scheme.
func TestSteadyStateHolding(t *testing.T) {
	for _, scheme := range []Scheme{ForwardEuler, Trapezoidal, VirtualDamping} {
		for _, variant := range []int{devices.VariantDCVoltage, devices.VariantDCPower, devices.VariantACOnly} {
			m := testModel(t, variant)
			d := New(m, scheme, 1e-4, nil)
			if err := d.Setup(testPF); err != nil {
				t.Fatalf("%s variant %d: %v", scheme, variant, err)
			}

			eq := d.Equilibrium()
			for i := 0; i < 500; i++ {
				if _, err := d.Step(eq.U); err != nil {
					t.Fatalf("%s variant %d step %d: %v", scheme, variant, i, err)
				}
			}
			drift := d.State().Sub(eq.X).Norm()
			if drift > 1e-8 {
				t.Errorf("%s variant %d: drifted %g from equilibrium", scheme, variant, drift)
			}
		}
	}
}

func TestOutputAtEquilibriumIsPlain(t *testing.T) {
	m := testModel(t, devices.VariantDCVoltage)
	d := New(m, Trapezoidal, 1e-4, nil)
	if err := d.Setup(testPF); err != nil {
		t.Fatal(err)
	}

	eq := d.Equilibrium()
	y, err := d.Output(eq.U)
	if err != nil {
		t.Fatal(err)
	}
	g := m.StateEquation(eq.X, eq.U, ssm.OutputEval)
	for i := range y {
		if math.Abs(y[i]-g[i]) > 1e-9 {
			t.Errorf("y[%d] = %g, plain g = %g", i, y[i], g[i])
		}
	}
	if math.Abs(y[0]-0.5) > 1e-9 {
		t.Errorf("i_d output = %g, want 0.5", y[0])
	}
}

// The feed-through corrections make the trapezoidal output react to an
// input change within the same sample.
func TestTrapezoidalFeedThrough(t *testing.T) {
	m := testModel(t, devices.VariantACOnly)
	d := New(m, Trapezoidal, 1e-4, nil)
	if err := d.Setup(testPF); err != nil {
		t.Fatal(err)
	}

	eq := d.Equilibrium()
	u := eq.U.Clone()
	u[3] += 0.1 // q_ref step

	y, err := d.Output(u)
	if err != nil {
		t.Fatal(err)
	}
	g := m.StateEquation(d.State(), u, ssm.OutputEval)

	diff := 0.0
	for i := range y {
		diff += math.Abs(y[i] - g[i])
	}
	if diff == 0 {
		t.Error("expected feed-through corrections to move the output off g(x,u)")
	}
}

// rk4 integrates the full nonlinear model as the continuous-time reference.
func rk4(m ssm.Model, x ssm.State, u ssm.Input, dt float64) ssm.State {
	n := len(x)
	add := func(a ssm.State, k ssm.State, h float64) ssm.State {
		r := make(ssm.State, n)
		for i := range r {
			r[i] = a[i] + h*k[i]
		}
		return r
	}
	k1 := m.StateEquation(x, u, ssm.Derivative)
	k2 := m.StateEquation(add(x, k1, dt/2), u, ssm.Derivative)
	k3 := m.StateEquation(add(x, k2, dt/2), u, ssm.Derivative)
	k4 := m.StateEquation(add(x, k3, dt), u, ssm.Derivative)
	r := make(ssm.State, n)
	for i := range r {
		r[i] = x[i] + dt/6*(k1[i]+2*k2[i]+2*k3[i]+k4[i])
	}
	return r
}

// Both explicit schemes must converge to the continuous-time trajectory as
// Ts shrinks, the trapezoidal one faster on the linear part.
func TestSchemeConvergence(t *testing.T) {
	const (
		ts       = 1e-5
		steps    = 1000
		qStep    = 0.05
		stepFrom = 100
	)

	ref := func() ssm.State {
		m := testModel(t, devices.VariantACOnly)
		eq, err := m.Equilibrium(testPF)
		if err != nil {
			t.Fatal(err)
		}
		x := eq.X.Clone()
		for i := 0; i < steps; i++ {
			u := eq.U.Clone()
			if i >= stepFrom {
				u[3] += qStep
			}
			x = rk4(m, x, u, ts)
		}
		return x
	}()

	final := func(scheme Scheme) ssm.State {
		m := testModel(t, devices.VariantACOnly)
		d := New(m, scheme, ts, nil)
		if err := d.Setup(testPF); err != nil {
			t.Fatal(err)
		}
		for i := 0; i < steps; i++ {
			u := d.Equilibrium().U.Clone()
			if i >= stepFrom {
				u[3] += qStep
			}
			if err := d.Advance(u); err != nil {
				t.Fatalf("%s step %d: %v", scheme, i, err)
			}
		}
		return d.State()
	}

	// compare the linear part only; the angle is advanced by Euler under
	// every scheme
	linearErr := func(x ssm.State) float64 {
		n := len(x)
		return x[:n-1].Sub(ref[:n-1]).Norm()
	}

	errEuler := linearErr(final(ForwardEuler))
	errTrap := linearErr(final(Trapezoidal))

	if errEuler > 1e-3 {
		t.Errorf("euler error %g, want < 1e-3", errEuler)
	}
	if errTrap > errEuler {
		t.Errorf("trapezoidal error %g exceeds euler error %g", errTrap, errEuler)
	}

	errDamp := linearErr(final(VirtualDamping))
	if errDamp > 1e-2 {
		t.Errorf("virtual damping error %g, want < 1e-2", errDamp)
	}
}

// unstableScalar puts its single pole exactly at 2/Ts, which makes
// I - Ts/2*A singular. Power-of-two constants keep the finite-difference
// Jacobian and the half-step product exact.
type unstableScalar struct{ lambda float64 }

func (s *unstableScalar) Signals() ssm.Signals {
	return ssm.Signals{
		States:  []string{"z", "theta"},
		Inputs:  []string{"u", "aux"},
		Outputs: []string{"z", "aux", "one"},
	}
}

func (s *unstableScalar) Equilibrium(pf ssm.PowerFlow) (ssm.Equilibrium, error) {
	return ssm.Equilibrium{X: ssm.State{0, 0}, U: ssm.Input{0, 0}}, nil
}

func (s *unstableScalar) StateEquation(x ssm.State, u ssm.Input, mode ssm.EvalMode) ssm.State {
	if mode == ssm.OutputEval {
		return ssm.State{x[0], u[1], 1}
	}
	return ssm.State{s.lambda*x[0] + u[0], 0}
}

func TestSetupSingularTrapezoidal(t *testing.T) {
	const ts = 1.0 / 8192
	d := New(&unstableScalar{lambda: 2 / ts}, Trapezoidal, ts, nil)
	if err := d.Setup(ssm.PowerFlow{V: 1, W: 1}); !errors.Is(err, ssm.ErrSingular) {
		t.Fatalf("expected ErrSingular, got %v", err)
	}

	// forward Euler never inverts, so the same model sets up fine
	d = New(&unstableScalar{lambda: 2 / ts}, ForwardEuler, ts, nil)
	if err := d.Setup(ssm.PowerFlow{V: 1, W: 1}); err != nil {
		t.Fatalf("euler setup: %v", err)
	}
}
