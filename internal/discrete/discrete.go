// Package discrete advances a device model in discrete time. One sample
// step uses a selectable integration scheme; the trapezoidal and
// virtual-damping schemes split the state vector, stepping the first n-1
// components through a linearized implicit law and the final (angle)
// component through plain Forward Euler on the full nonlinear equation.
// Blending the angle into the implicit part would double count the
// integration of frequency into angle.
package discrete

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/emtlab/gridsig/internal/linearize"
	"github.com/emtlab/gridsig/internal/ssm"
)

// Scheme is the integration scheme, chosen once at configuration time.
type Scheme int

const (
	// Trapezoidal is the default: implicit trapezoidal law linearized
	// around the equilibrium anchor, with feed-through-corrected output.
	Trapezoidal Scheme = iota
	// ForwardEuler is explicit and only stable for Ts small against the
	// fastest device pole.
	ForwardEuler
	// VirtualDamping re-linearizes at the current state every step and
	// advances the linear part with the previous input only, trading
	// accuracy for an Euler-cost stability margin.
	VirtualDamping
)

func ParseScheme(s string) (Scheme, error) {
	switch s {
	case "", "trapezoidal":
		return Trapezoidal, nil
	case "euler":
		return ForwardEuler, nil
	case "vdamp":
		return VirtualDamping, nil
	}
	return 0, fmt.Errorf("%w: unknown scheme %q", ssm.ErrInvalidConfiguration, s)
}

func (s Scheme) String() string {
	switch s {
	case Trapezoidal:
		return "trapezoidal"
	case ForwardEuler:
		return "euler"
	case VirtualDamping:
		return "vdamp"
	}
	return "unknown"
}

type phase int

const (
	uninitialized phase = iota
	ready
	released
)

// Discretizer owns one device's discrete state and advances it one sample
// period at a time. Lifecycle: Setup -> {Output|Advance|Step}* -> Release,
// with Reset allowed while ready. Not safe for concurrent use; distinct
// devices may be stepped in parallel.
type Discretizer struct {
	model  ssm.Model
	scheme Scheme
	ts     float64

	eq  ssm.Equilibrium
	lin *linearize.LinearModel
	w   *mat.Dense

	x     ssm.State // discrete state
	x0    ssm.State // reset value
	xk    ssm.State // state retained from the previous step
	uk    ssm.Input // input retained from the previous step
	phase phase
	steps int
}

// New wires a discretizer to a model. x0 overrides the reset state; nil
// means reset to the equilibrium.
func New(model ssm.Model, scheme Scheme, ts float64, x0 ssm.State) *Discretizer {
	return &Discretizer{model: model, scheme: scheme, ts: ts, x0: x0}
}

// Setup computes the equilibrium, verifies the signal contract, linearizes
// around the anchor and initializes (x_k, u_k) = (x_e, u_e).
func (d *Discretizer) Setup(pf ssm.PowerFlow) error {
	if d.phase == released {
		return ssm.ErrReleased
	}
	if d.ts <= 0 {
		return fmt.Errorf("%w: sample period %g", ssm.ErrInvalidConfiguration, d.ts)
	}

	eq, err := d.model.Equilibrium(pf)
	if err != nil {
		return err
	}
	if err := ssm.Verify(d.model, eq); err != nil {
		return err
	}
	if d.x0 != nil && len(d.x0) != len(eq.X) {
		return fmt.Errorf("%w: initial state has %d entries, model %d",
			ssm.ErrDimensionMismatch, len(d.x0), len(eq.X))
	}

	lin, err := linearize.AtEquilibrium(d.model, eq)
	if err != nil {
		return err
	}
	// only the trapezoidal scheme keeps the anchor factorization; virtual
	// damping rebuilds it from the current state on every advance
	var w *mat.Dense
	if d.scheme == Trapezoidal {
		w, err = linearize.Trapezoid(lin.A, d.ts)
		if err != nil {
			return err
		}
	}

	d.eq = eq
	d.lin = lin
	d.w = w
	if d.x0 == nil {
		d.x0 = eq.X.Clone()
	}
	d.x = d.x0.Clone()
	d.xk = eq.X.Clone()
	d.uk = eq.U.Clone()
	d.steps = 0
	d.phase = ready
	return nil
}

// Output computes the output for the current sample, before the state is
// advanced. Under the trapezoidal scheme the plain evaluation g(x,u) is
// corrected by two feed-through terms, (Ts/2)*C*W*B*(u-u_k) and
// Ts*C*W*f(x,u_k); without them the output lags a true implicit
// trapezoidal integrator.
func (d *Discretizer) Output(u ssm.Input) (ssm.Output, error) {
	if err := d.ensureReady(u); err != nil {
		return nil, err
	}

	g := d.model.StateEquation(d.x, u, ssm.OutputEval)
	y := ssm.Output(g).Clone()
	if d.scheme != Trapezoidal {
		return y, nil
	}

	cw := new(mat.Dense)
	cw.Mul(d.lin.C, d.w)

	du := make([]float64, len(u))
	for i := range u {
		du[i] = u[i] - d.uk[i]
	}
	var bdu mat.VecDense
	bdu.MulVec(d.lin.B, mat.NewVecDense(len(du), du))
	var feed mat.VecDense
	feed.MulVec(cw, &bdu)

	f := d.model.StateEquation(d.x, d.uk, ssm.Derivative)
	var cwf mat.VecDense
	cwf.MulVec(cw, mat.NewVecDense(len(f), f))

	for i := range y {
		y[i] += d.ts/2*feed.AtVec(i) + d.ts*cwf.AtVec(i)
	}
	return y, nil
}

// Advance consumes one input sample and moves the discrete state one sample
// period forward. The retained input u_k becomes u afterwards.
func (d *Discretizer) Advance(u ssm.Input) error {
	if err := d.ensureReady(u); err != nil {
		return err
	}

	n := len(d.x)
	next := d.x.Clone()

	switch d.scheme {
	case ForwardEuler:
		f := d.model.StateEquation(d.x, u, ssm.Derivative)
		for i := 0; i < n; i++ {
			next[i] = d.x[i] + d.ts*f[i]
		}

	case Trapezoidal:
		// x+ = x + W*Ts*(f(x,u_k) + B*(u-u_k)/2) for the linear part
		f := d.model.StateEquation(d.x, d.uk, ssm.Derivative)
		du := make([]float64, len(u))
		for i := range u {
			du[i] = u[i] - d.uk[i]
		}
		var bdu mat.VecDense
		bdu.MulVec(d.lin.B, mat.NewVecDense(len(du), du))

		rhs := make([]float64, n)
		for i := 0; i < n; i++ {
			rhs[i] = d.ts * (f[i] + bdu.AtVec(i)/2)
		}
		var corr mat.VecDense
		corr.MulVec(d.w, mat.NewVecDense(n, rhs))

		for i := 0; i < n-1; i++ {
			next[i] = d.x[i] + corr.AtVec(i)
		}
		fe := d.model.StateEquation(d.x, u, ssm.Derivative)
		next[n-1] = d.x[n-1] + d.ts*fe[n-1]

	case VirtualDamping:
		// re-linearize at the current state, then advance with the
		// previous input only
		lin, err := linearize.Linearize(d.model, d.x, d.uk)
		if err != nil {
			return d.stepErr(err)
		}
		w, err := linearize.Trapezoid(lin.A, d.ts)
		if err != nil {
			return d.stepErr(err)
		}
		d.lin = lin
		d.w = w

		f := d.model.StateEquation(d.x, d.uk, ssm.Derivative)
		rhs := make([]float64, n)
		for i := 0; i < n; i++ {
			rhs[i] = d.ts * f[i]
		}
		var corr mat.VecDense
		corr.MulVec(d.w, mat.NewVecDense(n, rhs))

		for i := 0; i < n-1; i++ {
			next[i] = d.x[i] + corr.AtVec(i)
		}
		fe := d.model.StateEquation(d.x, u, ssm.Derivative)
		next[n-1] = d.x[n-1] + d.ts*fe[n-1]

	default:
		return fmt.Errorf("%w: scheme %d", ssm.ErrInvalidConfiguration, int(d.scheme))
	}

	d.xk = d.x
	d.x = next
	d.uk = u.Clone()
	d.steps++
	return nil
}

// Step computes the sample output, then advances the state.
func (d *Discretizer) Step(u ssm.Input) (ssm.Output, error) {
	y, err := d.Output(u)
	if err != nil {
		return nil, err
	}
	if err := d.Advance(u); err != nil {
		return nil, err
	}
	return y, nil
}

// Reset restores the discrete state to the configured initial state and
// the retained pair to the equilibrium. The anchor linearization is kept.
func (d *Discretizer) Reset() error {
	if d.phase == released {
		return ssm.ErrReleased
	}
	if d.phase != ready {
		return ssm.ErrNotReady
	}
	d.x = d.x0.Clone()
	d.xk = d.eq.X.Clone()
	d.uk = d.eq.U.Clone()
	d.steps = 0
	return nil
}

// Release ends the lifecycle; every later call fails with ErrReleased.
func (d *Discretizer) Release() {
	d.phase = released
	d.x, d.xk, d.uk = nil, nil, nil
	d.lin, d.w = nil, nil
}

// State returns a copy of the discrete state for diagnostics.
func (d *Discretizer) State() ssm.State { return d.x.Clone() }

// Equilibrium returns the anchor point computed at setup.
func (d *Discretizer) Equilibrium() ssm.Equilibrium { return d.eq }

// Linear returns the current linearization (the setup anchor for the
// trapezoidal and Euler schemes, the latest step for virtual damping).
func (d *Discretizer) Linear() *linearize.LinearModel { return d.lin }

// Steps returns the number of advances since setup or the last reset.
func (d *Discretizer) Steps() int { return d.steps }

// Ts returns the sample period.
func (d *Discretizer) Ts() float64 { return d.ts }

// Model returns the wired device model.
func (d *Discretizer) Model() ssm.Model { return d.model }

func (d *Discretizer) ensureReady(u ssm.Input) error {
	switch d.phase {
	case released:
		return ssm.ErrReleased
	case uninitialized:
		return ssm.ErrNotReady
	}
	if len(u) != len(d.uk) {
		return fmt.Errorf("%w: input has %d entries, model %d",
			ssm.ErrDimensionMismatch, len(u), len(d.uk))
	}
	return nil
}

func (d *Discretizer) stepErr(err error) error {
	return &ssm.StepError{Step: d.steps, Time: float64(d.steps) * d.ts, Wrapped: err}
}
