// Package linearize computes first-order (Jacobian) approximations of a
// device model around an anchor point, producing the continuous-time
// matrices A, B, C, D and the trapezoidal discretization operator.
package linearize

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/emtlab/gridsig/internal/ssm"
)

// LinearModel holds the linearized state-space matrices at an anchor point:
//
//	dx/dt = A x + B u
//	y     = C x + D u
type LinearModel struct {
	A *mat.Dense // n x n
	B *mat.Dense // n x m
	C *mat.Dense // p x n
	D *mat.Dense // p x m
}

// step size for central differences, scaled by the magnitude of the
// perturbed entry
const fdStep = 1e-6

// Linearize evaluates the Jacobians of the model's state and output
// equations at (x, u) by central finite differences.
func Linearize(m ssm.Model, x ssm.State, u ssm.Input) (*LinearModel, error) {
	sig := m.Signals()
	n, nu, ny := len(sig.States), len(sig.Inputs), len(sig.Outputs)
	if len(x) != n || len(u) != nu {
		return nil, fmt.Errorf("%w: anchor point is %dx%d, signal list %dx%d",
			ssm.ErrDimensionMismatch, len(x), len(u), n, nu)
	}

	lm := &LinearModel{
		A: mat.NewDense(n, n, nil),
		B: mat.NewDense(n, nu, nil),
		C: mat.NewDense(ny, n, nil),
		D: mat.NewDense(ny, nu, nil),
	}

	// state Jacobians, column j = d(f|g)/dx_j
	for j := 0; j < n; j++ {
		h := fdStep * (1 + abs(x[j]))
		xp, xm := x.Clone(), x.Clone()
		xp[j] += h
		xm[j] -= h

		fp := m.StateEquation(xp, u, ssm.Derivative)
		fm := m.StateEquation(xm, u, ssm.Derivative)
		for i := 0; i < n; i++ {
			lm.A.Set(i, j, (fp[i]-fm[i])/(2*h))
		}

		gp := m.StateEquation(xp, u, ssm.OutputEval)
		gm := m.StateEquation(xm, u, ssm.OutputEval)
		for i := 0; i < ny; i++ {
			lm.C.Set(i, j, (gp[i]-gm[i])/(2*h))
		}
	}

	// input Jacobians, column j = d(f|g)/du_j
	for j := 0; j < nu; j++ {
		h := fdStep * (1 + abs(u[j]))
		up, um := u.Clone(), u.Clone()
		up[j] += h
		um[j] -= h

		fp := m.StateEquation(x, up, ssm.Derivative)
		fm := m.StateEquation(x, um, ssm.Derivative)
		for i := 0; i < n; i++ {
			lm.B.Set(i, j, (fp[i]-fm[i])/(2*h))
		}

		gp := m.StateEquation(x, up, ssm.OutputEval)
		gm := m.StateEquation(x, um, ssm.OutputEval)
		for i := 0; i < ny; i++ {
			lm.D.Set(i, j, (gp[i]-gm[i])/(2*h))
		}
	}

	return lm, nil
}

// AtEquilibrium linearizes around a previously computed equilibrium.
func AtEquilibrium(m ssm.Model, eq ssm.Equilibrium) (*LinearModel, error) {
	return Linearize(m, eq.X, eq.U)
}

// Trapezoid computes W = (I - (Ts/2) A)^-1, the implicit half-step operator
// of the trapezoidal scheme. A singular operand surfaces ssm.ErrSingular:
// masking it would corrupt every subsequent step.
func Trapezoid(A *mat.Dense, ts float64) (*mat.Dense, error) {
	n, _ := A.Dims()
	m := mat.NewDense(n, n, nil)
	m.Scale(-ts/2, A)
	for i := 0; i < n; i++ {
		m.Set(i, i, m.At(i, i)+1)
	}

	w := mat.NewDense(n, n, nil)
	if err := w.Inverse(m); err != nil {
		return nil, fmt.Errorf("%w: Ts=%g: %v", ssm.ErrSingular, ts, err)
	}
	return w, nil
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}
