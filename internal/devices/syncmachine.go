package devices

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/emtlab/gridsig/internal/ssm"
)

// SyncMachine is a one-axis (flux-decay) synchronous machine: transient
// q-axis EMF behind x_d', the swing equation, and algebraic stator
// equations with stator resistance neglected.
type SyncMachine struct {
	PF  ssm.PowerFlow
	Xd  float64 // d-axis synchronous reactance, pu
	Xq  float64 // q-axis synchronous reactance, pu
	Xdt float64 // d-axis transient reactance, pu
	Td0 float64 // open-circuit transient time constant, s
	H   float64 // inertia constant, s
	D   float64 // damping coefficient, pu
	Wb  float64 // base frequency, rad/s
}

func NewSyncMachine(pf ssm.PowerFlow) *SyncMachine {
	return &SyncMachine{
		PF:  pf,
		Xd:  1.81,
		Xq:  1.76,
		Xdt: 0.3,
		Td0: 8.0,
		H:   3.5,
		D:   2.0,
		Wb:  2 * math.Pi * 50,
	}
}

func (m *SyncMachine) Signals() ssm.Signals {
	return ssm.Signals{
		States:  []string{"e_q_t", "w", "theta"},
		Inputs:  []string{"v_d", "v_q", "p_m", "e_f"},
		Outputs: []string{"i_d", "i_q", "w"},
	}
}

// stator algebra in the rotor frame: v_d = x_q i_q, v_q = e_q' - x_d' i_d
func (m *SyncMachine) currents(eqt, vd, vq float64) (id, iq float64) {
	return (eqt - vq) / m.Xdt, vd / m.Xq
}

// Equilibrium uses the classic phasor initialization: the rotor angle is
// the argument of V + jx_q I, and all dq quantities follow by rotating the
// terminal phasors into the rotor frame.
func (m *SyncMachine) Equilibrium(pf ssm.PowerFlow) (ssm.Equilibrium, error) {
	if pf.V == 0 {
		return ssm.Equilibrium{}, fmt.Errorf("%w: zero voltage magnitude", ssm.ErrDomain)
	}

	// terminal-frame phasors, d + jq
	it := complex(pf.P/pf.V, -pf.Q/pf.V)
	vt := complex(pf.V, 0)
	eq := vt + complex(0, m.Xq)*it

	// the EMF phasor lies on the q axis, a quarter turn ahead of d
	delta := cmplx.Phase(eq) - math.Pi/2
	rot := cmplx.Exp(complex(0, -delta))
	vdq := vt * rot
	idq := it * rot

	vd, vq := real(vdq), imag(vdq)
	id := real(idq)

	eqt := vq + m.Xdt*id
	ef := eqt + (m.Xd-m.Xdt)*id
	pm := pf.P

	x := ssm.State{eqt, pf.W, pf.Xi + delta}
	u := ssm.Input{vd, vq, pm, ef}
	return ssm.Equilibrium{X: x, U: u, Xi: pf.Xi + delta}, nil
}

func (m *SyncMachine) StateEquation(x ssm.State, u ssm.Input, mode ssm.EvalMode) ssm.State {
	eqt, w := x[0], x[1]
	vd, vq, pm, ef := u[0], u[1], u[2], u[3]

	id, iq := m.currents(eqt, vd, vq)

	if mode == ssm.OutputEval {
		return ssm.State{id, iq, w}
	}

	pe := vd*id + vq*iq

	f := make(ssm.State, 3)
	f[0] = (ef - eqt - (m.Xd-m.Xdt)*id) / m.Td0
	f[1] = (pm - pe - m.D*(w-m.PF.W)) / (2 * m.H)
	f[2] = m.Wb * (w - m.PF.W)
	return f
}

func (m *SyncMachine) Params() map[string]float64 {
	return map[string]float64{
		"xd": m.Xd, "xq": m.Xq, "xd_t": m.Xdt,
		"td0": m.Td0, "h": m.H, "d": m.D, "w_base": m.Wb,
	}
}

func (m *SyncMachine) SetParam(name string, value float64) error {
	switch name {
	case "xd":
		m.Xd = value
	case "xq":
		m.Xq = value
	case "xd_t":
		m.Xdt = value
	case "td0":
		m.Td0 = value
	case "h":
		m.H = value
	case "d":
		m.D = value
	case "w_base":
		m.Wb = value
	default:
		return fmt.Errorf("%w: unknown parameter %q", ssm.ErrInvalidConfiguration, name)
	}
	return nil
}
