package devices

import (
	"fmt"
	"math"
	"math/cmplx"

	"github.com/emtlab/gridsig/internal/ssm"
)

// GridForming is a droop-controlled grid-forming inverter: the converter
// imposes a voltage magnitude and angle, with P-f and Q-V droop acting on
// low-pass-filtered power measurements. The device frame is aligned with
// the commanded voltage, so the grid voltage appears at a negative load
// angle in it.
type GridForming struct {
	PF   ssm.PowerFlow
	L    float64 // filter inductance, pu
	R    float64 // filter resistance, pu
	Mp   float64 // P-f droop slope, pu frequency per pu power
	Mq   float64 // Q-V droop slope, pu voltage per pu power
	Wc   float64 // power measurement filter bandwidth, rad/s
	BwLP float64 // frequency-tracking filter bandwidth, rad/s
	Wb   float64 // base frequency, rad/s
}

func NewGridForming(pf ssm.PowerFlow) *GridForming {
	return &GridForming{
		PF:   pf,
		L:    0.15,
		R:    0.005,
		Mp:   0.01,
		Mq:   0.05,
		Wc:   2 * math.Pi * 5,
		BwLP: 2 * math.Pi * 50,
		Wb:   2 * math.Pi * 50,
	}
}

func (m *GridForming) Signals() ssm.Signals {
	return ssm.Signals{
		States:  []string{"i_d", "i_q", "p_filt", "q_filt", "w", "theta"},
		Inputs:  []string{"v_d", "v_q", "p_ref", "v_ref"},
		Outputs: []string{"i_d", "i_q", "w"},
	}
}

// Equilibrium back-solves the operating point with a phasor computation:
// the commanded voltage is E = V + (R + jwL)I, the load angle is arg(E),
// and all dq quantities are the terminal phasors rotated into the command
// frame.
func (m *GridForming) Equilibrium(pf ssm.PowerFlow) (ssm.Equilibrium, error) {
	if pf.V == 0 {
		return ssm.Equilibrium{}, fmt.Errorf("%w: zero voltage magnitude", ssm.ErrDomain)
	}

	// terminal-frame phasors, d + jq
	it := complex(pf.P/pf.V, -pf.Q/pf.V)
	vt := complex(pf.V, 0)
	e := vt + complex(m.R, pf.W*m.L)*it

	delta := cmplx.Phase(e)
	rot := cmplx.Exp(complex(0, -delta))
	vdq := vt * rot
	idq := it * rot

	x := ssm.State{real(idq), imag(idq), pf.P, pf.Q, pf.W, pf.Xi + delta}
	u := ssm.Input{real(vdq), imag(vdq), pf.P, cmplx.Abs(e) + m.Mq*pf.Q}
	return ssm.Equilibrium{X: x, U: u, Xi: pf.Xi + delta}, nil
}

func (m *GridForming) StateEquation(x ssm.State, u ssm.Input, mode ssm.EvalMode) ssm.State {
	id, iq, pfilt, qfilt, w := x[0], x[1], x[2], x[3], x[4]
	vd, vq, pref, vref := u[0], u[1], u[2], u[3]

	if mode == ssm.OutputEval {
		return ssm.State{id, iq, w}
	}

	p := vd*id + vq*iq
	q := vq*id - vd*iq

	vcmd := vref - m.Mq*qfilt
	wcmd := m.PF.W + m.Mp*(pref-pfilt)

	f := make(ssm.State, 6)
	f[0] = (m.Wb / m.L) * (vcmd - vd - m.R*id + w*m.L*iq)
	f[1] = (m.Wb / m.L) * (-vq - m.R*iq - w*m.L*id)
	f[2] = m.Wc * (p - pfilt)
	f[3] = m.Wc * (q - qfilt)
	f[4] = m.BwLP * (wcmd - w)
	f[5] = m.Wb * (w - m.PF.W)
	return f
}

func (m *GridForming) Params() map[string]float64 {
	return map[string]float64{
		"l": m.L, "r": m.R, "mp": m.Mp, "mq": m.Mq,
		"w_filter": m.Wc, "bw_lp": m.BwLP, "w_base": m.Wb,
	}
}

func (m *GridForming) SetParam(name string, value float64) error {
	switch name {
	case "l":
		m.L = value
	case "r":
		m.R = value
	case "mp":
		m.Mp = value
	case "mq":
		m.Mq = value
	case "w_filter":
		m.Wc = value
	case "bw_lp":
		m.BwLP = value
	case "w_base":
		m.Wb = value
	default:
		return fmt.Errorf("%w: unknown parameter %q", ssm.ErrInvalidConfiguration, name)
	}
	return nil
}
