package devices

import (
	"fmt"
	"math"

	"github.com/emtlab/gridsig/internal/ssm"
)

// DC-link variants of the grid-following inverter.
const (
	// VariantDCVoltage closes a PI loop on the DC-link voltage; the loop
	// output is the d-axis current reference.
	VariantDCVoltage = 1
	// VariantDCPower feeds the commanded power through an uncontrolled
	// DC link. The DC voltage state is a pure integrator of the power
	// imbalance.
	VariantDCPower = 2
	// VariantACOnly has no DC-link state; current references come straight
	// from the power commands.
	VariantACOnly = 3
)

// Detector selects the PLL error-detector mode. The mode is a fixed
// configuration choice, not runtime-switchable.
type Detector int

const (
	// QuadratureVoltage uses the normalized q-axis voltage (default).
	QuadratureVoltage Detector = iota
	// PhaseAngle uses atan2(v_q, v_d).
	PhaseAngle
	// ReactivePower uses the normalized reactive-power mismatch.
	ReactivePower
)

func ParseDetector(s string) (Detector, error) {
	switch s {
	case "", "quadrature":
		return QuadratureVoltage, nil
	case "phase":
		return PhaseAngle, nil
	case "reactive":
		return ReactivePower, nil
	}
	return 0, fmt.Errorf("%w: unknown PLL detector %q", ssm.ErrInvalidConfiguration, s)
}

func (d Detector) String() string {
	switch d {
	case QuadratureVoltage:
		return "quadrature"
	case PhaseAngle:
		return "phase"
	case ReactivePower:
		return "reactive"
	}
	return "unknown"
}

// GridFollowing is the reference grid-following inverter model: dq current
// control behind an RL filter, an SRF-PLL with a low-pass frequency
// estimate, and one of three DC-link variants.
//
// State order ends in (eps_pll, w, theta); the DC-link states sit ahead of
// the PLL tail so the angle is always the final state.
type GridFollowing struct {
	Variant  int
	Det      Detector
	PF       ssm.PowerFlow
	L        float64 // filter inductance, pu
	R        float64 // filter resistance, pu
	Cdc      float64 // DC-link capacitance, pu-s
	VdcRef   float64 // rated DC voltage, pu
	BwCC     float64 // current-loop bandwidth, rad/s
	BwPLL    float64 // PLL bandwidth, rad/s
	BwDC     float64 // DC-voltage-loop bandwidth, rad/s
	BwLP     float64 // frequency-estimate filter bandwidth, rad/s
	Wb       float64 // base frequency, rad/s
	KiDCOver float64 // explicit DC-loop integral gain; 0 derives it from BwDC
}

// NewGridFollowing returns a grid-following inverter with typical per-unit
// parameters. The variant must be one of the Variant* codes.
func NewGridFollowing(variant int, det Detector, pf ssm.PowerFlow) (*GridFollowing, error) {
	switch variant {
	case VariantDCVoltage, VariantDCPower, VariantACOnly:
	default:
		return nil, fmt.Errorf("%w: unknown grid-following variant %d", ssm.ErrInvalidConfiguration, variant)
	}
	return &GridFollowing{
		Variant: variant,
		Det:     det,
		PF:      pf,
		L:       0.15,
		R:       0.005,
		Cdc:     0.2,
		VdcRef:  1.0,
		BwCC:    2 * math.Pi * 300,
		BwPLL:   2 * math.Pi * 20,
		BwDC:    2 * math.Pi * 30,
		BwLP:    2 * math.Pi * 100,
		Wb:      2 * math.Pi * 50,
	}, nil
}

type gflGains struct {
	kpCC, kiCC   float64
	kpDC, kiDC   float64
	kpPLL, kiPLL float64
}

func (m *GridFollowing) gains() gflGains {
	g := gflGains{
		kpCC:  m.BwCC * m.L / m.Wb,
		kpDC:  m.BwDC * m.Cdc,
		kpPLL: m.BwPLL / m.Wb,
	}
	g.kiCC = g.kpCC * m.BwCC / 4
	g.kiDC = g.kpDC * m.BwDC / 4
	g.kiPLL = g.kpPLL * m.BwPLL / 4
	if m.KiDCOver != 0 {
		g.kiDC = m.KiDCOver
	}
	return g
}

func (m *GridFollowing) Signals() ssm.Signals {
	states := []string{"i_d", "i_q", "gamma_d", "gamma_q"}
	outputs := []string{"i_d", "i_q", "w"}
	switch m.Variant {
	case VariantDCVoltage:
		states = append(states, "v_dc", "zeta_dc")
		outputs = append(outputs, "v_dc")
	case VariantDCPower:
		states = append(states, "v_dc")
		outputs = append(outputs, "v_dc")
	}
	states = append(states, "eps_pll", "w", "theta")
	return ssm.Signals{
		States:  states,
		Inputs:  []string{"v_d", "v_q", "p_ref", "q_ref"},
		Outputs: outputs,
	}
}

// Equilibrium back-solves the operating point from the power-flow spec by
// closed-form dq decomposition: i_d = P/V, i_q = -Q/V, then each integrator
// state so its steady output matches the required forcing term.
func (m *GridFollowing) Equilibrium(pf ssm.PowerFlow) (ssm.Equilibrium, error) {
	if pf.V == 0 {
		return ssm.Equilibrium{}, fmt.Errorf("%w: zero voltage magnitude", ssm.ErrDomain)
	}
	g := m.gains()

	id := pf.P / pf.V
	iq := -pf.Q / pf.V

	x := ssm.State{id, iq, m.R * id / g.kiCC, m.R * iq / g.kiCC}
	switch m.Variant {
	case VariantDCVoltage:
		x = append(x, m.VdcRef, id/g.kiDC)
	case VariantDCPower:
		x = append(x, m.VdcRef)
	}
	x = append(x, 0, pf.W, pf.Xi)

	u := ssm.Input{pf.V, 0, pf.P, pf.Q}
	return ssm.Equilibrium{X: x, U: u, Xi: pf.Xi}, nil
}

func (m *GridFollowing) StateEquation(x ssm.State, u ssm.Input, mode ssm.EvalMode) ssm.State {
	g := m.gains()
	n := len(x)

	id, iq := x[0], x[1]
	gd, gq := x[2], x[3]
	eps, w := x[n-3], x[n-2]

	vd, vq, pref, qref := u[0], u[1], u[2], u[3]
	vmag := math.Hypot(vd, vq)

	vdc := 0.0
	if m.Variant != VariantACOnly {
		vdc = x[4]
	}

	if mode == ssm.OutputEval {
		y := ssm.State{id, iq, w}
		if m.Variant != VariantACOnly {
			y = append(y, vdc)
		}
		return y
	}

	// current references
	iqRef := -qref / vmag
	var idRef float64
	switch m.Variant {
	case VariantDCVoltage:
		zdc := x[5]
		idRef = g.kpDC*(vdc-m.VdcRef) + g.kiDC*zdc
	default:
		idRef = pref / vmag
	}

	// PLL error detector
	var e float64
	switch m.Det {
	case PhaseAngle:
		e = math.Atan2(vq, vd)
	case ReactivePower:
		e = (vq*id - vd*iq - qref) / vmag
	default:
		e = vq / vmag
	}

	pac := vd*id + vq*iq

	f := make(ssm.State, n)
	f[0] = (m.Wb / m.L) * (g.kpCC*(idRef-id) + g.kiCC*gd - m.R*id)
	f[1] = (m.Wb / m.L) * (g.kpCC*(iqRef-iq) + g.kiCC*gq - m.R*iq)
	f[2] = idRef - id
	f[3] = iqRef - iq
	switch m.Variant {
	case VariantDCVoltage:
		f[4] = (pref - pac) / (m.Cdc * vdc)
		f[5] = vdc - m.VdcRef
	case VariantDCPower:
		f[4] = (pref - pac) / (m.Cdc * vdc)
	}
	f[n-3] = e
	f[n-2] = m.BwLP * (m.PF.W + g.kpPLL*e + g.kiPLL*eps - w)
	f[n-1] = m.Wb * (w - m.PF.W)
	return f
}

func (m *GridFollowing) Params() map[string]float64 {
	g := m.gains()
	return map[string]float64{
		"l": m.L, "r": m.R, "c_dc": m.Cdc, "v_dc_ref": m.VdcRef,
		"bw_cc": m.BwCC, "bw_pll": m.BwPLL, "bw_dc": m.BwDC, "bw_lp": m.BwLP,
		"w_base": m.Wb, "ki_dc": g.kiDC,
	}
}

func (m *GridFollowing) SetParam(name string, value float64) error {
	switch name {
	case "l":
		m.L = value
	case "r":
		m.R = value
	case "c_dc":
		m.Cdc = value
	case "v_dc_ref":
		m.VdcRef = value
	case "bw_cc":
		m.BwCC = value
	case "bw_pll":
		m.BwPLL = value
	case "bw_dc":
		m.BwDC = value
	case "bw_lp":
		m.BwLP = value
	case "w_base":
		m.Wb = value
	case "ki_dc":
		m.KiDCOver = value
	default:
		return fmt.Errorf("%w: unknown parameter %q", ssm.ErrInvalidConfiguration, name)
	}
	return nil
}
