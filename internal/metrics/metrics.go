// Package metrics provides run metrics for the simulation driver.
package metrics

import (
	"math"

	"github.com/emtlab/gridsig/internal/ssm"
)

// Deviation accumulates the RMS distance of the state from the equilibrium
// anchor.
type Deviation struct {
	anchor ssm.State
	sum    float64
	n      int
}

func NewDeviation(anchor ssm.State) *Deviation {
	return &Deviation{anchor: anchor.Clone()}
}

func (d *Deviation) Name() string { return "deviation_rms" }

func (d *Deviation) Observe(x ssm.State, _ ssm.Input, _ ssm.Output, _ float64) {
	d.sum += x.Sub(d.anchor).Norm()
	d.n++
}

func (d *Deviation) Value() float64 {
	if d.n == 0 {
		return 0
	}
	return d.sum / float64(d.n)
}

func (d *Deviation) Reset() {
	d.sum = 0
	d.n = 0
}

// Stability counts samples in which any state magnitude exceeds a
// threshold.
type Stability struct {
	threshold  float64
	violations int
	samples    int
}

func NewStability(threshold float64) *Stability {
	return &Stability{threshold: threshold}
}

func (s *Stability) Name() string { return "stability" }

func (s *Stability) Observe(x ssm.State, _ ssm.Input, _ ssm.Output, _ float64) {
	s.samples++
	for _, v := range x {
		if math.Abs(v) > s.threshold {
			s.violations++
			break
		}
	}
}

func (s *Stability) Value() float64 {
	if s.samples == 0 {
		return 1.0
	}
	return 1.0 - float64(s.violations)/float64(s.samples)
}

func (s *Stability) Reset() {
	s.violations = 0
	s.samples = 0
}

// Effort accumulates the energy of the input perturbation away from the
// equilibrium input.
type Effort struct {
	anchor ssm.Input
	sum    float64
}

func NewEffort(anchor ssm.Input) *Effort {
	return &Effort{anchor: anchor.Clone()}
}

func (e *Effort) Name() string { return "input_effort" }

func (e *Effort) Observe(_ ssm.State, u ssm.Input, _ ssm.Output, _ float64) {
	for i := range u {
		if i < len(e.anchor) {
			d := u[i] - e.anchor[i]
			e.sum += d * d
		}
	}
}

func (e *Effort) Value() float64 { return e.sum }

func (e *Effort) Reset() { e.sum = 0 }
