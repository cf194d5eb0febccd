package sim

import "github.com/emtlab/gridsig/internal/ssm"

// Source produces the input sample for each step of a run.
type Source interface {
	At(step int, t float64) ssm.Input
}

// Metric accumulates a scalar over a run.
type Metric interface {
	Name() string
	Observe(x ssm.State, u ssm.Input, y ssm.Output, t float64)
	Value() float64
	Reset()
}

// Observer is called once per step with the pre-advance state and the
// sample's input and output.
type Observer interface {
	OnStep(x ssm.State, u ssm.Input, y ssm.Output, t float64)
}

// Config controls a run.
type Config struct {
	Steps         int
	ValidateState bool
}

// Result collects a run's trajectory and metrics.
type Result struct {
	Times      []float64
	Inputs     []ssm.Input
	Outputs    []ssm.Output
	States     []ssm.State
	Metrics    map[string]float64
	Errors     []error
	StepsTaken int
}

// Hold replays a fixed input every step.
type Hold struct{ U ssm.Input }

func (h Hold) At(int, float64) ssm.Input { return h.U }

// StepChange holds Base and adds Delta to one input component from
// AfterStep onwards.
type StepChange struct {
	Base      ssm.Input
	Index     int
	Delta     float64
	AfterStep int
}

func (s StepChange) At(step int, _ float64) ssm.Input {
	u := s.Base.Clone()
	if step >= s.AfterStep && s.Index < len(u) {
		u[s.Index] += s.Delta
	}
	return u
}

// Ramp holds Base and ramps one input component by Rate per second from
// AfterStep onwards.
type Ramp struct {
	Base      ssm.Input
	Index     int
	Rate      float64
	AfterStep int
	Ts        float64
}

func (r Ramp) At(step int, _ float64) ssm.Input {
	u := r.Base.Clone()
	if step >= r.AfterStep && r.Index < len(u) {
		u[r.Index] += r.Rate * float64(step-r.AfterStep) * r.Ts
	}
	return u
}
