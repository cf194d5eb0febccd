// Package sim drives a discretized device through a closed-loop run,
// collecting trajectories and metrics. Steps within one device are strictly
// sequential; distinct devices may be run in parallel.
package sim

import (
	"context"
	"fmt"

	"github.com/emtlab/gridsig/internal/discrete"
	"github.com/emtlab/gridsig/internal/ssm"
)

type Runner struct {
	disc      *discrete.Discretizer
	metrics   []Metric
	observers []Observer
}

func New(disc *discrete.Discretizer) *Runner {
	return &Runner{disc: disc}
}

func (r *Runner) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

// Run steps the device cfg.Steps times, feeding it inputs from src.
func (r *Runner) Run(ctx context.Context, src Source, cfg Config) (*Result, error) {
	if cfg.Steps <= 0 {
		return nil, fmt.Errorf("steps must be positive, got %d", cfg.Steps)
	}

	ts := r.disc.Ts()
	result := &Result{
		Times:   make([]float64, 0, cfg.Steps),
		Inputs:  make([]ssm.Input, 0, cfg.Steps),
		Outputs: make([]ssm.Output, 0, cfg.Steps),
		States:  make([]ssm.State, 0, cfg.Steps),
		Metrics: make(map[string]float64),
	}

	for _, m := range r.metrics {
		m.Reset()
	}

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			return result, ctx.Err()
		default:
		}

		t := float64(i) * ts
		u := src.At(i, t)
		x := r.disc.State()

		y, err := r.disc.Step(u)
		if err != nil {
			result.Errors = append(result.Errors,
				&ssm.StepError{Step: i, Time: t, Wrapped: err})
			break
		}

		for _, m := range r.metrics {
			m.Observe(x, u, y, t)
		}
		for _, obs := range r.observers {
			obs.OnStep(x, u, y, t)
		}

		if cfg.ValidateState && !r.disc.State().IsValid() {
			result.Errors = append(result.Errors,
				&ssm.StepError{Step: i, Time: t, Wrapped: fmt.Errorf("invalid state (NaN/Inf)")})
			break
		}

		result.Times = append(result.Times, t)
		result.Inputs = append(result.Inputs, u.Clone())
		result.Outputs = append(result.Outputs, y)
		result.States = append(result.States, x)
		result.StepsTaken++
	}

	for _, m := range r.metrics {
		result.Metrics[m.Name()] = m.Value()
	}
	return result, nil
}

// Output returns the series of one output component across a result.
func (res *Result) Output(idx int) []float64 {
	series := make([]float64, len(res.Outputs))
	for i, y := range res.Outputs {
		if idx < len(y) {
			series[i] = y[idx]
		}
	}
	return series
}
