package eig

import (
	"sync"

	"github.com/emtlab/gridsig/internal/linearize"
	"github.com/emtlab/gridsig/internal/ssm"
)

// SweepPoint is the mode set at one value of a swept parameter.
type SweepPoint struct {
	Value   float64
	Modes   []Mode
	MaxReal float64
	Err     error
}

// Sweep re-equilibrates, re-linearizes and recomputes modes for each value
// of a parameter. build must return a freshly configured model for the
// given value. Points are independent, so they run in parallel; results
// keep the order of values.
func Sweep(build func(value float64) (ssm.Model, error), pf ssm.PowerFlow, values []float64) []SweepPoint {
	points := make([]SweepPoint, len(values))

	var wg sync.WaitGroup
	for i, v := range values {
		wg.Add(1)
		go func(i int, v float64) {
			defer wg.Done()
			points[i] = sweepOne(build, pf, v)
		}(i, v)
	}
	wg.Wait()
	return points
}

func sweepOne(build func(float64) (ssm.Model, error), pf ssm.PowerFlow, v float64) SweepPoint {
	pt := SweepPoint{Value: v}

	m, err := build(v)
	if err != nil {
		pt.Err = err
		return pt
	}
	eq, err := m.Equilibrium(pf)
	if err != nil {
		pt.Err = err
		return pt
	}
	lin, err := linearize.AtEquilibrium(m, eq)
	if err != nil {
		pt.Err = err
		return pt
	}
	modes, err := Modes(lin.A)
	if err != nil {
		pt.Err = err
		return pt
	}

	pt.Modes = modes
	pt.MaxReal = real(modes[0].RadPerSec)
	return pt
}

// CrossesZero reports the first pair of adjacent sweep points whose
// dominant real parts bracket zero, or -1 if the sweep never crosses.
func CrossesZero(points []SweepPoint) int {
	for i := 1; i < len(points); i++ {
		if points[i-1].Err != nil || points[i].Err != nil {
			continue
		}
		if (points[i-1].MaxReal <= 0) != (points[i].MaxReal <= 0) {
			return i
		}
	}
	return -1
}
