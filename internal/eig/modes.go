// Package eig extracts the small-signal modes of a linearized device and
// classifies stability: the system is unstable iff any eigenvalue of A has
// a positive real part.
package eig

import (
	"fmt"
	"math"
	"math/cmplx"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// Mode is one eigenvalue of the linearized dynamics, in rad/s and Hz, with
// its damping ratio.
type Mode struct {
	RadPerSec complex128
	Hz        complex128
	Damping   float64
}

// Modes computes the eigenvalues of A, sorted by descending real part.
func Modes(a *mat.Dense) ([]Mode, error) {
	r, c := a.Dims()
	if r != c {
		return nil, fmt.Errorf("eig: A is %dx%d, need square", r, c)
	}

	var ed mat.Eigen
	if ok := ed.Factorize(a, mat.EigenNone); !ok {
		return nil, fmt.Errorf("eig: eigendecomposition of %dx%d matrix failed", r, c)
	}

	vals := ed.Values(nil)
	modes := make([]Mode, len(vals))
	for i, v := range vals {
		m := Mode{
			RadPerSec: v,
			Hz:        v / complex(2*math.Pi, 0),
		}
		if mag := cmplx.Abs(v); mag > 0 {
			m.Damping = -real(v) / mag
		}
		modes[i] = m
	}

	sort.Slice(modes, func(i, j int) bool {
		return real(modes[i].RadPerSec) > real(modes[j].RadPerSec)
	})
	return modes, nil
}

// Report is the stability classification of a mode set.
type Report struct {
	Modes    []Mode
	Stable   bool
	Dominant Mode // largest real part
}

// Classify marks the system unstable if any real part is positive.
func Classify(modes []Mode) Report {
	rep := Report{Modes: modes, Stable: true}
	if len(modes) == 0 {
		return rep
	}
	rep.Dominant = modes[0]
	for _, m := range modes {
		if real(m.RadPerSec) > 0 {
			rep.Stable = false
			break
		}
	}
	return rep
}

// Window is a display-only zoom region for plotting collaborators. It is
// never used in computation.
type Window struct {
	XMin, XMax float64
	YMin, YMax float64
}
