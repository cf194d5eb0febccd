package eig

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"

	"github.com/emtlab/gridsig/internal/devices"
	"github.com/emtlab/gridsig/internal/ssm"
)

// Second-order oscillator in companion form: poles at
// -zeta*w0 +/- j*w0*sqrt(1-zeta^2).
func TestModesSecondOrder(t *testing.T) {
	w0 := 2 * math.Pi * 50
	zeta := 0.1
	a := mat.NewDense(2, 2, []float64{
		0, 1,
		-w0 * w0, -2 * zeta * w0,
	})

	modes, err := Modes(a)
	if err != nil {
		t.Fatal(err)
	}
	if len(modes) != 2 {
		t.Fatalf("got %d modes, want 2", len(modes))
	}

	wantRe := -zeta * w0
	wantIm := w0 * math.Sqrt(1-zeta*zeta)
	for _, m := range modes {
		if math.Abs(real(m.RadPerSec)-wantRe) > 1e-6 {
			t.Errorf("real part %g, want %g", real(m.RadPerSec), wantRe)
		}
		if math.Abs(math.Abs(imag(m.RadPerSec))-wantIm) > 1e-6 {
			t.Errorf("imag part %g, want +/-%g", imag(m.RadPerSec), wantIm)
		}
		if math.Abs(imag(m.Hz)-imag(m.RadPerSec)/(2*math.Pi)) > 1e-9 {
			t.Errorf("Hz = %v inconsistent with rad/s = %v", m.Hz, m.RadPerSec)
		}
		if math.Abs(m.Damping-zeta) > 1e-9 {
			t.Errorf("damping %g, want %g", m.Damping, zeta)
		}
	}
}

func TestModesRejectNonSquare(t *testing.T) {
	if _, err := Modes(mat.NewDense(2, 3, nil)); err == nil {
		t.Fatal("expected error for non-square matrix")
	}
}

func TestClassify(t *testing.T) {
	stable := []Mode{{RadPerSec: complex(-1, 3)}, {RadPerSec: complex(-5, 0)}}
	rep := Classify(stable)
	if !rep.Stable {
		t.Error("all left half plane, want stable")
	}
	if rep.Dominant.RadPerSec != complex(-1, 3) {
		t.Errorf("dominant %v, want (-1+3i)", rep.Dominant.RadPerSec)
	}

	unstable := []Mode{{RadPerSec: complex(0.2, 10)}, {RadPerSec: complex(-3, 0)}}
	if Classify(unstable).Stable {
		t.Error("right half plane mode, want unstable")
	}

	if rep := Classify(nil); !rep.Stable {
		t.Error("empty mode set classifies stable")
	}
}

// Sweeping the DC-link integral gain far past nominal destabilizes the
// voltage loop: the sweep must find a sign change in the dominant real
// part.
func TestSweepDCGainCrossesZero(t *testing.T) {
	pf := ssm.PowerFlow{P: 0.5, Q: 0, V: 1.0, W: 1.0}

	base, err := devices.NewGridFollowing(devices.VariantDCVoltage, devices.QuadratureVoltage, pf)
	if err != nil {
		t.Fatal(err)
	}
	nominal := base.Params()["ki_dc"]

	values := make([]float64, 40)
	for i := range values {
		// log spacing from 0.1x to 100x nominal
		frac := float64(i) / float64(len(values)-1)
		values[i] = nominal * math.Pow(10, -1+3*frac)
	}

	pts := Sweep(func(v float64) (ssm.Model, error) {
		m, err := devices.NewGridFollowing(devices.VariantDCVoltage, devices.QuadratureVoltage, pf)
		if err != nil {
			return nil, err
		}
		if err := m.SetParam("ki_dc", v); err != nil {
			return nil, err
		}
		return m, nil
	}, pf, values)

	for i, pt := range pts {
		if pt.Err != nil {
			t.Fatalf("point %d (ki_dc=%g): %v", i, pt.Value, pt.Err)
		}
	}
	// the rigid angle state always contributes an exact zero eigenvalue, so
	// a stable point has MaxReal == 0 rather than < 0
	if pts[0].MaxReal > 0 {
		t.Errorf("nominal/10 already unstable: max real %g", pts[0].MaxReal)
	}
	if pts[len(pts)-1].MaxReal <= 0 {
		t.Errorf("100x nominal still stable: max real %g", pts[len(pts)-1].MaxReal)
	}

	cross := CrossesZero(pts)
	if cross < 1 {
		t.Fatalf("CrossesZero = %d, want a bracketing pair", cross)
	}
	t.Logf("instability between ki_dc=%g and %g", pts[cross-1].Value, pts[cross].Value)
}

func TestSweepPropagatesBuildError(t *testing.T) {
	pts := Sweep(func(v float64) (ssm.Model, error) {
		return nil, ssm.ErrInvalidConfiguration
	}, ssm.PowerFlow{V: 1, W: 1}, []float64{1, 2})
	for _, pt := range pts {
		if pt.Err == nil {
			t.Error("expected build error on every point")
		}
	}
	if CrossesZero(pts) != -1 {
		t.Error("all-error sweep must not report a crossing")
	}
}
