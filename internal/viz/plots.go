// Package viz renders terminal plots and styled reports for runs and
// stability sweeps.
package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/emtlab/gridsig/internal/eig"
)

// Trace plots one signal series against step time.
func Trace(series []float64, caption string, height int) string {
	if len(series) == 0 {
		return ""
	}
	return asciigraph.Plot(series,
		asciigraph.Height(height),
		asciigraph.Caption(caption),
	)
}

// Downsample keeps every k-th sample so long runs fit a terminal width.
func Downsample(series []float64, width int) []float64 {
	if width <= 0 || len(series) <= width {
		return series
	}
	k := len(series) / width
	out := make([]float64, 0, width)
	for i := 0; i < len(series); i += k {
		out = append(out, series[i])
	}
	return out
}

// SweepPlot draws the dominant real part against the swept parameter and
// marks a stability crossing if one exists.
func SweepPlot(points []eig.SweepPoint, param string, height int) string {
	series := make([]float64, 0, len(points))
	for _, p := range points {
		if p.Err == nil {
			series = append(series, p.MaxReal)
		}
	}
	if len(series) == 0 {
		return Subtle.Render("sweep produced no valid points")
	}

	var b strings.Builder
	b.WriteString(asciigraph.Plot(series,
		asciigraph.Height(height),
		asciigraph.Caption(fmt.Sprintf("max Re(lambda) [rad/s] vs %s", param)),
	))
	b.WriteString("\n")

	if i := eig.CrossesZero(points); i >= 0 {
		b.WriteString(UnstableBadge.Render(fmt.Sprintf(
			"stability boundary between %s=%g and %s=%g",
			param, points[i-1].Value, param, points[i].Value)))
	} else {
		b.WriteString(Subtle.Render("no stability crossing in sweep range"))
	}
	return b.String()
}

// ModeTable formats a mode list, restricted to w when non-nil.
func ModeTable(modes []eig.Mode, w *eig.Window) string {
	var b strings.Builder
	b.WriteString(MetricLabel.Render("        rad/s                    Hz              damping"))
	b.WriteString("\n")
	for _, m := range modes {
		if w != nil {
			re, im := real(m.RadPerSec), imag(m.RadPerSec)
			if re < w.XMin || re > w.XMax || im < w.YMin || im > w.YMax {
				continue
			}
		}
		b.WriteString(fmt.Sprintf("%12.4f %+12.4fi %10.4f %+10.4fi %8.4f\n",
			real(m.RadPerSec), imag(m.RadPerSec),
			real(m.Hz), imag(m.Hz), m.Damping))
	}
	return b.String()
}
