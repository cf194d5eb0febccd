// Package tui provides a live terminal view of a stepping device.
package tui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"

	"github.com/emtlab/gridsig/internal/discrete"
	"github.com/emtlab/gridsig/internal/sim"
	"github.com/emtlab/gridsig/internal/viz"
)

const (
	frameInterval = 50 * time.Millisecond
	stepsPerFrame = 200
	traceLen      = 160
	plotHeight    = 12
)

type tickMsg time.Time

// Live is a bubbletea model that steps a discretizer on a frame tick and
// plots one output component.
type Live struct {
	disc    *discrete.Discretizer
	src     sim.Source
	outIdx  int
	outName string
	total   int

	trace  []float64
	step   int
	paused bool
	err    error
}

func NewLive(disc *discrete.Discretizer, src sim.Source, outIdx int, outName string, totalSteps int) Live {
	return Live{
		disc:    disc,
		src:     src,
		outIdx:  outIdx,
		outName: outName,
		total:   totalSteps,
		trace:   make([]float64, 0, traceLen),
	}
}

func tick() tea.Cmd {
	return tea.Tick(frameInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m Live) Init() tea.Cmd {
	return tick()
}

func (m Live) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.paused = !m.paused
		case "r":
			if err := m.disc.Reset(); err == nil {
				m.step = 0
				m.trace = m.trace[:0]
				m.err = nil
			}
		}
		return m, nil

	case tickMsg:
		if m.paused || m.err != nil || m.step >= m.total {
			return m, tick()
		}
		for i := 0; i < stepsPerFrame && m.step < m.total; i++ {
			u := m.src.At(m.step, float64(m.step)*m.disc.Ts())
			y, err := m.disc.Step(u)
			if err != nil {
				m.err = err
				break
			}
			m.step++
			if i == stepsPerFrame-1 || m.step == m.total {
				if m.outIdx < len(y) {
					m.trace = append(m.trace, y[m.outIdx])
				}
			}
		}
		if len(m.trace) > traceLen {
			m.trace = m.trace[len(m.trace)-traceLen:]
		}
		return m, tick()
	}
	return m, nil
}

func (m Live) View() string {
	s := viz.Title.Render("gridsig live") + "\n\n"

	if len(m.trace) > 1 {
		s += asciigraph.Plot(m.trace, asciigraph.Height(plotHeight), asciigraph.Caption(m.outName))
		s += "\n\n"
	}

	status := fmt.Sprintf("t=%.4fs  step %d/%d", float64(m.step)*m.disc.Ts(), m.step, m.total)
	if m.paused {
		status += "  [paused]"
	}
	if m.err != nil {
		status += "  " + viz.UnstableBadge.Render(m.err.Error())
	}
	s += viz.Subtle.Render(status) + "\n"
	s += viz.Subtle.Render("space pause · r reset · q quit") + "\n"
	return s
}

// Run blocks until the view exits.
func Run(m Live) error {
	_, err := tea.NewProgram(m).Run()
	return err
}
