package storage

import (
	"encoding/json"
	"io"

	"github.com/emtlab/gridsig/internal/sim"
)

type ExportData struct {
	Device  string             `json:"device"`
	Scheme  string             `json:"scheme"`
	Ts      float64            `json:"ts"`
	Steps   int                `json:"steps"`
	Times   []float64          `json:"times"`
	Inputs  [][]float64        `json:"inputs"`
	Outputs [][]float64        `json:"outputs"`
	States  [][]float64        `json:"states"`
	Metrics map[string]float64 `json:"metrics"`
}

// ExportJSON writes a run as indented JSON.
func ExportJSON(w io.Writer, device, scheme string, ts float64, result *sim.Result) error {
	data := ExportData{
		Device:  device,
		Scheme:  scheme,
		Ts:      ts,
		Steps:   result.StepsTaken,
		Times:   result.Times,
		Inputs:  make([][]float64, len(result.Inputs)),
		Outputs: make([][]float64, len(result.Outputs)),
		States:  make([][]float64, len(result.States)),
		Metrics: result.Metrics,
	}
	for i, u := range result.Inputs {
		data.Inputs[i] = u
	}
	for i, y := range result.Outputs {
		data.Outputs[i] = y
	}
	for i, x := range result.States {
		data.States[i] = x
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
