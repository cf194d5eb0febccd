// Package storage persists simulation runs: one directory per run with
// metadata.json and outputs.csv.
package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/emtlab/gridsig/internal/sim"
)

type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID        string             `json:"id"`
	Device    string             `json:"device"`
	Timestamp time.Time          `json:"timestamp"`
	Ts        float64            `json:"ts"`
	Steps     int                `json:"steps"`
	Scheme    string             `json:"scheme"`
	Metrics   map[string]float64 `json:"metrics"`
}

func (s *Store) Save(device, scheme string, ts float64, result *sim.Result) (string, error) {
	runID := fmt.Sprintf("%s_%d", device, time.Now().Unix())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:        runID,
		Device:    device,
		Timestamp: time.Now(),
		Ts:        ts,
		Steps:     result.StepsTaken,
		Scheme:    scheme,
		Metrics:   result.Metrics,
	}

	metaFile, err := os.Create(filepath.Join(runDir, "metadata.json"))
	if err != nil {
		return "", err
	}
	defer metaFile.Close()

	enc := json.NewEncoder(metaFile)
	enc.SetIndent("", "  ")
	if err := enc.Encode(meta); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, "outputs.csv"))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()

	w := csv.NewWriter(csvFile)
	defer w.Flush()

	for i, t := range result.Times {
		row := make([]string, 0, 1+len(result.Outputs[i]))
		row = append(row, strconv.FormatFloat(t, 'g', -1, 64))
		for _, v := range result.Outputs[i] {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return "", err
		}
	}
	return runID, nil
}

// List returns the IDs of all saved runs, newest last.
func (s *Store) List() ([]string, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			ids = append(ids, e.Name())
		}
	}
	return ids, nil
}
