package storage

import (
	"encoding/json"
	"io"
)

type ExportData struct {
	ID        string             `json:"id"`
	Model     string             `json:"model"`
	Scheduler string             `json:"scheduler"`
	RNG       string             `json:"rng"`
	Seed      uint64             `json:"seed"`
	EndTime   float64            `json:"end_time"`
	SampleDt  float64            `json:"sample_dt"`
	Steps     uint64             `json:"steps"`
	Columns   []string           `json:"columns"`
	Times     []float64          `json:"times"`
	Samples   [][]float64        `json:"samples"`
	Metrics   map[string]float64 `json:"metrics"`
}

// ExportJSON writes a run's metadata and samples as one JSON document.
func (s *Store) ExportJSON(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	res, err := s.LoadSamples(runID)
	if err != nil {
		return err
	}
	data := ExportData{
		ID:        meta.ID,
		Model:     meta.Model,
		Scheduler: meta.Scheduler,
		RNG:       meta.RNG,
		Seed:      meta.Seed,
		EndTime:   meta.EndTime,
		SampleDt:  meta.SampleDt,
		Steps:     meta.Steps,
		Columns:   res.Columns,
		Times:     res.Times,
		Samples:   res.Samples,
		Metrics:   meta.Metrics,
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(data)
}
