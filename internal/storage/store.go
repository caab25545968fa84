package storage

import (
	"cmp"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/san-kum/kmcsim/internal/config"
	"github.com/san-kum/kmcsim/internal/experiment"
)

const (
	metadataFile   = "metadata.json"
	countsFile     = "counts.csv"
	modelFile      = "model.yaml"
	checkpointFile = "checkpoints.db"
)

var (
	ErrRunNotFound   = errors.New("storage: run not found")
	ErrRunIncomplete = errors.New("storage: run has no samples")
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

// CheckpointPath is the sqlite database shared by all runs of the store.
func (s *Store) CheckpointPath() string {
	return filepath.Join(s.baseDir, checkpointFile)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Model       string             `json:"model"`
	Timestamp   time.Time          `json:"timestamp"`
	Seed        uint64             `json:"seed"`
	Scheduler   string             `json:"scheduler"`
	RNG         string             `json:"rng"`
	EndTime     float64            `json:"end_time"`
	SampleDt    float64            `json:"sample_dt"`
	Replicates  int                `json:"replicates"`
	Steps       uint64             `json:"steps"`
	Columns     []string           `json:"columns"`
	Metrics     map[string]float64 `json:"metrics"`
	ResumedFrom string             `json:"resumed_from,omitempty"`

	// Complete is set once the samples are written. An interrupted run
	// keeps only its model and checkpoints.
	Complete bool `json:"complete"`
}

// NewRunID returns a time-ordered run id.
func NewRunID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// Save writes a new run with a fresh id.
func (s *Store) Save(cfg *config.Config, result *experiment.Result) (string, error) {
	id := NewRunID()
	return id, s.SaveAs(id, cfg, result, "")
}

// Begin creates the run directory with the model and metadata before the
// run starts, so an interrupted run can be resumed from its checkpoints.
func (s *Store) Begin(id string, cfg *config.Config, resumedFrom string) error {
	runDir := filepath.Join(s.baseDir, id)
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return err
	}
	if err := config.Save(filepath.Join(runDir, modelFile), cfg); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, metadataFile), newMetadata(id, cfg, resumedFrom))
}

// SaveAs writes the run under id. resumedFrom names the run a resumed
// run continued, if any.
func (s *Store) SaveAs(id string, cfg *config.Config, result *experiment.Result, resumedFrom string) error {
	if err := s.Begin(id, cfg, resumedFrom); err != nil {
		return err
	}
	runDir := filepath.Join(s.baseDir, id)

	f, err := os.Create(filepath.Join(runDir, countsFile))
	if err != nil {
		return err
	}
	defer f.Close()
	if err := WriteCSV(f, result); err != nil {
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}

	meta := newMetadata(id, cfg, resumedFrom)
	meta.Steps = result.Steps
	meta.Columns = result.Columns
	meta.Metrics = result.Metrics
	meta.Complete = true
	return writeJSON(filepath.Join(runDir, metadataFile), meta)
}

func newMetadata(id string, cfg *config.Config, resumedFrom string) RunMetadata {
	return RunMetadata{
		ID:          id,
		Model:       cfg.Name,
		Timestamp:   time.Now().UTC(),
		Seed:        cfg.Solver.Seed,
		Scheduler:   cfg.Solver.Scheduler,
		RNG:         cfg.Solver.RNG,
		EndTime:     cfg.Solver.EndTime,
		SampleDt:    cfg.Solver.SampleDt,
		Replicates:  cfg.Solver.Replicates,
		ResumedFrom: resumedFrom,
	}
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

// WriteCSV writes a header of "time" and the result columns, then one row
// per sample.
func WriteCSV(w io.Writer, result *experiment.Result) error {
	cw := csv.NewWriter(w)
	header := append([]string{"time"}, result.Columns...)
	if err := cw.Write(header); err != nil {
		return err
	}
	for i, row := range result.Samples {
		rec := make([]string, 0, len(row)+1)
		rec = append(rec, strconv.FormatFloat(result.Times[i], 'g', -1, 64))
		for _, v := range row {
			rec = append(rec, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// List returns all runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	slices.SortFunc(runs, func(a, b RunMetadata) int {
		if c := a.Timestamp.Compare(b.Timestamp); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
		}
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadConfig returns the model the run was made with.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	path := filepath.Join(s.baseDir, runID, modelFile)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return config.Load(path)
}

// LoadSamples reads counts.csv back into a result. Metrics and steps come
// from the metadata.
func (s *Store) LoadSamples(runID string) (*experiment.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	if !meta.Complete {
		return nil, fmt.Errorf("%w: %s", ErrRunIncomplete, runID)
	}
	file, err := os.Open(filepath.Join(s.baseDir, runID, countsFile))
	if err != nil {
		return nil, err
	}
	defer file.Close()

	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		return nil, err
	}
	res := &experiment.Result{Metrics: meta.Metrics, Steps: meta.Steps}
	if len(records) == 0 {
		return res, nil
	}
	res.Columns = records[0][1:]
	for i, rec := range records[1:] {
		vals := make([]float64, len(rec))
		for j, field := range rec {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("%s line %d: %w", countsFile, i+2, err)
			}
			vals[j] = v
		}
		res.Times = append(res.Times, vals[0])
		res.Samples = append(res.Samples, vals[1:])
	}
	return res, nil
}

// ExportCSV copies the counts of a run to w.
func (s *Store) ExportCSV(runID string, w io.Writer) error {
	meta, err := s.Load(runID)
	if err != nil {
		return err
	}
	if !meta.Complete {
		return fmt.Errorf("%w: %s", ErrRunIncomplete, runID)
	}
	file, err := os.Open(filepath.Join(s.baseDir, runID, countsFile))
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = io.Copy(w, file)
	return err
}
