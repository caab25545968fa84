package experiment

import (
	"context"
	"fmt"
	"log/slog"

	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/kmcsim/internal/config"
	"github.com/san-kum/kmcsim/internal/sim"
)

// Ensemble runs cfg.Solver.Replicates independent experiments. Replicate i
// draws from its own source seeded with Seed+i.
type Ensemble struct {
	cfg       *config.Config
	log       *slog.Logger
	observers []Observer
}

func NewEnsemble(cfg *config.Config, log *slog.Logger) *Ensemble {
	if log == nil {
		log = slog.Default()
	}
	return &Ensemble{cfg: cfg, log: log}
}

// AddObserver registers o with every replicate. It is called from the
// replicate goroutines.
func (en *Ensemble) AddObserver(o Observer) {
	en.observers = append(en.observers, o)
}

func (en *Ensemble) Run(ctx context.Context) ([]*Result, error) {
	n := en.cfg.Solver.Replicates
	if n < 1 {
		return nil, fmt.Errorf("%w: replicates must be at least 1", config.ErrInvalidConfig)
	}
	exps := make([]*Experiment, n)
	results := make([]*Result, n)

	build := func(idx int) (*sim.Solver, error) {
		e := New(en.cfg, en.log.With("replicate", idx))
		e.replicate = idx
		if err := e.Setup(en.cfg.Solver.Seed+uint64(idx), nil); err != nil {
			return nil, err
		}
		for _, o := range en.observers {
			e.AddObserver(o)
		}
		exps[idx] = e
		return e.Solver(), nil
	}
	_, err := sim.NewEnsemble(build, n).Run(ctx, func(ctx context.Context, idx int, s *sim.Solver) error {
		res, err := exps[idx].Run(ctx)
		if err != nil {
			return fmt.Errorf("replicate %d: %w", idx, err)
		}
		results[idx] = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	en.log.Info("ensemble finished", "replicates", n)
	return results, nil
}

// Mean averages replicates sample by sample. All results must share the
// same time grid and columns.
func Mean(results []*Result) (*Result, error) {
	if len(results) == 0 {
		return nil, fmt.Errorf("no results")
	}
	first := results[0]
	for i, r := range results[1:] {
		if len(r.Times) != len(first.Times) || len(r.Columns) != len(first.Columns) {
			return nil, fmt.Errorf("result %d does not match the first", i+1)
		}
	}
	if len(results) == 1 {
		return first, nil
	}

	out := &Result{
		Times:   append([]float64(nil), first.Times...),
		Columns: append([]string(nil), first.Columns...),
		Samples: make([][]float64, len(first.Times)),
		Metrics: make(map[string]float64),
	}
	vals := make([]float64, len(results))
	for i := range first.Times {
		row := make([]float64, len(first.Columns))
		for j := range row {
			for k, r := range results {
				vals[k] = r.Samples[i][j]
			}
			row[j] = stat.Mean(vals, nil)
		}
		out.Samples[i] = row
	}
	for name := range first.Metrics {
		for k, r := range results {
			vals[k] = r.Metrics[name]
		}
		out.Metrics[name] = stat.Mean(vals, nil)
	}
	for _, r := range results {
		out.Steps += r.Steps
	}
	return out, nil
}

// StdDev is the per-sample standard deviation across replicates.
func StdDev(results []*Result) [][]float64 {
	if len(results) < 2 {
		return nil
	}
	first := results[0]
	vals := make([]float64, len(results))
	out := make([][]float64, len(first.Times))
	for i := range first.Times {
		row := make([]float64, len(first.Columns))
		for j := range row {
			for k, r := range results {
				vals[k] = r.Samples[i][j]
			}
			_, row[j] = stat.MeanStdDev(vals, nil)
		}
		out[i] = row
	}
	return out
}
