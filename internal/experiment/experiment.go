package experiment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/kmcsim/internal/config"
	"github.com/san-kum/kmcsim/internal/metrics"
	"github.com/san-kum/kmcsim/internal/sim"
)

// Result holds counts sampled on a regular time grid. Columns are
// "container/species" for every compartment, then every patch.
type Result struct {
	Times   []float64
	Columns []string
	Samples [][]float64
	Metrics map[string]float64
	Steps   uint64
}

// Observer is called after every sample with the replicate index.
type Observer func(replicate int, s *sim.Solver, t float64, row []float64)

// CheckpointSink receives a checkpoint with the random source state taken
// at the same instant.
type CheckpointSink func(cp *sim.Checkpoint, rngState []byte) error

type Experiment struct {
	cfg       *config.Config
	reg       *Registry
	log       *slog.Logger
	solver    *sim.Solver
	metrics   []metrics.Metric
	observers []Observer
	sink      CheckpointSink
	replicate int
}

func New(cfg *config.Config, log *slog.Logger) *Experiment {
	if log == nil {
		log = slog.Default()
	}
	return &Experiment{cfg: cfg, reg: NewRegistry(), log: log}
}

// Setup builds the solver with the given seed. Nil metrics selects the
// registry defaults.
func (e *Experiment) Setup(seed uint64, ms []metrics.Metric) error {
	if err := e.reg.CheckScheduler(e.cfg.Solver.Scheduler); err != nil {
		return err
	}
	m, g, err := e.cfg.Build()
	if err != nil {
		return err
	}
	src, err := e.reg.Source(e.cfg.Solver.RNG, seed)
	if err != nil {
		return err
	}
	opts := e.cfg.SolverOptions()
	opts.Logger = e.log
	s, err := sim.New(m, g, src, opts)
	if err != nil {
		return err
	}
	if ms == nil {
		ms = e.reg.DefaultMetrics()
	}
	e.solver = s
	e.metrics = ms
	return nil
}

func (e *Experiment) Solver() *sim.Solver { return e.solver }

func (e *Experiment) AddObserver(o Observer) {
	e.observers = append(e.observers, o)
}

// SetCheckpointSink registers sink for checkpoints every
// Solver.CheckpointInterval of simulated time, at the end, and when the
// context is cancelled mid-run.
func (e *Experiment) SetCheckpointSink(sink CheckpointSink) {
	e.sink = sink
}

func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.solver == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	return e.sample(ctx, e.solver.Time())
}

// Resume restores cp and the random source state, then samples from the
// checkpoint time to the end time.
func (e *Experiment) Resume(ctx context.Context, cp *sim.Checkpoint, rngState []byte) (*Result, error) {
	if e.solver == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	if err := e.solver.Restore(cp); err != nil {
		return nil, err
	}
	if err := e.solver.RNG().UnmarshalBinary(rngState); err != nil {
		return nil, err
	}
	e.log.Info("resumed", "time", cp.Time, "steps", cp.NSteps)
	return e.sample(ctx, cp.Time)
}

func (e *Experiment) sample(ctx context.Context, from float64) (*Result, error) {
	s := e.solver
	end := e.cfg.Solver.EndTime
	dt := e.cfg.Solver.SampleDt
	interval := e.cfg.Solver.CheckpointInterval
	if from > end {
		return nil, &sim.SimError{Step: s.NSteps(), Time: from, Message: fmt.Sprintf("end time %g", end), Wrapped: sim.ErrPastTime}
	}

	res := &Result{Columns: Columns(s), Metrics: make(map[string]float64)}
	nextCP := from + interval
	for k := int(math.Ceil(from/dt - 1e-9)); ; k++ {
		t := float64(k) * dt
		if t > end || end-t < dt*1e-9 {
			t = end
		}
		if err := s.RunContext(ctx, t); err != nil {
			// The solver stops between events, so a cancelled run can
			// still be checkpointed and resumed.
			if e.sink != nil && ctx.Err() != nil {
				if cerr := e.checkpoint(); cerr != nil {
					return nil, errors.Join(err, cerr)
				}
				e.log.Info("interrupted", "time", s.Time(), "steps", s.NSteps())
			}
			return nil, err
		}
		row := Snapshot(s)
		res.Times = append(res.Times, t)
		res.Samples = append(res.Samples, row)
		for _, m := range e.metrics {
			m.Observe(s)
		}
		for _, o := range e.observers {
			o(e.replicate, s, t, row)
		}
		if e.sink != nil && (t == end || (interval > 0 && t >= nextCP)) {
			if err := e.checkpoint(); err != nil {
				return nil, err
			}
			nextCP = t + interval
		}
		if t == end {
			break
		}
	}

	for _, m := range e.metrics {
		res.Metrics[m.Name()] = m.Value()
	}
	res.Steps = s.NSteps()
	e.log.Debug("replicate finished",
		"replicate", e.replicate,
		"steps", res.Steps,
		"samples", len(res.Times),
		"status", s.Status())
	return res, nil
}

func (e *Experiment) checkpoint() error {
	s := e.solver
	cp := s.Checkpoint()
	state, err := s.RNG().MarshalBinary()
	if err != nil {
		return err
	}
	if err := e.sink(cp, state); err != nil {
		return fmt.Errorf("checkpoint at t=%g: %w", cp.Time, err)
	}
	return nil
}

// Columns names the observed counts of s in sampling order.
func Columns(s *sim.Solver) []string {
	sd := s.Statedef()
	species := sd.Species()
	var cols []string
	for c := 0; c < sd.NComps(); c++ {
		for _, sp := range species {
			cols = append(cols, sd.Comp(c).ID+"/"+sp)
		}
	}
	for p := 0; p < sd.NPatches(); p++ {
		for _, sp := range species {
			cols = append(cols, sd.Patch(p).ID+"/"+sp)
		}
	}
	return cols
}

// Snapshot returns the current counts in Columns order.
func Snapshot(s *sim.Solver) []float64 {
	sd := s.Statedef()
	species := sd.Species()
	row := make([]float64, 0, (sd.NComps()+sd.NPatches())*len(species))
	for c := 0; c < sd.NComps(); c++ {
		for _, sp := range species {
			n, _ := s.CompCount(sd.Comp(c).ID, sp)
			row = append(row, float64(n))
		}
	}
	for p := 0; p < sd.NPatches(); p++ {
		for _, sp := range species {
			n, _ := s.PatchCount(sd.Patch(p).ID, sp)
			row = append(row, float64(n))
		}
	}
	return row
}
