package sim

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/san-kum/kmcsim/internal/geom"
	"github.com/san-kum/kmcsim/internal/model"
	"github.com/san-kum/kmcsim/internal/rng"
	"github.com/san-kum/kmcsim/internal/sched"
	"github.com/san-kum/kmcsim/internal/statedef"
)

// DefaultResyncInterval is the number of events between full scheduler
// resynchronisations.
const DefaultResyncInterval = 65536

// ctxCheckEvery is how many events RunContext fires between context checks.
const ctxCheckEvery = 1024

// Status is the driver state.
type Status int

const (
	Idle Status = iota
	Running
	Terminated
)

func (s Status) String() string {
	switch s {
	case Idle:
		return "idle"
	case Running:
		return "running"
	case Terminated:
		return "terminated"
	}
	return fmt.Sprintf("Status(%d)", int(s))
}

// Initial is a model-declared starting value for one species in a
// compartment or patch. A positive Conc (mol/L, compartments only)
// overrides Count. Tets, on a mesh, confines the molecules to those
// tetrahedra of the compartment.
type Initial struct {
	Where   string
	Species string
	Count   uint64
	Conc    float64
	Tets    []int
	Clamped bool
}

type Options struct {
	// Scheduler is "direct" (default) or "tree".
	Scheduler string
	// Fanout of the composition tree; zero means sched.DefaultFanout.
	Fanout int
	// ResyncInterval in events; zero means DefaultResyncInterval.
	ResyncInterval uint64
	Initial        []Initial
	Logger         *slog.Logger
}

// pendingEvent is an event drawn past the previous horizon. It fires first
// on the next advance that reaches it and is dropped by any external
// mutation.
type pendingEvent struct {
	kproc int
	at    float64
}

type Solver struct {
	sd      *statedef.Statedef
	sched   sched.Scheduler
	rng     rng.Source
	log     *slog.Logger
	spatial bool

	vols       []volElem
	surfs      []surfElem
	kprocs     []KProc
	compElems  [][]int
	patchElems [][]int
	tetElem    map[int]int
	triElem    map[int]int
	initial    []Initial

	resyncEvery uint64
	time        float64
	nsteps      uint64
	resyncs     uint64
	pending     *pendingEvent
}

// New compiles m against g and builds a solver in the idle state with the
// initial conditions of opts applied.
func New(m *model.Model, g geom.Geometry, src rng.Source, opts Options) (*Solver, error) {
	if m == nil || g == nil || src == nil {
		return nil, fmt.Errorf("%w: model, geometry and random source are required", ErrMissing)
	}
	sd, err := statedef.New(m, g)
	if err != nil {
		return nil, err
	}
	sc, err := sched.New(opts.Scheduler, opts.Fanout)
	if err != nil {
		return nil, err
	}
	s := &Solver{
		sd:          sd,
		sched:       sc,
		rng:         src,
		log:         opts.Logger,
		spatial:     g.Spatial(),
		tetElem:     make(map[int]int),
		triElem:     make(map[int]int),
		initial:     opts.Initial,
		resyncEvery: opts.ResyncInterval,
	}
	if s.log == nil {
		s.log = slog.Default()
	}
	if s.resyncEvery == 0 {
		s.resyncEvery = DefaultResyncInterval
	}

	s.setupElems(g)
	s.setupKProcs()
	s.setupDeps()
	if err := s.reset(); err != nil {
		return nil, err
	}
	s.log.Debug("solver ready",
		"scheduler", sc.Name(),
		"vol_elems", len(s.vols),
		"surf_elems", len(s.surfs),
		"kprocs", len(s.kprocs))
	return s, nil
}

func (s *Solver) Statedef() *statedef.Statedef { return s.sd }
func (s *Solver) SchedulerName() string        { return s.sched.Name() }
func (s *Solver) RNG() rng.Source              { return s.rng }
func (s *Solver) NKProcs() int                 { return len(s.kprocs) }
func (s *Solver) KProc(i int) *KProc           { return &s.kprocs[i] }

func (s *Solver) Time() float64   { return s.time }
func (s *Solver) NSteps() uint64  { return s.nsteps }
func (s *Solver) Resyncs() uint64 { return s.resyncs }

// A0 is the maintained total propensity.
func (s *Solver) A0() float64 { return s.sched.Total() }

func (s *Solver) SetTime(t float64) {
	s.pending = nil
	s.time = t
}

func (s *Solver) SetNSteps(n uint64) {
	s.pending = nil
	s.nsteps = n
}

// Status is Idle until the solver first advances, even when no process
// can fire. After that it is Terminated once the total propensity is zero
// with no event pending, and Running otherwise.
func (s *Solver) Status() Status {
	switch {
	case s.time == 0 && s.nsteps == 0:
		return Idle
	case s.pending == nil && s.sched.Total() <= 0:
		return Terminated
	}
	return Running
}

// Reset restores model defaults and initial conditions and returns the
// solver to idle.
func (s *Solver) Reset() error {
	if err := s.reset(); err != nil {
		return err
	}
	s.log.Debug("solver reset")
	return nil
}

// Run fires events until the clock reaches end or nothing can fire; the
// clock is then set to end. An event drawn beyond end is kept for the next
// call.
func (s *Solver) Run(end float64) error {
	return s.RunContext(context.Background(), end)
}

// Advance runs for dt from the current time.
func (s *Solver) Advance(dt float64) error {
	return s.Run(s.time + dt)
}

// RunContext is Run with cancellation. The context is checked every
// ctxCheckEvery events; on cancellation the clock stays at the last event
// and the solver can resume.
func (s *Solver) RunContext(ctx context.Context, end float64) error {
	if end < s.time {
		return &SimError{Step: s.nsteps, Time: s.time, Message: fmt.Sprintf("end time %g", end), Wrapped: ErrPastTime}
	}
	for n := 0; s.time < end; n++ {
		if n%ctxCheckEvery == 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			default:
			}
		}
		if s.pending != nil {
			if s.pending.at > end {
				break
			}
			p := s.pending
			s.pending = nil
			s.fire(p.kproc, p.at)
			continue
		}
		kp, at, ok := s.next()
		if !ok {
			break
		}
		if at > end {
			s.pending = &pendingEvent{kproc: kp, at: at}
			break
		}
		s.fire(kp, at)
	}
	s.time = end
	return nil
}

// Step fires exactly one event, the pending one if any.
func (s *Solver) Step() error {
	if p := s.pending; p != nil {
		s.pending = nil
		s.fire(p.kproc, p.at)
		return nil
	}
	kp, at, ok := s.next()
	if !ok {
		return &SimError{Step: s.nsteps, Time: s.time, Message: "total propensity is zero", Wrapped: ErrNoEvent}
	}
	s.fire(kp, at)
	return nil
}

// RunWithCheckpoints runs to end, handing a checkpoint to sink every
// interval of simulated time and once at end.
func (s *Solver) RunWithCheckpoints(end, interval float64, sink func(*Checkpoint) error) error {
	if interval <= 0 {
		return &SimError{Step: s.nsteps, Time: s.time, Message: fmt.Sprintf("checkpoint interval %g", interval)}
	}
	for s.time+interval < end {
		if err := s.Advance(interval); err != nil {
			return err
		}
		if err := sink(s.Checkpoint()); err != nil {
			return fmt.Errorf("checkpoint at t=%g: %w", s.time, err)
		}
	}
	if err := s.Run(end); err != nil {
		return err
	}
	return sink(s.Checkpoint())
}

// next draws the waiting time, then the process. ok is false when the
// total propensity is zero.
func (s *Solver) next() (kp int, at float64, ok bool) {
	a0 := s.sched.Total()
	if a0 <= 0 {
		return -1, 0, false
	}
	dt := -math.Log(rng.Open01(s.rng)) / a0
	kp = s.sched.Select(s.rng.Float64())
	if kp < 0 {
		return -1, 0, false
	}
	return kp, s.time + dt, true
}

func (s *Solver) fire(kp int, at float64) {
	s.time = at
	for _, d := range s.apply(&s.kprocs[kp]) {
		s.refresh(d)
	}
	s.nsteps++
	if s.nsteps%s.resyncEvery == 0 {
		s.resync()
	}
}

func (s *Solver) refresh(kp int) {
	k := &s.kprocs[kp]
	k.a = s.rate(k)
	s.sched.Set(kp, k.a)
}

func (s *Solver) resync() {
	s.sched.Resync()
	s.resyncs++
	s.log.Debug("scheduler resynchronised", "step", s.nsteps, "time", s.time, "a0", s.sched.Total())
}

// refreshVol recomputes the processes that read volume element ve.
func (s *Solver) refreshVol(ve int) {
	v := &s.vols[ve]
	for _, kp := range v.kprocs {
		s.refresh(kp)
	}
	for _, se := range v.surfs {
		s.refreshSurf(se)
	}
}

func (s *Solver) refreshSurf(se int) {
	for _, kp := range s.surfs[se].kprocs {
		s.refresh(kp)
	}
}

// mutated is called after every external state change.
func (s *Solver) mutated() { s.pending = nil }

// CheckInvariants compares every cached propensity and the maintained
// total against a recomputation from element state.
func (s *Solver) CheckInvariants() error {
	const tol = 1e-9
	fresh := 0.0
	for i := range s.kprocs {
		k := &s.kprocs[i]
		a := s.rate(k)
		if math.Abs(a-k.a) > tol*math.Abs(a) {
			return &InvariantError{KProc: i, Maintained: k.a, Fresh: a, Message: "stale propensity"}
		}
		if s.sched.Get(i) != k.a {
			return &InvariantError{KProc: i, Maintained: s.sched.Get(i), Fresh: k.a, Message: "scheduler leaf out of date"}
		}
		fresh += a
	}
	total := s.sched.Total()
	if math.Abs(total-fresh) > tol*fresh || (fresh == 0 && total != 0) {
		return &InvariantError{KProc: -1, Maintained: total, Fresh: fresh, Message: "total propensity drifted"}
	}
	return nil
}

// IsNoEvent reports whether err means nothing could fire.
func IsNoEvent(err error) bool { return errors.Is(err, ErrNoEvent) }
