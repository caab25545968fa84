package sim

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
)

const checkpointTag = "kmcsim"

// Checkpoint is the complete mutable engine state. Rule definitions and
// geometry are not included; a checkpoint restores only into a solver
// built from the same model and geometry. The random source is saved
// separately.
type Checkpoint struct {
	Solver    string        `json:"solver"`
	Scheduler string        `json:"scheduler"`
	Time      float64       `json:"time"`
	NSteps    uint64        `json:"nsteps"`
	Species   []string      `json:"species"`
	NVols     int           `json:"nvols"`
	NSurfs    int           `json:"nsurfs"`
	Vols      []ElemState   `json:"vols"`
	Surfs     []ElemState   `json:"surfs"`
	KProcs    []KProcState  `json:"kprocs"`
	Pending   *PendingState `json:"pending,omitempty"`
}

// ElemState holds one element's counts and the indices of clamped species.
type ElemState struct {
	Counts  []uint64 `json:"counts"`
	Clamped []int    `json:"clamped,omitempty"`
}

// KProcState holds the per-process constant (K, or D for diffusion).
type KProcState struct {
	K      float64 `json:"k"`
	Active bool    `json:"active"`
	Extent uint64  `json:"extent"`
}

type PendingState struct {
	KProc int     `json:"kproc"`
	Time  float64 `json:"time"`
}

// Checkpoint captures the solver state. It resynchronises the scheduler
// first, so the running solver and one restored from the checkpoint hold
// identical sums.
func (s *Solver) Checkpoint() *Checkpoint {
	s.resync()
	cp := &Checkpoint{
		Solver:    checkpointTag,
		Scheduler: s.sched.Name(),
		Time:      s.time,
		NSteps:    s.nsteps,
		Species:   s.sd.Species(),
		NVols:     len(s.vols),
		NSurfs:    len(s.surfs),
		Vols:      make([]ElemState, len(s.vols)),
		Surfs:     make([]ElemState, len(s.surfs)),
		KProcs:    make([]KProcState, len(s.kprocs)),
	}
	for i := range s.vols {
		cp.Vols[i] = elemState(&s.vols[i].pool)
	}
	for i := range s.surfs {
		cp.Surfs[i] = elemState(&s.surfs[i].pool)
	}
	for i := range s.kprocs {
		k := &s.kprocs[i]
		cp.KProcs[i] = KProcState{K: k.kcst, Active: k.active, Extent: k.extent}
	}
	if s.pending != nil {
		cp.Pending = &PendingState{KProc: s.pending.kproc, Time: s.pending.at}
	}
	return cp
}

func elemState(p *pool) ElemState {
	st := ElemState{Counts: slices.Clone(p.counts)}
	for i, c := range p.clamped {
		if c {
			st.Clamped = append(st.Clamped, i)
		}
	}
	return st
}

// Restore installs cp after checking that it was taken from a solver of
// the same shape.
func (s *Solver) Restore(cp *Checkpoint) error {
	if err := s.validate(cp); err != nil {
		return err
	}
	for i := range s.vols {
		loadElem(&s.vols[i].pool, cp.Vols[i])
	}
	for i := range s.surfs {
		loadElem(&s.surfs[i].pool, cp.Surfs[i])
	}
	for i := range s.kprocs {
		k := &s.kprocs[i]
		st := cp.KProcs[i]
		k.kcst = st.K
		k.active = st.Active
		k.extent = st.Extent
		s.scale(k)
	}
	s.time = cp.Time
	s.nsteps = cp.NSteps
	s.pending = nil
	if cp.Pending != nil {
		s.pending = &pendingEvent{kproc: cp.Pending.KProc, at: cp.Pending.Time}
	}
	s.rebuild()
	s.resyncs++
	s.log.Debug("checkpoint restored", "time", s.time, "step", s.nsteps)
	return nil
}

func loadElem(p *pool, st ElemState) {
	copy(p.counts, st.Counts)
	clear(p.clamped)
	for _, spec := range st.Clamped {
		p.clamped[spec] = true
	}
}

func (s *Solver) validate(cp *Checkpoint) error {
	mismatch := func(format string, args ...any) error {
		return fmt.Errorf("%w: %s", ErrMismatch, fmt.Sprintf(format, args...))
	}
	switch {
	case cp == nil:
		return mismatch("nil checkpoint")
	case cp.Solver != checkpointTag:
		return mismatch("solver %q", cp.Solver)
	case cp.Scheduler != s.sched.Name():
		return mismatch("scheduler %q, solver uses %q", cp.Scheduler, s.sched.Name())
	case !slices.Equal(cp.Species, s.sd.Species()):
		return mismatch("species %v", cp.Species)
	case cp.NVols != len(s.vols) || len(cp.Vols) != len(s.vols):
		return mismatch("%d volume elements, solver has %d", cp.NVols, len(s.vols))
	case cp.NSurfs != len(s.surfs) || len(cp.Surfs) != len(s.surfs):
		return mismatch("%d surface elements, solver has %d", cp.NSurfs, len(s.surfs))
	case len(cp.KProcs) != len(s.kprocs):
		return mismatch("%d processes, solver has %d", len(cp.KProcs), len(s.kprocs))
	case cp.Pending != nil && (cp.Pending.KProc < 0 || cp.Pending.KProc >= len(s.kprocs)):
		return mismatch("pending process %d", cp.Pending.KProc)
	}
	n := s.sd.NSpecs()
	for _, elems := range [][]ElemState{cp.Vols, cp.Surfs} {
		for i, st := range elems {
			if len(st.Counts) != n {
				return mismatch("element %d has %d counts", i, len(st.Counts))
			}
			for _, c := range st.Clamped {
				if c < 0 || c >= n {
					return mismatch("element %d clamps species %d", i, c)
				}
			}
		}
	}
	for i, st := range cp.KProcs {
		if st.K < 0 {
			return mismatch("process %d has negative constant", i)
		}
	}
	if p := cp.Pending; p != nil {
		if p.Time < cp.Time {
			return mismatch("pending event at %g before checkpoint time %g", p.Time, cp.Time)
		}
		if s.pendingRate(cp) <= 0 {
			return mismatch("pending process %d cannot fire", p.KProc)
		}
	}
	return nil
}

// pendingRate is the propensity of the pending process of cp, computed
// from the checkpoint's counts and constants without touching the solver.
func (s *Solver) pendingRate(cp *Checkpoint) float64 {
	k := s.kprocs[cp.Pending.KProc]
	st := cp.KProcs[cp.Pending.KProc]
	k.kcst, k.active = st.K, st.Active
	s.scale(&k)
	if !k.active || k.ccst == 0 {
		return 0
	}
	vol := func(i int) *pool { return &pool{counts: cp.Vols[i].Counts} }
	surf := func(i int) *pool { return &pool{counts: cp.Surfs[i].Counts} }
	return k.ccst * s.hIn(&k, vol, surf)
}

// WriteCheckpoint encodes a checkpoint as JSON.
func (s *Solver) WriteCheckpoint(w io.Writer) error {
	return EncodeCheckpoint(w, s.Checkpoint())
}

// EncodeCheckpoint writes cp as JSON.
func EncodeCheckpoint(w io.Writer, cp *Checkpoint) error {
	return json.NewEncoder(w).Encode(cp)
}

func ReadCheckpoint(r io.Reader) (*Checkpoint, error) {
	var cp Checkpoint
	if err := json.NewDecoder(r).Decode(&cp); err != nil {
		return nil, fmt.Errorf("sim: decode checkpoint: %w", err)
	}
	return &cp, nil
}

// RestoreFrom reads and restores a JSON checkpoint.
func (s *Solver) RestoreFrom(r io.Reader) error {
	cp, err := ReadCheckpoint(r)
	if err != nil {
		return err
	}
	return s.Restore(cp)
}
