package metrics

import (
	"github.com/san-kum/kmcsim/internal/sim"
)

// Metric summarises a run from solver snapshots taken at sample times.
type Metric interface {
	Name() string
	Observe(s *sim.Solver)
	Value() float64
	Reset()
}

// EventRate is events per unit of simulated time between the first and
// last observation.
type EventRate struct {
	seen         bool
	t0, t1       float64
	steps0, step uint64
}

func NewEventRate() *EventRate { return &EventRate{} }

func (e *EventRate) Name() string { return "event_rate" }

func (e *EventRate) Observe(s *sim.Solver) {
	if !e.seen {
		e.seen = true
		e.t0, e.steps0 = s.Time(), s.NSteps()
	}
	e.t1, e.step = s.Time(), s.NSteps()
}

func (e *EventRate) Value() float64 {
	if e.t1 <= e.t0 {
		return 0
	}
	return float64(e.step-e.steps0) / (e.t1 - e.t0)
}

func (e *EventRate) Reset() { *e = EventRate{} }

// MeanPropensity averages the total propensity over observations.
type MeanPropensity struct {
	sum     float64
	samples int
}

func NewMeanPropensity() *MeanPropensity { return &MeanPropensity{} }

func (m *MeanPropensity) Name() string { return "mean_propensity" }

func (m *MeanPropensity) Observe(s *sim.Solver) {
	m.sum += s.A0()
	m.samples++
}

func (m *MeanPropensity) Value() float64 {
	if m.samples == 0 {
		return 0
	}
	return m.sum / float64(m.samples)
}

func (m *MeanPropensity) Reset() {
	m.sum = 0
	m.samples = 0
}

// FinalExtent is the number of events fired by all processes at the last
// observation.
type FinalExtent struct {
	extent uint64
}

func NewFinalExtent() *FinalExtent { return &FinalExtent{} }

func (f *FinalExtent) Name() string { return "final_extent" }

func (f *FinalExtent) Observe(s *sim.Solver) {
	var n uint64
	for i := 0; i < s.NKProcs(); i++ {
		n += s.KProc(i).Extent()
	}
	f.extent = n
}

func (f *FinalExtent) Value() float64 { return float64(f.extent) }
func (f *FinalExtent) Reset()         { f.extent = 0 }
