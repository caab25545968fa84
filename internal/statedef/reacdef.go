package statedef

import (
	"fmt"

	"github.com/san-kum/kmcsim/internal/model"
)

// ReacSpec is a volume reaction before setup. It exposes no derived data;
// Setup compiles it into a ReacDef once.
type ReacSpec struct {
	parent *Statedef
	gidx   int
	rule   model.Reac
	done   bool
}

func NewReacSpec(parent *Statedef, gidx int, r model.Reac) *ReacSpec {
	return &ReacSpec{parent: parent, gidx: gidx, rule: r}
}

// Setup resolves species names and derives the update vector. Calling it
// twice panics.
func (s *ReacSpec) Setup() (*ReacDef, error) {
	if s.done {
		panic(fmt.Sprintf("statedef: reaction %q set up twice", s.rule.ID))
	}
	if s.parent == nil {
		return nil, fmt.Errorf("%w: reaction %q", ErrNoParent, s.rule.ID)
	}
	if s.rule.K < 0 {
		return nil, fmt.Errorf("%w: reaction %q k=%g", ErrNegativeRate, s.rule.ID, s.rule.K)
	}
	d := &ReacDef{
		name:  s.rule.ID,
		gidx:  s.gidx,
		order: s.rule.Order(),
		kcst:  s.rule.K,
		st:    newStoich(s.parent.NSpecs()),
	}
	if err := s.parent.count(d.name, d.st.lhs, s.rule.LHS); err != nil {
		return nil, err
	}
	if err := s.parent.count(d.name, d.st.rhs, s.rule.RHS); err != nil {
		return nil, err
	}
	d.st.finish()
	s.done = true
	return d, nil
}

// ReacDef is a compiled volume reaction.
type ReacDef struct {
	name  string
	gidx  int
	order int
	kcst  float64
	st    stoich
}

func (d *ReacDef) Name() string { return d.name }
func (d *ReacDef) GIdx() int    { return d.gidx }
func (d *ReacDef) Order() int   { return d.order }

// K is the default macroscopic rate constant.
func (d *ReacDef) K() float64 { return d.kcst }

func (d *ReacDef) LHS(spec int) int      { return d.st.lhs[spec] }
func (d *ReacDef) RHS(spec int) int      { return d.st.rhs[spec] }
func (d *ReacDef) UPD(spec int) int      { return d.st.upd[spec] }
func (d *ReacDef) Dep(spec int) DepFlag  { return d.st.dep[spec] }
func (d *ReacDef) ReqSpec(spec int) bool { return d.st.dep[spec] != DepNone || d.st.rhs[spec] != 0 }

// UpdColl lists the species whose count changes when the reaction fires.
func (d *ReacDef) UpdColl() []int { return d.st.updColl }

// LHSColl lists the consumed species.
func (d *ReacDef) LHSColl() []int { return d.st.lhsColl }
