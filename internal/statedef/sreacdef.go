package statedef

import (
	"fmt"

	"github.com/san-kum/kmcsim/internal/model"
)

// Side selects the inner volume, the surface, or the outer volume of a
// surface reaction.
type Side int

const (
	SideI Side = iota
	SideS
	SideO
)

func (s Side) String() string {
	switch s {
	case SideI:
		return "inner"
	case SideS:
		return "surface"
	case SideO:
		return "outer"
	}
	return fmt.Sprintf("Side(%d)", int(s))
}

type SReacSpec struct {
	parent *Statedef
	gidx   int
	rule   model.SReac
	done   bool
}

func NewSReacSpec(parent *Statedef, gidx int, r model.SReac) *SReacSpec {
	return &SReacSpec{parent: parent, gidx: gidx, rule: r}
}

// Setup compiles the surface reaction. Only the side named by the
// orientation carries volume reactants; products may go to any side.
func (s *SReacSpec) Setup() (*SReacDef, error) {
	if s.done {
		panic(fmt.Sprintf("statedef: surface reaction %q set up twice", s.rule.ID))
	}
	if s.parent == nil {
		return nil, fmt.Errorf("%w: surface reaction %q", ErrNoParent, s.rule.ID)
	}
	if s.rule.K < 0 {
		return nil, fmt.Errorf("%w: surface reaction %q k=%g", ErrNegativeRate, s.rule.ID, s.rule.K)
	}
	n := s.parent.NSpecs()
	d := &SReacDef{
		name:     s.rule.ID,
		gidx:     s.gidx,
		orient:   s.rule.Orient(),
		order:    s.rule.Order(),
		kcst:     s.rule.K,
		surfOnly: len(s.rule.ILHS) == 0 && len(s.rule.OLHS) == 0,
		sides:    [3]stoich{newStoich(n), newStoich(n), newStoich(n)},
	}
	vlhs := s.rule.OLHS
	vside := SideO
	if d.orient == model.Inside {
		vlhs, vside = s.rule.ILHS, SideI
	}
	counts := []struct {
		dst   []int
		names []string
	}{
		{d.sides[vside].lhs, vlhs},
		{d.sides[SideS].lhs, s.rule.SLHS},
		{d.sides[SideI].rhs, s.rule.IRHS},
		{d.sides[SideS].rhs, s.rule.SRHS},
		{d.sides[SideO].rhs, s.rule.ORHS},
	}
	for _, c := range counts {
		if err := s.parent.count(d.name, c.dst, c.names); err != nil {
			return nil, err
		}
	}
	for i := range d.sides {
		d.sides[i].finish()
	}
	s.done = true
	return d, nil
}

// SReacDef is a compiled surface reaction.
type SReacDef struct {
	name     string
	gidx     int
	orient   model.Orient
	order    int
	kcst     float64
	surfOnly bool
	sides    [3]stoich
}

func (d *SReacDef) Name() string { return d.name }
func (d *SReacDef) GIdx() int    { return d.gidx }
func (d *SReacDef) Order() int   { return d.order }
func (d *SReacDef) K() float64   { return d.kcst }

func (d *SReacDef) Inside() bool  { return d.orient == model.Inside }
func (d *SReacDef) Outside() bool { return d.orient == model.Outside }

// SurfaceOnly reports whether all reactants are surface species.
func (d *SReacDef) SurfaceOnly() bool { return d.surfOnly }

func (d *SReacDef) LHS(side Side, spec int) int     { return d.sides[side].lhs[spec] }
func (d *SReacDef) RHS(side Side, spec int) int     { return d.sides[side].rhs[spec] }
func (d *SReacDef) UPD(side Side, spec int) int     { return d.sides[side].upd[spec] }
func (d *SReacDef) Dep(side Side, spec int) DepFlag { return d.sides[side].dep[spec] }
func (d *SReacDef) UpdColl(side Side) []int         { return d.sides[side].updColl }
func (d *SReacDef) LHSColl(side Side) []int         { return d.sides[side].lhsColl }

// ReqInside reports whether the reaction reads or writes inner volume
// species.
func (d *SReacDef) ReqInside() bool { return d.req(SideI) }

func (d *SReacDef) ReqOutside() bool { return d.req(SideO) }

func (d *SReacDef) req(side Side) bool {
	st := &d.sides[side]
	return len(st.lhsColl) > 0 || len(st.updColl) > 0 || anyNonzero(st.rhs)
}

func anyNonzero(v []int) bool {
	for _, x := range v {
		if x != 0 {
			return true
		}
	}
	return false
}
