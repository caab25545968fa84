package statedef

import (
	"fmt"

	"github.com/san-kum/kmcsim/internal/model"
)

type DiffSpec struct {
	parent *Statedef
	gidx   int
	rule   model.Diff
	done   bool
}

func NewDiffSpec(parent *Statedef, gidx int, r model.Diff) *DiffSpec {
	return &DiffSpec{parent: parent, gidx: gidx, rule: r}
}

func (s *DiffSpec) Setup() (*DiffDef, error) {
	if s.done {
		panic(fmt.Sprintf("statedef: diffusion %q set up twice", s.rule.ID))
	}
	if s.parent == nil {
		return nil, fmt.Errorf("%w: diffusion %q", ErrNoParent, s.rule.ID)
	}
	if s.rule.D < 0 {
		return nil, fmt.Errorf("%w: diffusion %q D=%g", ErrNegativeRate, s.rule.ID, s.rule.D)
	}
	lig, ok := s.parent.SpecIndex(s.rule.Lig)
	if !ok {
		return nil, fmt.Errorf("%w: %q in rule %q", ErrUnknownSpecies, s.rule.Lig, s.rule.ID)
	}
	s.done = true
	return &DiffDef{name: s.rule.ID, gidx: s.gidx, lig: lig, dcst: s.rule.D}, nil
}

// DiffDef is a compiled diffusion rule for one ligand.
type DiffDef struct {
	name string
	gidx int
	lig  int
	dcst float64
}

func (d *DiffDef) Name() string { return d.name }
func (d *DiffDef) GIdx() int    { return d.gidx }
func (d *DiffDef) Lig() int     { return d.lig }

// D is the default diffusion constant in m^2/s.
func (d *DiffDef) D() float64 { return d.dcst }

func (d *DiffDef) Dep(spec int) DepFlag {
	if spec == d.lig {
		return DepStoich
	}
	return DepNone
}
