// Package statedef compiles a symbolic model against a geometry into the
// rule definitions the solver runs on: per-species stoichiometry for every
// reaction, surface reaction and diffusion rule, and the rule lists carried
// by each compartment and patch.
package statedef

import (
	"fmt"
	"log/slog"
	"slices"

	"github.com/san-kum/kmcsim/internal/geom"
	"github.com/san-kum/kmcsim/internal/model"
)

// CompDef lists the rules active in a compartment.
type CompDef struct {
	ID    string
	Idx   int
	Vol   float64
	Reacs []int
	Diffs []int
}

// PatchDef lists the surface rules active on a patch. OComp is -1 when the
// patch has no outer compartment.
type PatchDef struct {
	ID     string
	Idx    int
	Area   float64
	IComp  int
	OComp  int
	SReacs []int
}

type Statedef struct {
	species []string
	specIdx map[string]int

	reacs   []*ReacDef
	sreacs  []*SReacDef
	diffs   []*DiffDef
	ruleIdx map[string]int

	comps   []*CompDef
	patches []*PatchDef
}

// New validates m and compiles every rule once. Rule indices follow model
// declaration order.
func New(m *model.Model, g geom.Geometry) (*Statedef, error) {
	if g == nil {
		return nil, fmt.Errorf("%w: no geometry", ErrNoParent)
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	sd := &Statedef{
		specIdx: make(map[string]int, len(m.Species)),
		ruleIdx: make(map[string]int),
	}
	for i, s := range m.Species {
		sd.species = append(sd.species, s.ID)
		sd.specIdx[s.ID] = i
	}

	volReacs := make(map[string][]int)
	volDiffs := make(map[string][]int)
	for _, vs := range m.Volsys {
		for _, r := range vs.Reacs {
			def, err := NewReacSpec(sd, len(sd.reacs), r).Setup()
			if err != nil {
				return nil, err
			}
			sd.ruleIdx[r.ID] = def.gidx
			volReacs[vs.ID] = append(volReacs[vs.ID], def.gidx)
			sd.reacs = append(sd.reacs, def)
		}
		for _, d := range vs.Diffs {
			def, err := NewDiffSpec(sd, len(sd.diffs), d).Setup()
			if err != nil {
				return nil, err
			}
			sd.ruleIdx[d.ID] = def.gidx
			volDiffs[vs.ID] = append(volDiffs[vs.ID], def.gidx)
			sd.diffs = append(sd.diffs, def)
		}
	}
	surfReacs := make(map[string][]int)
	for _, ss := range m.Surfsys {
		for _, r := range ss.SReacs {
			def, err := NewSReacSpec(sd, len(sd.sreacs), r).Setup()
			if err != nil {
				return nil, err
			}
			sd.ruleIdx[r.ID] = def.gidx
			surfReacs[ss.ID] = append(surfReacs[ss.ID], def.gidx)
			sd.sreacs = append(sd.sreacs, def)
		}
	}

	compIdx := make(map[string]int)
	for i, c := range g.Comps() {
		cd := &CompDef{ID: c.ID, Idx: i, Vol: c.Vol}
		for _, vs := range c.Volsys {
			if _, ok := m.FindVolsys(vs); !ok {
				return nil, fmt.Errorf("%w: volume system %q in compartment %q", ErrUnknownSystem, vs, c.ID)
			}
			cd.Reacs = append(cd.Reacs, volReacs[vs]...)
			cd.Diffs = append(cd.Diffs, volDiffs[vs]...)
		}
		cd.Reacs = sortedUnique(cd.Reacs)
		cd.Diffs = sortedUnique(cd.Diffs)
		compIdx[c.ID] = i
		sd.comps = append(sd.comps, cd)
	}

	for i, p := range g.Patches() {
		pd := &PatchDef{ID: p.ID, Idx: i, Area: p.Area, IComp: -1, OComp: -1}
		if ci, ok := compIdx[p.IComp]; ok {
			pd.IComp = ci
		}
		if ci, ok := compIdx[p.OComp]; ok {
			pd.OComp = ci
		}
		for _, ss := range p.Surfsys {
			if _, ok := m.FindSurfsys(ss); !ok {
				return nil, fmt.Errorf("%w: surface system %q in patch %q", ErrUnknownSystem, ss, p.ID)
			}
			pd.SReacs = append(pd.SReacs, surfReacs[ss]...)
		}
		pd.SReacs = sortedUnique(pd.SReacs)
		for _, sr := range pd.SReacs {
			def := sd.sreacs[sr]
			if def.ReqInside() && pd.IComp < 0 {
				return nil, fmt.Errorf("%w: %q on patch %q needs an inner compartment", ErrMissingComp, def.name, p.ID)
			}
			if def.ReqOutside() && pd.OComp < 0 {
				return nil, fmt.Errorf("%w: %q on patch %q needs an outer compartment", ErrMissingComp, def.name, p.ID)
			}
		}
		sd.patches = append(sd.patches, pd)
	}

	slog.Debug("statedef compiled",
		"species", len(sd.species),
		"reacs", len(sd.reacs),
		"sreacs", len(sd.sreacs),
		"diffs", len(sd.diffs),
		"comps", len(sd.comps),
		"patches", len(sd.patches))
	return sd, nil
}

func sortedUnique(v []int) []int {
	slices.Sort(v)
	return slices.Compact(v)
}

func (sd *Statedef) NSpecs() int   { return len(sd.species) }
func (sd *Statedef) NReacs() int   { return len(sd.reacs) }
func (sd *Statedef) NSReacs() int  { return len(sd.sreacs) }
func (sd *Statedef) NDiffs() int   { return len(sd.diffs) }
func (sd *Statedef) NComps() int   { return len(sd.comps) }
func (sd *Statedef) NPatches() int { return len(sd.patches) }

// Species returns a copy of the species ids in index order.
func (sd *Statedef) Species() []string { return slices.Clone(sd.species) }

func (sd *Statedef) Spec(i int) string     { return sd.species[i] }
func (sd *Statedef) Reac(i int) *ReacDef   { return sd.reacs[i] }
func (sd *Statedef) SReac(i int) *SReacDef { return sd.sreacs[i] }
func (sd *Statedef) Diff(i int) *DiffDef   { return sd.diffs[i] }
func (sd *Statedef) Comp(i int) *CompDef   { return sd.comps[i] }
func (sd *Statedef) Patch(i int) *PatchDef { return sd.patches[i] }

func (sd *Statedef) SpecIndex(id string) (int, bool) {
	i, ok := sd.specIdx[id]
	return i, ok
}

// ReacIndex, SReacIndex and DiffIndex resolve rule ids within their kind.
func (sd *Statedef) ReacIndex(id string) (int, bool) {
	i, ok := sd.ruleIdx[id]
	if !ok || i >= len(sd.reacs) || sd.reacs[i].name != id {
		return -1, false
	}
	return i, true
}

func (sd *Statedef) SReacIndex(id string) (int, bool) {
	i, ok := sd.ruleIdx[id]
	if !ok || i >= len(sd.sreacs) || sd.sreacs[i].name != id {
		return -1, false
	}
	return i, true
}

func (sd *Statedef) DiffIndex(id string) (int, bool) {
	i, ok := sd.ruleIdx[id]
	if !ok || i >= len(sd.diffs) || sd.diffs[i].name != id {
		return -1, false
	}
	return i, true
}

func (sd *Statedef) CompIndex(id string) (int, bool) {
	for _, c := range sd.comps {
		if c.ID == id {
			return c.Idx, true
		}
	}
	return -1, false
}

func (sd *Statedef) PatchIndex(id string) (int, bool) {
	for _, p := range sd.patches {
		if p.ID == id {
			return p.Idx, true
		}
	}
	return -1, false
}
