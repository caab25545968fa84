package sim

import (
	"fmt"
	"slices"

	"github.com/san-kum/kmcsim/internal/statedef"
)

// Kind tags the variant held by a KProc.
type Kind uint8

const (
	KindReac Kind = iota
	KindSReac
	KindDiff
)

func (k Kind) String() string {
	switch k {
	case KindReac:
		return "reac"
	case KindSReac:
		return "sreac"
	case KindDiff:
		return "diff"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// KProc is one kinetic process: a rule bound to the element it runs in.
// Exactly one of reac, sreac and diff is set, matching kind.
type KProc struct {
	kind  Kind
	elem  int
	reac  *statedef.ReacDef
	sreac *statedef.SReacDef
	diff  *statedef.DiffDef

	// kcst is the macroscopic constant (K, or D for diffusion) and ccst
	// the mesoscopic one the propensity is built from.
	kcst   float64
	ccst   float64
	active bool
	extent uint64
	a      float64
	deps   []int

	// diffusion only: sum of area/(vol*dist) over same-compartment faces,
	// and the cumulative face weights.
	gfac float64
	cdf  []float64
}

func (k *KProc) Kind() Kind { return k.kind }

// Name returns the rule id.
func (k *KProc) Name() string {
	switch k.kind {
	case KindReac:
		return k.reac.Name()
	case KindSReac:
		return k.sreac.Name()
	default:
		return k.diff.Name()
	}
}

func (k *KProc) Elem() int           { return k.elem }
func (k *KProc) Propensity() float64 { return k.a }
func (k *KProc) Extent() uint64      { return k.extent }
func (k *KProc) Deps() []int         { return k.deps }

// pool is the species state of one element.
type pool struct {
	counts  []uint64
	clamped []bool
}

func newPool(n int) pool {
	return pool{counts: make([]uint64, n), clamped: make([]bool, n)}
}

func (p *pool) update(spec, d int) {
	if d == 0 || p.clamped[spec] {
		return
	}
	if d < 0 {
		if p.counts[spec] < uint64(-d) {
			panic(fmt.Sprintf("sim: count of species %d driven negative (%d%+d)", spec, p.counts[spec], d))
		}
		p.counts[spec] -= uint64(-d)
		return
	}
	p.counts[spec] += uint64(d)
}

func (p *pool) clear() {
	clear(p.counts)
	clear(p.clamped)
}

// binom is C(n, k) as a float, zero when n < k.
func binom(n uint64, k int) float64 {
	if n < uint64(k) {
		return 0
	}
	h := 1.0
	for i := 0; i < k; i++ {
		h *= float64(n-uint64(i)) / float64(i+1)
	}
	return h
}

// reacH is the number of distinct reactant combinations in p.
func reacH(lhs []int, need func(int) int, p *pool) float64 {
	h := 1.0
	for _, spec := range lhs {
		h *= binom(p.counts[spec], need(spec))
		if h == 0 {
			return 0
		}
	}
	return h
}

// h returns the combinatorial factor of k in its current element state.
func (s *Solver) h(k *KProc) float64 {
	return s.hIn(k, s.volPool, s.surfPool)
}

func (s *Solver) volPool(i int) *pool  { return &s.vols[i].pool }
func (s *Solver) surfPool(i int) *pool { return &s.surfs[i].pool }

// hIn is h with element counts looked up through vol and surf.
func (s *Solver) hIn(k *KProc, vol, surf func(int) *pool) float64 {
	switch k.kind {
	case KindReac:
		return reacH(k.reac.LHSColl(), k.reac.LHS, vol(k.elem))
	case KindSReac:
		se := &s.surfs[k.elem]
		h := reacH(k.sreac.LHSColl(statedef.SideS), func(spec int) int {
			return k.sreac.LHS(statedef.SideS, spec)
		}, surf(k.elem))
		for _, side := range []statedef.Side{statedef.SideI, statedef.SideO} {
			ve := se.vol(side)
			lhs := k.sreac.LHSColl(side)
			if h == 0 || len(lhs) == 0 || ve < 0 {
				continue
			}
			h *= reacH(lhs, func(spec int) int { return k.sreac.LHS(side, spec) }, vol(ve))
		}
		return h
	case KindDiff:
		return float64(vol(k.elem).counts[k.diff.Lig()])
	}
	panic(fmt.Sprintf("sim: unknown process kind %v", k.kind))
}

// rate computes the propensity from element state; it never reads the
// cached value.
func (s *Solver) rate(k *KProc) float64 {
	if !k.active || k.ccst == 0 {
		return 0
	}
	return k.ccst * s.h(k)
}

// scale recomputes the mesoscopic constant from kcst.
func (s *Solver) scale(k *KProc) {
	switch k.kind {
	case KindReac:
		k.ccst = statedef.CompCcst(k.kcst, s.vols[k.elem].vol, k.reac.Order())
	case KindSReac:
		se := &s.surfs[k.elem]
		if k.sreac.SurfaceOnly() {
			k.ccst = statedef.SurfCcst(k.kcst, se.area, k.sreac.Order())
			return
		}
		side := statedef.SideO
		if k.sreac.Inside() {
			side = statedef.SideI
		}
		k.ccst = statedef.CompCcst(k.kcst, s.vols[se.vol(side)].vol, k.sreac.Order())
	case KindDiff:
		k.ccst = k.kcst * k.gfac
	}
}

// apply fires k once and returns the processes whose propensity may have
// changed.
func (s *Solver) apply(k *KProc) []int {
	if k.a <= 0 {
		panic(fmt.Sprintf("sim: applying %s %q with propensity %g", k.kind, k.Name(), k.a))
	}
	switch k.kind {
	case KindReac:
		v := &s.vols[k.elem]
		for _, spec := range k.reac.UpdColl() {
			v.update(spec, k.reac.UPD(spec))
		}
	case KindSReac:
		se := &s.surfs[k.elem]
		for _, spec := range k.sreac.UpdColl(statedef.SideS) {
			se.update(spec, k.sreac.UPD(statedef.SideS, spec))
		}
		for _, side := range []statedef.Side{statedef.SideI, statedef.SideO} {
			ve := se.vol(side)
			if ve < 0 {
				continue
			}
			v := &s.vols[ve]
			for _, spec := range k.sreac.UpdColl(side) {
				v.update(spec, k.sreac.UPD(side, spec))
			}
		}
	case KindDiff:
		src := &s.vols[k.elem]
		f := pickFace(k.cdf, s.rng.Float64())
		dst := &s.vols[src.faces[f].Elem]
		lig := k.diff.Lig()
		src.update(lig, -1)
		dst.update(lig, 1)
	}
	k.extent++
	return k.deps
}

// pickFace returns the first face whose cumulative weight exceeds u.
func pickFace(cdf []float64, u float64) int {
	for i, c := range cdf {
		if u < c {
			return i
		}
	}
	return len(cdf) - 1
}

// depsOf lists every process that reads a (species, element) pair kp
// writes, kp included.
func (s *Solver) depsOf(kp int) []int {
	k := &s.kprocs[kp]
	deps := []int{kp}
	switch k.kind {
	case KindReac:
		deps = s.volReaders(deps, k.elem, k.reac.UpdColl())
	case KindSReac:
		se := &s.surfs[k.elem]
		deps = s.surfReaders(deps, k.elem, k.sreac.UpdColl(statedef.SideS))
		for _, side := range []statedef.Side{statedef.SideI, statedef.SideO} {
			if ve := se.vol(side); ve >= 0 {
				deps = s.volReaders(deps, ve, k.sreac.UpdColl(side))
			}
		}
	case KindDiff:
		lig := []int{k.diff.Lig()}
		deps = s.volReaders(deps, k.elem, lig)
		for _, f := range s.vols[k.elem].faces {
			deps = s.volReaders(deps, f.Elem, lig)
		}
	}
	slices.Sort(deps)
	return slices.Compact(deps)
}

func (s *Solver) volReaders(deps []int, ve int, specs []int) []int {
	if len(specs) == 0 {
		return deps
	}
	v := &s.vols[ve]
	for _, kp := range v.kprocs {
		if s.readsVol(&s.kprocs[kp], ve, specs) {
			deps = append(deps, kp)
		}
	}
	for _, se := range v.surfs {
		for _, kp := range s.surfs[se].kprocs {
			if s.readsVol(&s.kprocs[kp], ve, specs) {
				deps = append(deps, kp)
			}
		}
	}
	return deps
}

func (s *Solver) surfReaders(deps []int, se int, specs []int) []int {
	for _, kp := range s.surfs[se].kprocs {
		k := &s.kprocs[kp]
		for _, spec := range specs {
			if k.sreac.Dep(statedef.SideS, spec) != statedef.DepNone {
				deps = append(deps, kp)
				break
			}
		}
	}
	return deps
}

func (s *Solver) readsVol(k *KProc, ve int, specs []int) bool {
	for _, spec := range specs {
		switch k.kind {
		case KindReac:
			if k.elem == ve && k.reac.Dep(spec) != statedef.DepNone {
				return true
			}
		case KindDiff:
			if k.elem == ve && k.diff.Dep(spec) != statedef.DepNone {
				return true
			}
		case KindSReac:
			se := &s.surfs[k.elem]
			if se.inner == ve && k.sreac.Dep(statedef.SideI, spec) != statedef.DepNone {
				return true
			}
			if se.outer == ve && k.sreac.Dep(statedef.SideO, spec) != statedef.DepNone {
				return true
			}
		}
	}
	return false
}
