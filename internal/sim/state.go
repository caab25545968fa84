package sim

import (
	"fmt"
	"math"
	"slices"

	"github.com/san-kum/kmcsim/internal/geom"
	"github.com/san-kum/kmcsim/internal/statedef"
)

// volElem is a compartment or a tetrahedron.
type volElem struct {
	pool
	comp   int
	index  int
	vol    float64
	faces  []geom.Face
	kprocs []int
	surfs  []int
}

// surfElem is a patch or a triangle.
type surfElem struct {
	pool
	patch  int
	index  int
	area   float64
	inner  int
	outer  int
	kprocs []int
}

func (se *surfElem) vol(side statedef.Side) int {
	switch side {
	case statedef.SideI:
		return se.inner
	case statedef.SideO:
		return se.outer
	}
	return -1
}

// setupElems copies the geometry into the element arena.
func (s *Solver) setupElems(g geom.Geometry) {
	n := s.sd.NSpecs()
	for _, e := range g.VolElems() {
		s.vols = append(s.vols, volElem{
			pool:  newPool(n),
			comp:  e.Comp,
			index: e.Index,
			vol:   e.Vol,
			faces: e.Faces,
		})
	}
	for i, e := range g.SurfElems() {
		s.surfs = append(s.surfs, surfElem{
			pool:  newPool(n),
			patch: e.Patch,
			index: e.Index,
			area:  e.Area,
			inner: e.Inner,
			outer: e.Outer,
		})
		if e.Inner >= 0 {
			s.vols[e.Inner].surfs = append(s.vols[e.Inner].surfs, i)
		}
		if e.Outer >= 0 {
			s.vols[e.Outer].surfs = append(s.vols[e.Outer].surfs, i)
		}
	}

	s.compElems = make([][]int, s.sd.NComps())
	s.patchElems = make([][]int, s.sd.NPatches())
	for i, v := range s.vols {
		s.compElems[v.comp] = append(s.compElems[v.comp], i)
		if s.spatial {
			s.tetElem[v.index] = i
		}
	}
	for i, se := range s.surfs {
		s.patchElems[se.patch] = append(s.patchElems[se.patch], i)
		if s.spatial {
			s.triElem[se.index] = i
		}
	}
}

// setupKProcs creates the processes. Within a volume element the order is
// the compartment's reactions then its diffusion rules, so the local
// position of a rule is its position in the CompDef lists.
func (s *Solver) setupKProcs() {
	for ve := range s.vols {
		v := &s.vols[ve]
		cd := s.sd.Comp(v.comp)
		for _, r := range cd.Reacs {
			v.kprocs = append(v.kprocs, s.addKProc(KProc{kind: KindReac, elem: ve, reac: s.sd.Reac(r)}))
		}
		if !s.spatial {
			continue
		}
		for _, d := range cd.Diffs {
			k := KProc{kind: KindDiff, elem: ve, diff: s.sd.Diff(d)}
			k.gfac, k.cdf = diffWeights(v)
			v.kprocs = append(v.kprocs, s.addKProc(k))
		}
	}
	for se := range s.surfs {
		e := &s.surfs[se]
		pd := s.sd.Patch(e.patch)
		for _, r := range pd.SReacs {
			e.kprocs = append(e.kprocs, s.addKProc(KProc{kind: KindSReac, elem: se, sreac: s.sd.SReac(r)}))
		}
	}
}

func (s *Solver) addKProc(k KProc) int {
	s.kprocs = append(s.kprocs, k)
	return len(s.kprocs) - 1
}

// diffWeights returns the geometric factor and the face selection CDF of
// a tetrahedron.
func diffWeights(v *volElem) (float64, []float64) {
	if len(v.faces) == 0 || v.vol == 0 {
		return 0, nil
	}
	weights := make([]float64, len(v.faces))
	gfac := 0.0
	for i, f := range v.faces {
		weights[i] = f.Area / (v.vol * f.Dist)
		gfac += weights[i]
	}
	cdf := make([]float64, len(weights))
	cum := 0.0
	for i, w := range weights {
		cum += w
		cdf[i] = cum / gfac
	}
	cdf[len(cdf)-1] = 1
	return gfac, cdf
}

func (s *Solver) setupDeps() {
	for kp := range s.kprocs {
		s.kprocs[kp].deps = s.depsOf(kp)
	}
}

// reset puts every element and process back to model defaults, applies
// the initial conditions and rebuilds the scheduler. The dependency graph
// is left alone.
func (s *Solver) reset() error {
	for i := range s.vols {
		s.vols[i].clear()
	}
	for i := range s.surfs {
		s.surfs[i].clear()
	}
	for i := range s.kprocs {
		k := &s.kprocs[i]
		switch k.kind {
		case KindReac:
			k.kcst = k.reac.K()
		case KindSReac:
			k.kcst = k.sreac.K()
		case KindDiff:
			k.kcst = k.diff.D()
		}
		k.active = true
		k.extent = 0
		s.scale(k)
	}
	s.time = 0
	s.nsteps = 0
	s.pending = nil
	if err := s.applyInitial(); err != nil {
		return err
	}
	s.rebuild()
	return nil
}

// rebuild recomputes every propensity and reloads the scheduler.
func (s *Solver) rebuild() {
	props := make([]float64, len(s.kprocs))
	for i := range s.kprocs {
		k := &s.kprocs[i]
		k.a = s.rate(k)
		props[i] = k.a
	}
	s.sched.Reset(props)
}

func (s *Solver) applyInitial() error {
	for _, in := range s.initial {
		if ci, ok := s.sd.CompIndex(in.Where); ok {
			spec, err := s.specIndex(in.Species)
			if err != nil {
				return err
			}
			elems := s.compElems[ci]
			vol := s.sd.Comp(ci).Vol
			if len(in.Tets) > 0 {
				if elems, err = s.tetElems(ci, in.Tets); err != nil {
					return err
				}
				vol = 0
				for _, e := range elems {
					vol += s.vols[e].vol
				}
			}
			n := in.Count
			if in.Conc > 0 {
				n = uint64(math.Round(in.Conc * 1e3 * vol * statedef.Avogadro))
			}
			s.distribute(elems, spec, n, func(e int) float64 { return s.vols[e].vol })
			for _, e := range elems {
				s.vols[e].clamped[spec] = in.Clamped
			}
			continue
		}
		if pi, ok := s.sd.PatchIndex(in.Where); ok {
			spec, err := s.specIndex(in.Species)
			if err != nil {
				return err
			}
			s.distributeSurf(s.patchElems[pi], spec, in.Count)
			for _, e := range s.patchElems[pi] {
				s.surfs[e].clamped[spec] = in.Clamped
			}
			continue
		}
		return &LookupError{Kind: "container", Name: in.Where}
	}
	return nil
}

// tetElems maps tet indices of compartment ci to volume elements.
func (s *Solver) tetElems(ci int, tets []int) ([]int, error) {
	elems := make([]int, 0, len(tets))
	for _, t := range tets {
		e, err := s.tet(t)
		if err != nil {
			return nil, err
		}
		if s.vols[e].comp != ci {
			return nil, &LookupError{Kind: "tetrahedron", Name: fmt.Sprintf("%d in %s", t, s.sd.Comp(ci).ID)}
		}
		elems = append(elems, e)
	}
	return elems, nil
}

// distribute sets the counts of spec over volume elements in proportion
// to weight, rounding by largest remainder. Ties go to the earlier
// element.
func (s *Solver) distribute(elems []int, spec int, n uint64, weight func(int) float64) {
	for i, c := range apportion(elems, n, weight) {
		s.vols[elems[i]].counts[spec] = c
	}
}

func (s *Solver) distributeSurf(elems []int, spec int, n uint64) {
	for i, c := range apportion(elems, n, func(e int) float64 { return s.surfs[e].area }) {
		s.surfs[elems[i]].counts[spec] = c
	}
}

func apportion(elems []int, n uint64, weight func(int) float64) []uint64 {
	out := make([]uint64, len(elems))
	if len(elems) == 0 {
		return out
	}
	total := 0.0
	for _, e := range elems {
		total += weight(e)
	}
	if total <= 0 {
		out[0] = n
		return out
	}
	rem := make([]float64, len(elems))
	var given uint64
	for i, e := range elems {
		exact := float64(n) * weight(e) / total
		out[i] = uint64(math.Floor(exact))
		rem[i] = exact - math.Floor(exact)
		given += out[i]
	}
	order := make([]int, len(elems))
	for i := range order {
		order[i] = i
	}
	slices.SortStableFunc(order, func(a, b int) int {
		switch {
		case rem[a] > rem[b]:
			return -1
		case rem[a] < rem[b]:
			return 1
		}
		return 0
	})
	for i := 0; given < n; i++ {
		out[order[i%len(order)]]++
		given++
	}
	for given > n {
		// float rounding can over-assign by one
		for i := len(order) - 1; i >= 0 && given > n; i-- {
			if out[order[i]] > 0 {
				out[order[i]]--
				given--
			}
		}
	}
	return out
}
