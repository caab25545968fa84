package sim

import (
	"fmt"
	"math"
	"slices"
	"strconv"

	"github.com/san-kum/kmcsim/internal/statedef"
)

func (s *Solver) specIndex(id string) (int, error) {
	if i, ok := s.sd.SpecIndex(id); ok {
		return i, nil
	}
	return -1, &LookupError{Kind: "species", Name: id}
}

func (s *Solver) compIndex(id string) (int, error) {
	if i, ok := s.sd.CompIndex(id); ok {
		return i, nil
	}
	return -1, &LookupError{Kind: "compartment", Name: id}
}

func (s *Solver) patchIndex(id string) (int, error) {
	if i, ok := s.sd.PatchIndex(id); ok {
		return i, nil
	}
	return -1, &LookupError{Kind: "patch", Name: id}
}

func (s *Solver) compSpec(comp, spec string) (int, int, error) {
	ci, err := s.compIndex(comp)
	if err != nil {
		return -1, -1, err
	}
	si, err := s.specIndex(spec)
	if err != nil {
		return -1, -1, err
	}
	return ci, si, nil
}

func (s *Solver) patchSpec(patch, spec string) (int, int, error) {
	pi, err := s.patchIndex(patch)
	if err != nil {
		return -1, -1, err
	}
	si, err := s.specIndex(spec)
	if err != nil {
		return -1, -1, err
	}
	return pi, si, nil
}

// compReac returns the element-local position of a reaction in a
// compartment, which is the same in every element of it.
func (s *Solver) compReac(comp, reac string) (int, int, error) {
	ci, err := s.compIndex(comp)
	if err != nil {
		return -1, -1, err
	}
	ri, ok := s.sd.ReacIndex(reac)
	if !ok {
		return -1, -1, &LookupError{Kind: "reaction", Name: reac}
	}
	local, found := slices.BinarySearch(s.sd.Comp(ci).Reacs, ri)
	if !found {
		return -1, -1, &LookupError{Kind: "reaction", Name: reac + " in " + comp}
	}
	return ci, local, nil
}

func (s *Solver) compDiff(comp, diff string) (int, int, error) {
	if !s.spatial {
		return -1, -1, ErrNotSpatial
	}
	ci, err := s.compIndex(comp)
	if err != nil {
		return -1, -1, err
	}
	di, ok := s.sd.DiffIndex(diff)
	if !ok {
		return -1, -1, &LookupError{Kind: "diffusion", Name: diff}
	}
	cd := s.sd.Comp(ci)
	local, found := slices.BinarySearch(cd.Diffs, di)
	if !found {
		return -1, -1, &LookupError{Kind: "diffusion", Name: diff + " in " + comp}
	}
	return ci, len(cd.Reacs) + local, nil
}

func (s *Solver) patchSReac(patch, sreac string) (int, int, error) {
	pi, err := s.patchIndex(patch)
	if err != nil {
		return -1, -1, err
	}
	ri, ok := s.sd.SReacIndex(sreac)
	if !ok {
		return -1, -1, &LookupError{Kind: "surface reaction", Name: sreac}
	}
	local, found := slices.BinarySearch(s.sd.Patch(pi).SReacs, ri)
	if !found {
		return -1, -1, &LookupError{Kind: "surface reaction", Name: sreac + " on " + patch}
	}
	return pi, local, nil
}

// volKProcs calls fn for the process at local position in every element
// of a compartment.
func (s *Solver) volKProcs(ci, local int, fn func(kp int, k *KProc)) {
	for _, e := range s.compElems[ci] {
		kp := s.vols[e].kprocs[local]
		fn(kp, &s.kprocs[kp])
	}
}

func (s *Solver) surfKProcs(pi, local int, fn func(kp int, k *KProc)) {
	for _, e := range s.patchElems[pi] {
		kp := s.surfs[e].kprocs[local]
		fn(kp, &s.kprocs[kp])
	}
}

// countToConc converts a count in vol cubic metres to mol/L.
func countToConc(n float64, vol float64) float64 {
	return n / (1e3 * vol * statedef.Avogadro)
}

func molToCount(mol float64) (uint64, error) {
	if mol < 0 || math.IsNaN(mol) || math.IsInf(mol, 1) {
		return 0, fmt.Errorf("%w: %g", ErrNegative, mol)
	}
	return uint64(math.Round(mol * statedef.Avogadro)), nil
}

// ---- compartments

func (s *Solver) CompVol(comp string) (float64, error) {
	ci, err := s.compIndex(comp)
	if err != nil {
		return 0, err
	}
	return s.sd.Comp(ci).Vol, nil
}

// CompCount sums the count over all elements of the compartment.
func (s *Solver) CompCount(comp, spec string) (uint64, error) {
	ci, si, err := s.compSpec(comp, spec)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, e := range s.compElems[ci] {
		n += s.vols[e].counts[si]
	}
	return n, nil
}

// SetCompCount sets the compartment total. On a mesh the molecules are
// spread over tetrahedra in proportion to volume.
func (s *Solver) SetCompCount(comp, spec string, n uint64) error {
	ci, si, err := s.compSpec(comp, spec)
	if err != nil {
		return err
	}
	s.distribute(s.compElems[ci], si, n, func(e int) float64 { return s.vols[e].vol })
	for _, e := range s.compElems[ci] {
		s.refreshVol(e)
	}
	s.mutated()
	return nil
}

// CompAmount is the compartment count in moles.
func (s *Solver) CompAmount(comp, spec string) (float64, error) {
	n, err := s.CompCount(comp, spec)
	if err != nil {
		return 0, err
	}
	return float64(n) / statedef.Avogadro, nil
}

func (s *Solver) SetCompAmount(comp, spec string, mol float64) error {
	n, err := molToCount(mol)
	if err != nil {
		return err
	}
	return s.SetCompCount(comp, spec, n)
}

// CompConc is the compartment concentration in mol/L.
func (s *Solver) CompConc(comp, spec string) (float64, error) {
	n, err := s.CompCount(comp, spec)
	if err != nil {
		return 0, err
	}
	vol, _ := s.CompVol(comp)
	return countToConc(float64(n), vol), nil
}

func (s *Solver) SetCompConc(comp, spec string, conc float64) error {
	vol, err := s.CompVol(comp)
	if err != nil {
		return err
	}
	n, err := molToCount(conc * 1e3 * vol)
	if err != nil {
		return err
	}
	return s.SetCompCount(comp, spec, n)
}

// CompClamped reports whether spec is clamped in every element of comp.
func (s *Solver) CompClamped(comp, spec string) (bool, error) {
	ci, si, err := s.compSpec(comp, spec)
	if err != nil {
		return false, err
	}
	for _, e := range s.compElems[ci] {
		if !s.vols[e].clamped[si] {
			return false, nil
		}
	}
	return len(s.compElems[ci]) > 0, nil
}

func (s *Solver) SetCompClamped(comp, spec string, clamped bool) error {
	ci, si, err := s.compSpec(comp, spec)
	if err != nil {
		return err
	}
	for _, e := range s.compElems[ci] {
		s.vols[e].clamped[si] = clamped
	}
	s.mutated()
	return nil
}

func (s *Solver) CompReacK(comp, reac string) (float64, error) {
	ci, local, err := s.compReac(comp, reac)
	if err != nil {
		return 0, err
	}
	k := 0.0
	s.volKProcs(ci, local, func(_ int, kp *KProc) { k = kp.kcst })
	return k, nil
}

func (s *Solver) SetCompReacK(comp, reac string, k float64) error {
	ci, local, err := s.compReac(comp, reac)
	if err != nil {
		return err
	}
	if k < 0 {
		return fmt.Errorf("%w: reaction %q k=%g", statedef.ErrNegativeRate, reac, k)
	}
	s.volKProcs(ci, local, func(i int, kp *KProc) {
		kp.kcst = k
		s.scale(kp)
		s.refresh(i)
	})
	s.mutated()
	return nil
}

func (s *Solver) CompReacActive(comp, reac string) (bool, error) {
	ci, local, err := s.compReac(comp, reac)
	if err != nil {
		return false, err
	}
	active := false
	s.volKProcs(ci, local, func(_ int, kp *KProc) { active = kp.active })
	return active, nil
}

func (s *Solver) SetCompReacActive(comp, reac string, active bool) error {
	ci, local, err := s.compReac(comp, reac)
	if err != nil {
		return err
	}
	s.volKProcs(ci, local, func(i int, kp *KProc) {
		kp.active = active
		s.refresh(i)
	})
	s.mutated()
	return nil
}

// CompReacC is the mesoscopic constant for the whole compartment volume.
func (s *Solver) CompReacC(comp, reac string) (float64, error) {
	k, err := s.CompReacK(comp, reac)
	if err != nil {
		return 0, err
	}
	ri, _ := s.sd.ReacIndex(reac)
	vol, _ := s.CompVol(comp)
	return statedef.CompCcst(k, vol, s.sd.Reac(ri).Order()), nil
}

// CompReacH is the number of reactant combinations, summed over elements.
func (s *Solver) CompReacH(comp, reac string) (float64, error) {
	ci, local, err := s.compReac(comp, reac)
	if err != nil {
		return 0, err
	}
	h := 0.0
	s.volKProcs(ci, local, func(_ int, kp *KProc) { h += s.h(kp) })
	return h, nil
}

// CompReacA is the reaction's propensity summed over elements.
func (s *Solver) CompReacA(comp, reac string) (float64, error) {
	ci, local, err := s.compReac(comp, reac)
	if err != nil {
		return 0, err
	}
	a := 0.0
	s.volKProcs(ci, local, func(_ int, kp *KProc) { a += kp.a })
	return a, nil
}

func (s *Solver) CompReacExtent(comp, reac string) (uint64, error) {
	ci, local, err := s.compReac(comp, reac)
	if err != nil {
		return 0, err
	}
	var n uint64
	s.volKProcs(ci, local, func(_ int, kp *KProc) { n += kp.extent })
	return n, nil
}

func (s *Solver) ResetCompReacExtent(comp, reac string) error {
	ci, local, err := s.compReac(comp, reac)
	if err != nil {
		return err
	}
	s.volKProcs(ci, local, func(_ int, kp *KProc) { kp.extent = 0 })
	return nil
}

func (s *Solver) CompDiffD(comp, diff string) (float64, error) {
	ci, local, err := s.compDiff(comp, diff)
	if err != nil {
		return 0, err
	}
	d := 0.0
	s.volKProcs(ci, local, func(_ int, kp *KProc) { d = kp.kcst })
	return d, nil
}

func (s *Solver) SetCompDiffD(comp, diff string, d float64) error {
	ci, local, err := s.compDiff(comp, diff)
	if err != nil {
		return err
	}
	if d < 0 {
		return fmt.Errorf("%w: diffusion %q D=%g", statedef.ErrNegativeRate, diff, d)
	}
	s.volKProcs(ci, local, func(i int, kp *KProc) {
		kp.kcst = d
		s.scale(kp)
		s.refresh(i)
	})
	s.mutated()
	return nil
}

func (s *Solver) CompDiffActive(comp, diff string) (bool, error) {
	ci, local, err := s.compDiff(comp, diff)
	if err != nil {
		return false, err
	}
	active := false
	s.volKProcs(ci, local, func(_ int, kp *KProc) { active = kp.active })
	return active, nil
}

func (s *Solver) SetCompDiffActive(comp, diff string, active bool) error {
	ci, local, err := s.compDiff(comp, diff)
	if err != nil {
		return err
	}
	s.volKProcs(ci, local, func(i int, kp *KProc) {
		kp.active = active
		s.refresh(i)
	})
	s.mutated()
	return nil
}

// ---- patches

func (s *Solver) PatchArea(patch string) (float64, error) {
	pi, err := s.patchIndex(patch)
	if err != nil {
		return 0, err
	}
	return s.sd.Patch(pi).Area, nil
}

func (s *Solver) PatchCount(patch, spec string) (uint64, error) {
	pi, si, err := s.patchSpec(patch, spec)
	if err != nil {
		return 0, err
	}
	var n uint64
	for _, e := range s.patchElems[pi] {
		n += s.surfs[e].counts[si]
	}
	return n, nil
}

// SetPatchCount sets the patch total, spread over triangles by area.
func (s *Solver) SetPatchCount(patch, spec string, n uint64) error {
	pi, si, err := s.patchSpec(patch, spec)
	if err != nil {
		return err
	}
	s.distributeSurf(s.patchElems[pi], si, n)
	for _, e := range s.patchElems[pi] {
		s.refreshSurf(e)
	}
	s.mutated()
	return nil
}

func (s *Solver) PatchAmount(patch, spec string) (float64, error) {
	n, err := s.PatchCount(patch, spec)
	if err != nil {
		return 0, err
	}
	return float64(n) / statedef.Avogadro, nil
}

func (s *Solver) SetPatchAmount(patch, spec string, mol float64) error {
	n, err := molToCount(mol)
	if err != nil {
		return err
	}
	return s.SetPatchCount(patch, spec, n)
}

func (s *Solver) PatchClamped(patch, spec string) (bool, error) {
	pi, si, err := s.patchSpec(patch, spec)
	if err != nil {
		return false, err
	}
	for _, e := range s.patchElems[pi] {
		if !s.surfs[e].clamped[si] {
			return false, nil
		}
	}
	return len(s.patchElems[pi]) > 0, nil
}

func (s *Solver) SetPatchClamped(patch, spec string, clamped bool) error {
	pi, si, err := s.patchSpec(patch, spec)
	if err != nil {
		return err
	}
	for _, e := range s.patchElems[pi] {
		s.surfs[e].clamped[si] = clamped
	}
	s.mutated()
	return nil
}

func (s *Solver) PatchSReacK(patch, sreac string) (float64, error) {
	pi, local, err := s.patchSReac(patch, sreac)
	if err != nil {
		return 0, err
	}
	k := 0.0
	s.surfKProcs(pi, local, func(_ int, kp *KProc) { k = kp.kcst })
	return k, nil
}

func (s *Solver) SetPatchSReacK(patch, sreac string, k float64) error {
	pi, local, err := s.patchSReac(patch, sreac)
	if err != nil {
		return err
	}
	if k < 0 {
		return fmt.Errorf("%w: surface reaction %q k=%g", statedef.ErrNegativeRate, sreac, k)
	}
	s.surfKProcs(pi, local, func(i int, kp *KProc) {
		kp.kcst = k
		s.scale(kp)
		s.refresh(i)
	})
	s.mutated()
	return nil
}

func (s *Solver) PatchSReacActive(patch, sreac string) (bool, error) {
	pi, local, err := s.patchSReac(patch, sreac)
	if err != nil {
		return false, err
	}
	active := false
	s.surfKProcs(pi, local, func(_ int, kp *KProc) { active = kp.active })
	return active, nil
}

func (s *Solver) SetPatchSReacActive(patch, sreac string, active bool) error {
	pi, local, err := s.patchSReac(patch, sreac)
	if err != nil {
		return err
	}
	s.surfKProcs(pi, local, func(i int, kp *KProc) {
		kp.active = active
		s.refresh(i)
	})
	s.mutated()
	return nil
}

// PatchSReacC scales by the whole patch area, or by the volume of the
// compartment that supplies the volume reactants.
func (s *Solver) PatchSReacC(patch, sreac string) (float64, error) {
	k, err := s.PatchSReacK(patch, sreac)
	if err != nil {
		return 0, err
	}
	pi, _ := s.sd.PatchIndex(patch)
	ri, _ := s.sd.SReacIndex(sreac)
	def, pd := s.sd.SReac(ri), s.sd.Patch(pi)
	if def.SurfaceOnly() {
		return statedef.SurfCcst(k, pd.Area, def.Order()), nil
	}
	ci := pd.OComp
	if def.Inside() {
		ci = pd.IComp
	}
	return statedef.CompCcst(k, s.sd.Comp(ci).Vol, def.Order()), nil
}

func (s *Solver) PatchSReacH(patch, sreac string) (float64, error) {
	pi, local, err := s.patchSReac(patch, sreac)
	if err != nil {
		return 0, err
	}
	h := 0.0
	s.surfKProcs(pi, local, func(_ int, kp *KProc) { h += s.h(kp) })
	return h, nil
}

func (s *Solver) PatchSReacA(patch, sreac string) (float64, error) {
	pi, local, err := s.patchSReac(patch, sreac)
	if err != nil {
		return 0, err
	}
	a := 0.0
	s.surfKProcs(pi, local, func(_ int, kp *KProc) { a += kp.a })
	return a, nil
}

func (s *Solver) PatchSReacExtent(patch, sreac string) (uint64, error) {
	pi, local, err := s.patchSReac(patch, sreac)
	if err != nil {
		return 0, err
	}
	var n uint64
	s.surfKProcs(pi, local, func(_ int, kp *KProc) { n += kp.extent })
	return n, nil
}

func (s *Solver) ResetPatchSReacExtent(patch, sreac string) error {
	pi, local, err := s.patchSReac(patch, sreac)
	if err != nil {
		return err
	}
	s.surfKProcs(pi, local, func(_ int, kp *KProc) { kp.extent = 0 })
	return nil
}

// ---- mesh elements

func (s *Solver) tet(tet int) (int, error) {
	if !s.spatial {
		return -1, ErrNotSpatial
	}
	e, ok := s.tetElem[tet]
	if !ok {
		return -1, &LookupError{Kind: "tetrahedron", Name: strconv.Itoa(tet)}
	}
	return e, nil
}

func (s *Solver) tri(tri int) (int, error) {
	if !s.spatial {
		return -1, ErrNotSpatial
	}
	e, ok := s.triElem[tri]
	if !ok {
		return -1, &LookupError{Kind: "triangle", Name: strconv.Itoa(tri)}
	}
	return e, nil
}

func (s *Solver) TetVol(tet int) (float64, error) {
	e, err := s.tet(tet)
	if err != nil {
		return 0, err
	}
	return s.vols[e].vol, nil
}

func (s *Solver) TetCount(tet int, spec string) (uint64, error) {
	e, err := s.tet(tet)
	if err != nil {
		return 0, err
	}
	si, err := s.specIndex(spec)
	if err != nil {
		return 0, err
	}
	return s.vols[e].counts[si], nil
}

func (s *Solver) SetTetCount(tet int, spec string, n uint64) error {
	e, err := s.tet(tet)
	if err != nil {
		return err
	}
	si, err := s.specIndex(spec)
	if err != nil {
		return err
	}
	s.vols[e].counts[si] = n
	s.refreshVol(e)
	s.mutated()
	return nil
}

func (s *Solver) TetConc(tet int, spec string) (float64, error) {
	n, err := s.TetCount(tet, spec)
	if err != nil {
		return 0, err
	}
	vol, _ := s.TetVol(tet)
	return countToConc(float64(n), vol), nil
}

func (s *Solver) TetClamped(tet int, spec string) (bool, error) {
	e, err := s.tet(tet)
	if err != nil {
		return false, err
	}
	si, err := s.specIndex(spec)
	if err != nil {
		return false, err
	}
	return s.vols[e].clamped[si], nil
}

func (s *Solver) SetTetClamped(tet int, spec string, clamped bool) error {
	e, err := s.tet(tet)
	if err != nil {
		return err
	}
	si, err := s.specIndex(spec)
	if err != nil {
		return err
	}
	s.vols[e].clamped[si] = clamped
	s.mutated()
	return nil
}

// TetDiffA is the hop propensity of a diffusion rule out of one tet.
func (s *Solver) TetDiffA(tet int, diff string) (float64, error) {
	e, err := s.tet(tet)
	if err != nil {
		return 0, err
	}
	comp := s.sd.Comp(s.vols[e].comp).ID
	_, local, err := s.compDiff(comp, diff)
	if err != nil {
		return 0, err
	}
	return s.kprocs[s.vols[e].kprocs[local]].a, nil
}

func (s *Solver) TriArea(tri int) (float64, error) {
	e, err := s.tri(tri)
	if err != nil {
		return 0, err
	}
	return s.surfs[e].area, nil
}

func (s *Solver) TriCount(tri int, spec string) (uint64, error) {
	e, err := s.tri(tri)
	if err != nil {
		return 0, err
	}
	si, err := s.specIndex(spec)
	if err != nil {
		return 0, err
	}
	return s.surfs[e].counts[si], nil
}

func (s *Solver) SetTriCount(tri int, spec string, n uint64) error {
	e, err := s.tri(tri)
	if err != nil {
		return err
	}
	si, err := s.specIndex(spec)
	if err != nil {
		return err
	}
	s.surfs[e].counts[si] = n
	s.refreshSurf(e)
	s.mutated()
	return nil
}
