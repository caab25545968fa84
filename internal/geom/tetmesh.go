package geom

import (
	"fmt"
	"math"
	"slices"

	"gonum.org/v1/gonum/spatial/r3"
)

// TetMesh is a tetrahedral mesh. Triangles are derived from tet faces and
// numbered in order of first appearance (tet 0 faces 0..3, tet 1 ...). Face
// f of a tet is the one opposite its vertex f.
type TetMesh struct {
	verts []r3.Vec
	tets  [][4]int
	tris  [][3]int

	tetVol   []float64
	tetBary  []r3.Vec
	tetTris  [][4]int
	tetNbrs  [][4]int
	triArea  []float64
	triTets  [][2]int
	triIndex map[[3]int]int

	tetComp  []int
	triPatch []int
	comps    []meshComp
	patches  []meshPatch
}

type meshComp struct {
	Comp
	tets []int
}

type meshPatch struct {
	Patch
	tris []int
}

// NewTetMesh builds a mesh from vertex coordinates and tetrahedra given as
// four vertex indices each.
func NewTetMesh(verts [][3]float64, tets [][4]int) (*TetMesh, error) {
	m := &TetMesh{
		verts:    make([]r3.Vec, len(verts)),
		tets:     tets,
		tetVol:   make([]float64, len(tets)),
		tetBary:  make([]r3.Vec, len(tets)),
		tetTris:  make([][4]int, len(tets)),
		tetNbrs:  make([][4]int, len(tets)),
		tetComp:  make([]int, len(tets)),
		triIndex: make(map[[3]int]int),
	}
	for i, v := range verts {
		m.verts[i] = r3.Vec{X: v[0], Y: v[1], Z: v[2]}
	}

	for t, tet := range tets {
		for _, v := range tet {
			if v < 0 || v >= len(verts) {
				return nil, fmt.Errorf("%w: tet %d vertex %d", ErrIndexRange, t, v)
			}
		}
		a, b, c, d := m.verts[tet[0]], m.verts[tet[1]], m.verts[tet[2]], m.verts[tet[3]]
		vol := math.Abs(r3.Dot(r3.Sub(b, a), r3.Cross(r3.Sub(c, a), r3.Sub(d, a)))) / 6
		if vol == 0 {
			return nil, fmt.Errorf("%w: tet %d has zero volume", ErrDegenerate, t)
		}
		m.tetVol[t] = vol
		m.tetBary[t] = r3.Scale(0.25, r3.Add(r3.Add(a, b), r3.Add(c, d)))
		m.tetComp[t] = -1

		for f := 0; f < 4; f++ {
			key := faceKey(tet, f)
			tri, seen := m.triIndex[key]
			if !seen {
				tri = len(m.tris)
				m.triIndex[key] = tri
				m.tris = append(m.tris, key)
				m.triTets = append(m.triTets, [2]int{t, -1})
			} else {
				if m.triTets[tri][1] >= 0 {
					return nil, fmt.Errorf("%w: triangle %v shared by more than two tets", ErrDegenerate, key)
				}
				m.triTets[tri][1] = t
			}
			m.tetTris[t][f] = tri
		}
	}

	m.triArea = make([]float64, len(m.tris))
	m.triPatch = make([]int, len(m.tris))
	for i, tri := range m.tris {
		a, b, c := m.verts[tri[0]], m.verts[tri[1]], m.verts[tri[2]]
		m.triArea[i] = r3.Norm(r3.Cross(r3.Sub(b, a), r3.Sub(c, a))) / 2
		m.triPatch[i] = -1
	}
	for t := range tets {
		for f := 0; f < 4; f++ {
			pair := m.triTets[m.tetTris[t][f]]
			if pair[0] == t {
				m.tetNbrs[t][f] = pair[1]
			} else {
				m.tetNbrs[t][f] = pair[0]
			}
		}
	}
	return m, nil
}

func faceKey(tet [4]int, f int) [3]int {
	var key [3]int
	k := 0
	for i, v := range tet {
		if i != f {
			key[k] = v
			k++
		}
	}
	slices.Sort(key[:])
	return key
}

// AddComp assigns tets to a new compartment. Repeated indices within one
// call are ignored.
func (m *TetMesh) AddComp(id string, tets []int, volsys ...string) error {
	if m.compIndex(id) >= 0 {
		return fmt.Errorf("%w: %q", ErrDuplicateID, id)
	}
	ci := len(m.comps)
	var owned []int
	for _, t := range tets {
		if t < 0 || t >= len(m.tets) {
			return fmt.Errorf("%w: compartment %q tet %d", ErrIndexRange, id, t)
		}
		switch m.tetComp[t] {
		case ci:
			continue
		case -1:
		default:
			m.release(owned)
			return fmt.Errorf("%w: tet %d in %q and %q", ErrDuplicateElement, t, m.comps[m.tetComp[t]].ID, id)
		}
		m.tetComp[t] = ci
		owned = append(owned, t)
	}
	slices.Sort(owned)
	vol := 0.0
	for _, t := range owned {
		vol += m.tetVol[t]
	}
	m.comps = append(m.comps, meshComp{Comp: Comp{ID: id, Volsys: volsys, Vol: vol}, tets: owned})
	return nil
}

func (m *TetMesh) release(tets []int) {
	for _, t := range tets {
		m.tetComp[t] = -1
	}
}

// AddPatch assigns triangles, given by their three vertex indices, to a new
// patch. Each triangle needs one tet in icomp and, when ocomp is set, the
// other in ocomp; without ocomp the triangle's other side must not belong
// to icomp.
func (m *TetMesh) AddPatch(id string, tris [][3]int, icomp, ocomp string, surfsys ...string) error {
	for _, p := range m.patches {
		if p.ID == id {
			return fmt.Errorf("%w: %q", ErrDuplicateID, id)
		}
	}
	ic := m.compIndex(icomp)
	if ic < 0 {
		return fmt.Errorf("%w: inner compartment %q of patch %q", ErrUnknownContainer, icomp, id)
	}
	oc := -1
	if ocomp != "" {
		if oc = m.compIndex(ocomp); oc < 0 {
			return fmt.Errorf("%w: outer compartment %q of patch %q", ErrUnknownContainer, ocomp, id)
		}
	}

	pi := len(m.patches)
	var owned []int
	fail := func(err error) error {
		for _, tri := range owned {
			m.triPatch[tri] = -1
		}
		return err
	}
	for _, verts := range tris {
		key := verts
		slices.Sort(key[:])
		tri, ok := m.triIndex[key]
		if !ok {
			return fail(fmt.Errorf("%w: patch %q triangle %v is not a tet face", ErrIndexRange, id, verts))
		}
		switch m.triPatch[tri] {
		case pi:
			continue
		case -1:
		default:
			return fail(fmt.Errorf("%w: triangle %v in %q and %q", ErrDuplicateElement, verts, m.patches[m.triPatch[tri]].ID, id))
		}
		if _, _, err := m.orient(tri, ic, oc); err != nil {
			return fail(fmt.Errorf("%w: patch %q triangle %v", err, id, verts))
		}
		m.triPatch[tri] = pi
		owned = append(owned, tri)
	}
	slices.Sort(owned)
	area := 0.0
	for _, tri := range owned {
		area += m.triArea[tri]
	}
	m.patches = append(m.patches, meshPatch{
		Patch: Patch{ID: id, Surfsys: surfsys, IComp: icomp, OComp: ocomp, Area: area},
		tris:  owned,
	})
	return nil
}

// orient returns the inner and outer tet of a triangle relative to the
// given compartments.
func (m *TetMesh) orient(tri, ic, oc int) (inner, outer int, err error) {
	pair := m.triTets[tri]
	compOf := func(t int) int {
		if t < 0 {
			return -1
		}
		return m.tetComp[t]
	}
	for _, p := range [][2]int{{pair[0], pair[1]}, {pair[1], pair[0]}} {
		if p[0] < 0 || compOf(p[0]) != ic {
			continue
		}
		if oc >= 0 && compOf(p[1]) == oc {
			return p[0], p[1], nil
		}
		if oc < 0 && compOf(p[1]) != ic {
			return p[0], -1, nil
		}
	}
	return -1, -1, ErrBadPatch
}

func (m *TetMesh) compIndex(id string) int {
	for i, c := range m.comps {
		if c.ID == id {
			return i
		}
	}
	return -1
}

func (m *TetMesh) NTets() int { return len(m.tets) }
func (m *TetMesh) NTris() int { return len(m.tris) }

func (m *TetMesh) TetVol(t int) float64    { return m.tetVol[t] }
func (m *TetMesh) TriArea(tri int) float64 { return m.triArea[tri] }

// TetNeighbors returns the tets across each face, -1 on the boundary.
func (m *TetMesh) TetNeighbors(t int) [4]int { return m.tetNbrs[t] }

// TetBarycenter returns the centre of mass of a tet.
func (m *TetMesh) TetBarycenter(t int) [3]float64 {
	b := m.tetBary[t]
	return [3]float64{b.X, b.Y, b.Z}
}

// FindTri returns the triangle with the given vertices.
func (m *TetMesh) FindTri(verts [3]int) (int, bool) {
	slices.Sort(verts[:])
	tri, ok := m.triIndex[verts]
	return tri, ok
}

// Bounds returns the axis-aligned bounding box of a compartment's tets.
func (m *TetMesh) Bounds(comp string) (lo, hi [3]float64, err error) {
	ci := m.compIndex(comp)
	if ci < 0 {
		return lo, hi, fmt.Errorf("%w: %q", ErrUnknownContainer, comp)
	}
	lo = [3]float64{math.Inf(1), math.Inf(1), math.Inf(1)}
	hi = [3]float64{math.Inf(-1), math.Inf(-1), math.Inf(-1)}
	for _, t := range m.comps[ci].tets {
		for _, v := range m.tets[t] {
			p := [3]float64{m.verts[v].X, m.verts[v].Y, m.verts[v].Z}
			for k := range p {
				lo[k] = math.Min(lo[k], p[k])
				hi[k] = math.Max(hi[k], p[k])
			}
		}
	}
	return lo, hi, nil
}

func (m *TetMesh) Spatial() bool { return true }

func (m *TetMesh) Comps() []Comp {
	out := make([]Comp, len(m.comps))
	for i, c := range m.comps {
		out[i] = c.Comp
	}
	return out
}

func (m *TetMesh) Patches() []Patch {
	out := make([]Patch, len(m.patches))
	for i, p := range m.patches {
		out[i] = p.Patch
	}
	return out
}

// VolElems returns one element per tet that belongs to a compartment, in
// compartment order and ascending tet index within each compartment.
// Faces only link tets of the same compartment.
func (m *TetMesh) VolElems() []VolElem {
	elemOf := m.tetElems()
	var elems []VolElem
	for ci, c := range m.comps {
		for _, t := range c.tets {
			e := VolElem{Comp: ci, Index: t, Vol: m.tetVol[t]}
			for f, n := range m.tetNbrs[t] {
				if n < 0 || m.tetComp[n] != ci {
					continue
				}
				e.Faces = append(e.Faces, Face{
					Elem: elemOf[n],
					Area: m.triArea[m.tetTris[t][f]],
					Dist: r3.Norm(r3.Sub(m.tetBary[t], m.tetBary[n])),
				})
			}
			elems = append(elems, e)
		}
	}
	return elems
}

func (m *TetMesh) SurfElems() []SurfElem {
	elemOf := m.tetElems()
	var elems []SurfElem
	for pi, p := range m.patches {
		ic := m.compIndex(p.IComp)
		oc := m.compIndex(p.OComp)
		for _, tri := range p.tris {
			inner, outer, _ := m.orient(tri, ic, oc)
			se := SurfElem{Patch: pi, Index: tri, Area: m.triArea[tri], Inner: elemOf[inner], Outer: -1}
			if outer >= 0 {
				se.Outer = elemOf[outer]
			}
			elems = append(elems, se)
		}
	}
	return elems
}

func (m *TetMesh) tetElems() map[int]int {
	elemOf := make(map[int]int, len(m.tets))
	for _, c := range m.comps {
		for _, t := range c.tets {
			elemOf[t] = len(elemOf)
		}
	}
	return elemOf
}
