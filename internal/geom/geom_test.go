package geom

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// twoTets shares the face (1,2,3) between tet 0 and tet 1.
func twoTets(t *testing.T) *TetMesh {
	t.Helper()
	m, err := NewTetMesh(
		[][3]float64{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}, {0, 0, 1}, {1, 1, 1}},
		[][4]int{{0, 1, 2, 3}, {1, 2, 3, 4}},
	)
	require.NoError(t, err)
	return m
}

func TestTetMeshDerived(t *testing.T) {
	m := twoTets(t)
	assert.Equal(t, 2, m.NTets())
	assert.Equal(t, 7, m.NTris())
	assert.InDelta(t, 1.0/6, m.TetVol(0), 1e-12)
	assert.InDelta(t, 1.0/3, m.TetVol(1), 1e-12)

	shared, ok := m.FindTri([3]int{3, 2, 1})
	require.True(t, ok)
	assert.InDelta(t, math.Sqrt(3)/2, m.TriArea(shared), 1e-12)
	assert.Equal(t, [4]int{1, -1, -1, -1}, m.TetNeighbors(0))
	assert.Equal(t, [3]float64{0.25, 0.25, 0.25}, m.TetBarycenter(0))
}

func TestTetMeshElements(t *testing.T) {
	m := twoTets(t)
	require.NoError(t, m.AddComp("cyt", []int{1, 0, 0}, "vsys"))
	require.NoError(t, m.AddPatch("memb", [][3]int{{0, 1, 2}}, "cyt", "", "ssys"))

	comps := m.Comps()
	require.Len(t, comps, 1)
	assert.InDelta(t, 0.5, comps[0].Vol, 1e-12)

	vols := m.VolElems()
	require.Len(t, vols, 2)
	assert.Equal(t, 0, vols[0].Index)
	require.Len(t, vols[0].Faces, 1)
	assert.Equal(t, 1, vols[0].Faces[0].Elem)
	assert.InDelta(t, math.Sqrt(3)/4, vols[0].Faces[0].Dist, 1e-12)

	surfs := m.SurfElems()
	require.Len(t, surfs, 1)
	assert.Equal(t, 0, surfs[0].Inner)
	assert.Equal(t, -1, surfs[0].Outer)
	assert.InDelta(t, 0.5, surfs[0].Area, 1e-12)

	lo, hi, err := m.Bounds("cyt")
	require.NoError(t, err)
	assert.Equal(t, [3]float64{0, 0, 0}, lo)
	assert.Equal(t, [3]float64{1, 1, 1}, hi)
}

func TestTetMeshErrors(t *testing.T) {
	_, err := NewTetMesh([][3]float64{{0, 0, 0}}, [][4]int{{0, 1, 2, 3}})
	assert.ErrorIs(t, err, ErrIndexRange)

	_, err = NewTetMesh([][3]float64{{0, 0, 0}, {1, 0, 0}, {2, 0, 0}, {3, 0, 0}}, [][4]int{{0, 1, 2, 3}})
	assert.ErrorIs(t, err, ErrDegenerate)

	m := twoTets(t)
	require.NoError(t, m.AddComp("a", []int{0}))
	assert.ErrorIs(t, m.AddComp("b", []int{1, 0}), ErrDuplicateElement)
	assert.ErrorIs(t, m.AddComp("a", []int{1}), ErrDuplicateID)
	assert.ErrorIs(t, m.AddComp("c", []int{7}), ErrIndexRange)

	// the failed assignment must not leave tet 1 claimed
	require.NoError(t, m.AddComp("b", []int{1}))

	assert.ErrorIs(t, m.AddPatch("p", [][3]int{{1, 2, 3}}, "nope", ""), ErrUnknownContainer)
	assert.ErrorIs(t, m.AddPatch("p", [][3]int{{2, 3, 4}}, "a", "b"), ErrBadPatch)
	require.NoError(t, m.AddPatch("p", [][3]int{{1, 2, 3}}, "a", "b"))
	assert.ErrorIs(t, m.AddPatch("q", [][3]int{{1, 2, 3}}, "b", "a"), ErrDuplicateElement)

	surfs := m.SurfElems()
	require.Len(t, surfs, 1)
	assert.Equal(t, 0, surfs[0].Inner)
	assert.Equal(t, 1, surfs[0].Outer)
	// different compartments: no diffusion face
	for _, e := range m.VolElems() {
		assert.Empty(t, e.Faces)
	}
}

func TestWellMixed(t *testing.T) {
	w := NewWellMixed()
	require.NoError(t, w.AddComp("cyt", 1e-18, "vsys"))
	require.NoError(t, w.AddComp("ext", 2e-18))
	require.NoError(t, w.AddPatch("memb", 1e-12, "cyt", "ext", "ssys"))

	assert.ErrorIs(t, w.AddComp("cyt", 1), ErrDuplicateID)
	assert.ErrorIs(t, w.AddComp("neg", -1), ErrNegativeMeasure)
	assert.ErrorIs(t, w.AddPatch("bad", 1, "nowhere", ""), ErrUnknownContainer)

	assert.False(t, w.Spatial())
	vols := w.VolElems()
	require.Len(t, vols, 2)
	assert.Equal(t, 2e-18, vols[1].Vol)
	surfs := w.SurfElems()
	require.Len(t, surfs, 1)
	assert.Equal(t, SurfElem{Patch: 0, Index: 0, Area: 1e-12, Inner: 0, Outer: 1}, surfs[0])
}
