package statedef

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/kmcsim/internal/geom"
	"github.com/san-kum/kmcsim/internal/model"
)

func membraneModel() *model.Model {
	return &model.Model{
		Species: []model.Species{{ID: "A"}, {ID: "B"}, {ID: "R"}, {ID: "AR"}},
		Volsys: []model.Volsys{{
			ID: "vsys",
			Reacs: []model.Reac{
				{ID: "dimer", LHS: []string{"A", "A"}, RHS: []string{"B"}, K: 2},
				{ID: "swap", LHS: []string{"A", "B"}, RHS: []string{"B", "B"}, K: 1},
			},
			Diffs: []model.Diff{{ID: "diffA", Lig: "A", D: 1e-12}},
		}},
		Surfsys: []model.Surfsys{{
			ID: "ssys",
			SReacs: []model.SReac{
				{ID: "bind", ILHS: []string{"A"}, SLHS: []string{"R"}, SRHS: []string{"AR"}, K: 1e6},
				{ID: "release", SLHS: []string{"AR"}, SRHS: []string{"R"}, ORHS: []string{"A"}, K: 0.5},
			},
		}},
	}
}

func membraneGeom(t *testing.T, outer bool) *geom.WellMixed {
	t.Helper()
	g := geom.NewWellMixed()
	require.NoError(t, g.AddComp("cyt", 1e-18, "vsys"))
	ocomp := ""
	if outer {
		require.NoError(t, g.AddComp("ext", 1e-18))
		ocomp = "ext"
	}
	require.NoError(t, g.AddPatch("memb", 1e-12, "cyt", ocomp, "ssys"))
	return g
}

func TestReacSetup(t *testing.T) {
	sd, err := New(membraneModel(), membraneGeom(t, true))
	require.NoError(t, err)

	a, _ := sd.SpecIndex("A")
	b, _ := sd.SpecIndex("B")
	ri, ok := sd.ReacIndex("dimer")
	require.True(t, ok)
	d := sd.Reac(ri)
	assert.Equal(t, 2, d.Order())
	assert.Equal(t, 2, d.LHS(a))
	assert.Equal(t, -2, d.UPD(a))
	assert.Equal(t, 1, d.UPD(b))
	assert.Equal(t, DepStoich, d.Dep(a))
	assert.Equal(t, DepNone, d.Dep(b))
	assert.True(t, d.ReqSpec(b))
	assert.Equal(t, []int{a, b}, d.UpdColl())

	// B is consumed and produced, so it is both a dependency and updated.
	swap := sd.Reac(1)
	assert.Equal(t, []int{a, b}, swap.LHSColl())
	assert.Equal(t, []int{a, b}, swap.UpdColl())
	assert.Equal(t, 1, swap.UPD(b))
	assert.Equal(t, DepStoich, swap.Dep(b))
}

func TestSReacSetup(t *testing.T) {
	sd, err := New(membraneModel(), membraneGeom(t, true))
	require.NoError(t, err)
	a, _ := sd.SpecIndex("A")
	r, _ := sd.SpecIndex("R")
	ar, _ := sd.SpecIndex("AR")

	si, ok := sd.SReacIndex("bind")
	require.True(t, ok)
	bind := sd.SReac(si)
	assert.True(t, bind.Inside())
	assert.False(t, bind.SurfaceOnly())
	assert.Equal(t, 1, bind.LHS(SideI, a))
	assert.Equal(t, 0, bind.LHS(SideO, a))
	assert.Equal(t, -1, bind.UPD(SideS, r))
	assert.Equal(t, 1, bind.UPD(SideS, ar))
	assert.Equal(t, DepStoich, bind.Dep(SideI, a))
	assert.True(t, bind.ReqInside())
	assert.False(t, bind.ReqOutside())

	release := sd.SReac(1)
	assert.True(t, release.Outside())
	assert.True(t, release.SurfaceOnly())
	assert.True(t, release.ReqOutside())
	assert.Equal(t, []int{a}, release.UpdColl(SideO))

	p := sd.Patch(0)
	assert.Equal(t, 0, p.IComp)
	assert.Equal(t, 1, p.OComp)
	assert.Equal(t, []int{0, 1}, p.SReacs)
}

func TestMissingOuterComp(t *testing.T) {
	_, err := New(membraneModel(), membraneGeom(t, false))
	assert.ErrorIs(t, err, ErrMissingComp)
}

func TestUnknownSystem(t *testing.T) {
	g := geom.NewWellMixed()
	require.NoError(t, g.AddComp("cyt", 1e-18, "nope"))
	_, err := New(membraneModel(), g)
	assert.ErrorIs(t, err, ErrUnknownSystem)
}

func TestSetupContract(t *testing.T) {
	spec := NewReacSpec(nil, 0, model.Reac{ID: "r", LHS: []string{"A"}, K: 1})
	_, err := spec.Setup()
	assert.ErrorIs(t, err, ErrNoParent)

	sd, err := New(membraneModel(), membraneGeom(t, true))
	require.NoError(t, err)

	_, err = NewReacSpec(sd, 9, model.Reac{ID: "neg", LHS: []string{"A"}, K: -1}).Setup()
	assert.ErrorIs(t, err, ErrNegativeRate)
	_, err = NewReacSpec(sd, 9, model.Reac{ID: "bad", LHS: []string{"Q"}, K: 1}).Setup()
	assert.ErrorIs(t, err, ErrUnknownSpecies)
	_, err = NewDiffSpec(sd, 9, model.Diff{ID: "dneg", Lig: "A", D: -1}).Setup()
	assert.ErrorIs(t, err, ErrNegativeRate)

	once := NewReacSpec(sd, 9, model.Reac{ID: "once", LHS: []string{"A"}, K: 1})
	def, err := once.Setup()
	require.NoError(t, err)
	assert.Equal(t, 9, def.GIdx())
	assert.Panics(t, func() { _, _ = once.Setup() })
	assert.Equal(t, 1.0, def.K())
}

func TestDiffDef(t *testing.T) {
	sd, err := New(membraneModel(), membraneGeom(t, true))
	require.NoError(t, err)
	di, ok := sd.DiffIndex("diffA")
	require.True(t, ok)
	d := sd.Diff(di)
	a, _ := sd.SpecIndex("A")
	assert.Equal(t, a, d.Lig())
	assert.Equal(t, DepStoich, d.Dep(a))
	assert.Equal(t, DepNone, d.Dep(a+1))
	assert.Equal(t, []int{0}, sd.Comp(0).Diffs)
	assert.Empty(t, sd.Comp(1).Reacs)

	_, ok = sd.DiffIndex("dimer")
	assert.False(t, ok)
}

func TestCcst(t *testing.T) {
	vol := 1e-18
	vscale := 1e3 * vol * Avogadro
	assert.Equal(t, 5.0, CompCcst(5, vol, 1))
	assert.InEpsilon(t, 5*vscale, CompCcst(5, vol, 0), 1e-12)
	assert.InEpsilon(t, 5/vscale, CompCcst(5, vol, 2), 1e-12)
	assert.InEpsilon(t, 5/math.Pow(1e-12*Avogadro, 2), SurfCcst(5, 1e-12, 3), 1e-12)
}
