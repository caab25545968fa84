package sim

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/san-kum/kmcsim/internal/geom"
	"github.com/san-kum/kmcsim/internal/model"
	"github.com/san-kum/kmcsim/internal/rng"
)

var schedulers = []string{"direct", "tree"}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newSolver(t *testing.T, m *model.Model, g geom.Geometry, scheduler string, seed uint64, init ...Initial) *Solver {
	t.Helper()
	src, err := rng.New("mt19937", seed)
	require.NoError(t, err)
	s, err := New(m, g, src, Options{
		Scheduler: scheduler,
		Fanout:    2,
		Initial:   init,
		Logger:    quietLogger(),
	})
	require.NoError(t, err)
	return s
}

func wellMixed(t *testing.T, vol float64) *geom.WellMixed {
	t.Helper()
	g := geom.NewWellMixed()
	require.NoError(t, g.AddComp("cyt", vol, "vsys"))
	return g
}

func volModel(species []string, reacs ...model.Reac) *model.Model {
	m := &model.Model{Volsys: []model.Volsys{{ID: "vsys", Reacs: reacs}}}
	for _, s := range species {
		m.Species = append(m.Species, model.Species{ID: s})
	}
	return m
}

func annihilationModel() *model.Model {
	return volModel([]string{"A", "B"},
		model.Reac{ID: "R1", LHS: []string{"A", "B"}, K: 1e6})
}

func birthDeathModel() *model.Model {
	return volModel([]string{"A", "B"},
		model.Reac{ID: "birth", RHS: []string{"A"}, K: 1.66e-10},
		model.Reac{ID: "death", LHS: []string{"A"}, K: 0.5},
		model.Reac{ID: "dimer", LHS: []string{"A", "A"}, RHS: []string{"B"}, K: 1e10},
		model.Reac{ID: "split", LHS: []string{"B"}, RHS: []string{"A", "A"}, K: 2},
	)
}

func membraneModel() *model.Model {
	return &model.Model{
		Species: []model.Species{{ID: "A"}, {ID: "R"}, {ID: "AR"}},
		Volsys:  []model.Volsys{{ID: "vsys"}},
		Surfsys: []model.Surfsys{{
			ID: "ssys",
			SReacs: []model.SReac{
				{ID: "bind", ILHS: []string{"A"}, SLHS: []string{"R"}, SRHS: []string{"AR"}, K: 1e8},
				{ID: "release", SLHS: []string{"AR"}, SRHS: []string{"R"}, ORHS: []string{"A"}, K: 5},
				{ID: "leak", OLHS: []string{"A"}, IRHS: []string{"A"}, K: 0.5},
			},
		}},
	}
}

func membraneGeom(t *testing.T) *geom.WellMixed {
	t.Helper()
	g := geom.NewWellMixed()
	require.NoError(t, g.AddComp("cyt", 1e-18, "vsys"))
	require.NoError(t, g.AddComp("ext", 2e-18, "vsys"))
	require.NoError(t, g.AddPatch("memb", 1e-12, "cyt", "ext", "ssys"))
	return g
}

// diffusionPair is two tets sharing one face, 1 µm across.
func diffusionPair(t *testing.T) (*model.Model, *geom.TetMesh) {
	t.Helper()
	const um = 1e-6
	mesh, err := geom.NewTetMesh(
		[][3]float64{{0, 0, 0}, {um, 0, 0}, {0, um, 0}, {0, 0, um}, {um, um, um}},
		[][4]int{{0, 1, 2, 3}, {1, 2, 3, 4}},
	)
	require.NoError(t, err)
	require.NoError(t, mesh.AddComp("cyt", []int{0, 1}, "vsys"))
	m := &model.Model{
		Species: []model.Species{{ID: "X"}},
		Volsys: []model.Volsys{{
			ID:    "vsys",
			Diffs: []model.Diff{{ID: "dX", Lig: "X", D: 1e-12}},
		}},
	}
	return m, mesh
}
