package sim

import (
	"context"
	"errors"
	"math"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/kmcsim/internal/geom"
	"github.com/san-kum/kmcsim/internal/model"
	"github.com/san-kum/kmcsim/internal/rng"
	"github.com/san-kum/kmcsim/internal/sched"
	"github.com/san-kum/kmcsim/internal/statedef"
)

func TestNewRequiresCollaborators(t *testing.T) {
	src, err := rng.New("pcg", 1)
	require.NoError(t, err)
	g := wellMixed(t, 1e-18)

	_, err = New(nil, g, src, Options{})
	assert.ErrorIs(t, err, ErrMissing)
	_, err = New(annihilationModel(), g, nil, Options{})
	assert.ErrorIs(t, err, ErrMissing)
	_, err = New(annihilationModel(), g, src, Options{Scheduler: "nope"})
	assert.ErrorIs(t, err, sched.ErrUnknownScheduler)

	bad := annihilationModel()
	bad.Volsys[0].Reacs[0].K = -1
	_, err = New(bad, g, src, Options{})
	assert.ErrorIs(t, err, model.ErrInvalidModel)

	_, err = New(annihilationModel(), g, src, Options{Initial: []Initial{{Where: "nucleus", Species: "A", Count: 1}}})
	var lookup *LookupError
	require.ErrorAs(t, err, &lookup)
	assert.Equal(t, "container", lookup.Kind)
}

func TestPropensity(t *testing.T) {
	const vol = 1e-16
	vscale := 1e3 * vol * statedef.Avogadro
	s := newSolver(t, birthDeathModel(), wellMixed(t, vol), "direct", 1)

	tests := []struct {
		reac string
		a, b uint64
		h    float64
		c    float64
	}{
		{"birth", 0, 0, 1, 1.66e-10 * vscale},
		{"death", 7, 0, 7, 0.5},
		{"dimer", 1, 0, 0, 1e10 / vscale},
		{"dimer", 5, 0, 10, 1e10 / vscale},
		{"split", 0, 3, 3, 2},
		{"split", 0, 0, 0, 2},
	}
	for _, tt := range tests {
		require.NoError(t, s.SetCompCount("cyt", "A", tt.a))
		require.NoError(t, s.SetCompCount("cyt", "B", tt.b))

		h, err := s.CompReacH("cyt", tt.reac)
		require.NoError(t, err)
		assert.Equal(t, tt.h, h, tt.reac)

		c, err := s.CompReacC("cyt", tt.reac)
		require.NoError(t, err)
		assert.InEpsilon(t, tt.c, c, 1e-12, tt.reac)

		a, err := s.CompReacA("cyt", tt.reac)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, a, 0.0)
		assert.InDelta(t, tt.c*tt.h, a, 1e-9*tt.c*tt.h, tt.reac)
	}

	require.NoError(t, s.SetCompReacActive("cyt", "death", false))
	require.NoError(t, s.SetCompCount("cyt", "A", 100))
	a, err := s.CompReacA("cyt", "death")
	require.NoError(t, err)
	assert.Zero(t, a)
	require.NoError(t, s.CheckInvariants())
}

func TestInvariantsEveryStep(t *testing.T) {
	for _, name := range schedulers {
		t.Run(name, func(t *testing.T) {
			s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), name, 5,
				Initial{Where: "cyt", Species: "A", Count: 40})
			for i := 0; i < 3000; i++ {
				require.NoError(t, s.Step())
				require.NoError(t, s.CheckInvariants(), "step %d", i)
			}
			assert.Equal(t, uint64(3000), s.NSteps())
			assert.Equal(t, Running, s.Status())
		})
	}
}

func TestInvariantsMembrane(t *testing.T) {
	for _, name := range schedulers {
		t.Run(name, func(t *testing.T) {
			s := newSolver(t, membraneModel(), membraneGeom(t), name, 9,
				Initial{Where: "cyt", Species: "A", Count: 200},
				Initial{Where: "memb", Species: "R", Count: 50})
			count := func(where, spec string) uint64 {
				var n uint64
				var err error
				if where == "memb" {
					n, err = s.PatchCount(where, spec)
				} else {
					n, err = s.CompCount(where, spec)
				}
				require.NoError(t, err)
				return n
			}
			for i := 0; i < 2000; i++ {
				require.NoError(t, s.Step())
				require.NoError(t, s.CheckInvariants())
				assert.Equal(t, uint64(200), count("cyt", "A")+count("ext", "A")+count("memb", "AR"))
				assert.Equal(t, uint64(50), count("memb", "R")+count("memb", "AR"))
			}
			n, err := s.PatchSReacExtent("memb", "bind")
			require.NoError(t, err)
			assert.Positive(t, n)
		})
	}
}

func TestAnnihilation(t *testing.T) {
	for _, name := range schedulers {
		t.Run(name, func(t *testing.T) {
			s := newSolver(t, annihilationModel(), wellMixed(t, 1e-18), name, 42,
				Initial{Where: "cyt", Species: "A", Count: 100},
				Initial{Where: "cyt", Species: "B", Count: 100})
			assert.Equal(t, Idle, s.Status())

			require.NoError(t, s.Run(1e9))
			a, _ := s.CompCount("cyt", "A")
			b, _ := s.CompCount("cyt", "B")
			assert.Zero(t, min(a, b))
			assert.Zero(t, a)
			assert.Zero(t, b)

			extent, err := s.CompReacExtent("cyt", "R1")
			require.NoError(t, err)
			assert.Equal(t, uint64(100), extent)
			assert.Equal(t, uint64(100), s.NSteps())
			assert.Equal(t, Terminated, s.Status())
			assert.Equal(t, 1e9, s.Time())
			assert.Zero(t, s.A0())

			err = s.Step()
			assert.ErrorIs(t, err, ErrNoEvent)
			assert.True(t, IsNoEvent(err))

			require.NoError(t, s.ResetCompReacExtent("cyt", "R1"))
			extent, _ = s.CompReacExtent("cyt", "R1")
			assert.Zero(t, extent)
		})
	}
}

func TestDiffusionPair(t *testing.T) {
	for _, name := range schedulers {
		t.Run(name, func(t *testing.T) {
			m, mesh := diffusionPair(t)
			s := newSolver(t, m, mesh, name, 3)
			require.NoError(t, s.SetTetCount(0, "X", 100))

			a0, err := s.TetDiffA(0, "dX")
			require.NoError(t, err)
			assert.InEpsilon(t, 12.0*100, a0, 1e-9)
			a1, err := s.TetDiffA(1, "dX")
			require.NoError(t, err)
			assert.Zero(t, a1)

			seen := false
			for i := 0; i < 500; i++ {
				require.NoError(t, s.Step())
				n0, _ := s.TetCount(0, "X")
				n1, _ := s.TetCount(1, "X")
				require.Equal(t, uint64(100), n0+n1, "step %d", i)
				if n1 > 0 {
					seen = true
				}
				require.NoError(t, s.CheckInvariants())
			}
			assert.True(t, seen)

			total, _ := s.CompCount("cyt", "X")
			assert.Equal(t, uint64(100), total)
		})
	}
}

func TestDiffusionClamped(t *testing.T) {
	m, mesh := diffusionPair(t)
	s := newSolver(t, m, mesh, "direct", 4)
	require.NoError(t, s.SetTetCount(0, "X", 10))
	require.NoError(t, s.SetTetClamped(0, "X", true))
	for i := 0; i < 50; i++ {
		require.NoError(t, s.Step())
	}
	n0, _ := s.TetCount(0, "X")
	assert.Equal(t, uint64(10), n0)
	n1, _ := s.TetCount(1, "X")
	assert.Positive(t, n1)
}

func TestCountNeverNegative(t *testing.T) {
	s := newSolver(t, annihilationModel(), wellMixed(t, 1e-18), "direct", 1,
		Initial{Where: "cyt", Species: "A", Count: 1})
	k := &s.kprocs[0]
	assert.Zero(t, k.a)
	assert.Panics(t, func() { s.apply(k) })

	// a corrupted cache must not be able to drive a count below zero
	k.a = 1
	assert.Panics(t, func() { s.apply(k) })
}

func TestRunSplitMatchesSingleRun(t *testing.T) {
	for _, name := range schedulers {
		t.Run(name, func(t *testing.T) {
			init := Initial{Where: "cyt", Species: "A", Count: 30}
			whole := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), name, 77, init)
			split := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), name, 77, init)

			require.NoError(t, whole.Run(4))
			for _, end := range []float64{0.5, 1, 1.01, 2.5, 4} {
				require.NoError(t, split.Run(end))
				assert.Equal(t, end, split.Time())
			}
			assert.Equal(t, whole.NSteps(), split.NSteps())
			for _, spec := range []string{"A", "B"} {
				a, _ := whole.CompCount("cyt", spec)
				b, _ := split.CompCount("cyt", spec)
				assert.Equal(t, a, b)
			}
		})
	}
}

func TestPendingEvent(t *testing.T) {
	s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "direct", 2,
		Initial{Where: "cyt", Species: "A", Count: 30})
	require.NoError(t, s.Run(0.001))
	require.NotNil(t, s.pending)
	assert.Greater(t, s.pending.at, 0.001)

	at := s.pending.at
	steps := s.NSteps()
	require.NoError(t, s.Step())
	assert.Equal(t, at, s.Time())
	assert.Equal(t, steps+1, s.NSteps())

	require.NoError(t, s.Run(s.Time()+1e-6))
	require.NotNil(t, s.pending)
	require.NoError(t, s.SetCompCount("cyt", "A", 31))
	assert.Nil(t, s.pending)

	err := s.Run(0)
	var simErr *SimError
	require.ErrorAs(t, err, &simErr)
	assert.ErrorIs(t, err, ErrPastTime)
}

func TestRunContextCancel(t *testing.T) {
	s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "tree", 8,
		Initial{Where: "cyt", Species: "A", Count: 30})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.RunContext(ctx, 100)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Zero(t, s.Time())
	require.NoError(t, s.Run(1))
}

func TestStatusOfEmptySolver(t *testing.T) {
	s := newSolver(t, annihilationModel(), wellMixed(t, 1e-18), "direct", 1)
	assert.Zero(t, s.A0())
	assert.Equal(t, Idle, s.Status())

	require.NoError(t, s.Run(1))
	assert.Equal(t, Terminated, s.Status())
	assert.Equal(t, 1.0, s.Time())
	assert.Zero(t, s.NSteps())
}

func TestReset(t *testing.T) {
	s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "tree", 8,
		Initial{Where: "cyt", Species: "A", Count: 30})
	deps := s.kprocs[0].deps
	require.NoError(t, s.SetCompReacK("cyt", "death", 9))
	require.NoError(t, s.Run(2))
	require.NotZero(t, s.NSteps())

	require.NoError(t, s.Reset())
	assert.Equal(t, Idle, s.Status())
	assert.Zero(t, s.Time())
	n, _ := s.CompCount("cyt", "A")
	assert.Equal(t, uint64(30), n)
	k, _ := s.CompReacK("cyt", "death")
	assert.Equal(t, 0.5, k)
	assert.Same(t, &deps[0], &s.kprocs[0].deps[0])
	require.NoError(t, s.CheckInvariants())
}

func TestDependencies(t *testing.T) {
	s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "direct", 1)
	// birth writes A: read by death and dimer, not split
	assert.Equal(t, []int{0, 1, 2}, s.kprocs[0].deps)
	// split writes A and B
	assert.Equal(t, []int{1, 2, 3}, s.kprocs[3].deps)

	ms := newSolver(t, membraneModel(), membraneGeom(t), "direct", 1)
	// bind consumes cyt A and R, produces AR: bind, release
	assert.Equal(t, []int{0, 1}, ms.kprocs[0].deps)
	// leak moves ext A into cyt: bind reads cyt A, leak reads ext A
	assert.Equal(t, []int{0, 2}, ms.kprocs[2].deps)
}

// TestSchedulersAgree compares final-count distributions of the two
// schedulers over independent replicates.
func TestSchedulersAgree(t *testing.T) {
	if testing.Short() {
		t.Skip("statistical test")
	}
	const reps = 300
	sample := func(name string, seedBase uint64) []float64 {
		out := make([]float64, reps)
		for i := range out {
			s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), name, seedBase+uint64(i),
				Initial{Where: "cyt", Species: "A", Count: 40})
			require.NoError(t, s.Run(1))
			n, _ := s.CompCount("cyt", "A")
			out[i] = float64(n)
		}
		slices.Sort(out)
		return out
	}
	direct := sample("direct", 1000)
	tree := sample("tree", 5000)
	d := stat.KolmogorovSmirnov(direct, nil, tree, nil)
	crit := 1.95 * math.Sqrt(2.0/reps)
	assert.Less(t, d, crit)
	assert.InDelta(t, stat.Mean(direct, nil), stat.Mean(tree, nil), 3)
}

func TestEnsemble(t *testing.T) {
	build := func(idx int) (*Solver, error) {
		src, err := rng.New("pcg", uint64(idx))
		if err != nil {
			return nil, err
		}
		g := geom.NewWellMixed()
		if err := g.AddComp("cyt", 1e-18, "vsys"); err != nil {
			return nil, err
		}
		return New(annihilationModel(), g, src, Options{
			Logger: quietLogger(),
			Initial: []Initial{
				{Where: "cyt", Species: "A", Count: 10},
				{Where: "cyt", Species: "B", Count: 12},
			},
		})
	}
	solvers, err := NewEnsemble(build, 4).Run(context.Background(), func(ctx context.Context, _ int, s *Solver) error {
		return s.RunContext(ctx, 1e9)
	})
	require.NoError(t, err)
	require.Len(t, solvers, 4)
	for _, s := range solvers {
		b, _ := s.CompCount("cyt", "B")
		assert.Equal(t, uint64(2), b)
	}

	_, err = NewEnsemble(func(int) (*Solver, error) { return nil, ErrMissing }, 2).
		Run(context.Background(), func(context.Context, int, *Solver) error { return nil })
	assert.ErrorIs(t, err, ErrMissing)
}
