package sim

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type snapshot struct {
	time   float64
	nsteps uint64
	a0     float64
	counts []uint64
}

func snap(t *testing.T, s *Solver) snapshot {
	t.Helper()
	out := snapshot{time: s.Time(), nsteps: s.NSteps(), a0: s.A0()}
	for _, spec := range []string{"A", "B"} {
		n, err := s.CompCount("cyt", spec)
		require.NoError(t, err)
		out.counts = append(out.counts, n)
	}
	return out
}

func TestCheckpointReplay(t *testing.T) {
	for _, name := range schedulers {
		t.Run(name, func(t *testing.T) {
			init := Initial{Where: "cyt", Species: "A", Count: 40}
			live := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), name, 11, init)
			require.NoError(t, live.Run(0.7))

			var buf bytes.Buffer
			require.NoError(t, live.WriteCheckpoint(&buf))
			state, err := live.RNG().MarshalBinary()
			require.NoError(t, err)

			require.NoError(t, live.Run(3))
			want := snap(t, live)

			restored := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), name, 999, init)
			require.NoError(t, restored.RestoreFrom(&buf))
			require.NoError(t, restored.RNG().UnmarshalBinary(state))
			assert.Equal(t, 0.7, restored.Time())
			require.NoError(t, restored.Run(3))

			assert.Equal(t, want, snap(t, restored))
			require.NoError(t, restored.CheckInvariants())
		})
	}
}

func TestCheckpointCarriesConstants(t *testing.T) {
	s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "direct", 1,
		Initial{Where: "cyt", Species: "A", Count: 12, Clamped: true})
	require.NoError(t, s.SetCompReacK("cyt", "death", 4))
	require.NoError(t, s.SetCompReacActive("cyt", "split", false))
	require.NoError(t, s.Run(0.2))
	cp := s.Checkpoint()
	assert.Equal(t, "kmcsim", cp.Solver)
	assert.Equal(t, []string{"A", "B"}, cp.Species)
	require.NotNil(t, cp.Pending)

	r := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "direct", 2)
	require.NoError(t, r.Restore(cp))
	k, _ := r.CompReacK("cyt", "death")
	assert.Equal(t, 4.0, k)
	active, _ := r.CompReacActive("cyt", "split")
	assert.False(t, active)
	clamped, _ := r.CompClamped("cyt", "A")
	assert.True(t, clamped)
	n, _ := r.CompCount("cyt", "A")
	assert.Equal(t, uint64(12), n)
	require.NotNil(t, r.pending)
	assert.Equal(t, cp.Pending.Time, r.pending.at)
	assert.Equal(t, s.A0(), r.A0())
}

func TestCheckpointMismatch(t *testing.T) {
	s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "direct", 1)
	other := newSolver(t, annihilationModel(), wellMixed(t, 1e-18), "direct", 1)
	tree := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "tree", 1)

	assert.ErrorIs(t, s.Restore(nil), ErrMismatch)
	assert.ErrorIs(t, s.Restore(other.Checkpoint()), ErrMismatch)
	assert.ErrorIs(t, s.Restore(tree.Checkpoint()), ErrMismatch)

	cp := s.Checkpoint()
	cp.Solver = "steps"
	assert.ErrorIs(t, s.Restore(cp), ErrMismatch)

	cp = s.Checkpoint()
	cp.Vols[0].Clamped = []int{7}
	assert.ErrorIs(t, s.Restore(cp), ErrMismatch)

	cp = s.Checkpoint()
	cp.Pending = &PendingState{KProc: 99}
	assert.ErrorIs(t, s.Restore(cp), ErrMismatch)

	_, err := ReadCheckpoint(bytes.NewBufferString("{"))
	assert.Error(t, err)
}

func TestCheckpointPendingMustFire(t *testing.T) {
	s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "direct", 2,
		Initial{Where: "cyt", Species: "A", Count: 30})
	require.NoError(t, s.Run(0.001))
	cp := s.Checkpoint()
	require.NotNil(t, cp.Pending)
	p := cp.Pending.KProc

	r := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "direct", 5,
		Initial{Where: "cyt", Species: "A", Count: 7})
	before := snap(t, r)

	tests := []struct {
		name   string
		mutate func(*Checkpoint)
	}{
		{"inactive", func(c *Checkpoint) { c.KProcs[p].Active = false }},
		{"zero constant", func(c *Checkpoint) { c.KProcs[p].K = 0 }},
		{"before checkpoint", func(c *Checkpoint) { c.Pending.Time = c.Time / 2 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			bad := s.Checkpoint()
			tt.mutate(bad)
			assert.ErrorIs(t, r.Restore(bad), ErrMismatch)
			assert.Equal(t, before, snap(t, r))
			assert.Nil(t, r.pending)
		})
	}

	require.NoError(t, r.Restore(cp))
	require.NotNil(t, r.pending)
	require.NoError(t, r.Run(1))
	require.NoError(t, r.CheckInvariants())
}

func TestRunWithCheckpoints(t *testing.T) {
	s := newSolver(t, birthDeathModel(), wellMixed(t, 1e-16), "tree", 3,
		Initial{Where: "cyt", Species: "A", Count: 10})
	var times []float64
	err := s.RunWithCheckpoints(2, 0.5, func(cp *Checkpoint) error {
		times = append(times, cp.Time)
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []float64{0.5, 1, 1.5, 2}, times)

	err = s.RunWithCheckpoints(3, 0, func(*Checkpoint) error { return nil })
	var simErr *SimError
	assert.ErrorAs(t, err, &simErr)
}
