package storage

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/kmcsim/internal/config"
	"github.com/san-kum/kmcsim/internal/experiment"
)

func sampleResult() *experiment.Result {
	return &experiment.Result{
		Times:   []float64{0, 0.5, 1},
		Columns: []string{"cyt/A", "cyt/B"},
		Samples: [][]float64{{100, 100}, {12, 12}, {0, 0}},
		Metrics: map[string]float64{"final_extent": 100},
		Steps:   100,
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())

	cfg := config.GetPreset("annihilation")
	runID, err := st.Save(cfg, sampleResult())
	require.NoError(t, err)

	parsed, err := uuid.Parse(runID)
	require.NoError(t, err)
	assert.Equal(t, uuid.Version(7), parsed.Version())

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, "annihilation", meta.Model)
	assert.Equal(t, uint64(1), meta.Seed)
	assert.Equal(t, "direct", meta.Scheduler)
	assert.Equal(t, uint64(100), meta.Steps)
	assert.Equal(t, 100.0, meta.Metrics["final_extent"])
	assert.True(t, meta.Complete)

	res, err := st.LoadSamples(runID)
	require.NoError(t, err)
	assert.Equal(t, sampleResult(), res)

	got, err := st.LoadConfig(runID)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	require.NoError(t, st.Init())
	a, err := st.Save(config.GetPreset("decay"), sampleResult())
	require.NoError(t, err)
	b, err := st.Save(config.GetPreset("enzyme"), sampleResult())
	require.NoError(t, err)

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, a, runs[0].ID)
	assert.Equal(t, b, runs[1].ID)
}

func TestBeginBeforeSamples(t *testing.T) {
	st := New(t.TempDir())
	cfg := config.GetPreset("decay")
	runID := NewRunID()
	require.NoError(t, st.Begin(runID, cfg, ""))

	meta, err := st.Load(runID)
	require.NoError(t, err)
	assert.False(t, meta.Complete)
	assert.Equal(t, "decay", meta.Model)

	got, err := st.LoadConfig(runID)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)

	_, err = st.LoadSamples(runID)
	assert.ErrorIs(t, err, ErrRunIncomplete)
	assert.ErrorIs(t, st.ExportCSV(runID, &bytes.Buffer{}), ErrRunIncomplete)

	runs, err := st.List()
	require.NoError(t, err)
	require.Len(t, runs, 1)

	require.NoError(t, st.SaveAs(runID, cfg, sampleResult(), ""))
	meta, err = st.Load(runID)
	require.NoError(t, err)
	assert.True(t, meta.Complete)
	assert.Equal(t, uint64(100), meta.Steps)
}

func TestStoreMissingRun(t *testing.T) {
	st := New(t.TempDir())
	_, err := st.Load("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	_, err = st.LoadConfig("nope")
	assert.ErrorIs(t, err, ErrRunNotFound)
	assert.ErrorIs(t, st.ExportCSV("nope", &bytes.Buffer{}), ErrRunNotFound)
}

func TestExportCSV(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(config.GetPreset("annihilation"), sampleResult())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, st.ExportCSV(runID, &buf))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	assert.Equal(t, []string{"time,cyt/A,cyt/B", "0,100,100", "0.5,12,12", "1,0,0"}, lines)
}

func TestExportJSON(t *testing.T) {
	st := New(t.TempDir())
	runID, err := st.Save(config.GetPreset("annihilation"), sampleResult())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, st.ExportJSON(runID, &buf))
	var data ExportData
	require.NoError(t, json.Unmarshal(buf.Bytes(), &data))
	assert.Equal(t, runID, data.ID)
	assert.Equal(t, []string{"cyt/A", "cyt/B"}, data.Columns)
	assert.Equal(t, [][]float64{{100, 100}, {12, 12}, {0, 0}}, data.Samples)
	assert.Equal(t, 1.0, data.EndTime)
}

func TestCheckpointPath(t *testing.T) {
	dir := t.TempDir()
	assert.Equal(t, filepath.Join(dir, "checkpoints.db"), New(dir).CheckpointPath())
}
