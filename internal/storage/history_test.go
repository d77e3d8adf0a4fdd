package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestHistory(t *testing.T) *History {
	t.Helper()
	h, err := Open(filepath.Join(t.TempDir(), "state", "history.db"))
	require.NoError(t, err)
	t.Cleanup(func() { h.Close() })
	return h
}

func sampleRun(started time.Time) *Run {
	return &Run{
		StartedAt:  started,
		Duration:   2500 * time.Millisecond,
		SharedPath: `X:\`,
		Helper:     "ceph-dokan",
		Passed:     2,
		Failed:     1,
		Pending:    1,
		Leaked:     []string{"test_rw_1"},
		Results: []Result{
			{Probe: "round_trip_io", Status: "passed", Duration: 120 * time.Millisecond},
			{Probe: "free_space", Status: "passed", Duration: 5 * time.Millisecond},
			{Probe: "volume_identity", Status: "failed", Error: "label mismatch", Duration: 900 * time.Millisecond},
			{Probe: "flush", Status: "pending"},
		},
	}
}

func TestRecordAndGetRun(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	started := time.Unix(1700000000, 0)

	run := sampleRun(started)
	require.NoError(t, h.RecordRun(ctx, run))
	require.NotEmpty(t, run.ID)

	got, err := h.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Equal(t, run.ID, got.ID)
	assert.Equal(t, started.Unix(), got.StartedAt.Unix())
	assert.Equal(t, 2500*time.Millisecond, got.Duration)
	assert.Equal(t, `X:\`, got.SharedPath)
	assert.Equal(t, "ceph-dokan", got.Helper)
	assert.Equal(t, 2, got.Passed)
	assert.Equal(t, 1, got.Failed)
	assert.Equal(t, 0, got.Errored)
	assert.Equal(t, 1, got.Pending)
	assert.Equal(t, []string{"test_rw_1"}, got.Leaked)
	assert.Equal(t, run.Results, got.Results)
	assert.False(t, got.OK())
}

func TestRecordRunKeepsExplicitID(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	run := &Run{ID: "fixed-id", StartedAt: time.Now(), SharedPath: `X:\`, Helper: "ceph-dokan", Passed: 1}
	require.NoError(t, h.RecordRun(ctx, run))
	assert.Equal(t, "fixed-id", run.ID)

	got, err := h.GetRun(ctx, "fixed-id")
	require.NoError(t, err)
	assert.Empty(t, got.Results)
	assert.Nil(t, got.Leaked)
	assert.True(t, got.OK())

	// Same id twice violates the primary key.
	assert.Error(t, h.RecordRun(ctx, &Run{ID: "fixed-id", StartedAt: time.Now()}))
}

func TestGetRunNotFound(t *testing.T) {
	h := openTestHistory(t)
	_, err := h.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrRunNotFound)
}

func TestListRuns(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	for i := 0; i < 5; i++ {
		run := sampleRun(base.Add(time.Duration(i) * time.Hour))
		run.Passed = i
		require.NoError(t, h.RecordRun(ctx, run))
	}

	runs, err := h.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 5)
	for i, r := range runs {
		assert.Equal(t, 4-i, r.Passed, "runs should be newest first")
		assert.Empty(t, r.Results)
	}

	runs, err = h.ListRuns(ctx, 2)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, 4, runs[0].Passed)
	assert.Equal(t, 3, runs[1].Passed)
}

func TestProbeStats(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()

	require.NoError(t, h.RecordRun(ctx, sampleRun(time.Unix(1700000000, 0))))
	second := sampleRun(time.Unix(1700003600, 0))
	second.Results[0].Status = "error"
	require.NoError(t, h.RecordRun(ctx, second))

	stats, err := h.ProbeStats(ctx)
	require.NoError(t, err)
	assert.Equal(t, []ProbeStat{
		{Probe: "free_space", Passed: 2},
		{Probe: "round_trip_io", Passed: 1, Errored: 1},
		{Probe: "volume_identity", Failed: 2},
	}, stats)
}

func TestPrune(t *testing.T) {
	h := openTestHistory(t)
	ctx := context.Background()
	base := time.Unix(1700000000, 0)

	var ids []string
	for i := 0; i < 4; i++ {
		run := sampleRun(base.Add(time.Duration(i) * time.Minute))
		require.NoError(t, h.RecordRun(ctx, run))
		ids = append(ids, run.ID)
	}

	removed, err := h.Prune(ctx, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	runs, err := h.ListRuns(ctx, 0)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, ids[3], runs[0].ID)
	assert.Equal(t, ids[2], runs[1].ID)

	_, err = h.GetRun(ctx, ids[0])
	assert.ErrorIs(t, err, ErrRunNotFound)

	removed, err = h.Prune(ctx, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)

	stats, err := h.ProbeStats(ctx)
	require.NoError(t, err)
	assert.Empty(t, stats)
}

func TestReopenKeepsHistory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.db")
	ctx := context.Background()

	h, err := Open(path)
	require.NoError(t, err)
	run := sampleRun(time.Now())
	require.NoError(t, h.RecordRun(ctx, run))
	require.NoError(t, h.Close())

	h, err = Open(path)
	require.NoError(t, err)
	defer h.Close()
	assert.Equal(t, path, h.Path())

	got, err := h.GetRun(ctx, run.ID)
	require.NoError(t, err)
	assert.Len(t, got.Results, 4)
}

func TestGetBusyTimeout(t *testing.T) {
	t.Setenv(EnvBusyTimeout, "")
	assert.Equal(t, DefaultBusyTimeout, GetBusyTimeout())

	t.Setenv(EnvBusyTimeout, "1500")
	assert.Equal(t, 1500, GetBusyTimeout())

	t.Setenv(EnvBusyTimeout, "garbage")
	assert.Equal(t, DefaultBusyTimeout, GetBusyTimeout())
}

func TestSplitStatements(t *testing.T) {
	t.Parallel()

	got := splitStatements(`
-- comment
CREATE TABLE a (
    x INTEGER
);

CREATE INDEX i ON a(x);
SELECT 1`)
	assert.Equal(t, []string{
		"CREATE TABLE a (\n    x INTEGER\n);",
		"CREATE INDEX i ON a(x);",
		"SELECT 1",
	}, got)
}
