package history

import (
	"context"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/model"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	s := NewStore(log, &config.DatabaseConfig{
		Driver: "sqlite",
		SQLite: config.SQLiteConfig{Path: ":memory:"},
	})

	require.NoError(t, s.Start(context.Background()))
	t.Cleanup(func() {
		require.NoError(t, s.Stop())
	})

	return s
}

func record(runID, suiteID string, createdAt time.Time) model.RunRecord {
	return model.RunRecord{
		RunID:      runID,
		SuiteID:    suiteID,
		Status:     model.StatusPassed,
		Passed:     3,
		Failed:     1,
		Skipped:    0,
		Total:      4,
		DurationMS: 4200,
		CreatedAt:  createdAt,
	}
}

func TestStore_UpsertAndGet(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := record("run-1", "suite-a", time.Now().UTC().Truncate(time.Second))
	require.NoError(t, s.UpsertRun(ctx, rec))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, rec.RunID, got.RunID)
	assert.Equal(t, rec.Status, got.Status)
	assert.Equal(t, rec.Passed, got.Passed)
	assert.Equal(t, rec.Failed, got.Failed)
	assert.Equal(t, rec.DurationMS, got.DurationMS)
}

func TestStore_UpsertReplaces(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	rec := record("run-1", "suite-a", time.Now().UTC())
	require.NoError(t, s.UpsertRun(ctx, rec))

	rec.Status = model.StatusFailed
	rec.Failed = 4
	require.NoError(t, s.UpsertRun(ctx, rec))

	got, err := s.GetRun(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, model.StatusFailed, got.Status)
	assert.Equal(t, 4, got.Failed)

	runs, err := s.ListRuns(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStore_GetMissing(t *testing.T) {
	s := newTestStore(t)

	_, err := s.GetRun(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_ListNewestFirst(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		rec := record("run-"+string(rune('a'+i)), "suite-a", base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.UpsertRun(ctx, rec))
	}

	runs, err := s.ListRuns(ctx, 3)
	require.NoError(t, err)
	require.Len(t, runs, 3)
	assert.Equal(t, "run-e", runs[0].RunID)
	assert.Equal(t, "run-d", runs[1].RunID)
	assert.Equal(t, "run-c", runs[2].RunID)
}

func TestStore_ListBySuite(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	now := time.Now().UTC()
	require.NoError(t, s.UpsertRun(ctx, record("run-1", "suite-a", now)))
	require.NoError(t, s.UpsertRun(ctx, record("run-2", "suite-b", now.Add(time.Second))))
	require.NoError(t, s.UpsertRun(ctx, record("run-3", "suite-a", now.Add(2*time.Second))))

	runs, err := s.ListRunsBySuite(ctx, "suite-a", 10)
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, "run-3", runs[0].RunID)
	assert.Equal(t, "run-1", runs[1].RunID)
}

func TestStore_DeleteRun(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.UpsertRun(ctx, record("run-1", "suite-a", time.Now().UTC())))
	require.NoError(t, s.DeleteRun(ctx, "run-1"))

	_, err := s.GetRun(ctx, "run-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
