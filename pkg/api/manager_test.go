package api

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/history"
	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/snapshot"
)

type fakeUpstream struct {
	mu      sync.Mutex
	getRun  func(ctx context.Context, id string) (*model.Run, error)
	cancels []string
}

func (f *fakeUpstream) GetRun(ctx context.Context, id string) (*model.Run, error) {
	return f.getRun(ctx, id)
}

func (f *fakeUpstream) Subscribe(
	_ context.Context, _ string,
) (<-chan snapshot.Event, <-chan error, error) {
	events := make(chan snapshot.Event)
	errs := make(chan error)

	return events, errs, nil
}

func (f *fakeUpstream) CancelRun(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.cancels = append(f.cancels, id)

	return nil
}

func newTestManager(t *testing.T, up Upstream) *Manager {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cfg := config.Default()
	cfg.Database.SQLite.Path = ":memory:"

	hist := history.NewStore(log, &cfg.Database)
	require.NoError(t, hist.Start(context.Background()))
	t.Cleanup(func() { require.NoError(t, hist.Stop()) })

	return NewManager(log, cfg, up, hist)
}

func runDoc(id, status string) *model.Run {
	return &model.Run{
		ID:        id,
		Status:    status,
		CreatedAt: time.Now().UTC(),
		Results: []model.Result{
			{ID: "r1", TestName: "t", Status: model.StatusPassed, DurationMS: 100},
		},
	}
}

func TestManager_LoadAndStore(t *testing.T) {
	up := &fakeUpstream{
		getRun: func(_ context.Context, id string) (*model.Run, error) {
			return runDoc(id, model.StatusRunning), nil
		},
	}
	m := newTestManager(t, up)

	store, err := m.Load(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, store.Current())
	assert.Equal(t, "run-1", store.Current().ID)

	got, err := m.Store("run-1")
	require.NoError(t, err)
	assert.Same(t, store, got)

	_, err = m.Store("ghost")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestManager_StaleLoadDiscarded(t *testing.T) {
	release := make(chan struct{})
	slowDoc := runDoc("run-1", model.StatusRunning)
	slowDoc.Results[0].TestName = "slow"

	var calls int

	var mu sync.Mutex

	up := &fakeUpstream{}
	up.getRun = func(_ context.Context, id string) (*model.Run, error) {
		mu.Lock()
		calls++
		first := calls == 1
		mu.Unlock()

		if first {
			<-release

			return slowDoc, nil
		}

		return runDoc(id, model.StatusRunning), nil
	}

	m := newTestManager(t, up)

	errCh := make(chan error, 1)

	go func() {
		_, err := m.Load(context.Background(), "run-1")
		errCh <- err
	}()

	// Wait until the first fetch is in flight, then supersede it.
	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()

		return calls == 1
	}, time.Second, 5*time.Millisecond)

	store, err := m.Load(context.Background(), "run-1")
	require.NoError(t, err)

	close(release)
	assert.ErrorIs(t, <-errCh, ErrStale)

	// The snapshot holds the second load's document, not the slow one.
	assert.Equal(t, "t", store.Current().Results[0].TestName)
}

func TestManager_CancelWithoutChannel(t *testing.T) {
	up := &fakeUpstream{
		getRun: func(_ context.Context, id string) (*model.Run, error) {
			return runDoc(id, model.StatusRunning), nil
		},
	}
	m := newTestManager(t, up)

	_, err := m.Load(context.Background(), "run-1")
	require.NoError(t, err)

	require.NoError(t, m.Cancel(context.Background(), "run-1"))
	assert.Equal(t, []string{"run-1"}, up.cancels)
}

func TestManager_WatchRequiresLoad(t *testing.T) {
	m := newTestManager(t, &fakeUpstream{})

	err := m.Watch(context.Background(), "ghost")
	assert.ErrorIs(t, err, ErrNotLoaded)
}

func TestManager_WatchTerminalRunRefused(t *testing.T) {
	up := &fakeUpstream{
		getRun: func(_ context.Context, id string) (*model.Run, error) {
			return runDoc(id, model.StatusPassed), nil
		},
	}
	m := newTestManager(t, up)

	_, err := m.Load(context.Background(), "run-1")
	require.NoError(t, err)

	err = m.Watch(context.Background(), "run-1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "live updates unavailable")
}
