package api

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/history"
	"github.com/ethpandaops/reportoor/pkg/live"
	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/snapshot"
)

// Manager errors.
var (
	// ErrNotLoaded is returned when no snapshot exists for a run id.
	ErrNotLoaded = errors.New("run not loaded")

	// ErrStale is returned when a fetch completes after a newer load
	// for the same run superseded it.
	ErrStale = errors.New("stale fetch discarded")
)

// Upstream is the slice of the results-service client the manager
// needs.
type Upstream interface {
	live.Subscriber

	GetRun(ctx context.Context, id string) (*model.Run, error)
}

// session holds the loaded snapshot and optional live channel for one
// run.
type session struct {
	runID   string
	token   uuid.UUID
	store   *snapshot.Store
	channel *live.Channel
}

// Manager owns one session per run: snapshot store, live channel, and
// the load-generation tokens that keep rapid run switches from
// clobbering each other.
type Manager struct {
	log      logrus.FieldLogger
	cfg      *config.Config
	upstream Upstream
	history  history.Store

	mu       sync.Mutex
	sessions map[string]*session
}

// NewManager creates an empty run manager.
func NewManager(
	log logrus.FieldLogger,
	cfg *config.Config,
	upstream Upstream,
	hist history.Store,
) *Manager {
	return &Manager{
		log:      log.WithField("component", "manager"),
		cfg:      cfg,
		upstream: upstream,
		history:  hist,
		sessions: make(map[string]*session),
	}
}

// Load fetches the run from upstream and loads it into the run's
// snapshot store. Each call coins a fresh generation token; if a newer
// Load for the same run supersedes this one while the fetch is in
// flight, the fetched document is discarded.
func (m *Manager) Load(ctx context.Context, runID string) (*snapshot.Store, error) {
	m.mu.Lock()

	sess, ok := m.sessions[runID]
	if !ok {
		sess = &session{
			runID: runID,
			store: snapshot.New(m.log, m.cfg.Engine),
		}
		m.sessions[runID] = sess
	}

	token := uuid.New()
	sess.token = token
	m.mu.Unlock()

	run, err := m.upstream.GetRun(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("fetching run %s: %w", runID, err)
	}

	m.mu.Lock()

	if sess.token != token {
		m.mu.Unlock()

		return nil, ErrStale
	}

	sess.store.Load(run)
	m.mu.Unlock()

	if model.Terminal(run.Status) {
		if err := m.history.UpsertRun(ctx, model.Record(run)); err != nil {
			m.log.WithError(err).WithField("run_id", runID).
				Warn("Failed to record run in history")
		}
	}

	return sess.store, nil
}

// Store returns the snapshot store for an already-loaded run.
func (m *Manager) Store(runID string) (*snapshot.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[runID]
	if !ok || !sess.store.Loaded() {
		return nil, ErrNotLoaded
	}

	return sess.store, nil
}

// Watch opens a live channel for a loaded run. A closed previous
// channel is replaced.
func (m *Manager) Watch(ctx context.Context, runID string) error {
	m.mu.Lock()

	sess, ok := m.sessions[runID]
	if !ok || !sess.store.Loaded() {
		m.mu.Unlock()

		return ErrNotLoaded
	}

	if sess.channel != nil {
		switch sess.channel.State() {
		case live.StateClosed, live.StateDisconnected:
			sess.channel = nil
		default:
			m.mu.Unlock()

			return fmt.Errorf("run %s already has a live channel", runID)
		}
	}

	ch := live.NewChannel(m.log, m.cfg.Engine, m.upstream, sess.store)
	sess.channel = ch
	m.mu.Unlock()

	if err := ch.Subscribe(ctx, runID); err != nil {
		m.mu.Lock()
		sess.channel = nil
		m.mu.Unlock()

		return err
	}

	return nil
}

// Unsubscribe begins draining the run's live channel, if any.
func (m *Manager) Unsubscribe(runID string) {
	if ch := m.channelFor(runID); ch != nil {
		ch.Unsubscribe()
	}
}

// Cancel requests upstream cancellation. With an open live channel the
// cancel rides the channel's bounded ack path; otherwise it is a plain
// upstream call.
func (m *Manager) Cancel(ctx context.Context, runID string) error {
	if ch := m.channelFor(runID); ch != nil {
		return ch.Cancel(ctx)
	}

	return m.upstream.CancelRun(ctx, runID)
}

// ApplyEvent feeds one incremental event into a loaded run's snapshot.
// Returns whether the event was applied.
func (m *Manager) ApplyEvent(ctx context.Context, runID string, ev snapshot.Event) (bool, error) {
	store, err := m.Store(runID)
	if err != nil {
		return false, err
	}

	applied := store.Apply(ev)

	// Terminal events land the run in history.
	if applied && model.Terminal(store.Status()) {
		if err := m.history.UpsertRun(ctx, model.Record(store.Current())); err != nil {
			m.log.WithError(err).WithField("run_id", runID).
				Warn("Failed to record run in history")
		}
	}

	return applied, nil
}

// LiveState reports the channel state and streamed console tail for a
// run.
func (m *Manager) LiveState(runID string) (live.State, []model.ConsoleLogEntry) {
	ch := m.channelFor(runID)
	if ch == nil {
		return live.StateDisconnected, nil
	}

	return ch.State(), ch.ConsoleTail()
}

// Close drains every open live channel.
func (m *Manager) Close() {
	m.mu.Lock()
	channels := make([]*live.Channel, 0, len(m.sessions))

	for _, sess := range m.sessions {
		if sess.channel != nil {
			channels = append(channels, sess.channel)
		}
	}
	m.mu.Unlock()

	for _, ch := range channels {
		ch.Unsubscribe()
	}

	for _, ch := range channels {
		<-ch.Done()
	}
}

func (m *Manager) channelFor(runID string) *live.Channel {
	m.mu.Lock()
	defer m.mu.Unlock()

	sess, ok := m.sessions[runID]
	if !ok {
		return nil
	}

	return sess.channel
}
