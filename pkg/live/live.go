// Package live subscribes to the upstream event stream for one run
// and feeds incremental updates into the snapshot store. Transport
// callbacks never touch shared state directly: events are queued and
// drained on the channel's own loop, preserving the store's
// single-writer discipline.
package live

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/snapshot"
)

// State is the live channel connection state.
type State string

// Channel states.
const (
	StateDisconnected State = "disconnected"
	StateConnecting   State = "connecting"
	StateSubscribed   State = "subscribed"
	StateDraining     State = "draining"
	StateClosed       State = "closed"
)

// Subscriber is the upstream transport the channel rides on.
type Subscriber interface {
	Subscribe(ctx context.Context, runID string) (<-chan snapshot.Event, <-chan error, error)
	CancelRun(ctx context.Context, runID string) error
}

// Channel manages one live subscription. Events are applied to the
// snapshot store strictly in delivery order, not timestamp order.
type Channel struct {
	log   logrus.FieldLogger
	cfg   config.EngineConfig
	sub   Subscriber
	store *snapshot.Store
	ring  *Ring

	mu         sync.Mutex
	state      State
	runID      string
	stopStream context.CancelFunc
	drainTimer *time.Timer
	done       chan struct{}
}

// NewChannel creates a disconnected live channel.
func NewChannel(
	log logrus.FieldLogger,
	cfg config.EngineConfig,
	sub Subscriber,
	store *snapshot.Store,
) *Channel {
	return &Channel{
		log:   log.WithField("component", "live"),
		cfg:   cfg,
		sub:   sub,
		store: store,
		ring:  NewRing(cfg.RingCapacity),
		state: StateDisconnected,
		done:  make(chan struct{}),
	}
}

// State returns the current connection state.
func (c *Channel) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// ConsoleTail returns the most recent streamed console entries.
func (c *Channel) ConsoleTail() []model.ConsoleLogEntry {
	return c.ring.Snapshot()
}

// Done closes once the channel has fully shut down.
func (c *Channel) Done() <-chan struct{} { return c.done }

// Subscribe opens the live stream. Permitted only while the loaded
// run is pending or running.
func (c *Channel) Subscribe(ctx context.Context, runID string) error {
	if !c.store.Loaded() {
		return fmt.Errorf("no snapshot loaded")
	}

	if status := c.store.Status(); status != model.StatusPending && status != model.StatusRunning {
		return fmt.Errorf("run %s is %s, live updates unavailable", runID, status)
	}

	c.mu.Lock()

	if c.state != StateDisconnected {
		c.mu.Unlock()

		return fmt.Errorf("channel is %s, expected %s", c.state, StateDisconnected)
	}

	c.state = StateConnecting
	c.runID = runID

	streamCtx, stop := context.WithCancel(ctx)
	c.stopStream = stop
	c.mu.Unlock()

	events, errs, err := c.sub.Subscribe(streamCtx, runID)
	if err != nil {
		stop()
		c.setState(StateDisconnected)

		return err
	}

	// Handshake acknowledged.
	c.setState(StateSubscribed)
	c.log.WithField("run_id", runID).Info("Live channel subscribed")

	go c.watchErrors(errs)
	go c.drainLoop(events)

	return nil
}

// Unsubscribe moves the channel into draining; remaining queued events
// keep applying until the flush window elapses.
func (c *Channel) Unsubscribe() {
	c.beginDrain("unsubscribe")
}

// Cancel asks upstream to cancel the run, then forces the channel into
// draining whether or not the acknowledgment arrives within the
// bounded timeout. Local state never waits indefinitely on a remote
// ack.
func (c *Channel) Cancel(ctx context.Context) error {
	c.mu.Lock()
	runID := c.runID
	c.mu.Unlock()

	ackCtx, cancel := context.WithTimeout(ctx, c.cfg.CancelAckTimeoutDuration())
	defer cancel()

	err := c.sub.CancelRun(ackCtx, runID)
	if err != nil {
		c.log.WithError(err).Warn("Cancel not acknowledged, draining anyway")
	}

	c.beginDrain("cancel")

	return err
}

// drainLoop applies streamed events to the store in delivery order.
// It owns all store mutation for the life of the subscription.
func (c *Channel) drainLoop(events <-chan snapshot.Event) {
	for ev := range events {
		if ev.Type == snapshot.EventConsoleLog && ev.Console != nil {
			c.ring.Push(*ev.Console)
		}

		c.store.Apply(ev)

		if ev.Type == snapshot.EventComplete || ev.Type == snapshot.EventError {
			c.beginDrain("terminal event")
		}
	}

	c.close()
}

// watchErrors degrades to live-off on a stream error. The loaded
// snapshot stays intact.
func (c *Channel) watchErrors(errs <-chan error) {
	for err := range errs {
		if err == nil {
			continue
		}

		c.log.WithError(err).Warn("Live stream error, live mode off")
		c.beginDrain("stream error")
	}
}

// beginDrain transitions to draining and arms the bounded flush
// window. After the window the underlying stream is torn down, which
// ends the drain loop.
func (c *Channel) beginDrain(reason string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == StateDraining || c.state == StateClosed {
		return
	}

	c.state = StateDraining
	c.log.WithField("reason", reason).Debug("Live channel draining")

	stop := c.stopStream
	c.drainTimer = time.AfterFunc(c.cfg.FlushWindowDuration(), func() {
		if stop != nil {
			stop()
		}
	})
}

// close finalizes the channel once the event stream has ended.
func (c *Channel) close() {
	c.mu.Lock()

	if c.state == StateClosed {
		c.mu.Unlock()

		return
	}

	c.state = StateClosed

	if c.drainTimer != nil {
		c.drainTimer.Stop()
	}

	if c.stopStream != nil {
		c.stopStream()
	}

	c.mu.Unlock()

	close(c.done)
	c.log.Debug("Live channel closed")
}

func (c *Channel) setState(s State) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = s
}
