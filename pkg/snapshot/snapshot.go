// Package snapshot owns the single authoritative in-memory copy of one
// run. All mutation passes through the store, serialized in arrival
// order; derived views are memoized against a monotonically increasing
// version counter and invalidated on every mutation.
package snapshot

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/layout"
	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/timeline"
)

// Store holds the canonical run object and a version counter.
type Store struct {
	log        logrus.FieldLogger
	floorWidth float64

	mu      sync.Mutex
	run     *model.Run
	version uint64

	// Latest-value-only streamed state.
	preview       *ScreenshotRef
	latestMetrics *MetricsSample

	memo memoCache
}

// memoCache holds derived views keyed by the version they were
// computed against.
type memoCache struct {
	timelineVersion uint64
	timelines       []timeline.ResultTimeline

	unifiedVersion uint64
	unified        []model.UnifiedLogEntry

	waterfallVersion uint64
	waterfall        []layout.Entry

	summaryVersion uint64
	summary        model.Summary
}

// New creates an empty snapshot store. The engine config supplies the
// waterfall floor width.
func New(log logrus.FieldLogger, cfg config.EngineConfig) *Store {
	floor := cfg.FloorWidth
	if floor <= 0 {
		floor = layout.DefaultFloorWidth
	}

	return &Store{
		log:        log.WithField("component", "snapshot"),
		floorWidth: floor,
	}
}

// Load replaces the held run wholesale and bumps the version.
func (s *Store) Load(run *model.Run) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.run = run
	s.version++
	s.preview = nil
	s.latestMetrics = nil
}

// Version returns the current snapshot version.
func (s *Store) Version() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.version
}

// Current returns a deep copy of the held run, taken under the store
// lock so it stays safe to read and encode while events keep applying.
// Returns nil before the first Load.
func (s *Store) Current() *model.Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run.Clone()
}

// Loaded reports whether a run has been loaded.
func (s *Store) Loaded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.run != nil
}

// Status returns the held run's status, or the empty string before the
// first Load.
func (s *Store) Status() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return ""
	}

	return s.run.Status
}

// Preview returns the most recent streamed screenshot reference, if any.
func (s *Store) Preview() *ScreenshotRef {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.preview
}

// LatestMetrics returns the most recent streamed metrics sample, if any.
func (s *Store) LatestMetrics() *MetricsSample {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.latestMetrics
}

// Apply merges one incremental event into the run and bumps the
// version. Events arriving after the run reached a terminal status are
// ignored: no state change, no version bump. Returns whether the event
// was applied.
func (s *Store) Apply(ev Event) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		s.log.WithField("type", ev.Type).Warn("Event before snapshot load, dropped")

		return false
	}

	if model.Terminal(s.run.Status) {
		s.log.WithField("type", ev.Type).
			WithField("status", s.run.Status).
			Debug("Event after terminal status, ignored")

		return false
	}

	switch ev.Type {
	case EventStepProgress:
		s.applyStepProgress(ev)
	case EventScreenshot:
		s.applyScreenshot(ev)
	case EventConsoleLog:
		s.applyConsoleLog(ev)
	case EventMetrics:
		if ev.Metrics != nil {
			s.latestMetrics = ev.Metrics
		}
	case EventComplete:
		s.applyComplete(ev)
	case EventError:
		s.run.Status = model.StatusError
		s.completeNow()
	default:
		s.log.WithField("type", ev.Type).Warn("Unknown event type, dropped")

		return false
	}

	s.version++

	return true
}

// applyStepProgress appends a step to its result, creating the result
// on first sight. Steps only append; finalized steps never reorder.
func (s *Store) applyStepProgress(ev Event) {
	if ev.Step == nil {
		return
	}

	res := s.findOrCreateResult(ev.ResultID, ev.TestName)
	res.Steps = append(res.Steps, *ev.Step)

	if ev.Step.Status == model.StatusFailed || ev.Step.Status == model.StatusError {
		res.Status = model.StatusFailed
	} else if res.Status == "" || res.Status == model.StatusPending {
		res.Status = model.StatusRunning
	}

	res.DurationMS += ev.Step.DurationMS

	if s.run.Status == model.StatusPending {
		s.run.Status = model.StatusRunning

		if s.run.StartedAt == nil {
			now := time.Now().UTC()
			s.run.StartedAt = &now
		}
	}
}

// applyScreenshot attaches the reference to the addressed step and
// retains it as the latest preview.
func (s *Store) applyScreenshot(ev Event) {
	if ev.Screenshot == nil {
		return
	}

	s.preview = ev.Screenshot

	res := s.findResult(ev.ResultID)
	if res == nil {
		return
	}

	idx := ev.Screenshot.StepIndex
	if idx < 0 || idx >= len(res.Steps) {
		return
	}

	if ev.Screenshot.Phase == PhaseBefore {
		res.Steps[idx].ScreenBefore = ev.Screenshot.Ref
	} else {
		res.Steps[idx].ScreenAfter = ev.Screenshot.Ref
	}
}

func (s *Store) applyConsoleLog(ev Event) {
	if ev.Console == nil {
		return
	}

	res := s.findOrCreateResult(ev.ResultID, ev.TestName)
	res.Console = append(res.Console, *ev.Console)
}

func (s *Store) applyComplete(ev Event) {
	status := ev.RunStatus
	if !model.Terminal(status) {
		status = model.StatusPassed

		s.log.WithField("run_status", ev.RunStatus).
			Warn("Complete event without terminal status, assuming passed")
	}

	s.run.Status = status

	// Results still marked running resolve with the run.
	for i := range s.run.Results {
		if s.run.Results[i].Status == model.StatusRunning ||
			s.run.Results[i].Status == model.StatusPending {
			s.run.Results[i].Status = model.StatusPassed
		}
	}

	s.completeNow()
}

func (s *Store) completeNow() {
	if s.run.CompletedAt == nil {
		now := time.Now().UTC()
		s.run.CompletedAt = &now
	}
}

func (s *Store) findResult(id string) *model.Result {
	for i := range s.run.Results {
		if s.run.Results[i].ID == id {
			return &s.run.Results[i]
		}
	}

	return nil
}

func (s *Store) findOrCreateResult(id, testName string) *model.Result {
	if res := s.findResult(id); res != nil {
		return res
	}

	s.run.Results = append(s.run.Results, model.Result{
		ID:       id,
		TestName: testName,
		Status:   model.StatusRunning,
	})

	return &s.run.Results[len(s.run.Results)-1]
}

// Timeline returns the correlated timeline, recomputed only when the
// snapshot version changed since the last call.
func (s *Store) Timeline() []timeline.ResultTimeline {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return nil
	}

	if s.memo.timelines == nil || s.memo.timelineVersion != s.version {
		s.memo.timelines = timeline.Correlate(s.run)
		s.memo.timelineVersion = s.version
	}

	return s.memo.timelines
}

// UnifiedLog returns the merged chronological log view, memoized
// against the snapshot version.
func (s *Store) UnifiedLog() []model.UnifiedLogEntry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return nil
	}

	if s.memo.unified == nil || s.memo.unifiedVersion != s.version {
		s.memo.unified = timeline.UnifiedLog(s.run)
		s.memo.unifiedVersion = s.version
	}

	return s.memo.unified
}

// Waterfall returns the laid-out network waterfall over every request
// in the run, memoized against the snapshot version.
func (s *Store) Waterfall() []layout.Entry {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return nil
	}

	if s.memo.waterfall == nil || s.memo.waterfallVersion != s.version {
		s.memo.waterfall = layout.WaterfallWithFloor(model.CollectRequests(s.run), s.floorWidth)
		s.memo.waterfallVersion = s.version
	}

	return s.memo.waterfall
}

// Summary returns the aggregate counts, memoized against the snapshot
// version.
func (s *Store) Summary() model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.run == nil {
		return model.Summary{}
	}

	if s.memo.summaryVersion != s.version || s.memo.summaryVersion == 0 {
		s.memo.summary = model.Summarize(s.run)
		s.memo.summaryVersion = s.version
	}

	return s.memo.summary
}
