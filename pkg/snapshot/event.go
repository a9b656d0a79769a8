package snapshot

import "github.com/ethpandaops/reportoor/pkg/model"

// Event types delivered by the live update channel.
const (
	EventStepProgress = "step-progress"
	EventScreenshot   = "screenshot"
	EventConsoleLog   = "console-log"
	EventMetrics      = "metrics"
	EventComplete     = "complete"
	EventError        = "error"
)

// Screenshot phases.
const (
	PhaseBefore = "before"
	PhaseAfter  = "after"
)

// Event is one incremental update to an in-progress run. Events are
// applied strictly in delivery order, not timestamp order.
type Event struct {
	Type     string `json:"type"`
	RunID    string `json:"run_id"`
	ResultID string `json:"result_id,omitempty"`

	// step-progress payload.
	TestName string      `json:"test_name,omitempty"`
	Step     *model.Step `json:"step,omitempty"`

	// screenshot payload.
	Screenshot *ScreenshotRef `json:"screenshot,omitempty"`

	// console-log payload.
	Console *model.ConsoleLogEntry `json:"console,omitempty"`

	// metrics payload.
	Metrics *MetricsSample `json:"metrics,omitempty"`

	// complete / error payload.
	RunStatus string `json:"run_status,omitempty"`
	Error     string `json:"error,omitempty"`
}

// ScreenshotRef points at a captured screenshot for a step.
type ScreenshotRef struct {
	StepIndex int    `json:"step_index"`
	Phase     string `json:"phase"`
	Ref       string `json:"ref"`
}

// MetricsSample is one streamed metric observation.
type MetricsSample struct {
	Name        string  `json:"name"`
	Value       float64 `json:"value"`
	TimestampMS int64   `json:"timestamp_ms"`
}
