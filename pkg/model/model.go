package model

import "time"

// Status values for runs, results and steps.
const (
	StatusPending   = "pending"
	StatusRunning   = "running"
	StatusPassed    = "passed"
	StatusFailed    = "failed"
	StatusError     = "error"
	StatusSkipped   = "skipped"
	StatusCancelled = "cancelled"
)

// Run is one execution of a suite or test, producing an ordered list
// of results. Event-level timestamps (steps, network, console) share a
// single epoch-millisecond clock; run-level wall times are time.Time.
type Run struct {
	ID          string     `json:"id"`
	SuiteID     string     `json:"suite_id,omitempty"`
	TestID      string     `json:"test_id,omitempty"`
	Status      string     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Results     []Result   `json:"results"`
}

// Result is the outcome record for one test within a run. Network and
// console entries captured without a per-step association live at the
// result level; the correlator attributes them to steps by time window.
type Result struct {
	ID          string            `json:"id"`
	TestName    string            `json:"test_name"`
	Status      string            `json:"status"`
	DurationMS  int64             `json:"duration_ms"`
	Steps       []Step            `json:"steps,omitempty"`
	Network     []NetworkRequest  `json:"network,omitempty"`
	Console     []ConsoleLogEntry `json:"console,omitempty"`
	Payload     *Payload          `json:"payload,omitempty"`
	ErrorDetail string            `json:"error_detail,omitempty"`
}

// Step is one action performed during a test's execution.
type Step struct {
	Action      string            `json:"action"`
	Selector    string            `json:"selector,omitempty"`
	Value       string            `json:"value,omitempty"`
	Status      string            `json:"status"`
	DurationMS  int64             `json:"duration_ms"`
	TimestampMS *int64            `json:"timestamp_ms,omitempty"`
	ScreenBefore string           `json:"screenshot_before,omitempty"`
	ScreenAfter  string           `json:"screenshot_after,omitempty"`
	Network     []NetworkRequest  `json:"network,omitempty"`
	Console     []ConsoleLogEntry `json:"console,omitempty"`
}

// NetworkRequest is a single captured HTTP request.
type NetworkRequest struct {
	Method       string `json:"method"`
	URL          string `json:"url"`
	ResourceType string `json:"resource_type,omitempty"`
	StatusCode   int    `json:"status_code"`
	TimestampMS  int64  `json:"timestamp_ms"`
	DurationMS   int64  `json:"duration_ms"`
	RequestSize  int64  `json:"request_size"`
	ResponseSize int64  `json:"response_size"`
	Failed       bool   `json:"failed,omitempty"`
}

// ConsoleLogEntry is a single captured console message.
type ConsoleLogEntry struct {
	Level       string `json:"level"`
	Message     string `json:"message"`
	TimestampMS int64  `json:"timestamp_ms"`
	Source      string `json:"source,omitempty"`
}

// Log entry kinds for the unified chronological view.
const (
	LogKindConsole = "console"
	LogKindNetwork = "network"
)

// UnifiedLogEntry is the common shape console and network items are
// mapped into for merged chronological display.
type UnifiedLogEntry struct {
	Kind        string `json:"kind"`
	TimestampMS int64  `json:"timestamp_ms"`
	Level       string `json:"level,omitempty"`
	Message     string `json:"message"`
	StatusCode  int    `json:"status_code,omitempty"`
	DurationMS  int64  `json:"duration_ms,omitempty"`
}

// Summary holds run-level aggregate counts. The counts always equal
// the partition of results by status.
type Summary struct {
	Passed     int   `json:"passed"`
	Failed     int   `json:"failed"`
	Skipped    int   `json:"skipped"`
	Total      int   `json:"total"`
	DurationMS int64 `json:"duration_ms"`
}

// Terminal reports whether a status is terminal for a run.
func Terminal(status string) bool {
	switch status {
	case StatusPassed, StatusFailed, StatusError, StatusCancelled:
		return true
	default:
		return false
	}
}

// Summarize computes the aggregate summary for a run by partitioning
// its results by status. Error results count as failed.
func Summarize(run *Run) Summary {
	var s Summary

	for _, res := range run.Results {
		switch res.Status {
		case StatusPassed:
			s.Passed++
		case StatusFailed, StatusError:
			s.Failed++
		case StatusSkipped:
			s.Skipped++
		}

		s.DurationMS += res.DurationMS
	}

	s.Total = len(run.Results)

	return s
}

// StartedAtMS returns the run's start time on the shared
// epoch-millisecond clock, falling back to CreatedAt when the run has
// not started.
func (r *Run) StartedAtMS() int64 {
	if r.StartedAt != nil {
		return r.StartedAt.UnixMilli()
	}

	return r.CreatedAt.UnixMilli()
}

// Clone returns a deep copy of the run sharing no mutable state with
// the receiver, so the copy stays safe to read while the original
// keeps being mutated.
func (r *Run) Clone() *Run {
	if r == nil {
		return nil
	}

	out := *r
	out.StartedAt = cloneTime(r.StartedAt)
	out.CompletedAt = cloneTime(r.CompletedAt)

	if r.Results != nil {
		out.Results = make([]Result, len(r.Results))
		for i := range r.Results {
			out.Results[i] = r.Results[i].clone()
		}
	}

	return &out
}

func (res Result) clone() Result {
	out := res
	out.Network = append([]NetworkRequest(nil), res.Network...)
	out.Console = append([]ConsoleLogEntry(nil), res.Console...)
	out.Payload = res.Payload.clone()

	if res.Steps != nil {
		out.Steps = make([]Step, len(res.Steps))
		for i, st := range res.Steps {
			out.Steps[i] = st
			out.Steps[i].TimestampMS = cloneInt64(st.TimestampMS)
			out.Steps[i].Network = append([]NetworkRequest(nil), st.Network...)
			out.Steps[i].Console = append([]ConsoleLogEntry(nil), st.Console...)
		}
	}

	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}

	out := *t

	return &out
}

func cloneInt64(v *int64) *int64 {
	if v == nil {
		return nil
	}

	out := *v

	return &out
}

// CollectRequests flattens every network request of a run in capture
// order: result-level entries first, then per-step embedded entries.
func CollectRequests(run *Run) []NetworkRequest {
	var reqs []NetworkRequest

	for _, res := range run.Results {
		reqs = append(reqs, res.Network...)

		for _, st := range res.Steps {
			reqs = append(reqs, st.Network...)
		}
	}

	return reqs
}

// RunRecord is the summarized form of a run used for history listings
// and comparison baselines.
type RunRecord struct {
	RunID      string    `json:"run_id"`
	SuiteID    string    `json:"suite_id,omitempty"`
	Status     string    `json:"status"`
	Passed     int       `json:"passed"`
	Failed     int       `json:"failed"`
	Skipped    int       `json:"skipped"`
	Total      int       `json:"total"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Record summarizes a run into its history record form.
func Record(run *Run) RunRecord {
	s := Summarize(run)

	return RunRecord{
		RunID:      run.ID,
		SuiteID:    run.SuiteID,
		Status:     run.Status,
		Passed:     s.Passed,
		Failed:     s.Failed,
		Skipped:    s.Skipped,
		Total:      s.Total,
		DurationMS: s.DurationMS,
		CreatedAt:  run.CreatedAt,
	}
}
