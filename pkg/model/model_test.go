package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/reportoor/pkg/model"
)

func TestSummarize_PartitionsByStatus(t *testing.T) {
	run := &model.Run{
		ID:     "run-1",
		Status: model.StatusFailed,
		Results: []model.Result{
			{ID: "r1", Status: model.StatusPassed, DurationMS: 5000},
			{ID: "r2", Status: model.StatusPassed, DurationMS: 4000},
			{ID: "r3", Status: model.StatusFailed, DurationMS: 3345},
		},
	}

	s := model.Summarize(run)

	assert.Equal(t, 2, s.Passed)
	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 0, s.Skipped)
	assert.Equal(t, 3, s.Total)
	assert.Equal(t, s.Total, s.Passed+s.Failed+s.Skipped)
	assert.Equal(t, int64(12345), s.DurationMS)
}

func TestSummarize_ErrorCountsAsFailed(t *testing.T) {
	run := &model.Run{
		Results: []model.Result{
			{Status: model.StatusError},
			{Status: model.StatusSkipped},
			{Status: model.StatusPassed},
		},
	}

	s := model.Summarize(run)

	assert.Equal(t, 1, s.Failed)
	assert.Equal(t, 1, s.Skipped)
	assert.Equal(t, 1, s.Passed)
	assert.Equal(t, 3, s.Total)
}

func TestRun_CloneSharesNothing(t *testing.T) {
	started := time.UnixMilli(1700000000000).UTC()
	ts := int64(1700000000100)

	run := &model.Run{
		ID:        "run-1",
		Status:    model.StatusRunning,
		CreatedAt: started,
		StartedAt: &started,
		Results: []model.Result{
			{
				ID:       "r1",
				TestName: "checkout",
				Status:   model.StatusRunning,
				Steps: []model.Step{
					{Action: "click", Status: model.StatusPassed, TimestampMS: &ts,
						Network: []model.NetworkRequest{{Method: "GET", URL: "https://app/x"}},
						Console: []model.ConsoleLogEntry{{Level: "info", Message: "step"}}},
				},
				Network: []model.NetworkRequest{{Method: "POST", URL: "https://app/y"}},
				Console: []model.ConsoleLogEntry{{Level: "warn", Message: "result"}},
				Payload: &model.Payload{
					Accessibility: &model.AccessibilityReport{
						Violations: []model.AccessibilityViolation{{RuleID: "contrast", Impact: "serious"}},
						Passes:     3,
					},
				},
			},
		},
	}

	clone := run.Clone()
	require.Equal(t, run, clone)

	// Mutations on either side stay on their side.
	run.Results[0].Steps[0].Action = "type"
	run.Results[0].Steps = append(run.Results[0].Steps, model.Step{Action: "assert"})
	run.Results[0].Console[0].Message = "changed"
	run.Results[0].Payload.Accessibility.Violations[0].RuleID = "changed"
	*run.StartedAt = run.StartedAt.Add(time.Hour)

	assert.Equal(t, "click", clone.Results[0].Steps[0].Action)
	assert.Len(t, clone.Results[0].Steps, 1)
	assert.Equal(t, "result", clone.Results[0].Console[0].Message)
	assert.Equal(t, "contrast", clone.Results[0].Payload.Accessibility.Violations[0].RuleID)
	assert.Equal(t, time.UnixMilli(1700000000000).UTC(), *clone.StartedAt)
}

func TestRun_CloneNil(t *testing.T) {
	var run *model.Run

	assert.Nil(t, run.Clone())
}

func TestFormatDuration(t *testing.T) {
	tests := []struct {
		name string
		ms   int64
		want string
	}{
		{name: "milliseconds", ms: 345, want: "345ms"},
		{name: "seconds", ms: 12345, want: "12.35s"},
		{name: "exact second", ms: 1000, want: "1.00s"},
		{name: "minutes", ms: 92000, want: "1m32s"},
		{name: "zero", ms: 0, want: "0ms"},
		{name: "negative clamps", ms: -5, want: "0ms"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, model.FormatDuration(tt.ms))
		})
	}
}

func TestTerminal(t *testing.T) {
	assert.True(t, model.Terminal(model.StatusPassed))
	assert.True(t, model.Terminal(model.StatusFailed))
	assert.True(t, model.Terminal(model.StatusError))
	assert.True(t, model.Terminal(model.StatusCancelled))
	assert.False(t, model.Terminal(model.StatusPending))
	assert.False(t, model.Terminal(model.StatusRunning))
}

func TestPayload_Types(t *testing.T) {
	var p *model.Payload
	assert.Equal(t, []string{model.TestTypeE2E}, p.Types())

	p = &model.Payload{}
	assert.Equal(t, []string{model.TestTypeE2E}, p.Types())

	p = &model.Payload{
		Visual: &model.VisualComparison{DiffRatio: 0.01},
		Load:   &model.LoadTestSummary{Requests: 100},
	}
	assert.Equal(t, []string{model.TestTypeVisual, model.TestTypeLoad}, p.Types())
}

func TestStartedAtMS_FallsBackToCreatedAt(t *testing.T) {
	created := time.UnixMilli(1700000000000).UTC()
	started := created.Add(5 * time.Second)

	run := &model.Run{CreatedAt: created}
	assert.Equal(t, created.UnixMilli(), run.StartedAtMS())

	run.StartedAt = &started
	assert.Equal(t, started.UnixMilli(), run.StartedAtMS())
}

func TestValidateRunDocument(t *testing.T) {
	valid := []byte(`{
		"id": "run-1",
		"status": "running",
		"results": [
			{"id": "r1", "test_name": "login", "status": "passed", "duration_ms": 120}
		]
	}`)
	require.NoError(t, model.ValidateRunDocument(valid))

	missingID := []byte(`{"status": "running", "results": []}`)
	assert.Error(t, model.ValidateRunDocument(missingID))

	badStatus := []byte(`{"id": "run-1", "status": "exploded", "results": []}`)
	assert.Error(t, model.ValidateRunDocument(badStatus))

	notJSON := []byte(`{`)
	assert.Error(t, model.ValidateRunDocument(notJSON))
}

func TestRecord(t *testing.T) {
	created := time.UnixMilli(1700000000000).UTC()
	run := &model.Run{
		ID:        "run-9",
		SuiteID:   "suite-1",
		Status:    model.StatusPassed,
		CreatedAt: created,
		Results: []model.Result{
			{Status: model.StatusPassed, DurationMS: 100},
			{Status: model.StatusSkipped},
		},
	}

	rec := model.Record(run)

	assert.Equal(t, "run-9", rec.RunID)
	assert.Equal(t, "suite-1", rec.SuiteID)
	assert.Equal(t, 1, rec.Passed)
	assert.Equal(t, 1, rec.Skipped)
	assert.Equal(t, 2, rec.Total)
	assert.Equal(t, int64(100), rec.DurationMS)
	assert.Equal(t, created, rec.CreatedAt)
}
