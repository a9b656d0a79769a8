package compare_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/reportoor/pkg/compare"
	"github.com/ethpandaops/reportoor/pkg/model"
)

func record(passed, failed, skipped int, durationMS int64) model.RunRecord {
	return model.RunRecord{
		RunID:      "run",
		Passed:     passed,
		Failed:     failed,
		Skipped:    skipped,
		Total:      passed + failed + skipped,
		DurationMS: durationMS,
	}
}

func TestCompare_SelfIsZeroDelta(t *testing.T) {
	rec := record(10, 2, 1, 45000)

	result := compare.Compare(rec, rec)
	require.Len(t, result, len(compare.Metrics()))

	for name, m := range result {
		assert.Equal(t, int64(0), m.Delta.Value, name)
		assert.Equal(t, compare.DirectionSame, m.Delta.Direction, name)
		assert.False(t, m.Improved, name)
	}
}

func TestCompare_PolarityTable(t *testing.T) {
	current := record(12, 1, 0, 40000)
	baseline := record(10, 3, 2, 45000)

	result := compare.Compare(current, baseline)

	// Lower duration is improved.
	dur := result[compare.MetricDuration]
	assert.Equal(t, int64(-5000), dur.Delta.Value)
	assert.Equal(t, compare.DirectionDown, dur.Delta.Direction)
	assert.True(t, dur.Improved)

	// Higher passed count is improved.
	passed := result[compare.MetricPassed]
	assert.Equal(t, int64(2), passed.Delta.Value)
	assert.Equal(t, compare.DirectionUp, passed.Delta.Direction)
	assert.True(t, passed.Improved)

	// Lower failed count is improved.
	failed := result[compare.MetricFailed]
	assert.Equal(t, int64(-2), failed.Delta.Value)
	assert.True(t, failed.Improved)

	// Total is polarity-neutral.
	total := result[compare.MetricTotal]
	assert.Equal(t, int64(0), total.Delta.Value)
	assert.False(t, total.Improved)
}

func TestCompare_Regressions(t *testing.T) {
	current := record(8, 5, 0, 50000)
	baseline := record(10, 3, 0, 45000)

	result := compare.Compare(current, baseline)

	assert.False(t, result[compare.MetricDuration].Improved)
	assert.False(t, result[compare.MetricPassed].Improved)
	assert.False(t, result[compare.MetricFailed].Improved)
	assert.Equal(t, compare.DirectionUp, result[compare.MetricFailed].Delta.Direction)
}

func TestCompare_Deterministic(t *testing.T) {
	current := record(5, 1, 0, 10000)
	baseline := record(6, 0, 1, 12000)

	first := compare.Compare(current, baseline)
	second := compare.Compare(current, baseline)

	assert.Equal(t, first, second)
}
