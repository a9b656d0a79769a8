// Package compare computes metric deltas between two run summaries.
// Compare is a pure function: identical inputs always yield identical
// output, so a run compared against itself is a zero-delta baseline.
package compare

import "github.com/ethpandaops/reportoor/pkg/model"

// Delta directions.
const (
	DirectionUp   = "up"
	DirectionDown = "down"
	DirectionSame = "same"
)

// Metric names, in the order Metrics() reports them.
const (
	MetricDuration = "duration_ms"
	MetricPassed   = "passed"
	MetricFailed   = "failed"
	MetricSkipped  = "skipped"
	MetricTotal    = "total"
)

// Polarity fixes, per metric, which direction counts as an
// improvement. It is a table, never inferred from the values.
type polarity int

const (
	lowerIsBetter polarity = iota
	higherIsBetter
	neutral
)

var metricPolarity = map[string]polarity{
	MetricDuration: lowerIsBetter,
	MetricPassed:   higherIsBetter,
	MetricFailed:   lowerIsBetter,
	MetricSkipped:  lowerIsBetter,
	MetricTotal:    neutral,
}

// metricOrder is the stable presentation order.
var metricOrder = []string{
	MetricDuration, MetricPassed, MetricFailed, MetricSkipped, MetricTotal,
}

// Delta is the signed difference current-baseline for one metric.
type Delta struct {
	Value     int64  `json:"value"`
	Direction string `json:"direction"`
}

// Metric is the comparison outcome for a single metric.
type Metric struct {
	Current  int64 `json:"current"`
	Baseline int64 `json:"baseline"`
	Delta    Delta `json:"delta"`
	Improved bool  `json:"improved"`
}

// Result maps metric name to its comparison outcome.
type Result map[string]Metric

// Metrics returns the metric names in stable presentation order.
func Metrics() []string {
	out := make([]string, len(metricOrder))
	copy(out, metricOrder)

	return out
}

// Compare diffs the current run record against a baseline. No side
// effects; classification follows the fixed polarity table.
func Compare(current, baseline model.RunRecord) Result {
	values := func(rec model.RunRecord) map[string]int64 {
		return map[string]int64{
			MetricDuration: rec.DurationMS,
			MetricPassed:   int64(rec.Passed),
			MetricFailed:   int64(rec.Failed),
			MetricSkipped:  int64(rec.Skipped),
			MetricTotal:    int64(rec.Total),
		}
	}

	cur := values(current)
	base := values(baseline)

	out := make(Result, len(metricOrder))

	for _, name := range metricOrder {
		m := Metric{
			Current:  cur[name],
			Baseline: base[name],
		}

		m.Delta.Value = m.Current - m.Baseline

		switch {
		case m.Delta.Value > 0:
			m.Delta.Direction = DirectionUp
		case m.Delta.Value < 0:
			m.Delta.Direction = DirectionDown
		default:
			m.Delta.Direction = DirectionSame
		}

		switch metricPolarity[name] {
		case lowerIsBetter:
			m.Improved = m.Delta.Value < 0
		case higherIsBetter:
			m.Improved = m.Delta.Value > 0
		case neutral:
			m.Improved = false
		}

		out[name] = m
	}

	return out
}
