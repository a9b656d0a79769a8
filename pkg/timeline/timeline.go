// Package timeline reconstructs a single time-ordered view of a run by
// correlating step traces with independently captured network and
// console events.
package timeline

import (
	"sort"

	"github.com/ethpandaops/reportoor/pkg/model"
)

// Step is the derived view of a step carrying its computed absolute
// timestamp and the subset of network/console entries attributed to
// its time window.
type Step struct {
	model.Step

	ComputedMS int64 `json:"computed_ms"`
	Index      int   `json:"index"`
}

// ResultTimeline is the correlated timeline for one result. Entries
// matching no step's time window remain visible at the result level.
type ResultTimeline struct {
	ResultID            string                  `json:"result_id"`
	TestName            string                  `json:"test_name"`
	Steps               []Step                  `json:"steps"`
	UnattributedNetwork []model.NetworkRequest  `json:"unattributed_network,omitempty"`
	UnattributedConsole []model.ConsoleLogEntry `json:"unattributed_console,omitempty"`
}

// Correlate walks each result's steps in order, computing absolute
// timestamps from a cumulative-time accumulator seeded at the run's
// start. A step carrying an explicit timestamp is trusted and the
// accumulator advances to timestamp+duration; otherwise the step is
// assigned the accumulator value and the accumulator advances by the
// step's duration. Computed timestamps are non-decreasing within a
// result. Single O(n) pass per result.
func Correlate(run *model.Run) []ResultTimeline {
	out := make([]ResultTimeline, 0, len(run.Results))

	for i := range run.Results {
		out = append(out, correlateResult(run, &run.Results[i]))
	}

	return out
}

func correlateResult(run *model.Run, res *model.Result) ResultTimeline {
	rt := ResultTimeline{
		ResultID: res.ID,
		TestName: res.TestName,
		Steps:    make([]Step, 0, len(res.Steps)),
	}

	cursor := run.StartedAtMS()

	netTaken := make([]bool, len(res.Network))
	conTaken := make([]bool, len(res.Console))

	for i, st := range res.Steps {
		ts := cursor
		if st.TimestampMS != nil {
			ts = *st.TimestampMS
			// Explicit timestamps are trusted but never rewind the
			// accumulator; ordering within a result must hold.
			if ts < cursor {
				ts = cursor
			}
		}

		cursor = ts + st.DurationMS

		step := Step{Step: st, ComputedMS: ts, Index: i}

		// Steps without embedded entries get result-level entries
		// attributed first-fit by time window.
		if len(st.Network) == 0 {
			step.Network = attributeNetwork(res.Network, netTaken, ts, cursor)
		}

		if len(st.Console) == 0 {
			step.Console = attributeConsole(res.Console, conTaken, ts, cursor)
		}

		rt.Steps = append(rt.Steps, step)
	}

	for i, taken := range netTaken {
		if !taken {
			rt.UnattributedNetwork = append(rt.UnattributedNetwork, res.Network[i])
		}
	}

	for i, taken := range conTaken {
		if !taken {
			rt.UnattributedConsole = append(rt.UnattributedConsole, res.Console[i])
		}
	}

	return rt
}

// attributeNetwork claims untaken result-level requests whose own
// timestamp falls within [from, to]. Each request is attributed to at
// most one step.
func attributeNetwork(
	reqs []model.NetworkRequest, taken []bool, from, to int64,
) []model.NetworkRequest {
	var matched []model.NetworkRequest

	for i, req := range reqs {
		if taken[i] {
			continue
		}

		if req.TimestampMS >= from && req.TimestampMS <= to {
			taken[i] = true

			matched = append(matched, req)
		}
	}

	return matched
}

// attributeConsole claims untaken result-level console entries whose
// timestamp falls within [from, to].
func attributeConsole(
	entries []model.ConsoleLogEntry, taken []bool, from, to int64,
) []model.ConsoleLogEntry {
	var matched []model.ConsoleLogEntry

	for i, entry := range entries {
		if taken[i] {
			continue
		}

		if entry.TimestampMS >= from && entry.TimestampMS <= to {
			taken[i] = true

			matched = append(matched, entry)
		}
	}

	return matched
}

// UnifiedLog merges all console and network entries of a run into one
// globally time-sorted view. The sort is stable: entries with equal
// timestamps keep their original capture order, console before network
// within a result only insofar as capture order dictates. O(k log k)
// over all entries.
func UnifiedLog(run *model.Run) []model.UnifiedLogEntry {
	var entries []model.UnifiedLogEntry

	appendConsole := func(logs []model.ConsoleLogEntry) {
		for _, c := range logs {
			entries = append(entries, model.UnifiedLogEntry{
				Kind:        model.LogKindConsole,
				TimestampMS: c.TimestampMS,
				Level:       c.Level,
				Message:     c.Message,
			})
		}
	}

	appendNetwork := func(reqs []model.NetworkRequest) {
		for _, n := range reqs {
			entries = append(entries, model.UnifiedLogEntry{
				Kind:        model.LogKindNetwork,
				TimestampMS: n.TimestampMS,
				Message:     n.Method + " " + n.URL,
				StatusCode:  n.StatusCode,
				DurationMS:  n.DurationMS,
			})
		}
	}

	for _, res := range run.Results {
		appendConsole(res.Console)
		appendNetwork(res.Network)

		for _, st := range res.Steps {
			appendConsole(st.Console)
			appendNetwork(st.Network)
		}
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TimestampMS < entries[j].TimestampMS
	})

	return entries
}
