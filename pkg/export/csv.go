package export

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"

	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/timeline"
)

// Column sets are part of the export contract; order is stable.
var (
	// ResultColumns is the stable header of results.csv.
	ResultColumns = []string{
		"result_id", "test_name", "status", "duration_ms", "duration",
		"steps", "test_types", "error_detail",
	}

	// LogColumns is the stable header of logs.csv.
	LogColumns = []string{
		"kind", "timestamp_ms", "level", "status_code", "duration_ms", "message",
	}
)

// ResultsCSV writes one row per result. Quoting follows RFC 4180:
// encoding/csv quotes cells containing commas, quotes or newlines.
func (e *Exporter) ResultsCSV(w io.Writer, run *model.Run) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(ResultColumns); err != nil {
		return &Error{Artifact: "results.csv", Err: err}
	}

	for _, res := range run.Results {
		row := []string{
			res.ID,
			res.TestName,
			res.Status,
			strconv.FormatInt(res.DurationMS, 10),
			model.FormatDuration(res.DurationMS),
			strconv.Itoa(len(res.Steps)),
			strings.Join(res.Payload.Types(), "+"),
			res.ErrorDetail,
		}

		if err := cw.Write(row); err != nil {
			return &Error{Artifact: "results.csv", Err: err}
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return &Error{Artifact: "results.csv", Err: err}
	}

	return nil
}

// LogsCSV writes the unified chronological log, one row per entry.
func (e *Exporter) LogsCSV(w io.Writer, run *model.Run) error {
	cw := csv.NewWriter(w)

	if err := cw.Write(LogColumns); err != nil {
		return &Error{Artifact: "logs.csv", Err: err}
	}

	for _, entry := range timeline.UnifiedLog(run) {
		row := []string{
			entry.Kind,
			strconv.FormatInt(entry.TimestampMS, 10),
			entry.Level,
			strconv.Itoa(entry.StatusCode),
			strconv.FormatInt(entry.DurationMS, 10),
			entry.Message,
		}

		if err := cw.Write(row); err != nil {
			return &Error{Artifact: "logs.csv", Err: err}
		}
	}

	cw.Flush()

	if err := cw.Error(); err != nil {
		return &Error{Artifact: "logs.csv", Err: err}
	}

	return nil
}
