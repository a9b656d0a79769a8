package export_test

import (
	"bytes"
	"encoding/base64"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/export"
	"github.com/ethpandaops/reportoor/pkg/model"
)

func newExporter(t *testing.T) *export.Exporter {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	return export.New(log, config.Default().Engine, "test")
}

func sampleRun() *model.Run {
	started := time.UnixMilli(1700000000000).UTC()

	return &model.Run{
		ID:        "run-1",
		SuiteID:   "suite-1",
		Status:    model.StatusFailed,
		CreatedAt: started,
		StartedAt: &started,
		Results: []model.Result{
			{
				ID:         "r1",
				TestName:   "checkout, with a twist",
				Status:     model.StatusPassed,
				DurationMS: 2500,
				Steps: []model.Step{
					{Action: "navigate", Status: model.StatusPassed, DurationMS: 500},
					{Action: "click", Selector: "#buy", Status: model.StatusPassed, DurationMS: 2000},
				},
				Network: []model.NetworkRequest{
					{Method: "GET", URL: "https://app/cart?item=1&qty=2", ResourceType: "xhr",
						StatusCode: 200, TimestampMS: 1700000000100, DurationMS: 120,
						RequestSize: 80, ResponseSize: 2048},
					{Method: "POST", URL: "https://app/checkout", ResourceType: "xhr",
						StatusCode: 500, TimestampMS: 1700000000400, DurationMS: 300,
						RequestSize: 512, ResponseSize: 128, Failed: true},
				},
				Console: []model.ConsoleLogEntry{
					{Level: "error", Message: "payment declined,\n\"retry\" suggested",
						TimestampMS: 1700000000450},
				},
			},
			{
				ID:          "r2",
				TestName:    "login",
				Status:      model.StatusFailed,
				DurationMS:  900,
				ErrorDetail: "expected title \"Home\", got \"Error\"",
			},
		},
	}
}

func TestHAR_EntryPerRequest(t *testing.T) {
	e := newExporter(t)
	run := sampleRun()

	har := e.HAR(run)

	assert.Equal(t, "1.2", har.Log.Version)
	assert.Equal(t, "reportoor", har.Log.Creator.Name)
	require.Len(t, har.Log.Entries, len(model.CollectRequests(run)))

	entry := har.Log.Entries[0]
	assert.Equal(t, "GET", entry.Request.Method)
	assert.Equal(t, int64(120), entry.Time)
	require.Len(t, entry.Request.QueryString, 2)
	assert.Equal(t, "item", entry.Request.QueryString[0].Name)

	failed := har.Log.Entries[1]
	assert.Equal(t, 500, failed.Response.Status)
	assert.Equal(t, "Internal Server Error", failed.Response.StatusText)
}

func TestHAR_TimingsSumToTotal(t *testing.T) {
	e := newExporter(t)
	har := e.HAR(sampleRun())

	// Per HAR 1.2 the ssl phase is contained in connect and excluded
	// from the sum.
	for _, entry := range har.Log.Entries {
		sum := entry.Timings.Blocked + entry.Timings.DNS + entry.Timings.Connect +
			entry.Timings.Send + entry.Timings.Wait + entry.Timings.Receive

		assert.InDelta(t, entry.Time, sum, 1, "entry %s", entry.Request.URL)
		assert.LessOrEqual(t, entry.Timings.SSL, entry.Timings.Connect,
			"entry %s", entry.Request.URL)
	}
}

func TestWriteHAR_ValidJSON(t *testing.T) {
	e := newExporter(t)

	var buf bytes.Buffer
	require.NoError(t, e.WriteHAR(&buf, sampleRun()))

	var decoded export.HAR
	require.NoError(t, json.Unmarshal(buf.Bytes(), &decoded))
	assert.Len(t, decoded.Log.Entries, 2)
}

func TestResultsCSV_RoundTrip(t *testing.T) {
	e := newExporter(t)
	run := sampleRun()

	var buf bytes.Buffer
	require.NoError(t, e.ResultsCSV(&buf, run))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	require.Len(t, records, 1+len(run.Results))
	assert.Equal(t, export.ResultColumns, records[0])

	// Cells containing commas and quotes survive the round trip.
	assert.Equal(t, "checkout, with a twist", records[1][1])
	assert.Equal(t, `expected title "Home", got "Error"`, records[2][7])
	assert.Equal(t, "2.50s", records[1][4])
}

func TestLogsCSV_RoundTrip(t *testing.T) {
	e := newExporter(t)
	run := sampleRun()

	var buf bytes.Buffer
	require.NoError(t, e.LogsCSV(&buf, run))

	records, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)

	// Header + 2 network + 1 console.
	require.Len(t, records, 4)
	assert.Equal(t, export.LogColumns, records[0])

	// The multi-line console message survives intact.
	var console []string
	for _, rec := range records[1:] {
		if rec[0] == model.LogKindConsole {
			console = rec
		}
	}

	require.NotNil(t, console)
	assert.Equal(t, "payment declined,\n\"retry\" suggested", console[5])
}

func TestBundle_FullFidelity(t *testing.T) {
	e := newExporter(t)
	run := sampleRun()

	var buf bytes.Buffer
	require.NoError(t, e.WriteBundle(&buf, run))

	var bundle export.Bundle
	require.NoError(t, json.Unmarshal(buf.Bytes(), &bundle))

	require.NotNil(t, bundle.Run)
	assert.Equal(t, run.ID, bundle.Run.ID)
	assert.Equal(t, 1, bundle.Summary.Passed)
	assert.Equal(t, 1, bundle.Summary.Failed)
	assert.Len(t, bundle.Timeline, 2)
	assert.Len(t, bundle.Logs, 3)
}

func TestReport_SectionOrderAndNumbering(t *testing.T) {
	e := newExporter(t)

	report := e.Report(sampleRun())

	require.NotEmpty(t, report.Pages)
	assert.Equal(t, len(report.Pages), report.TotalPages)
	assert.False(t, report.Truncated)

	for i, page := range report.Pages {
		assert.Equal(t, i+1, page.Number)
	}

	// Section order is deterministic across the flattened document.
	order := map[string]int{
		export.SectionOverview:    0,
		export.SectionResults:     1,
		export.SectionNetwork:     2,
		export.SectionLogs:        3,
		export.SectionScreenshots: 4,
	}

	last := 0
	for _, page := range report.Pages {
		for _, block := range page.Blocks {
			rank, ok := order[block.Section]
			require.True(t, ok, "unknown section %s", block.Section)
			assert.GreaterOrEqual(t, rank, last)
			last = rank
		}
	}
}

func TestReport_OverflowOpensNewPage(t *testing.T) {
	e := newExporter(t)

	run := sampleRun()

	// Enough rows to overflow several pages.
	for i := 0; i < 200; i++ {
		run.Results[0].Console = append(run.Results[0].Console, model.ConsoleLogEntry{
			Level:       "info",
			Message:     fmt.Sprintf("line %d", i),
			TimestampMS: int64(i),
		})
	}

	report := e.Report(run)
	assert.Greater(t, report.TotalPages, 1)
	assert.False(t, report.Truncated)
}

func TestReport_PageBudgetGuards(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cfg := config.Default().Engine
	cfg.PageBudget = 2
	cfg.SectionItemCap = 10000

	e := export.New(log, cfg, "test")

	run := sampleRun()
	for i := 0; i < 5000; i++ {
		run.Results[0].Console = append(run.Results[0].Console, model.ConsoleLogEntry{
			Level:   "info",
			Message: strings.Repeat("x", 100),
		})
	}

	report := e.Report(run)
	assert.True(t, report.Truncated)
	assert.LessOrEqual(t, report.TotalPages, 2)
}

func TestReport_SectionItemCapOverflowsExplicitly(t *testing.T) {
	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cfg := config.Default().Engine
	cfg.SectionItemCap = 5

	e := export.New(log, cfg, "test")

	run := sampleRun()
	for i := 0; i < 20; i++ {
		run.Results[0].Console = append(run.Results[0].Console, model.ConsoleLogEntry{
			Level: "info", Message: fmt.Sprintf("entry %d", i),
		})
	}

	report := e.Report(run)

	var marker bool
	for _, page := range report.Pages {
		for _, block := range page.Blocks {
			if block.Section == export.SectionLogs &&
				strings.Contains(block.Text, "more entries") {
				marker = true
			}
		}
	}

	assert.True(t, marker, "cap overflow must be explicit, never silent")
}

func TestReport_BadScreenshotBecomesPlaceholder(t *testing.T) {
	e := newExporter(t)

	good := "data:image/png;base64," +
		base64.StdEncoding.EncodeToString([]byte("fake png bytes"))

	run := sampleRun()
	run.Results[0].Steps[0].ScreenAfter = good
	run.Results[0].Steps[1].ScreenAfter = "data:image/png;base64,%%%not-base64%%%"

	report := e.Report(run)

	var images, placeholders int
	for _, page := range report.Pages {
		for _, block := range page.Blocks {
			switch block.Kind {
			case export.BlockImage:
				images++
			case export.BlockPlaceholder:
				placeholders++
			}
		}
	}

	// The bad image degrades to a placeholder; the export continues.
	assert.Equal(t, 1, images)
	assert.Equal(t, 1, placeholders)
}

func TestReport_ClippedTextStaysValidUTF8(t *testing.T) {
	e := newExporter(t)

	run := sampleRun()
	run.Results[0].Console = append(run.Results[0].Console, model.ConsoleLogEntry{
		Level:       "error",
		Message:     strings.Repeat("界", 900),
		TimestampMS: 1700000000500,
	})

	report := e.Report(run)

	var clipped bool
	for _, page := range report.Pages {
		for _, block := range page.Blocks {
			assert.True(t, utf8.ValidString(block.Text),
				"clipping must not split a rune")

			if strings.Contains(block.Text, "[clipped]") {
				clipped = true
			}
		}
	}

	assert.True(t, clipped, "oversized message must be clipped")
}
