package export

import (
	"encoding/json"
	"io"
	"time"

	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/timeline"
)

// Bundle is the full-fidelity JSON export: the run itself plus every
// derived view, structurally identical to the in-memory model.
type Bundle struct {
	GeneratedAt time.Time                 `json:"generated_at"`
	Generator   string                    `json:"generator"`
	Run         *model.Run                `json:"run"`
	Summary     model.Summary             `json:"summary"`
	Timeline    []timeline.ResultTimeline `json:"timeline"`
	Logs        []model.UnifiedLogEntry   `json:"logs"`
}

// Bundle assembles the JSON bundle for a run.
func (e *Exporter) Bundle(run *model.Run) *Bundle {
	return &Bundle{
		GeneratedAt: time.Now().UTC(),
		Generator:   "reportoor/" + e.version,
		Run:         run,
		Summary:     model.Summarize(run),
		Timeline:    timeline.Correlate(run),
		Logs:        timeline.UnifiedLog(run),
	}
}

// WriteBundle writes the bundle as indented JSON.
func (e *Exporter) WriteBundle(w io.Writer, run *model.Run) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")

	if err := enc.Encode(e.Bundle(run)); err != nil {
		return &Error{Artifact: "bundle.json", Err: err}
	}

	return nil
}
