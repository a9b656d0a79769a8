package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/ethpandaops/reportoor/pkg/client"
	"github.com/ethpandaops/reportoor/pkg/compare"
	"github.com/ethpandaops/reportoor/pkg/export"
	"github.com/ethpandaops/reportoor/pkg/history"
	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/snapshot"
)

// maxEventBody bounds a pushed event payload.
const maxEventBody = 4 << 20

// errorResponse is a standard error payload.
type errorResponse struct {
	Error string `json:"error"`
}

// writeJSON encodes v as JSON and writes it to w.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, "encoding response", http.StatusInternalServerError)
	}
}

// writeUpstreamError maps a classified upstream failure to an HTTP
// response.
func (s *server) writeUpstreamError(w http.ResponseWriter, err error) {
	switch client.KindOf(err) {
	case client.KindNotFound:
		writeJSON(w, http.StatusNotFound, errorResponse{"run not found upstream"})
	case client.KindUnauthorized:
		writeJSON(w, http.StatusBadGateway, errorResponse{"upstream rejected credentials"})
	default:
		writeJSON(w, http.StatusBadGateway, errorResponse{err.Error()})
	}
}

// handleHealth returns server health status.
func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": s.version,
	})
}

// handleLoadRun fetches the run from upstream into a snapshot session.
func (s *server) handleLoadRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	store, err := s.manager.Load(r.Context(), runID)
	if err != nil {
		if errors.Is(err, ErrStale) {
			writeJSON(w, http.StatusConflict,
				errorResponse{"superseded by a newer load"})

			return
		}

		s.writeUpstreamError(w, err)

		return
	}

	run := store.Current()

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":  run.ID,
		"status":  run.Status,
		"version": store.Version(),
	})
}

// loadedStore resolves the snapshot store for the request's run id,
// writing a 404 when the run was never loaded.
func (s *server) loadedStore(w http.ResponseWriter, r *http.Request) (*snapshot.Store, string, bool) {
	runID := chi.URLParam(r, "id")

	store, err := s.manager.Store(runID)
	if err != nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{fmt.Sprintf("run %s is not loaded", runID)})

		return nil, runID, false
	}

	return store, runID, true
}

// handleGetRun returns the full run document from the snapshot.
func (s *server) handleGetRun(w http.ResponseWriter, r *http.Request) {
	store, _, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, store.Current())
}

// handleSummary returns aggregate counts plus streamed latest-value
// state.
func (s *server) handleSummary(w http.ResponseWriter, r *http.Request) {
	store, _, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	run := store.Current()
	sum := store.Summary()

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":   run.ID,
		"status":   run.Status,
		"summary":  sum,
		"duration": model.FormatDuration(sum.DurationMS),
		"preview":  store.Preview(),
		"metrics":  store.LatestMetrics(),
		"version":  store.Version(),
	})
}

// handleTimeline returns per-result step timelines with correlated
// telemetry.
func (s *server) handleTimeline(w http.ResponseWriter, r *http.Request) {
	store, _, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, store.Timeline())
}

// handleWaterfall returns the laid-out network waterfall.
func (s *server) handleWaterfall(w http.ResponseWriter, r *http.Request) {
	store, _, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, store.Waterfall())
}

// handleLogs returns the unified network and console log.
func (s *server) handleLogs(w http.ResponseWriter, r *http.Request) {
	store, _, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, store.UnifiedLog())
}

// handleCompare compares the loaded run against a baseline run record.
// The baseline is resolved from local history first, then upstream.
func (s *server) handleCompare(w http.ResponseWriter, r *http.Request) {
	store, _, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	baselineID := r.URL.Query().Get("baseline")
	if baselineID == "" {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"baseline query parameter is required"})

		return
	}

	baseline, err := s.history.GetRun(r.Context(), baselineID)
	if err != nil {
		if !errors.Is(err, history.ErrNotFound) {
			writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})

			return
		}

		baseline, err = s.upstream.GetComparisonRun(r.Context(), baselineID)
		if err != nil {
			s.writeUpstreamError(w, err)

			return
		}
	}

	current := model.Record(store.Current())

	writeJSON(w, http.StatusOK, map[string]any{
		"current":  current.RunID,
		"baseline": baseline.RunID,
		"metrics":  compare.Compare(current, baseline),
	})
}

// handleLiveState reports the live channel state and console tail.
func (s *server) handleLiveState(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	state, tail := s.manager.LiveState(runID)

	writeJSON(w, http.StatusOK, map[string]any{
		"run_id":       runID,
		"state":        state,
		"console_tail": tail,
	})
}

// handleWatch opens a live subscription for the loaded run.
func (s *server) handleWatch(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	if err := s.manager.Watch(r.Context(), runID); err != nil {
		if errors.Is(err, ErrNotLoaded) {
			writeJSON(w, http.StatusNotFound,
				errorResponse{fmt.Sprintf("run %s is not loaded", runID)})

			return
		}

		writeJSON(w, http.StatusConflict, errorResponse{err.Error()})

		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"state": "subscribed"})
}

// handleUnwatch begins draining the run's live channel.
func (s *server) handleUnwatch(w http.ResponseWriter, r *http.Request) {
	s.manager.Unsubscribe(chi.URLParam(r, "id"))

	writeJSON(w, http.StatusAccepted, map[string]string{"state": "draining"})
}

// handleCancel requests upstream cancellation. The response reports
// whether the upstream acknowledged; local draining proceeds either
// way.
func (s *server) handleCancel(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	acknowledged := true
	if err := s.manager.Cancel(r.Context(), runID); err != nil {
		acknowledged = false

		s.log.WithError(err).WithField("run_id", runID).
			Warn("Cancel not acknowledged")
	}

	writeJSON(w, http.StatusAccepted, map[string]any{
		"run_id":       runID,
		"acknowledged": acknowledged,
	})
}

// handleEvent applies one pushed incremental event to the run's
// snapshot.
func (s *server) handleEvent(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")

	var ev snapshot.Event
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxEventBody)).Decode(&ev); err != nil {
		writeJSON(w, http.StatusBadRequest,
			errorResponse{"invalid event payload"})

		return
	}

	applied, err := s.manager.ApplyEvent(r.Context(), runID, ev)
	if err != nil {
		writeJSON(w, http.StatusNotFound,
			errorResponse{fmt.Sprintf("run %s is not loaded", runID)})

		return
	}

	writeJSON(w, http.StatusOK, map[string]any{"applied": applied})
}

// handleHistory lists recent run records, optionally filtered by suite.
func (s *server) handleHistory(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeJSON(w, http.StatusBadRequest,
				errorResponse{"limit must be a positive integer"})

			return
		}

		limit = n
	}

	var (
		records []model.RunRecord
		err     error
	)

	if suite := r.URL.Query().Get("suite"); suite != "" {
		records, err = s.history.ListRunsBySuite(r.Context(), suite, limit)
	} else {
		records, err = s.history.ListRuns(r.Context(), limit)
	}

	if err != nil {
		writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})

		return
	}

	if records == nil {
		records = []model.RunRecord{}
	}

	writeJSON(w, http.StatusOK, records)
}

// --- Export handlers ---

func (s *server) writeExportError(w http.ResponseWriter, err error) {
	var ee *export.Error
	if errors.As(err, &ee) {
		writeJSON(w, http.StatusInternalServerError,
			errorResponse{fmt.Sprintf("exporting %s: %v", ee.Artifact, ee.Err)})

		return
	}

	writeJSON(w, http.StatusInternalServerError, errorResponse{err.Error()})
}

// handleExportHAR streams the run's network capture as a HAR 1.2
// archive.
func (s *server) handleExportHAR(w http.ResponseWriter, r *http.Request) {
	store, runID, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", runID+".har"))

	if err := s.exporter.WriteHAR(w, store.Current()); err != nil {
		s.writeExportError(w, err)
	}
}

// handleExportResultsCSV streams the per-result CSV table.
func (s *server) handleExportResultsCSV(w http.ResponseWriter, r *http.Request) {
	store, runID, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", runID+"-results.csv"))

	if err := s.exporter.ResultsCSV(w, store.Current()); err != nil {
		s.writeExportError(w, err)
	}
}

// handleExportLogsCSV streams the unified log CSV table.
func (s *server) handleExportLogsCSV(w http.ResponseWriter, r *http.Request) {
	store, runID, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "text/csv")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", runID+"-logs.csv"))

	if err := s.exporter.LogsCSV(w, store.Current()); err != nil {
		s.writeExportError(w, err)
	}
}

// handleExportBundle streams the self-contained JSON bundle.
func (s *server) handleExportBundle(w http.ResponseWriter, r *http.Request) {
	store, runID, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition",
		fmt.Sprintf("attachment; filename=%q", runID+"-bundle.json"))

	if err := s.exporter.WriteBundle(w, store.Current()); err != nil {
		s.writeExportError(w, err)
	}
}

// handleExportReport returns the paginated report document.
func (s *server) handleExportReport(w http.ResponseWriter, r *http.Request) {
	store, _, ok := s.loadedStore(w, r)
	if !ok {
		return
	}

	writeJSON(w, http.StatusOK, s.exporter.Report(store.Current()))
}
