package client_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ethpandaops/reportoor/pkg/client"
	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/model"
	"github.com/ethpandaops/reportoor/pkg/snapshot"
)

func newClient(t *testing.T, baseURL string) *client.Client {
	t.Helper()

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	cfg := config.Default()
	cfg.Upstream.BaseURL = baseURL
	cfg.Upstream.APIKey = "test-key"

	return client.New(log, cfg)
}

func TestGetRun(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/runs/run-1", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		fmt.Fprint(w, `{
			"id": "run-1",
			"status": "running",
			"results": [
				{"id": "r1", "test_name": "login", "status": "passed", "duration_ms": 150}
			]
		}`)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)

	run, err := c.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	assert.Equal(t, "run-1", run.ID)
	assert.Equal(t, model.StatusRunning, run.Status)
	require.Len(t, run.Results, 1)
	assert.Equal(t, "login", run.Results[0].TestName)
}

func TestGetRun_RejectsInvalidDocument(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `{"status": "running", "results": []}`)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)

	_, err := c.GetRun(context.Background(), "run-1")
	require.Error(t, err)
	assert.Equal(t, client.KindServer, client.KindOf(err))
}

func TestGetRun_ErrorClassification(t *testing.T) {
	tests := []struct {
		status    int
		wantKind  client.Kind
		retryable bool
	}{
		{http.StatusNotFound, client.KindNotFound, false},
		{http.StatusUnauthorized, client.KindUnauthorized, false},
		{http.StatusForbidden, client.KindUnauthorized, false},
		{http.StatusInternalServerError, client.KindServer, true},
		{http.StatusBadGateway, client.KindServer, true},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status %d", tt.status), func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer srv.Close()

			c := newClient(t, srv.URL)

			_, err := c.GetRun(context.Background(), "run-1")
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, client.KindOf(err))
			assert.Equal(t, tt.retryable, client.Retryable(err))
		})
	}
}

func TestGetRun_TransportErrorIsNetwork(t *testing.T) {
	c := newClient(t, "http://127.0.0.1:1") // nothing listens here

	_, err := c.GetRun(context.Background(), "run-1")
	require.Error(t, err)
	assert.Equal(t, client.KindNetwork, client.KindOf(err))
	assert.True(t, client.Retryable(err))
}

func TestKindOf_UnclassifiedError(t *testing.T) {
	assert.Empty(t, client.KindOf(errors.New("plain")))
	assert.False(t, client.Retryable(errors.New("plain")))
}

func TestGetRunHistory(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "5", r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[
			{"run_id": "run-1", "status": "passed", "passed": 3, "total": 3},
			{"run_id": "run-2", "status": "failed", "passed": 2, "failed": 1, "total": 3}
		]`)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)

	records, err := c.GetRunHistory(context.Background(), 5)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "run-2", records[1].RunID)
	assert.Equal(t, 1, records[1].Failed)
}

func TestCancelRun(t *testing.T) {
	var cancelled bool

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/runs/run-1/cancel", r.URL.Path)
		cancelled = true
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)

	require.NoError(t, c.CancelRun(context.Background(), "run-1"))
	assert.True(t, cancelled)
}

func TestSubscribe_DecodesEvents(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "text/event-stream", r.Header.Get("Accept"))

		w.Header().Set("Content-Type", "text/event-stream")

		fmt.Fprint(w, "event: step-progress\n")
		fmt.Fprint(w, `data: {"result_id": "r1", "step": {"action": "click", "status": "passed", "duration_ms": 10}}`+"\n\n")
		fmt.Fprint(w, "event: complete\n")
		fmt.Fprint(w, `data: {"run_status": "passed"}`+"\n\n")
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)

	events, errs, err := c.Subscribe(context.Background(), "run-1")
	require.NoError(t, err)

	var got []snapshot.Event
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 2)
	assert.Equal(t, snapshot.EventStepProgress, got[0].Type)
	assert.Equal(t, "run-1", got[0].RunID)
	require.NotNil(t, got[0].Step)
	assert.Equal(t, "click", got[0].Step.Action)
	assert.Equal(t, snapshot.EventComplete, got[1].Type)
	assert.Equal(t, model.StatusPassed, got[1].RunStatus)

	// Clean end of stream: no error delivered.
	_, open := <-errs
	assert.False(t, open)
}

func TestSubscribe_NonOKClassified(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)

	_, _, err := c.Subscribe(context.Background(), "run-404")
	require.Error(t, err)
	assert.Equal(t, client.KindNotFound, client.KindOf(err))
}

func TestSubscribe_SkipsUndecodableEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")

		fmt.Fprint(w, "event: console-log\n")
		fmt.Fprint(w, "data: {not json}\n\n")
		fmt.Fprint(w, "event: console-log\n")
		fmt.Fprint(w, `data: {"console": {"level": "info", "message": "ok", "timestamp_ms": 1}}`+"\n\n")
	}))
	defer srv.Close()

	c := newClient(t, srv.URL)

	events, _, err := c.Subscribe(context.Background(), "run-1")
	require.NoError(t, err)

	var got []snapshot.Event
	for ev := range events {
		got = append(got, ev)
	}

	require.Len(t, got, 1)
	require.NotNil(t, got[0].Console)
	assert.Equal(t, "ok", got[0].Console.Message)
}
