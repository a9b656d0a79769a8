// Package api exposes the report engine over HTTP: run snapshots,
// correlation views, comparisons, exports and live-channel control.
package api

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/ethpandaops/reportoor/pkg/client"
	"github.com/ethpandaops/reportoor/pkg/config"
	"github.com/ethpandaops/reportoor/pkg/export"
	"github.com/ethpandaops/reportoor/pkg/history"
)

const shutdownTimeout = 10 * time.Second

// Server exposes the API HTTP server lifecycle.
type Server interface {
	Start(ctx context.Context) error
	Stop() error
}

// Compile-time interface check.
var _ Server = (*server)(nil)

type server struct {
	log        logrus.FieldLogger
	cfg        *config.Config
	version    string
	upstream   *client.Client
	history    history.Store
	manager    *Manager
	exporter   *export.Exporter
	httpServer *http.Server
	wg         sync.WaitGroup
	done       chan struct{}
}

// NewServer creates a new API server.
func NewServer(
	log logrus.FieldLogger,
	cfg *config.Config,
	version string,
) Server {
	return &server{
		log:     log.WithField("component", "api"),
		cfg:     cfg,
		version: version,
		done:    make(chan struct{}),
	}
}

// Start connects the history store, builds the run manager, and starts
// the HTTP server.
func (s *server) Start(ctx context.Context) error {
	s.history = history.NewStore(s.log, &s.cfg.Database)
	if err := s.history.Start(ctx); err != nil {
		return fmt.Errorf("starting history store: %w", err)
	}

	s.upstream = client.New(s.log, s.cfg)
	s.manager = NewManager(s.log, s.cfg, s.upstream, s.history)
	s.exporter = export.New(s.log, s.cfg.Engine, s.version)

	router := s.buildRouter()

	s.httpServer = &http.Server{
		Addr:              s.cfg.Server.Listen,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Bind the listener synchronously so we fail fast on port conflicts.
	ln, err := net.Listen("tcp", s.cfg.Server.Listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.cfg.Server.Listen, err)
	}

	s.wg.Add(1)

	go func() {
		defer s.wg.Done()

		s.log.WithField("listen", s.cfg.Server.Listen).
			Info("API server starting")

		if err := s.httpServer.Serve(ln); err != nil &&
			err != http.ErrServerClosed {
			s.log.WithError(err).Error("HTTP server error")
		}
	}()

	return nil
}

// Stop gracefully shuts down the HTTP server, drains live channels,
// and closes the history store.
func (s *server) Stop() error {
	close(s.done)

	if s.httpServer != nil {
		ctx, cancel := context.WithTimeout(
			context.Background(), shutdownTimeout,
		)
		defer cancel()

		if err := s.httpServer.Shutdown(ctx); err != nil {
			s.log.WithError(err).Warn("HTTP server shutdown error")
		}
	}

	s.wg.Wait()

	if s.manager != nil {
		s.manager.Close()
	}

	if s.history != nil {
		if err := s.history.Stop(); err != nil {
			return fmt.Errorf("stopping history store: %w", err)
		}
	}

	s.log.Info("API server stopped")

	return nil
}
