package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
)

// buildRouter constructs the chi router with all routes and middleware.
func (s *server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware.
	r.Use(chimw.Recoverer)
	r.Use(s.requestLogger)
	r.Use(s.corsMiddleware())

	r.Route("/api/v1", func(r chi.Router) {
		if s.cfg.Server.RateLimit.Enabled {
			r.Use(s.rateLimitMiddleware(
				s.cfg.Server.RateLimit.RequestsPerMinute,
			))
		}

		r.Get("/health", s.handleHealth)

		r.Route("/runs/{id}", func(r chi.Router) {
			r.Post("/load", s.handleLoadRun)
			r.Get("/", s.handleGetRun)
			r.Get("/summary", s.handleSummary)
			r.Get("/timeline", s.handleTimeline)
			r.Get("/waterfall", s.handleWaterfall)
			r.Get("/logs", s.handleLogs)
			r.Get("/compare", s.handleCompare)
			r.Get("/live", s.handleLiveState)

			r.Post("/watch", s.handleWatch)
			r.Post("/unwatch", s.handleUnwatch)
			r.Post("/cancel", s.handleCancel)
			r.Post("/events", s.handleEvent)

			r.Route("/export", func(r chi.Router) {
				r.Get("/har", s.handleExportHAR)
				r.Get("/results.csv", s.handleExportResultsCSV)
				r.Get("/logs.csv", s.handleExportLogsCSV)
				r.Get("/bundle", s.handleExportBundle)
				r.Get("/report", s.handleExportReport)
			})
		})

		r.Get("/history", s.handleHistory)
	})

	return r
}
