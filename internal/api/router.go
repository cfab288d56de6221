// Package api wires the HTTP routes of the reporter.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/dvloznov/cfdi-reporter/internal/api/handlers"
	"github.com/dvloznov/cfdi-reporter/internal/api/middleware"
	"github.com/dvloznov/cfdi-reporter/internal/metrics"
)

// RouterConfig holds what the router needs beyond the handlers.
type RouterConfig struct {
	AllowedOrigins []string
	Metrics        *metrics.Metrics
	Log            zerolog.Logger
}

// NewRouter builds the HTTP handler with the full middleware chain.
func NewRouter(sessions *handlers.SessionsHandler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.Recovery(cfg.Log))
	r.Use(middleware.RequestID(cfg.Log))
	r.Use(middleware.Logger(cfg.Log))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", sessions.CreateSession)

		r.Route("/{sessionID}", func(r chi.Router) {
			r.Delete("/", sessions.DeleteSession)
			r.Post("/batches", sessions.UploadBatch)
			r.Get("/records", sessions.ListRecords)
			r.Get("/summary", sessions.GetSummary)
			r.Get("/chart", sessions.GetChart)
			r.Get("/report.pdf", sessions.DownloadPDF)
			r.Get("/report.xlsx", sessions.DownloadXLSX)
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})
	r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusNotFound, "Not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteError(w, http.StatusMethodNotAllowed, "Method not allowed")
	})

	return r
}
