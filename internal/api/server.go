// Package api provides the exporter's HTTP surface: the Prometheus text
// exposition endpoint plus JSON diagnostics for series and journal events.
package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/mqtt-tools/mqttbridge/internal/exposition"
	"github.com/mqtt-tools/mqttbridge/internal/journal"
	"github.com/mqtt-tools/mqttbridge/internal/series"
	"github.com/mqtt-tools/mqttbridge/internal/telemetry"
	"github.com/prometheus/common/expfmt"
)

// Options configures the API server.
type Options struct {
	Addr        string
	MetricsPath string
	Store       *series.Store
	Journal     journal.Journal
	Metrics     *telemetry.Metrics
	Connected   func() bool
	Logger      *slog.Logger
}

// Server is the exporter HTTP server.
type Server struct {
	opts   Options
	router *chi.Mux
	server *http.Server
	logger *slog.Logger
}

// NewServer creates the HTTP server.
func NewServer(opts Options) *Server {
	if opts.MetricsPath == "" {
		opts.MetricsPath = "/metrics"
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		opts:   opts,
		router: chi.NewRouter(),
		logger: logger,
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(middleware.Timeout(30 * time.Second))

	s.router.Get(opts.MetricsPath, s.handleMetrics)
	s.router.Get("/health", s.HandleHealth)
	s.router.Route("/api/v1", func(r chi.Router) {
		r.Get("/series", s.listSeries)
		r.Get("/events", s.listEvents)
	})

	s.server = &http.Server{
		Addr:    opts.Addr,
		Handler: s.router,
	}
	return s
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler returns the underlying router, for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

// handleMetrics renders the bridged series followed by the bridge's own
// telemetry in the Prometheus text format.
func (s *Server) handleMetrics(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", exposition.ContentType)

	if s.opts.Store != nil {
		if err := exposition.Render(w, s.opts.Store.Snapshot(time.Now())); err != nil {
			s.logger.Error("rendering exposition", "error", err)
			return
		}
	}

	if s.opts.Metrics != nil {
		families, err := s.opts.Metrics.Registry.Gather()
		if err != nil {
			s.logger.Error("gathering telemetry", "error", err)
			return
		}
		enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
		for _, mf := range families {
			if err := enc.Encode(mf); err != nil {
				s.logger.Error("encoding telemetry", "error", err)
				return
			}
		}
	}
}

// listSeries returns the live snapshot as JSON, for diagnostics.
func (s *Server) listSeries(w http.ResponseWriter, r *http.Request) {
	points := s.opts.Store.Snapshot(time.Now())
	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  points,
		"total": len(points),
	})
}

// listEvents returns recent journal events. With the journal disabled the
// list is empty, not an error.
func (s *Server) listEvents(w http.ResponseWriter, r *http.Request) {
	limit := 100
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if parsed, err := strconv.Atoi(limitStr); err == nil && parsed > 0 {
			limit = parsed
			if limit > 1000 {
				limit = 1000
			}
		}
	}

	events, err := s.opts.Journal.Recent(r.Context(), limit)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"data":  events,
		"total": len(events),
	})
}

// respondJSON writes a JSON response.
func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// respondError writes an error response.
func (s *Server) respondError(w http.ResponseWriter, status int, message string) {
	s.respondJSON(w, status, map[string]string{
		"error": message,
	})
}
