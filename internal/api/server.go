// SPDX-License-Identifier: MIT

// Package api serves the asentry HTTP surface: probes, monitor status, the
// saved object set and a rate-limited manual refresh.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/asentry/asentry/internal/api/middleware"
	"github.com/asentry/asentry/internal/config"
	"github.com/asentry/asentry/internal/health"
	"github.com/asentry/asentry/internal/monitor"
	"github.com/asentry/asentry/internal/resilience"
	"github.com/asentry/asentry/internal/store"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Monitor is the part of the monitor the API reads and drives.
type Monitor interface {
	Status() monitor.Status
	Trigger(ctx context.Context) (monitor.Result, error)
	Saved(ctx context.Context) (store.Snapshot, error)
}

// Deps wires a Server.
type Deps struct {
	Monitor Monitor
	Health  *health.Manager
	Breaker func() resilience.Snapshot // optional
	Version string
	Config  config.APIConfig

	// TracingService enables a server span per request when set.
	TracingService string
}

// Server owns the API router.
type Server struct {
	monitor Monitor
	health  *health.Manager
	breaker func() resilience.Snapshot
	version string
	cfg     config.APIConfig
	router  chi.Router
}

// New builds the server and its routes.
func New(deps Deps) (*Server, error) {
	if deps.Monitor == nil {
		return nil, errors.New("api: monitor is required")
	}
	if deps.Health == nil {
		deps.Health = health.NewManager(deps.Version)
	}

	s := &Server{
		monitor: deps.Monitor,
		health:  deps.Health,
		breaker: deps.Breaker,
		version: deps.Version,
		cfg:     deps.Config,
	}
	s.router = s.routes(deps.TracingService)
	return s, nil
}

func (s *Server) routes(tracingService string) chi.Router {
	r := middleware.NewRouter(middleware.StackConfig{
		EnableSecurityHeaders: true,
		EnableMetrics:         true,
		TracingService:        tracingService,
		EnableLogging:         true,
		RequestsPerMinute:     s.cfg.RequestsPerMin,
	})

	r.Get("/healthz", s.health.ServeHealth)
	r.Get("/readyz", s.health.ServeReady)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/threats", s.handleThreats)
		r.Get("/updates", s.handleUpdates)
		r.With(middleware.PerMinute(s.cfg.RefreshPerMin)).Post("/refresh", s.handleRefresh)
	})

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) { writeNotFound(w) })
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, errorBody{Error: "method_not_allowed"})
	})
	return r
}

// Handler returns the API handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

// MetricsHandler serves the Prometheus registry at /metrics.
func MetricsHandler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// NewHTTPServer applies the configured timeouts to h.
func NewHTTPServer(addr string, h http.Handler, cfg config.APIConfig) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
	}
}
