// SPDX-License-Identifier: MIT

package middleware

import (
	xglog "github.com/asentry/asentry/internal/log"
	"github.com/go-chi/chi/v5"
)

// StackConfig selects the optional layers of the ingress stack.
type StackConfig struct {
	EnableSecurityHeaders bool
	CSP                   string

	EnableMetrics  bool
	TracingService string // empty disables tracing
	EnableLogging  bool

	RequestsPerMinute int // 0 disables the global limiter
}

// NewRouter returns a chi router with the stack applied.
func NewRouter(cfg StackConfig) *chi.Mux {
	r := chi.NewRouter()
	ApplyStack(r, cfg)
	return r
}

// ApplyStack installs the middleware in a fixed order: recovery first so it
// sees every panic, request id before anything that logs.
func ApplyStack(r chi.Router, cfg StackConfig) {
	r.Use(Recoverer)
	r.Use(RequestID)
	if cfg.EnableSecurityHeaders {
		r.Use(SecurityHeaders(cfg.CSP))
	}
	if cfg.EnableMetrics {
		r.Use(Metrics())
	}
	if cfg.TracingService != "" {
		r.Use(Tracing(cfg.TracingService))
	}
	if cfg.EnableLogging {
		r.Use(xglog.Middleware())
	}
	if cfg.RequestsPerMinute > 0 {
		r.Use(PerMinute(cfg.RequestsPerMinute))
	}
}
