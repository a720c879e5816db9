// SPDX-License-Identifier: MIT

// Package health serves liveness and readiness probes with per-component detail.
package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/asentry/asentry/internal/log"
)

// Status is the overall or per-component health.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// CheckResult is the outcome of one component check.
type CheckResult struct {
	Status  Status `json:"status"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthResponse is the liveness answer.
type HealthResponse struct {
	Status    Status                 `json:"status"`
	Version   string                 `json:"version,omitempty"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// ReadinessResponse is the readiness answer.
type ReadinessResponse struct {
	Ready     bool                   `json:"ready"`
	Status    Status                 `json:"status"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]CheckResult `json:"checks,omitempty"`
}

// Checker is one component probe.
type Checker interface {
	Name() string
	Check(ctx context.Context) CheckResult
}

// Manager runs the registered checkers.
type Manager struct {
	version  string
	timeout  time.Duration
	checkers []Checker
}

// NewManager creates a manager; each check gets a 2s budget.
func NewManager(version string) *Manager {
	return &Manager{version: version, timeout: 2 * time.Second}
}

// RegisterChecker adds a checker.
func (m *Manager) RegisterChecker(checker Checker) {
	m.checkers = append(m.checkers, checker)
}

func (m *Manager) runChecks(ctx context.Context) (map[string]CheckResult, Status) {
	checks := make(map[string]CheckResult, len(m.checkers))
	overall := StatusHealthy
	for _, c := range m.checkers {
		cctx, cancel := context.WithTimeout(ctx, m.timeout)
		res := c.Check(cctx)
		cancel()
		checks[c.Name()] = res

		switch res.Status {
		case StatusUnhealthy:
			overall = StatusUnhealthy
		case StatusDegraded:
			if overall == StatusHealthy {
				overall = StatusDegraded
			}
		}
	}
	return checks, overall
}

// Health is the liveness probe. Component checks only run when verbose.
func (m *Manager) Health(ctx context.Context, verbose bool) HealthResponse {
	resp := HealthResponse{Status: StatusHealthy, Version: m.version, Timestamp: time.Now()}
	if verbose && len(m.checkers) > 0 {
		resp.Checks, resp.Status = m.runChecks(ctx)
	}
	return resp
}

// Ready is the readiness probe. Any unhealthy component makes it not ready.
func (m *Manager) Ready(ctx context.Context) ReadinessResponse {
	resp := ReadinessResponse{Ready: true, Status: StatusHealthy, Timestamp: time.Now()}
	if len(m.checkers) == 0 {
		return resp
	}
	resp.Checks, resp.Status = m.runChecks(ctx)
	resp.Ready = resp.Status != StatusUnhealthy
	return resp
}

// ServeHealth always answers 200 while the process is alive.
func (m *Manager) ServeHealth(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "health")
	verbose := r.URL.Query().Get("verbose") == "true"
	resp := m.Health(r.Context(), verbose)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "health.encode_error").Msg("failed to encode health response")
	}
}

// ServeReady answers 200 when ready and 503 otherwise.
func (m *Manager) ServeReady(w http.ResponseWriter, r *http.Request) {
	logger := log.WithComponentFromContext(r.Context(), "readiness")
	resp := m.Ready(r.Context())

	w.Header().Set("Content-Type", "application/json")
	if resp.Ready {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logger.Error().Err(err).Str("event", "readiness.encode_error").Msg("failed to encode readiness response")
	}

	logger.Debug().
		Str("event", "readiness.checked").
		Str("status", string(resp.Status)).
		Bool("ready", resp.Ready).
		Msg("readiness check performed")
}

// Pinger is implemented by stores that can verify their backend.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker reports a backend as unhealthy when its ping fails.
type PingChecker struct {
	name string
	p    Pinger
}

// NewPingChecker wraps p.
func NewPingChecker(name string, p Pinger) *PingChecker {
	return &PingChecker{name: name, p: p}
}

func (c *PingChecker) Name() string { return c.name }

func (c *PingChecker) Check(ctx context.Context) CheckResult {
	if err := c.p.Ping(ctx); err != nil {
		return CheckResult{Status: StatusUnhealthy, Error: err.Error()}
	}
	return CheckResult{Status: StatusHealthy, Message: "reachable"}
}

// CycleState is what the cycle checker needs from the monitor.
type CycleState struct {
	Ready       bool
	LastSuccess time.Time
	LastError   string
	Interval    time.Duration
}

// CycleChecker reports on the polling loop: unhealthy until the first
// successful cycle, degraded when the last cycle failed or the last success
// is older than two intervals.
type CycleChecker struct {
	state func() CycleState
	now   func() time.Time
}

// NewCycleChecker creates a checker reading state on every probe.
func NewCycleChecker(state func() CycleState) *CycleChecker {
	return &CycleChecker{state: state, now: time.Now}
}

func (c *CycleChecker) Name() string { return "monitor" }

func (c *CycleChecker) Check(_ context.Context) CheckResult {
	st := c.state()
	if !st.Ready {
		return CheckResult{Status: StatusUnhealthy, Message: "no successful cycle yet", Error: st.LastError}
	}
	if st.LastError != "" {
		return CheckResult{Status: StatusDegraded, Message: "last cycle failed", Error: st.LastError}
	}
	if st.Interval > 0 && c.now().Sub(st.LastSuccess) > 2*st.Interval {
		return CheckResult{Status: StatusDegraded, Message: "last successful cycle is stale"}
	}
	return CheckResult{Status: StatusHealthy, Message: "last cycle successful"}
}

// BreakerChecker degrades while an upstream circuit is not closed.
type BreakerChecker struct {
	name  string
	state func() string
}

// NewBreakerChecker reads the breaker state name on every probe.
func NewBreakerChecker(name string, state func() string) *BreakerChecker {
	return &BreakerChecker{name: name, state: state}
}

func (c *BreakerChecker) Name() string { return c.name }

func (c *BreakerChecker) Check(_ context.Context) CheckResult {
	if s := c.state(); s != "closed" {
		return CheckResult{Status: StatusDegraded, Message: "circuit " + s}
	}
	return CheckResult{Status: StatusHealthy, Message: "circuit closed"}
}
