// SPDX-License-Identifier: MIT

package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/asentry/asentry/internal/config"
	"github.com/asentry/asentry/internal/validate"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mockChecker struct {
	name   string
	status Status
}

func (m *mockChecker) Name() string { return m.name }

func (m *mockChecker) Check(_ context.Context) CheckResult {
	return CheckResult{Status: m.status, Message: "mock"}
}

type brokenWriter struct {
	header http.Header
}

func (w *brokenWriter) Header() http.Header        { return w.header }
func (w *brokenWriter) Write([]byte) (int, error)  { return 0, errors.New("broken pipe") }
func (w *brokenWriter) WriteHeader(statusCode int) {}

type pinger struct{ err error }

func (p pinger) Ping(context.Context) error { return p.err }

func TestManager_Health(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "healthy", status: StatusHealthy})
	m.RegisterChecker(&mockChecker{name: "degraded", status: StatusDegraded})

	resp := m.Health(context.Background(), false)
	assert.Equal(t, StatusHealthy, resp.Status)
	assert.Equal(t, "v1.0.0", resp.Version)
	assert.Nil(t, resp.Checks, "checks only run when verbose")

	resp = m.Health(context.Background(), true)
	assert.Equal(t, StatusDegraded, resp.Status)
	assert.Len(t, resp.Checks, 2)
}

func TestManager_UnhealthyWinsOverDegraded(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "a", status: StatusUnhealthy})
	m.RegisterChecker(&mockChecker{name: "b", status: StatusDegraded})

	resp := m.Ready(context.Background())
	assert.False(t, resp.Ready)
	assert.Equal(t, StatusUnhealthy, resp.Status)
}

func TestManager_ReadyWithoutCheckers(t *testing.T) {
	resp := NewManager("v1").Ready(context.Background())
	assert.True(t, resp.Ready)
	assert.Equal(t, StatusHealthy, resp.Status)
}

func TestManager_ServeReady(t *testing.T) {
	tests := []struct {
		name           string
		status         Status
		expectedStatus int
		expectedReady  bool
	}{
		{"healthy", StatusHealthy, http.StatusOK, true},
		{"degraded", StatusDegraded, http.StatusOK, true},
		{"unhealthy", StatusUnhealthy, http.StatusServiceUnavailable, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("v1.0.0")
			m.RegisterChecker(&mockChecker{name: "test", status: tt.status})

			w := httptest.NewRecorder()
			m.ServeReady(w, httptest.NewRequest(http.MethodGet, "/readyz", nil))
			assert.Equal(t, tt.expectedStatus, w.Code)
			assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

			var resp ReadinessResponse
			require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
			assert.Equal(t, tt.expectedReady, resp.Ready)
			assert.Equal(t, tt.status, resp.Checks["test"].Status)
		})
	}
}

func TestManager_ServeHealthVerbose(t *testing.T) {
	m := NewManager("v1.0.0")
	m.RegisterChecker(&mockChecker{name: "test", status: StatusUnhealthy})

	w := httptest.NewRecorder()
	m.ServeHealth(w, httptest.NewRequest(http.MethodGet, "/healthz?verbose=true", nil))
	assert.Equal(t, http.StatusOK, w.Code, "liveness is 200 regardless of components")

	var resp HealthResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	assert.Equal(t, StatusUnhealthy, resp.Status)
	assert.Len(t, resp.Checks, 1)
}

func TestManager_EncodingErrorsDoNotPanic(t *testing.T) {
	m := NewManager("v1.0.0")
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	assert.NotPanics(t, func() {
		m.ServeHealth(&brokenWriter{header: make(http.Header)}, req)
		m.ServeReady(&brokenWriter{header: make(http.Header)}, req)
	})
}

func TestPingChecker(t *testing.T) {
	ok := NewPingChecker("store", pinger{})
	assert.Equal(t, "store", ok.Name())
	assert.Equal(t, StatusHealthy, ok.Check(context.Background()).Status)

	bad := NewPingChecker("store", pinger{err: errors.New("connection refused")})
	res := bad.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, res.Status)
	assert.Equal(t, "connection refused", res.Error)
}

func TestCycleChecker(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		name  string
		state CycleState
		want  Status
	}{
		{"not ready", CycleState{}, StatusUnhealthy},
		{"fresh", CycleState{Ready: true, LastSuccess: now.Add(-time.Minute), Interval: time.Hour}, StatusHealthy},
		{"last failed", CycleState{Ready: true, LastSuccess: now.Add(-time.Minute), LastError: "timeout", Interval: time.Hour}, StatusDegraded},
		{"stale", CycleState{Ready: true, LastSuccess: now.Add(-3 * time.Hour), Interval: time.Hour}, StatusDegraded},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCycleChecker(func() CycleState { return tt.state })
			c.now = func() time.Time { return now }
			assert.Equal(t, tt.want, c.Check(context.Background()).Status)
		})
	}
}

func TestBreakerChecker(t *testing.T) {
	state := "closed"
	c := NewBreakerChecker("sentry_breaker", func() string { return state })
	assert.Equal(t, StatusHealthy, c.Check(context.Background()).Status)
	state = "open"
	res := c.Check(context.Background())
	assert.Equal(t, StatusDegraded, res.Status)
	assert.Equal(t, "circuit open", res.Message)
}

func TestPerformStartupChecks(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = filepath.Join(t.TempDir(), "data")
	cfg.API.ListenAddr = "127.0.0.1:0"
	cfg.API.MetricsAddr = ""

	require.NoError(t, PerformStartupChecks(context.Background(), cfg))
	info, err := os.Stat(cfg.DataDir)
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "data dir is created")

	cfg.API.ListenAddr = "no-port"
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))

	cfg.API.ListenAddr = ":8080"
	file := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(file, nil, 0o600))
	cfg.DataDir = file
	assert.Error(t, PerformStartupChecks(context.Background(), cfg))

	cfg.DataDir = ""
	cfg.API.MetricsAddr = "bad"
	err = PerformStartupChecks(context.Background(), cfg)
	var verr validate.ValidationError
	require.ErrorAs(t, err, &verr)
	var fields []string
	for _, f := range verr.Errors() {
		fields = append(fields, f.Field)
	}
	assert.Equal(t, []string{"DataDir", "API.MetricsAddr"}, fields)
}
