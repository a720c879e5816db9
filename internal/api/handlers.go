// SPDX-License-Identifier: MIT

package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/monitor"
	"github.com/asentry/asentry/internal/resilience"
	"github.com/asentry/asentry/internal/sentry"
	"github.com/asentry/asentry/internal/threat"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Version  string               `json:"version"`
	Uptime   string               `json:"uptime"`
	Monitor  monitor.Status       `json:"monitor"`
	Breaker  *resilience.Snapshot `json:"breaker,omitempty"`
	Interval string               `json:"interval"`
}

// ThreatsResponse is the body of GET /api/v1/threats.
type ThreatsResponse struct {
	FetchedAt time.Time       `json:"fetchedAt,omitzero"`
	Count     int             `json:"count"`
	Objects   []sentry.Object `json:"objects"`
}

// UpdatesResponse is the body of GET /api/v1/updates.
type UpdatesResponse struct {
	CycleID   string          `json:"cycleId,omitempty"`
	At        time.Time       `json:"at,omitzero"`
	New       int             `json:"new"`
	Increased int             `json:"increased"`
	Updates   []threat.Update `json:"updates"`
}

// RefreshResponse is the body of POST /api/v1/refresh.
type RefreshResponse struct {
	CycleID   string          `json:"cycleId"`
	Objects   int             `json:"objects"`
	Seeded    bool            `json:"seeded"`
	Duration  string          `json:"duration"`
	Updates   []threat.Update `json:"updates"`
	New       int             `json:"new"`
	Increased int             `json:"increased"`
}

type errorBody struct {
	Error     string `json:"error"`
	Detail    string `json:"detail,omitempty"`
	RequestID string `json:"requestId,omitempty"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := s.monitor.Status()
	resp := StatusResponse{
		Version:  s.version,
		Uptime:   time.Since(st.StartedAt).Truncate(time.Second).String(),
		Monitor:  st,
		Interval: st.Interval.String(),
	}
	if s.breaker != nil {
		b := s.breaker()
		resp.Breaker = &b
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleThreats(w http.ResponseWriter, r *http.Request) {
	snap, err := s.monitor.Saved(r.Context())
	if err != nil {
		writeServiceUnavailable(w, r, err)
		return
	}
	objects := snap.Objects
	if objects == nil {
		objects = []sentry.Object{}
	}
	writeJSON(w, http.StatusOK, ThreatsResponse{
		FetchedAt: snap.FetchedAt,
		Count:     len(objects),
		Objects:   objects,
	})
}

func (s *Server) handleUpdates(w http.ResponseWriter, _ *http.Request) {
	st := s.monitor.Status()
	updates := st.LastUpdates
	if updates == nil {
		updates = []threat.Update{}
	}
	newCount, increased := threat.Counts(updates)
	writeJSON(w, http.StatusOK, UpdatesResponse{
		CycleID:   st.LastCycleID,
		At:        st.LastSuccess,
		New:       newCount,
		Increased: increased,
		Updates:   updates,
	})
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := xglog.WithComponentFromContext(r.Context(), "api")

	res, err := s.monitor.Trigger(r.Context())
	if err != nil {
		logger.Warn().Err(err).Str(xglog.FieldEvent, "api.refresh_failed").Msg("manual refresh failed")
		switch {
		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			writeJSON(w, http.StatusGatewayTimeout, errorBody{
				Error:     "refresh_timeout",
				Detail:    err.Error(),
				RequestID: xglog.RequestIDFromContext(r.Context()),
			})
		case errors.Is(err, resilience.ErrCircuitOpen):
			writeServiceUnavailable(w, r, err)
		default:
			writeJSON(w, http.StatusBadGateway, errorBody{
				Error:     "refresh_failed",
				Detail:    err.Error(),
				RequestID: xglog.RequestIDFromContext(r.Context()),
			})
		}
		return
	}

	updates := res.Updates
	if updates == nil {
		updates = []threat.Update{}
	}
	newCount, increased := threat.Counts(updates)
	logger.Info().
		Str(xglog.FieldEvent, "api.refresh_ok").
		Str(xglog.FieldCycleID, res.CycleID).
		Int("updates", len(updates)).
		Msg("manual refresh complete")

	writeJSON(w, http.StatusOK, RefreshResponse{
		CycleID:   res.CycleID,
		Objects:   res.Objects,
		Seeded:    res.Seeded,
		Duration:  res.Duration.String(),
		Updates:   updates,
		New:       newCount,
		Increased: increased,
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeNotFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, errorBody{Error: "not_found"})
}

func writeServiceUnavailable(w http.ResponseWriter, r *http.Request, err error) {
	w.Header().Set("Retry-After", "30")
	writeJSON(w, http.StatusServiceUnavailable, errorBody{
		Error:     "unavailable",
		Detail:    err.Error(),
		RequestID: xglog.RequestIDFromContext(r.Context()),
	})
}
