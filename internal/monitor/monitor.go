// SPDX-License-Identifier: MIT

// Package monitor runs the fetch, compare, save and notify cycle.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/metrics"
	"github.com/asentry/asentry/internal/sentry"
	"github.com/asentry/asentry/internal/store"
	"github.com/asentry/asentry/internal/telemetry"
	"github.com/asentry/asentry/internal/threat"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"
)

const defaultCycleTimeout = 2 * time.Minute

// Fetcher returns the latest object list.
type Fetcher interface {
	Fetch(ctx context.Context) ([]sentry.Object, error)
}

// Notifier delivers updates.
type Notifier interface {
	Notify(ctx context.Context, updates []threat.Update) error
}

// Config wires a Monitor.
type Config struct {
	Fetcher  Fetcher
	Store    store.Store
	Notifier Notifier // optional

	Interval     time.Duration
	SeedOnStart  bool
	CycleTimeout time.Duration
	Now          func() time.Time
}

// Result describes one completed cycle.
type Result struct {
	CycleID   string          `json:"cycleId"`
	StartedAt time.Time       `json:"startedAt"`
	Duration  time.Duration   `json:"duration"`
	Objects   int             `json:"objects"`
	Updates   []threat.Update `json:"updates"`
	Seeded    bool            `json:"seeded"`
}

// Status is a point-in-time view of the monitor for the API.
type Status struct {
	StartedAt   time.Time       `json:"startedAt"`
	Interval    time.Duration   `json:"interval"`
	Cycles      int             `json:"cycles"`
	LastRun     time.Time       `json:"lastRun,omitzero"`
	LastSuccess time.Time       `json:"lastSuccess,omitzero"`
	LastError   string          `json:"lastError,omitempty"`
	LastCycleID string          `json:"lastCycleId,omitempty"`
	LastUpdates []threat.Update `json:"lastUpdates"`
	Ready       bool            `json:"ready"`
}

// Monitor polls Sentry and raises alerts for new or escalated objects.
type Monitor struct {
	fetcher      Fetcher
	store        store.Store
	notifier     Notifier
	seedOnStart  bool
	cycleTimeout time.Duration
	now          func() time.Time

	interval   atomic.Int64
	intervalCh chan time.Duration
	group      singleflight.Group
	ready      atomic.Bool

	mu     sync.RWMutex
	status Status
}

// New creates a monitor. Fetcher and Store are required.
func New(cfg Config) (*Monitor, error) {
	if cfg.Fetcher == nil || cfg.Store == nil {
		return nil, errors.New("monitor: fetcher and store are required")
	}
	if cfg.Interval <= 0 {
		return nil, fmt.Errorf("monitor: invalid interval %s", cfg.Interval)
	}
	if cfg.CycleTimeout <= 0 {
		cfg.CycleTimeout = defaultCycleTimeout
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}

	m := &Monitor{
		fetcher:      cfg.Fetcher,
		store:        cfg.Store,
		notifier:     cfg.Notifier,
		seedOnStart:  cfg.SeedOnStart,
		cycleTimeout: cfg.CycleTimeout,
		now:          cfg.Now,
		intervalCh:   make(chan time.Duration, 1),
	}
	m.interval.Store(int64(cfg.Interval))
	m.status.StartedAt = cfg.Now()
	return m, nil
}

// RunOnce performs one cycle: load the saved set, fetch, compare, save the
// latest set and notify about updates. Notification failures are logged and
// do not fail the cycle.
func (m *Monitor) RunOnce(ctx context.Context) (Result, error) {
	res := Result{CycleID: uuid.NewString(), StartedAt: m.now()}
	ctx = xglog.ContextWithCycleID(ctx, res.CycleID)
	logger := xglog.WithComponentFromContext(ctx, "monitor")

	ctx, span := telemetry.Tracer("asentry/monitor").Start(ctx, "monitor.cycle")
	defer span.End()

	res, err := m.cycle(ctx, res)
	res.Duration = m.now().Sub(res.StartedAt)
	m.record(res, err)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "cycle failed")
		metrics.RecordCycle("error", res.StartedAt)
		logger.Error().
			Err(err).
			Str(xglog.FieldEvent, "monitor.cycle_failed").
			Dur("duration", res.Duration).
			Msg("monitor cycle failed")
		return res, err
	}

	newCount, increased := threat.Counts(res.Updates)
	span.SetAttributes(telemetry.CycleAttributes(res.CycleID, newCount, increased)...)
	result := "ok"
	if res.Seeded {
		result = "seeded"
	}
	metrics.RecordCycle(result, res.StartedAt)
	logger.Info().
		Str(xglog.FieldEvent, "monitor.cycle_done").
		Int("objects", res.Objects).
		Int("new", newCount).
		Int("increased", increased).
		Bool("seeded", res.Seeded).
		Dur("duration", res.Duration).
		Msg("monitor cycle complete")
	return res, nil
}

func (m *Monitor) cycle(ctx context.Context, res Result) (Result, error) {
	saved, err := m.store.Load(ctx)
	if err != nil {
		return res, fmt.Errorf("load saved objects: %w", err)
	}

	latest, err := m.fetcher.Fetch(ctx)
	if err != nil {
		return res, fmt.Errorf("fetch latest objects: %w", err)
	}
	res.Objects = len(latest)

	if saved.Empty() && m.seedOnStart {
		res.Seeded = true
	} else {
		res.Updates = threat.Compare(saved.Objects, latest)
	}

	if err := m.store.Save(ctx, store.Snapshot{Objects: latest, FetchedAt: res.StartedAt}); err != nil {
		return res, fmt.Errorf("save latest objects: %w", err)
	}

	for _, u := range res.Updates {
		metrics.RecordThreatUpdate(u.IsNew)
	}
	if len(res.Updates) > 0 && m.notifier != nil {
		if err := m.notifier.Notify(ctx, res.Updates); err != nil {
			logger := xglog.WithComponentFromContext(ctx, "monitor")
			logger.Warn().
				Err(err).
				Str(xglog.FieldEvent, "monitor.notify_failed").
				Msg("some alert sinks failed")
		}
	}
	return res, nil
}

func (m *Monitor) record(res Result, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.status.Cycles++
	m.status.LastRun = res.StartedAt
	m.status.LastCycleID = res.CycleID
	if err != nil {
		m.status.LastError = err.Error()
		return
	}
	m.status.LastError = ""
	m.status.LastSuccess = res.StartedAt
	m.status.LastUpdates = res.Updates
	m.ready.Store(true)
}

// Trigger runs a cycle now, sharing the result with any cycle already in
// flight. The shared cycle is detached from ctx cancellation and bounded by
// the cycle timeout; ctx only bounds how long the caller waits.
func (m *Monitor) Trigger(ctx context.Context) (Result, error) {
	ch := m.group.DoChan("cycle", func() (any, error) {
		cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.cycleTimeout)
		defer cancel()
		return m.RunOnce(cctx)
	})

	select {
	case r := <-ch:
		res, _ := r.Val.(Result)
		return res, r.Err
	case <-ctx.Done():
		return Result{}, ctx.Err()
	}
}

// Run cycles immediately and then every interval until ctx is cancelled.
// Cycle errors are logged and the loop continues.
func (m *Monitor) Run(ctx context.Context) error {
	logger := xglog.WithComponentFromContext(ctx, "monitor")
	interval := m.Interval()
	logger.Info().
		Str(xglog.FieldEvent, "monitor.started").
		Dur("interval", interval).
		Bool("seed_on_start", m.seedOnStart).
		Msg("monitor loop started")

	_, _ = m.Trigger(ctx)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			logger.Info().Str(xglog.FieldEvent, "monitor.stopped").Msg("monitor loop stopped")
			return nil
		case d := <-m.intervalCh:
			ticker.Reset(d)
			logger.Info().
				Str(xglog.FieldEvent, "monitor.interval_changed").
				Dur("interval", d).
				Msg("monitor interval changed")
		case <-ticker.C:
			_, _ = m.Trigger(ctx)
		}
	}
}

// Interval returns the current polling interval.
func (m *Monitor) Interval() time.Duration {
	return time.Duration(m.interval.Load())
}

// SetInterval changes the polling interval of a running loop.
func (m *Monitor) SetInterval(d time.Duration) {
	if d <= 0 || d == m.Interval() {
		return
	}
	m.interval.Store(int64(d))
	for {
		select {
		case m.intervalCh <- d:
			return
		default:
			select {
			case <-m.intervalCh:
			default:
			}
		}
	}
}

// Ready reports whether at least one cycle has succeeded.
func (m *Monitor) Ready() bool {
	return m.ready.Load()
}

// Status returns a copy of the monitor status.
func (m *Monitor) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.status
	s.Interval = m.Interval()
	s.Ready = m.Ready()
	if s.LastUpdates == nil {
		s.LastUpdates = []threat.Update{}
	}
	return s
}

// Saved returns the currently saved object set.
func (m *Monitor) Saved(ctx context.Context) (store.Snapshot, error) {
	return m.store.Load(ctx)
}
