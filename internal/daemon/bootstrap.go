// SPDX-License-Identifier: MIT

// Package daemon wires and runs the long-lived asentry process: the monitor
// loop, the API and metrics listeners and configuration reloads.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/asentry/asentry/internal/alert"
	"github.com/asentry/asentry/internal/api"
	"github.com/asentry/asentry/internal/config"
	"github.com/asentry/asentry/internal/health"
	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/monitor"
	"github.com/asentry/asentry/internal/sentry"
	"github.com/asentry/asentry/internal/store"
	"github.com/asentry/asentry/internal/telemetry"
)

// ServiceName names the process in logs and traces.
const ServiceName = "asentry"

// StoreOptions maps the store section onto store.Options, resolving the
// path against the data directory.
func StoreOptions(cfg config.AppConfig) store.Options {
	return store.Options{
		Backend:       cfg.Store.Backend,
		Path:          cfg.ResolvePath(cfg.Store.Path),
		RedisAddr:     cfg.Store.RedisAddr,
		RedisPassword: cfg.Store.RedisPassword,
		RedisDB:       cfg.Store.RedisDB,
		RedisKey:      cfg.Store.RedisKey,
	}
}

// NewSentryClient builds the upstream client from cfg.
func NewSentryClient(cfg config.AppConfig) (*sentry.Client, error) {
	return sentry.New(sentry.Config{
		BaseURL:          cfg.Sentry.BaseURL,
		PSMin:            cfg.Sentry.PSMin,
		Timeout:          cfg.Sentry.Timeout,
		BreakerThreshold: cfg.Sentry.BreakerThreshold,
		BreakerReset:     cfg.Sentry.BreakerReset,
	})
}

// NewMonitor builds a monitor polling fetcher into st.
func NewMonitor(cfg config.AppConfig, fetcher monitor.Fetcher, st store.Store, n monitor.Notifier) (*monitor.Monitor, error) {
	return monitor.New(monitor.Config{
		Fetcher:     fetcher,
		Store:       st,
		Notifier:    n,
		Interval:    cfg.Monitor.Interval,
		SeedOnStart: cfg.Monitor.SeedOnStart,
	})
}

// TelemetryConfig maps the telemetry section onto telemetry.Config.
func TelemetryConfig(cfg config.AppConfig) telemetry.Config {
	return telemetry.Config{
		Enabled:        cfg.Telemetry.Enabled,
		ServiceName:    ServiceName,
		ServiceVersion: cfg.Version,
		Environment:    cfg.Telemetry.Environment,
		ExporterType:   cfg.Telemetry.Exporter,
		Endpoint:       cfg.Telemetry.Endpoint,
		SamplingRate:   cfg.Telemetry.SamplingRate,
	}
}

// Bootstrap wires every runtime component for holder's current config.
// Resources opened before a failure are released before returning.
func Bootstrap(ctx context.Context, holder *config.Holder, term io.Writer) (_ *App, err error) {
	cfg := holder.Get()
	logger := xglog.WithComponent("daemon")

	var cleanup []func(context.Context) error
	defer func() {
		if err == nil {
			return
		}
		for i := len(cleanup) - 1; i >= 0; i-- {
			_ = cleanup[i](context.Background())
		}
	}()

	if err := health.PerformStartupChecks(ctx, cfg); err != nil {
		return nil, err
	}

	tp, err := telemetry.NewProvider(ctx, TelemetryConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	cleanup = append(cleanup, tp.Shutdown)

	st, err := store.Open(ctx, StoreOptions(cfg))
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}
	cleanup = append(cleanup, func(context.Context) error { return st.Close() })

	client, err := NewSentryClient(cfg)
	if err != nil {
		return nil, err
	}

	alerts, err := alert.FromConfig(cfg, term)
	if err != nil {
		return nil, fmt.Errorf("alert sinks: %w", err)
	}
	notifier := newSwappableNotifier(alerts)

	mon, err := NewMonitor(cfg, client, st, notifier)
	if err != nil {
		return nil, err
	}

	hm := health.NewManager(cfg.Version)
	hm.RegisterChecker(health.NewCycleChecker(func() health.CycleState {
		s := mon.Status()
		return health.CycleState{
			Ready:       s.Ready,
			LastSuccess: s.LastSuccess,
			LastError:   s.LastError,
			Interval:    s.Interval,
		}
	}))
	if p, ok := st.(health.Pinger); ok {
		hm.RegisterChecker(health.NewPingChecker("store", p))
	}
	hm.RegisterChecker(health.NewBreakerChecker("sentry", func() string {
		return string(client.Breaker().State)
	}))

	tracingService := ""
	if cfg.Telemetry.Enabled {
		tracingService = ServiceName
	}
	srv, err := api.New(api.Deps{
		Monitor:        mon,
		Health:         hm,
		Breaker:        client.Breaker,
		Version:        cfg.Version,
		Config:         cfg.API,
		TracingService: tracingService,
	})
	if err != nil {
		return nil, err
	}

	mgr, err := NewManager(Deps{
		Logger:         logger,
		Server:         cfg.API,
		APIHandler:     srv.Handler(),
		MetricsHandler: api.MetricsHandler(),
	})
	if err != nil {
		return nil, err
	}
	// LIFO: the store closes before the tracer provider flushes.
	mgr.RegisterShutdownHook("telemetry", tp.Shutdown)
	mgr.RegisterShutdownHook("store", func(context.Context) error { return st.Close() })

	logger.Info().
		Str(xglog.FieldEvent, "daemon.bootstrapped").
		Str("store", cfg.Store.Backend).
		Str("sentry", client.Endpoint()).
		Strs("sinks", notifier.sinks()).
		Dur("interval", cfg.Monitor.Interval).
		Msg("runtime wired")

	app := NewApp(logger, mgr, holder, mon)
	app.notifier = notifier
	app.term = term
	return app, nil
}

// Run bootstraps and runs the daemon until SIGINT or SIGTERM.
func Run(ctx context.Context, holder *config.Holder, term io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := Bootstrap(ctx, holder, term)
	if err != nil {
		return err
	}
	if err := app.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}
