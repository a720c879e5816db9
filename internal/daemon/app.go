// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/asentry/asentry/internal/alert"
	"github.com/asentry/asentry/internal/config"
	xglog "github.com/asentry/asentry/internal/log"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Runner is the polling loop the App drives.
type Runner interface {
	Run(ctx context.Context) error
	SetInterval(d time.Duration)
}

// App owns the long-lived runtime lifecycle: the monitor loop, config
// reloads and the HTTP listeners managed by Manager.
type App struct {
	logger       zerolog.Logger
	manager      Manager
	holder       *config.Holder
	monitor      Runner
	notifier     *swappableNotifier
	term         io.Writer
	reloadSignal os.Signal
}

// NewApp creates a new App orchestrator. holder may be nil when the
// configuration is fixed.
func NewApp(logger zerolog.Logger, manager Manager, holder *config.Holder, monitor Runner) *App {
	return &App{
		logger:       logger,
		manager:      manager,
		holder:       holder,
		monitor:      monitor,
		reloadSignal: syscall.SIGHUP,
	}
}

// Run starts all owned subsystems and blocks until ctx is cancelled or a
// fatal error occurs.
func (a *App) Run(ctx context.Context) error {
	if a.manager == nil {
		return ErrMissingManager
	}
	if a.monitor == nil {
		return ErrMissingMonitor
	}

	g, ctx := errgroup.WithContext(ctx)

	if a.holder != nil {
		// The watcher is best-effort: startup does not fail without it.
		if err := a.holder.StartWatcher(ctx); err != nil {
			a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.watcher_start_failed").Msg("failed to start config watcher")
		}

		applyCh := make(chan config.AppConfig, 1)
		a.holder.RegisterListener(applyCh)
		g.Go(func() error {
			for {
				select {
				case <-ctx.Done():
					return nil
				case cfg := <-applyCh:
					a.apply(cfg)
				}
			}
		})

		if a.reloadSignal != nil {
			g.Go(func() error {
				hupChan := make(chan os.Signal, 1)
				signal.Notify(hupChan, a.reloadSignal)
				defer signal.Stop(hupChan)

				for {
					select {
					case <-ctx.Done():
						return nil
					case <-hupChan:
						a.logger.Info().
							Str(xglog.FieldEvent, "config.reload_signal").
							Str("signal", a.reloadSignal.String()).
							Msg("received reload signal, reloading config")
						if err := a.holder.Reload(ctx); err != nil {
							a.logger.Warn().Err(err).Str(xglog.FieldEvent, "config.reload_failed").Msg("config reload failed")
						}
					}
				}
			})
		}
	}

	g.Go(func() error {
		return a.monitor.Run(ctx)
	})

	g.Go(func() error {
		err := a.manager.Start(ctx)
		if err != nil {
			_ = a.manager.Shutdown(context.Background())
		}
		return err
	})

	return g.Wait()
}

// apply hot-swaps the reloadable settings: the monitor interval and the
// alert sinks. Everything else needs a restart.
func (a *App) apply(cfg config.AppConfig) {
	a.monitor.SetInterval(cfg.Monitor.Interval)

	if lvl, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && lvl != zerolog.NoLevel {
		zerolog.SetGlobalLevel(lvl)
	}

	if a.notifier == nil {
		return
	}
	n, err := alert.FromConfig(cfg, a.term)
	if err != nil {
		a.logger.Warn().Err(err).Str(xglog.FieldEvent, "alert.reload_failed").Msg("keeping previous alert sinks")
		return
	}
	a.notifier.swap(n)
	a.logger.Info().
		Str(xglog.FieldEvent, "config.applied").
		Dur("interval", cfg.Monitor.Interval).
		Strs("sinks", a.notifier.sinks()).
		Msg("applied reloaded configuration")
}
