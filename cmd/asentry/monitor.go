// SPDX-License-Identifier: MIT

package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/asentry/asentry/internal/alert"
	"github.com/asentry/asentry/internal/config"
	"github.com/asentry/asentry/internal/daemon"
	"github.com/asentry/asentry/internal/display"
	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/monitor"
	"github.com/asentry/asentry/internal/store"
	"github.com/asentry/asentry/internal/threat"
	"github.com/spf13/cobra"
)

func newRunCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the monitor daemon with the HTTP API and metrics listener",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			loader, cfg, err := g.load()
			if err != nil {
				return err
			}
			return daemon.Run(cmd.Context(), config.NewHolder(cfg, loader), cmd.ErrOrStderr())
		},
	}
}

// openMonitor wires a monitor for one-shot and interactive commands. A dry
// run keeps the saved set in memory and never touches the configured store.
func openMonitor(ctx context.Context, cfg config.AppConfig, dryRun bool, term io.Writer) (*monitor.Monitor, func(), error) {
	opts := daemon.StoreOptions(cfg)
	if dryRun {
		opts = store.Options{Backend: "memory"}
	}
	st, err := store.Open(ctx, opts)
	if err != nil {
		return nil, nil, fmt.Errorf("open store: %w", err)
	}
	closeStore := func() { _ = st.Close() }

	client, err := daemon.NewSentryClient(cfg)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	notifier, err := alert.FromConfig(cfg, term)
	if err != nil {
		closeStore()
		return nil, nil, fmt.Errorf("alert sinks: %w", err)
	}
	mon, err := daemon.NewMonitor(cfg, client, st, notifier)
	if err != nil {
		closeStore()
		return nil, nil, err
	}
	return mon, closeStore, nil
}

func newCheckCmd(g *globalOptions) *cobra.Command {
	var (
		dryRun bool
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Run one fetch and compare cycle and print the updates",
		Long: "Run one fetch, compare and save cycle. Exits 0 when nothing changed\n" +
			"and 3 when new or escalated objects were found.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			_, cfg, err := g.load()
			if err != nil {
				return err
			}
			mon, closeStore, err := openMonitor(cmd.Context(), cfg, dryRun, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer closeStore()

			res, err := mon.RunOnce(cmd.Context())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(out)
				enc.SetIndent("", "  ")
				if err := enc.Encode(res); err != nil {
					return err
				}
			} else {
				switch {
				case res.Seeded:
					_, _ = fmt.Fprintf(out, "Seeded %d objects\n", res.Objects)
				case len(res.Updates) == 0:
					_, _ = fmt.Fprintln(out, "No new threats")
				default:
					_, _ = fmt.Fprintln(out, threat.Text(res.Updates))
				}
			}
			if len(res.Updates) > 0 {
				return &exitCodeError{code: exitUpdates}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "compare against an empty in-memory store and leave the saved set untouched")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the cycle result as JSON")
	return cmd
}

func newWatchCmd(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Show updates on an interactive terminal panel; any key acknowledges",
		Long: "Show updates on an interactive terminal panel. The panel owns the\n" +
			"terminal, so logs go to display.logFile when set and are dropped otherwise.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			wc, cleanup, err := prepareWatch(ctx, g)
			if err != nil {
				return err
			}
			defer cleanup()
			return display.RunWatch(ctx, wc)
		},
	}
}

// prepareWatch loads the configuration, moves logging off the terminal and
// wires the monitor behind the watch screen.
func prepareWatch(ctx context.Context, g *globalOptions) (display.WatchConfig, func(), error) {
	// Loader diagnostics must not reach the terminal either.
	xglog.Configure(xglog.Config{Output: io.Discard})

	_, cfg, err := g.loadConfig()
	if err != nil {
		return display.WatchConfig{}, nil, err
	}
	logOut, err := display.OpenLog(cfg.ResolvePath(cfg.Display.LogFile))
	if err != nil {
		return display.WatchConfig{}, nil, err
	}
	g.configureLogging(cfg, logOut)

	// The panel owns the terminal, so the bell sink is not wired.
	mon, closeStore, err := openMonitor(ctx, cfg, false, nil)
	if err != nil {
		_ = logOut.Close()
		return display.WatchConfig{}, nil, err
	}
	cleanup := func() {
		closeStore()
		_ = logOut.Close()
	}

	return display.WatchConfig{
		Check: func(ctx context.Context) ([]threat.Update, error) {
			res, err := mon.Trigger(ctx)
			return res.Updates, err
		},
		Width:     cfg.Display.Width,
		Lines:     cfg.Display.Lines,
		Interval:  cfg.Monitor.Interval,
		IdleClear: cfg.Display.IdleClear,
	}, cleanup, nil
}
