// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/asentry/asentry/internal/api"
	xglog "github.com/asentry/asentry/internal/log"
	"github.com/rs/zerolog"
)

const defaultShutdownTimeout = 15 * time.Second

// ShutdownHook is a function that performs cleanup during graceful shutdown.
// Hooks are executed in reverse registration order (LIFO).
type ShutdownHook func(ctx context.Context) error

// Manager manages the HTTP listeners: starting servers, handling shutdown.
type Manager interface {
	// Start starts all configured servers and blocks until shutdown
	Start(ctx context.Context) error

	// Shutdown gracefully shuts down all servers
	Shutdown(ctx context.Context) error

	// RegisterShutdownHook registers a function to be called during shutdown
	RegisterShutdownHook(name string, hook ShutdownHook)
}

type manager struct {
	deps Deps

	apiServer     *http.Server
	metricsServer *http.Server

	shutdownHooks []namedHook

	started  bool
	stopping bool
	mu       sync.Mutex

	// ready is closed once every listener is bound.
	ready chan struct{}

	logger zerolog.Logger
}

type namedHook struct {
	name string
	hook ShutdownHook
}

// NewManager creates a new daemon manager with the given dependencies.
func NewManager(deps Deps) (Manager, error) {
	if err := deps.Validate(); err != nil {
		return nil, fmt.Errorf("invalid dependencies: %w", err)
	}
	if deps.Server.ShutdownTimeout <= 0 {
		deps.Server.ShutdownTimeout = defaultShutdownTimeout
	}

	return &manager{
		deps:   deps,
		logger: deps.Logger.With().Str(xglog.FieldComponent, "manager").Logger(),
		ready:  make(chan struct{}),
	}, nil
}

// Start binds the listeners and blocks until ctx is cancelled or a server fails.
// Bind errors are returned before anything is served.
func (m *manager) Start(ctx context.Context) error {
	if ctx == nil {
		return errors.New("start context is nil")
	}

	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return ErrManagerStarted
	}
	m.started = true
	m.mu.Unlock()

	cfg := m.deps.Server
	m.logger.Info().
		Str(xglog.FieldEvent, "manager.start").
		Str("listen", cfg.ListenAddr).
		Str("metrics", cfg.MetricsAddr).
		Dur("shutdown_timeout", cfg.ShutdownTimeout).
		Msg("starting daemon manager")

	errChan := make(chan error, 2)

	if m.deps.MetricsHandler != nil && cfg.MetricsAddr != "" {
		srv := api.NewHTTPServer(cfg.MetricsAddr, m.deps.MetricsHandler, cfg)
		if err := m.serve(srv, "metrics", errChan); err != nil {
			m.closeOnFailure()
			return fmt.Errorf("failed to start metrics server: %w", err)
		}
		m.metricsServer = srv
	}

	srv := api.NewHTTPServer(cfg.ListenAddr, m.deps.APIHandler, cfg)
	if err := m.serve(srv, "api", errChan); err != nil {
		m.closeOnFailure()
		return fmt.Errorf("failed to start API server: %w", err)
	}
	m.apiServer = srv
	close(m.ready)

	select {
	case err := <-errChan:
		m.logger.Error().Err(err).Str(xglog.FieldEvent, "manager.server_failed").Msg("server error, initiating shutdown")
		// Detached-but-bounded so shutdown completes even if parent is canceled.
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if shutdownErr := m.Shutdown(shutdownCtx); shutdownErr != nil {
			return fmt.Errorf("server error and shutdown failure: %w", errors.Join(err, shutdownErr))
		}
		return err
	case <-ctx.Done():
		m.logger.Info().Str(xglog.FieldEvent, "manager.stop_requested").Msg("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		return m.Shutdown(shutdownCtx)
	}
}

func (m *manager) serve(srv *http.Server, name string, errChan chan<- error) error {
	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		return err
	}
	srv.Addr = ln.Addr().String()

	go func() {
		m.logger.Info().
			Str(xglog.FieldEvent, name+".listening").
			Str("addr", srv.Addr).
			Msg("server listening")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.logger.Error().
				Err(err).
				Str(xglog.FieldEvent, name+".server_failed").
				Msg("server failed")
			errChan <- fmt.Errorf("%s server: %w", name, err)
		}
	}()
	return nil
}

func (m *manager) closeOnFailure() {
	if m.metricsServer != nil {
		_ = m.metricsServer.Close()
	}
	m.runHooks(context.Background())
}

func (m *manager) Shutdown(ctx context.Context) error {
	if ctx == nil {
		return errors.New("shutdown context is nil")
	}

	m.mu.Lock()
	if m.stopping {
		m.mu.Unlock()
		return nil
	}
	if !m.started {
		m.mu.Unlock()
		return ErrManagerNotStarted
	}
	m.stopping = true
	m.mu.Unlock()

	m.logger.Info().Str(xglog.FieldEvent, "manager.shutdown").Msg("shutting down daemon manager")

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), m.deps.Server.ShutdownTimeout)
	defer cancel()

	var errs []error
	if m.apiServer != nil {
		if err := m.apiServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("API server shutdown: %w", err))
		}
	}
	if m.metricsServer != nil {
		if err := m.metricsServer.Shutdown(shutdownCtx); err != nil {
			errs = append(errs, fmt.Errorf("metrics server shutdown: %w", err))
		}
	}
	errs = append(errs, m.runHooks(shutdownCtx)...)

	if len(errs) > 0 {
		m.logger.Error().
			Int("error_count", len(errs)).
			Str(xglog.FieldEvent, "manager.stopped_with_errors").
			Msg("shutdown completed with errors")
		return fmt.Errorf("shutdown errors: %w", errors.Join(errs...))
	}

	m.logger.Info().Str(xglog.FieldEvent, "manager.stopped").Msg("daemon manager stopped cleanly")
	return nil
}

// runHooks executes the shutdown hooks once, newest first.
func (m *manager) runHooks(ctx context.Context) []error {
	m.mu.Lock()
	hooks := m.shutdownHooks
	m.shutdownHooks = nil
	m.mu.Unlock()

	var errs []error
	for i := len(hooks) - 1; i >= 0; i-- {
		h := hooks[i]
		start := time.Now()
		if err := h.hook(ctx); err != nil {
			m.logger.Error().
				Err(err).
				Str("hook", h.name).
				Dur("duration", time.Since(start)).
				Msg("shutdown hook failed")
			errs = append(errs, fmt.Errorf("hook %s: %w", h.name, err))
			continue
		}
		m.logger.Debug().
			Str("hook", h.name).
			Dur("duration", time.Since(start)).
			Msg("shutdown hook completed")
	}
	return errs
}

// RegisterShutdownHook registers a cleanup function to be called during shutdown.
// Hooks are executed in reverse registration order (LIFO).
func (m *manager) RegisterShutdownHook(name string, hook ShutdownHook) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.shutdownHooks = append(m.shutdownHooks, namedHook{name: name, hook: hook})
	m.logger.Debug().Str("hook", name).Msg("registered shutdown hook")
}
