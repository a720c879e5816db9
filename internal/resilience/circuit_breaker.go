// SPDX-License-Identifier: MIT

// Package resilience guards calls to flaky upstreams.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/asentry/asentry/internal/metrics"
)

// State is the breaker position reported to status endpoints and metrics.
type State string

const (
	StateClosed   State = "closed"
	StateOpen     State = "open"
	StateHalfOpen State = "half-open"
)

// ErrCircuitOpen is returned without calling the guarded function while the
// breaker is open or while a half-open trial call is still in flight.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// Option tunes a CircuitBreaker.
type Option func(*CircuitBreaker)

// WithNow replaces time.Now.
func WithNow(now func() time.Time) Option {
	return func(cb *CircuitBreaker) { cb.now = now }
}

// WithFailurePredicate selects the errors that count against the breaker.
// Cancellation never counts.
func WithFailurePredicate(counts func(error) bool) Option {
	return func(cb *CircuitBreaker) { cb.counts = counts }
}

// CircuitBreaker opens after a run of consecutive failures. Once the cool-down
// has passed a single trial call is let through; its outcome closes or
// re-opens the breaker.
type CircuitBreaker struct {
	name     string
	limit    int
	cooldown time.Duration
	now      func() time.Time
	counts   func(error) bool

	mu       sync.Mutex
	state    State
	streak   int
	openedAt time.Time
	trial    bool
	lastErr  error
}

// NewCircuitBreaker returns a closed breaker. A non-positive threshold or
// reset falls back to 3 failures and 30s.
func NewCircuitBreaker(name string, threshold int, reset time.Duration, opts ...Option) *CircuitBreaker {
	cb := &CircuitBreaker{
		name:     name,
		limit:    threshold,
		cooldown: reset,
		now:      time.Now,
		counts:   func(error) bool { return true },
		state:    StateClosed,
	}
	if cb.limit <= 0 {
		cb.limit = 3
	}
	if cb.cooldown <= 0 {
		cb.cooldown = 30 * time.Second
	}
	for _, opt := range opts {
		opt(cb)
	}
	metrics.SetCircuitBreakerState(name, string(StateClosed))
	return cb
}

// Execute calls fn unless the breaker refuses the call.
func (cb *CircuitBreaker) Execute(ctx context.Context, fn func(context.Context) error) error {
	trial, ok := cb.admit()
	if !ok {
		return ErrCircuitOpen
	}
	err := fn(ctx)
	cb.settle(trial, err)
	return err
}

// admit reports whether a call may proceed and whether it is the half-open trial.
func (cb *CircuitBreaker) admit() (trial, ok bool) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return false, true
	case StateOpen:
		if cb.now().Sub(cb.openedAt) < cb.cooldown {
			return false, false
		}
		cb.setState(StateHalfOpen)
	}
	if cb.trial {
		return false, false
	}
	cb.trial = true
	return true, true
}

func (cb *CircuitBreaker) settle(trial bool, err error) {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	if trial {
		cb.trial = false
	}

	counted := err != nil && !errors.Is(err, context.Canceled) && cb.counts(err)
	switch {
	case err == nil:
		cb.streak = 0
		cb.lastErr = nil
		cb.setState(StateClosed)
	case !counted:
		// A trial that was cancelled or did not count leaves the breaker half-open
		// so the next call becomes the new trial.
	case trial:
		cb.streak++
		cb.lastErr = err
		metrics.RecordCircuitBreakerTrip(cb.name, "half_open_failure")
		cb.trip()
	default:
		cb.streak++
		cb.lastErr = err
		if cb.state == StateClosed && cb.streak >= cb.limit {
			metrics.RecordCircuitBreakerTrip(cb.name, "threshold_exceeded")
			cb.trip()
		}
	}
}

// trip and setState require cb.mu.
func (cb *CircuitBreaker) trip() {
	cb.openedAt = cb.now()
	cb.setState(StateOpen)
}

func (cb *CircuitBreaker) setState(s State) {
	if cb.state != s {
		cb.state = s
		metrics.SetCircuitBreakerState(cb.name, string(s))
	}
}

// State returns the current position.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Snapshot is the breaker as reported by /api/v1/status.
type Snapshot struct {
	Name     string    `json:"name"`
	State    State     `json:"state"`
	Failures int       `json:"failures"`
	OpenedAt time.Time `json:"openedAt,omitzero"`
	LastErr  string    `json:"lastError,omitempty"`
}

func (cb *CircuitBreaker) Snapshot() Snapshot {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	snap := Snapshot{Name: cb.name, State: cb.state, Failures: cb.streak}
	if cb.state != StateClosed {
		snap.OpenedAt = cb.openedAt
	}
	if cb.lastErr != nil {
		snap.LastErr = cb.lastErr.Error()
	}
	return snap
}
