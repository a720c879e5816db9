// SPDX-License-Identifier: MIT

package resilience

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

var errUpstream = errors.New("upstream down")

func fail(context.Context) error    { return errUpstream }
func succeed(context.Context) error { return nil }

func TestCircuitBreaker_TripsAtThreshold(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("test", 3, time.Minute, WithNow(clock.now))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		require.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	}
	assert.Equal(t, StateClosed, cb.State())

	require.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, cb.State())

	called := false
	err := cb.Execute(ctx, func(context.Context) error {
		called = true
		return nil
	})
	require.ErrorIs(t, err, ErrCircuitOpen)
	assert.False(t, called, "open breaker must not call through")
}

func TestCircuitBreaker_SuccessResetsStreak(t *testing.T) {
	cb := NewCircuitBreaker("test", 2, time.Minute)
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.NoError(t, cb.Execute(ctx, succeed))
	_ = cb.Execute(ctx, fail)

	assert.Equal(t, StateClosed, cb.State())
	assert.Equal(t, 1, cb.Snapshot().Failures)
}

func TestCircuitBreaker_HalfOpenTrial(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("test", 1, 30*time.Second, WithNow(clock.now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	require.Equal(t, StateOpen, cb.State())

	clock.advance(10 * time.Second)
	require.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)

	// failed trial reopens and restarts the cool-down
	clock.advance(30 * time.Second)
	require.ErrorIs(t, cb.Execute(ctx, fail), errUpstream)
	assert.Equal(t, StateOpen, cb.State())
	require.ErrorIs(t, cb.Execute(ctx, succeed), ErrCircuitOpen)

	clock.advance(30 * time.Second)
	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_SingleTrialInFlight(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("test", 1, time.Second, WithNow(clock.now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(time.Second)

	var second error
	err := cb.Execute(ctx, func(context.Context) error {
		assert.Equal(t, StateHalfOpen, cb.State())
		second = cb.Execute(ctx, succeed)
		return nil
	})
	require.NoError(t, err)
	require.ErrorIs(t, second, ErrCircuitOpen)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_CancelledTrialStaysHalfOpen(t *testing.T) {
	clock := &fakeClock{t: time.Now()}
	cb := NewCircuitBreaker("test", 1, time.Second, WithNow(clock.now))
	ctx := context.Background()

	_ = cb.Execute(ctx, fail)
	clock.advance(time.Second)

	err := cb.Execute(ctx, func(context.Context) error { return context.Canceled })
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateHalfOpen, cb.State())

	require.NoError(t, cb.Execute(ctx, succeed))
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_IgnoresCancellation(t *testing.T) {
	cb := NewCircuitBreaker("test", 1, time.Minute)

	err := cb.Execute(context.Background(), func(context.Context) error {
		return context.Canceled
	})
	require.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, StateClosed, cb.State())
}

func TestCircuitBreaker_FailurePredicate(t *testing.T) {
	errClient := errors.New("client error")
	cb := NewCircuitBreaker("test", 1, time.Minute, WithFailurePredicate(func(err error) bool {
		return !errors.Is(err, errClient)
	}))

	_ = cb.Execute(context.Background(), func(context.Context) error { return errClient })
	assert.Equal(t, StateClosed, cb.State())
	assert.Empty(t, cb.Snapshot().LastErr)
}

func TestCircuitBreaker_Snapshot(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1_700_000_000, 0)}
	cb := NewCircuitBreaker("sentry", 1, time.Minute, WithNow(clock.now))

	_ = cb.Execute(context.Background(), fail)
	snap := cb.Snapshot()

	assert.Equal(t, "sentry", snap.Name)
	assert.Equal(t, StateOpen, snap.State)
	assert.Equal(t, clock.t, snap.OpenedAt)
	assert.Equal(t, errUpstream.Error(), snap.LastErr)
}
