// SPDX-License-Identifier: MIT

package monitor

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/asentry/asentry/internal/sentry"
	"github.com/asentry/asentry/internal/store"
	"github.com/asentry/asentry/internal/threat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeFetcher struct {
	mu      sync.Mutex
	batches [][]sentry.Object
	err     error
	calls   atomic.Int32
	block   chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context) ([]sentry.Object, error) {
	f.calls.Add(1)
	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	if len(f.batches) == 0 {
		return nil, errors.New("no more batches")
	}
	b := f.batches[0]
	if len(f.batches) > 1 {
		f.batches = f.batches[1:]
	}
	return b, nil
}

type recordingNotifier struct {
	mu      sync.Mutex
	batches [][]threat.Update
	err     error
}

func (n *recordingNotifier) Notify(_ context.Context, u []threat.Update) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.batches = append(n.batches, u)
	return n.err
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.batches)
}

func objects(ps ...string) []sentry.Object {
	ids := []string{"a", "b", "c", "d"}
	out := make([]sentry.Object, 0, len(ps))
	for i, p := range ps {
		out = append(out, sentry.Object{ID: ids[i], FullName: "(" + ids[i] + ")", PSCum: p})
	}
	return out
}

func newMonitor(t *testing.T, f Fetcher, n Notifier, seed bool) (*Monitor, *store.Memory) {
	t.Helper()
	st := store.NewMemory()
	m, err := New(Config{Fetcher: f, Store: st, Notifier: n, Interval: time.Hour, SeedOnStart: seed})
	require.NoError(t, err)
	return m, st
}

func TestRunOnce_FirstFetchReportsAllNew(t *testing.T) {
	f := &fakeFetcher{batches: [][]sentry.Object{objects("-2.7", "-2.8")}}
	n := &recordingNotifier{}
	m, st := newMonitor(t, f, n, false)

	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Updates, 2)
	assert.False(t, res.Seeded)
	assert.NotEmpty(t, res.CycleID)
	assert.Equal(t, 1, n.count())

	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Objects, 2)
	assert.True(t, m.Ready())
}

func TestRunOnce_SeedOnStartSuppressesFirstAlert(t *testing.T) {
	f := &fakeFetcher{batches: [][]sentry.Object{
		objects("-2.7", "-2.8"),
		objects("-2.5", "-2.8", "-3.0"),
	}}
	n := &recordingNotifier{}
	m, _ := newMonitor(t, f, n, true)

	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.True(t, res.Seeded)
	assert.Empty(t, res.Updates)
	assert.Zero(t, n.count())

	res, err = m.RunOnce(context.Background())
	require.NoError(t, err)
	require.Len(t, res.Updates, 2)
	assert.Equal(t, "a", res.Updates[0].Object.ID)
	assert.False(t, res.Updates[0].IsNew)
	assert.Equal(t, "c", res.Updates[1].Object.ID)
	assert.True(t, res.Updates[1].IsNew)
}

func TestRunOnce_UnchangedDataProducesNoAlert(t *testing.T) {
	f := &fakeFetcher{batches: [][]sentry.Object{objects("-2.7")}}
	n := &recordingNotifier{}
	m, _ := newMonitor(t, f, n, false)

	_, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	assert.Empty(t, res.Updates)
	assert.Equal(t, 1, n.count())
}

func TestRunOnce_FetchErrorKeepsSavedSet(t *testing.T) {
	f := &fakeFetcher{batches: [][]sentry.Object{objects("-2.7")}}
	m, st := newMonitor(t, f, nil, false)

	_, err := m.RunOnce(context.Background())
	require.NoError(t, err)

	upstream := errors.New("upstream down")
	f.mu.Lock()
	f.err = upstream
	f.mu.Unlock()

	_, err = m.RunOnce(context.Background())
	require.ErrorIs(t, err, upstream)

	snap, err := st.Load(context.Background())
	require.NoError(t, err)
	assert.Len(t, snap.Objects, 1)

	status := m.Status()
	assert.Equal(t, 2, status.Cycles)
	assert.Contains(t, status.LastError, "upstream down")
	assert.True(t, status.Ready, "an earlier success keeps the monitor ready")
}

func TestRunOnce_NotifyFailureDoesNotFailCycle(t *testing.T) {
	f := &fakeFetcher{batches: [][]sentry.Object{objects("-2.7")}}
	n := &recordingNotifier{err: errors.New("webhook down")}
	m, _ := newMonitor(t, f, n, false)

	res, err := m.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Updates, 1)
	assert.Empty(t, m.Status().LastError)
}

func TestTrigger_CoalescesConcurrentCalls(t *testing.T) {
	f := &fakeFetcher{batches: [][]sentry.Object{objects("-2.7")}, block: make(chan struct{})}
	m, _ := newMonitor(t, f, nil, false)

	var wg sync.WaitGroup
	results := make([]Result, 3)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := m.Trigger(context.Background())
			assert.NoError(t, err)
			results[i] = res
		}(i)
	}

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(f.block)
	wg.Wait()

	assert.Equal(t, int32(1), f.calls.Load())
	assert.Equal(t, results[0].CycleID, results[1].CycleID)
	assert.Equal(t, results[0].CycleID, results[2].CycleID)
}

func TestTrigger_CallerCancelDoesNotAbortCycle(t *testing.T) {
	f := &fakeFetcher{batches: [][]sentry.Object{objects("-2.7")}, block: make(chan struct{})}
	m, _ := newMonitor(t, f, nil, false)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := m.Trigger(ctx)
		done <- err
	}()
	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	close(f.block)
	require.Eventually(t, m.Ready, time.Second, 5*time.Millisecond)
}

func TestRun_CyclesUntilCancelled(t *testing.T) {
	f := &fakeFetcher{batches: [][]sentry.Object{objects("-2.7")}}
	m, err := New(Config{Fetcher: f, Store: store.NewMemory(), Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return f.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
}

func TestRun_ContinuesAfterErrors(t *testing.T) {
	f := &fakeFetcher{err: errors.New("down")}
	m, err := New(Config{Fetcher: f, Store: store.NewMemory(), Interval: 10 * time.Millisecond})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return f.calls.Load() >= 2 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)
	assert.False(t, m.Ready())
}

func TestSetInterval(t *testing.T) {
	f := &fakeFetcher{batches: [][]sentry.Object{objects("-2.7")}}
	m, err := New(Config{Fetcher: f, Store: store.NewMemory(), Interval: time.Hour})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- m.Run(ctx) }()

	require.Eventually(t, func() bool { return f.calls.Load() == 1 }, time.Second, 5*time.Millisecond)
	m.SetInterval(10 * time.Millisecond)
	assert.Equal(t, 10*time.Millisecond, m.Interval())
	require.Eventually(t, func() bool { return f.calls.Load() >= 3 }, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Store: store.NewMemory(), Interval: time.Hour})
	require.Error(t, err)
	_, err = New(Config{Fetcher: &fakeFetcher{}, Store: store.NewMemory()})
	require.Error(t, err)
}

func TestStatus_EmptyUpdatesIsArray(t *testing.T) {
	m, _ := newMonitor(t, &fakeFetcher{}, nil, false)
	s := m.Status()
	assert.NotNil(t, s.LastUpdates)
	assert.Equal(t, time.Hour, s.Interval)
	assert.False(t, s.Ready)
}
