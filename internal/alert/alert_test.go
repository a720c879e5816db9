// SPDX-License-Identifier: MIT

package alert

import (
	"bytes"
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
	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/sentry"
	"github.com/asentry/asentry/internal/threat"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	name  string
	err   error
	calls int
}

func (f *fakeSink) Name() string { return f.name }
func (f *fakeSink) Send(context.Context, []threat.Update) error {
	f.calls++
	return f.err
}

func sampleUpdates() []threat.Update {
	return []threat.Update{
		{Object: sentry.Object{ID: "a0101955", FullName: "101955 Bennu (1999 RQ36)", Range: "2178-2290"}, IsNew: true},
		{Object: sentry.Object{ID: "bJ79X00B", FullName: "(1979 XB)", Range: "2056-2113", TSMax: sentry.StringPtr("1")}},
	}
}

func TestNotifier_FailingSinkDoesNotStopOthers(t *testing.T) {
	boom := errors.New("boom")
	first := &fakeSink{name: "first", err: boom}
	skipped := &fakeSink{name: "skipped", err: ErrSkipped}
	last := &fakeSink{name: "last"}

	err := NewNotifier(first, skipped, last).Notify(context.Background(), sampleUpdates())

	require.ErrorIs(t, err, boom)
	assert.NotErrorIs(t, err, ErrSkipped)
	assert.Equal(t, 1, first.calls)
	assert.Equal(t, 1, skipped.calls)
	assert.Equal(t, 1, last.calls)
}

func TestNotifier_NoUpdatesIsNoop(t *testing.T) {
	s := &fakeSink{name: "s"}
	require.NoError(t, NewNotifier(s).Notify(context.Background(), nil))
	assert.Zero(t, s.calls)
}

func TestLogSink_WritesOneEventPerUpdate(t *testing.T) {
	var buf bytes.Buffer
	sink := NewLogSink(zerolog.New(&buf))

	require.NoError(t, sink.Send(context.Background(), sampleUpdates()))

	lines := bytes.Split(bytes.TrimSpace(buf.Bytes()), []byte("\n"))
	require.Len(t, lines, 2)
	var ev map[string]any
	require.NoError(t, json.Unmarshal(lines[0], &ev))
	assert.Equal(t, "alert.threat", ev[xglog.FieldEvent])
	assert.Equal(t, "NEW THREAT!", ev["message"])
	assert.Equal(t, "None", ev["ts_max"])
}

func TestBellSink(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewBellSink(&buf).Send(context.Background(), sampleUpdates()))
	assert.Equal(t, "\a", buf.String())
}

func TestCommandSink_MissingSoundIsSkipped(t *testing.T) {
	sink := NewCommandSink([]string{"true"}, filepath.Join(t.TempDir(), "alert.wav"))
	err := sink.Send(context.Background(), sampleUpdates())
	require.ErrorIs(t, err, ErrSkipped)
}

func TestCommandSink_RunsPlayer(t *testing.T) {
	dir := t.TempDir()
	sound := filepath.Join(dir, "alert.wav")
	require.NoError(t, os.WriteFile(sound, []byte("RIFF"), 0o600))
	marker := filepath.Join(dir, "played")

	sink := NewCommandSink([]string{"sh", "-c", `cp "$1" "` + marker + `"`, "player"}, sound)
	require.NoError(t, sink.Send(context.Background(), sampleUpdates()))

	data, err := os.ReadFile(marker)
	require.NoError(t, err)
	assert.Equal(t, "RIFF", string(data))
}

func TestCommandSink_PlayerFailure(t *testing.T) {
	sound := filepath.Join(t.TempDir(), "alert.wav")
	require.NoError(t, os.WriteFile(sound, nil, 0o600))

	err := NewCommandSink([]string{"false"}, sound).Send(context.Background(), sampleUpdates())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrSkipped)
}

func TestWebhookSink_PostsJSON(t *testing.T) {
	var got WebhookPayload
	var cycle string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		cycle = r.Header.Get("X-Asentry-Cycle")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL+"/hook", time.Second)
	require.NoError(t, err)
	sink.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	ctx := xglog.ContextWithCycleID(context.Background(), "cycle-1")
	require.NoError(t, sink.Send(ctx, sampleUpdates()))

	assert.Equal(t, "cycle-1", cycle)
	assert.Equal(t, "asentry.threats", got.Event)
	assert.Len(t, got.Updates, 2)
	assert.True(t, got.Updates[0].IsNew)
	assert.Contains(t, got.Text, "INCREASED THREAT!")
}

func TestWebhookSink_Non2xxFails(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	sink, err := NewWebhookSink(srv.URL, time.Second)
	require.NoError(t, err)
	err = sink.Send(context.Background(), sampleUpdates())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}

func TestFromConfig(t *testing.T) {
	cfg := config.Defaults()
	cfg.DataDir = t.TempDir()
	cfg.Alert.Bell = true
	cfg.Alert.Command = []string{"aplay", "-q"}
	cfg.Alert.WebhookURL = "https://hooks.example.org/asentry"

	n, err := FromConfig(cfg, &bytes.Buffer{})
	require.NoError(t, err)
	assert.Equal(t, []string{"log", "bell", "command", "webhook"}, n.Sinks())

	cfg = config.Defaults()
	n, err = FromConfig(cfg, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"log"}, n.Sinks())
}
