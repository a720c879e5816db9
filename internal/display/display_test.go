// SPDX-License-Identifier: MIT

package display

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/asentry/asentry/internal/sentry"
	"github.com/asentry/asentry/internal/threat"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/x/ansi"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPanel_ShowScrollsToTop(t *testing.T) {
	p := NewPanel(0, 2)
	p.Show("a\nb\nc\nd")

	assert.Equal(t, 0, p.Offset())
	assert.Equal(t, 2, p.MaxOffset())
	assert.False(t, p.OnLastLine())
	assert.Equal(t, []string{"a", "b"}, p.Visible())
}

func TestPanel_AddAppendsToLastLineAndScrollsToEnd(t *testing.T) {
	p := NewPanel(0, 2)
	p.Show("No new threats")
	p.Add("\n\n")
	p.Add("Uptime: 3 secs")

	assert.Equal(t, []string{"No new threats", "", "Uptime: 3 secs"}, p.Text())
	assert.True(t, p.OnLastLine())
	assert.Equal(t, []string{"", "Uptime: 3 secs"}, p.Visible())

	p.Add(" more")
	assert.Equal(t, "Uptime: 3 secs more", p.Text()[2])
}

func TestPanel_ScrollNextWrapsAround(t *testing.T) {
	p := NewPanel(0, 2)
	p.Show("1\n2\n3\n4")

	var offsets []int
	for range 4 {
		p.ScrollNext()
		offsets = append(offsets, p.Offset())
	}
	assert.Equal(t, []int{1, 2, 0, 1}, offsets)
}

func TestPanel_ScrollNextOnShortTextStays(t *testing.T) {
	p := NewPanel(0, 5)
	p.Show("one line")
	p.ScrollNext()
	assert.Equal(t, 0, p.Offset())
	assert.True(t, p.OnLastLine())
}

func TestPanel_VisiblePadsWithBlanks(t *testing.T) {
	p := NewPanel(10, 4)
	p.Show("x")
	assert.Equal(t, []string{"x", "", "", ""}, p.Visible())
}

func TestPanel_ScrollDelay(t *testing.T) {
	p := NewPanel(0, 1)
	p.Show("a\nb")
	assert.Equal(t, LineDelay, p.ScrollDelay())
	p.ScrollNext()
	assert.Equal(t, LastLineDelay, p.ScrollDelay())
}

func TestPanel_WrapsToWidth(t *testing.T) {
	p := NewPanel(8, 3)
	text := "101955 Bennu (1999 RQ36) is watched"
	p.Show(text)

	lines := p.Text()
	require.Greater(t, len(lines), 1)
	for _, l := range lines {
		assert.LessOrEqual(t, ansi.StringWidth(l), 8, "line %q", l)
	}
	assert.Equal(t, strings.Join(strings.Fields(text), ""), strings.Join(strings.Fields(strings.Join(lines, " ")), ""))
}

func TestPanel_ShowUpdates(t *testing.T) {
	p := NewPanel(0, 4)
	p.ShowUpdates([]threat.Update{
		{IsNew: true, Object: sentry.Object{FullName: "(2000 SG344)", Range: "2069-2122", TSMax: sentry.StringPtr("0")}},
		{Object: sentry.Object{FullName: "101955 Bennu (1999 RQ36)", Range: "2178-2290"}},
	})

	want := []string{
		"NEW THREAT!",
		"(2000 SG344)",
		"Year: 2069-2122",
		"Threat level: 0",
		"INCREASED THREAT!",
		"101955 Bennu (1999 RQ36)",
		"Year: 2178-2290",
		"Threat level: None",
	}
	if diff := cmp.Diff(want, p.Text()); diff != "" {
		t.Errorf("panel text mismatch (-want +got):\n%s", diff)
	}
	assert.Equal(t, 4, p.Offset(), "adding text scrolls to the end")
}

func TestFormatUptime(t *testing.T) {
	day := 24 * time.Hour
	tests := []struct {
		in   time.Duration
		want string
	}{
		{0, "Uptime: 0 secs"},
		{59 * time.Second, "Uptime: 59 secs"},
		{61 * time.Second, "Uptime: 1 mins 1 secs"},
		{time.Hour, "Uptime: 1 hrs 0 secs"},
		{9 * day, "Uptime: 1 wks 2 days 0 secs"},
		{366*day + 2*time.Hour + 3*time.Minute + 4*time.Second, "Uptime: 1 yrs 1 days 2 hrs 3 mins 4 secs"},
		{-time.Second, "Uptime: 0 secs"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatUptime(tt.in), "duration %s", tt.in)
	}
}

func keyRune(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func step(t *testing.T, m tea.Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	require.True(t, ok)
	return model, cmd
}

func TestModel_UpdatesWaitForKey(t *testing.T) {
	calls := 0
	m := NewModel(context.Background(), WatchConfig{
		Width: 0, Lines: 4, Interval: time.Hour,
		Check: func(context.Context) ([]threat.Update, error) {
			calls++
			return []threat.Update{{IsNew: true, Object: sentry.Object{FullName: "X"}}}, nil
		},
	})

	msg := m.Init()()
	require.IsType(t, checkDoneMsg{}, msg)
	assert.Equal(t, 1, calls)

	m, cmd := step(t, m, msg)
	assert.Equal(t, modeAlert, m.mode)
	assert.NotNil(t, cmd)
	assert.Contains(t, m.View(), "NEW THREAT!")

	// A stale recheck timer does nothing while an alert is showing.
	m, cmd = step(t, m, recheckMsg{gen: m.gen})
	assert.Nil(t, cmd)
	assert.Equal(t, modeAlert, m.mode)

	m, cmd = step(t, m, keyRune('x'))
	assert.Equal(t, modeChecking, m.mode)
	require.NotNil(t, cmd)
	_ = cmd()
	assert.Equal(t, 2, calls)
}

func TestModel_IdleShowsUptimeThenClears(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := start
	m := NewModel(context.Background(), WatchConfig{
		Lines: 5, Interval: time.Hour, IdleClear: 10 * time.Second,
		Now:   func() time.Time { return now },
		Check: func(context.Context) ([]threat.Update, error) { return nil, nil },
	})

	now = start.Add(65 * time.Second)
	m, _ = step(t, m, m.Init()())
	assert.Equal(t, modeIdle, m.mode)
	assert.Equal(t, []string{"No new threats", "", "Uptime: 1 mins 5 secs"}, m.Panel().Text())

	m, _ = step(t, m, clearMsg{gen: m.gen - 1})
	assert.Len(t, m.Panel().Text(), 3, "stale clear is ignored")

	m, _ = step(t, m, clearMsg{gen: m.gen})
	assert.Equal(t, []string{""}, m.Panel().Text())

	m, cmd := step(t, m, recheckMsg{gen: m.gen})
	assert.Equal(t, modeChecking, m.mode)
	assert.NotNil(t, cmd)
}

func TestModel_ErrorShowsMessage(t *testing.T) {
	m := NewModel(context.Background(), WatchConfig{
		Lines: 3,
		Check: func(context.Context) ([]threat.Update, error) { return nil, errors.New("upstream down") },
	})
	m, _ = step(t, m, m.Init()())
	assert.Equal(t, modeError, m.mode)
	assert.Equal(t, "Error: upstream down", m.Panel().Text()[0])
	assert.Error(t, m.lastErr)
}

func TestModel_ScrollTicksAdvance(t *testing.T) {
	m := NewModel(context.Background(), WatchConfig{Lines: 2})
	m, _ = step(t, m, checkDoneMsg{updates: []threat.Update{{IsNew: true}}})
	require.Equal(t, 2, m.Panel().Offset(), "alerts open on the last page")

	m, cmd := step(t, m, scrollMsg{gen: m.gen})
	assert.Equal(t, 0, m.Panel().Offset())
	assert.NotNil(t, cmd)

	m, _ = step(t, m, scrollMsg{gen: m.gen + 5})
	assert.Equal(t, 0, m.Panel().Offset(), "foreign generation is ignored")
}

func TestModel_QuitAndIgnoreKeysWhileChecking(t *testing.T) {
	m := NewModel(context.Background(), WatchConfig{Lines: 2})

	_, cmd := step(t, m, keyRune('x'))
	assert.Nil(t, cmd, "keys are ignored while a check runs")

	_, cmd = step(t, m, keyRune('q'))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.Quit(), cmd())
}

func TestModel_NoCheckConfigured(t *testing.T) {
	m := NewModel(context.Background(), WatchConfig{Lines: 2})
	msg, ok := m.Init()().(checkDoneMsg)
	require.True(t, ok)
	assert.Error(t, msg.err)
}
