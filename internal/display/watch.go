// SPDX-License-Identifier: MIT

package display

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/asentry/asentry/internal/threat"
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// CheckFunc runs one monitoring cycle and returns its updates.
type CheckFunc func(ctx context.Context) ([]threat.Update, error)

// WatchConfig configures the watch screen.
type WatchConfig struct {
	Check     CheckFunc
	Width     int
	Lines     int
	Interval  time.Duration // re-check period while idle
	IdleClear time.Duration // blank the idle screen after this long; 0 keeps it
	Now       func() time.Time
}

// KeyMap holds the watch screen bindings.
type KeyMap struct {
	Ack  key.Binding
	Quit key.Binding
}

// DefaultKeyMap acknowledges with space or enter and quits with q.
var DefaultKeyMap = KeyMap{
	Ack: key.NewBinding(
		key.WithKeys(" ", "enter"),
		key.WithHelp("space", "ack / check now"),
	),
	Quit: key.NewBinding(
		key.WithKeys("q", "ctrl+c"),
		key.WithHelp("q", "quit"),
	),
}

type mode int

const (
	modeChecking mode = iota
	modeAlert         // updates showing; waits for a key
	modeIdle          // no updates; re-checks on its own
	modeError         // last check failed; waits for a key
)

type checkDoneMsg struct {
	updates []threat.Update
	err     error
}

// Timer messages carry the wait generation they were scheduled in so that
// timers from an earlier wait are ignored.
type (
	scrollMsg  struct{ gen int }
	clearMsg   struct{ gen int }
	recheckMsg struct{ gen int }
)

var (
	frameStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("8")).
			Padding(0, 1)
	alertFrameStyle = frameStyle.BorderForeground(lipgloss.Color("9"))
	titleStyle      = lipgloss.NewStyle().Bold(true)
	alertTitleStyle = titleStyle.Foreground(lipgloss.Color("9"))
	statusStyle     = lipgloss.NewStyle().Faint(true)
)

// Model is the bubbletea model behind `asentry watch`.
type Model struct {
	ctx     context.Context
	cfg     WatchConfig
	keys    KeyMap
	help    help.Model
	panel   *Panel
	started time.Time

	mode    mode
	gen     int
	checks  int
	lastErr error
}

// NewModel builds the watch model. ctx bounds every check it starts.
func NewModel(ctx context.Context, cfg WatchConfig) Model {
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	panel := NewPanel(cfg.Width, cfg.Lines)
	panel.Show("asentry")
	return Model{
		ctx:     ctx,
		cfg:     cfg,
		keys:    DefaultKeyMap,
		help:    help.New(),
		panel:   panel,
		started: cfg.Now(),
		mode:    modeChecking,
	}
}

// Init starts the first check.
func (m Model) Init() tea.Cmd {
	return m.check()
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Quit) {
			return m, tea.Quit
		}
		if m.mode == modeChecking {
			return m, nil
		}
		// Any other key acknowledges the screen and checks again.
		return m.startCheck()

	case checkDoneMsg:
		m.checks++
		m.gen++
		m.lastErr = msg.err
		switch {
		case msg.err != nil:
			m.mode = modeError
			m.panel.Show("Error: " + msg.err.Error())
			return m, m.scrollAfter()
		case len(msg.updates) > 0:
			m.mode = modeAlert
			m.panel.ShowUpdates(msg.updates)
			return m, m.scrollAfter()
		default:
			m.mode = modeIdle
			m.panel.Show("No new threats")
			m.panel.Add("\n\n")
			m.panel.Add(FormatUptime(m.cfg.Now().Sub(m.started)))
			cmds := []tea.Cmd{m.scrollAfter()}
			if m.cfg.Interval > 0 {
				gen := m.gen
				cmds = append(cmds, tea.Tick(m.cfg.Interval, func(time.Time) tea.Msg { return recheckMsg{gen: gen} }))
			}
			if m.cfg.IdleClear > 0 {
				gen := m.gen
				cmds = append(cmds, tea.Tick(m.cfg.IdleClear, func(time.Time) tea.Msg { return clearMsg{gen: gen} }))
			}
			return m, tea.Batch(cmds...)
		}

	case scrollMsg:
		if msg.gen != m.gen || m.mode == modeChecking {
			return m, nil
		}
		if m.panel.MaxOffset() > 0 {
			m.panel.ScrollNext()
		}
		return m, m.scrollAfter()

	case clearMsg:
		if msg.gen == m.gen && m.mode == modeIdle {
			m.panel.Show("")
		}
		return m, nil

	case recheckMsg:
		if msg.gen == m.gen && m.mode == modeIdle {
			return m.startCheck()
		}
		return m, nil
	}
	return m, nil
}

func (m Model) startCheck() (tea.Model, tea.Cmd) {
	m.gen++
	m.mode = modeChecking
	return m, m.check()
}

func (m Model) check() tea.Cmd {
	ctx, check := m.ctx, m.cfg.Check
	return func() tea.Msg {
		if check == nil {
			return checkDoneMsg{err: errors.New("no check configured")}
		}
		updates, err := check(ctx)
		return checkDoneMsg{updates: updates, err: err}
	}
}

func (m Model) scrollAfter() tea.Cmd {
	gen := m.gen
	return tea.Tick(m.panel.ScrollDelay(), func(time.Time) tea.Msg { return scrollMsg{gen: gen} })
}

// View implements tea.Model.
func (m Model) View() string {
	title, frame := titleStyle, frameStyle
	heading := "asentry"
	switch m.mode {
	case modeAlert:
		title, frame = alertTitleStyle, alertFrameStyle
		heading = "asentry: ALERT"
	case modeChecking:
		heading = "asentry: checking..."
	case modeError:
		heading = "asentry: error"
	}

	if m.cfg.Width > 0 {
		frame = frame.Width(m.cfg.Width + 2)
	}
	body := frame.Render(strings.Join(m.panel.Visible(), "\n"))
	footer := statusStyle.Render(m.help.ShortHelpView([]key.Binding{m.keys.Ack, m.keys.Quit}))
	return lipgloss.JoinVertical(lipgloss.Left, title.Render(heading), body, footer) + "\n"
}

// Panel exposes the model's text panel.
func (m Model) Panel() *Panel {
	return m.panel
}

// RunWatch runs the watch screen on the terminal until the user quits or ctx ends.
func RunWatch(ctx context.Context, cfg WatchConfig, opts ...tea.ProgramOption) error {
	opts = append([]tea.ProgramOption{tea.WithAltScreen(), tea.WithContext(ctx)}, opts...)
	p := tea.NewProgram(NewModel(ctx, cfg), opts...)
	if _, err := p.Run(); err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return err
	}
	return nil
}
