// SPDX-License-Identifier: MIT

package alert

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/exec"
	"strings"
	"sync"

	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/threat"
	"github.com/rs/zerolog"
)

// LogSink writes one structured event per update.
type LogSink struct {
	logger zerolog.Logger
}

// NewLogSink logs through logger.
func NewLogSink(logger zerolog.Logger) *LogSink {
	return &LogSink{logger: logger}
}

func (s *LogSink) Name() string { return "log" }

func (s *LogSink) Send(_ context.Context, updates []threat.Update) error {
	for _, u := range updates {
		s.logger.Warn().
			Str(xglog.FieldEvent, "alert.threat").
			Str(xglog.FieldObjectID, u.Object.ID).
			Bool("new", u.IsNew).
			Str("fullname", u.Object.FullName).
			Str("range", u.Object.Range).
			Str("ps_cum", u.Object.PSCum).
			Str("ts_max", u.Object.TorinoMaxString()).
			Msg(u.Headline())
	}
	return nil
}

// BellSink rings the terminal bell once per batch.
type BellSink struct {
	mu sync.Mutex
	w  io.Writer
}

// NewBellSink writes BEL to w.
func NewBellSink(w io.Writer) *BellSink {
	return &BellSink{w: w}
}

func (s *BellSink) Name() string { return "bell" }

func (s *BellSink) Send(_ context.Context, _ []threat.Update) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := io.WriteString(s.w, "\a")
	return err
}

// CommandSink plays the alert sound through an external player, e.g.
// `aplay -q`. The sound path is appended to the argv.
type CommandSink struct {
	argv  []string
	sound string
}

// NewCommandSink creates a player sink. argv must be non-empty.
func NewCommandSink(argv []string, sound string) *CommandSink {
	return &CommandSink{argv: argv, sound: sound}
}

func (s *CommandSink) Name() string { return "command" }

// Send runs the player. A missing sound file is not an error.
func (s *CommandSink) Send(ctx context.Context, _ []threat.Update) error {
	if _, err := os.Stat(s.sound); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("%w: sound file %s not found", ErrSkipped, s.sound)
		}
		return fmt.Errorf("stat sound file: %w", err)
	}

	args := append(append([]string(nil), s.argv[1:]...), s.sound)
	// #nosec G204 -- the player command is operator configuration
	cmd := exec.CommandContext(ctx, s.argv[0], args...)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("run %s: %w: %s", s.argv[0], err, strings.TrimSpace(string(out)))
	}
	return nil
}
