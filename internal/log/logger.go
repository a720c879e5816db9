// SPDX-License-Identifier: MIT

package log

import (
	"cmp"
	"io"
	"os"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"
)

// Config selects level, destination and the fields stamped on every entry.
// Empty fields fall back to LOG_LEVEL, stdout, LOG_SERVICE (or "asentry")
// and VERSION.
type Config struct {
	Level   string
	Output  io.Writer
	Service string
	Version string
	Console bool // human-readable lines instead of JSON
}

var root atomic.Pointer[zerolog.Logger]

// Configure replaces the process logger. It runs once at init with the
// environment defaults and again after the configuration file is loaded.
func Configure(cfg Config) {
	level, err := zerolog.ParseLevel(cmp.Or(cfg.Level, os.Getenv("LOG_LEVEL")))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var out io.Writer = os.Stdout
	if cfg.Output != nil {
		out = cfg.Output
	}
	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
	}

	l := zerolog.New(out).With().
		Timestamp().
		Str("service", cmp.Or(cfg.Service, os.Getenv("LOG_SERVICE"), "asentry")).
		Str("version", cmp.Or(cfg.Version, os.Getenv("VERSION"))).
		Logger()
	root.Store(&l)
}

// WithComponent returns a child of the process logger tagged with component.
func WithComponent(component string) zerolog.Logger {
	return root.Load().With().Str(FieldComponent, component).Logger()
}

func init() {
	Configure(Config{})
}
