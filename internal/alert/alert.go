// SPDX-License-Identifier: MIT

// Package alert delivers threat updates to the configured sinks.
package alert

import (
	"context"
	"errors"
	"fmt"

	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/metrics"
	"github.com/asentry/asentry/internal/threat"
)

// ErrSkipped is returned by a sink that had nothing to do, e.g. a missing
// sound file. It is not a failure.
var ErrSkipped = errors.New("alert: skipped")

// Sink delivers one batch of updates.
type Sink interface {
	Name() string
	Send(ctx context.Context, updates []threat.Update) error
}

// Notifier fans updates out to every sink.
type Notifier struct {
	sinks []Sink
}

// NewNotifier creates a notifier over sinks, in delivery order.
func NewNotifier(sinks ...Sink) *Notifier {
	return &Notifier{sinks: sinks}
}

// Sinks returns the sink names in delivery order.
func (n *Notifier) Sinks() []string {
	names := make([]string, 0, len(n.sinks))
	for _, s := range n.sinks {
		names = append(names, s.Name())
	}
	return names
}

// Notify delivers updates to every sink. A failing sink is logged and the
// remaining sinks still run; the returned error joins all sink failures.
func (n *Notifier) Notify(ctx context.Context, updates []threat.Update) error {
	if len(updates) == 0 {
		return nil
	}
	logger := xglog.WithComponentFromContext(ctx, "alert")

	var errs []error
	for _, s := range n.sinks {
		err := s.Send(ctx, updates)
		switch {
		case err == nil:
			metrics.RecordAlert(s.Name(), "ok")
		case errors.Is(err, ErrSkipped):
			metrics.RecordAlert(s.Name(), "skipped")
			logger.Debug().
				Str(xglog.FieldEvent, "alert.sink_skipped").
				Str("sink", s.Name()).
				Err(err).
				Msg("alert sink skipped")
		default:
			metrics.RecordAlert(s.Name(), "error")
			logger.Error().
				Str(xglog.FieldEvent, "alert.sink_failed").
				Str("sink", s.Name()).
				Err(err).
				Msg("alert sink failed")
			errs = append(errs, fmt.Errorf("%s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
