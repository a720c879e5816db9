// SPDX-License-Identifier: MIT

package alert

import (
	"io"

	"github.com/asentry/asentry/internal/config"
	xglog "github.com/asentry/asentry/internal/log"
)

// FromConfig builds the notifier for cfg. The log sink is always first;
// the bell writes to term.
func FromConfig(cfg config.AppConfig, term io.Writer) (*Notifier, error) {
	sinks := []Sink{NewLogSink(xglog.WithComponent("alert"))}

	if cfg.Alert.Bell && term != nil {
		sinks = append(sinks, NewBellSink(term))
	}
	if len(cfg.Alert.Command) > 0 {
		sinks = append(sinks, NewCommandSink(cfg.Alert.Command, cfg.ResolvePath(cfg.Alert.SoundFile)))
	}
	if cfg.Alert.WebhookURL != "" {
		wh, err := NewWebhookSink(cfg.Alert.WebhookURL, cfg.Alert.WebhookTimeout)
		if err != nil {
			return nil, err
		}
		sinks = append(sinks, wh)
	}
	return NewNotifier(sinks...), nil
}
