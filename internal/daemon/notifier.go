// SPDX-License-Identifier: MIT

package daemon

import (
	"context"
	"sync/atomic"

	"github.com/asentry/asentry/internal/alert"
	"github.com/asentry/asentry/internal/threat"
)

// swappableNotifier lets a config reload replace the alert sinks while the
// monitor keeps a single Notifier.
type swappableNotifier struct {
	cur atomic.Pointer[alert.Notifier]
}

func newSwappableNotifier(n *alert.Notifier) *swappableNotifier {
	s := &swappableNotifier{}
	s.cur.Store(n)
	return s
}

func (s *swappableNotifier) Notify(ctx context.Context, updates []threat.Update) error {
	return s.cur.Load().Notify(ctx, updates)
}

func (s *swappableNotifier) swap(n *alert.Notifier) {
	s.cur.Store(n)
}

func (s *swappableNotifier) sinks() []string {
	return s.cur.Load().Sinks()
}
