// SPDX-License-Identifier: MIT

package store

import (
	"context"

	xglog "github.com/asentry/asentry/internal/log"
	"github.com/asentry/asentry/internal/metrics"
)

type instrumented struct {
	backend string
	inner   Store
}

// Instrument records metrics and debug logs for every operation of s.
func Instrument(backend string, s Store) Store {
	return &instrumented{backend: backend, inner: s}
}

func (s *instrumented) Load(ctx context.Context) (Snapshot, error) {
	snap, err := s.inner.Load(ctx)
	metrics.RecordStoreOp(s.backend, "load", err)
	if err == nil {
		logger := xglog.WithComponentFromContext(ctx, "store")
		logger.Debug().
			Str(xglog.FieldEvent, "store.loaded").
			Str("backend", s.backend).
			Int("objects", len(snap.Objects)).
			Msg("snapshot loaded")
	}
	return snap, err
}

func (s *instrumented) Save(ctx context.Context, snap Snapshot) error {
	err := s.inner.Save(ctx, snap)
	metrics.RecordStoreOp(s.backend, "save", err)
	if err == nil {
		logger := xglog.WithComponentFromContext(ctx, "store")
		logger.Debug().
			Str(xglog.FieldEvent, "store.saved").
			Str("backend", s.backend).
			Int("objects", len(snap.Objects)).
			Msg("snapshot saved")
	}
	return err
}

func (s *instrumented) Close() error {
	return s.inner.Close()
}

// Ping forwards to the backend when it supports health checks.
func (s *instrumented) Ping(ctx context.Context) error {
	if p, ok := s.inner.(Pinger); ok {
		return p.Ping(ctx)
	}
	return nil
}

// Backend names the wrapped backend.
func (s *instrumented) Backend() string {
	return s.backend
}
