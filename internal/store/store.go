// SPDX-License-Identifier: MIT

// Package store persists the last fetched set of Sentry objects so changes
// can be detected across cycles and restarts.
package store

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/asentry/asentry/internal/sentry"
)

// ErrClosed is returned by operations on a closed store.
var ErrClosed = errors.New("store: closed")

// Snapshot is the saved object set and when it was fetched.
type Snapshot struct {
	Objects   []sentry.Object `json:"objects" cbor:"1,keyasint"`
	FetchedAt time.Time       `json:"fetchedAt" cbor:"2,keyasint"`
}

// Empty reports whether nothing has been saved yet.
func (s Snapshot) Empty() bool {
	return s.FetchedAt.IsZero() && len(s.Objects) == 0
}

func (s Snapshot) clone() Snapshot {
	return Snapshot{Objects: slices.Clone(s.Objects), FetchedAt: s.FetchedAt}
}

// Store loads and saves snapshots. Loading from an empty store returns an
// empty snapshot and no error.
type Store interface {
	Load(ctx context.Context) (Snapshot, error)
	Save(ctx context.Context, snap Snapshot) error
	Close() error
}

// Pinger is implemented by stores that can report their health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options selects and configures a backend.
type Options struct {
	Backend string // memory|sqlite|redis|badger
	Path    string // sqlite file or badger directory

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisKey      string
}

// Open creates the configured backend wrapped with metrics and logging.
func Open(ctx context.Context, opts Options) (Store, error) {
	var (
		s   Store
		err error
	)
	switch opts.Backend {
	case "memory", "":
		opts.Backend = "memory"
		s = NewMemory()
	case "sqlite":
		s, err = OpenSQLite(ctx, opts.Path)
	case "redis":
		s, err = OpenRedis(ctx, RedisOptions{
			Addr:     opts.RedisAddr,
			Password: opts.RedisPassword,
			DB:       opts.RedisDB,
			Key:      opts.RedisKey,
		})
	case "badger":
		s, err = OpenBadger(opts.Path)
	default:
		return nil, fmt.Errorf("unknown store backend: %s", opts.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", opts.Backend, err)
	}
	return Instrument(opts.Backend, s), nil
}
