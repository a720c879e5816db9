// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/asentry/asentry/internal/sentry"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleSnapshot() Snapshot {
	return Snapshot{
		FetchedAt: time.Date(2024, 3, 1, 12, 30, 0, 123456789, time.UTC),
		Objects: []sentry.Object{
			{ID: "bJ79X00B", FullName: "(1979 XB)", PSCum: "-2.71", TSMax: sentry.StringPtr("0"), NImp: 4, Range: "2056-2113"},
			{ID: "a0101955", FullName: "101955 Bennu (1999 RQ36)", PSCum: "-1.41", NImp: 157, Range: "2178-2290"},
			{ID: "bK00SY4G", FullName: "(2000 SG344)", PSCum: "-2.78", TSMax: sentry.StringPtr("0"), NImp: 300},
		},
	}
}

type backend struct {
	name string
	open func(t *testing.T) Store
}

func backends() []backend {
	return []backend{
		{"memory", func(*testing.T) Store { return NewMemory() }},
		{"sqlite", func(t *testing.T) Store {
			s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "state", "asentry.db"))
			require.NoError(t, err)
			return s
		}},
		{"redis", func(t *testing.T) Store {
			mr := miniredis.RunT(t)
			s, err := OpenRedis(context.Background(), RedisOptions{Addr: mr.Addr()})
			require.NoError(t, err)
			return s
		}},
		{"badger", func(t *testing.T) Store {
			s, err := OpenBadger(filepath.Join(t.TempDir(), "badger"))
			require.NoError(t, err)
			return s
		}},
	}
}

func TestStores_EmptyLoad(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer func() { _ = s.Close() }()

			snap, err := s.Load(context.Background())
			require.NoError(t, err)
			assert.True(t, snap.Empty())
		})
	}
}

func TestStores_RoundTrip(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer func() { _ = s.Close() }()
			ctx := context.Background()

			want := sampleSnapshot()
			require.NoError(t, s.Save(ctx, want))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			assert.True(t, want.FetchedAt.Equal(got.FetchedAt), "fetchedAt %v != %v", want.FetchedAt, got.FetchedAt)
			if diff := cmp.Diff(want.Objects, got.Objects); diff != "" {
				t.Errorf("objects mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestStores_SaveReplaces(t *testing.T) {
	for _, b := range backends() {
		t.Run(b.name, func(t *testing.T) {
			s := b.open(t)
			defer func() { _ = s.Close() }()
			ctx := context.Background()

			require.NoError(t, s.Save(ctx, sampleSnapshot()))

			next := Snapshot{
				FetchedAt: time.Date(2024, 3, 1, 13, 30, 0, 0, time.UTC),
				Objects:   []sentry.Object{{ID: "a0101955", PSCum: "-1.20"}},
			}
			require.NoError(t, s.Save(ctx, next))

			got, err := s.Load(ctx)
			require.NoError(t, err)
			require.Len(t, got.Objects, 1)
			assert.Equal(t, "-1.20", got.Objects[0].PSCum)
		})
	}
}

func TestSQLite_PersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "asentry.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleSnapshot()))
	require.NoError(t, s.Ping(ctx))
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer func() { _ = s.Close() }()

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Objects, 3)
	assert.Equal(t, "bJ79X00B", got.Objects[0].ID)
}

func TestMemory_IsolatesCallers(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()

	snap := sampleSnapshot()
	require.NoError(t, m.Save(ctx, snap))
	snap.Objects[0].PSCum = "99"

	got, err := m.Load(ctx)
	require.NoError(t, err)
	assert.Equal(t, "-2.71", got.Objects[0].PSCum)

	require.NoError(t, m.Close())
	_, err = m.Load(ctx)
	require.ErrorIs(t, err, ErrClosed)
}

func TestRedis_SharedKey(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	a, err := OpenRedis(ctx, RedisOptions{Addr: mr.Addr(), Key: "shared"})
	require.NoError(t, err)
	defer func() { _ = a.Close() }()
	b, err := OpenRedis(ctx, RedisOptions{Addr: mr.Addr(), Key: "shared"})
	require.NoError(t, err)
	defer func() { _ = b.Close() }()

	require.NoError(t, a.Save(ctx, sampleSnapshot()))
	got, err := b.Load(ctx)
	require.NoError(t, err)
	assert.Len(t, got.Objects, 3)
	assert.True(t, mr.Exists("shared"))
}

func TestOpenRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := OpenRedis(context.Background(), RedisOptions{Addr: addr})
	require.Error(t, err)
}

func TestOpen_Factory(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, Options{Backend: "memory"})
	require.NoError(t, err)
	require.NoError(t, s.Save(ctx, sampleSnapshot()))
	p, ok := s.(Pinger)
	require.True(t, ok)
	require.NoError(t, p.Ping(ctx))
	require.NoError(t, s.Close())

	s, err = Open(ctx, Options{Backend: "sqlite", Path: filepath.Join(t.TempDir(), "x.db")})
	require.NoError(t, err)
	require.NoError(t, s.(Pinger).Ping(ctx))
	require.NoError(t, s.Close())

	_, err = Open(ctx, Options{Backend: "etcd"})
	require.Error(t, err)
}
