// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/asentry/asentry/internal/persistence/sqlite"
	"github.com/asentry/asentry/internal/sentry"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS sentry_objects (
	id       TEXT PRIMARY KEY,
	position INTEGER NOT NULL,
	body     TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS snapshot_meta (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);`

const metaFetchedAt = "fetched_at"

// SQLite stores one row per object so the saved set is inspectable with
// the sqlite3 shell.
type SQLite struct {
	db *sql.DB
}

// OpenSQLite opens or creates the database at path and applies the schema.
func OpenSQLite(ctx context.Context, path string) (*SQLite, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("create store dir: %w", err)
		}
	}
	db, err := sqlite.Open(ctx, path, sqlite.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &SQLite{db: db}, nil
}

func (s *SQLite) Load(ctx context.Context) (Snapshot, error) {
	var snap Snapshot

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM snapshot_meta WHERE key = ?`, metaFetchedAt).Scan(&raw)
	switch {
	case errors.Is(err, sql.ErrNoRows):
	case err != nil:
		return Snapshot{}, fmt.Errorf("load meta: %w", err)
	default:
		t, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return Snapshot{}, fmt.Errorf("parse %s: %w", metaFetchedAt, err)
		}
		snap.FetchedAt = t
	}

	rows, err := s.db.QueryContext(ctx, `SELECT body FROM sentry_objects ORDER BY position`)
	if err != nil {
		return Snapshot{}, fmt.Errorf("load objects: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return Snapshot{}, fmt.Errorf("scan object: %w", err)
		}
		var o sentry.Object
		if err := json.Unmarshal([]byte(body), &o); err != nil {
			return Snapshot{}, fmt.Errorf("decode object: %w", err)
		}
		snap.Objects = append(snap.Objects, o)
	}
	if err := rows.Err(); err != nil {
		return Snapshot{}, fmt.Errorf("load objects: %w", err)
	}
	return snap, nil
}

// Save replaces the saved set in one transaction.
func (s *SQLite) Save(ctx context.Context, snap Snapshot) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `DELETE FROM sentry_objects`); err != nil {
		return fmt.Errorf("clear objects: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO sentry_objects (id, position, body) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET position = excluded.position, body = excluded.body`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, o := range snap.Objects {
		body, mErr := json.Marshal(o)
		if mErr != nil {
			return fmt.Errorf("encode object %s: %w", o.ID, mErr)
		}
		if _, err = stmt.ExecContext(ctx, o.ID, i, string(body)); err != nil {
			return fmt.Errorf("insert object %s: %w", o.ID, err)
		}
	}

	if _, err = tx.ExecContext(ctx,
		`INSERT INTO snapshot_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		metaFetchedAt, snap.FetchedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// Ping runs a quick integrity check.
func (s *SQLite) Ping(ctx context.Context) error {
	problems, err := sqlite.QuickCheck(ctx, s.db)
	if err != nil {
		return err
	}
	if len(problems) > 0 {
		return fmt.Errorf("sqlite integrity: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (s *SQLite) Close() error {
	return s.db.Close()
}
