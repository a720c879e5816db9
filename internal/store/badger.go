// SPDX-License-Identifier: MIT

package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"
	"github.com/fxamacker/cbor/v2"
)

var badgerSnapshotKey = []byte("snapshot")

var cborEnc = mustEncMode()

// mustEncMode uses core deterministic encoding with nanosecond timestamps.
func mustEncMode() cbor.EncMode {
	opts := cbor.CoreDetEncOptions()
	opts.Time = cbor.TimeRFC3339Nano
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("cbor enc mode: %v", err))
	}
	return em
}

// Badger stores the snapshot CBOR-encoded in an embedded badger database.
type Badger struct {
	db *badger.DB
}

// OpenBadger opens or creates the badger directory at path.
func OpenBadger(path string) (*Badger, error) {
	opts := badger.DefaultOptions(path).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, err
	}
	return &Badger{db: db}, nil
}

func (b *Badger) Load(_ context.Context) (Snapshot, error) {
	var snap Snapshot
	err := b.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(badgerSnapshotKey)
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return cbor.Unmarshal(val, &snap)
		})
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return Snapshot{}, nil
	}
	if err != nil {
		return Snapshot{}, fmt.Errorf("badger load: %w", err)
	}
	return snap, nil
}

func (b *Badger) Save(_ context.Context, snap Snapshot) error {
	buf, err := cborEnc.Marshal(snap)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	return b.db.Update(func(txn *badger.Txn) error {
		return txn.Set(badgerSnapshotKey, buf)
	})
}

func (b *Badger) Close() error {
	return b.db.Close()
}
