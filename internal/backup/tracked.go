// Actorvault - Actor Store Backup and Recovery
// Copyright 2026 Actorvault Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/actorvault/actorvault

package backup

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"
)

// Key prefixes for the tracked-set namespaces in BadgerDB.
const (
	TrackedKeysPrefix      = "trk:key:"
	TrackedDatabasesPrefix = "trk:db:"
)

// TrackedSet is a durable set of item identifiers that have been
// uploaded and confirmed. Membership is the only contract: an item is
// recorded after its upload succeeds and never before, so a crash
// between upload and record re-uploads on the next pass rather than
// losing the item.
//
// The set is written by the single coordinator loop; reads may come
// from anywhere.
type TrackedSet struct {
	db     *badger.DB
	prefix []byte
}

// trackedValue is the stored record, kept for operator forensics.
type trackedValue struct {
	RecordedAt time.Time `json:"recorded_at"`
}

// NewTrackedSet returns the set stored under prefix in db.
func NewTrackedSet(db *badger.DB, prefix string) *TrackedSet {
	return &TrackedSet{db: db, prefix: []byte(prefix)}
}

// Contains reports whether id has been recorded.
func (s *TrackedSet) Contains(id string) (bool, error) {
	found := false
	err := s.db.View(func(txn *badger.Txn) error {
		_, err := txn.Get(s.key(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("tracked set lookup %s: %w", id, err)
	}
	return found, nil
}

// Record marks id as uploaded. Call only after the upload is confirmed.
// Recording an already-recorded id overwrites the timestamp.
func (s *TrackedSet) Record(id string) error {
	value, err := json.Marshal(trackedValue{RecordedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("encode tracked value: %w", err)
	}

	err = s.db.Update(func(txn *badger.Txn) error {
		return txn.Set(s.key(id), value)
	})
	if err != nil {
		return fmt.Errorf("tracked set record %s: %w", id, err)
	}
	return nil
}

// Len returns the number of recorded items.
func (s *TrackedSet) Len() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Seek(s.prefix); it.ValidForPrefix(s.prefix); it.Next() {
			n++
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("tracked set len: %w", err)
	}
	return n, nil
}

func (s *TrackedSet) key(id string) []byte {
	key := make([]byte, 0, len(s.prefix)+len(id))
	key = append(key, s.prefix...)
	key = append(key, id...)
	return key
}
