// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package audit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/goccy/go-json"

	"github.com/tomtom215/embysync/internal/logging"
)

// Keys are "push:<20-digit unix nanos>:<id>" so that key order is time
// order.
const prefixPush = "push:"

// ErrClosed is returned by a closed BadgerStore.
var ErrClosed = errors.New("audit store closed")

// BadgerStore persists entries in BadgerDB.
type BadgerStore struct {
	db     *badger.DB
	closed atomic.Bool
}

// OpenBadger opens (or creates) the store at path. With inMemory set the
// path is ignored and nothing touches disk.
func OpenBadger(path string, inMemory bool) (*BadgerStore, error) {
	opts := badger.DefaultOptions(path)
	if inMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = !inMemory
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}
	logging.Info().Str("path", path).Bool("in_memory", inMemory).Msg("Audit journal opened")
	return &BadgerStore{db: db}, nil
}

func entryKey(e *Entry) []byte {
	return []byte(fmt.Sprintf("%s%020d:%s", prefixPush, e.Timestamp.UnixNano(), e.ID))
}

func (s *BadgerStore) Save(_ context.Context, e *Entry) error {
	if s.closed.Load() {
		return ErrClosed
	}
	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal entry: %w", err)
	}
	return s.db.Update(func(txn *badger.Txn) error {
		return txn.SetEntry(badger.NewEntry(entryKey(e), data))
	})
}

func (s *BadgerStore) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	if s.closed.Load() {
		return nil, ErrClosed
	}
	var out []Entry
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true
		opts.Prefix = []byte(prefixPush)
		it := txn.NewIterator(opts)
		defer it.Close()

		// Reverse iteration starts at the largest key not above the seek key.
		seek := []byte(prefixPush + "\xff")
		for it.Seek(seek); it.ValidForPrefix(opts.Prefix); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			item := it.Item()
			var e Entry
			if err := item.Value(func(val []byte) error { return json.Unmarshal(val, &e) }); err != nil {
				logging.Warn().Err(err).Str("key", string(item.Key())).Msg("Skipping unreadable audit entry")
				continue
			}
			if !filter.Since.IsZero() && e.Timestamp.Before(filter.Since) {
				// Everything further is older.
				return nil
			}
			if !filter.matches(&e) {
				continue
			}
			out = append(out, e)
			if filter.Limit > 0 && len(out) >= filter.Limit {
				return nil
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	return out, nil
}

func (s *BadgerStore) Delete(ctx context.Context, olderThan time.Time) (int64, error) {
	if s.closed.Load() {
		return 0, ErrClosed
	}
	cutoff := fmt.Sprintf("%s%020d", prefixPush, olderThan.UnixNano())

	var keys [][]byte
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(prefixPush)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			key := it.Item().KeyCopy(nil)
			if strings.Compare(string(key), cutoff) >= 0 {
				break
			}
			keys = append(keys, key)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("scan expired audit entries: %w", err)
	}

	if len(keys) == 0 {
		return 0, nil
	}
	wb := s.db.NewWriteBatch()
	for _, k := range keys {
		if err := wb.Delete(k); err != nil {
			wb.Cancel()
			return 0, fmt.Errorf("delete audit entry: %w", err)
		}
	}
	if err := wb.Flush(); err != nil {
		return 0, fmt.Errorf("flush audit deletes: %w", err)
	}
	return int64(len(keys)), nil
}

// Close closes the database. It is safe to call twice.
func (s *BadgerStore) Close() error {
	if s.closed.Swap(true) {
		return nil
	}
	return s.db.Close()
}
