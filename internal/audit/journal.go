// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package audit

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/embysync/internal/logging"
)

// Journal buffers entries and writes them to a Store from one goroutine.
// Record never blocks; when the buffer is full the entry is dropped and
// logged.
type Journal struct {
	store     Store
	retention time.Duration
	entries   chan *Entry
	stop      chan struct{}
	stopOnce  sync.Once
	wg        sync.WaitGroup
}

// NewJournal starts a journal over store. Retention <= 0 disables pruning.
func NewJournal(store Store, retention time.Duration, bufferSize int) *Journal {
	if bufferSize <= 0 {
		bufferSize = 1000
	}
	j := &Journal{
		store:     store,
		retention: retention,
		entries:   make(chan *Entry, bufferSize),
		stop:      make(chan struct{}),
	}
	j.wg.Add(1)
	go j.writer()
	return j
}

func (j *Journal) writer() {
	defer j.wg.Done()
	for {
		select {
		case <-j.stop:
			for {
				select {
				case e := <-j.entries:
					j.write(e)
				default:
					return
				}
			}
		case e := <-j.entries:
			j.write(e)
		}
	}
}

func (j *Journal) write(e *Entry) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := j.store.Save(ctx, e); err != nil {
		logging.Error().Err(err).Str("entry_id", e.ID).Msg("Failed to save audit entry")
	}
}

// Record queues e, filling in ID and Timestamp when unset.
func (j *Journal) Record(e Entry) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	select {
	case <-j.stop:
		logging.Warn().Str("entry_id", e.ID).Msg("Audit journal closed, dropping entry")
	case j.entries <- &e:
	default:
		logging.Warn().Str("entry_id", e.ID).Msg("Audit buffer full, dropping entry")
	}
}

// Query reads from the store.
func (j *Journal) Query(ctx context.Context, filter QueryFilter) ([]Entry, error) {
	return j.store.Query(ctx, filter)
}

// Prune deletes entries older than the retention window.
func (j *Journal) Prune(ctx context.Context) (int64, error) {
	if j.retention <= 0 {
		return 0, nil
	}
	return j.store.Delete(ctx, time.Now().Add(-j.retention))
}

// Serve prunes once a day until ctx ends. It satisfies suture.Service.
func (j *Journal) Serve(ctx context.Context) error {
	ticker := time.NewTicker(24 * time.Hour)
	defer ticker.Stop()
	for {
		if n, err := j.Prune(ctx); err != nil {
			logging.Error().Err(err).Msg("Audit retention cleanup failed")
		} else if n > 0 {
			logging.Info().Int64("count", n).Msg("Pruned old audit entries")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Close drains queued entries and closes the store.
func (j *Journal) Close() error {
	j.stopOnce.Do(func() { close(j.stop) })
	j.wg.Wait()
	return j.store.Close()
}
