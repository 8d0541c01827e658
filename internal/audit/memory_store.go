// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package audit

import (
	"context"
	"sync"
	"time"
)

// MemoryStore keeps at most maxLen entries in memory.
type MemoryStore struct {
	mu      sync.RWMutex
	entries []Entry
	maxLen  int
}

// NewMemoryStore creates a store; maxLen <= 0 means 10000.
func NewMemoryStore(maxLen int) *MemoryStore {
	if maxLen <= 0 {
		maxLen = 10000
	}
	return &MemoryStore{maxLen: maxLen}
}

func (s *MemoryStore) Save(_ context.Context, e *Entry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.entries) >= s.maxLen {
		// Drop the oldest tenth.
		s.entries = s.entries[max(s.maxLen/10, 1):]
	}
	s.entries = append(s.entries, *e)
	return nil
}

func (s *MemoryStore) Query(_ context.Context, filter QueryFilter) ([]Entry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for i := len(s.entries) - 1; i >= 0; i-- {
		if !filter.matches(&s.entries[i]) {
			continue
		}
		out = append(out, s.entries[i])
		if filter.Limit > 0 && len(out) >= filter.Limit {
			break
		}
	}
	return out, nil
}

func (s *MemoryStore) Delete(_ context.Context, olderThan time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.entries[:0]
	var n int64
	for _, e := range s.entries {
		if e.Timestamp.Before(olderThan) {
			n++
			continue
		}
		kept = append(kept, e)
	}
	s.entries = kept
	return n, nil
}

func (s *MemoryStore) Close() error { return nil }
