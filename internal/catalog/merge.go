// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package catalog

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/tomtom215/embysync/internal/media"
	"github.com/tomtom215/embysync/internal/metrics"
	"github.com/tomtom215/embysync/internal/models"
)

// batch is one server's complete listing for the current pass.
type batch struct {
	serverKey string
	items     []*models.Item
}

// Engine owns the canonical table. Mutations come from a single owner
// (the orchestrator); readers may call Snapshot and Get from any
// goroutine.
type Engine struct {
	mu      sync.RWMutex
	table   *Table
	emitter Emitter

	staged []batch
}

// NewEngine returns an engine with an empty table. A nil emitter drops
// events.
func NewEngine(emitter Emitter) *Engine {
	if emitter == nil {
		emitter = nopEmitter{}
	}
	return &Engine{table: NewTable(), emitter: emitter}
}

// Stage queues a server's full listing for the next Merge. Staging the
// same server twice replaces the earlier batch.
func (e *Engine) Stage(serverKey string, items []*models.Item) {
	for i, b := range e.staged {
		if b.serverKey == serverKey {
			e.staged[i].items = items
			return
		}
	}
	e.staged = append(e.staged, batch{serverKey: serverKey, items: items})
}

// Staged reports how many server batches are waiting.
func (e *Engine) Staged() int { return len(e.staged) }

// Discard drops staged batches without merging.
func (e *Engine) Discard() { e.staged = nil }

// Merge folds the staged batches into a copy of the table and commits the
// copy only when every item was processed. It returns false if ctx or
// progress cancelled the pass, in which case the table is unchanged.
// Staged batches are consumed either way.
func (e *Engine) Merge(ctx context.Context, progress ProgressSink) bool {
	if progress == nil {
		progress = NopProgress{}
	}
	start := time.Now()
	batches := e.staged
	e.staged = nil

	e.mu.RLock()
	work := e.table.Clone()
	e.mu.RUnlock()

	total := 0
	for _, b := range batches {
		total += len(b.items)
	}

	progress.PushState()
	defer progress.PopState()
	progress.SetTitle("Merging media data")
	progress.SetMaximum(total)

	seen := make(map[string]map[string]bool, len(batches))
	done := 0
	for _, b := range batches {
		ids := make(map[string]bool, len(b.items))
		seen[b.serverKey] = ids
		for _, item := range b.items {
			if ctx.Err() != nil || progress.WasCanceled() {
				metrics.RecordMerge(time.Since(start), "canceled", 0, 0)
				return false
			}
			if item == nil || item.ID == "" {
				continue
			}
			ingest(work, b.serverKey, item)
			ids[item.ID] = true
			done++
			progress.SetValue(done)
		}
	}

	prune(work, seen)

	e.mu.Lock()
	e.table = work
	stats := statsOf(work)
	e.mu.Unlock()

	metrics.RecordMerge(time.Since(start), "committed", stats.Records, stats.NeedsUpdating)
	e.emitter.Emit(Event{Kind: BatchReset})
	return true
}

// ingest folds one payload into t.
func ingest(t *Table, serverKey string, item *models.Item) Handle {
	if h, ok := t.FindByServerID(serverKey, item.ID); ok {
		r, _ := t.Record(h)
		r.ApplyItem(item, false)
		r.State(serverKey).LoadFrom(item.UserData)
		t.Reindex(h)
		return h
	}

	cand := media.FromItem(serverKey, item)
	if h, ok := findMatch(t, serverKey, cand); ok {
		r, _ := t.Record(h)
		r.ApplyItem(item, false)
		r.AddOrReplaceServerState(serverKey, cand.State(serverKey))
		t.Reindex(h)
		return h
	}
	return t.Insert(cand)
}

// findMatch locates an existing record for cand: by provider id, then
// the name index, then a linear fuzzy scan.
func findMatch(t *Table, serverKey string, cand *media.Record) (Handle, bool) {
	eligible := func(h Handle) bool {
		r, ok := t.Record(h)
		if !ok || r.Kind != cand.Kind || r.State(serverKey).Valid() {
			return false
		}
		return !providersConflict(r, cand)
	}

	for _, provider := range sortedKeys(cand.ProviderIDs) {
		for _, h := range t.FindByProvider(provider, cand.ProviderIDs[provider]) {
			if eligible(h) {
				return h, true
			}
		}
	}

	id := cand.Identity()
	for _, key := range recordNameKeys(cand) {
		for _, h := range t.byName[key] {
			r, _ := t.Record(h)
			if eligible(h) && media.MatchesIdentity(r, id) {
				return h, true
			}
		}
	}

	if media.NameKey(id.Name) == "" && media.NameKey(id.OriginalTitle) == "" {
		return 0, false
	}
	for _, h := range t.order {
		r, _ := t.Record(h)
		if r.Kind != id.Kind || !media.YearWithin(r.Year(), id.Year) {
			continue
		}
		if eligible(h) && media.MatchesIdentity(r, id) {
			return h, true
		}
	}
	return 0, false
}

// providersConflict reports whether a and b carry different ids for the
// same provider.
func providersConflict(a, b *media.Record) bool {
	for k, v := range b.ProviderIDs {
		if ov, ok := a.ProviderIDs[k]; ok && !strings.EqualFold(ov, v) {
			return true
		}
	}
	return false
}

// prune drops states for items a server no longer lists, then records
// left with no states.
func prune(t *Table, seen map[string]map[string]bool) {
	for _, h := range t.Handles() {
		r, _ := t.Record(h)
		changed := false
		for server, ids := range seen {
			if s := r.State(server); s != nil && !ids[s.MediaID] {
				r.RemoveServerState(server)
				changed = true
			}
		}
		switch {
		case r.Len() == 0:
			t.Remove(h)
		case changed:
			t.Reindex(h)
		}
	}
}

// Reset empties the table and discards staged batches.
func (e *Engine) Reset() {
	e.staged = nil
	e.mu.Lock()
	e.table = NewTable()
	e.mu.Unlock()
	metrics.CatalogRecords.Set(0)
	metrics.CatalogNeedsUpdating.Set(0)
	e.emitter.Emit(Event{Kind: BatchReset})
}

// ReloadItem applies a freshly fetched single item in place, matching it
// into the table exactly as a listing would. It emits ItemUpserted.
func (e *Engine) ReloadItem(serverKey string, item *models.Item) Handle {
	e.mu.Lock()
	h := ingest(e.table, serverKey, item)
	if r, ok := e.table.Record(h); ok {
		r.ApplyItem(item, true)
		e.table.Reindex(h)
	}
	e.mu.Unlock()
	e.emitter.Emit(Event{Kind: ItemUpserted, Handle: h})
	return h
}

// RemoveServerItem forgets mediaID on serverKey, removing the record when
// no server holds it any more.
func (e *Engine) RemoveServerItem(serverKey, mediaID string) {
	e.mu.Lock()
	h, ok := e.table.FindByServerID(serverKey, mediaID)
	if !ok {
		e.mu.Unlock()
		return
	}
	r, _ := e.table.Record(h)
	r.RemoveServerState(serverKey)
	kind := ItemUpserted
	if r.Len() == 0 {
		e.table.Remove(h)
		kind = ItemRemoved
	} else {
		e.table.Reindex(h)
	}
	e.mu.Unlock()
	e.emitter.Emit(Event{Kind: kind, Handle: h})
}

// ApplyUserData stores a server-confirmed user-data payload on the record
// holding mediaID. It reports whether such a record exists.
func (e *Engine) ApplyUserData(serverKey, mediaID string, ud *models.UserData) (Handle, bool) {
	e.mu.Lock()
	h, ok := e.table.FindByServerID(serverKey, mediaID)
	if ok {
		r, _ := e.table.Record(h)
		r.State(serverKey).LoadFrom(ud)
	}
	e.mu.Unlock()
	if ok {
		e.emitter.Emit(Event{Kind: ItemUpserted, Handle: h})
	}
	return h, ok
}

// Get returns a detached copy of the record for h.
func (e *Engine) Get(h Handle) (*media.Record, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	r, ok := e.table.Record(h)
	if !ok {
		return nil, false
	}
	return r.Clone(), true
}

// Lookup finds the handle of the record holding mediaID on serverKey.
func (e *Engine) Lookup(serverKey, mediaID string) (Handle, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table.FindByServerID(serverKey, mediaID)
}

// Len returns the number of records.
func (e *Engine) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.table.Len()
}

// Snapshot returns detached copies of every record in position order.
func (e *Engine) Snapshot() []Entry {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]Entry, 0, e.table.Len())
	for _, h := range e.table.order {
		r, _ := e.table.Record(h)
		out = append(out, Entry{Handle: h, Record: r.Clone()})
	}
	return out
}

// Stats summarizes the table.
type Stats struct {
	Records       int `json:"records"`
	Syncable      int `json:"syncable"`
	NeedsUpdating int `json:"needs_updating"`
	Missing       int `json:"missing"`
}

// Stats returns counts over the current table.
func (e *Engine) Stats() Stats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return statsOf(e.table)
}

func statsOf(t *Table) Stats {
	s := Stats{Records: t.Len()}
	for _, r := range t.records {
		if r.CanBeSynced() {
			s.Syncable++
		}
		if r.SyncStatus() == media.NeedsUpdating {
			s.NeedsUpdating++
		}
		if r.IsMissing {
			s.Missing++
		}
	}
	return s
}
