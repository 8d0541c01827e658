// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

// Package catalog holds the canonical media table and the merge engine
// that folds per-server listings into it.
//
// Records live in an arena addressed by Handle. Every index (server+id,
// name, provider id, position) stores handles, never records, and is
// rebuilt for a handle whenever that record changes.
package catalog

import (
	"strconv"

	"github.com/tomtom215/embysync/internal/media"
)

// Handle addresses a record. Handles are never reused.
type Handle uint64

// Entry pairs a handle with a detached copy of its record.
type Entry struct {
	Handle Handle
	Record *media.Record
}

type indexKeys struct {
	serverIDs []string
	names     []string
	providers []string
}

// Table is the record arena plus its indexes. It is not safe for
// concurrent use; Engine serializes access.
type Table struct {
	records map[Handle]*media.Record
	order   []Handle
	keys    map[Handle]indexKeys

	byServerID map[string]Handle
	byName     map[string][]Handle
	byProvider map[string][]Handle

	next Handle
}

// NewTable returns an empty table.
func NewTable() *Table {
	return &Table{
		records:    map[Handle]*media.Record{},
		keys:       map[Handle]indexKeys{},
		byServerID: map[string]Handle{},
		byName:     map[string][]Handle{},
		byProvider: map[string][]Handle{},
	}
}

// Len returns the number of records.
func (t *Table) Len() int { return len(t.records) }

// Record returns the live record for h.
func (t *Table) Record(h Handle) (*media.Record, bool) {
	r, ok := t.records[h]
	return r, ok
}

// At returns the handle at position i.
func (t *Table) At(i int) (Handle, bool) {
	if i < 0 || i >= len(t.order) {
		return 0, false
	}
	return t.order[i], true
}

// Handles returns all handles in position order.
func (t *Table) Handles() []Handle {
	return append([]Handle(nil), t.order...)
}

// Insert adds r and returns its new handle.
func (t *Table) Insert(r *media.Record) Handle {
	t.next++
	h := t.next
	t.records[h] = r
	t.order = append(t.order, h)
	t.index(h)
	return h
}

// Remove deletes h from the arena and every index.
func (t *Table) Remove(h Handle) {
	if _, ok := t.records[h]; !ok {
		return
	}
	t.unindex(h)
	delete(t.records, h)
	for i, oh := range t.order {
		if oh == h {
			t.order = append(t.order[:i], t.order[i+1:]...)
			break
		}
	}
}

// Reindex refreshes the index entries of h after its record changed.
func (t *Table) Reindex(h Handle) {
	if _, ok := t.records[h]; !ok {
		return
	}
	t.unindex(h)
	t.index(h)
}

// FindByServerID looks up the record holding mediaID on serverKey.
func (t *Table) FindByServerID(serverKey, mediaID string) (Handle, bool) {
	h, ok := t.byServerID[serverIDKey(serverKey, mediaID)]
	return h, ok
}

// FindByProvider returns records carrying provider=id.
func (t *Table) FindByProvider(provider, id string) []Handle {
	return t.byProvider[media.ProviderIndexKey(provider, id)]
}

// FindByName returns records whose name key for kind equals key.
func (t *Table) FindByName(kind media.Kind, key string) []Handle {
	return t.byName[nameIndexKey(kind, key)]
}

// Clone deep-copies the table, preserving handles and order.
func (t *Table) Clone() *Table {
	c := NewTable()
	c.next = t.next
	c.order = append([]Handle(nil), t.order...)
	for h, r := range t.records {
		c.records[h] = r.Clone()
	}
	for h, k := range t.keys {
		c.keys[h] = indexKeys{
			serverIDs: append([]string(nil), k.serverIDs...),
			names:     append([]string(nil), k.names...),
			providers: append([]string(nil), k.providers...),
		}
	}
	for k, h := range t.byServerID {
		c.byServerID[k] = h
	}
	for k, hs := range t.byName {
		c.byName[k] = append([]Handle(nil), hs...)
	}
	for k, hs := range t.byProvider {
		c.byProvider[k] = append([]Handle(nil), hs...)
	}
	return c
}

func (t *Table) index(h Handle) {
	r := t.records[h]
	var k indexKeys

	for _, server := range r.ServerKeys() {
		if s := r.State(server); s.Valid() {
			key := serverIDKey(server, s.MediaID)
			t.byServerID[key] = h
			k.serverIDs = append(k.serverIDs, key)
		}
	}
	for _, key := range recordNameKeys(r) {
		t.byName[key] = append(t.byName[key], h)
		k.names = append(k.names, key)
	}
	for provider, id := range r.ProviderIDs {
		key := media.ProviderIndexKey(provider, id)
		t.byProvider[key] = append(t.byProvider[key], h)
		k.providers = append(k.providers, key)
	}
	t.keys[h] = k
}

func (t *Table) unindex(h Handle) {
	k := t.keys[h]
	for _, key := range k.serverIDs {
		if t.byServerID[key] == h {
			delete(t.byServerID, key)
		}
	}
	for _, key := range k.names {
		t.byName[key] = without(t.byName[key], h)
		if len(t.byName[key]) == 0 {
			delete(t.byName, key)
		}
	}
	for _, key := range k.providers {
		t.byProvider[key] = without(t.byProvider[key], h)
		if len(t.byProvider[key]) == 0 {
			delete(t.byProvider, key)
		}
	}
	delete(t.keys, h)
}

func without(hs []Handle, h Handle) []Handle {
	out := hs[:0]
	for _, x := range hs {
		if x != h {
			out = append(out, x)
		}
	}
	return out
}

func serverIDKey(serverKey, mediaID string) string {
	return serverKey + "\x00" + mediaID
}

func nameIndexKey(kind media.Kind, key string) string {
	return kind.String() + "|" + key
}

// episodeIndexKey indexes episodes by series and number, since episode
// titles often differ between servers.
func episodeIndexKey(series string, season, episode int) string {
	return "episode#" + media.NameKey(media.StripCountry(series)) + "|" + strconv.Itoa(season) + "|" + strconv.Itoa(episode)
}

func recordNameKeys(r *media.Record) []string {
	var out []string
	if key := media.NameKey(r.Name); key != "" {
		out = append(out, nameIndexKey(r.Kind, key))
	}
	if key := media.NameKey(r.OriginalTitle); key != "" && nameIndexKey(r.Kind, key) != firstOr(out) {
		out = append(out, nameIndexKey(r.Kind, key))
	}
	if r.Kind == media.KindEpisode && r.SeriesName != "" && r.Episode > 0 {
		out = append(out, episodeIndexKey(r.SeriesName, r.Season, r.Episode))
	}
	return out
}

func firstOr(s []string) string {
	if len(s) == 0 {
		return ""
	}
	return s[0]
}
