// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package media

import (
	"sort"
	"strings"
	"time"

	"github.com/tomtom215/embysync/internal/models"
)

// SyncStatus is derived from the valid server states of a record.
type SyncStatus int

const (
	// NoServerPairs means fewer than two servers hold the item.
	NoServerPairs SyncStatus = iota
	// EqualOnValidServers means every valid state agrees.
	EqualOnValidServers
	// NeedsUpdating means at least one valid state diverges.
	NeedsUpdating
)

func (s SyncStatus) String() string {
	switch s {
	case EqualOnValidServers:
		return "equal"
	case NeedsUpdating:
		return "needs_updating"
	default:
		return "no_server_pairs"
	}
}

// Field names one user-data field.
type Field uint8

const (
	FieldFavorite Field = 1 << iota
	FieldPlayed
	FieldPlayCount
	FieldLastPlayed
	FieldPosition
)

// Fields is a set of Field values.
type Fields = Field

// Has reports whether f contains field.
func (f Field) Has(field Field) bool { return f&field != 0 }

func (f Field) String() string {
	names := []struct {
		f Field
		n string
	}{
		{FieldFavorite, "favorite"},
		{FieldPlayed, "played"},
		{FieldPlayCount, "play_count"},
		{FieldLastPlayed, "last_played"},
		{FieldPosition, "position"},
	}
	var parts []string
	for _, n := range names {
		if f.Has(n.f) {
			parts = append(parts, n.n)
		}
	}
	return strings.Join(parts, ",")
}

// Resolution is the video size of the item.
type Resolution struct {
	Width  int
	Height int
}

// Record is the canonical item aggregating one state per server.
type Record struct {
	Name           string
	OriginalTitle  string
	Type           string
	Kind           Kind
	SeriesName     string
	Season         int
	Episode        int
	PremiereDate   time.Time
	ProductionYear int
	Resolution     Resolution
	ProviderIDs    map[string]string
	ExternalURLs   map[string]string
	IsMissing      bool

	states map[string]*ServerUserState
	order  []string
}

// NewRecord returns an empty record.
func NewRecord() *Record {
	return &Record{
		ProviderIDs:  map[string]string{},
		ExternalURLs: map[string]string{},
		states:       map[string]*ServerUserState{},
	}
}

// FromItem builds a record holding serverKey's view of item.
func FromItem(serverKey string, item *models.Item) *Record {
	r := NewRecord()
	r.fill(item, true)
	state := NewServerUserState(serverKey, item.ID)
	state.LoadFrom(item.UserData)
	r.AddOrReplaceServerState(serverKey, state)
	return r
}

// ApplyItem refreshes metadata from a payload. With overwrite false only
// blank fields are filled.
func (r *Record) ApplyItem(item *models.Item, overwrite bool) {
	r.fill(item, overwrite)
}

func (r *Record) fill(item *models.Item, overwrite bool) {
	setStr := func(dst *string, v string) {
		if v != "" && (overwrite || *dst == "") {
			*dst = v
		}
	}
	setInt := func(dst *int, v int) {
		if v > 0 && (overwrite || *dst == 0) {
			*dst = v
		}
	}

	setStr(&r.Name, DisplayName(item))
	setStr(&r.OriginalTitle, item.OriginalTitle)
	if item.Type != "" && (overwrite || r.Type == "") {
		r.Type = item.Type
		r.Kind = KindOf(item.Type)
	}
	setStr(&r.SeriesName, item.SeriesName)
	setInt(&r.Season, SeasonNumber(item))
	setInt(&r.Episode, item.IndexNumber)
	setInt(&r.ProductionYear, item.ProductionYear)
	if item.PremiereDate != nil && !item.PremiereDate.IsZero() && (overwrite || r.PremiereDate.IsZero()) {
		r.PremiereDate = item.PremiereDate.Time
	}
	if w, h := item.Resolution(); w > 0 && (overwrite || r.Resolution.Width == 0) {
		r.Resolution = Resolution{Width: w, Height: h}
	}
	for k, v := range NormalizeProviderIDs(item.ProviderIDs) {
		if _, ok := r.ProviderIDs[k]; overwrite || !ok {
			r.ProviderIDs[k] = v
		}
	}
	for _, u := range item.ExternalURLs {
		if u.Name != "" && u.URL != "" {
			r.ExternalURLs[u.Name] = u.URL
		}
	}
	if overwrite {
		r.IsMissing = item.Missing()
	}
}

// Identity returns the matching view of the record.
func (r *Record) Identity() Identity {
	return Identity{
		Kind:          r.Kind,
		Name:          r.Name,
		OriginalTitle: r.OriginalTitle,
		SeriesName:    r.SeriesName,
		Season:        r.Season,
		Episode:       r.Episode,
		Year:          r.Year(),
	}
}

// Year is the premiere year, falling back to the production year.
func (r *Record) Year() int {
	if !r.PremiereDate.IsZero() {
		return r.PremiereDate.Year()
	}
	return r.ProductionYear
}

// AddOrReplaceServerState stores state under serverKey, keeping the
// position of an existing key in the server order.
func (r *Record) AddOrReplaceServerState(serverKey string, state *ServerUserState) {
	if r.states == nil {
		r.states = map[string]*ServerUserState{}
	}
	state.ServerKey = serverKey
	if _, ok := r.states[serverKey]; !ok {
		r.order = append(r.order, serverKey)
	}
	r.states[serverKey] = state
}

// RemoveServerState drops serverKey's state.
func (r *Record) RemoveServerState(serverKey string) {
	if _, ok := r.states[serverKey]; !ok {
		return
	}
	delete(r.states, serverKey)
	for i, k := range r.order {
		if k == serverKey {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// State returns serverKey's state, or nil.
func (r *Record) State(serverKey string) *ServerUserState {
	return r.states[serverKey]
}

// ServerKeys lists servers holding a state, in first-seen order.
func (r *Record) ServerKeys() []string {
	return append([]string(nil), r.order...)
}

// Len is the number of server states, valid or not.
func (r *Record) Len() int {
	return len(r.states)
}

// ValidStates returns the valid states in server order.
func (r *Record) ValidStates() []*ServerUserState {
	out := make([]*ServerUserState, 0, len(r.order))
	for _, k := range r.order {
		if s := r.states[k]; s.Valid() {
			out = append(out, s)
		}
	}
	return out
}

// CanBeSynced reports whether at least two servers hold the item.
func (r *Record) CanBeSynced() bool {
	n := 0
	for _, s := range r.states {
		if s.Valid() {
			n++
		}
	}
	return n >= 2
}

// ValidUserDataEqual reports whether every pair of valid states is equal.
func (r *Record) ValidUserDataEqual() bool {
	valid := r.ValidStates()
	for i := 0; i < len(valid); i++ {
		for j := i + 1; j < len(valid); j++ {
			if !valid[i].Equals(valid[j]) {
				return false
			}
		}
	}
	return true
}

// NewestState returns the valid state with the strictly greatest
// LastPlayed. A set timestamp beats an unset one; on ties the state seen
// first in server order wins. Returns nil when no state is valid.
func (r *Record) NewestState() *ServerUserState {
	var newest *ServerUserState
	for _, s := range r.ValidStates() {
		if newest == nil || laterThan(s.LastPlayed, newest.LastPlayed) {
			newest = s
		}
	}
	return newest
}

func laterThan(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}

// NeedsUpdating reports whether serverKey's valid state is stale relative
// to NewestState.
func (r *Record) NeedsUpdating(serverKey string) bool {
	s := r.states[serverKey]
	if !s.Valid() || !r.CanBeSynced() {
		return false
	}
	newest := r.NewestState()
	return s != newest && !s.Equals(newest)
}

// SyncStatus classifies the record.
func (r *Record) SyncStatus() SyncStatus {
	switch {
	case !r.CanBeSynced():
		return NoServerPairs
	case r.ValidUserDataEqual():
		return EqualOnValidServers
	default:
		return NeedsUpdating
	}
}

// DivergentFields lists the user fields that disagree among valid states.
func (r *Record) DivergentFields() Fields {
	valid := r.ValidStates()
	if len(valid) < 2 {
		return 0
	}
	var f Fields
	first := valid[0]
	for _, s := range valid[1:] {
		if s.IsFavorite != first.IsFavorite {
			f |= FieldFavorite
		}
		if s.Played != first.Played {
			f |= FieldPlayed
		}
		if s.PlayCount != first.PlayCount {
			f |= FieldPlayCount
		}
		if !timesEqual(s.LastPlayed, first.LastPlayed) {
			f |= FieldLastPlayed
		}
		if s.PositionTicks != first.PositionTicks {
			f |= FieldPosition
		}
	}
	return f
}

// ProviderID returns the id for one provider kind, or "".
func (r *Record) ProviderID(kind ProviderKind) string {
	return r.ProviderIDs[kind.Key()]
}

// IsMissingProvider reports whether any provider in kind has no id.
// ProviderNone always reports true.
func (r *Record) IsMissingProvider(kind ProviderKind) bool {
	if kind == ProviderNone {
		return true
	}
	for _, p := range providerNames {
		if kind&p.kind != 0 && r.ProviderIDs[p.name] == "" {
			return true
		}
	}
	return false
}

// ProviderQuery builds the AnyProviderIdEquals filter ("imdb.tt1,tmdb.2")
// used to look the item up on another server.
func (r *Record) ProviderQuery() string {
	keys := make([]string, 0, len(r.ProviderIDs))
	for k := range r.ProviderIDs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+"."+r.ProviderIDs[k])
	}
	return strings.Join(parts, ",")
}

// Clone returns a deep copy that shares nothing with r.
func (r *Record) Clone() *Record {
	c := *r
	c.ProviderIDs = make(map[string]string, len(r.ProviderIDs))
	for k, v := range r.ProviderIDs {
		c.ProviderIDs[k] = v
	}
	c.ExternalURLs = make(map[string]string, len(r.ExternalURLs))
	for k, v := range r.ExternalURLs {
		c.ExternalURLs[k] = v
	}
	c.states = make(map[string]*ServerUserState, len(r.states))
	for k, s := range r.states {
		c.states[k] = s.Clone()
	}
	c.order = append([]string(nil), r.order...)
	return &c
}
