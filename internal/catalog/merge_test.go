// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package catalog

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/embysync/internal/media"
	"github.com/tomtom215/embysync/internal/models"
)

type recordingEmitter struct {
	events []Event
}

func (r *recordingEmitter) Emit(e Event) { r.events = append(r.events, e) }

// cancelAfter cancels once SetValue has been called n times.
type cancelAfter struct {
	NopProgress
	n, seen int
}

func (c *cancelAfter) SetValue(int)      { c.seen++ }
func (c *cancelAfter) WasCanceled() bool { return c.seen >= c.n }

func movie(id, name string, year int, providers map[string]string) *models.Item {
	return &models.Item{
		ID:           id,
		Name:         name,
		Type:         "Movie",
		PremiereDate: &models.Time{Time: time.Date(year, 3, 1, 0, 0, 0, 0, time.UTC)},
		ProviderIDs:  providers,
		UserData:     &models.UserData{},
	}
}

func episode(id, series string, season, ep int, title string) *models.Item {
	return &models.Item{
		ID:          id,
		Type:        "Episode",
		SeriesName:  series,
		SeasonName:  "Season " + string(rune('0'+season)),
		IndexNumber: ep,
		Name:        title,
		UserData:    &models.UserData{},
	}
}

func mergeAll(t *testing.T, e *Engine, batches map[string][]*models.Item, order ...string) {
	t.Helper()
	for _, server := range order {
		e.Stage(server, batches[server])
	}
	require.True(t, e.Merge(context.Background(), nil))
}

func TestMergeProviderCasing(t *testing.T) {
	e := NewEngine(nil)
	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "Heat", 1995, map[string]string{"Imdb": "tt1"})},
		"b": {movie("9", "Heat", 1995, map[string]string{"imdb": "TT1"})},
	}, "a", "b")

	snap := e.Snapshot()
	require.Len(t, snap, 1)
	r := snap[0].Record
	assert.Len(t, r.ValidStates(), 2)
	assert.True(t, r.CanBeSynced())
}

func TestMergeFallsBackToNameAndYear(t *testing.T) {
	e := NewEngine(nil)
	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "The Lord of the Rings", 2001, nil)},
		"b": {movie("2", "Lord of the Rings", 2002, nil), movie("3", "Lord of the Rings", 2010, nil)},
	}, "a", "b")

	require.Equal(t, 2, e.Len(), "the 2010 remake is outside the year window")
	h, ok := e.Lookup("b", "2")
	require.True(t, ok)
	h2, _ := e.Lookup("a", "1")
	assert.Equal(t, h, h2)
}

func TestMergeYearlessItemStaysSeparate(t *testing.T) {
	e := NewEngine(nil)
	yearless := &models.Item{ID: "1", Name: "Halloween", Type: "Movie", UserData: &models.UserData{}}
	mergeAll(t, e, map[string][]*models.Item{
		"a": {yearless},
		"b": {movie("7", "Halloween", 1978, nil), movie("8", "Halloween", 2018, nil)},
	}, "a", "b")

	require.Equal(t, 3, e.Len())
	h, ok := e.Lookup("a", "1")
	require.True(t, ok)
	r, _ := e.Get(h)
	assert.Equal(t, []string{"a"}, r.ServerKeys())
	assert.Zero(t, r.Year())
}

func TestMergeFuzzyScan(t *testing.T) {
	e := NewEngine(nil)
	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "Lord of the Rings", 2001, nil)},
		"b": {movie("2", "Lord of the Ring", 2001, nil)},
	}, "a", "b")
	assert.Equal(t, 1, e.Len())
}

func TestMergeNeverCrossesKinds(t *testing.T) {
	e := NewEngine(nil)
	show := &models.Item{ID: "2", Name: "Heat", Type: "Episode", ProviderIDs: map[string]string{"imdb": "tt1"}}
	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "Heat", 1995, map[string]string{"imdb": "tt1"})},
		"b": {show},
	}, "a", "b")
	assert.Equal(t, 2, e.Len())
}

func TestMergeEpisodesBySeriesAndNumber(t *testing.T) {
	e := NewEngine(nil)
	mergeAll(t, e, map[string][]*models.Item{
		"a": {episode("1", "The Office (US)", 2, 5, "Halloween"), episode("2", "The Office (US)", 2, 6, "The Fight")},
		"b": {episode("7", "The Office", 2, 5, "Halloween Special"), episode("8", "The Office", 2, 6, "Fight")},
	}, "a", "b")

	require.Equal(t, 2, e.Len())
	for _, entry := range e.Snapshot() {
		assert.True(t, entry.Record.CanBeSynced(), "%s should be on both servers", entry.Record.Name)
	}
}

func TestMergeProviderConflictBlocksNameMatch(t *testing.T) {
	e := NewEngine(nil)
	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "Dune", 2021, map[string]string{"imdb": "tt1160419"})},
		"b": {movie("2", "Dune", 2021, map[string]string{"imdb": "tt0087182"})},
	}, "a", "b")
	assert.Equal(t, 2, e.Len())
}

func TestMergeSameServerDuplicatesStaySeparate(t *testing.T) {
	e := NewEngine(nil)
	mergeAll(t, e, map[string][]*models.Item{
		"a": {
			movie("1", "Alien", 1979, map[string]string{"imdb": "tt0078748"}),
			movie("2", "Alien", 1979, map[string]string{"imdb": "tt0078748"}),
		},
		"b": {movie("3", "Alien", 1979, map[string]string{"imdb": "tt0078748"})},
	}, "a", "b")

	require.Equal(t, 2, e.Len(), "two editions on one server are two records")
	h1, _ := e.Lookup("a", "1")
	h3, _ := e.Lookup("b", "3")
	assert.Equal(t, h1, h3, "the other server folds into the first edition")
}

func TestMergeBlankNamesGetRecords(t *testing.T) {
	e := NewEngine(nil)
	blank := func(id string) *models.Item { return &models.Item{ID: id, Type: "Video"} }
	mergeAll(t, e, map[string][]*models.Item{
		"a": {blank("1")},
		"b": {blank("2")},
	}, "a", "b")
	assert.Equal(t, 2, e.Len(), "blank names never match each other")
}

func TestMergeCancellationKeepsPreMergeTable(t *testing.T) {
	em := &recordingEmitter{}
	e := NewEngine(em)
	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "Heat", 1995, nil)},
	}, "a")
	before := e.Snapshot()
	em.events = nil

	e.Stage("a", []*models.Item{movie("1", "Heat", 1995, nil), movie("2", "Ronin", 1998, nil), movie("3", "Tron", 1982, nil)})
	e.Stage("b", []*models.Item{movie("4", "Heat", 1995, nil)})
	ok := e.Merge(context.Background(), &cancelAfter{n: 2})

	assert.False(t, ok)
	assert.Equal(t, before, e.Snapshot())
	assert.Zero(t, e.Staged(), "staged batches are consumed")
	assert.Empty(t, em.events, "a cancelled merge emits nothing")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.Stage("b", []*models.Item{movie("4", "Heat", 1995, nil)})
	assert.False(t, e.Merge(ctx, nil))
	assert.Equal(t, 1, e.Len())
}

func TestMergePrunesItemsNoLongerListed(t *testing.T) {
	em := &recordingEmitter{}
	e := NewEngine(em)
	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "Heat", 1995, nil), movie("2", "Ronin", 1998, nil)},
		"b": {movie("3", "Heat", 1995, nil)},
	}, "a", "b")
	require.Equal(t, 2, e.Len())

	// Only server a relists, without Heat.
	mergeAll(t, e, map[string][]*models.Item{"a": {movie("2", "Ronin", 1998, nil)}}, "a")

	h, ok := e.Lookup("b", "3")
	require.True(t, ok, "server b did not participate, its state stays")
	r, _ := e.Get(h)
	assert.Nil(t, r.State("a"))
	_, ok = e.Lookup("a", "1")
	assert.False(t, ok)

	assert.Equal(t, BatchReset, em.events[len(em.events)-1].Kind)
}

func TestMergeHandlesAreStable(t *testing.T) {
	e := NewEngine(nil)
	mergeAll(t, e, map[string][]*models.Item{"a": {movie("1", "Heat", 1995, nil)}}, "a")
	h, _ := e.Lookup("a", "1")

	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "Heat", 1995, nil)},
		"b": {movie("2", "Heat", 1995, nil)},
	}, "a", "b")
	h2, _ := e.Lookup("b", "2")
	assert.Equal(t, h, h2)
}

func TestMergeUpdatesUserDataOnRelist(t *testing.T) {
	e := NewEngine(nil)
	item := movie("1", "Heat", 1995, nil)
	mergeAll(t, e, map[string][]*models.Item{"a": {item}}, "a")

	relisted := movie("1", "Heat", 1995, nil)
	relisted.UserData = &models.UserData{Played: true, PlayCount: 2}
	mergeAll(t, e, map[string][]*models.Item{"a": {relisted}}, "a")

	h, _ := e.Lookup("a", "1")
	r, _ := e.Get(h)
	assert.True(t, r.State("a").Played)
	assert.Equal(t, uint64(2), r.State("a").PlayCount)
}

func TestReloadAndApplyUserData(t *testing.T) {
	em := &recordingEmitter{}
	e := NewEngine(em)
	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "Heat", 1995, nil)},
		"b": {movie("2", "Heat", 1995, nil)},
	}, "a", "b")
	em.events = nil

	h, ok := e.ApplyUserData("b", "2", &models.UserData{IsFavorite: true})
	require.True(t, ok)
	r, _ := e.Get(h)
	assert.True(t, r.State("b").IsFavorite)
	assert.Equal(t, media.NeedsUpdating, r.SyncStatus())

	renamed := movie("1", "Heat (Director's Cut)", 1995, nil)
	renamed.UserData = &models.UserData{IsFavorite: true}
	h2 := e.ReloadItem("a", renamed)
	assert.Equal(t, h, h2)
	r, _ = e.Get(h)
	assert.Equal(t, "Heat (Director's Cut)", r.Name)
	assert.Equal(t, media.EqualOnValidServers, r.SyncStatus())

	_, ok = e.ApplyUserData("c", "404", &models.UserData{})
	assert.False(t, ok)

	e.RemoveServerItem("a", "1")
	e.RemoveServerItem("b", "2")
	assert.Zero(t, e.Len())

	kinds := make([]EventKind, 0, len(em.events))
	for _, ev := range em.events {
		kinds = append(kinds, ev.Kind)
	}
	assert.Equal(t, []EventKind{ItemUpserted, ItemUpserted, ItemUpserted, ItemRemoved}, kinds)
}

func TestReset(t *testing.T) {
	em := &recordingEmitter{}
	e := NewEngine(em)
	mergeAll(t, e, map[string][]*models.Item{"a": {movie("1", "Heat", 1995, nil)}}, "a")
	e.Stage("a", nil)

	e.Reset()
	assert.Zero(t, e.Len())
	assert.Zero(t, e.Staged())
	assert.Equal(t, BatchReset, em.events[len(em.events)-1].Kind)
}

func TestStats(t *testing.T) {
	e := NewEngine(nil)
	played := movie("2", "Heat", 1995, nil)
	played.UserData.Played = true
	mergeAll(t, e, map[string][]*models.Item{
		"a": {movie("1", "Heat", 1995, nil), movie("3", "Ronin", 1998, nil)},
		"b": {played},
	}, "a", "b")

	assert.Equal(t, Stats{Records: 2, Syncable: 1, NeedsUpdating: 1}, e.Stats())
}
