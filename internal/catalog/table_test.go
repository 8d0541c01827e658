// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/embysync/internal/media"
)

func newMovieRecord(server, id, name string) *media.Record {
	r := media.NewRecord()
	r.Name = name
	r.Type = "Movie"
	r.Kind = media.KindMovie
	r.AddOrReplaceServerState(server, media.NewServerUserState(server, id))
	return r
}

func TestTableIndexesFollowRenames(t *testing.T) {
	tbl := NewTable()
	r := newMovieRecord("a", "1", "Heat")
	h := tbl.Insert(r)

	assert.Equal(t, []Handle{h}, tbl.FindByName(media.KindMovie, "heat"))

	r.Name = "Ronin"
	r.ProviderIDs["imdb"] = "tt1"
	tbl.Reindex(h)

	assert.Empty(t, tbl.FindByName(media.KindMovie, "heat"))
	assert.Equal(t, []Handle{h}, tbl.FindByName(media.KindMovie, "ronin"))
	assert.Equal(t, []Handle{h}, tbl.FindByProvider("IMDB", "TT1"))
	got, ok := tbl.FindByServerID("a", "1")
	require.True(t, ok)
	assert.Equal(t, h, got)
}

func TestTableRemove(t *testing.T) {
	tbl := NewTable()
	h1 := tbl.Insert(newMovieRecord("a", "1", "Heat"))
	h2 := tbl.Insert(newMovieRecord("a", "2", "Heat"))

	tbl.Remove(h1)
	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, []Handle{h2}, tbl.FindByName(media.KindMovie, "heat"))
	_, ok := tbl.FindByServerID("a", "1")
	assert.False(t, ok)

	at, ok := tbl.At(0)
	require.True(t, ok)
	assert.Equal(t, h2, at)
	_, ok = tbl.At(1)
	assert.False(t, ok)

	h3 := tbl.Insert(newMovieRecord("a", "3", "Tron"))
	assert.Greater(t, uint64(h3), uint64(h2), "handles are never reused")
}

func TestTableCloneIsIndependent(t *testing.T) {
	tbl := NewTable()
	h := tbl.Insert(newMovieRecord("a", "1", "Heat"))

	c := tbl.Clone()
	r, _ := c.Record(h)
	r.Name = "Ronin"
	c.Reindex(h)
	c.Insert(newMovieRecord("b", "2", "Tron"))

	assert.Equal(t, 1, tbl.Len())
	assert.Equal(t, []Handle{h}, tbl.FindByName(media.KindMovie, "heat"))
	orig, _ := tbl.Record(h)
	assert.Equal(t, "Heat", orig.Name)
}

func TestFilter(t *testing.T) {
	same := newMovieRecord("a", "1", "Heat")
	same.AddOrReplaceServerState("b", media.NewServerUserState("b", "2"))

	diff := newMovieRecord("a", "3", "Ronin")
	diff.ProviderIDs["imdb"] = "tt2"
	other := media.NewServerUserState("b", "4")
	other.Played = true
	diff.AddOrReplaceServerState("b", other)

	lonely := newMovieRecord("a", "5", "Tron")
	lonely.ProviderIDs["imdb"] = "tt3"

	entries := []Entry{{Handle: 1, Record: same}, {Handle: 2, Record: diff}, {Handle: 3, Record: lonely}}

	got := Filter{OnlyDifferences: true}.Apply(entries)
	require.Len(t, got, 1)
	assert.Equal(t, Handle(2), got[0].Handle)

	got = Filter{ShowIssues: true, Servers: []string{"a", "b"}}.Apply(entries)
	require.Len(t, got, 1)
	assert.Equal(t, Handle(3), got[0].Handle)

	got = Filter{ShowIssues: true, MissingProvider: media.ProviderIMDB}.Apply(entries)
	require.Len(t, got, 1)
	assert.Equal(t, Handle(1), got[0].Handle)

	got = Filter{Search: "RONI"}.Apply(entries)
	require.Len(t, got, 1)
	assert.Equal(t, Handle(2), got[0].Handle)
}

func TestMultiEmitter(t *testing.T) {
	var a, b []Event
	m := MultiEmitter{EmitterFunc(func(e Event) { a = append(a, e) }), nil, EmitterFunc(func(e Event) { b = append(b, e) })}
	m.Emit(Event{Kind: ItemRemoved, Handle: 4})
	assert.Equal(t, a, b)
	assert.Equal(t, "item_removed", a[0].Kind.String())
}
