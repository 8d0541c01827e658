// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package collections

import (
	"github.com/tomtom215/embysync/internal/catalog"
	"github.com/tomtom215/embysync/internal/media"
)

// Resolved pairs a movie with the record it matched. Handle is zero and
// Found false when nothing matched.
type Resolved struct {
	Movie  Movie          `json:"movie"`
	Handle catalog.Handle `json:"handle,omitempty"`
	Found  bool           `json:"found"`
}

// MatchResult is the outcome of matching one collection.
type MatchResult struct {
	Name    string     `json:"name"`
	Movies  []Resolved `json:"movies"`
	Missing []Movie    `json:"missing,omitempty"`
}

// Found returns how many movies matched a record.
func (r *MatchResult) Found() int { return len(r.Movies) - len(r.Missing) }

// Match resolves every movie of c against entries. Only movie records are
// considered and the first match in entries order wins.
func (c Collection) Match(entries []catalog.Entry) MatchResult {
	res := MatchResult{Name: c.Name, Movies: make([]Resolved, 0, len(c.Movies))}
	for _, m := range c.Movies {
		rv := Resolved{Movie: m}
		for _, e := range entries {
			if e.Record.Kind != media.KindMovie {
				continue
			}
			if media.Matches(e.Record, m.Name, m.Year) {
				rv.Handle, rv.Found = e.Handle, true
				break
			}
		}
		if !rv.Found {
			res.Missing = append(res.Missing, m)
		}
		res.Movies = append(res.Movies, rv)
	}
	return res
}

// Match resolves every collection of d.
func (d *Document) Match(entries []catalog.Entry) []MatchResult {
	out := make([]MatchResult, 0, len(d.Collections))
	for _, c := range d.Collections {
		out = append(out, c.Match(entries))
	}
	return out
}
