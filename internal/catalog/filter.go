// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package catalog

import (
	"strings"

	"github.com/tomtom215/embysync/internal/media"
)

// Filter selects entries for presentation.
type Filter struct {
	// OnlyDifferences keeps records whose valid states diverge.
	OnlyDifferences bool
	// ShowIssues keeps only records missing on some server, flagged as
	// missing, or lacking a MissingProvider id.
	ShowIssues bool
	// MissingProvider is the provider mask checked by ShowIssues.
	MissingProvider media.ProviderKind
	// Servers are the enabled server keys; a record absent from one of
	// them counts as an issue.
	Servers []string
	// Search matches a case-insensitive substring of the name.
	Search string
}

// Apply returns the entries matching f, preserving order.
func (f Filter) Apply(entries []Entry) []Entry {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		r := e.Record
		if f.OnlyDifferences && r.SyncStatus() != media.NeedsUpdating {
			continue
		}
		if f.ShowIssues && !f.hasIssue(r) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(r.Name), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

func (f Filter) hasIssue(r *media.Record) bool {
	if r.IsMissing {
		return true
	}
	if f.MissingProvider != media.ProviderNone && r.IsMissingProvider(f.MissingProvider) {
		return true
	}
	for _, s := range f.Servers {
		if !r.State(s).Valid() {
			return true
		}
	}
	return false
}
