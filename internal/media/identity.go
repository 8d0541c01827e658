// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

// Package media models a logical media item as seen by several servers:
// identity keys and matching, the per-server user state, and the
// canonical record that aggregates them.
package media

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"github.com/mozillazg/go-unidecode"
	"golang.org/x/text/cases"
	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"github.com/tomtom215/embysync/internal/models"
)

// Kind is the coarse media type. Records of different kinds never merge.
type Kind int

const (
	KindOther Kind = iota
	KindMovie
	KindEpisode
)

func (k Kind) String() string {
	switch k {
	case KindMovie:
		return "movie"
	case KindEpisode:
		return "episode"
	default:
		return "other"
	}
}

// KindOf maps an Emby item Type to its coarse kind.
func KindOf(itemType string) Kind {
	switch strings.ToLower(itemType) {
	case "movie":
		return KindMovie
	case "episode":
		return KindEpisode
	default:
		return KindOther
	}
}

// Identity is the matching-relevant view of an item or record.
type Identity struct {
	Kind          Kind
	Name          string
	OriginalTitle string
	SeriesName    string
	Season        int
	Episode       int
	Year          int
}

// ItemIdentity computes the identity of a server payload.
func ItemIdentity(item *models.Item) Identity {
	id := Identity{
		Kind:          KindOf(item.Type),
		Name:          DisplayName(item),
		OriginalTitle: item.OriginalTitle,
		SeriesName:    item.SeriesName,
		Season:        SeasonNumber(item),
		Episode:       positive(item.IndexNumber),
		Year:          item.ProductionYear,
	}
	if item.PremiereDate != nil && !item.PremiereDate.IsZero() {
		id.Year = item.PremiereDate.Year()
	}
	return id
}

// DisplayName composes the name shown for an item. Episodic items become
// "<series> - S<season>E<episode> - <episode title> - <name>", dropping
// whatever parts are unknown.
func DisplayName(item *models.Item) string {
	if item.SeriesName == "" {
		return item.Name
	}

	var b strings.Builder
	b.WriteString(item.SeriesName)

	season := SeasonNumber(item)
	episode := positive(item.IndexNumber)
	if season > 0 || episode > 0 {
		b.WriteString(" - ")
		if season > 0 {
			fmt.Fprintf(&b, "S%02d", season)
		}
		if episode > 0 {
			fmt.Fprintf(&b, "E%02d", episode)
		}
	}
	if item.EpisodeTitle != "" {
		b.WriteString(" - ")
		b.WriteString(item.EpisodeTitle)
	}
	if item.Name != "" && item.Name != item.EpisodeTitle {
		b.WriteString(" - ")
		b.WriteString(item.Name)
	}
	return b.String()
}

// SeasonNumber parses the trailing token of SeasonName ("Season 2"),
// falling back to ParentIndexNumber. Zero means unknown.
func SeasonNumber(item *models.Item) int {
	if n := trailingNumber(item.SeasonName); n > 0 {
		return n
	}
	return positive(item.ParentIndexNumber)
}

func trailingNumber(s string) int {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}
	if idx := strings.LastIndexByte(s, ' '); idx >= 0 {
		s = s[idx+1:]
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return positive(n)
}

func positive(n int) int {
	if n < 0 {
		return 0
	}
	return n
}

var articles = map[string]bool{"the": true, "a": true, "an": true}

// NameKey normalizes a title for exact comparison: accents removed,
// transliterated to ASCII, case folded, punctuation dropped, whitespace
// collapsed and a leading article removed.
func NameKey(s string) string {
	if s == "" {
		return ""
	}

	stripped, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = stripped
	}
	s = unidecode.Unidecode(s)
	s = cases.Fold().String(s)
	s = strings.ReplaceAll(s, "&", " and ")

	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case r == '\'':
			// "Ocean's" and "Oceans" fold together
		default:
			b.WriteByte(' ')
		}
	}

	fields := strings.Fields(b.String())
	if len(fields) > 1 && articles[fields[0]] {
		fields = fields[1:]
	}
	return strings.Join(fields, " ")
}
