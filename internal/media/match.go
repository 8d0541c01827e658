// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package media

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// YearWindow is how far apart two premiere years may be and still match.
const YearWindow = 3

// YearWithin reports whether two years are within YearWindow. An unknown
// year is 0 and only matches another unknown year.
func YearWithin(a, b int) bool {
	d := a - b
	if d < 0 {
		d = -d
	}
	return d <= YearWindow
}

// Matches reports whether name/year identify record: the year gate must
// pass, then the name must equal or resemble the display name or the
// original title. Blank names never match.
func Matches(r *Record, name string, year int) bool {
	if !YearWithin(r.Year(), year) {
		return false
	}
	key := NameKey(name)
	if key == "" {
		return false
	}
	if key == NameKey(r.Name) || (r.OriginalTitle != "" && key == NameKey(r.OriginalTitle)) {
		return true
	}
	return IsSimilar(name, r.Name) || (r.OriginalTitle != "" && IsSimilar(name, r.OriginalTitle))
}

// MatchesIdentity applies Matches with the kind guard and, for episodes,
// the series/season/episode requirement.
func MatchesIdentity(r *Record, id Identity) bool {
	if r.Kind != id.Kind {
		return false
	}
	if id.Kind == KindEpisode && id.SeriesName != "" && r.SeriesName != "" {
		if id.Episode == 0 || id.Season != r.Season || id.Episode != r.Episode {
			return false
		}
		if !YearWithin(r.Year(), id.Year) {
			return false
		}
		return NameKey(id.SeriesName) == NameKey(r.SeriesName) || IsSimilar(id.SeriesName, r.SeriesName)
	}
	if Matches(r, id.Name, id.Year) {
		return true
	}
	return id.OriginalTitle != "" && Matches(r, id.OriginalTitle, id.Year)
}

// SearchKey is the text used to look the record up on a search engine:
// the IMDb id when known, else the quoted name plus the year for movies or
// the series name plus SxxEyy for episodes.
func SearchKey(r *Record) string {
	if id := r.ProviderID(ProviderIMDB); id != "" {
		return id
	}
	if r.Kind == KindEpisode && r.SeriesName != "" {
		series := strings.TrimSpace(strings.ReplaceAll(r.SeriesName, "(US)", ""))
		return fmt.Sprintf(`"%s" S%02dE%02d`, series, r.Season, r.Episode)
	}
	key := `"` + r.Name + `"`
	if r.Kind == KindMovie {
		if y := r.Year(); y > 0 {
			key += " " + strconv.Itoa(y)
		}
	}
	return key
}

// SearchURL substitutes the escaped search key into a template
// containing {query}.
func SearchURL(template string, r *Record) string {
	return strings.ReplaceAll(template, "{query}", url.QueryEscape(SearchKey(r)))
}
