// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package media

import (
	"regexp"
	"sort"
	"strings"
)

// SimilarityThreshold is the minimum Levenshtein ratio for IsSimilar.
const SimilarityThreshold = 0.85

var countrySuffix = regexp.MustCompile(`\s*\(([A-Za-z]{2,3})\)\s*$`)

// splitCountry separates a trailing "(US)"-style marker from a title.
func splitCountry(s string) (base, country string) {
	m := countrySuffix.FindStringSubmatchIndex(s)
	if m == nil {
		return s, ""
	}
	return s[:m[0]], strings.ToLower(s[m[2]:m[3]])
}

// IsSimilar reports whether two titles are close enough to be the same
// item. It is symmetric. A country marker present on only one side is
// ignored; differing markers on both sides never match.
func IsSimilar(a, b string) bool {
	baseA, ca := splitCountry(a)
	baseB, cb := splitCountry(b)
	if ca != "" && cb != "" && ca != cb {
		return false
	}
	ka, kb := NameKey(baseA), NameKey(baseB)
	if ka == "" || kb == "" {
		return false
	}
	if ka == kb || tokenSetKey(ka) == tokenSetKey(kb) {
		return true
	}
	return Similarity(ka, kb) >= SimilarityThreshold
}

// Similarity is 1 - levenshtein/maxLen over the runes of two keys.
func Similarity(s1, s2 string) float64 {
	if s1 == s2 {
		return 1.0
	}
	r1, r2 := []rune(s1), []rune(s2)
	maxLen := max(len(r1), len(r2))
	if len(r1) == 0 || len(r2) == 0 {
		return 0.0
	}
	return 1.0 - float64(levenshteinDistance(r1, r2))/float64(maxLen)
}

func tokenSetKey(key string) string {
	fields := strings.Fields(key)
	sort.Strings(fields)
	out := fields[:0]
	for i, f := range fields {
		if i == 0 || f != fields[i-1] {
			out = append(out, f)
		}
	}
	return strings.Join(out, " ")
}

// levenshteinDistance uses a two-row table.
func levenshteinDistance(r1, r2 []rune) int {
	prev := make([]int, len(r2)+1)
	curr := make([]int, len(r2)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(r1); i++ {
		curr[0] = i
		for j := 1; j <= len(r2); j++ {
			cost := 1
			if r1[i-1] == r2[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(r2)]
}

// StripCountry removes a trailing "(US)"-style marker.
func StripCountry(s string) string {
	base, _ := splitCountry(s)
	return strings.TrimSpace(base)
}
