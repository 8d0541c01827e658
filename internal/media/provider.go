// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package media

import (
	"fmt"
	"strings"
)

// ProviderKind is a bitmask of external metadata providers.
type ProviderKind uint8

const ProviderNone ProviderKind = 0

const (
	ProviderIMDB ProviderKind = 1 << iota
	ProviderTVDB
	ProviderTMDB
	ProviderTVRage
)

var providerNames = []struct {
	kind ProviderKind
	name string
}{
	{ProviderIMDB, "imdb"},
	{ProviderTVDB, "tvdb"},
	{ProviderTMDB, "tmdb"},
	{ProviderTVRage, "tvrage"},
}

// Key returns the lower-cased ProviderIds key for a single kind.
func (k ProviderKind) Key() string {
	for _, p := range providerNames {
		if p.kind == k {
			return p.name
		}
	}
	return ""
}

func (k ProviderKind) String() string {
	if k == ProviderNone {
		return "none"
	}
	var parts []string
	for _, p := range providerNames {
		if k&p.kind != 0 {
			parts = append(parts, p.name)
		}
	}
	return strings.Join(parts, "|")
}

// ParseProviderKinds converts names such as "imdb" or "TMDB" to a mask.
func ParseProviderKinds(names []string) (ProviderKind, error) {
	var mask ProviderKind
outer:
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		for _, p := range providerNames {
			if p.name == n {
				mask |= p.kind
				continue outer
			}
		}
		return ProviderNone, fmt.Errorf("unknown provider %q", n)
	}
	return mask, nil
}

// NormalizeProviderIDs lower-cases provider names and drops empty ids, so
// "Imdb" and "imdb" count as the same provider.
func NormalizeProviderIDs(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(k))] = v
	}
	return out
}

// ProviderIndexKey is the catalog index key for one provider id.
func ProviderIndexKey(provider, id string) string {
	return strings.ToLower(provider) + "=" + strings.ToLower(strings.TrimSpace(id))
}
