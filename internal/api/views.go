// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package api

import (
	"time"

	"github.com/tomtom215/embysync/internal/catalog"
	"github.com/tomtom215/embysync/internal/media"
)

// MediaView is the JSON form of a catalog record.
type MediaView struct {
	Handle      catalog.Handle       `json:"handle"`
	Name        string               `json:"name"`
	Type        string               `json:"type"`
	Year        int                  `json:"year,omitempty"`
	Status      string               `json:"status"`
	Divergent   string               `json:"divergent,omitempty"`
	ProviderIDs map[string]string    `json:"provider_ids,omitempty"`
	States      map[string]StateView `json:"states"`
}

// StateView is one server's user data for a record.
type StateView struct {
	MediaID    string     `json:"media_id,omitempty"`
	Present    bool       `json:"present"`
	Favorite   bool       `json:"favorite"`
	Played     bool       `json:"played"`
	PlayCount  uint64     `json:"play_count"`
	LastPlayed *time.Time `json:"last_played,omitempty"`
	Position   string     `json:"position,omitempty"`
}

// viewOf renders r. Servers absent from the record appear with
// Present=false so clients see every column.
func viewOf(h catalog.Handle, r *media.Record, servers []string) MediaView {
	v := MediaView{
		Handle:      h,
		Name:        r.Name,
		Type:        r.Type,
		Year:        r.Year(),
		Status:      r.SyncStatus().String(),
		Divergent:   r.DivergentFields().String(),
		ProviderIDs: r.ProviderIDs,
		States:      make(map[string]StateView, len(servers)),
	}
	for _, s := range servers {
		st := r.State(s)
		if !st.Valid() {
			v.States[s] = StateView{}
			continue
		}
		sv := StateView{
			MediaID:    st.MediaID,
			Present:    true,
			Favorite:   st.IsFavorite,
			Played:     st.Played,
			PlayCount:  st.PlayCount,
			LastPlayed: st.LastPlayed,
		}
		if st.PositionTicks > 0 {
			sv.Position = st.PositionString(media.FormatClock)
		}
		v.States[s] = sv
	}
	return v
}
