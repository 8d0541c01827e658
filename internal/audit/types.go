// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package audit

import (
	"context"
	"time"

	"github.com/tomtom215/embysync/internal/media"
)

// Kind is the kind of push.
type Kind string

const (
	KindFavorite Kind = "favorite"
	KindData     Kind = "data"
)

// Outcome is how the server answered.
type Outcome string

const (
	OutcomeSuccess Outcome = "success"
	OutcomeFailure Outcome = "failure"
)

// State is the journaled form of a server's user data.
type State struct {
	IsFavorite    bool       `json:"is_favorite"`
	Played        bool       `json:"played"`
	PlayCount     uint64     `json:"play_count"`
	LastPlayed    *time.Time `json:"last_played,omitempty"`
	PositionTicks uint64     `json:"position_ticks"`
}

// StateOf copies the user fields of s.
func StateOf(s *media.ServerUserState) State {
	if s == nil {
		return State{}
	}
	st := State{
		IsFavorite:    s.IsFavorite,
		Played:        s.Played,
		PlayCount:     s.PlayCount,
		PositionTicks: s.PositionTicks,
	}
	if s.LastPlayed != nil {
		t := s.LastPlayed.UTC()
		st.LastPlayed = &t
	}
	return st
}

// Entry is one journaled push.
type Entry struct {
	ID            string    `json:"id"`
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id,omitempty"`

	Server  string `json:"server"`
	MediaID string `json:"media_id"`
	Name    string `json:"name"`
	Kind    Kind   `json:"kind"`
	// Source is the server whose state was copied.
	Source string `json:"source,omitempty"`

	Before State `json:"before"`
	After  State `json:"after"`

	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

// QueryFilter selects entries. Zero fields match everything.
type QueryFilter struct {
	Server  string
	MediaID string
	Outcome Outcome
	Since   time.Time
	Limit   int
}

func (f *QueryFilter) matches(e *Entry) bool {
	if f.Server != "" && e.Server != f.Server {
		return false
	}
	if f.MediaID != "" && e.MediaID != f.MediaID {
		return false
	}
	if f.Outcome != "" && e.Outcome != f.Outcome {
		return false
	}
	if !f.Since.IsZero() && e.Timestamp.Before(f.Since) {
		return false
	}
	return true
}

// Store persists entries.
type Store interface {
	Save(ctx context.Context, e *Entry) error
	// Query returns matching entries, newest first.
	Query(ctx context.Context, filter QueryFilter) ([]Entry, error)
	// Delete removes entries older than cutoff and reports how many.
	Delete(ctx context.Context, olderThan time.Time) (int64, error)
	Close() error
}
