// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package media

import (
	"fmt"
	"math"
	"time"

	"github.com/tomtom215/embysync/internal/models"
)

// TicksPerMillisecond converts playback ticks (100ns units) to milliseconds.
const TicksPerMillisecond = 10000

// ServerUserState is the user's play state for one item on one server.
// It changes only when a server payload is ingested or a pushed update is
// confirmed.
type ServerUserState struct {
	ServerKey     string
	MediaID       string
	IsFavorite    bool
	Played        bool
	PlayCount     uint64
	LastPlayed    *time.Time
	PositionTicks uint64
}

// NewServerUserState returns an empty state for mediaID on serverKey.
func NewServerUserState(serverKey, mediaID string) *ServerUserState {
	return &ServerUserState{ServerKey: serverKey, MediaID: mediaID}
}

// Valid reports whether the item exists on the server.
func (s *ServerUserState) Valid() bool {
	return s != nil && s.MediaID != ""
}

// LoadFrom overwrites all user fields from a payload. A nil payload resets
// them. Negative counts from the wire load as zero.
func (s *ServerUserState) LoadFrom(ud *models.UserData) {
	if ud == nil {
		s.IsFavorite, s.Played, s.PlayCount, s.LastPlayed, s.PositionTicks = false, false, 0, nil, 0
		return
	}
	s.IsFavorite = ud.IsFavorite
	s.Played = ud.Played
	s.PlayCount = nonNegative(ud.PlayCount)
	s.PositionTicks = nonNegative(ud.PlaybackPositionTicks)
	s.LastPlayed = ud.LastPlayedDate.Ptr()
}

// ToUserData serializes the state for an update request. Counts beyond
// the signed 64-bit range are clamped.
func (s *ServerUserState) ToUserData() models.UserData {
	ud := models.UserData{
		IsFavorite:            s.IsFavorite,
		Played:                s.Played,
		PlayCount:             clampInt64(s.PlayCount),
		PlaybackPositionTicks: clampInt64(s.PositionTicks),
	}
	if s.LastPlayed != nil {
		ud.LastPlayedDate = models.NewTime(*s.LastPlayed)
	}
	return ud
}

// CopyUserFields sets the five user fields from other, keeping identity.
func (s *ServerUserState) CopyUserFields(other *ServerUserState) {
	s.IsFavorite = other.IsFavorite
	s.Played = other.Played
	s.PlayCount = other.PlayCount
	s.PositionTicks = other.PositionTicks
	s.LastPlayed = nil
	if other.LastPlayed != nil {
		t := *other.LastPlayed
		s.LastPlayed = &t
	}
}

// Equals compares the five user fields exactly.
func (s *ServerUserState) Equals(other *ServerUserState) bool {
	if s == nil || other == nil {
		return s == other
	}
	return s.IsFavorite == other.IsFavorite &&
		s.Played == other.Played &&
		s.PlayCount == other.PlayCount &&
		s.PositionTicks == other.PositionTicks &&
		timesEqual(s.LastPlayed, other.LastPlayed)
}

// Clone returns a deep copy.
func (s *ServerUserState) Clone() *ServerUserState {
	if s == nil {
		return nil
	}
	c := *s
	if s.LastPlayed != nil {
		t := *s.LastPlayed
		c.LastPlayed = &t
	}
	return &c
}

// PositionDuration is the playback position, truncated to milliseconds.
func (s *ServerUserState) PositionDuration() time.Duration {
	ms := s.PositionTicks / TicksPerMillisecond
	if ms > uint64(math.MaxInt64/int64(time.Millisecond)) {
		return time.Duration(math.MaxInt64)
	}
	return time.Duration(ms) * time.Millisecond
}

// PositionString renders the position with format, or "" at zero ticks.
func (s *ServerUserState) PositionString(format func(time.Duration) string) string {
	if s.PositionTicks == 0 {
		return ""
	}
	if format == nil {
		format = FormatClock
	}
	return format(s.PositionDuration())
}

// FormatClock renders d as H:MM:SS, or M:SS under an hour.
func FormatClock(d time.Duration) string {
	total := int64(d / time.Second)
	h, m, sec := total/3600, (total/60)%60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, sec)
	}
	return fmt.Sprintf("%d:%02d", m, sec)
}

func timesEqual(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return a.Equal(*b)
}

func nonNegative(v int64) uint64 {
	if v < 0 {
		return 0
	}
	return uint64(v)
}

func clampInt64(v uint64) int64 {
	if v > math.MaxInt64 {
		return math.MaxInt64
	}
	return int64(v)
}
