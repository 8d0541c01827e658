// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package media

import (
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/embysync/internal/models"
)

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func baseState() *ServerUserState {
	return &ServerUserState{
		ServerKey:     "a",
		MediaID:       "1",
		IsFavorite:    true,
		Played:        true,
		PlayCount:     2,
		LastPlayed:    ts("2024-01-01T10:00:00Z"),
		PositionTicks: 5000,
	}
}

func TestEqualsIgnoresIdentity(t *testing.T) {
	a, b := baseState(), baseState()
	b.ServerKey, b.MediaID = "b", "other-id"
	assert.True(t, a.Equals(b))
	assert.True(t, b.Equals(a))
}

func TestEqualsDetectsEachField(t *testing.T) {
	mutations := map[string]func(s *ServerUserState){
		"favorite":    func(s *ServerUserState) { s.IsFavorite = false },
		"played":      func(s *ServerUserState) { s.Played = false },
		"play count":  func(s *ServerUserState) { s.PlayCount++ },
		"position":    func(s *ServerUserState) { s.PositionTicks++ },
		"last played": func(s *ServerUserState) { s.LastPlayed = ts("2024-01-01T10:00:01Z") },
		"unset time":  func(s *ServerUserState) { s.LastPlayed = nil },
	}
	for name, mutate := range mutations {
		t.Run(name, func(t *testing.T) {
			a, b := baseState(), baseState()
			mutate(b)
			assert.False(t, a.Equals(b))
			assert.False(t, b.Equals(a))
		})
	}
}

func TestEqualsSameInstantDifferentZone(t *testing.T) {
	a, b := baseState(), baseState()
	local := a.LastPlayed.In(time.FixedZone("x", 3600))
	b.LastPlayed = &local
	assert.True(t, a.Equals(b))
}

func TestLoadFromAndRoundTrip(t *testing.T) {
	payload := []byte(`{"IsFavorite":true,"Played":false,"PlayCount":7,
		"PlaybackPositionTicks":36000000000,"LastPlayedDate":"2024-02-03T04:05:06.7000000Z"}`)
	var ud models.UserData
	require.NoError(t, json.Unmarshal(payload, &ud))

	s := NewServerUserState("a", "42")
	s.LoadFrom(&ud)
	assert.Equal(t, uint64(7), s.PlayCount)
	assert.Equal(t, uint64(36000000000), s.PositionTicks)
	require.NotNil(t, s.LastPlayed)

	wire, err := json.Marshal(s.ToUserData())
	require.NoError(t, err)

	var back models.UserData
	require.NoError(t, json.Unmarshal(wire, &back))
	again := NewServerUserState("a", "42")
	again.LoadFrom(&back)
	assert.True(t, s.Equals(again), "round trip must be lossless: %+v vs %+v", s, again)
}

func TestToUserDataClamps(t *testing.T) {
	s := NewServerUserState("a", "1")
	s.PlayCount = math.MaxUint64
	s.PositionTicks = math.MaxInt64 + 10

	ud := s.ToUserData()
	assert.Equal(t, int64(math.MaxInt64), ud.PlayCount)
	assert.Equal(t, int64(math.MaxInt64), ud.PlaybackPositionTicks)

	again := NewServerUserState("a", "1")
	again.LoadFrom(&ud)
	assert.Equal(t, uint64(math.MaxInt64), again.PlayCount)
}

func TestLoadFromNegativeAndNil(t *testing.T) {
	s := baseState()
	s.LoadFrom(&models.UserData{PlayCount: -3, PlaybackPositionTicks: -1})
	assert.Zero(t, s.PlayCount)
	assert.Zero(t, s.PositionTicks)
	assert.Nil(t, s.LastPlayed)

	s = baseState()
	s.LoadFrom(nil)
	assert.False(t, s.IsFavorite)
	assert.Nil(t, s.LastPlayed)
	assert.Equal(t, "1", s.MediaID, "identity survives a reset")
}

func TestPosition(t *testing.T) {
	s := NewServerUserState("a", "1")
	assert.Equal(t, "", s.PositionString(nil), "zero ticks render empty")

	s.PositionTicks = uint64((time.Hour + 2*time.Minute + 3*time.Second).Milliseconds()) * TicksPerMillisecond
	assert.Equal(t, "1:02:03", s.PositionString(FormatClock))
	assert.Equal(t, "1:02:03", s.PositionString(nil))
	assert.Equal(t, "1h2m3s", s.PositionString(time.Duration.String))

	s.PositionTicks = 15000
	assert.Equal(t, time.Millisecond, s.PositionDuration(), "ticks truncate to milliseconds")

	s.PositionTicks = math.MaxUint64
	assert.Equal(t, time.Duration(math.MaxInt64), s.PositionDuration())
}

func TestValidAndClone(t *testing.T) {
	var nilState *ServerUserState
	assert.False(t, nilState.Valid())
	assert.False(t, NewServerUserState("a", "").Valid())

	a := baseState()
	c := a.Clone()
	c.LastPlayed = ts("2030-01-01T00:00:00Z")
	c.PlayCount = 99
	assert.Equal(t, uint64(2), a.PlayCount)
	assert.True(t, a.LastPlayed.Equal(*ts("2024-01-01T10:00:00Z")))
}

func TestFormatClock(t *testing.T) {
	assert.Equal(t, "0:59", FormatClock(59*time.Second))
	assert.Equal(t, "10:00", FormatClock(10*time.Minute))
	assert.Equal(t, "2:00:00", FormatClock(2*time.Hour))
}
