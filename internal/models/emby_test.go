// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package models

import (
	"testing"
	"time"

	"github.com/goccy/go-json"
)

const episodeJSON = `{
	"Id": "123",
	"Name": "Pilot",
	"Type": "Episode",
	"SeriesName": "Foo",
	"SeasonName": "Season 2",
	"IndexNumber": 5,
	"PremiereDate": "2010-07-16T00:00:00.0000000Z",
	"ProviderIds": {"Imdb": "tt1", "Tvdb": "77"},
	"UserData": {"IsFavorite": true, "Played": true, "PlayCount": 3,
		"PlaybackPositionTicks": 120000, "LastPlayedDate": "2024-03-01T20:15:00.1234567Z"},
	"MediaSources": [
		{"MediaStreams": [{"Type": "Video", "Width": 1280, "Height": 720}, {"Type": "Audio"}]},
		{"MediaStreams": [{"Type": "Video", "Width": 3840, "Height": 2160}]}
	]
}`

func TestItemDecode(t *testing.T) {
	var item Item
	if err := json.Unmarshal([]byte(episodeJSON), &item); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}

	if item.ID != "123" || item.SeriesName != "Foo" || item.IndexNumber != 5 {
		t.Errorf("unexpected item: %+v", item)
	}
	if item.PremiereDate == nil || item.PremiereDate.Year() != 2010 {
		t.Errorf("PremiereDate = %v", item.PremiereDate)
	}
	if item.UserData == nil || item.UserData.PlayCount != 3 || !item.UserData.IsFavorite {
		t.Fatalf("UserData = %+v", item.UserData)
	}
	want := time.Date(2024, 3, 1, 20, 15, 0, 123456700, time.UTC)
	if !item.UserData.LastPlayedDate.Equal(want) {
		t.Errorf("LastPlayedDate = %v, want %v", item.UserData.LastPlayedDate, want)
	}

	w, h := item.Resolution()
	if w != 3840 || h != 2160 {
		t.Errorf("Resolution() = %dx%d, want last video stream 3840x2160", w, h)
	}
}

func TestItemMissing(t *testing.T) {
	tests := []struct {
		item Item
		want bool
	}{
		{Item{}, false},
		{Item{IsMissing: true}, true},
		{Item{LocationType: "Virtual"}, true},
		{Item{LocationType: "FileSystem"}, false},
	}
	for _, tt := range tests {
		if got := tt.item.Missing(); got != tt.want {
			t.Errorf("Missing(%+v) = %v, want %v", tt.item, got, tt.want)
		}
	}
}

func TestTimeLayouts(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{`"2024-01-02T03:04:05Z"`, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)},
		{`"2024-01-02T03:04:05.5000000"`, time.Date(2024, 1, 2, 3, 4, 5, 500000000, time.UTC)},
		{`"2024-01-02"`, time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)},
		{`null`, time.Time{}},
		{`""`, time.Time{}},
	}
	for _, tt := range tests {
		var got Time
		if err := json.Unmarshal([]byte(tt.in), &got); err != nil {
			t.Errorf("Unmarshal(%s): %v", tt.in, err)
			continue
		}
		if !got.Equal(tt.want) {
			t.Errorf("Unmarshal(%s) = %v, want %v", tt.in, got.Time, tt.want)
		}
	}

	var bad Time
	if err := json.Unmarshal([]byte(`"yesterday"`), &bad); err == nil {
		t.Error("expected error for unrecognized timestamp")
	}
}

func TestUserDataRoundTrip(t *testing.T) {
	in := UserData{
		IsFavorite:            true,
		PlayCount:             2,
		PlaybackPositionTicks: 99,
		LastPlayedDate:        NewTime(time.Date(2023, 5, 6, 7, 8, 9, 10, time.UTC)),
	}
	data, err := json.Marshal(in)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var out UserData
	if err := json.Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if !out.LastPlayedDate.Equal(in.LastPlayedDate.Time) || out.PlayCount != 2 || !out.IsFavorite {
		t.Errorf("round trip mismatch: %+v vs %+v", out, in)
	}
	if NewTime(time.Time{}) != nil {
		t.Error("NewTime(zero) should be nil")
	}
}
