// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

// Package models defines the Emby/Jellyfin REST payloads consumed and
// produced by EmbySync, plus the HTTP API response envelope.
//
// API Reference: https://dev.emby.media/doc/restapi/index.html
package models

import (
	"github.com/goccy/go-json"
)

// Item is one entry of /Users/{userId}/Items or /Users/{userId}/Items/{id}.
type Item struct {
	ID                string            `json:"Id"`
	Name              string            `json:"Name"`
	OriginalTitle     string            `json:"OriginalTitle,omitempty"`
	Type              string            `json:"Type"`
	IsMissing         bool              `json:"IsMissing,omitempty"`
	LocationType      string            `json:"LocationType,omitempty"`
	PremiereDate      *Time             `json:"PremiereDate,omitempty"`
	ProductionYear    int               `json:"ProductionYear,omitempty"`
	ProviderIDs       map[string]string `json:"ProviderIds,omitempty"`
	ExternalURLs      []ExternalURL     `json:"ExternalUrls,omitempty"`
	SeriesName        string            `json:"SeriesName,omitempty"`
	SeasonName        string            `json:"SeasonName,omitempty"`
	EpisodeTitle      string            `json:"EpisodeTitle,omitempty"`
	IndexNumber       int               `json:"IndexNumber,omitempty"`
	ParentIndexNumber int               `json:"ParentIndexNumber,omitempty"`
	UserData          *UserData         `json:"UserData,omitempty"`
	MediaSources      []MediaSource     `json:"MediaSources,omitempty"`
}

// Missing reports whether the server lists the item without a file.
func (i *Item) Missing() bool {
	return i.IsMissing || i.LocationType == "Virtual"
}

// Resolution returns the width and height of the last video stream found
// across all media sources, or zeros.
func (i *Item) Resolution() (width, height int) {
	for _, src := range i.MediaSources {
		for _, s := range src.MediaStreams {
			if s.Type == "Video" {
				width, height = s.Width, s.Height
			}
		}
	}
	return width, height
}

// UserData is the per-user play state of an item.
type UserData struct {
	IsFavorite            bool  `json:"IsFavorite"`
	Played                bool  `json:"Played"`
	PlayCount             int64 `json:"PlayCount"`
	PlaybackPositionTicks int64 `json:"PlaybackPositionTicks"`
	LastPlayedDate        *Time `json:"LastPlayedDate,omitempty"`
}

// ExternalURL is a link to an external metadata site.
type ExternalURL struct {
	Name string `json:"Name"`
	URL  string `json:"Url"`
}

// MediaSource is one playable version of an item.
type MediaSource struct {
	ID           string        `json:"Id,omitempty"`
	MediaStreams []MediaStream `json:"MediaStreams,omitempty"`
}

// MediaStream is an audio, video or subtitle stream of a source.
type MediaStream struct {
	Type   string `json:"Type"`
	Codec  string `json:"Codec,omitempty"`
	Width  int    `json:"Width,omitempty"`
	Height int    `json:"Height,omitempty"`
}

// ItemsResponse is a page of items. Items stay raw so one malformed entry
// can be skipped without losing the page.
type ItemsResponse struct {
	Items            []json.RawMessage `json:"Items"`
	TotalRecordCount int               `json:"TotalRecordCount"`
	StartIndex       int               `json:"StartIndex"`
}

// User is an entry of /Users.
type User struct {
	ID               string     `json:"Id"`
	Name             string     `json:"Name"`
	ServerID         string     `json:"ServerId,omitempty"`
	ConnectUserName  string     `json:"ConnectUserName,omitempty"`
	LastLoginDate    *Time      `json:"LastLoginDate,omitempty"`
	LastActivityDate *Time      `json:"LastActivityDate,omitempty"`
	Policy           UserPolicy `json:"Policy"`
}

// UserPolicy carries the permission bits EmbySync cares about.
type UserPolicy struct {
	IsAdministrator bool `json:"IsAdministrator"`
	IsDisabled      bool `json:"IsDisabled"`
}

// SystemInfo is /System/Info/Public.
type SystemInfo struct {
	ID              string `json:"Id"`
	ServerName      string `json:"ServerName"`
	Version         string `json:"Version"`
	OperatingSystem string `json:"OperatingSystem,omitempty"`
	LocalAddress    string `json:"LocalAddress,omitempty"`
}
