// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

// Package config loads EmbySync configuration from defaults, an optional
// YAML file, and environment variables (in that order of precedence).
package config

import (
	"strings"
	"time"
)

// Config is the root configuration document.
type Config struct {
	Servers []MediaServer  `koanf:"servers" validate:"dive"`
	Sync    SyncConfig     `koanf:"sync"`
	HTTP    HTTPConfig     `koanf:"http"`
	Search  []SearchEngine `koanf:"search" validate:"dive"`
	Logging LoggingConfig  `koanf:"logging"`
	API     APIConfig      `koanf:"api"`
	Audit   AuditConfig    `koanf:"audit"`
}

// MediaServer describes one Emby or Jellyfin instance.
type MediaServer struct {
	// Key identifies the server in records, logs and metrics. Must be unique.
	Key     string `koanf:"key" validate:"required"`
	Name    string `koanf:"name"`
	URL     string `koanf:"url" validate:"required,http_url"`
	APIKey  string `koanf:"api_key" validate:"required"`
	UserID  string `koanf:"user_id"`
	User    string `koanf:"user"`
	Enabled bool   `koanf:"enabled"`
}

// DisplayName returns Name, falling back to Key.
func (s MediaServer) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Key
}

// SyncTypes selects which item types are listed from each server.
type SyncTypes struct {
	Movie      bool `koanf:"movie"`
	Episode    bool `koanf:"episode"`
	Video      bool `koanf:"video"`
	Trailer    bool `koanf:"trailer"`
	AdultVideo bool `koanf:"adult_video"`
	MusicVideo bool `koanf:"music_video"`
	Audio      bool `koanf:"audio"`
	Game       bool `koanf:"game"`
	Book       bool `koanf:"book"`
}

// ItemTypes returns the enabled types as Emby IncludeItemTypes values.
func (t SyncTypes) ItemTypes() []string {
	var out []string
	add := func(on bool, name string) {
		if on {
			out = append(out, name)
		}
	}
	add(t.Movie, "Movie")
	add(t.Episode, "Episode")
	add(t.Video, "Video")
	add(t.Trailer, "Trailer")
	add(t.AdultVideo, "AdultVideo")
	add(t.MusicVideo, "MusicVideo")
	add(t.Audio, "Audio")
	add(t.Game, "Game")
	add(t.Book, "Book")
	return out
}

// SyncConfig controls listing, merging and the request watchdog.
type SyncConfig struct {
	Types SyncTypes `koanf:"types"`

	// MaxItems caps the items listed per server; -1 is unlimited.
	MaxItems int `koanf:"max_items" validate:"gte=-1"`
	PageSize int `koanf:"page_size" validate:"gte=1,lte=10000"`

	OnlyShowDifferences bool     `koanf:"only_show_differences"`
	ShowIssues          bool     `koanf:"show_issues"`
	MissingProvider     []string `koanf:"missing_provider" validate:"dive,oneof=imdb tvdb tmdb tvrage"`

	RequestTimeout   time.Duration `koanf:"request_timeout" validate:"gt=0"`
	WatchdogInterval time.Duration `koanf:"watchdog_interval" validate:"gt=0"`
	WatchdogGrace    time.Duration `koanf:"watchdog_grace" validate:"gt=0"`
	Concurrency      int           `koanf:"concurrency" validate:"gte=1,lte=64"`

	// Interval schedules passes in serve mode; 0 disables the scheduler.
	Interval time.Duration `koanf:"interval" validate:"gte=0"`
}

// HTTPConfig tunes the outbound media-server clients.
type HTTPConfig struct {
	UserAgent     string        `koanf:"user_agent"`
	RateLimit     float64       `koanf:"rate_limit" validate:"gte=0"`
	Burst         int           `koanf:"burst" validate:"gte=1"`
	RetryAttempts uint          `koanf:"retry_attempts" validate:"gte=1,lte=10"`
	RetryDelay    time.Duration `koanf:"retry_delay"`

	BreakerMaxRequests uint32        `koanf:"breaker_max_requests"`
	BreakerInterval    time.Duration `koanf:"breaker_interval"`
	BreakerTimeout     time.Duration `koanf:"breaker_timeout"`
}

// SearchEngine is a web search template; {query} is replaced with the
// escaped search key of a record.
type SearchEngine struct {
	Name string `koanf:"name" validate:"required"`
	URL  string `koanf:"url" validate:"required,contains={query}"`
}

// LoggingConfig mirrors logging.Config for file/env loading.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format" validate:"oneof=json console"`
	Caller bool   `koanf:"caller"`
}

// APIConfig configures serve mode.
type APIConfig struct {
	Listen          string        `koanf:"listen" validate:"required"`
	CORSOrigins     []string      `koanf:"cors_origins"`
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"gte=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// AuditConfig configures the badger journal of pushed updates.
type AuditConfig struct {
	Enabled  bool   `koanf:"enabled"`
	Path     string `koanf:"path"`
	InMemory bool   `koanf:"in_memory"`

	// Retention drops entries older than this; zero keeps everything.
	Retention time.Duration `koanf:"retention" validate:"gte=0"`
}

// SyncSettings returns the sync section.
func (c *Config) SyncSettings() SyncConfig { return c.Sync }

// EnabledServers returns the enabled servers in configured order.
func (c *Config) EnabledServers() []MediaServer {
	out := make([]MediaServer, 0, len(c.Servers))
	for _, s := range c.Servers {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// Server returns the server with the given key (case-insensitive).
func (c *Config) Server(key string) (MediaServer, bool) {
	for _, s := range c.Servers {
		if strings.EqualFold(s.Key, key) {
			return s, true
		}
	}
	return MediaServer{}, false
}
