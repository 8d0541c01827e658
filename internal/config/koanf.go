// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths are searched in order when no explicit path is given.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
}

// ConfigPathEnvVar overrides the config file location.
const ConfigPathEnvVar = "CONFIG_PATH"

// envPrefix is stripped from environment variables before mapping.
const envPrefix = "EMBYSYNC_"

func defaultConfig() *Config {
	return &Config{
		Sync: SyncConfig{
			Types: SyncTypes{
				Movie:   true,
				Episode: true,
				Video:   true,
			},
			MaxItems:         -1,
			PageSize:         500,
			RequestTimeout:   60 * time.Second,
			WatchdogInterval: 15 * time.Second,
			WatchdogGrace:    2 * time.Minute,
			Concurrency:      4,
		},
		HTTP: HTTPConfig{
			UserAgent:          "EmbySync",
			RateLimit:          10,
			Burst:              20,
			RetryAttempts:      3,
			RetryDelay:         500 * time.Millisecond,
			BreakerMaxRequests: 3,
			BreakerInterval:    time.Minute,
			BreakerTimeout:     2 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
		API: APIConfig{
			Listen:          "127.0.0.1:8689",
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   120,
			RateLimitWindow: time.Minute,
			ShutdownTimeout: 10 * time.Second,
		},
		Audit: AuditConfig{
			Enabled:   true,
			Path:      defaultAuditPath(),
			Retention: 90 * 24 * time.Hour,
		},
	}
}

func defaultAuditPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "embysync", "audit")
	}
	return "embysync-audit"
}

// Load reads configuration using the default search paths.
func Load() (*Config, error) {
	return LoadWithKoanf("")
}

// LoadWithKoanf layers defaults, the YAML file at path (or the first file
// found on the search path when path is empty) and EMBYSYNC_* environment
// variables, then validates the result.
func LoadWithKoanf(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	if path == "" {
		path = findConfigFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envTransformFunc), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}
	if err := processServersEnv(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	paths := DefaultConfigPaths
	if dir, err := os.UserConfigDir(); err == nil {
		paths = append(paths[:len(paths):len(paths)], filepath.Join(dir, "embysync", "config.yaml"))
	}
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// sliceConfigPaths are parsed from comma-separated strings when they come
// from the environment.
var sliceConfigPaths = []string{
	"sync.missing_provider",
	"api.cors_origins",
}

func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		strVal, ok := k.Get(path).(string)
		if !ok {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if err := k.Set(path, trimmed); err != nil {
			return fmt.Errorf("failed to set %s: %w", path, err)
		}
	}
	return nil
}

// processServersEnv decodes EMBYSYNC_SERVERS, a JSON array of server
// objects, into the servers list.
func processServersEnv(k *koanf.Koanf) error {
	raw, ok := k.Get("servers").(string)
	if !ok {
		return nil
	}
	var servers []map[string]interface{}
	if err := json.Unmarshal([]byte(raw), &servers); err != nil {
		return fmt.Errorf("EMBYSYNC_SERVERS must be a JSON array: %w", err)
	}
	k.Delete("servers")
	if err := k.Set("servers", servers); err != nil {
		return fmt.Errorf("failed to set servers: %w", err)
	}
	return nil
}

// envTransformFunc maps EMBYSYNC_* variables (prefix already removed by
// the caller) to koanf paths. Unmapped variables are ignored.
//
//   - EMBYSYNC_SYNC_MAX_ITEMS -> sync.max_items
//   - EMBYSYNC_LOG_LEVEL -> logging.level
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, envPrefix))

	envMappings := map[string]string{
		"servers": "servers",

		"sync_max_items":             "sync.max_items",
		"sync_page_size":             "sync.page_size",
		"sync_only_show_differences": "sync.only_show_differences",
		"sync_show_issues":           "sync.show_issues",
		"sync_missing_provider":      "sync.missing_provider",
		"sync_request_timeout":       "sync.request_timeout",
		"sync_watchdog_interval":     "sync.watchdog_interval",
		"sync_watchdog_grace":        "sync.watchdog_grace",
		"sync_concurrency":           "sync.concurrency",
		"sync_interval":              "sync.interval",
		"sync_movie":                 "sync.types.movie",
		"sync_episode":               "sync.types.episode",
		"sync_video":                 "sync.types.video",
		"sync_trailer":               "sync.types.trailer",
		"sync_adult_video":           "sync.types.adult_video",
		"sync_music_video":           "sync.types.music_video",
		"sync_audio":                 "sync.types.audio",
		"sync_game":                  "sync.types.game",
		"sync_book":                  "sync.types.book",

		"http_user_agent":     "http.user_agent",
		"http_rate_limit":     "http.rate_limit",
		"http_burst":          "http.burst",
		"http_retry_attempts": "http.retry_attempts",
		"http_retry_delay":    "http.retry_delay",

		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		"api_listen":       "api.listen",
		"api_cors_origins": "api.cors_origins",

		"audit_enabled":   "audit.enabled",
		"audit_path":      "audit.path",
		"audit_in_memory": "audit.in_memory",
		"audit_retention": "audit.retention",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}
	return ""
}
