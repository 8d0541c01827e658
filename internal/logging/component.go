// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package logging

import "github.com/rs/zerolog"

// ComponentLogger is a key/value logger bound to one component name.
// It satisfies the message-sink interfaces of the sync core, which must
// not depend on zerolog directly.
type ComponentLogger struct {
	logger zerolog.Logger
}

// NewComponentLogger returns a logger tagged with component=name.
func NewComponentLogger(name string) *ComponentLogger {
	return &ComponentLogger{logger: With().Str("component", name).Logger()}
}

// NewComponentLoggerFrom wraps an explicit zerolog logger (tests).
//
//nolint:gocritic // zerolog.Logger is designed to be passed by value
func NewComponentLoggerFrom(l zerolog.Logger) *ComponentLogger {
	return &ComponentLogger{logger: l}
}

// Debug logs msg with alternating key/value pairs.
func (c *ComponentLogger) Debug(msg string, kv ...any) {
	c.logger.Debug().Fields(kv).Msg(msg)
}

// Info logs msg with alternating key/value pairs.
func (c *ComponentLogger) Info(msg string, kv ...any) {
	c.logger.Info().Fields(kv).Msg(msg)
}

// Warn logs msg with alternating key/value pairs.
func (c *ComponentLogger) Warn(msg string, kv ...any) {
	c.logger.Warn().Fields(kv).Msg(msg)
}

// Error logs msg with alternating key/value pairs.
func (c *ComponentLogger) Error(msg string, kv ...any) {
	c.logger.Error().Fields(kv).Msg(msg)
}
