// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/tomtom215/embysync/internal/logging"
	"github.com/tomtom215/embysync/internal/validation"
)

// ErrNotEnoughServers is returned by ValidateForSync when fewer than two
// servers are enabled.
var ErrNotEnoughServers = errors.New("at least two enabled servers are required")

// Validate checks struct tags and cross-field rules.
func (c *Config) Validate() error {
	if err := validation.ValidateStruct(c); err != nil {
		return err
	}
	if err := c.validateServers(); err != nil {
		return err
	}
	return c.validateLogging()
}

func (c *Config) validateServers() error {
	seen := make(map[string]bool, len(c.Servers))
	for _, s := range c.Servers {
		key := strings.ToLower(s.Key)
		if seen[key] {
			return fmt.Errorf("duplicate server key %q", s.Key)
		}
		seen[key] = true
		if strings.ContainsAny(s.Key, " /") {
			return fmt.Errorf("server key %q must not contain spaces or slashes", s.Key)
		}
	}
	return nil
}

func (c *Config) validateLogging() error {
	if !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid logging.level %q", c.Logging.Level)
	}
	return nil
}

// ValidateForSync applies the extra rules needed before any pass can run.
func (c *Config) ValidateForSync() error {
	if len(c.EnabledServers()) < 2 {
		return ErrNotEnoughServers
	}
	if len(c.Sync.Types.ItemTypes()) == 0 {
		return errors.New("no media types enabled under sync.types")
	}
	return nil
}
