// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package sync

import (
	"fmt"
	"strings"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/models"
)

// FindAdmin returns the first enabled administrator in users.
func FindAdmin(users []models.User) (models.User, bool) {
	for _, u := range users {
		if u.Policy.IsAdministrator && !u.Policy.IsDisabled {
			return u, true
		}
	}
	return models.User{}, false
}

// ResolveUser picks the user to sync on server: the configured ID, else
// the configured name (or Emby Connect name), else the first
// administrator.
func ResolveUser(server config.MediaServer, users []models.User) (models.User, error) {
	switch {
	case server.UserID != "":
		for _, u := range users {
			if u.ID == server.UserID {
				return u, nil
			}
		}
		return models.User{}, fmt.Errorf("%w: id %q on %s", ErrUserNotFound, server.UserID, server.Key)
	case server.User != "":
		for _, u := range users {
			if strings.EqualFold(u.Name, server.User) || strings.EqualFold(u.ConnectUserName, server.User) {
				return u, nil
			}
		}
		return models.User{}, fmt.Errorf("%w: %q on %s", ErrUserNotFound, server.User, server.Key)
	}
	if u, ok := FindAdmin(users); ok {
		return u, nil
	}
	return models.User{}, fmt.Errorf("%s: %w", server.Key, ErrNoAdmin)
}
