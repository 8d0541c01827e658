// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package embyapi

import (
	"context"
	"fmt"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/models"
)

// Set routes calls to the client of the named server. It is the
// PayloadSource the orchestrator is built with.
type Set struct {
	clients map[string]Interface
	order   []string
}

// NewSet creates one Client per enabled server in cfg.
func NewSet(cfg *config.Config, opts ...Option) *Set {
	opts = append([]Option{WithConcurrency(cfg.Sync.Concurrency)}, opts...)
	s := &Set{clients: map[string]Interface{}}
	for _, srv := range cfg.EnabledServers() {
		s.Add(NewClient(srv, cfg.HTTP, opts...))
	}
	return s
}

// NewSetOf wraps existing clients.
func NewSetOf(clients ...Interface) *Set {
	s := &Set{clients: map[string]Interface{}}
	for _, c := range clients {
		s.Add(c)
	}
	return s
}

// Add registers c under its server key, replacing any previous client.
func (s *Set) Add(c Interface) {
	key := c.Server().Key
	if _, ok := s.clients[key]; !ok {
		s.order = append(s.order, key)
	}
	s.clients[key] = c
}

// Keys lists server keys in configuration order.
func (s *Set) Keys() []string { return append([]string(nil), s.order...) }

// Client returns the client for server.
func (s *Set) Client(server string) (Interface, error) {
	c, ok := s.clients[server]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, server)
	}
	return c, nil
}

func (s *Set) Users(ctx context.Context, server string) ([]models.User, error) {
	c, err := s.Client(server)
	if err != nil {
		return nil, err
	}
	return c.GetUsers(ctx)
}

func (s *Set) Items(ctx context.Context, server, userID string, q ItemQuery) (*ItemList, error) {
	c, err := s.Client(server)
	if err != nil {
		return nil, err
	}
	return c.ListItems(ctx, userID, q)
}

func (s *Set) Item(ctx context.Context, server, userID, itemID string) (*models.Item, error) {
	c, err := s.Client(server)
	if err != nil {
		return nil, err
	}
	return c.GetItem(ctx, userID, itemID)
}

func (s *Set) UpdateUserData(ctx context.Context, server, userID, itemID string, data *models.UserData) error {
	c, err := s.Client(server)
	if err != nil {
		return err
	}
	return c.UpdateUserData(ctx, userID, itemID, data)
}

func (s *Set) SetFavorite(ctx context.Context, server, userID, itemID string, favorite bool) (*models.UserData, error) {
	c, err := s.Client(server)
	if err != nil {
		return nil, err
	}
	return c.SetFavorite(ctx, userID, itemID, favorite)
}

func (s *Set) FindByProviders(ctx context.Context, server, userID, query string) ([]*models.Item, error) {
	c, err := s.Client(server)
	if err != nil {
		return nil, err
	}
	return c.FindByProviders(ctx, userID, query)
}

func (s *Set) SystemInfo(ctx context.Context, server string) (*models.SystemInfo, error) {
	c, err := s.Client(server)
	if err != nil {
		return nil, err
	}
	return c.GetPublicSystemInfo(ctx)
}
