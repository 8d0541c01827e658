// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package sync

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/embysync/internal/audit"
	"github.com/tomtom215/embysync/internal/catalog"
	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/embyapi"
	"github.com/tomtom215/embysync/internal/models"
)

var (
	// ErrBusy is returned when a sync pass is already in progress.
	ErrBusy = errors.New("a sync pass is already running")

	// ErrNoAdmin is reported for a server where no user was configured
	// and no administrator exists to fall back to.
	ErrNoAdmin = errors.New("no administrator user found")

	// ErrUserNotFound is reported when the configured user does not exist.
	ErrUserNotFound = errors.New("configured user not found")

	// ErrUnknownItem is returned for a handle the catalog does not hold.
	ErrUnknownItem = errors.New("unknown media item")

	// ErrUnknownServer is returned for a server key that is not enabled.
	ErrUnknownServer = errors.New("unknown or disabled server")

	// ErrNoProviders is returned when a record carries no provider ids to
	// search by.
	ErrNoProviders = errors.New("record has no provider ids")

	// ErrStopped is returned once Run has exited.
	ErrStopped = errors.New("orchestrator stopped")
)

// RequestType is the kind of a server request.
type RequestType int

const (
	GetUsers RequestType = iota + 1
	GetMediaList
	ReloadMediaData
	UpdateData
	UpdateFavorite
	TestServer
)

var requestTypes = []RequestType{GetUsers, GetMediaList, ReloadMediaData, UpdateData, UpdateFavorite, TestServer}

func (t RequestType) String() string {
	switch t {
	case GetUsers:
		return "get_users"
	case GetMediaList:
		return "get_media_list"
	case ReloadMediaData:
		return "reload_media_data"
	case UpdateData:
		return "update_data"
	case UpdateFavorite:
		return "update_favorite"
	case TestServer:
		return "test_server"
	default:
		return "none"
	}
}

// State is the state of the listing cycle.
type State int

const (
	Idle State = iota
	Requesting
	Merging
)

func (s State) String() string {
	switch s {
	case Requesting:
		return "requesting"
	case Merging:
		return "merging"
	default:
		return "idle"
	}
}

// PayloadSource performs requests against a named server.
type PayloadSource interface {
	Users(ctx context.Context, server string) ([]models.User, error)
	Items(ctx context.Context, server, userID string, q embyapi.ItemQuery) (*embyapi.ItemList, error)
	Item(ctx context.Context, server, userID, itemID string) (*models.Item, error)
	UpdateUserData(ctx context.Context, server, userID, itemID string, data *models.UserData) error
	SetFavorite(ctx context.Context, server, userID, itemID string, favorite bool) (*models.UserData, error)
	FindByProviders(ctx context.Context, server, userID, query string) ([]*models.Item, error)
	SystemInfo(ctx context.Context, server string) (*models.SystemInfo, error)
}

var _ PayloadSource = (*embyapi.Set)(nil)

// Logger receives user-facing messages as key/value pairs.
type Logger interface {
	Debug(msg string, kv ...any)
	Info(msg string, kv ...any)
	Warn(msg string, kv ...any)
	Error(msg string, kv ...any)
}

// SettingsProvider is read on every pass; *config.Config satisfies it.
type SettingsProvider interface {
	EnabledServers() []config.MediaServer
	SyncSettings() config.SyncConfig
}

var _ SettingsProvider = (*config.Config)(nil)

// Journal records pushes; *audit.Journal satisfies it.
type Journal interface {
	Record(e audit.Entry)
}

var _ Journal = (*audit.Journal)(nil)

// ProgressSink reports progress and polls for user cancellation.
type ProgressSink = catalog.ProgressSink

// ServerResult is one server's part of a listing pass.
type ServerResult struct {
	Server  string `json:"server"`
	Items   int    `json:"items"`
	Skipped int    `json:"skipped,omitempty"`
	Error   string `json:"error,omitempty"`
}

// TestResult is the outcome of testing one server.
type TestResult struct {
	Server  string             `json:"server"`
	OK      bool               `json:"ok"`
	Message string             `json:"message"`
	Info    *models.SystemInfo `json:"info,omitempty"`
}

// Report summarizes a finished job.
type Report struct {
	Kind          string    `json:"kind"`
	CorrelationID string    `json:"correlation_id"`
	OK            bool      `json:"ok"`
	Canceled      bool      `json:"canceled,omitempty"`
	Merged        bool      `json:"merged,omitempty"`
	Records       int       `json:"records,omitempty"`
	Pushed        int       `json:"pushed,omitempty"`
	Failed        int       `json:"failed,omitempty"`
	Started       time.Time `json:"started"`
	Finished      time.Time `json:"finished"`

	Servers []ServerResult           `json:"servers,omitempty"`
	Tests   []TestResult             `json:"tests,omitempty"`
	Users   map[string][]models.User `json:"users,omitempty"`
	Errors  []string                 `json:"errors,omitempty"`
}

// Duration is the wall time of the job.
func (r *Report) Duration() time.Duration { return r.Finished.Sub(r.Started) }

// StuckCounter is a watchdog finding.
type StuckCounter struct {
	Type     string    `json:"type"`
	Server   string    `json:"server"`
	Count    int       `json:"count"`
	Since    time.Time `json:"since"`
	Detected time.Time `json:"detected"`
}

// Status is a point-in-time view of the orchestrator.
type Status struct {
	State      string                    `json:"state"`
	Running    bool                      `json:"running"`
	InFlight   map[string]map[string]int `json:"in_flight,omitempty"`
	Pending    int                       `json:"pending"`
	Catalog    catalog.Stats             `json:"catalog"`
	Users      map[string]string         `json:"users,omitempty"`
	LastMerge  *time.Time                `json:"last_merge,omitempty"`
	LastReport *Report                   `json:"last_report,omitempty"`
	Stuck      []StuckCounter            `json:"stuck,omitempty"`
}

// Await waits for the report of a job.
func Await(ctx context.Context, ch <-chan Report) (Report, error) {
	select {
	case r, ok := <-ch:
		if !ok {
			return Report{}, ErrStopped
		}
		return r, nil
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
}
