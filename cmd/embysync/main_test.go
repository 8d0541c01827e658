// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/embyapi"
	"github.com/tomtom215/embysync/internal/models"
	intsync "github.com/tomtom215/embysync/internal/sync"
)

type fakeSource struct {
	mu     sync.Mutex
	items  map[string][]*models.Item
	users  map[string][]models.User
	pushes []string
}

func (f *fakeSource) find(server, id string) *models.Item {
	for _, it := range f.items[server] {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func (f *fakeSource) Users(_ context.Context, server string) ([]models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.users[server], nil
}

func (f *fakeSource) Items(_ context.Context, server, _ string, _ embyapi.ItemQuery) (*embyapi.ItemList, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	list := &embyapi.ItemList{Total: len(f.items[server])}
	for _, it := range f.items[server] {
		cp := *it
		ud := *it.UserData
		cp.UserData = &ud
		list.Items = append(list.Items, &cp)
	}
	return list, nil
}

func (f *fakeSource) Item(_ context.Context, server, _, itemID string) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if it := f.find(server, itemID); it != nil {
		cp := *it
		return &cp, nil
	}
	return nil, &embyapi.StatusError{Server: server, Status: http.StatusNotFound}
}

func (f *fakeSource) UpdateUserData(_ context.Context, server, _, itemID string, data *models.UserData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.find(server, itemID)
	if it == nil {
		return &embyapi.StatusError{Server: server, Status: http.StatusNotFound}
	}
	ud := *data
	it.UserData = &ud
	f.pushes = append(f.pushes, server+"/"+itemID)
	return nil
}

func (f *fakeSource) SetFavorite(_ context.Context, server, _, itemID string, favorite bool) (*models.UserData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.find(server, itemID)
	if it == nil {
		return nil, &embyapi.StatusError{Server: server, Status: http.StatusNotFound}
	}
	it.UserData.IsFavorite = favorite
	f.pushes = append(f.pushes, server+"/"+itemID+"/favorite")
	ud := *it.UserData
	return &ud, nil
}

func (f *fakeSource) FindByProviders(context.Context, string, string, string) ([]*models.Item, error) {
	return nil, nil
}

func (f *fakeSource) SystemInfo(_ context.Context, server string) (*models.SystemInfo, error) {
	return &models.SystemInfo{ID: "id-" + server, ServerName: server, Version: "4.8.0.0"}, nil
}

func movie(id, name string, year int, ud models.UserData) *models.Item {
	return &models.Item{
		ID:             id,
		Name:           name,
		Type:           "Movie",
		ProductionYear: year,
		ProviderIDs:    map[string]string{"Imdb": "tt-" + id},
		UserData:       &ud,
	}
}

// newFixture serves Heat (played on a only) and Alien (equal) from two
// servers.
func newFixture(t *testing.T) (*fakeSource, *config.Config) {
	t.Helper()
	played := models.NewTime(time.Date(2024, 6, 1, 20, 0, 0, 0, time.UTC))
	src := &fakeSource{
		items: map[string][]*models.Item{
			"a": {
				movie("1", "Heat", 1995, models.UserData{Played: true, PlayCount: 2, LastPlayedDate: played}),
				movie("2", "Alien", 1979, models.UserData{}),
			},
			"b": {
				movie("1", "Heat", 1995, models.UserData{}),
				movie("2", "Alien", 1979, models.UserData{}),
			},
		},
		users: map[string][]models.User{
			"a": {{ID: "u-a", Name: "alice", Policy: models.UserPolicy{IsAdministrator: true}}},
			"b": {{ID: "u-b", Name: "alice", Policy: models.UserPolicy{IsAdministrator: true}}, {ID: "u-x", Name: "bob"}},
		},
	}
	cfg := &config.Config{
		Sync: config.SyncConfig{
			Types:            config.SyncTypes{Movie: true},
			MaxItems:         -1,
			PageSize:         100,
			RequestTimeout:   5 * time.Second,
			WatchdogInterval: time.Hour,
			WatchdogGrace:    time.Hour,
			Concurrency:      2,
		},
		Logging: config.LoggingConfig{Level: "error", Format: "console"},
		API:     config.APIConfig{Listen: "127.0.0.1:0"},
		Audit:   config.AuditConfig{Enabled: true, InMemory: true},
	}
	for _, key := range []string{"a", "b"} {
		cfg.Servers = append(cfg.Servers, config.MediaServer{
			Key: key, URL: "http://" + key + ".local", APIKey: "k", UserID: "u-" + key, Enabled: true,
		})
	}

	prev := newSource
	newSource = func(*config.Config) intsync.PayloadSource { return src }
	t.Cleanup(func() { newSource = prev })
	return src, cfg
}

func execute(t *testing.T, cfg *config.Config, loadErr error, args ...string) (string, error) {
	t.Helper()
	root := newRootCommandWith(func(string) (*config.Config, error) {
		if loadErr != nil {
			return nil, loadErr
		}
		return cfg, nil
	})
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(append([]string{"--quiet"}, args...))
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err := root.ExecuteContext(ctx)
	return out.String(), err
}

func TestVersionSkipsConfig(t *testing.T) {
	out, err := execute(t, nil, errors.New("no config"), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "embysync dev")
}

func TestConfigErrorExitCode(t *testing.T) {
	_, err := execute(t, nil, errors.New("bad yaml"), "sync")
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestInvalidLogLevel(t *testing.T) {
	_, cfg := newFixture(t)
	_, err := execute(t, cfg, nil, "--log-level", "loud", "sync")
	require.Error(t, err)
	assert.Equal(t, exitConfig, exitCode(err))
}

func TestExitCodes(t *testing.T) {
	assert.Equal(t, exitCanceled, exitCode(context.Canceled))
	assert.Equal(t, exitCanceled, exitCode(errCanceled))
	assert.Equal(t, exitConfig, exitCode(config.ErrNotEnoughServers))
	assert.Equal(t, exitFailure, exitCode(errors.New("boom")))
}

func TestSyncCommand(t *testing.T) {
	_, cfg := newFixture(t)
	out, err := execute(t, cfg, nil, "sync", "--differences")
	require.NoError(t, err)
	assert.Contains(t, out, "2 records")
	assert.Contains(t, out, "Heat")
	assert.Contains(t, out, "needs_updating")
	assert.NotContains(t, out, "Alien")
}

func TestSyncCommandJSON(t *testing.T) {
	_, cfg := newFixture(t)
	out, err := execute(t, cfg, nil, "--json", "sync")
	require.NoError(t, err)
	assert.Contains(t, out, `"records": 2`)
	assert.Contains(t, out, `"merged": true`)
}

func TestProcessCommand(t *testing.T) {
	src, cfg := newFixture(t)
	out, err := execute(t, cfg, nil, "process")
	require.NoError(t, err)
	assert.Contains(t, out, "Pushed 1 update(s), 0 failed")
	assert.Equal(t, []string{"b/1"}, src.pushes)
	assert.True(t, src.find("b", "1").UserData.Played)
}

func TestProcessDryRun(t *testing.T) {
	src, cfg := newFixture(t)
	out, err := execute(t, cfg, nil, "process", "--dry-run")
	require.NoError(t, err)
	assert.Contains(t, out, "Heat")
	assert.Empty(t, src.pushes)
}

func TestUsersCommand(t *testing.T) {
	_, cfg := newFixture(t)
	out, err := execute(t, cfg, nil, "users")
	require.NoError(t, err)
	assert.Contains(t, out, "bob")
	assert.Contains(t, out, "u-b")
}

func TestTestCommand(t *testing.T) {
	_, cfg := newFixture(t)
	out, err := execute(t, cfg, nil, "test")
	require.NoError(t, err)
	assert.Contains(t, out, "4.8.0.0")
}

func TestCollectionsCommand(t *testing.T) {
	_, cfg := newFixture(t)
	cfg.Search = []config.SearchEngine{{Name: "imdb", URL: "https://www.imdb.com/find?q={query}"}}
	path := filepath.Join(t.TempDir(), "top.json")
	doc := `{"collections": [{"name": "Classics", "movies": [
		{"name": "Heat", "year": 1995, "rank": 1},
		{"name": "Ran", "year": 1985, "rank": 2}
	]}]}`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o600))

	out, err := execute(t, cfg, nil, "collections", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Classics: 1 of 2 found")
	assert.Contains(t, out, "imdb.com/find?q=")

	_, err = execute(t, cfg, nil, "collections", filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestHistoryDisabled(t *testing.T) {
	_, cfg := newFixture(t)
	cfg.Audit.Enabled = false
	_, err := execute(t, cfg, nil, "history")
	assert.Error(t, err)

	cfg.Audit.Enabled = true
	_, err = execute(t, cfg, nil, "history", "--outcome", "maybe")
	assert.Error(t, err)
}

func TestStatusCommand(t *testing.T) {
	_, cfg := newFixture(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/v1/status", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","data":{"state":"merging","running":true,"pending":3,
			"catalog":{"records":10,"syncable":8,"needs_updating":2,"missing":1}}}`))
	}))
	defer srv.Close()

	out, err := execute(t, cfg, nil, "status", "--addr", srv.URL)
	require.NoError(t, err)
	assert.Contains(t, out, "merging")
	assert.Contains(t, out, "10 records, 8 syncable, 2 need updating")
}

func TestBaseURL(t *testing.T) {
	tests := []struct{ in, want string }{
		{":8689", "http://127.0.0.1:8689"},
		{"localhost:8689", "http://localhost:8689"},
		{"https://sync.example/", "https://sync.example"},
		{"http://127.0.0.1:80", "http://127.0.0.1:80"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, baseURL(tt.in), tt.in)
	}
}

func TestReportError(t *testing.T) {
	assert.NoError(t, reportError(intsync.Report{OK: true}))
	assert.ErrorIs(t, reportError(intsync.Report{Canceled: true}), errCanceled)
	err := reportError(intsync.Report{Kind: "sync", Errors: []string{"a: down"}})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "a: down"))
}

func TestRenderTable(t *testing.T) {
	out := renderTable([]string{"Server", "Items"}, [][]string{{"a", "12"}, {"b"}}, []columnAlignment{alignLeft, alignRight})
	assert.Contains(t, out, "Server")
	assert.Contains(t, out, "12")
	assert.Empty(t, renderTable(nil, nil, nil))
}

func TestBarProgressStack(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var buf bytes.Buffer
	p := newBarProgress(ctx, &buf)

	p.SetTitle("Merging")
	p.SetMaximum(10)
	p.SetValue(4)
	p.PushState()
	p.SetTitle("Pushing")
	p.SetMaximum(3)
	p.SetValue(3)

	cur, depth := p.state()
	assert.Equal(t, barState{title: "Pushing", max: 3, value: 3}, cur)
	assert.Equal(t, 1, depth)

	p.PopState()
	cur, depth = p.state()
	assert.Equal(t, barState{title: "Merging", max: 10, value: 4}, cur)
	assert.Zero(t, depth)

	assert.False(t, p.WasCanceled())
	cancel()
	assert.True(t, p.WasCanceled())
}
