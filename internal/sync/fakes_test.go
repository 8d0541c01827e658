// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package sync

import (
	"context"
	"fmt"
	"strings"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tomtom215/embysync/internal/audit"
	"github.com/tomtom215/embysync/internal/catalog"
	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/embyapi"
	"github.com/tomtom215/embysync/internal/models"
)

// fakeSource serves canned data. Listings and user lookups of a gated
// server block until the gate is opened or the request is canceled.
type fakeSource struct {
	mu         gosync.Mutex
	users      map[string][]models.User
	items      map[string][]*models.Item
	gates      map[string]chan struct{}
	infoErr    map[string]error
	listCalls  map[string]int
	favorites  []string
	dataPushes []string
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		users:     map[string][]models.User{},
		items:     map[string][]*models.Item{},
		gates:     map[string]chan struct{}{},
		infoErr:   map[string]error{},
		listCalls: map[string]int{},
	}
}

func (f *fakeSource) gate(server string) chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	g := make(chan struct{})
	f.gates[server] = g
	return g
}

func (f *fakeSource) wait(ctx context.Context, server string) error {
	f.mu.Lock()
	g := f.gates[server]
	f.mu.Unlock()
	if g == nil {
		return nil
	}
	select {
	case <-g:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (f *fakeSource) add(server string, item *models.Item) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.items[server] = append(f.items[server], item)
}

func (f *fakeSource) find(server, id string) *models.Item {
	for _, it := range f.items[server] {
		if it.ID == id {
			return it
		}
	}
	return nil
}

func copyItem(it *models.Item) *models.Item {
	c := *it
	if it.UserData != nil {
		ud := *it.UserData
		c.UserData = &ud
	}
	return &c
}

func (f *fakeSource) Users(ctx context.Context, server string) ([]models.User, error) {
	if err := f.wait(ctx, server); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]models.User(nil), f.users[server]...), nil
}

func (f *fakeSource) Items(ctx context.Context, server, _ string, _ embyapi.ItemQuery) (*embyapi.ItemList, error) {
	if err := f.wait(ctx, server); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.listCalls[server]++
	list := &embyapi.ItemList{Total: len(f.items[server])}
	for _, it := range f.items[server] {
		list.Items = append(list.Items, copyItem(it))
	}
	return list, nil
}

func (f *fakeSource) Item(_ context.Context, server, _, itemID string) (*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.find(server, itemID)
	if it == nil {
		return nil, &embyapi.StatusError{Server: server, Status: 404}
	}
	return copyItem(it), nil
}

func (f *fakeSource) UpdateUserData(_ context.Context, server, _, itemID string, data *models.UserData) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.find(server, itemID)
	if it == nil {
		return &embyapi.StatusError{Server: server, Status: 404}
	}
	ud := *data
	it.UserData = &ud
	f.dataPushes = append(f.dataPushes, server+"/"+itemID)
	return nil
}

func (f *fakeSource) SetFavorite(_ context.Context, server, _, itemID string, favorite bool) (*models.UserData, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	it := f.find(server, itemID)
	if it == nil {
		return nil, &embyapi.StatusError{Server: server, Status: 404}
	}
	if it.UserData == nil {
		it.UserData = &models.UserData{}
	}
	it.UserData.IsFavorite = favorite
	f.favorites = append(f.favorites, server+"/"+itemID)
	ud := *it.UserData
	return &ud, nil
}

// FindByProviders matches any "key.value" pair of query, ignoring case.
func (f *fakeSource) FindByProviders(_ context.Context, server, _, query string) ([]*models.Item, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	want := map[string]bool{}
	for _, pair := range strings.Split(query, ",") {
		want[strings.ToLower(pair)] = true
	}
	var out []*models.Item
	for _, it := range f.items[server] {
		for k, v := range it.ProviderIDs {
			if want[strings.ToLower(k+"."+v)] {
				out = append(out, copyItem(it))
				break
			}
		}
	}
	return out, nil
}

func (f *fakeSource) SystemInfo(_ context.Context, server string) (*models.SystemInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.infoErr[server]; err != nil {
		return nil, err
	}
	return &models.SystemInfo{ID: "id-" + server, ServerName: server, Version: "4.8.0.0"}, nil
}

type logEntry struct {
	level string
	msg   string
	kv    []any
}

type recordingLogger struct {
	mu      gosync.Mutex
	entries []logEntry
}

func (l *recordingLogger) add(level, msg string, kv []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, logEntry{level, msg, kv})
}

func (l *recordingLogger) Debug(msg string, kv ...any) { l.add("debug", msg, kv) }
func (l *recordingLogger) Info(msg string, kv ...any)  { l.add("info", msg, kv) }
func (l *recordingLogger) Warn(msg string, kv ...any)  { l.add("warn", msg, kv) }
func (l *recordingLogger) Error(msg string, kv ...any) { l.add("error", msg, kv) }

func (l *recordingLogger) has(level, msgPrefix string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range l.entries {
		if e.level == level && strings.HasPrefix(e.msg, msgPrefix) {
			return true
		}
	}
	return false
}

type eventRecorder struct {
	mu     gosync.Mutex
	events []catalog.Event
}

func (r *eventRecorder) Emit(e catalog.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) count(kind catalog.EventKind) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, e := range r.events {
		if e.Kind == kind {
			n++
		}
	}
	return n
}

type journalRecorder struct {
	mu      gosync.Mutex
	entries []audit.Entry
}

func (j *journalRecorder) Record(e audit.Entry) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, e)
}

type flagProgress struct {
	catalog.NopProgress
	mu       gosync.Mutex
	canceled bool
}

func (p *flagProgress) set(v bool) {
	p.mu.Lock()
	p.canceled = v
	p.mu.Unlock()
}

func (p *flagProgress) WasCanceled() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canceled
}

type harness struct {
	o        *Orchestrator
	src      *fakeSource
	cfg      *config.Config
	log      *recordingLogger
	events   *eventRecorder
	journal  *journalRecorder
	progress *flagProgress
}

func testConfig(servers ...string) *config.Config {
	cfg := &config.Config{
		Sync: config.SyncConfig{
			Types:            config.SyncTypes{Movie: true},
			MaxItems:         -1,
			PageSize:         100,
			RequestTimeout:   5 * time.Second,
			WatchdogInterval: time.Hour,
			WatchdogGrace:    time.Hour,
			Concurrency:      4,
		},
	}
	for _, s := range servers {
		cfg.Servers = append(cfg.Servers, config.MediaServer{
			Key: s, URL: "http://" + s + ".local:8096", APIKey: "k", UserID: "u-" + s, User: "alice", Enabled: true,
		})
	}
	return cfg
}

func startHarness(t *testing.T, cfg *config.Config, src *fakeSource) *harness {
	t.Helper()
	h := &harness{
		src:      src,
		cfg:      cfg,
		log:      &recordingLogger{},
		events:   &eventRecorder{},
		journal:  &journalRecorder{},
		progress: &flagProgress{},
	}
	o, err := New(Deps{Source: src, Settings: cfg, Logger: h.log, Emitter: h.events, Journal: h.journal, Progress: h.progress})
	require.NoError(t, err)
	h.o = o

	ctx, cancel := context.WithCancel(context.Background())
	errc := make(chan error, 1)
	go func() { errc <- o.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		<-errc
	})
	return h
}

func (h *harness) status(t *testing.T) Status {
	t.Helper()
	st, err := h.o.Status(context.Background())
	require.NoError(t, err)
	return st
}

func (h *harness) await(t *testing.T, ch <-chan Report) Report {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	r, err := Await(ctx, ch)
	require.NoError(t, err)
	return r
}

func (h *harness) sync(t *testing.T) Report {
	t.Helper()
	ch, err := h.o.Sync(context.Background())
	require.NoError(t, err)
	return h.await(t, ch)
}

func movie(id, name string, year int, imdb string, ud models.UserData) *models.Item {
	return &models.Item{
		ID:             id,
		Name:           name,
		Type:           "Movie",
		ProductionYear: year,
		ProviderIDs:    map[string]string{"Imdb": imdb},
		UserData:       &ud,
	}
}

func lastPlayed(day int) *models.Time {
	return models.NewTime(time.Date(2024, 6, day, 20, 0, 0, 0, time.UTC))
}

func errorf(format string, args ...any) error { return fmt.Errorf(format, args...) }
