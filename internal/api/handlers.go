// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/tomtom215/embysync/internal/audit"
	"github.com/tomtom215/embysync/internal/catalog"
	"github.com/tomtom215/embysync/internal/media"
	intsync "github.com/tomtom215/embysync/internal/sync"
)

// Syncer is the orchestrator surface the API drives.
type Syncer interface {
	Sync(ctx context.Context) (<-chan intsync.Report, error)
	Process(ctx context.Context, selected string) (<-chan intsync.Report, error)
	Locate(ctx context.Context, h catalog.Handle, server string) (<-chan intsync.Report, error)
	Cancel(ctx context.Context) error
	Status(ctx context.Context) (intsync.Status, error)
	Engine() *catalog.Engine
}

// History reads the audit journal.
type History interface {
	Query(ctx context.Context, filter audit.QueryFilter) ([]audit.Entry, error)
}

var (
	_ Syncer  = (*intsync.Orchestrator)(nil)
	_ History = (*audit.Journal)(nil)
)

// Handler implements the routes.
type Handler struct {
	syncer   Syncer
	history  History
	settings intsync.SettingsProvider
	wait     time.Duration
}

func (h *Handler) serverKeys() []string {
	servers := h.settings.EnabledServers()
	keys := make([]string, len(servers))
	for i, s := range servers {
		keys[i] = s.Key
	}
	return keys
}

// Health reports liveness; 503 when the orchestrator does not answer.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	st, err := h.syncer.Status(ctx)
	if err != nil {
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, "orchestrator not responding", err)
		return
	}
	respondData(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"state":   st.State,
		"records": st.Catalog.Records,
		"stuck":   len(st.Stuck),
	}, 0, start)
}

// ListMedia returns records filtered by differences, issues and search.
// Absent flags fall back to the sync settings.
func (h *Handler) ListMedia(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cfg := h.settings.SyncSettings()
	q := r.URL.Query()

	f := catalog.Filter{
		OnlyDifferences: cfg.OnlyShowDifferences,
		ShowIssues:      cfg.ShowIssues,
		Servers:         h.serverKeys(),
		Search:          q.Get("search"),
	}
	if q.Has("differences") {
		f.OnlyDifferences = getBoolParam(r, "differences")
	}
	if q.Has("issues") {
		f.ShowIssues = getBoolParam(r, "issues")
	}
	providers := cfg.MissingProvider
	if v, ok := q["missing_provider"]; ok {
		providers = v
	}
	mask, err := media.ParseProviderKinds(providers)
	if err != nil {
		respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
		return
	}
	f.MissingProvider = mask

	entries := f.Apply(h.syncer.Engine().Snapshot())
	total := len(entries)
	offset := max(getIntParam(r, "offset", 0), 0)
	limit := getIntParam(r, "limit", 0)
	if offset > total {
		offset = total
	}
	entries = entries[offset:]
	if limit > 0 && limit < len(entries) {
		entries = entries[:limit]
	}

	servers := f.Servers
	views := make([]MediaView, len(entries))
	for i, e := range entries {
		views[i] = viewOf(e.Handle, e.Record, servers)
	}
	respondData(w, http.StatusOK, views, total, start)
}

func parseHandle(w http.ResponseWriter, r *http.Request) (catalog.Handle, bool) {
	n, err := strconv.ParseUint(chi.URLParam(r, "handle"), 10, 64)
	if err != nil || n == 0 {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "handle must be a positive integer", nil)
		return 0, false
	}
	return catalog.Handle(n), true
}

// GetMedia returns one record.
func (h *Handler) GetMedia(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	n, ok := parseHandle(w, r)
	if !ok {
		return
	}
	rec, ok := h.syncer.Engine().Get(n)
	if !ok {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "no such record", nil)
		return
	}
	respondData(w, http.StatusOK, viewOf(n, rec, h.serverKeys()), 1, start)
}

// Locate searches ?server= for the record by its provider ids.
func (h *Handler) Locate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	n, ok := parseHandle(w, r)
	if !ok {
		return
	}
	server := r.URL.Query().Get("server")
	if server == "" {
		respondError(w, r, http.StatusBadRequest, CodeValidation, "server is required", nil)
		return
	}
	ch, err := h.syncer.Locate(r.Context(), n, server)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	h.answer(w, r, ch, start)
}

// StartSync starts a pass. With wait=true it answers with the report.
func (h *Handler) StartSync(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ch, err := h.syncer.Sync(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	h.answer(w, r, ch, start)
}

// Process pushes pending updates, from ?server= when given.
func (h *Handler) Process(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ch, err := h.syncer.Process(r.Context(), r.URL.Query().Get("server"))
	if err != nil {
		respondErr(w, r, err)
		return
	}
	h.answer(w, r, ch, start)
}

func (h *Handler) answer(w http.ResponseWriter, r *http.Request, ch <-chan intsync.Report, start time.Time) {
	if !getBoolParam(r, "wait") {
		respondData(w, http.StatusAccepted, map[string]bool{"accepted": true}, 0, start)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), h.wait)
	defer cancel()
	rep, err := intsync.Await(ctx, ch)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, rep, 0, start)
}

// Cancel aborts all requests.
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if err := h.syncer.Cancel(r.Context()); err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]bool{"canceled": true}, 0, start)
}

// Status returns the orchestrator status.
func (h *Handler) Status(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	st, err := h.syncer.Status(r.Context())
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, st, 0, start)
}

// HistoryList queries the audit journal.
func (h *Handler) HistoryList(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	if h.history == nil {
		respondError(w, r, http.StatusNotFound, CodeNotFound, "audit journal disabled", nil)
		return
	}
	q := r.URL.Query()
	filter := audit.QueryFilter{
		Server:  q.Get("server"),
		MediaID: q.Get("media_id"),
		Outcome: audit.Outcome(q.Get("outcome")),
		Limit:   getIntParam(r, "limit", 100),
	}
	switch filter.Outcome {
	case "", audit.OutcomeSuccess, audit.OutcomeFailure:
	default:
		respondError(w, r, http.StatusBadRequest, CodeValidation, "outcome must be success or failure", nil)
		return
	}
	if v := q.Get("since"); v != "" {
		since, err := parseSince(v, time.Now())
		if err != nil {
			respondError(w, r, http.StatusBadRequest, CodeValidation, err.Error(), nil)
			return
		}
		filter.Since = since
	}
	entries, err := h.history.Query(r.Context(), filter)
	if err != nil {
		respondErr(w, r, err)
		return
	}
	respondData(w, http.StatusOK, entries, len(entries), start)
}

// parseSince accepts RFC 3339 or a duration back from now ("24h").
func parseSince(v string, now time.Time) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, v); err == nil {
		return t, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d < 0 {
		return time.Time{}, errors.New("since must be RFC 3339 or a positive duration")
	}
	return now.Add(-d), nil
}
