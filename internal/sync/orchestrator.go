// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package sync

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"

	"github.com/tomtom215/embysync/internal/audit"
	"github.com/tomtom215/embysync/internal/catalog"
	"github.com/tomtom215/embysync/internal/logging"
	"github.com/tomtom215/embysync/internal/metrics"
	"github.com/tomtom215/embysync/internal/models"
)

// Deps are the collaborators of an Orchestrator. Source and Settings are
// required.
type Deps struct {
	Source   PayloadSource
	Settings SettingsProvider
	Logger   Logger
	Progress ProgressSink
	Emitter  catalog.Emitter
	Journal  Journal
}

type nopJournal struct{}

func (nopJournal) Record(audit.Entry) {}

// Orchestrator coordinates requests and merges. Create one with New and
// start it with Run.
type Orchestrator struct {
	source   PayloadSource
	settings SettingsProvider
	log      Logger
	progress ProgressSink
	journal  Journal
	engine   *catalog.Engine

	cmds    chan func()
	done    chan completion
	stopped chan struct{}
	started atomic.Bool

	inFlight        atomic.Int64
	cancelRequested atomic.Bool
	slots           *semaphore.Weighted
	now             func() time.Time

	// Owned by the Run goroutine.
	ctx        context.Context
	state      State
	counts     map[RequestType]map[string]int
	since      map[counterKey]time.Time
	stuck      map[counterKey]bool
	findings   []StuckCounter
	pending    map[uuid.UUID]*pendingRequest
	abandoned  map[uuid.UUID]struct{}
	users      map[string]models.User
	pass       *job
	lastMerge  time.Time
	lastReport *Report
}

type counterKey struct {
	typ    RequestType
	server string
}

// New builds an orchestrator and its catalog engine.
func New(d Deps) (*Orchestrator, error) {
	if d.Source == nil {
		return nil, errors.New("sync: payload source is required")
	}
	if d.Settings == nil {
		return nil, errors.New("sync: settings provider is required")
	}
	if d.Logger == nil {
		d.Logger = logging.NewComponentLogger("sync")
	}
	if d.Progress == nil {
		d.Progress = catalog.NopProgress{}
	}
	if d.Journal == nil {
		d.Journal = nopJournal{}
	}
	concurrency := d.Settings.SyncSettings().Concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	return &Orchestrator{
		source:    d.Source,
		settings:  d.Settings,
		log:       d.Logger,
		progress:  d.Progress,
		journal:   d.Journal,
		engine:    catalog.NewEngine(d.Emitter),
		cmds:      make(chan func()),
		done:      make(chan completion),
		stopped:   make(chan struct{}),
		slots:     semaphore.NewWeighted(int64(concurrency)),
		now:       time.Now,
		counts:    map[RequestType]map[string]int{},
		since:     map[counterKey]time.Time{},
		stuck:     map[counterKey]bool{},
		pending:   map[uuid.UUID]*pendingRequest{},
		abandoned: map[uuid.UUID]struct{}{},
		users:     map[string]models.User{},
	}, nil
}

// Engine exposes the catalog for reading.
func (o *Orchestrator) Engine() *catalog.Engine { return o.engine }

// IsRunning reports whether any request is in flight. It is safe to call
// from any goroutine.
func (o *Orchestrator) IsRunning() bool { return o.inFlight.Load() > 0 }

// Run owns the orchestrator until ctx ends. It may be called once.
func (o *Orchestrator) Run(ctx context.Context) error {
	if !o.started.CompareAndSwap(false, true) {
		return errors.New("sync: orchestrator already started")
	}
	o.ctx = ctx
	defer close(o.stopped)

	interval := o.settings.SyncSettings().WatchdogInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	o.log.Info("Orchestrator started", "watchdog_interval", interval.String())
	for {
		select {
		case <-ctx.Done():
			o.cancelAll("shutdown")
			o.log.Info("Orchestrator stopped")
			return ctx.Err()
		case fn := <-o.cmds:
			fn()
		case c := <-o.done:
			o.complete(c)
		case now := <-ticker.C:
			o.checkPending(now)
		}
	}
}

// do runs fn on the owner goroutine and waits for it.
func (o *Orchestrator) do(ctx context.Context, fn func()) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	finished := make(chan struct{})
	select {
	case o.cmds <- func() { fn(); close(finished) }:
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-finished:
		return nil
	case <-o.stopped:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Sync starts a listing pass over every enabled server. The channel
// yields the report once the pass merged, failed or was canceled.
func (o *Orchestrator) Sync(ctx context.Context) (<-chan Report, error) {
	var ch <-chan Report
	var err error
	if e := o.do(ctx, func() { ch, err = o.startSync() }); e != nil {
		return nil, e
	}
	return ch, err
}

// LoadUsers fetches the user list of every enabled server and resolves
// which user is synced on each.
func (o *Orchestrator) LoadUsers(ctx context.Context) (<-chan Report, error) {
	var ch <-chan Report
	if err := o.do(ctx, func() { ch = o.startLoadUsers() }); err != nil {
		return nil, err
	}
	return ch, nil
}

// TestServers checks that every enabled server answers.
func (o *Orchestrator) TestServers(ctx context.Context) (<-chan Report, error) {
	var ch <-chan Report
	if err := o.do(ctx, func() { ch = o.startTests() }); err != nil {
		return nil, err
	}
	return ch, nil
}

// Process pushes user data for every record that needs updating. With
// selected empty the newest state wins; otherwise the selected server's
// state is copied to the others.
func (o *Orchestrator) Process(ctx context.Context, selected string) (<-chan Report, error) {
	var ch <-chan Report
	var err error
	if e := o.do(ctx, func() { ch, err = o.startProcess(selected) }); e != nil {
		return nil, e
	}
	return ch, err
}

// SyncItem pushes one record, from source when given.
func (o *Orchestrator) SyncItem(ctx context.Context, h catalog.Handle, source string) (<-chan Report, error) {
	var ch <-chan Report
	var err error
	if e := o.do(ctx, func() { ch, err = o.startSyncItem(h, source) }); e != nil {
		return nil, e
	}
	return ch, err
}

// Cancel aborts everything in flight and returns to Idle.
func (o *Orchestrator) Cancel(ctx context.Context) error {
	o.cancelRequested.Store(true)
	if err := o.do(ctx, func() { o.cancelAll("canceled") }); err != nil {
		o.cancelRequested.Store(false)
		return err
	}
	return nil
}

// Status returns a snapshot of the orchestrator.
func (o *Orchestrator) Status(ctx context.Context) (Status, error) {
	var st Status
	err := o.do(ctx, func() { st = o.status() })
	return st, err
}

func (o *Orchestrator) status() Status {
	st := Status{
		State:   o.state.String(),
		Running: o.IsRunning(),
		Pending: len(o.pending),
		Catalog: o.engine.Stats(),
		Users:   make(map[string]string, len(o.users)),
		Stuck:   append([]StuckCounter(nil), o.findings...),
	}
	for t, hosts := range o.counts {
		for host, n := range hosts {
			if n == 0 {
				continue
			}
			if st.InFlight == nil {
				st.InFlight = map[string]map[string]int{}
			}
			if st.InFlight[t.String()] == nil {
				st.InFlight[t.String()] = map[string]int{}
			}
			st.InFlight[t.String()][host] = n
		}
	}
	for server, u := range o.users {
		st.Users[server] = u.Name
	}
	if !o.lastMerge.IsZero() {
		t := o.lastMerge
		st.LastMerge = &t
	}
	if o.lastReport != nil {
		r := *o.lastReport
		st.LastReport = &r
	}
	return st
}

// cancelAll aborts all requests and jobs. Owner only.
func (o *Orchestrator) cancelAll(reason string) {
	defer o.cancelRequested.Store(false)

	jobs := map[*job]struct{}{}
	for id, p := range o.pending {
		p.cancel()
		o.abandoned[id] = struct{}{}
		metrics.RequestsTotal.WithLabelValues(p.typ.String(), p.server, "canceled").Inc()
		if p.job != nil {
			jobs[p.job] = struct{}{}
		}
	}
	if o.pass != nil {
		jobs[o.pass] = struct{}{}
	}
	dropped := len(o.pending)
	clear(o.pending)
	for t, hosts := range o.counts {
		for host := range hosts {
			metrics.RequestsInFlight.WithLabelValues(t.String(), host).Set(0)
		}
	}
	clear(o.counts)
	clear(o.since)
	clear(o.stuck)
	o.inFlight.Store(0)
	o.engine.Discard()
	o.pass = nil
	o.state = Idle

	for j := range jobs {
		j.report.Canceled = true
		j.report.OK = false
		o.finish(j)
	}
	if dropped > 0 || len(jobs) > 0 {
		o.log.Warn("Requests canceled", "reason", reason, "requests", dropped, "jobs", len(jobs))
	}
}
