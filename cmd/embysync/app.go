// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/embysync/internal/audit"
	"github.com/tomtom215/embysync/internal/catalog"
	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/embyapi"
	"github.com/tomtom215/embysync/internal/logging"
	intsync "github.com/tomtom215/embysync/internal/sync"
)

// app is the runtime of a one-shot command: an orchestrator running in
// the background and, when enabled, the audit journal.
type app struct {
	cfg     *config.Config
	orch    *intsync.Orchestrator
	journal *audit.Journal

	cancel context.CancelFunc
	done   chan error
}

type appOptions struct {
	source   intsync.PayloadSource
	progress intsync.ProgressSink
	emitter  catalog.Emitter
	// recorder wraps the journal, e.g. to also publish pushes on the bus.
	recorder func(intsync.Journal) intsync.Journal
	noAudit  bool
}

var newSource = func(cfg *config.Config) intsync.PayloadSource {
	return embyapi.NewSet(cfg)
}

func newApp(cfg *config.Config, opts appOptions) (*app, error) {
	a := &app{cfg: cfg}
	if !opts.noAudit {
		j, err := openJournal(cfg.Audit)
		if err != nil {
			return nil, err
		}
		a.journal = j
	}

	var journal intsync.Journal
	if a.journal != nil {
		journal = a.journal
	}
	if opts.recorder != nil {
		journal = opts.recorder(journal)
	}
	if opts.source == nil {
		opts.source = newSource(cfg)
	}

	orch, err := intsync.New(intsync.Deps{
		Source:   opts.source,
		Settings: cfg,
		Logger:   logging.NewComponentLogger("sync"),
		Progress: opts.progress,
		Emitter:  opts.emitter,
		Journal:  journal,
	})
	if err != nil {
		a.closeJournal()
		return nil, err
	}
	a.orch = orch
	return a, nil
}

// openJournal opens the badger journal, or returns nil when auditing is
// disabled.
func openJournal(cfg config.AuditConfig) (*audit.Journal, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	store, err := audit.OpenBadger(cfg.Path, cfg.InMemory)
	if err != nil {
		return nil, fmt.Errorf("open audit journal at %s (is serve already running?): %w", cfg.Path, err)
	}
	return audit.NewJournal(store, cfg.Retention, 0), nil
}

// start runs the orchestrator until ctx ends or close is called.
func (a *app) start(ctx context.Context) {
	ctx, a.cancel = context.WithCancel(ctx)
	a.done = make(chan error, 1)
	go func() { a.done <- a.orch.Run(ctx) }()
}

func (a *app) close() {
	if a.cancel != nil {
		a.cancel()
		if err := <-a.done; err != nil && !errors.Is(err, context.Canceled) {
			logging.Warn().Err(err).Msg("Orchestrator stopped with error")
		}
	}
	a.closeJournal()
}

func (a *app) closeJournal() {
	if a.journal == nil {
		return
	}
	if err := a.journal.Close(); err != nil {
		logging.Warn().Err(err).Msg("Failed to close audit journal")
	}
}

// wait runs a job to completion.
func wait(ctx context.Context, ch <-chan intsync.Report, err error) (intsync.Report, error) {
	if err != nil {
		return intsync.Report{}, err
	}
	rep, err := intsync.Await(ctx, ch)
	if err != nil {
		return rep, err
	}
	return rep, reportError(rep)
}

// syncPass lists every server and merges the result.
func (a *app) syncPass(ctx context.Context) (intsync.Report, error) {
	ch, err := a.orch.Sync(ctx)
	return wait(ctx, ch, err)
}
