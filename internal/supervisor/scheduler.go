// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package supervisor

import (
	"context"
	"errors"
	"time"

	"github.com/tomtom215/embysync/internal/logging"
	intsync "github.com/tomtom215/embysync/internal/sync"
)

// Syncer starts passes; *intsync.Orchestrator satisfies it.
type Syncer interface {
	Sync(ctx context.Context) (<-chan intsync.Report, error)
}

var _ Syncer = (*intsync.Orchestrator)(nil)

// Scheduler starts a pass every interval. A tick that lands while a pass
// is running is skipped.
type Scheduler struct {
	syncer   Syncer
	interval time.Duration
	runs     func(intsync.Report)
}

// NewScheduler returns a scheduler; interval must be positive.
func NewScheduler(syncer Syncer, interval time.Duration) *Scheduler {
	return &Scheduler{syncer: syncer, interval: interval}
}

// OnReport registers a callback for every finished scheduled pass.
func (s *Scheduler) OnReport(fn func(intsync.Report)) { s.runs = fn }

// Serve implements suture.Service.
func (s *Scheduler) Serve(ctx context.Context) error {
	if s.interval <= 0 {
		return errors.New("scheduler: interval must be positive")
	}
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	ch, err := s.syncer.Sync(ctx)
	switch {
	case errors.Is(err, intsync.ErrBusy):
		logging.Debug().Msg("Scheduled sync skipped, a pass is already running")
		return
	case err != nil:
		logging.Warn().Err(err).Msg("Scheduled sync could not start")
		return
	}
	rep, err := intsync.Await(ctx, ch)
	if err != nil {
		return
	}
	logging.Info().
		Bool("ok", rep.OK).
		Bool("merged", rep.Merged).
		Int("records", rep.Records).
		Dur("took", rep.Duration()).
		Msg("Scheduled sync finished")
	if s.runs != nil {
		s.runs(rep)
	}
}

func (s *Scheduler) String() string { return "sync-scheduler" }
