// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package sync

import (
	"context"
	"sync/atomic"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/embyapi"
	"github.com/tomtom215/embysync/internal/models"
)

func (o *Orchestrator) startSync() (<-chan Report, error) {
	if o.pass != nil {
		return nil, ErrBusy
	}
	servers := o.settings.EnabledServers()
	if len(servers) < 2 {
		return nil, config.ErrNotEnoughServers
	}

	j := o.newJob("sync")
	o.pass = j
	o.engine.Discard()
	o.state = Requesting
	o.log.Info("Sync pass started", "correlation_id", j.report.CorrelationID, "servers", len(servers))

	o.progress.SetTitle("Loading users")
	j.awaitingUsers = true
	for _, s := range servers {
		if _, ok := o.users[s.Key]; ok {
			continue
		}
		if s.UserID != "" && s.User != "" {
			// Fully configured: no lookup needed.
			o.users[s.Key] = models.User{ID: s.UserID, Name: s.User}
			continue
		}
		o.requestUsers(s, j)
	}
	if o.isLastRequestOfType(GetUsers) {
		o.startListing(j)
	}
	return j.done, nil
}

func (o *Orchestrator) startLoadUsers() <-chan Report {
	j := o.newJob("users")
	j.report.Users = map[string][]models.User{}
	j.report.OK = true
	servers := o.settings.EnabledServers()
	for _, s := range servers {
		o.requestUsers(s, j)
	}
	if j.outstanding == 0 {
		o.finish(j)
	}
	return j.done
}

// requestUsers issues GetUsers for s. Its completion resolves the user
// and, when it was the last GetUsers of a pass, starts the listings.
func (o *Orchestrator) requestUsers(s config.MediaServer, j *job) {
	server := s.Key
	o.issue(GetUsers, server, j, nil,
		func(ctx context.Context) (any, error) { return o.source.Users(ctx, server) },
		func(result any, err error) {
			if err != nil {
				j.report.OK = false
				j.report.Errors = append(j.report.Errors, serverError(server, err))
			} else {
				users, _ := result.([]models.User)
				if j.report.Users != nil {
					j.report.Users[server] = users
				}
				if u, rerr := ResolveUser(s, users); rerr != nil {
					delete(o.users, server)
					j.report.OK = false
					j.report.Errors = append(j.report.Errors, rerr.Error())
					o.log.Error("No user to sync", "server", server, "error", rerr.Error())
				} else {
					o.users[server] = u
					o.log.Debug("User resolved", "server", server, "user", u.Name, "user_id", u.ID)
				}
			}
			if p := o.pass; p != nil && p.awaitingUsers && o.isLastRequestOfType(GetUsers) {
				o.startListing(p)
			}
		})
}

// startListing issues GetMediaList for every server with a user. A pass
// needs at least two.
func (o *Orchestrator) startListing(j *job) {
	j.awaitingUsers = false
	cfg := o.settings.SyncSettings()
	query := embyapi.ItemQuery{Types: cfg.Types.ItemTypes(), MaxItems: cfg.MaxItems, PageSize: cfg.PageSize}

	// Servers without a user already have their error on the report.
	var ready []config.MediaServer
	for _, s := range o.settings.EnabledServers() {
		if _, ok := o.users[s.Key]; ok {
			ready = append(ready, s)
		}
	}
	if len(ready) < 2 {
		o.log.Error("Sync pass aborted: fewer than two servers have a user", "correlation_id", j.report.CorrelationID, "ready", len(ready))
		j.report.OK = false
		o.endPass(j)
		return
	}

	j.listing = true
	o.progress.SetTitle("Loading media")
	o.progress.SetMaximum(len(ready))
	o.progress.SetValue(0)
	loaded := 0

	for _, s := range ready {
		server, userID := s.Key, o.users[s.Key].ID
		o.issue(GetMediaList, server, j, map[string]string{"user_id": userID},
			func(ctx context.Context) (any, error) { return o.source.Items(ctx, server, userID, query) },
			func(result any, err error) {
				res := ServerResult{Server: server}
				if err != nil {
					res.Error = err.Error()
					j.report.Errors = append(j.report.Errors, serverError(server, err))
				} else if list, ok := result.(*embyapi.ItemList); ok {
					o.engine.Stage(server, list.Items)
					res.Items, res.Skipped = len(list.Items), list.Skipped
					o.log.Info("Media list loaded", "server", server, "items", res.Items, "skipped", res.Skipped)
				}
				j.report.Servers = append(j.report.Servers, res)
				loaded++
				o.progress.SetValue(loaded)

				if o.pass == j && j.listing && o.isLastRequestOfType(GetMediaList) {
					o.mergePass(j)
				}
			})
	}
}

// mergePass runs the merge for j. It runs at most once per pass.
func (o *Orchestrator) mergePass(j *job) {
	if j.merged {
		return
	}
	j.merged = true
	j.listing = false

	if o.engine.Staged() < 2 {
		o.log.Error("Sync pass failed: fewer than two listings loaded", "correlation_id", j.report.CorrelationID, "staged", o.engine.Staged())
		o.engine.Discard()
		j.report.OK = false
		o.endPass(j)
		return
	}

	o.state = Merging
	ok := o.engine.Merge(o.ctx, cancelAware{ProgressSink: o.progress, canceled: &o.cancelRequested})
	j.report.Merged = ok
	j.report.Canceled = !ok
	j.report.OK = ok && len(j.report.Errors) == 0
	j.report.Records = o.engine.Len()
	if ok {
		o.lastMerge = o.now()
		stats := o.engine.Stats()
		o.log.Info("Merge committed", "correlation_id", j.report.CorrelationID,
			"records", stats.Records, "needs_updating", stats.NeedsUpdating, "syncable", stats.Syncable)
	} else {
		o.log.Warn("Merge canceled; catalog unchanged", "correlation_id", j.report.CorrelationID)
	}
	o.endPass(j)
}

func (o *Orchestrator) endPass(j *job) {
	if o.pass == j {
		o.pass = nil
	}
	o.state = Idle
	o.finish(j)
}

// cancelAware makes a merge observe Cancel between items.
type cancelAware struct {
	ProgressSink
	canceled *atomic.Bool
}

func (c cancelAware) WasCanceled() bool {
	return c.canceled.Load() || c.ProgressSink.WasCanceled()
}
