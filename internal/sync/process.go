// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package sync

import (
	"context"
	"errors"
	"fmt"

	"github.com/tomtom215/embysync/internal/audit"
	"github.com/tomtom215/embysync/internal/catalog"
	"github.com/tomtom215/embysync/internal/embyapi"
	"github.com/tomtom215/embysync/internal/media"
	"github.com/tomtom215/embysync/internal/metrics"
	"github.com/tomtom215/embysync/internal/models"
)

func (o *Orchestrator) enabled(server string) bool {
	for _, s := range o.settings.EnabledServers() {
		if s.Key == server {
			return true
		}
	}
	return false
}

func (o *Orchestrator) startProcess(selected string) (<-chan Report, error) {
	if o.pass != nil {
		return nil, ErrBusy
	}
	if selected != "" && !o.enabled(selected) {
		return nil, fmt.Errorf("%w: %s", ErrUnknownServer, selected)
	}
	j := o.newJob("process")
	j.report.OK = true

	entries := o.engine.Snapshot()
	o.progress.SetTitle("Processing media")
	o.progress.SetMaximum(len(entries))
	for i, e := range entries {
		if e.Record.SyncStatus() == media.NeedsUpdating {
			o.pushRecord(j, e.Record, selected)
		}
		o.progress.SetValue(i + 1)
	}
	o.log.Info("Processing started", "correlation_id", j.report.CorrelationID, "selected", selected, "requests", j.outstanding)
	if j.outstanding == 0 {
		o.finish(j)
	}
	return j.done, nil
}

func (o *Orchestrator) startSyncItem(h catalog.Handle, source string) (<-chan Report, error) {
	if o.pass != nil {
		return nil, ErrBusy
	}
	r, ok := o.engine.Get(h)
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownItem, h)
	}
	if source != "" && !r.State(source).Valid() {
		return nil, fmt.Errorf("%w: %s does not hold %q", ErrUnknownServer, source, r.Name)
	}
	j := o.newJob("sync_item")
	j.report.OK = true
	o.pushRecord(j, r, source)
	if j.outstanding == 0 {
		o.finish(j)
	}
	return j.done, nil
}

// pushRecord copies the source state of r to every server that differs.
// The source is the selected server's state, or the newest state.
func (o *Orchestrator) pushRecord(j *job, r *media.Record, selected string) {
	src := r.NewestState()
	if selected != "" {
		src = r.State(selected)
	}
	if !src.Valid() {
		return
	}
	for _, target := range r.ValidStates() {
		if target.ServerKey == src.ServerKey || target.Equals(src) {
			continue
		}
		o.push(j, r.Name, src.ServerKey, target, src)
	}
}

// push sends target's server the user data of want.
func (o *Orchestrator) push(j *job, name, source string, target, want *media.ServerUserState) {
	server, mediaID := target.ServerKey, target.MediaID
	user, ok := o.users[server]
	if !ok {
		err := fmt.Errorf("%s: %w", server, ErrNoAdmin)
		j.report.Failed++
		j.report.Errors = append(j.report.Errors, err.Error())
		return
	}

	entry := audit.Entry{
		CorrelationID: j.report.CorrelationID,
		Server:        server,
		MediaID:       mediaID,
		Name:          name,
		Source:        source,
		Before:        audit.StateOf(target),
		After:         audit.StateOf(want),
	}
	attrs := map[string]string{"media_id": mediaID, "name": name}

	// Favorite-only differences use the favorite endpoint; anything else
	// sends the whole user data, favorite included.
	favoriteOnly := target.Clone()
	favoriteOnly.IsFavorite = want.IsFavorite
	if favoriteOnly.Equals(want) {
		entry.Kind = audit.KindFavorite
		favorite := want.IsFavorite
		o.issue(UpdateFavorite, server, j, attrs,
			func(ctx context.Context) (any, error) {
				return o.source.SetFavorite(ctx, server, user.ID, mediaID, favorite)
			},
			func(result any, err error) {
				if !o.recordPush(j, entry, "favorite", err) {
					return
				}
				if ud, ok := result.(*models.UserData); ok {
					o.engine.ApplyUserData(server, mediaID, ud)
				}
			})
		return
	}

	entry.Kind = audit.KindData
	data := want.ToUserData()
	o.issue(UpdateData, server, j, attrs,
		func(ctx context.Context) (any, error) {
			return nil, o.source.UpdateUserData(ctx, server, user.ID, mediaID, &data)
		},
		func(_ any, err error) {
			if o.recordPush(j, entry, "data", err) {
				o.reload(j, server, mediaID)
			}
		})
}

// recordPush journals a push outcome and reports whether it succeeded.
func (o *Orchestrator) recordPush(j *job, entry audit.Entry, kind string, err error) bool {
	if err != nil {
		entry.Outcome = audit.OutcomeFailure
		entry.Error = err.Error()
		j.report.Failed++
		j.report.OK = false
		j.report.Errors = append(j.report.Errors, serverError(entry.Server, err))
		o.journal.Record(entry)
		return false
	}
	entry.Outcome = audit.OutcomeSuccess
	j.report.Pushed++
	metrics.UpdatesPushed.WithLabelValues(entry.Server, kind).Inc()
	o.journal.Record(entry)
	return true
}

// reload refreshes one item from its server after an update. A 404 means
// the item is gone and its state is dropped.
func (o *Orchestrator) reload(j *job, server, mediaID string) {
	user, ok := o.users[server]
	if !ok {
		return
	}
	o.issue(ReloadMediaData, server, j, map[string]string{"media_id": mediaID},
		func(ctx context.Context) (any, error) { return o.source.Item(ctx, server, user.ID, mediaID) },
		func(result any, err error) {
			switch {
			case errors.Is(err, embyapi.ErrNotFound):
				o.engine.RemoveServerItem(server, mediaID)
			case err != nil:
			default:
				if item, ok := result.(*models.Item); ok {
					o.engine.ReloadItem(server, item)
				}
			}
		})
}

// Reload refreshes one item from a server without pushing anything. Like
// every push it is refused while a listing pass runs, since the staged
// listing would overwrite the result on merge.
func (o *Orchestrator) Reload(ctx context.Context, server, mediaID string) (<-chan Report, error) {
	var ch <-chan Report
	var err error
	e := o.do(ctx, func() {
		if o.pass != nil {
			err = ErrBusy
			return
		}
		if _, ok := o.users[server]; !ok {
			err = fmt.Errorf("%w: %s has no resolved user", ErrUnknownServer, server)
			return
		}
		j := o.newJob("reload")
		j.report.OK = true
		o.reload(j, server, mediaID)
		ch = j.done
	})
	if e != nil {
		return nil, e
	}
	return ch, err
}

// Locate searches server for record h by its provider ids and folds the
// hits of the same kind into the catalog. It finds items a server holds
// under a different name or year than the listing matched.
func (o *Orchestrator) Locate(ctx context.Context, h catalog.Handle, server string) (<-chan Report, error) {
	var ch <-chan Report
	var err error
	e := o.do(ctx, func() {
		if o.pass != nil {
			err = ErrBusy
			return
		}
		r, ok := o.engine.Get(h)
		if !ok {
			err = fmt.Errorf("%w: %d", ErrUnknownItem, h)
			return
		}
		user, ok := o.users[server]
		if !ok || !o.enabled(server) {
			err = fmt.Errorf("%w: %s has no resolved user", ErrUnknownServer, server)
			return
		}
		query := r.ProviderQuery()
		if query == "" {
			err = fmt.Errorf("%w: %q", ErrNoProviders, r.Name)
			return
		}
		j := o.newJob("locate")
		j.report.OK = true
		ch = j.done
		if r.State(server).Valid() {
			o.finish(j)
			return
		}
		o.issue(ReloadMediaData, server, j, map[string]string{"providers": query},
			func(ctx context.Context) (any, error) { return o.source.FindByProviders(ctx, server, user.ID, query) },
			func(result any, err error) {
				if err != nil {
					j.report.OK = false
					j.report.Errors = append(j.report.Errors, serverError(server, err))
					return
				}
				items, _ := result.([]*models.Item)
				for _, item := range items {
					if media.KindOf(item.Type) != r.Kind {
						continue
					}
					o.engine.ReloadItem(server, item)
					j.report.Records++
				}
			})
	})
	if e != nil {
		return nil, e
	}
	return ch, err
}

// UpdateUserData pushes an explicit state to one server for record h.
func (o *Orchestrator) UpdateUserData(ctx context.Context, h catalog.Handle, server string, want media.ServerUserState) (<-chan Report, error) {
	var ch <-chan Report
	var err error
	e := o.do(ctx, func() {
		if o.pass != nil {
			err = ErrBusy
			return
		}
		r, ok := o.engine.Get(h)
		if !ok {
			err = fmt.Errorf("%w: %d", ErrUnknownItem, h)
			return
		}
		target := r.State(server)
		if !target.Valid() {
			err = fmt.Errorf("%w: %s does not hold %q", ErrUnknownServer, server, r.Name)
			return
		}
		j := o.newJob("update")
		j.report.OK = true
		if !target.Equals(&want) {
			o.push(j, r.Name, "", target, &want)
		}
		if j.outstanding == 0 {
			o.finish(j)
		}
		ch = j.done
	})
	if e != nil {
		return nil, e
	}
	return ch, err
}
