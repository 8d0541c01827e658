// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package sync

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tomtom215/embysync/internal/logging"
	"github.com/tomtom215/embysync/internal/metrics"
)

// job groups the requests of one caller-visible operation.
type job struct {
	report      Report
	done        chan Report
	outstanding int
	finished    bool

	// Pass phase; only set on sync passes.
	awaitingUsers bool
	listing       bool
	merged        bool
}

func (o *Orchestrator) newJob(kind string) *job {
	return &job{
		report: Report{
			Kind:          kind,
			CorrelationID: logging.GenerateCorrelationID(),
			Started:       o.now(),
		},
		done: make(chan Report, 1),
	}
}

// finish publishes the report once.
func (o *Orchestrator) finish(j *job) {
	if j.finished {
		return
	}
	j.finished = true
	j.report.Finished = o.now()
	r := j.report
	o.lastReport = &r
	j.done <- r
	close(j.done)
}

type pendingRequest struct {
	id       uuid.UUID
	typ      RequestType
	server   string
	attrs    map[string]string
	issuedAt time.Time
	cancel   context.CancelFunc
	job      *job
	// then runs on the owner goroutine after the counter is released.
	then func(result any, err error)
}

type completion struct {
	id      uuid.UUID
	result  any
	err     error
	elapsed time.Duration
}

type call func(ctx context.Context) (any, error)

// issue registers a request and starts it. The counter is incremented
// before the goroutine starts, so a completion can never be observed
// ahead of its own issue.
func (o *Orchestrator) issue(typ RequestType, server string, j *job, attrs map[string]string, fn call, then func(any, error)) {
	timeout := o.settings.SyncSettings().RequestTimeout
	if timeout <= 0 {
		timeout = time.Minute
	}
	parent := o.ctx
	if j != nil {
		parent = logging.ContextWithCorrelationID(parent, j.report.CorrelationID)
	}
	ctx, cancel := context.WithTimeout(parent, timeout)

	p := &pendingRequest{
		id:       uuid.New(),
		typ:      typ,
		server:   server,
		attrs:    attrs,
		issuedAt: o.now(),
		cancel:   cancel,
		job:      j,
		then:     then,
	}
	o.pending[p.id] = p
	o.inc(typ, server)
	if j != nil {
		j.outstanding++
	}

	go func(id uuid.UUID) {
		start := time.Now()
		var result any
		err := o.slots.Acquire(ctx, 1)
		if err == nil {
			result, err = fn(ctx)
			o.slots.Release(1)
		}
		select {
		case o.done <- completion{id: id, result: result, err: err, elapsed: time.Since(start)}:
		case <-o.stopped:
		}
	}(p.id)
}

// complete handles one completion on the owner goroutine.
func (o *Orchestrator) complete(c completion) {
	p, ok := o.pending[c.id]
	if !ok {
		if _, gone := o.abandoned[c.id]; gone {
			delete(o.abandoned, c.id)
			return
		}
		o.log.Error("Completion for unknown request; counter may have leaked", "request_id", c.id.String())
		return
	}
	delete(o.pending, c.id)
	p.cancel()

	// The counter is released first, whatever the outcome.
	o.dec(p.typ, p.server)

	outcome := "success"
	if c.err != nil {
		outcome = "error"
		o.logFailure(p, c.err)
	}
	metrics.RecordRequest(p.typ.String(), p.server, outcome, c.elapsed)

	if p.then != nil {
		p.then(c.result, c.err)
	}

	if j := p.job; j != nil {
		j.outstanding--
		if j.outstanding == 0 && j != o.pass {
			o.finish(j)
		}
	}
}

func (o *Orchestrator) logFailure(p *pendingRequest, err error) {
	kv := []any{"type", p.typ.String(), "server", p.server, "error", err.Error()}
	for k, v := range p.attrs {
		kv = append(kv, k, v)
	}
	if p.job != nil {
		kv = append(kv, "correlation_id", p.job.report.CorrelationID)
	}
	if errors.Is(err, context.Canceled) {
		o.log.Debug("Request canceled", kv...)
		return
	}
	o.log.Error("Request failed", kv...)
}

func (o *Orchestrator) inc(typ RequestType, server string) {
	hosts := o.counts[typ]
	if hosts == nil {
		hosts = map[string]int{}
		o.counts[typ] = hosts
	}
	if hosts[server] == 0 {
		o.since[counterKey{typ, server}] = o.now()
	}
	hosts[server]++
	o.inFlight.Add(1)
	metrics.RequestsInFlight.WithLabelValues(typ.String(), server).Inc()
}

func (o *Orchestrator) dec(typ RequestType, server string) {
	hosts := o.counts[typ]
	if hosts[server] <= 0 {
		o.log.Error("Request counter would go negative", "type", typ.String(), "server", server)
		return
	}
	hosts[server]--
	o.inFlight.Add(-1)
	metrics.RequestsInFlight.WithLabelValues(typ.String(), server).Dec()
	if hosts[server] == 0 {
		key := counterKey{typ, server}
		delete(o.since, key)
		delete(o.stuck, key)
	}
}

// isLastRequestOfType reports whether no request of typ is in flight on
// any server. Callers check it after the decrement.
func (o *Orchestrator) isLastRequestOfType(typ RequestType) bool {
	for _, n := range o.counts[typ] {
		if n > 0 {
			return false
		}
	}
	return true
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

func serverError(server string, err error) string {
	return fmt.Sprintf("%s: %s", server, errString(err))
}
