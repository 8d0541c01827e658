// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package main

import (
	"context"
	"io"
	"os"
	"sync"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/schollz/progressbar/v3"

	"github.com/tomtom215/embysync/internal/catalog"
	intsync "github.com/tomtom215/embysync/internal/sync"
)

type barState struct {
	title string
	max   int
	value int
}

// barProgress renders merge and push progress on a terminal and reports
// cancellation once ctx ends.
type barProgress struct {
	ctx context.Context
	out io.Writer

	mu    sync.Mutex
	bar   *progressbar.ProgressBar
	cur   barState
	stack []barState
}

var _ intsync.ProgressSink = (*barProgress)(nil)

// newProgress returns a progress bar on stderr when it is a terminal, and a
// sink that only watches ctx otherwise.
func newProgress(ctx context.Context, quiet bool) intsync.ProgressSink {
	if quiet || !isatty.IsTerminal(os.Stderr.Fd()) {
		return ctxProgress{ctx: ctx}
	}
	return newBarProgress(ctx, os.Stderr)
}

func newBarProgress(ctx context.Context, out io.Writer) *barProgress {
	return &barProgress{ctx: ctx, out: out}
}

func (p *barProgress) render() {
	if p.bar != nil {
		_ = p.bar.Clear()
	}
	if p.cur.max <= 0 {
		p.bar = nil
		return
	}
	p.bar = progressbar.NewOptions(p.cur.max,
		progressbar.OptionSetWriter(p.out),
		progressbar.OptionSetDescription(p.cur.title),
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(30),
		progressbar.OptionThrottle(65*time.Millisecond),
		progressbar.OptionClearOnFinish(),
	)
	_ = p.bar.Set(p.cur.value)
}

func (p *barProgress) PushState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stack = append(p.stack, p.cur)
}

func (p *barProgress) PopState() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.stack) == 0 {
		return
	}
	p.cur = p.stack[len(p.stack)-1]
	p.stack = p.stack[:len(p.stack)-1]
	p.render()
}

func (p *barProgress) SetTitle(title string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur.title = title
	if p.bar != nil {
		p.bar.Describe(title)
	}
}

func (p *barProgress) SetMaximum(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur.max = n
	p.cur.value = 0
	p.render()
}

func (p *barProgress) SetValue(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.cur.value = n
	if p.bar == nil {
		return
	}
	_ = p.bar.Set(n)
	if n >= p.cur.max {
		_ = p.bar.Finish()
	}
}

func (p *barProgress) WasCanceled() bool { return p.ctx.Err() != nil }

// state is for tests.
func (p *barProgress) state() (barState, int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cur, len(p.stack)
}

// ctxProgress draws nothing.
type ctxProgress struct {
	catalog.NopProgress
	ctx context.Context
}

func (p ctxProgress) WasCanceled() bool { return p.ctx.Err() != nil }
