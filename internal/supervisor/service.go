// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package supervisor

import (
	"context"
	"errors"
	"fmt"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/embysync/internal/logging"
)

// Func adapts a Serve-shaped function into a named suture.Service.
type Func struct {
	name  string
	serve func(ctx context.Context) error
}

// NewFunc wraps serve.
func NewFunc(name string, serve func(ctx context.Context) error) *Func {
	return &Func{name: name, serve: serve}
}

// Serve implements suture.Service.
func (f *Func) Serve(ctx context.Context) error { return f.serve(ctx) }

func (f *Func) String() string { return f.name }

// Once wraps a service that must not be restarted. When it returns before
// ctx ends the whole tree is terminated.
type Once struct {
	svc suture.Service
}

// NewOnce wraps svc.
func NewOnce(svc suture.Service) *Once { return &Once{svc: svc} }

// Serve implements suture.Service.
func (o *Once) Serve(ctx context.Context) error {
	err := o.svc.Serve(ctx)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	if err == nil {
		err = errors.New("returned unexpectedly")
	}
	logging.Error().Err(err).Str("service", o.String()).Msg("Non-restartable service stopped; shutting down")
	return fmt.Errorf("%s: %w: %w", o.String(), err, suture.ErrTerminateSupervisorTree)
}

func (o *Once) String() string { return fmt.Sprint(o.svc) }
