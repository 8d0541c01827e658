// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

// Command embysync keeps watched state, play counts, resume positions and
// favorites aligned across several Emby or Jellyfin servers.
//
// One-shot commands (sync, process, test, users, collections, history)
// build an orchestrator, run one job and exit. serve runs the orchestrator
// under a supervisor tree with the HTTP API, the websocket change feed and
// an optional periodic scheduler.
//
// Configuration is layered with koanf: built-in defaults, then the YAML
// file (--config, CONFIG_PATH, ./config.yaml or the user config dir), then
// EMBYSYNC_* environment variables.
//
// SIGINT and SIGTERM cancel the running job; a sync pass interrupted that
// way leaves the previous catalog untouched.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand().ExecuteContext(ctx)
	stop()
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "embysync:", err)
		}
		os.Exit(exitCode(err))
	}
}
