// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/tomtom215/embysync/internal/api"
	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/events"
	"github.com/tomtom215/embysync/internal/logging"
	"github.com/tomtom215/embysync/internal/supervisor"
	intsync "github.com/tomtom215/embysync/internal/sync"
	"github.com/tomtom215/embysync/internal/websocket"
)

func newServeCommand(ctx *commandContext) *cobra.Command {
	var (
		listen  string
		syncNow bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API with the orchestrator under supervision",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.API.Listen = listen
			}
			return runServe(cmd.Context(), cfg, syncNow)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "Listen address (overrides api.listen)")
	cmd.Flags().BoolVar(&syncNow, "sync-now", false, "Start a sync pass as soon as the orchestrator runs")
	return cmd
}

func runServe(ctx context.Context, cfg *config.Config, syncNow bool) error {
	bus := events.NewBus(0, logging.NewWatermillAdapter())
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Warn().Err(err).Msg("Failed to close event bus")
		}
	}()

	a, err := newApp(cfg, appOptions{
		emitter: bus,
		recorder: func(j intsync.Journal) intsync.Journal {
			if j == nil {
				return bus
			}
			return bus.Tee(j)
		},
	})
	if err != nil {
		return err
	}
	defer a.close()

	hub := websocket.NewHub()
	forwarder, err := events.NewForwarder(bus, hub)
	if err != nil {
		return err
	}

	deps := api.Deps{Syncer: a.orch, Settings: cfg, Hub: hub}
	if a.journal != nil {
		deps.History = a.journal
	}
	router, err := api.NewRouter(cfg.API, deps)
	if err != nil {
		return err
	}
	server := api.NewServer(cfg.API.Listen, router, cfg.API.ShutdownTimeout)

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.API.ShutdownTimeout,
	})
	if a.journal != nil {
		tree.AddDataService(supervisor.NewFunc("audit-journal", a.journal.Serve))
	}
	tree.AddSyncService(supervisor.NewOnce(supervisor.NewFunc("orchestrator", a.orch.Run)))
	tree.AddSyncService(hub)
	tree.AddSyncService(forwarder)
	if cfg.Sync.Interval > 0 {
		tree.AddSyncService(supervisor.NewScheduler(a.orch, cfg.Sync.Interval))
	}
	tree.AddAPIService(server)

	logging.Info().
		Str("listen", cfg.API.Listen).
		Int("servers", len(cfg.EnabledServers())).
		Dur("interval", cfg.Sync.Interval).
		Bool("audit", a.journal != nil).
		Msg("Starting EmbySync in serve mode")

	if syncNow {
		go func() {
			if _, err := a.orch.Sync(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logging.Warn().Err(err).Msg("Initial sync could not start")
			}
		}()
	}

	err = tree.Serve(ctx)
	if report, rerr := tree.UnstoppedServiceReport(); rerr == nil && len(report) > 0 {
		for _, u := range report {
			logging.Warn().Str("service", u.Name).Msg("Service did not stop before the shutdown timeout")
		}
	}
	if errors.Is(err, context.Canceled) {
		logging.Info().Msg("EmbySync stopped")
		return nil
	}
	return err
}

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the status of a running serve instance",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.API.Listen
			}
			st, err := fetchStatus(cmd.Context(), baseURL(addr))
			if err != nil {
				return err
			}
			if ctx.jsonOutput() {
				return writeJSON(cmd, st)
			}
			printStatus(cmd, st)
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Address of the serve instance (default api.listen)")
	return cmd
}

// baseURL turns a listen address such as ":8095" into a URL.
func baseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return strings.TrimRight(addr, "/")
	}
	if strings.HasPrefix(addr, ":") {
		addr = "127.0.0.1" + addr
	}
	return "http://" + addr
}

type statusEnvelope struct {
	Status string         `json:"status"`
	Data   intsync.Status `json:"data"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func fetchStatus(ctx context.Context, base string) (intsync.Status, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/api/v1/status", nil)
	if err != nil {
		return intsync.Status{}, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return intsync.Status{}, fmt.Errorf("connect to %s: %w; is serve running?", base, err)
	}
	defer resp.Body.Close()

	var env statusEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return intsync.Status{}, fmt.Errorf("decode status: %w", err)
	}
	if env.Error != nil {
		return intsync.Status{}, fmt.Errorf("status: %s (%s)", env.Error.Message, env.Error.Code)
	}
	return env.Data, nil
}
