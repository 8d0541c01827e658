// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	gorillaws "github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/middleware"
	intsync "github.com/tomtom215/embysync/internal/sync"
	"github.com/tomtom215/embysync/internal/websocket"
)

// Deps are the collaborators of the router. Hub and History are optional.
type Deps struct {
	Syncer   Syncer
	Settings intsync.SettingsProvider
	History  History
	Hub      *websocket.Hub
}

// NewRouter builds the serve-mode handler.
func NewRouter(cfg config.APIConfig, d Deps) (http.Handler, error) {
	if d.Syncer == nil || d.Settings == nil {
		return nil, errors.New("api: syncer and settings are required")
	}
	h := &Handler{syncer: d.Syncer, history: d.History, settings: d.Settings, wait: 10 * time.Minute}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: cfg.CORSOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", middleware.RequestIDHeader},
		ExposedHeaders: []string{middleware.RequestIDHeader},
		MaxAge:         86400,
	}))
	r.Use(middleware.PrometheusMetrics)
	r.Use(middleware.AccessLog)

	r.Get("/healthz", h.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		if cfg.RateLimitReqs > 0 {
			window := cfg.RateLimitWindow
			if window <= 0 {
				window = time.Minute
			}
			r.Use(httprate.LimitByIP(cfg.RateLimitReqs, window))
		}
		r.Get("/media", h.ListMedia)
		r.Get("/media/{handle}", h.GetMedia)
		r.Post("/media/{handle}/locate", h.Locate)
		r.Post("/sync", h.StartSync)
		r.Post("/process", h.Process)
		r.Post("/cancel", h.Cancel)
		r.Get("/status", h.Status)
		r.Get("/history", h.HistoryList)
		if d.Hub != nil {
			r.Get("/events", websocket.Handler(d.Hub, upgrader(cfg.CORSOrigins)))
		}
	})
	return r, nil
}

// upgrader accepts same-origin connections and the configured origins.
func upgrader(origins []string) gorillaws.Upgrader {
	allowed := make(map[string]bool, len(origins))
	wildcard := false
	for _, o := range origins {
		if o == "*" {
			wildcard = true
		}
		allowed[o] = true
	}
	return gorillaws.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 4096,
		CheckOrigin: func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			if origin == "" || wildcard || allowed[origin] {
				return true
			}
			return origin == "http://"+r.Host || origin == "https://"+r.Host
		},
	}
}
