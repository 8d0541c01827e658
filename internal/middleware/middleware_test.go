// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/tomtom215/embysync/internal/logging"
	"github.com/tomtom215/embysync/internal/metrics"
)

func TestRequestID(t *testing.T) {
	t.Parallel()

	var seen, correlation string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = GetRequestID(r.Context())
		correlation = logging.CorrelationIDFromContext(r.Context())
	}))

	t.Run("generates", func(t *testing.T) {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		if seen == "" {
			t.Fatal("no request id in context")
		}
		if rec.Header().Get(RequestIDHeader) != seen {
			t.Errorf("header %q != context %q", rec.Header().Get(RequestIDHeader), seen)
		}
		if correlation != seen {
			t.Errorf("correlation id %q != request id %q", correlation, seen)
		}
	})

	t.Run("reuses upstream", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(RequestIDHeader, "upstream-1")
		h.ServeHTTP(httptest.NewRecorder(), req)
		if seen != "upstream-1" {
			t.Errorf("got %q", seen)
		}
	})
}

func TestPrometheusMetricsUsesRoutePattern(t *testing.T) {
	r := chi.NewRouter()
	r.Use(PrometheusMetrics)
	r.Get("/api/v1/media/{handle}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	counter := metrics.APIRequestsTotal.WithLabelValues(http.MethodGet, "/api/v1/media/{handle}", "404")
	before := testutil.ToFloat64(counter)

	for _, path := range []string{"/api/v1/media/1", "/api/v1/media/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(counter) - before; got != 2 {
		t.Errorf("expected 2 requests under the route pattern, got %v", got)
	}
}

func TestStatusWriterKeepsFirstStatus(t *testing.T) {
	t.Parallel()
	rec := httptest.NewRecorder()
	sw := &statusWriter{ResponseWriter: rec, status: http.StatusOK}
	_, _ = sw.Write([]byte("ok"))
	sw.WriteHeader(http.StatusTeapot)
	if sw.status != http.StatusOK {
		t.Errorf("status = %d", sw.status)
	}
	if _, _, err := sw.Hijack(); err == nil {
		t.Error("recorder cannot hijack")
	}
}
