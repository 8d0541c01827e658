// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/logging"
	"github.com/tomtom215/embysync/internal/models"
	intsync "github.com/tomtom215/embysync/internal/sync"
)

// Error codes.
const (
	CodeBusy            = "BUSY"
	CodeNotFound        = "NOT_FOUND"
	CodeValidation      = "VALIDATION_ERROR"
	CodeUnavailable     = "UNAVAILABLE"
	CodeTimeout         = "TIMEOUT"
	CodeInternal        = "INTERNAL_ERROR"
	CodeNotEnoughServer = "NOT_ENOUGH_SERVERS"
)

// sanitizeLogValue strips control characters so request data cannot forge
// log lines.
func sanitizeLogValue(s string) string {
	return strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}

func respondJSON(w http.ResponseWriter, status int, response *models.APIResponse) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")

	data, err := json.Marshal(response)
	if err != nil {
		logging.Error().Err(err).Msg("Failed to marshal JSON response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	if _, err := w.Write(data); err != nil {
		logging.Debug().Err(err).Msg("Failed to write JSON response")
	}
}

func respondData(w http.ResponseWriter, status int, data interface{}, count int, start time.Time) {
	respondJSON(w, status, &models.APIResponse{
		Status: "success",
		Data:   data,
		Metadata: models.Metadata{
			Timestamp:   time.Now().UTC(),
			QueryTimeMS: time.Since(start).Milliseconds(),
			Count:       count,
		},
	})
}

func respondError(w http.ResponseWriter, r *http.Request, status int, code, message string, err error) {
	if err != nil && status >= http.StatusInternalServerError {
		logging.Ctx(r.Context()).Error().
			Str("code", code).
			Str("path", sanitizeLogValue(r.URL.Path)).
			Str("error", sanitizeLogValue(err.Error())).
			Msg("API error")
	}
	respondJSON(w, status, &models.APIResponse{
		Status:   "error",
		Metadata: models.Metadata{Timestamp: time.Now().UTC()},
		Error:    &models.APIError{Code: code, Message: message},
	})
}

// respondErr maps domain errors to status codes.
func respondErr(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, intsync.ErrBusy):
		respondError(w, r, http.StatusConflict, CodeBusy, err.Error(), nil)
	case errors.Is(err, config.ErrNotEnoughServers):
		respondError(w, r, http.StatusConflict, CodeNotEnoughServer, err.Error(), nil)
	case errors.Is(err, intsync.ErrUnknownServer), errors.Is(err, intsync.ErrUnknownItem):
		respondError(w, r, http.StatusNotFound, CodeNotFound, err.Error(), nil)
	case errors.Is(err, intsync.ErrNoProviders):
		respondError(w, r, http.StatusUnprocessableEntity, CodeValidation, err.Error(), nil)
	case errors.Is(err, intsync.ErrStopped):
		respondError(w, r, http.StatusServiceUnavailable, CodeUnavailable, err.Error(), nil)
	case errors.Is(err, context.DeadlineExceeded):
		respondError(w, r, http.StatusGatewayTimeout, CodeTimeout, "timed out waiting for the orchestrator", err)
	default:
		respondError(w, r, http.StatusInternalServerError, CodeInternal, "internal error", err)
	}
}

func getIntParam(r *http.Request, key string, defaultValue int) int {
	v := r.URL.Query().Get(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultValue
	}
	return n
}

func getBoolParam(r *http.Request, key string) bool {
	b, _ := strconv.ParseBool(r.URL.Query().Get(key))
	return b
}
