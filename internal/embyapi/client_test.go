// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package embyapi

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/models"
)

func testHTTPConfig() config.HTTPConfig {
	return config.HTTPConfig{
		UserAgent:     "embysync-test",
		Burst:         1,
		RetryAttempts: 3,
		RetryDelay:    time.Millisecond,
	}
}

func newTestClient(t *testing.T, h http.Handler, opts ...Option) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	server := config.MediaServer{Key: t.Name(), URL: srv.URL + "/", APIKey: "secret", Enabled: true}
	return NewClient(server, testHTTPConfig(), opts...)
}

func itemsHandler(t *testing.T, total int, malformedAt int) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "secret", r.Header.Get("X-Emby-Token"))
		assert.Equal(t, "/Users/u1/Items", r.URL.Path)
		assert.Equal(t, "Movie,Episode", r.URL.Query().Get("IncludeItemTypes"))
		start, _ := strconv.Atoi(r.URL.Query().Get("StartIndex"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("Limit"))

		var entries []string
		for i := start; i < start+limit && i < total; i++ {
			if i == malformedAt {
				entries = append(entries, `{"Id": 17, "Name": "broken"}`)
				continue
			}
			entries = append(entries, fmt.Sprintf(`{"Id":"%d","Name":"Movie %d","Type":"Movie"}`, i, i))
		}
		_, _ = fmt.Fprintf(w, `{"Items":[%s],"TotalRecordCount":%d,"StartIndex":%d}`, strings.Join(entries, ","), total, start)
	}
}

func TestListItemsFetchesAllPagesInOrder(t *testing.T) {
	c := newTestClient(t, itemsHandler(t, 1250, 600), WithConcurrency(3))

	list, err := c.ListItems(context.Background(), "u1", ItemQuery{Types: []string{"Movie", "Episode"}, MaxItems: -1, PageSize: 500})
	require.NoError(t, err)

	assert.Equal(t, 1250, list.Total)
	assert.Equal(t, 1, list.Skipped)
	require.Len(t, list.Items, 1249)
	assert.Equal(t, "0", list.Items[0].ID)
	assert.Equal(t, "599", list.Items[599].ID)
	assert.Equal(t, "601", list.Items[600].ID)
	assert.Equal(t, "1249", list.Items[1248].ID)
}

func TestListItemsHonorsMaxItems(t *testing.T) {
	var limits []string
	var mu sync.Mutex
	h := itemsHandler(t, 100, -1)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		limits = append(limits, r.URL.Query().Get("Limit"))
		mu.Unlock()
		h(w, r)
	}))

	list, err := c.ListItems(context.Background(), "u1", ItemQuery{Types: []string{"Movie", "Episode"}, MaxItems: 3})
	require.NoError(t, err)
	assert.Len(t, list.Items, 3)
	assert.Equal(t, []string{"3"}, limits)
}

func TestTransientStatusIsRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"Id":"abc","ServerName":"den","Version":"4.8.0.0"}`)
	}))

	info, err := c.GetPublicSystemInfo(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "den", info.ServerName)
	assert.Equal(t, int32(3), hits.Load())
}

func TestDefinitiveStatusIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "no such item", http.StatusNotFound)
	}))

	_, err := c.GetItem(context.Background(), "u1", "42")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, http.StatusNotFound, StatusCode(err))
	assert.Equal(t, int32(1), hits.Load())
}

func TestAuthFailureGoesToChallengeHandler(t *testing.T) {
	var hits atomic.Int32
	var got []ChallengeKind
	handler := ChallengeFunc(func(server string, kind ChallengeKind, err error) {
		got = append(got, kind)
	})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}), WithChallengeHandler(handler))

	_, err := c.GetUsers(context.Background())
	require.Error(t, err)
	assert.Equal(t, []ChallengeKind{ChallengeAuth}, got)
	assert.Equal(t, int32(1), hits.Load())
}

func TestCircuitOpensAfterConsecutiveFailures(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))

	for i := 0; i < 5; i++ {
		_, err := c.GetPublicSystemInfo(context.Background())
		require.Error(t, err)
		assert.False(t, errors.Is(err, ErrCircuitOpen))
	}
	assert.Equal(t, "open", c.BreakerState())

	_, err := c.GetPublicSystemInfo(context.Background())
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(5), hits.Load())
}

func TestSetFavoriteUsesMethodForDirection(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/Users/u1/FavoriteItems/42", r.URL.Path)
		fav := r.Method == http.MethodPost
		_, _ = fmt.Fprintf(w, `{"IsFavorite":%t,"Played":true,"PlayCount":2}`, fav)
	}))

	ud, err := c.SetFavorite(context.Background(), "u1", "42", true)
	require.NoError(t, err)
	assert.True(t, ud.IsFavorite)
	assert.Equal(t, int64(2), ud.PlayCount)

	ud, err = c.SetFavorite(context.Background(), "u1", "42", false)
	require.NoError(t, err)
	assert.False(t, ud.IsFavorite)
}

func TestUpdateUserDataPostsPayload(t *testing.T) {
	var got models.UserData
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/Users/u1/Items/42/UserData", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))

	played := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	err := c.UpdateUserData(context.Background(), "u1", "42", &models.UserData{
		Played:                true,
		PlayCount:             3,
		PlaybackPositionTicks: 12_000_000,
		LastPlayedDate:        models.NewTime(played),
	})
	require.NoError(t, err)
	assert.True(t, got.Played)
	assert.Equal(t, int64(3), got.PlayCount)
	assert.Equal(t, int64(12_000_000), got.PlaybackPositionTicks)
	require.NotNil(t, got.LastPlayedDate)
	assert.True(t, played.Equal(got.LastPlayedDate.Time))
}

func TestSetRoutesByServerKey(t *testing.T) {
	a := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `[{"Id":"u1","Name":"alice","Policy":{"IsAdministrator":true}}]`)
	}))
	set := NewSetOf(a)

	users, err := set.Users(context.Background(), a.Server().Key)
	require.NoError(t, err)
	require.Len(t, users, 1)
	assert.True(t, users[0].Policy.IsAdministrator)

	_, err = set.Users(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrUnknownServer)
	assert.Equal(t, []string{a.Server().Key}, set.Keys())
}

func TestCanceledContextStopsRetries(t *testing.T) {
	var hits atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.GetUsers(ctx)
	require.Error(t, err)
	assert.Zero(t, hits.Load())
}
