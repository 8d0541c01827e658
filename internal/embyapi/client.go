// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package embyapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/goccy/go-json"
	gobreaker "github.com/sony/gobreaker/v2"
	"golang.org/x/time/rate"

	"github.com/tomtom215/embysync/internal/config"
	"github.com/tomtom215/embysync/internal/logging"
	"github.com/tomtom215/embysync/internal/metrics"
	"github.com/tomtom215/embysync/internal/models"
)

// maxErrorBody bounds how much of a failed response is kept in errors.
const maxErrorBody = 512

// itemFields are the item fields a listing must carry.
const itemFields = "ProviderIds,ExternalUrls,MediaSources,PremiereDate,ProductionYear,OriginalTitle,UserData,ParentId"

// Interface is the per-server API surface the sync core uses.
type Interface interface {
	Server() config.MediaServer
	ListItems(ctx context.Context, userID string, q ItemQuery) (*ItemList, error)
	GetItem(ctx context.Context, userID, itemID string) (*models.Item, error)
	FindByProviders(ctx context.Context, userID, query string) ([]*models.Item, error)
	UpdateUserData(ctx context.Context, userID, itemID string, data *models.UserData) error
	SetFavorite(ctx context.Context, userID, itemID string, favorite bool) (*models.UserData, error)
	GetUsers(ctx context.Context) ([]models.User, error)
	GetPublicSystemInfo(ctx context.Context) (*models.SystemInfo, error)
}

var _ Interface = (*Client)(nil)

// Client talks to one server.
type Client struct {
	server      config.MediaServer
	baseURL     string
	userAgent   string
	httpClient  *http.Client
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker[[]byte]
	breakerName string
	attempts    uint
	delay       time.Duration
	concurrency int
	challenges  ChallengeHandler
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithChallengeHandler routes auth, proxy and TLS failures to h.
func WithChallengeHandler(h ChallengeHandler) Option {
	return func(c *Client) { c.challenges = h }
}

// WithConcurrency bounds the parallel page fetches of a listing.
func WithConcurrency(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.concurrency = n
		}
	}
}

// NewClient creates a client for server.
func NewClient(server config.MediaServer, httpCfg config.HTTPConfig, opts ...Option) *Client {
	limit := rate.Inf
	if httpCfg.RateLimit > 0 {
		limit = rate.Limit(httpCfg.RateLimit)
	}
	burst := httpCfg.Burst
	if burst < 1 {
		burst = 1
	}
	attempts := httpCfg.RetryAttempts
	if attempts == 0 {
		attempts = 1
	}
	userAgent := httpCfg.UserAgent
	if userAgent == "" {
		userAgent = "EmbySync"
	}

	name := "emby-" + server.Key
	c := &Client{
		server:      server,
		baseURL:     strings.TrimSuffix(server.URL, "/"),
		userAgent:   userAgent,
		httpClient:  &http.Client{},
		limiter:     rate.NewLimiter(limit, burst),
		breaker:     newBreaker(name, httpCfg),
		breakerName: name,
		attempts:    attempts,
		delay:       httpCfg.RetryDelay,
		concurrency: 4,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Server returns the server this client talks to.
func (c *Client) Server() config.MediaServer { return c.server }

// GetItem fetches one item as seen by userID.
func (c *Client) GetItem(ctx context.Context, userID, itemID string) (*models.Item, error) {
	q := url.Values{}
	q.Set("Fields", itemFields)
	var item models.Item
	if err := c.getJSON(ctx, "/Users/"+url.PathEscape(userID)+"/Items/"+url.PathEscape(itemID), q, &item); err != nil {
		return nil, fmt.Errorf("get item %s: %w", itemID, err)
	}
	return &item, nil
}

// FindByProviders returns the items matching any of the provider IDs in
// query, formatted as "imdb.tt0113277,tmdb.949".
func (c *Client) FindByProviders(ctx context.Context, userID, query string) ([]*models.Item, error) {
	q := url.Values{}
	q.Set("Recursive", "true")
	q.Set("Fields", itemFields)
	q.Set("AnyProviderIdEquals", query)
	var page models.ItemsResponse
	if err := c.getJSON(ctx, "/Users/"+url.PathEscape(userID)+"/Items", q, &page); err != nil {
		return nil, fmt.Errorf("find by providers %q: %w", query, err)
	}
	items, _ := c.decodeItems(page.Items)
	return items, nil
}

// UpdateUserData replaces the user data of an item.
func (c *Client) UpdateUserData(ctx context.Context, userID, itemID string, data *models.UserData) error {
	body, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("encode user data: %w", err)
	}
	path := "/Users/" + url.PathEscape(userID) + "/Items/" + url.PathEscape(itemID) + "/UserData"
	if _, err := c.do(ctx, http.MethodPost, path, nil, body); err != nil {
		return fmt.Errorf("update user data %s: %w", itemID, err)
	}
	return nil
}

// SetFavorite marks or unmarks an item as favorite and returns the user
// data the server reports afterwards.
func (c *Client) SetFavorite(ctx context.Context, userID, itemID string, favorite bool) (*models.UserData, error) {
	method := http.MethodPost
	if !favorite {
		method = http.MethodDelete
	}
	path := "/Users/" + url.PathEscape(userID) + "/FavoriteItems/" + url.PathEscape(itemID)
	data, err := c.do(ctx, method, path, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("set favorite %s: %w", itemID, err)
	}
	var ud models.UserData
	if len(bytes.TrimSpace(data)) == 0 {
		ud.IsFavorite = favorite
		return &ud, nil
	}
	if err := json.Unmarshal(data, &ud); err != nil {
		return nil, fmt.Errorf("decode favorite response: %w", err)
	}
	return &ud, nil
}

// GetUsers lists the server's users. It requires an administrator API key.
func (c *Client) GetUsers(ctx context.Context) ([]models.User, error) {
	var users []models.User
	if err := c.getJSON(ctx, "/Users", nil, &users); err != nil {
		return nil, fmt.Errorf("get users: %w", err)
	}
	return users, nil
}

// GetPublicSystemInfo fetches /System/Info/Public.
func (c *Client) GetPublicSystemInfo(ctx context.Context) (*models.SystemInfo, error) {
	var info models.SystemInfo
	if err := c.getJSON(ctx, "/System/Info/Public", nil, &info); err != nil {
		return nil, fmt.Errorf("get system info: %w", err)
	}
	return &info, nil
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}

// do performs one logical request: breaker, then retries, then the wire.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	data, err := c.execute(func() ([]byte, error) {
		return retry.DoWithData(
			func() ([]byte, error) { return c.attempt(ctx, method, path, query, body) },
			retry.Context(ctx),
			retry.Attempts(c.attempts),
			retry.Delay(c.delay),
			retry.DelayType(retry.BackOffDelay),
			retry.LastErrorOnly(true),
			retry.RetryIf(transient),
			retry.OnRetry(func(n uint, err error) {
				metrics.RequestRetries.WithLabelValues(c.server.Key).Inc()
				logging.Debug().Str("server", c.server.Key).Str("path", path).Uint("attempt", n+1).Err(err).Msg("Retrying request")
			}),
		)
	})
	if err != nil {
		if kind := challengeOf(err); kind != 0 && c.challenges != nil {
			c.challenges.HandleChallenge(c.server.Key, kind, err)
		}
		return nil, err
	}
	return data, nil
}

// attempt sends a single HTTP request.
func (c *Client) attempt(ctx context.Context, method, path string, query url.Values, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	fullURL := c.baseURL + path
	if len(query) > 0 {
		fullURL += "?" + query.Encode()
	}
	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, fullURL, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("X-Emby-Token", c.server.APIKey)
	req.Header.Set("X-Emby-Client", "EmbySync")
	req.Header.Set("X-Emby-Device-Name", "EmbySync")
	req.Header.Set("X-Emby-Device-Id", "embysync")
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return data, nil
	}
	if len(data) > maxErrorBody {
		data = data[:maxErrorBody]
	}
	return nil, &StatusError{
		Server: c.server.Key,
		Method: method,
		Path:   path,
		Status: resp.StatusCode,
		Body:   strings.TrimSpace(string(data)),
	}
}
