// EmbySync - Multi-Server Media User Data Synchronization
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/embysync

package embyapi

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/sourcegraph/conc/pool"

	"github.com/tomtom215/embysync/internal/logging"
	"github.com/tomtom215/embysync/internal/models"
)

// ItemQuery selects the items of a listing.
type ItemQuery struct {
	// Types are Emby item types, e.g. "Movie", "Episode".
	Types []string
	// MaxItems caps the listing; negative means no cap.
	MaxItems int
	// PageSize is the page length; zero means 500.
	PageSize int
}

// ItemList is a full listing.
type ItemList struct {
	Items []*models.Item
	// Total is what the server reported, before MaxItems.
	Total int
	// Skipped counts entries that failed to decode.
	Skipped int
}

// ListItems fetches every item matching q visible to userID.
func (c *Client) ListItems(ctx context.Context, userID string, q ItemQuery) (*ItemList, error) {
	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	if q.MaxItems >= 0 && q.MaxItems < pageSize {
		pageSize = max(q.MaxItems, 1)
	}
	path := "/Users/" + url.PathEscape(userID) + "/Items"

	first, err := c.fetchPage(ctx, path, q.Types, 0, pageSize)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}

	want := first.TotalRecordCount
	if q.MaxItems >= 0 && q.MaxItems < want {
		want = q.MaxItems
	}

	pages := [][]json.RawMessage{first.Items}
	if want > len(first.Items) && len(first.Items) > 0 {
		starts := make([]int, 0, (want-len(first.Items))/pageSize+1)
		for start := len(first.Items); start < want; start += pageSize {
			starts = append(starts, start)
		}
		rest := make([][]json.RawMessage, len(starts))

		p := pool.New().WithMaxGoroutines(c.concurrency).WithContext(ctx).WithCancelOnError()
		for i, start := range starts {
			limit := min(pageSize, want-start)
			p.Go(func(ctx context.Context) error {
				page, err := c.fetchPage(ctx, path, q.Types, start, limit)
				if err != nil {
					return fmt.Errorf("page at %d: %w", start, err)
				}
				rest[i] = page.Items
				return nil
			})
		}
		if err := p.Wait(); err != nil {
			return nil, fmt.Errorf("list items: %w", err)
		}
		pages = append(pages, rest...)
	}

	list := &ItemList{Total: first.TotalRecordCount}
	for _, raw := range pages {
		items, skipped := c.decodeItems(raw)
		list.Items = append(list.Items, items...)
		list.Skipped += skipped
	}
	if q.MaxItems >= 0 && len(list.Items) > q.MaxItems {
		list.Items = list.Items[:q.MaxItems]
	}
	return list, nil
}

func (c *Client) fetchPage(ctx context.Context, path string, types []string, start, limit int) (*models.ItemsResponse, error) {
	q := url.Values{}
	q.Set("Recursive", "true")
	q.Set("Fields", itemFields)
	q.Set("StartIndex", strconv.Itoa(start))
	q.Set("Limit", strconv.Itoa(limit))
	q.Set("SortBy", "SortName")
	if len(types) > 0 {
		q.Set("IncludeItemTypes", strings.Join(types, ","))
	}
	var page models.ItemsResponse
	if err := c.getJSON(ctx, path, q, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// decodeItems decodes entries one by one; a malformed entry is logged and
// skipped.
func (c *Client) decodeItems(raw []json.RawMessage) ([]*models.Item, int) {
	items := make([]*models.Item, 0, len(raw))
	skipped := 0
	for i, r := range raw {
		var item models.Item
		if err := json.Unmarshal(r, &item); err != nil || item.ID == "" {
			skipped++
			logging.Warn().Str("server", c.server.Key).Int("index", i).AnErr("error", err).Msg("Skipping malformed item")
			continue
		}
		items = append(items, &item)
	}
	return items, skipped
}
