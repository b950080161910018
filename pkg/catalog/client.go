/*
 * matchcast is a project to relay live sports HLS streams to any player.
 * Copyright (C) 2025  Lucas Duport
 *
 * This program is free software: you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation, either version 3 of the License, or
 * (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License
 * along with this program.  If not, see <https://www.gnu.org/licenses/>.
 */

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lucasduport/matchcast/pkg/relay"
	"github.com/lucasduport/matchcast/pkg/utils"
	"go.uber.org/ratelimit"
)

// ErrMatchNotFound is returned when no listing knows the requested match.
var ErrMatchNotFound = errors.New("match not found")

const cacheSize = 256

// Client fetches JSON from one listing API. Responses have their ids
// coerced and are cached for a short time.
type Client struct {
	baseURL string
	http    *http.Client
	limiter ratelimit.Limiter
	cache   *expirable.LRU[string, []byte]
}

// NewClient returns a Client for baseURL. A non-positive rps disables rate
// limiting and a non-positive ttl disables caching.
func NewClient(baseURL string, rps int, ttl, timeout time.Duration) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
	}
	if rps > 0 {
		c.limiter = ratelimit.New(rps)
	} else {
		c.limiter = ratelimit.NewUnlimited()
	}
	if ttl > 0 {
		c.cache = expirable.NewLRU[string, []byte](cacheSize, nil, ttl)
	}
	return c
}

// BaseURL returns the upstream root.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Get fetches path (with its query) relative to the base URL.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	target := c.baseURL + "/" + strings.TrimLeft(path, "/")

	if c.cache != nil {
		if body, ok := c.cache.Get(target); ok {
			utils.DebugLog("Catalog cache hit: %s", target)
			return body, nil
		}
	}

	c.limiter.Take()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", utils.GetUpstreamUserAgent(false))
	if u, err := url.Parse(c.baseURL); err == nil {
		req.Header.Set("Referer", u.Scheme+"://"+u.Host+"/")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &relay.StatusError{Status: resp.StatusCode, URL: target}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog response: %w", err)
	}

	coerced, err := CoerceIDs(body)
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		c.cache.Add(target, coerced)
	}
	return coerced, nil
}

// Matches lists the matches of kind: live, all, all-today, or a sport id.
func (c *Client) Matches(ctx context.Context, kind string) ([]Match, error) {
	body, err := c.Get(ctx, "/api/matches/"+url.PathEscape(kind))
	if err != nil {
		return nil, err
	}

	var matches []Match
	if err := json.Unmarshal(listPayload(body), &matches); err != nil {
		return nil, fmt.Errorf("failed to decode matches: %w", err)
	}
	return matches, nil
}

// Sports returns the raw sports listing.
func (c *Client) Sports(ctx context.Context) ([]byte, error) {
	return c.Get(ctx, "/api/sports")
}

// Streams lists the streams a source offers for its match id.
func (c *Client) Streams(ctx context.Context, source, id string) ([]Stream, error) {
	body, err := c.Get(ctx, "/api/stream/"+url.PathEscape(source)+"/"+url.PathEscape(id))
	if err != nil {
		return nil, err
	}

	var streams []Stream
	if err := json.Unmarshal(listPayload(body), &streams); err != nil {
		return nil, fmt.Errorf("failed to decode streams: %w", err)
	}
	return streams, nil
}

// FindMatch looks the match up in the live listing first, then in the full
// one.
func (c *Client) FindMatch(ctx context.Context, id string) (*Match, error) {
	var lastErr error
	listed := false
	for _, kind := range []string{"live", "all"} {
		matches, err := c.Matches(ctx, kind)
		if err != nil {
			utils.WarnLog("Failed to list %s matches: %v", kind, err)
			lastErr = err
			continue
		}
		listed = true
		for i := range matches {
			if matches[i].ID.String() == id {
				return &matches[i], nil
			}
		}
	}
	if !listed {
		return nil, lastErr
	}
	return nil, fmt.Errorf("%w: %s", ErrMatchNotFound, id)
}
