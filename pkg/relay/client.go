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

package relay

import (
	"compress/gzip"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
	"github.com/elnormous/contenttype"
	"github.com/lucasduport/matchcast/pkg/utils"
)

// MaxRedirects bounds the redirect chain followed for one fetch.
const MaxRedirects = 5

// maxTextBody caps manifests and embed pages read into memory.
const maxTextBody = 16 << 20

// Blocker decides whether a URL may be fetched at all.
type Blocker interface {
	Blocked(rawURL string) bool
}

// FetchOptions describes the viewer on whose behalf the fetch happens.
type FetchOptions struct {
	// Mobile selects the iOS Safari user agent.
	Mobile bool
	Accept string
	// Range is forwarded verbatim for segment requests.
	Range string
	// Media requests an unencoded body so bytes can be relayed as-is.
	Media bool
}

// Client performs upstream fetches.
type Client struct {
	http    *http.Client
	blocker Blocker
}

// Option configures a Client.
type Option func(*Client)

// WithBlocker rejects targets and redirect hops the blocker refuses.
func WithBlocker(b Blocker) Option {
	return func(c *Client) {
		c.blocker = b
	}
}

// WithTimeout sets an overall deadline per fetch. Media relays leave it unset
// so long segments are not cut.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.http.Timeout = d
	}
}

// NewClient returns a Client with the relay transport settings.
func NewClient(opts ...Option) *Client {
	transport := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	c := &Client{}
	c.http = &http.Client{Transport: transport, CheckRedirect: c.checkRedirect}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", MaxRedirects)
	}
	if c.blocker != nil && c.blocker.Blocked(req.URL.String()) {
		utils.WarnLog("Redirect to blocked host %s dropped", req.URL.Host)
		return fmt.Errorf("%w: redirect to %s", ErrBlocked, req.URL.Host)
	}
	return nil
}

// Fetch issues a GET for target. The caller owns the response body. A non-2xx
// upstream status is returned as *StatusError with the body already closed.
func (c *Client) Fetch(ctx context.Context, target string, opts FetchOptions) (*http.Response, error) {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid target url %q", utils.MaskURL(target))
	}
	if c.blocker != nil && c.blocker.Blocked(target) {
		return nil, fmt.Errorf("%w: %s", ErrBlocked, u.Host)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	profile := ProfileFor(target)
	req.Header.Set("User-Agent", utils.GetUpstreamUserAgent(opts.Mobile))
	req.Header.Set("Accept-Language", utils.GetLanguageHeader())
	req.Header.Set("Connection", "keep-alive")
	if opts.Accept != "" {
		req.Header.Set("Accept", opts.Accept)
	} else {
		req.Header.Set("Accept", "*/*")
	}
	if profile.Referer != "" {
		req.Header.Set("Referer", profile.Referer)
	}
	if profile.Origin != "" {
		req.Header.Set("Origin", profile.Origin)
	}
	if opts.Range != "" {
		req.Header.Set("Range", opts.Range)
	}
	if opts.Media {
		req.Header.Set("Accept-Encoding", "identity")
	} else {
		req.Header.Set("Accept-Encoding", "gzip, br")
	}

	utils.DebugLog("-> Upstream fetch: %s (mobile=%t, range=%q)", utils.MaskURL(target), opts.Mobile, opts.Range)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		resp.Body.Close()
		utils.DebugLog("-> Upstream response status: %d for %s", resp.StatusCode, utils.MaskURL(target))
		return nil, &StatusError{Status: resp.StatusCode, URL: utils.MaskURL(target)}
	}
	return resp, nil
}

// FetchText fetches target and returns its decoded body. The returned
// response is only useful for its headers; its body is already consumed.
func (c *Client) FetchText(ctx context.Context, target string, opts FetchOptions) (string, *http.Response, error) {
	opts.Media = false
	resp, err := c.Fetch(ctx, target, opts)
	if err != nil {
		return "", nil, err
	}
	defer resp.Body.Close()

	body, err := decodeBody(resp)
	if err != nil {
		return "", resp, err
	}
	defer body.Close()

	data, err := io.ReadAll(io.LimitReader(body, maxTextBody))
	if err != nil {
		return "", resp, fmt.Errorf("failed to read upstream body: %w", err)
	}
	return string(data), resp, nil
}

// decodeBody wraps the response body in the decoder its Content-Encoding
// names. Closing the result does not close resp.Body.
func decodeBody(resp *http.Response) (io.ReadCloser, error) {
	encoding := strings.ToLower(resp.Header.Get("Content-Encoding"))
	switch {
	case strings.Contains(encoding, "br"):
		resp.Header.Del("Content-Encoding")
		return io.NopCloser(brotli.NewReader(resp.Body)), nil
	case strings.Contains(encoding, "gzip"):
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to create gzip reader: %w", err)
		}
		resp.Header.Del("Content-Encoding")
		return gz, nil
	default:
		return io.NopCloser(resp.Body), nil
	}
}

// IsMobileUA reports whether the viewer's user agent is an Apple handheld.
func IsMobileUA(ua string) bool {
	return utils.IsMobileUserAgent(ua)
}

// MediaTypeOf parses the response Content-Type. A missing header yields the
// zero media type.
func MediaTypeOf(resp *http.Response) contenttype.MediaType {
	if resp == nil {
		return contenttype.MediaType{}
	}
	ct := resp.Header.Get("Content-Type")
	if ct == "" {
		return contenttype.MediaType{}
	}
	return contenttype.NewMediaType(ct)
}

// IsManifestMediaType reports whether mt is one of the HLS playlist types.
func IsManifestMediaType(mt contenttype.MediaType) bool {
	switch strings.ToLower(mt.Subtype) {
	case "vnd.apple.mpegurl", "x-mpegurl", "mpegurl":
		return true
	}
	return false
}
