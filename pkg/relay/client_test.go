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
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/andybalholm/brotli"
	"github.com/cristalhq/base64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type prefixBlocker []string

func (p prefixBlocker) Blocked(rawURL string) bool {
	for _, prefix := range p {
		if strings.HasPrefix(rawURL, prefix) {
			return true
		}
	}
	return false
}

func TestDecodeTarget(t *testing.T) {
	target := "https://cdn.example.com/live/index.m3u8?token=a+b/c"

	tests := []struct {
		name string
		in   string
		want string
	}{
		{"clear", target, target},
		{"std", base64.StdEncoding.EncodeToString([]byte(target)), target},
		{"url safe", base64.URLEncoding.EncodeToString([]byte(target)), target},
		{"raw url", base64.RawURLEncoding.EncodeToString([]byte(target)), target},
		{"not http once decoded", base64.StdEncoding.EncodeToString([]byte("ftp://x")), base64.StdEncoding.EncodeToString([]byte("ftp://x"))},
		{"garbage", "%%%", "%%%"},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DecodeTarget(tt.in))
		})
	}
}

func TestProfileFor(t *testing.T) {
	p := ProfileFor("https://rr.strmd.top/secure/abc/index.m3u8")
	assert.Equal(t, "https://embedsports.top/", p.Referer)
	assert.Equal(t, "https://embedsports.top", p.Origin)

	p = ProfileFor("https://cdn.unknown.net:8443/a.ts")
	assert.Equal(t, "https://cdn.unknown.net:8443/", p.Referer)
	assert.Equal(t, "https://cdn.unknown.net:8443", p.Origin)

	assert.Equal(t, HeaderProfile{}, ProfileFor("not a url"))
}

func TestFetchSendsProfileHeaders(t *testing.T) {
	var got http.Header
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Clone()
		w.WriteHeader(http.StatusPartialContent)
		w.Write([]byte("x")) // nolint: errcheck
	}))
	defer upstream.Close()

	resp, err := NewClient().Fetch(context.Background(), upstream.URL+"/seg.ts", FetchOptions{Mobile: true, Range: "bytes=0-1", Media: true})
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, http.StatusPartialContent, resp.StatusCode)
	assert.Contains(t, got.Get("User-Agent"), "iPhone")
	assert.Equal(t, "bytes=0-1", got.Get("Range"))
	assert.Equal(t, "identity", got.Get("Accept-Encoding"))
	assert.Equal(t, upstream.URL+"/", got.Get("Referer"))
	assert.Equal(t, upstream.URL, got.Get("Origin"))
}

func TestFetchStatusError(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer upstream.Close()

	_, err := NewClient().Fetch(context.Background(), upstream.URL+"/index.m3u8", FetchOptions{})
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusForbidden, se.Status)
	assert.Equal(t, http.StatusForbidden, StatusOf(err, http.StatusInternalServerError))
	assert.Equal(t, http.StatusInternalServerError, StatusOf(errors.New("boom"), http.StatusInternalServerError))
}

func TestFetchRejectsBadTargets(t *testing.T) {
	c := NewClient(WithBlocker(prefixBlocker{"https://ads.example.com"}))

	_, err := c.Fetch(context.Background(), "ftp://cdn.example.com/a", FetchOptions{})
	assert.Error(t, err)

	_, err = c.Fetch(context.Background(), "https://ads.example.com/pop.js", FetchOptions{})
	assert.ErrorIs(t, err, ErrBlocked)
}

func TestFetchRedirects(t *testing.T) {
	blocked := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ad")) // nolint: errcheck
	}))
	defer blocked.Close()

	var hops int
	var loop *httptest.Server
	loop = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/to-ad":
			http.Redirect(w, r, blocked.URL+"/pop", http.StatusFound)
		case "/loop":
			hops++
			http.Redirect(w, r, loop.URL+"/loop", http.StatusFound)
		default:
			http.Redirect(w, r, loop.URL+"/final", http.StatusFound)
		}
	}))
	defer loop.Close()

	c := NewClient(WithBlocker(prefixBlocker{blocked.URL + "/"}))

	_, err := c.Fetch(context.Background(), loop.URL+"/to-ad", FetchOptions{})
	assert.ErrorIs(t, err, ErrBlocked)

	_, err = c.Fetch(context.Background(), loop.URL+"/loop", FetchOptions{})
	require.Error(t, err)
	assert.Equal(t, MaxRedirects, hops)
}

func TestFetchTextDecodesBody(t *testing.T) {
	const page = "<html><body>https://cdn.example.com/x.m3u8</body></html>"

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var buf bytes.Buffer
		switch r.URL.Path {
		case "/br":
			bw := brotli.NewWriter(&buf)
			bw.Write([]byte(page)) // nolint: errcheck
			bw.Close()
			w.Header().Set("Content-Encoding", "br")
		case "/gz":
			gw := gzip.NewWriter(&buf)
			gw.Write([]byte(page)) // nolint: errcheck
			gw.Close()
			w.Header().Set("Content-Encoding", "gzip")
		default:
			buf.WriteString(page)
		}
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write(buf.Bytes()) // nolint: errcheck
	}))
	defer upstream.Close()

	c := NewClient()
	for _, p := range []string{"/br", "/gz", "/plain"} {
		text, resp, err := c.FetchText(context.Background(), upstream.URL+p, FetchOptions{})
		require.NoError(t, err, p)
		assert.Equal(t, page, text, p)
		assert.Equal(t, "html", MediaTypeOf(resp).Subtype)
	}
}

type closeTracker struct {
	io.Reader
	closed bool
}

func (c *closeTracker) Close() error {
	c.closed = true
	return nil
}

func TestDecodeBodyReturnsCloser(t *testing.T) {
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	_, err := gw.Write([]byte("#EXTM3U"))
	require.NoError(t, err)
	require.NoError(t, gw.Close())

	upstream := &closeTracker{Reader: bytes.NewReader(buf.Bytes())}
	resp := &http.Response{Header: http.Header{"Content-Encoding": {"gzip"}}, Body: upstream}

	body, err := decodeBody(resp)
	require.NoError(t, err)
	_, isGzip := body.(*gzip.Reader)
	assert.True(t, isGzip)

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "#EXTM3U", string(data))
	assert.NoError(t, body.Close())
	assert.False(t, upstream.closed)
	assert.Empty(t, resp.Header.Get("Content-Encoding"))

	plain := &closeTracker{Reader: strings.NewReader("#EXTM3U")}
	body, err = decodeBody(&http.Response{Header: http.Header{}, Body: plain})
	require.NoError(t, err)
	require.NoError(t, body.Close())
	assert.False(t, plain.closed)
}

func TestManifestMediaType(t *testing.T) {
	resp := &http.Response{Header: http.Header{}}
	resp.Header.Set("Content-Type", "application/vnd.apple.mpegurl")
	assert.True(t, IsManifestMediaType(MediaTypeOf(resp)))

	resp.Header.Set("Content-Type", "audio/x-mpegURL; charset=utf-8")
	assert.True(t, IsManifestMediaType(MediaTypeOf(resp)))

	resp.Header.Set("Content-Type", "video/MP2T")
	assert.False(t, IsManifestMediaType(MediaTypeOf(resp)))

	assert.False(t, IsManifestMediaType(MediaTypeOf(nil)))
	assert.True(t, IsMobileUA("Mozilla/5.0 (iPad; CPU OS 17_0 like Mac OS X)"))
	assert.False(t, IsMobileUA("Mozilla/5.0 (Linux; Android 14)"))
}
