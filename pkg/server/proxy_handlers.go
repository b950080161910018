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

package server

import (
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/lucasduport/matchcast/pkg/hls"
	"github.com/lucasduport/matchcast/pkg/relay"
	"github.com/lucasduport/matchcast/pkg/types"
	"github.com/lucasduport/matchcast/pkg/utils"
)

const maxSniffedManifest = 16 << 20

// proxyManifest serves /api/proxy/manifest.
func (c *Config) proxyManifest(ctx *gin.Context) {
	target, ok := targetParam(ctx)
	if !ok {
		return
	}
	if !hls.IsManifestURL(target) {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Error:   "url must point to an .m3u8 manifest",
		})
		return
	}
	if c.blockedByFilter(ctx, target) {
		return
	}
	c.serveManifest(ctx, target)
}

// proxySegment serves /api/proxy/segment.
func (c *Config) proxySegment(ctx *gin.Context) {
	target, ok := targetParam(ctx)
	if !ok || c.blockedByFilter(ctx, target) {
		return
	}
	c.serveSegment(ctx, target)
}

// proxyStream serves the generic relay. Manifests found by extension or by
// media type are rewritten, everything else is passed through.
func (c *Config) proxyStream(ctx *gin.Context) {
	target, ok := targetParam(ctx)
	if !ok || c.blockedByFilter(ctx, target) {
		return
	}
	if hls.IsManifestURL(target) {
		c.serveManifest(ctx, target)
		return
	}

	resp, err := c.relay.Fetch(ctx.Request.Context(), target, fetchOptions(ctx, true))
	if err != nil {
		upstreamError(ctx, target, err)
		return
	}
	defer resp.Body.Close()

	if relay.IsManifestMediaType(relay.MediaTypeOf(resp)) {
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxSniffedManifest))
		if err != nil {
			upstreamError(ctx, target, err)
			return
		}
		c.writeManifest(ctx, resp.Request.URL.String(), string(body))
		return
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" || contentType == hls.ContentTypeBinary {
		contentType = hls.ContentTypeForPath(target)
	}
	c.writeMedia(ctx, resp, contentType)
}

// proxySigned serves /api/proxy/signed. The manifest query usually carries
// the CDN signature, so it is propagated to every rewritten URI.
func (c *Config) proxySigned(ctx *gin.Context) {
	target, ok := targetParam(ctx)
	if !ok || c.blockedByFilter(ctx, target) {
		return
	}
	if !hls.IsManifestURL(target) {
		c.serveSegment(ctx, target)
		return
	}

	text, resp, err := c.relay.FetchText(ctx.Request.Context(), target, fetchOptions(ctx, false))
	if err != nil {
		upstreamError(ctx, target, err)
		return
	}

	final := resp.Request.URL
	opts := []hls.Option{hls.WithQuery(final.RawQuery)}
	if c.SignedWrapSegments {
		opts = append(opts, hls.WithProxy(c.publicBase(ctx)+"/api/proxy/signed?url="))
	}
	c.writeManifest(ctx, final.String(), text, opts...)
}

// serveManifest fetches, rewrites and serves one manifest.
func (c *Config) serveManifest(ctx *gin.Context, target string) {
	text, resp, err := c.relay.FetchText(ctx.Request.Context(), target, fetchOptions(ctx, false))
	if err != nil {
		upstreamError(ctx, target, err)
		return
	}
	c.writeManifest(ctx, resp.Request.URL.String(), text)
}

// writeManifest rewrites text against base, the URL the manifest was
// finally served from.
func (c *Config) writeManifest(ctx *gin.Context, base, text string, opts ...hls.Option) {
	b, err := hls.NewBase(base)
	if err != nil {
		upstreamError(ctx, base, err)
		return
	}
	rewritten := hls.New(b, opts...).Rewrite(text)
	summary := hls.Inspect(rewritten)

	utils.DebugLog("Manifest %s: %s, %d variants, %d segments, target %.0fs, encrypted %v",
		utils.MaskURL(base), summary.Type, summary.Variants, summary.Segments, summary.TargetDuration, summary.Encrypted)

	h := ctx.Writer.Header()
	h.Set("Cache-Control", "no-cache, no-store, must-revalidate")
	h.Set("Pragma", "no-cache")
	h.Set("Expires", "0")
	h.Set("X-Playlist-Type", string(summary.Type))
	ctx.Data(http.StatusOK, hls.ContentTypeManifest, []byte(rewritten))
}

// serveSegment relays media bytes with an extension-derived content type.
func (c *Config) serveSegment(ctx *gin.Context, target string) {
	resp, err := c.relay.Fetch(ctx.Request.Context(), target, fetchOptions(ctx, true))
	if err != nil {
		upstreamError(ctx, target, err)
		return
	}
	defer resp.Body.Close()

	c.writeMedia(ctx, resp, hls.ContentTypeForPath(target))
}

func (c *Config) writeMedia(ctx *gin.Context, resp *http.Response, contentType string) {
	h := ctx.Writer.Header()
	mergeHttpHeader(h, resp.Header, passthroughHeaders...)
	h.Set("Content-Type", contentType)
	h.Set("Cache-Control", "public, max-age=31536000, immutable")
	if h.Get("Accept-Ranges") == "" && resp.ContentLength >= 0 {
		h.Set("Accept-Ranges", "bytes")
	}
	if h.Get("Content-Length") == "" && resp.ContentLength >= 0 {
		h.Set("Content-Length", strconv.FormatInt(resp.ContentLength, 10))
	}

	ctx.Status(resp.StatusCode)
	relayBody(ctx, resp.Body)
}

// proxiedManifestURL is the manifest relay URL clients should play.
func (c *Config) proxiedManifestURL(ctx *gin.Context, manifest string) string {
	return c.publicBase(ctx) + "/api/proxy/manifest?url=" + url.QueryEscape(manifest)
}
