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
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/grafana/regexp"
	"github.com/lucasduport/matchcast/pkg/catalog"
	"github.com/lucasduport/matchcast/pkg/relay"
	"github.com/lucasduport/matchcast/pkg/types"
	"github.com/lucasduport/matchcast/pkg/utils"
)

// errNoManifest is returned when an embed page carries no manifest literal.
var errNoManifest = errors.New("no m3u8 manifest found in page")

// m3u8Literal finds quoted manifest URLs, including JSON-escaped slashes.
var m3u8Literal = regexp.MustCompile(`["']((?:https?:)?(?:\\?/)[^"'\s<>]*?\.m3u8(?:[?#][^"'\s<>]*)?)["']`)

// findManifest returns the first manifest literal of page, resolved against
// pageURL.
func findManifest(page, pageURL string) (string, bool) {
	m := m3u8Literal.FindStringSubmatch(page)
	if m == nil {
		return "", false
	}

	literal := strings.ReplaceAll(m[1], `\/`, "/")
	literal = strings.ReplaceAll(literal, `\u0026`, "&")

	base, err := url.Parse(pageURL)
	if err != nil {
		return literal, true
	}
	ref, err := base.Parse(literal)
	if err != nil {
		return "", false
	}
	return ref.String(), true
}

// extractManifest fetches the embed page and locates its manifest. Results
// are cached per page.
func (c *Config) extractManifest(ctx context.Context, pageURL string, opts relay.FetchOptions) (string, error) {
	if c.extractCache != nil {
		if manifest, ok := c.extractCache.Get(pageURL); ok {
			utils.DebugLog("Extraction cache hit for %s", utils.MaskURL(pageURL))
			return manifest, nil
		}
	}

	opts.Accept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	page, resp, err := c.pages.FetchText(ctx, pageURL, opts)
	if err != nil {
		return "", err
	}

	manifest, ok := findManifest(page, resp.Request.URL.String())
	if !ok {
		return "", errNoManifest
	}

	utils.InfoLog("Extracted manifest from %s", utils.MaskURL(pageURL))
	if c.extractCache != nil {
		c.extractCache.Add(pageURL, manifest)
	}
	return manifest, nil
}

// embedTarget resolves the embed page of a request, from url= or from the
// best stream of matchId=.
func (c *Config) embedTarget(ctx *gin.Context) (string, bool) {
	if matchID := ctx.Query("matchId"); matchID != "" && ctx.Query("url") == "" {
		streams, err := c.matchStreams(ctx.Request.Context(), matchID)
		if err != nil {
			c.catalogError(ctx, err)
			return "", false
		}
		for _, s := range streams.Streams {
			if s.EmbedURL != "" {
				return s.EmbedURL, true
			}
		}
		ctx.AbortWithStatusJSON(http.StatusNotFound, types.APIResponse{
			Success: false,
			Error:   "No stream available for match " + matchID,
		})
		return "", false
	}
	return targetParam(ctx)
}

// extractStream serves /api/extract-stream.
func (c *Config) extractStream(ctx *gin.Context) {
	pageURL, ok := c.embedTarget(ctx)
	if !ok || c.blockedByFilter(ctx, pageURL) {
		return
	}

	manifest, err := c.extractManifest(ctx.Request.Context(), pageURL, fetchOptions(ctx, false))
	if err != nil {
		extractionError(ctx, pageURL, err)
		return
	}

	ctx.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Data: types.Extraction{
			Source:   pageURL,
			Manifest: manifest,
			Proxied:  c.proxiedManifestURL(ctx, manifest),
		},
	})
}

// cleanStream serves /api/clean-stream: the extracted manifest, rewritten.
func (c *Config) cleanStream(ctx *gin.Context) {
	pageURL, ok := c.embedTarget(ctx)
	if !ok || c.blockedByFilter(ctx, pageURL) {
		return
	}

	manifest, err := c.extractManifest(ctx.Request.Context(), pageURL, fetchOptions(ctx, false))
	if err != nil {
		extractionError(ctx, pageURL, err)
		return
	}
	if c.blockedByFilter(ctx, manifest) {
		return
	}
	c.serveManifest(ctx, manifest)
}

func extractionError(ctx *gin.Context, pageURL string, err error) {
	if errors.Is(err, errNoManifest) {
		utils.DebugLog("No manifest in %s", utils.MaskURL(pageURL))
		ctx.AbortWithStatusJSON(http.StatusNotFound, types.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}
	upstreamError(ctx, pageURL, err)
}

// catalogError maps catalog failures, unknown matches become 404.
func (c *Config) catalogError(ctx *gin.Context, err error) {
	if errors.Is(err, catalog.ErrMatchNotFound) {
		ctx.AbortWithStatusJSON(http.StatusNotFound, types.APIResponse{
			Success: false,
			Error:   err.Error(),
		})
		return
	}
	upstreamError(ctx, "catalog", err)
}
