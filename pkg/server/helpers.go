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
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucasduport/matchcast/pkg/relay"
	"github.com/lucasduport/matchcast/pkg/types"
	"github.com/lucasduport/matchcast/pkg/utils"
)

// passthroughHeaders are copied from upstream media responses.
var passthroughHeaders = []string{"Content-Length", "Content-Range", "Accept-Ranges"}

type values []string

func (vs values) contains(s string) bool {
	for _, v := range vs {
		if v == s {
			return true
		}
	}
	return false
}

// mergeHttpHeader copies the listed headers from src to dst without
// duplicating identical values. With no keys every header is copied.
func mergeHttpHeader(dst, src http.Header, keys ...string) {
	for k, vv := range src {
		if len(keys) > 0 && !values(keys).contains(http.CanonicalHeaderKey(k)) {
			continue
		}
		for _, v := range vv {
			if values(dst.Values(k)).contains(v) {
				continue
			}
			dst.Add(k, v)
		}
	}
}

// publicBase is the absolute root clients should use to reach this server.
func (c *Config) publicBase(ctx *gin.Context) string {
	if c.PublicBaseURL != "" {
		return strings.TrimRight(c.PublicBaseURL, "/")
	}

	scheme := "http"
	if ctx.Request.TLS != nil {
		scheme = "https"
	}
	if proto := ctx.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = strings.TrimSpace(strings.Split(proto, ",")[0])
	}
	host := ctx.Request.Host
	if fwd := ctx.GetHeader("X-Forwarded-Host"); fwd != "" {
		host = strings.TrimSpace(strings.Split(fwd, ",")[0])
	}
	return scheme + "://" + host
}

func fetchOptions(ctx *gin.Context, media bool) relay.FetchOptions {
	opts := relay.FetchOptions{
		Mobile: relay.IsMobileUA(ctx.GetHeader("User-Agent")),
		Media:  media,
	}
	if media {
		opts.Range = ctx.GetHeader("Range")
	}
	return opts
}

// targetParam reads and decodes the url query parameter.
func targetParam(ctx *gin.Context) (string, bool) {
	raw := ctx.Query("url")
	if raw == "" {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{
			Success: false,
			Error:   "Missing url parameter",
		})
		return "", false
	}
	return relay.DecodeTarget(raw), true
}

// blockedByFilter answers 204 for targets the ad filter rejects.
func (c *Config) blockedByFilter(ctx *gin.Context, target string) bool {
	if d := c.filter.Check(target); d.Blocked {
		utils.DebugLog("Relay refused blocked target %s (%s)", utils.MaskURL(target), d.Pattern)
		ctx.AbortWithStatus(http.StatusNoContent)
		return true
	}
	return false
}

// upstreamError maps a fetch failure to the relay's response.
func upstreamError(ctx *gin.Context, target string, err error) {
	switch {
	case errors.Is(err, relay.ErrBlocked):
		ctx.AbortWithStatus(http.StatusNoContent)
		return
	case errors.Is(err, context.Canceled):
		utils.DebugLog("Client cancelled request for %s", utils.MaskURL(target))
		ctx.Abort()
		return
	}

	if status := relay.StatusOf(err, 0); status != 0 {
		utils.WarnLog("Upstream %s returned %d", utils.MaskURL(target), status)
		ctx.AbortWithStatusJSON(status, types.APIResponse{
			Success: false,
			Error:   fmt.Sprintf("Upstream returned %d", status),
		})
		return
	}

	utils.PrintErrorAndReturn(utils.UpstreamError(target, err))
	ctx.AbortWithStatusJSON(http.StatusInternalServerError, types.APIResponse{
		Success: false,
		Error:   err.Error(),
	})
}

// relayBody copies body to the client in 64K chunks, flushing each one.
func relayBody(ctx *gin.Context, body io.Reader) {
	w := ctx.Writer
	buf := make([]byte, 64*1024)

	for {
		select {
		case <-ctx.Request.Context().Done():
			utils.DebugLog("Client cancelled stream for URL: %s", utils.MaskURL(ctx.Request.URL.String()))
			return
		default:
		}

		n, rerr := body.Read(buf)
		if n > 0 {
			if _, werr := w.Write(buf[:n]); werr != nil {
				utils.DebugLog("Client write error: %v", werr)
				return
			}
			w.Flush()
		}
		if rerr != nil {
			if rerr != io.EOF {
				utils.DebugLog("Upstream read error: %v", rerr)
			}
			return
		}
	}
}
