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
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucasduport/matchcast/pkg/shield"
	"github.com/lucasduport/matchcast/pkg/types"
	"github.com/lucasduport/matchcast/pkg/utils"
)

func (c *Config) shieldCheck(ctx *gin.Context) {
	target, ok := targetParam(ctx)
	if !ok {
		return
	}
	ctx.JSON(http.StatusOK, types.APIResponse{Success: true, Data: c.filter.Check(target)})
}

func (c *Config) shieldMessage(ctx *gin.Context) {
	var msg shield.Message
	if err := ctx.ShouldBindJSON(&msg); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: "Invalid message: " + err.Error()})
		return
	}

	reply, err := c.filter.Message(msg)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, types.APIResponse{Success: true, Data: reply})
}

// shieldEmbed serves a sanitized copy of an embed page. If sanitizing fails
// the page is served as fetched.
func (c *Config) shieldEmbed(ctx *gin.Context) {
	pageURL, ok := targetParam(ctx)
	if !ok || c.blockedByFilter(ctx, pageURL) {
		return
	}

	opts := fetchOptions(ctx, false)
	opts.Accept = "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8"
	page, resp, err := c.pages.FetchText(ctx.Request.Context(), pageURL, opts)
	if err != nil {
		upstreamError(ctx, pageURL, err)
		return
	}

	clean, report, err := c.sanitizer.Sanitize(strings.NewReader(page), resp.Request.URL.String())
	if err != nil {
		utils.WarnLog("Serving unsanitized page %s: %v", utils.MaskURL(pageURL), err)
		clean = page
	}

	ctx.Header("Cache-Control", "no-cache")
	ctx.Header("X-Shield-Removed", strconv.Itoa(report.Total()))
	ctx.Data(http.StatusOK, "text/html; charset=utf-8", []byte(clean))
}
