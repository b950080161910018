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
	"github.com/gin-gonic/gin"
	"github.com/lucasduport/matchcast/pkg/utils"
)

// handleProxy mounts a relay handler for GET, HEAD and OPTIONS. The OPTIONS
// handler is never reached, the CORS middleware answers first.
func handleProxy(r gin.IRoutes, path string, h gin.HandlerFunc) {
	r.GET(path, h)
	r.HEAD(path, h)
	r.OPTIONS(path, h)
}

func (c *Config) routes(r *gin.Engine) {
	r.GET("/healthz", healthz)

	api := r.Group("/api")

	// HLS relay
	handleProxy(api, "/proxy/manifest", c.proxyManifest)
	handleProxy(api, "/proxy/segment", c.proxySegment)
	handleProxy(api, "/proxy/stream", c.proxyStream)
	handleProxy(api, "/proxy/signed", c.proxySigned)
	handleProxy(api, "/stream/proxy", c.proxyStream)
	handleProxy(api, "/extract-stream", c.extractStream)
	handleProxy(api, "/clean-stream", c.cleanStream)

	// Catalog
	api.GET("/matches", c.listMatches)
	api.GET("/matches/:kind", c.listMatches)
	api.GET("/matches/id/:id/streams", c.getMatchStreams)
	api.GET("/stream/:source/:id", c.sourceStreams)
	api.GET("/sports", c.listSports)
	api.GET("/reedstreams/*path", c.reedstreamsRelay)
	api.GET("/playlist.m3u", c.getPlaylist)

	// Admin and telemetry
	api.GET("/stream-control", c.getStreamControl)
	api.POST("/stream-control", c.postStreamControl)
	api.POST("/analytics/:kind", c.postAnalytics)
	api.GET("/analytics/summary", c.getAnalyticsSummary)
	api.GET("/providers", c.listProviders)
	api.GET("/providers/:id", c.getProvider)
	api.POST("/providers/:id/report", c.reportProvider)

	// Shield
	api.GET("/shield/check", c.shieldCheck)
	api.POST("/shield/message", c.shieldMessage)
	handleProxy(api, "/shield/embed", c.shieldEmbed)

	utils.DebugLog("Routes initialized")
}
