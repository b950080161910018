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
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jamesnetherton/m3u"
	"github.com/lucasduport/matchcast/pkg/catalog"
	"github.com/lucasduport/matchcast/pkg/control"
	"github.com/lucasduport/matchcast/pkg/types"
	"github.com/lucasduport/matchcast/pkg/utils"
)

const jsonContentType = "application/json; charset=utf-8"

// MatchStreams is the stream list of one match.
type MatchStreams struct {
	MatchID  string            `json:"matchId"`
	Title    string            `json:"title"`
	Override *control.Override `json:"override,omitempty"`
	Streams  []catalog.Stream  `json:"streams"`
}

func (c *Config) listMatches(ctx *gin.Context) {
	kind := ctx.Param("kind")
	if kind == "" {
		kind = "all"
	}
	c.relayCatalog(ctx, c.catalog, "/api/matches/"+url.PathEscape(kind))
}

func (c *Config) sourceStreams(ctx *gin.Context) {
	c.relayCatalog(ctx, c.catalog, "/api/stream/"+url.PathEscape(ctx.Param("source"))+"/"+url.PathEscape(ctx.Param("id")))
}

func (c *Config) listSports(ctx *gin.Context) {
	body, err := c.catalog.Sports(ctx.Request.Context())
	if err != nil {
		upstreamError(ctx, c.catalog.BaseURL()+"/api/sports", err)
		return
	}
	ctx.Data(http.StatusOK, jsonContentType, body)
}

func (c *Config) reedstreamsRelay(ctx *gin.Context) {
	p := ctx.Param("path")
	if q := ctx.Request.URL.RawQuery; q != "" {
		p += "?" + q
	}
	c.relayCatalog(ctx, c.reedstreams, p)
}

// relayCatalog serves an upstream JSON document with its ids coerced.
func (c *Config) relayCatalog(ctx *gin.Context, client *catalog.Client, path string) {
	body, err := client.Get(ctx.Request.Context(), path)
	if err != nil {
		upstreamError(ctx, client.BaseURL()+path, err)
		return
	}
	ctx.Data(http.StatusOK, jsonContentType, body)
}

// matchStreams gathers the streams of a match, putting the overridden
// source first when an admin pinned one.
func (c *Config) matchStreams(ctx context.Context, matchID string) (*MatchStreams, error) {
	match, err := c.catalog.FindMatch(ctx, matchID)
	if err != nil {
		return nil, err
	}

	override, err := c.control.Get(ctx, matchID)
	if err != nil {
		utils.WarnLog("Ignoring stream override for %s: %v", matchID, err)
		override = nil
	}

	streams := c.aggregator.Streams(ctx, match.Sources)
	if override != nil {
		streams = applyOverride(streams, override.Source)
	}
	if streams == nil {
		streams = []catalog.Stream{}
	}

	return &MatchStreams{
		MatchID:  match.ID.String(),
		Title:    match.Title,
		Override: override,
		Streams:  streams,
	}, nil
}

// applyOverride moves the streams of source to the front, keeping order.
func applyOverride(streams []catalog.Stream, source string) []catalog.Stream {
	out := make([]catalog.Stream, 0, len(streams))
	var rest []catalog.Stream
	for _, s := range streams {
		if s.Source == source || s.SourceIdentifier == source {
			out = append(out, s)
		} else {
			rest = append(rest, s)
		}
	}
	return append(out, rest...)
}

func (c *Config) getMatchStreams(ctx *gin.Context) {
	result, err := c.matchStreams(ctx.Request.Context(), ctx.Param("id"))
	if err != nil {
		c.catalogError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, types.APIResponse{Success: true, Data: result})
}

// getPlaylist renders the live matches as an M3U playlist. Tracks resolve
// their stream lazily through /api/clean-stream.
func (c *Config) getPlaylist(ctx *gin.Context) {
	matches, err := c.catalog.Matches(ctx.Request.Context(), "live")
	if err != nil {
		upstreamError(ctx, "live matches", err)
		return
	}

	base := c.publicBase(ctx)
	playlist := m3u.Playlist{Tracks: make([]m3u.Track, 0, len(matches))}
	for _, m := range matches {
		if len(m.Sources) == 0 {
			continue
		}
		tags := []m3u.Tag{
			{Name: "tvg-id", Value: m.ID.String()},
			{Name: "tvg-name", Value: m.Title},
			{Name: "group-title", Value: m.Category},
		}
		if m.Poster != "" {
			tags = append(tags, m3u.Tag{Name: "tvg-logo", Value: posterURL(c.catalog.BaseURL(), m.Poster)})
		}
		playlist.Tracks = append(playlist.Tracks, m3u.Track{
			Name:   m.Title,
			Length: -1,
			URI:    base + "/api/clean-stream?matchId=" + url.QueryEscape(m.ID.String()),
			Tags:   tags,
		})
	}

	ctx.Header("Content-Disposition", `attachment; filename="matchcast.m3u"`)
	ctx.Data(http.StatusOK, "audio/x-mpegurl", marshalPlaylist(&playlist))
}

func posterURL(base, poster string) string {
	if strings.HasPrefix(poster, "http") {
		return poster
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(poster, "/")
}

// marshalPlaylist writes p in extended M3U format.
func marshalPlaylist(p *m3u.Playlist) []byte {
	var into bytes.Buffer
	into.WriteString("#EXTM3U\n")
	for _, track := range p.Tracks {
		var buffer bytes.Buffer

		buffer.WriteString("#EXTINF:")
		buffer.WriteString(fmt.Sprintf("%d ", track.Length))
		for i := range track.Tags {
			if i == len(track.Tags)-1 {
				buffer.WriteString(fmt.Sprintf("%s=%q", track.Tags[i].Name, track.Tags[i].Value))
				continue
			}
			buffer.WriteString(fmt.Sprintf("%s=%q ", track.Tags[i].Name, track.Tags[i].Value))
		}

		into.WriteString(fmt.Sprintf("%s, %s\n%s\n", buffer.String(), track.Name, track.URI))
	}
	return into.Bytes()
}

func healthz(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, types.APIResponse{
		Success: true,
		Message: "ok",
		Data:    map[string]interface{}{"time": time.Now().UTC().Format(time.RFC3339)},
	})
}
