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

package hls

import (
	"strings"

	"github.com/grafov/m3u8"
)

// PlaylistType classifies a decoded manifest.
type PlaylistType string

const (
	PlaylistMaster  PlaylistType = "master"
	PlaylistMedia   PlaylistType = "media"
	PlaylistUnknown PlaylistType = "unknown"
)

// Summary describes a manifest for logs and response headers.
type Summary struct {
	Type           PlaylistType
	Variants       int
	Segments       int
	TargetDuration float64
	Encrypted      bool
}

// Inspect decodes text leniently. Upstreams regularly serve playlists the
// strict decoder rejects, so a failure just yields PlaylistUnknown.
func Inspect(text string) Summary {
	playlist, listType, err := m3u8.DecodeFrom(strings.NewReader(text), false)
	if err != nil || playlist == nil {
		return Summary{Type: PlaylistUnknown}
	}

	switch listType {
	case m3u8.MASTER:
		master, ok := playlist.(*m3u8.MasterPlaylist)
		if !ok {
			return Summary{Type: PlaylistUnknown}
		}
		return Summary{Type: PlaylistMaster, Variants: len(master.Variants)}
	case m3u8.MEDIA:
		media, ok := playlist.(*m3u8.MediaPlaylist)
		if !ok {
			return Summary{Type: PlaylistUnknown}
		}
		return Summary{
			Type:           PlaylistMedia,
			Segments:       int(media.Count()),
			TargetDuration: media.TargetDuration,
			Encrypted:      strings.Contains(text, "#EXT-X-KEY:METHOD=AES"),
		}
	}
	return Summary{Type: PlaylistUnknown}
}
