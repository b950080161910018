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
	"net/url"
	"path"
	"strings"
)

// Content types served by the relay.
const (
	ContentTypeManifest = "application/vnd.apple.mpegurl"
	ContentTypeTS       = "video/MP2T"
	ContentTypeFMP4     = "video/iso.segment"
	ContentTypeMP4      = "video/mp4"
	ContentTypeAAC      = "audio/aac"
	ContentTypeBinary   = "application/octet-stream"
)

// ContentTypeForPath maps the extension of a URL path to the Content-Type the
// relay advertises. The query string is ignored.
func ContentTypeForPath(raw string) string {
	p := raw
	if u, err := url.Parse(raw); err == nil {
		p = u.Path
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".ts":
		return ContentTypeTS
	case ".m4s":
		return ContentTypeFMP4
	case ".mp4":
		return ContentTypeMP4
	case ".aac":
		return ContentTypeAAC
	case ".m3u8":
		return ContentTypeManifest
	default:
		// .key and anything unknown
		return ContentTypeBinary
	}
}

// IsManifestURL reports whether a URL refers to an HLS playlist.
func IsManifestURL(raw string) bool {
	return strings.Contains(strings.ToLower(raw), ".m3u8")
}
