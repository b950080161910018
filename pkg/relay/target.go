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

// Package relay fetches manifests and media from upstream CDNs with the
// headers those CDNs expect.
package relay

import (
	"strings"

	"github.com/cristalhq/base64"
)

var targetEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.URLEncoding,
	base64.RawStdEncoding,
	base64.RawURLEncoding,
}

// DecodeTarget accepts a target URL either in clear or base64 encoded. The
// decoded form is only used when it looks like an http(s) URL, so a clear URL
// that happens to be valid base64 is never mangled.
func DecodeTarget(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" || strings.HasPrefix(raw, "http") {
		return raw
	}

	for _, enc := range targetEncodings {
		decoded, err := enc.DecodeString(raw)
		if err != nil {
			continue
		}
		if s := string(decoded); strings.HasPrefix(s, "http") {
			return s
		}
	}
	return raw
}

