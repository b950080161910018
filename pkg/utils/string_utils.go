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

package utils

import (
	"net/url"
	"strings"
)

// MaskString masks sensitive parts of strings for logging.
func MaskString(s string) string {
	if len(s) <= 8 {
		if len(s) <= 0 {
			return "[empty]"
		}
		return s[:1] + "******"
	}
	return s[:4] + "..." + s[len(s)-4:]
}

// signedParams are query keys that carry upstream signatures or tokens.
var signedParams = []string{"token", "sig", "signature", "expires", "hash", "key", "secret", "st", "e", "md5", "auth"}

// MaskURL masks signature-bearing query parameters so signed upstream URLs
// can be logged. Unparseable input is masked as a whole.
func MaskURL(urlStr string) string {
	u, err := url.Parse(urlStr)
	if err != nil {
		return MaskString(urlStr)
	}
	if u.RawQuery == "" {
		return u.String()
	}
	q := u.Query()
	for k, vs := range q {
		for _, p := range signedParams {
			if strings.EqualFold(k, p) {
				for i := range vs {
					vs[i] = MaskString(vs[i])
				}
			}
		}
	}
	u.RawQuery = q.Encode()
	return u.String()
}
