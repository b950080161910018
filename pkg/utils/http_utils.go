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
	"os"
	"strings"
)

const (
	// DesktopUserAgent is sent to upstreams for non-Apple clients.
	DesktopUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"
	// MobileUserAgent is sent to upstreams when the viewer is on iOS, some
	// CDNs serve different renditions to Safari.
	MobileUserAgent = "Mozilla/5.0 (iPhone; CPU iPhone OS 17_2 like Mac OS X) AppleWebKit/605.1.15 (KHTML, like Gecko) Version/17.2 Mobile/15E148 Safari/604.1"
)

// GetUpstreamUserAgent returns the user agent to use for upstream requests.
// USER_AGENT overrides the desktop default; the mobile agent is fixed.
func GetUpstreamUserAgent(mobile bool) string {
	if mobile {
		return MobileUserAgent
	}
	if ua := os.Getenv("USER_AGENT"); ua != "" {
		return ua
	}
	return DesktopUserAgent
}

// IsMobileUserAgent reports whether a client user agent belongs to an iOS device.
func IsMobileUserAgent(ua string) bool {
	lua := strings.ToLower(ua)
	return strings.Contains(lua, "iphone") || strings.Contains(lua, "ipad") || strings.Contains(lua, "ipod")
}

// GetLanguageHeader returns the Accept-Language value sent upstream.
func GetLanguageHeader() string {
	return GetEnvOrDefault("ACCEPT_LANGUAGE", "en-US,en;q=0.9")
}
