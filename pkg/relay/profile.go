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

package relay

import (
	"net/url"
	"strings"
)

// HeaderProfile is the Referer/Origin pair an upstream family checks before
// serving media.
type HeaderProfile struct {
	Referer string
	Origin  string
}

// profileRule binds a host suffix to a profile. Rules are evaluated in order.
type profileRule struct {
	suffix  string
	profile HeaderProfile
}

var defaultProfiles = []profileRule{
	{"strmd.top", HeaderProfile{Referer: "https://embedsports.top/", Origin: "https://embedsports.top"}},
	{"embedsports.top", HeaderProfile{Referer: "https://embedsports.top/", Origin: "https://embedsports.top"}},
	{"streamed.pk", HeaderProfile{Referer: "https://streamed.pk/", Origin: "https://streamed.pk"}},
	{"streamed.su", HeaderProfile{Referer: "https://streamed.su/", Origin: "https://streamed.su"}},
	{"reedstreams.live", HeaderProfile{Referer: "https://reedstreams.live/", Origin: "https://reedstreams.live"}},
	{"vidembed.re", HeaderProfile{Referer: "https://vidembed.re/", Origin: "https://vidembed.re"}},
}

// ProfileFor returns the header profile for target. Unknown hosts get their
// own origin, which most CDNs accept.
func ProfileFor(target string) HeaderProfile {
	u, err := url.Parse(target)
	if err != nil || u.Host == "" {
		return HeaderProfile{}
	}

	host := strings.ToLower(u.Hostname())
	for _, rule := range defaultProfiles {
		if host == rule.suffix || strings.HasSuffix(host, "."+rule.suffix) {
			return rule.profile
		}
	}

	origin := u.Scheme + "://" + u.Host
	return HeaderProfile{Referer: origin + "/", Origin: origin}
}
