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

// Package shield keeps ad networks away from viewers: a URL filter consulted
// before every upstream fetch, a navigation policy for links, and an HTML
// sanitizer for third-party embed pages.
package shield

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/grafana/regexp"
	"github.com/lucasduport/matchcast/pkg/utils"
)

// Whitelisted hosts are never blocked, whatever their path looks like.
var defaultWhitelist = []string{
	`(^|\.)streamed\.(pk|su)$`,
	`(^|\.)strmd\.top$`,
	`(^|\.)embedsports\.top$`,
	`(^|\.)reedstreams\.live$`,
	`(^|\.)akamaized\.net$`,
	`(^|\.)cloudfront\.net$`,
	`(^|\.)cdn\.jsdelivr\.net$`,
	`(^|\.)cdnjs\.cloudflare\.com$`,
	`(^|\.)google-analytics\.com$`,
	`(^|\.)googletagmanager\.com$`,
	`(^|\.)vercel-insights\.com$`,
	`^localhost$`,
}

var defaultAdPatterns = []string{
	`popunder`,
	`popads`,
	`doubleclick\.net`,
	`googlesyndication`,
	`adservice`,
	`adsterra`,
	`propellerads`,
	`exoclick`,
	`juicyads`,
	`clickadu`,
	`hilltopads`,
	`onclicka`,
	`/pop\d+`,
	`[?&]pop=\d+`,
}

// Decision is the verdict for one URL.
type Decision struct {
	Blocked bool   `json:"blocked"`
	Reason  string `json:"reason,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

// Status is a snapshot of the filter counters.
type Status struct {
	Active    bool  `json:"active"`
	Patterns  int   `json:"patterns"`
	Whitelist int   `json:"whitelist"`
	Checked   int64 `json:"checked"`
	Blocked   int64 `json:"blocked"`
}

// Filter matches URLs against a host whitelist and a list of ad patterns.
// It is safe for concurrent use.
type Filter struct {
	mu        sync.RWMutex
	whitelist []*regexp.Regexp
	patterns  []*regexp.Regexp

	checked atomic.Int64
	blocked atomic.Int64
}

// NewFilter compiles the built-in lists plus the extra patterns. Extra
// whitelist entries are host names, matched with their subdomains.
func NewFilter(extraPatterns, extraWhitelist []string) (*Filter, error) {
	f := &Filter{}

	for _, expr := range defaultWhitelist {
		f.whitelist = append(f.whitelist, regexp.MustCompile(expr))
	}
	for _, host := range extraWhitelist {
		host = strings.ToLower(strings.TrimSpace(host))
		if host == "" {
			continue
		}
		f.whitelist = append(f.whitelist, regexp.MustCompile(`(^|\.)`+regexp.QuoteMeta(host)+`$`))
	}

	for _, expr := range defaultAdPatterns {
		f.patterns = append(f.patterns, regexp.MustCompile(expr))
	}
	for _, expr := range extraPatterns {
		if err := f.AddPattern(expr); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// AddPattern appends an ad pattern at runtime.
func (f *Filter) AddPattern(expr string) error {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		return errors.New("empty pattern")
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return fmt.Errorf("invalid pattern %q: %w", expr, err)
	}

	f.mu.Lock()
	f.patterns = append(f.patterns, re)
	f.mu.Unlock()

	utils.InfoLog("Shield pattern added: %s", expr)
	return nil
}

// Check classifies rawURL. Whitelisted hosts always pass; otherwise the
// first matching ad pattern blocks.
func (f *Filter) Check(rawURL string) Decision {
	f.checked.Add(1)

	lower := strings.ToLower(rawURL)
	host := ""
	if u, err := url.Parse(lower); err == nil {
		host = u.Hostname()
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if host != "" {
		for _, re := range f.whitelist {
			if re.MatchString(host) {
				return Decision{Reason: "whitelisted"}
			}
		}
	}

	for _, re := range f.patterns {
		if re.MatchString(lower) {
			f.blocked.Add(1)
			utils.DebugLog("Shield blocked %s (pattern %s)", utils.MaskURL(rawURL), re.String())
			return Decision{Blocked: true, Reason: "ad-pattern", Pattern: re.String()}
		}
	}
	return Decision{}
}

// Blocked reports whether Check would block rawURL.
func (f *Filter) Blocked(rawURL string) bool {
	return f.Check(rawURL).Blocked
}

// Status returns the current counters.
func (f *Filter) Status() Status {
	f.mu.RLock()
	defer f.mu.RUnlock()

	return Status{
		Active:    true,
		Patterns:  len(f.patterns),
		Whitelist: len(f.whitelist),
		Checked:   f.checked.Load(),
		Blocked:   f.blocked.Load(),
	}
}
