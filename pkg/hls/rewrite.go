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

// Package hls rewrites HLS manifests so that every reference they carry is an
// absolute URL, and classifies the media they point at.
package hls

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/cristalhq/base64"
	"github.com/grafana/regexp"
)

// ErrInvalidBase is returned when the manifest URL cannot serve as a base.
var ErrInvalidBase = errors.New("invalid manifest base url")

// uriAttr matches the quoted URI attribute of tags such as EXT-X-KEY and
// EXT-X-MAP. Only the first occurrence on a line is rewritten.
var uriAttr = regexp.MustCompile(`URI="([^"]*)"`)

// Base is a manifest location split into the two prefixes used for
// resolution: the directory for relative references and the origin for
// absolute-path references.
type Base struct {
	Dir    string
	Origin string
	Scheme string
}

// NewBase truncates rawURL after the last '/' of its path. Query and fragment
// are dropped.
func NewBase(rawURL string) (Base, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return Base{}, fmt.Errorf("%w: %v", ErrInvalidBase, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return Base{}, fmt.Errorf("%w: %q", ErrInvalidBase, rawURL)
	}

	dir := u.EscapedPath()
	if i := strings.LastIndex(dir, "/"); i >= 0 {
		dir = dir[:i+1]
	} else {
		dir = "/"
	}

	origin := u.Scheme + "://" + u.Host
	return Base{Dir: origin + dir, Origin: origin, Scheme: u.Scheme}, nil
}

// ResolveReference turns a single manifest reference into an absolute URL.
func ResolveReference(b Base, ref string) string {
	switch {
	case ref == "":
		return ref
	case strings.HasPrefix(ref, "http"):
		return ref
	case strings.HasPrefix(ref, "//"):
		return b.Scheme + ":" + ref
	case strings.HasPrefix(ref, "/"):
		return b.Origin + ref
	default:
		return b.Dir + ref
	}
}

// Option configures a Rewriter.
type Option func(*Rewriter)

// WithProxy wraps every resolved URL as prefix+base64(url). The prefix must be
// absolute so that a second pass leaves wrapped lines alone.
func WithProxy(prefix string) Option {
	return func(r *Rewriter) {
		r.proxyPrefix = prefix
	}
}

// WithQuery appends rawQuery to resolved URLs on the manifest's own origin
// that carry no query of their own. References on other hosts never get it.
func WithQuery(rawQuery string) Option {
	return func(r *Rewriter) {
		r.query = strings.TrimPrefix(rawQuery, "?")
	}
}

// Rewriter resolves the references of manifests fetched from one base.
type Rewriter struct {
	base        Base
	proxyPrefix string
	query       string
}

// New returns a Rewriter for base.
func New(base Base, opts ...Option) *Rewriter {
	r := &Rewriter{base: base}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Rewrite resolves every manifest reference in text against baseURL.
// Blank lines, plain tags and absolute references are left untouched; the
// line count and ordering never change.
func Rewrite(text, baseURL string) (string, error) {
	base, err := NewBase(baseURL)
	if err != nil {
		return "", err
	}
	return New(base).Rewrite(text), nil
}

// Rewrite applies the configured resolution to every line of text.
func (r *Rewriter) Rewrite(text string) string {
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		lines[i] = r.rewriteLine(line)
	}
	return strings.Join(lines, "\n")
}

func (r *Rewriter) rewriteLine(line string) string {
	body, cr := line, ""
	if strings.HasSuffix(body, "\r") {
		body, cr = body[:len(body)-1], "\r"
	}

	trimmed := strings.TrimSpace(body)
	if trimmed == "" {
		return line
	}

	if strings.HasPrefix(trimmed, "#") {
		loc := uriAttr.FindStringSubmatchIndex(body)
		if loc == nil || loc[2] == loc[3] {
			return line
		}
		value := body[loc[2]:loc[3]]
		return body[:loc[2]] + r.resolve(value) + body[loc[3]:] + cr
	}

	resolved := r.resolve(trimmed)
	if resolved == trimmed {
		return line
	}
	return resolved + cr
}

func (r *Rewriter) resolve(ref string) string {
	if r.proxyPrefix != "" && strings.HasPrefix(ref, r.proxyPrefix) {
		return ref
	}

	abs := ResolveReference(r.base, ref)
	if r.query != "" && !strings.Contains(abs, "?") && r.sameOrigin(abs) {
		abs += "?" + r.query
	}
	if r.proxyPrefix != "" {
		return r.proxyPrefix + base64.URLEncoding.EncodeToString([]byte(abs))
	}
	return abs
}

func (r *Rewriter) sameOrigin(abs string) bool {
	return strings.HasPrefix(abs, r.base.Origin+"/")
}
