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

package shield

import (
	"bytes"
	"fmt"
	"io"
	"net/url"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/lucasduport/matchcast/pkg/utils"
	"golang.org/x/net/html"
)

const (
	DefaultVideoIframeClass = "video-iframe"
	DefaultZIndexThreshold  = 1000
)

// Elements inside these containers belong to the player and its controls.
const safeContainers = ".player-wrapper, #player, .stream-selector, #stream-selector, nav, header, footer"

var adSubstrings = []string{
	"/ads/", "adserver", "adsystem", "popunder", "popads", "doubleclick",
	"adservice", "adsterra", "banner", "sponsor",
}

// Report counts the nodes each sweep removed or neutralised.
type Report struct {
	Handlers    int `json:"handlers"`
	Overlays    int `json:"overlays"`
	Iframes     int `json:"iframes"`
	Scripts     int `json:"scripts"`
	MetaRefresh int `json:"metaRefresh"`
	Links       int `json:"links"`
}

// Total is the sum of all counters.
func (r Report) Total() int {
	return r.Handlers + r.Overlays + r.Iframes + r.Scripts + r.MetaRefresh + r.Links
}

// SanitizerOption configures a Sanitizer.
type SanitizerOption func(*Sanitizer)

// WithVideoIframeClass sets the class that marks the player iframe.
func WithVideoIframeClass(class string) SanitizerOption {
	return func(s *Sanitizer) {
		if class != "" {
			s.videoClass = class
		}
	}
}

// WithZIndexThreshold sets the z-index from which a positioned element is
// considered an overlay.
func WithZIndexThreshold(z int) SanitizerOption {
	return func(s *Sanitizer) {
		if z > 0 {
			s.zThreshold = z
		}
	}
}

// Sanitizer strips pop-up machinery from embed pages before they are served
// to the player frame.
type Sanitizer struct {
	filter     *Filter
	policy     NavigationPolicy
	videoClass string
	zThreshold int
}

// NewSanitizer returns a Sanitizer. filter may be nil.
func NewSanitizer(filter *Filter, policy NavigationPolicy, opts ...SanitizerOption) *Sanitizer {
	s := &Sanitizer{
		filter:     filter,
		policy:     policy,
		videoClass: DefaultVideoIframeClass,
		zThreshold: DefaultZIndexThreshold,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Sanitize parses the page read from r and returns the cleaned document. On
// failure the original markup is returned along with the error so callers
// can fall back to it.
func (s *Sanitizer) Sanitize(r io.Reader, pageURL string) (out string, report Report, err error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", Report{}, fmt.Errorf("failed to read page: %w", err)
	}

	defer func() {
		if rec := recover(); rec != nil {
			utils.ErrorLog("Sanitizer panic on %s: %v", utils.MaskURL(pageURL), rec)
			out, report, err = string(raw), Report{}, fmt.Errorf("sanitize failed: %v", rec)
		}
	}()

	root, err := html.Parse(bytes.NewReader(raw))
	if err != nil {
		return string(raw), Report{}, fmt.Errorf("failed to parse page: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	page, _ := url.Parse(pageURL)

	report.Handlers = s.sweepHandlers(doc)
	report.Overlays = s.sweepOverlays(doc)
	report.Iframes = s.sweepIframes(doc, page)
	report.Scripts = s.sweepScripts(doc, page)
	report.MetaRefresh = s.sweepMetaRefresh(doc, page)
	report.Links = s.sweepLinks(doc, page)

	if page != nil && page.Host != "" {
		head := doc.Find("head").First()
		if head.Find("base").Length() == 0 {
			head.PrependHtml(`<base href="` + html.EscapeString(pageURL) + `">`)
		}
	}

	out, err = doc.Html()
	if err != nil {
		return string(raw), report, fmt.Errorf("failed to render page: %w", err)
	}

	if report.Total() > 0 {
		utils.DebugLog("Sanitized %s: %+v", utils.MaskURL(pageURL), report)
	}
	return out, report, nil
}

func inSafeContainer(sel *goquery.Selection) bool {
	return sel.Closest(safeContainers).Length() > 0
}

func isNavigationHandler(value string) bool {
	v := strings.ToLower(value)
	return strings.Contains(v, "open") || strings.Contains(v, "location") ||
		strings.Contains(v, "href") || strings.Contains(v, "window")
}

func (s *Sanitizer) sweepHandlers(doc *goquery.Document) int {
	type hit struct {
		sel   *goquery.Selection
		attrs []string
	}
	var hits []hit

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		node := sel.Get(0)
		var attrs []string
		for _, a := range node.Attr {
			if strings.HasPrefix(strings.ToLower(a.Key), "on") && isNavigationHandler(a.Val) {
				attrs = append(attrs, a.Key)
			}
		}
		if len(attrs) > 0 {
			hits = append(hits, hit{sel: sel, attrs: attrs})
		}
	})

	for _, h := range hits {
		switch {
		case goquery.NodeName(h.sel) == "html", goquery.NodeName(h.sel) == "body",
			goquery.NodeName(h.sel) == "head", inSafeContainer(h.sel):
			for _, a := range h.attrs {
				h.sel.RemoveAttr(a)
			}
		default:
			h.sel.Remove()
		}
	}
	return len(hits)
}

func (s *Sanitizer) sweepOverlays(doc *goquery.Document) int {
	var overlays []*goquery.Selection

	doc.Find("div, a, span").Each(func(_ int, sel *goquery.Selection) {
		if inSafeContainer(sel) {
			return
		}
		if sel.Find("video, iframe."+s.videoClass).Length() > 0 {
			return
		}
		if strings.TrimSpace(sel.Text()) != "" {
			return
		}
		style, ok := sel.Attr("style")
		if !ok {
			return
		}
		if s.isOverlay(parseStyle(style)) {
			overlays = append(overlays, sel)
		}
	})

	for _, sel := range overlays {
		sel.Remove()
	}
	return len(overlays)
}

func (s *Sanitizer) isOverlay(style map[string]string) bool {
	pos := style["position"]
	if pos != "fixed" && pos != "absolute" {
		return false
	}

	transparent := false
	if op, err := strconv.ParseFloat(style["opacity"], 64); err == nil && op == 0 {
		transparent = true
	}
	if style["background"] == "transparent" || style["background-color"] == "transparent" {
		transparent = true
	}
	stacked := false
	if z, err := strconv.Atoi(style["z-index"]); err == nil && z >= s.zThreshold {
		stacked = true
	}
	if !transparent && !stacked {
		return false
	}

	if isZero(style["inset"]) {
		return true
	}
	if isZero(style["top"]) && isZero(style["left"]) && isZero(style["right"]) && isZero(style["bottom"]) {
		return true
	}
	return isLarge(style["width"]) && isLarge(style["height"])
}

func parseStyle(style string) map[string]string {
	props := make(map[string]string)
	for _, decl := range strings.Split(style, ";") {
		k, v, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		v = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(v), "!important"))
		props[strings.ToLower(strings.TrimSpace(k))] = strings.ToLower(strings.TrimSpace(v))
	}
	return props
}

func isZero(v string) bool {
	return v == "0" || v == "0px" || v == "0%"
}

// isLarge accepts at least 50% or 50vw/vh, or 300px.
func isLarge(v string) bool {
	for _, unit := range []struct {
		suffix string
		min    float64
	}{{"%", 50}, {"vw", 50}, {"vh", 50}, {"px", 300}} {
		if strings.HasSuffix(v, unit.suffix) {
			n, err := strconv.ParseFloat(strings.TrimSuffix(v, unit.suffix), 64)
			return err == nil && n >= unit.min
		}
	}
	return false
}

func containsAdSubstring(v string) bool {
	lv := strings.ToLower(v)
	for _, s := range adSubstrings {
		if strings.Contains(lv, s) {
			return true
		}
	}
	return false
}

func resolve(page *url.URL, ref string) string {
	ref = strings.TrimSpace(ref)
	if page == nil {
		return ref
	}
	u, err := page.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

func (s *Sanitizer) blocked(page *url.URL, ref string) bool {
	if containsAdSubstring(ref) {
		return true
	}
	return s.filter != nil && s.filter.Blocked(resolve(page, ref))
}

func (s *Sanitizer) sweepIframes(doc *goquery.Document, page *url.URL) int {
	removed := 0
	doc.Find("iframe").Each(func(_ int, sel *goquery.Selection) {
		if sel.HasClass(s.videoClass) {
			return
		}
		src := strings.TrimSpace(sel.AttrOr("src", ""))
		if src == "" || strings.EqualFold(src, "about:blank") || s.blocked(page, src) {
			sel.Remove()
			removed++
		}
	})
	return removed
}

func (s *Sanitizer) sweepScripts(doc *goquery.Document, page *url.URL) int {
	removed := 0
	doc.Find("script").Each(func(_ int, sel *goquery.Selection) {
		if src, ok := sel.Attr("src"); ok {
			if s.blocked(page, src) {
				sel.Remove()
				removed++
			}
			return
		}
		if strings.Contains(sel.Text(), "window.open") {
			sel.Remove()
			removed++
		}
	})
	return removed
}

// allowNavigation lets pages link within their own host.
func (s *Sanitizer) allowNavigation(page *url.URL, target string) bool {
	if page != nil {
		if u, err := page.Parse(strings.TrimSpace(target)); err == nil && strings.EqualFold(u.Host, page.Host) {
			return true
		}
	}
	return s.policy.Allow(target)
}

func (s *Sanitizer) sweepMetaRefresh(doc *goquery.Document, page *url.URL) int {
	removed := 0
	doc.Find("meta").Each(func(_ int, sel *goquery.Selection) {
		if !strings.EqualFold(sel.AttrOr("http-equiv", ""), "refresh") {
			return
		}
		content := sel.AttrOr("content", "")
		idx := strings.Index(strings.ToLower(content), "url=")
		if idx < 0 {
			return
		}
		target := strings.Trim(strings.TrimSpace(content[idx+4:]), `'"`)
		if !s.allowNavigation(page, target) {
			sel.Remove()
			removed++
		}
	})
	return removed
}

func (s *Sanitizer) sweepLinks(doc *goquery.Document, page *url.URL) int {
	neutralised := 0
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		if s.allowNavigation(page, sel.AttrOr("href", "")) {
			return
		}
		sel.RemoveAttr("href")
		sel.RemoveAttr("target")
		neutralised++
	})
	return neutralised
}
