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
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFilterCheck(t *testing.T) {
	f, err := NewFilter(nil, []string{"mysite.example"})
	require.NoError(t, err)

	tests := []struct {
		url     string
		blocked bool
		reason  string
	}{
		{"https://ad.doubleclick.net/x.js", true, "ad-pattern"},
		{"https://cdn.popunder.biz/p.js", true, "ad-pattern"},
		{"https://some.host/pop123", true, "ad-pattern"},
		{"https://cdn.example.com/live/index.m3u8", false, ""},
		{"https://rr.strmd.top/popunder/index.m3u8", false, "whitelisted"},
		{"https://www.mysite.example/popads", false, "whitelisted"},
	}
	for _, tt := range tests {
		d := f.Check(tt.url)
		assert.Equal(t, tt.blocked, d.Blocked, tt.url)
		assert.Equal(t, tt.reason, d.Reason, tt.url)
		if tt.blocked {
			assert.NotEmpty(t, d.Pattern)
		}
	}

	st := f.Status()
	assert.True(t, st.Active)
	assert.Equal(t, int64(len(tests)), st.Checked)
	assert.Equal(t, int64(3), st.Blocked)
}

func TestFilterWhitelistIsLiteralHost(t *testing.T) {
	f, err := NewFilter(nil, []string{"my.cdn", "(.*)"})
	require.NoError(t, err)

	assert.False(t, f.Check("https://edge.my.cdn/popunder.js").Blocked)
	assert.False(t, f.Check("https://my.cdn/popunder.js").Blocked)
	assert.True(t, f.Check("https://myxcdn/popunder.js").Blocked)
	assert.True(t, f.Check("https://evil.example/popunder.js").Blocked)
}

func TestFilterAddPattern(t *testing.T) {
	f, err := NewFilter(nil, nil)
	require.NoError(t, err)

	before := f.Status().Patterns
	assert.False(t, f.Blocked("https://tracker.example.net/beacon"))
	require.NoError(t, f.AddPattern(`tracker\.example\.net`))
	assert.True(t, f.Blocked("https://tracker.example.net/beacon"))
	assert.Equal(t, before+1, f.Status().Patterns)

	assert.Error(t, f.AddPattern("("))
	assert.Error(t, f.AddPattern("  "))

	_, err = NewFilter([]string{"[bad"}, nil)
	assert.Error(t, err)
}

func TestFilterMessage(t *testing.T) {
	f, err := NewFilter(nil, nil)
	require.NoError(t, err)

	reply, err := f.Message(Message{Type: MessageAddPattern, Pattern: "evil"})
	require.NoError(t, err)
	assert.Equal(t, "PATTERN_ADDED", reply.Type)
	assert.True(t, f.Blocked("https://evil.example/"))

	reply, err = f.Message(Message{Type: MessageGetStatus})
	require.NoError(t, err)
	require.NotNil(t, reply.Status)
	assert.Equal(t, int64(1), reply.Status.Blocked)

	_, err = f.Message(Message{Type: "PING"})
	assert.ErrorIs(t, err, ErrUnknownMessage)
}

func TestNavigationPolicy(t *testing.T) {
	p := NavigationPolicy{AllowedHosts: []string{"streamed.pk", "youtube.com"}}

	assert.True(t, p.Allow(""))
	assert.True(t, p.Allow("/watch/abc"))
	assert.True(t, p.Allow("#top"))
	assert.True(t, p.Allow("https://streamed.pk/watch"))
	assert.True(t, p.Allow("https://www.youtube.com/x"))
	assert.False(t, p.Allow("https://notyoutube.com/x"))
	assert.False(t, p.Allow("https://popads.net/"))
	assert.False(t, p.Allow("javascript:window.open('x')"))
}

const embedPage = `<!DOCTYPE html>
<html><head>
<meta http-equiv="refresh" content="0; url=https://casino.example/">
<script src="https://ad.doubleclick.net/tag.js"></script>
<script src="/static/player.js"></script>
<script>window.open('https://popads.net')</script>
<script>var player = 1;</script>
</head>
<body onload="console.log(1)">
<div class="player-wrapper" onclick="window.open('x')">
  <iframe class="video-iframe" src="https://embedsports.top/embed/1"></iframe>
  <div style="position:absolute; inset:0; opacity:0"></div>
</div>
<div id="ov" style="position: fixed; top: 0; left: 0; right: 0; bottom: 0; z-index: 2147483647"></div>
<div id="small" style="position: fixed; width: 20px; height: 20px; z-index: 9999"></div>
<div id="textual" style="position: fixed; inset: 0; z-index: 9999">Cookie notice</div>
<span id="big" style="position:absolute;width:100vw;height:100vh;background:transparent"></span>
<a id="trap" href="#" onclick="location.href='https://casino.example'">x</a>
<iframe src="about:blank"></iframe>
<iframe></iframe>
<iframe src="https://popunder.example/frame"></iframe>
<iframe id="ok" src="https://www.youtube.com/embed/x"></iframe>
<a id="out" href="https://casino.example/" target="_blank">win</a>
<a id="in" href="/next">next</a>
<nav><a id="navlink" href="https://streamed.pk/">home</a></nav>
</body></html>`

func TestSanitize(t *testing.T) {
	f, err := NewFilter(nil, nil)
	require.NoError(t, err)
	s := NewSanitizer(f, NavigationPolicy{AllowedHosts: []string{"streamed.pk", "youtube.com"}})

	out, report, err := s.Sanitize(strings.NewReader(embedPage), "https://embedsports.top/embed/alpha/1")
	require.NoError(t, err)

	assert.Contains(t, out, `<base href="https://embedsports.top/embed/alpha/1"/>`)
	assert.NotContains(t, out, "http-equiv")
	assert.NotContains(t, out, "doubleclick")
	assert.Contains(t, out, "/static/player.js")
	assert.NotContains(t, out, "window.open(&#39;https://popads.net")
	assert.NotContains(t, out, "popads.net")
	assert.Contains(t, out, "var player = 1;")

	// player stays, its handler goes
	assert.Contains(t, out, `class="video-iframe"`)
	assert.Contains(t, out, `class="player-wrapper"`)
	assert.NotContains(t, out, "window.open(&#39;x&#39;)")
	assert.Contains(t, out, "inset:0; opacity:0")
	assert.Contains(t, out, `onload="console.log(1)"`)

	assert.NotContains(t, out, `id="ov"`)
	assert.NotContains(t, out, `id="big"`)
	assert.Contains(t, out, `id="small"`)
	assert.Contains(t, out, `id="textual"`)
	assert.NotContains(t, out, `id="trap"`)

	assert.NotContains(t, out, "about:blank")
	assert.NotContains(t, out, "popunder.example")
	assert.Contains(t, out, `id="ok"`)

	assert.Contains(t, out, `<a id="out">win</a>`)
	assert.Contains(t, out, `<a id="in" href="/next">`)
	assert.Contains(t, out, `<a id="navlink" href="https://streamed.pk/">`)

	assert.Equal(t, 2, report.Handlers)
	assert.Equal(t, 2, report.Overlays)
	assert.Equal(t, 3, report.Iframes)
	assert.Equal(t, 2, report.Scripts)
	assert.Equal(t, 1, report.MetaRefresh)
	assert.Equal(t, 1, report.Links)
}

func TestSanitizeKeepsExistingBase(t *testing.T) {
	s := NewSanitizer(nil, NavigationPolicy{}, WithVideoIframeClass("player"), WithZIndexThreshold(10))
	page := `<html><head><base href="https://a.example/"></head><body><iframe class="player"></iframe><div style="position:fixed;z-index:10;inset:0"></div></body></html>`

	out, report, err := s.Sanitize(strings.NewReader(page), "https://b.example/x")
	require.NoError(t, err)
	assert.Equal(t, 1, strings.Count(out, "<base"))
	assert.Contains(t, out, `class="player"`)
	assert.Equal(t, 1, report.Overlays)
	assert.Equal(t, 0, report.Iframes)
}
