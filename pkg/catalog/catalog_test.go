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

package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lucasduport/matchcast/pkg/relay"
	"github.com/panjf2000/ants/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCoerceIDs(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			"top level array",
			`[{"id":12,"title":"A","sources":[{"source":"alpha","id":7}]},{"id":"x"}]`,
			`[{"id":"12","title":"A","sources":[{"source":"alpha","id":"7"}]},{"id":"x"}]`,
		},
		{
			"data wrapper",
			`{"success":true,"data":[{"id":3}]}`,
			`{"success":true,"data":[{"id":"3"}]}`,
		},
		{
			"matches wrapper",
			`{"matches":[{"id":4,"popular":true}]}`,
			`{"matches":[{"id":"4","popular":true}]}`,
		},
		{"mixed array", `[1,"two",{"id":5}]`, `[1,"two",{"id":"5"}]`},
		{"plain object", `{"id":9}`, `{"id":9}`},
		{"escaped string", `["a\"b"]`, `["a\"b"]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := CoerceIDs([]byte(tt.in))
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(got))
		})
	}

	_, err := CoerceIDs([]byte(`{not json`))
	assert.Error(t, err)
}

func TestFlexString(t *testing.T) {
	var v struct {
		A FlexString `json:"a"`
		B FlexString `json:"b"`
		C FlexString `json:"c"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"abc","b":42,"c":null}`), &v))
	assert.Equal(t, "abc", v.A.String())
	assert.Equal(t, "42", v.B.String())
	assert.Equal(t, 42, v.B.Int())
	assert.Equal(t, "", v.C.String())
	assert.Equal(t, 0, v.A.Int())

	assert.Error(t, json.Unmarshal([]byte(`{"a":{}}`), &v))
}

func newCatalogServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/api/matches/live", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		fmt.Fprint(w, `[{"id":101,"title":"Live Derby","category":"football","date":1700000000000,"popular":true,"sources":[{"source":"alpha","id":"derby"}]}]`)
	})
	mux.HandleFunc("/api/matches/all", func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		fmt.Fprint(w, `{"data":[{"id":"later-game","title":"Later","category":"basketball","date":0,"popular":false,"sources":[]}]}`)
	})
	mux.HandleFunc("/api/stream/alpha/derby", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"id":1,"streamNo":2,"language":"English","hd":true,"embedUrl":"https://embedsports.top/embed/alpha/derby/2","source":"alpha"}]`)
	})
	mux.HandleFunc("/api/stream/bravo/derby", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	})
	return httptest.NewServer(mux)
}

func TestClientMatchesAndCache(t *testing.T) {
	var hits int32
	srv := newCatalogServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, 0, time.Minute, 5*time.Second)

	matches, err := c.Matches(context.Background(), "live")
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "101", matches[0].ID.String())
	assert.Equal(t, "derby", matches[0].Sources[0].ID.String())

	_, err = c.Matches(context.Background(), "live")
	require.NoError(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))

	all, err := c.Matches(context.Background(), "all")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "later-game", all[0].ID.String())
}

func TestClientFindMatch(t *testing.T) {
	var hits int32
	srv := newCatalogServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, 100, 0, 5*time.Second)

	m, err := c.FindMatch(context.Background(), "later-game")
	require.NoError(t, err)
	assert.Equal(t, "Later", m.Title)

	_, err = c.FindMatch(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrMatchNotFound)
}

func TestClientStatusError(t *testing.T) {
	var hits int32
	srv := newCatalogServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, 0, 0, 5*time.Second)
	_, err := c.Streams(context.Background(), "bravo", "derby")
	require.Error(t, err)
	assert.Equal(t, http.StatusForbidden, relay.StatusOf(err, 0))
}

type fakeLister map[string][]Stream

func (f fakeLister) Streams(_ context.Context, source, id string) ([]Stream, error) {
	streams, ok := f[source+"/"+id]
	if !ok {
		return nil, errors.New("source down")
	}
	out := make([]Stream, len(streams))
	copy(out, streams)
	return out, nil
}

func TestAggregatorStreams(t *testing.T) {
	pool, err := ants.NewPool(4)
	require.NoError(t, err)
	defer pool.Release()

	lister := fakeLister{
		"charlie/m1": {{StreamNo: 2}, {StreamNo: 1}},
		"alpha/m1":   {{StreamNo: 3, Source: "alpha"}},
	}
	rank := map[string]int{"alpha": 0, "bravo": 1, "charlie": 2}
	agg := NewAggregator(lister, pool, func(s string) int { return rank[s] })

	streams := agg.Streams(context.Background(), []Source{
		{Source: "charlie", ID: "m1"},
		{Source: "bravo", ID: "m1"},
		{Source: "alpha", ID: "m1"},
	})

	require.Len(t, streams, 3)
	assert.Equal(t, "alpha", streams[0].Source)
	assert.Equal(t, "charlie", streams[1].Source)
	assert.Equal(t, 1, streams[1].StreamNo)
	assert.Equal(t, 2, streams[2].StreamNo)
	assert.Equal(t, "charlie/m1", streams[1].SourceIdentifier)

	assert.Empty(t, NewAggregator(lister, nil, nil).Streams(context.Background(), []Source{{Source: "bravo", ID: "m1"}}))
}
