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
	"sort"
	"sync"

	"github.com/lucasduport/matchcast/pkg/utils"
	"github.com/panjf2000/ants/v2"
)

// StreamLister is the part of Client the aggregator needs.
type StreamLister interface {
	Streams(ctx context.Context, source, id string) ([]Stream, error)
}

// Aggregator collects the streams of every source of a match.
type Aggregator struct {
	lister     StreamLister
	pool       *ants.Pool
	preference func(source string) int
}

// NewAggregator returns an Aggregator running fetches on pool. preference
// ranks sources, lower first; nil keeps the source order.
func NewAggregator(lister StreamLister, pool *ants.Pool, preference func(string) int) *Aggregator {
	if preference == nil {
		preference = func(string) int { return 0 }
	}
	return &Aggregator{lister: lister, pool: pool, preference: preference}
}

// Streams fetches all sources concurrently. A failing source is logged and
// left out, so the result is never an error, only possibly empty.
func (a *Aggregator) Streams(ctx context.Context, sources []Source) []Stream {
	results := make([][]Stream, len(sources))
	var wg sync.WaitGroup

	for i, src := range sources {
		wg.Add(1)
		task := func() {
			defer wg.Done()
			streams, err := a.lister.Streams(ctx, src.Source, src.ID.String())
			if err != nil {
				utils.WarnLog("Source %s/%s failed: %v", src.Source, src.ID, err)
				return
			}
			for j := range streams {
				if streams[j].Source == "" {
					streams[j].Source = src.Source
				}
				streams[j].SourceIdentifier = src.Source + "/" + src.ID.String()
			}
			results[i] = streams
		}

		if a.pool == nil {
			go task()
			continue
		}
		if err := a.pool.Submit(task); err != nil {
			utils.WarnLog("Worker pool rejected source %s: %v", src.Source, err)
			task()
		}
	}
	wg.Wait()

	var all []Stream
	for _, streams := range results {
		all = append(all, streams...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		pi, pj := a.preference(all[i].Source), a.preference(all[j].Source)
		if pi != pj {
			return pi < pj
		}
		return all[i].StreamNo < all[j].StreamNo
	})
	return all
}
