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

// Package analytics accepts client telemetry and keeps only per-type counts.
package analytics

import (
	"encoding/json"
	"errors"
	"strings"
	"sync"

	"github.com/buger/jsonparser"
	"github.com/google/uuid"
	"github.com/lucasduport/matchcast/pkg/utils"
)

// ErrInvalidPayload is returned for bodies that are not a JSON object or array.
var ErrInvalidPayload = errors.New("payload must be a JSON object or array")

const maxKindLen = 64

// MaxCounters bounds the distinct kind/type keys. Further new keys are
// counted under OverflowKey.
const (
	MaxCounters = 512
	OverflowKey = "other"
)

// Batch acknowledges one ingested payload.
type Batch struct {
	ID       string `json:"batchId"`
	Accepted int    `json:"accepted"`
}

// Summary is a snapshot of the counters.
type Summary struct {
	Batches int64            `json:"batches"`
	Events  int64            `json:"events"`
	Counts  map[string]int64 `json:"counts"`
}

// Sink counts events by kind and type. Payloads are not kept.
type Sink struct {
	mu      sync.Mutex
	counts  map[string]int64
	batches int64
	events  int64
}

// NewSink returns an empty Sink.
func NewSink() *Sink {
	return &Sink{counts: make(map[string]int64)}
}

// Ingest counts the events in payload, a single event object or an array of
// them.
func (s *Sink) Ingest(kind string, payload []byte) (Batch, error) {
	if !json.Valid(payload) {
		return Batch{}, ErrInvalidPayload
	}

	_, dataType, _, err := jsonparser.Get(payload)
	if err != nil {
		return Batch{}, ErrInvalidPayload
	}

	var types []string
	switch dataType {
	case jsonparser.Object:
		types = append(types, eventType(payload))
	case jsonparser.Array:
		_, err = jsonparser.ArrayEach(payload, func(value []byte, vt jsonparser.ValueType, _ int, _ error) {
			if vt == jsonparser.Object {
				types = append(types, eventType(value))
			} else {
				types = append(types, "unknown")
			}
		})
		if err != nil {
			return Batch{}, ErrInvalidPayload
		}
	default:
		return Batch{}, ErrInvalidPayload
	}

	kind = normalizeKind(kind)

	s.mu.Lock()
	s.batches++
	for _, t := range types {
		key := kind + "/" + t
		if _, seen := s.counts[key]; !seen && len(s.counts) >= MaxCounters {
			key = OverflowKey
		}
		s.counts[key]++
		s.events++
	}
	s.mu.Unlock()

	batch := Batch{ID: uuid.NewString(), Accepted: len(types)}
	utils.DebugLog("Analytics batch %s: %d %s events", batch.ID, batch.Accepted, kind)
	return batch, nil
}

// Summary returns a copy of the counters.
func (s *Sink) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int64, len(s.counts))
	for k, v := range s.counts {
		counts[k] = v
	}
	return Summary{Batches: s.batches, Events: s.events, Counts: counts}
}

func eventType(event []byte) string {
	for _, key := range []string{"type", "event"} {
		if v, err := jsonparser.GetString(event, key); err == nil && v != "" {
			return normalizeKind(v)
		}
	}
	return "unknown"
}

func normalizeKind(k string) string {
	k = strings.ToLower(strings.TrimSpace(k))
	if k == "" {
		return "unknown"
	}
	if len(k) > maxKindLen {
		k = k[:maxKindLen]
	}
	return k
}
