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

// Package providers describes how each stream provider must be embedded and
// what to try when it fails.
package providers

import (
	"errors"
	"time"

	"github.com/lucasduport/matchcast/pkg/utils"
	"github.com/puzpuzpuz/xsync/v3"
)

// FallbackStrategy says where to go when a provider fails to load.
type FallbackStrategy string

const (
	FallbackNextProvider FallbackStrategy = "next-provider"
	FallbackNextStream   FallbackStrategy = "next-stream"
	FallbackNone         FallbackStrategy = "none"
)

// ErrUnknownProvider is returned for ids missing from the table.
var ErrUnknownProvider = errors.New("unknown provider")

// Stats are in-process load statistics for one provider.
type Stats struct {
	Loads      int64     `json:"loads"`
	Failures   int64     `json:"failures"`
	LastLoadMs int64     `json:"lastLoadMs"`
	AvgLoadMs  float64   `json:"avgLoadMs"`
	LastReport time.Time `json:"lastReport,omitempty"`
}

// Config is the embedding configuration of a provider.
type Config struct {
	ID                 string           `json:"id"`
	NeedsSandbox       bool             `json:"needsSandbox"`
	SandboxPermissions []string         `json:"sandboxPermissions,omitempty"`
	FallbackStrategy   FallbackStrategy `json:"fallbackStrategy"`
	Active             bool             `json:"active"`
	Stats              Stats            `json:"stats"`
}

var defaultSandbox = []string{"allow-scripts", "allow-same-origin", "allow-presentation"}

// order is the preference order, also used for next-provider fallback.
var order = []string{"alpha", "bravo", "charlie", "delta", "echo", "foxtrot", "golf", "hotel", "intel", "admin"}

var table = map[string]Config{
	"alpha":   {NeedsSandbox: false, FallbackStrategy: FallbackNextStream, Active: true},
	"bravo":   {NeedsSandbox: false, FallbackStrategy: FallbackNextStream, Active: true},
	"charlie": {NeedsSandbox: true, SandboxPermissions: defaultSandbox, FallbackStrategy: FallbackNextProvider, Active: true},
	"delta":   {NeedsSandbox: true, SandboxPermissions: defaultSandbox, FallbackStrategy: FallbackNextProvider, Active: true},
	"echo":    {NeedsSandbox: true, SandboxPermissions: defaultSandbox, FallbackStrategy: FallbackNextProvider, Active: true},
	"foxtrot": {NeedsSandbox: true, SandboxPermissions: defaultSandbox, FallbackStrategy: FallbackNextProvider, Active: true},
	"golf":    {NeedsSandbox: true, SandboxPermissions: defaultSandbox, FallbackStrategy: FallbackNextProvider, Active: false},
	"hotel":   {NeedsSandbox: true, SandboxPermissions: defaultSandbox, FallbackStrategy: FallbackNextProvider, Active: false},
	"intel":   {NeedsSandbox: true, SandboxPermissions: defaultSandbox, FallbackStrategy: FallbackNextProvider, Active: true},
	"admin":   {NeedsSandbox: false, FallbackStrategy: FallbackNone, Active: true},
}

// Registry serves the static table plus live statistics.
type Registry struct {
	stats *xsync.MapOf[string, Stats]
}

// NewRegistry returns an empty-stats registry.
func NewRegistry() *Registry {
	return &Registry{stats: xsync.NewMapOf[string, Stats]()}
}

// Get returns the configuration of id with its current stats.
func (r *Registry) Get(id string) (Config, error) {
	cfg, ok := table[id]
	if !ok {
		return Config{}, ErrUnknownProvider
	}
	cfg.ID = id
	cfg.SandboxPermissions = append([]string(nil), cfg.SandboxPermissions...)
	if st, ok := r.stats.Load(id); ok {
		cfg.Stats = st
	}
	return cfg, nil
}

// List returns every provider in preference order.
func (r *Registry) List() []Config {
	out := make([]Config, 0, len(order))
	for _, id := range order {
		cfg, _ := r.Get(id)
		out = append(out, cfg)
	}
	return out
}

// Report records one load attempt of id.
func (r *Registry) Report(id string, ok bool, loadMs int64) error {
	if _, known := table[id]; !known {
		return ErrUnknownProvider
	}

	r.stats.Compute(id, func(st Stats, _ bool) (Stats, bool) {
		st.Loads++
		if !ok {
			st.Failures++
		}
		if loadMs > 0 {
			st.LastLoadMs = loadMs
			st.AvgLoadMs += (float64(loadMs) - st.AvgLoadMs) / float64(st.Loads)
		}
		st.LastReport = time.Now()
		return st, false
	})

	if !ok {
		utils.DebugLog("Provider %s failed to load after %dms", id, loadMs)
	}
	return nil
}

// Fallback returns the provider to try after id fails. Only next-provider
// strategies move to another provider; next-stream stays on id.
func (r *Registry) Fallback(id string) (string, bool) {
	cfg, ok := table[id]
	if !ok {
		return "", false
	}

	switch cfg.FallbackStrategy {
	case FallbackNextStream:
		return id, true
	case FallbackNextProvider:
		start := Preference(id)
		for _, next := range order[start+1:] {
			if c := table[next]; c.Active && next != "admin" {
				return next, true
			}
		}
		return "", false
	default:
		return "", false
	}
}

// Preference ranks a provider, lower is preferred. Unknown providers sort
// last.
func Preference(id string) int {
	for i, p := range order {
		if p == id {
			return i
		}
	}
	return len(order)
}

