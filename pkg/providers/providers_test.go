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

package providers

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistryGetAndList(t *testing.T) {
	r := NewRegistry()

	cfg, err := r.Get("charlie")
	require.NoError(t, err)
	assert.Equal(t, "charlie", cfg.ID)
	assert.True(t, cfg.NeedsSandbox)
	assert.Contains(t, cfg.SandboxPermissions, "allow-scripts")
	assert.Equal(t, FallbackNextProvider, cfg.FallbackStrategy)

	_, err = r.Get("zulu")
	assert.ErrorIs(t, err, ErrUnknownProvider)

	list := r.List()
	require.Len(t, list, 10)
	assert.Equal(t, "alpha", list[0].ID)
	assert.Equal(t, "admin", list[len(list)-1].ID)
}

func TestRegistryReport(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, r.Report("alpha", i%5 != 0, 100))
		}(i)
	}
	wg.Wait()

	cfg, err := r.Get("alpha")
	require.NoError(t, err)
	assert.Equal(t, int64(50), cfg.Stats.Loads)
	assert.Equal(t, int64(10), cfg.Stats.Failures)
	assert.InDelta(t, 100, cfg.Stats.AvgLoadMs, 0.001)
	assert.False(t, cfg.Stats.LastReport.IsZero())

	assert.ErrorIs(t, r.Report("zulu", true, 1), ErrUnknownProvider)
}

func TestFallback(t *testing.T) {
	r := NewRegistry()

	next, ok := r.Fallback("alpha")
	assert.True(t, ok)
	assert.Equal(t, "alpha", next)

	next, ok = r.Fallback("foxtrot")
	assert.True(t, ok)
	assert.Equal(t, "intel", next, "inactive golf and hotel are skipped")

	_, ok = r.Fallback("intel")
	assert.False(t, ok)

	_, ok = r.Fallback("admin")
	assert.False(t, ok)

	_, ok = r.Fallback("zulu")
	assert.False(t, ok)
}

func TestPreference(t *testing.T) {
	assert.Equal(t, 0, Preference("alpha"))
	assert.Less(t, Preference("alpha"), Preference("bravo"))
	assert.Less(t, Preference("intel"), Preference("admin"))
	assert.Equal(t, len(order), Preference("zulu"))
}
