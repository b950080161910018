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

package utils_test

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/lucasduport/matchcast/pkg/catalog"
	"github.com/lucasduport/matchcast/pkg/relay"
	"github.com/lucasduport/matchcast/pkg/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpstreamError(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		err     error
		hidden  string
		visible string
	}{
		{
			name:    "signed manifest",
			target:  "https://cdn.example/live/index.m3u8?token=supersecrettoken123",
			err:     &relay.StatusError{Status: http.StatusForbidden, URL: "cdn.example"},
			hidden:  "supersecrettoken123",
			visible: "cdn.example/live/index.m3u8",
		},
		{
			name:    "blocked redirect",
			target:  "https://ads.example/pop?sig=abcdefghijklmnop",
			err:     fmt.Errorf("redirect: %w", relay.ErrBlocked),
			hidden:  "abcdefghijklmnop",
			visible: "ads.example/pop",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := utils.UpstreamError(tt.target, tt.err)
			require.Error(t, err)
			assert.NotContains(t, err.Error(), tt.hidden)
			assert.Contains(t, err.Error(), tt.visible)
			assert.True(t, errors.Is(err, tt.err))
		})
	}

	assert.NoError(t, utils.UpstreamError("https://x", nil))
}

func TestUpstreamErrorKeepsStatus(t *testing.T) {
	err := utils.UpstreamError("https://cdn.example/seg.ts", &relay.StatusError{Status: http.StatusGone})

	var se *relay.StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusGone, se.Status)
	assert.Equal(t, http.StatusGone, relay.StatusOf(err, http.StatusInternalServerError))
}

func TestPrintErrorAndReturn(t *testing.T) {
	assert.NoError(t, utils.PrintErrorAndReturn(nil))

	err := utils.PrintErrorAndReturn(catalog.ErrMatchNotFound)
	require.Error(t, err)
	assert.ErrorIs(t, err, catalog.ErrMatchNotFound)
	assert.Contains(t, err.Error(), "error_utils_test.go:")
	assert.Contains(t, err.Error(), "TestPrintErrorAndReturn")
	assert.True(t, strings.HasSuffix(err.Error(), catalog.ErrMatchNotFound.Error()))

	wrapped := utils.PrintErrorAndReturn(utils.UpstreamError("https://cdn.example/a.m3u8", relay.ErrBlocked))
	assert.ErrorIs(t, wrapped, relay.ErrBlocked)
	assert.Contains(t, wrapped.Error(), "cdn.example/a.m3u8")
	assert.Contains(t, wrapped.Error(), "error_utils_test.go:")
}

func TestPrintErrorAndReturnWithoutLocation(t *testing.T) {
	t.Setenv("ERROR_DETAIL_LEVEL", "none")

	err := utils.PrintErrorAndReturn(catalog.ErrMatchNotFound)
	assert.Equal(t, catalog.ErrMatchNotFound.Error(), err.Error())
}
