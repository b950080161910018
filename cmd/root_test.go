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

package cmd

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	conf, err := loadConfig()
	require.NoError(t, err)

	assert.Equal(t, 8080, conf.HostConfig.Port)
	assert.Equal(t, "https://streamed.pk", conf.Upstream.StreamedBaseURL)
	assert.Equal(t, "memory", conf.Store.Backend)
	assert.Contains(t, conf.Store.PostgresDSN, "dbname=matchcast")
	assert.Equal(t, "video-iframe", conf.Shield.VideoIframeClass)
	assert.Equal(t, 5*time.Minute, conf.ExtractCacheTTL)
}

func TestLoadConfigOverrides(t *testing.T) {
	viper.Set("port", 9090)
	viper.Set("store-backend", "bolt")
	viper.Set("shield-patterns", []string{"badcdn"})
	viper.Set("signed-wrap-segments", true)
	t.Cleanup(func() {
		viper.Set("port", 8080)
		viper.Set("store-backend", "memory")
		viper.Set("shield-patterns", []string{})
		viper.Set("signed-wrap-segments", false)
	})

	conf, err := loadConfig()
	require.NoError(t, err)
	assert.Equal(t, 9090, conf.HostConfig.Port)
	assert.Equal(t, "bolt", conf.Store.Backend)
	assert.Equal(t, []string{"badcdn"}, conf.Shield.ExtraPatterns)
	assert.True(t, conf.SignedWrapSegments)
}

func TestLoadConfigRejectsLDAPWithoutServer(t *testing.T) {
	viper.Set("ldap-enabled", true)
	t.Cleanup(func() { viper.Set("ldap-enabled", false) })

	_, err := loadConfig()
	assert.Error(t, err)
}
