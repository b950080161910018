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

package config

import (
	"fmt"
	"time"
)

// CredentialString represents a secret value that must not leak into logs.
type CredentialString string

// String returns the raw secret.
func (c CredentialString) String() string {
	return string(c)
}

// Masked returns a placeholder suitable for logs.
func (c CredentialString) Masked() string {
	if len(c) == 0 {
		return ""
	}
	return "******"
}

// HostConfiguration containt host infos
type HostConfiguration struct {
	Hostname string
	Port     int
}

// Addr returns the listen address.
func (h *HostConfiguration) Addr() string {
	return fmt.Sprintf(":%d", h.Port)
}

// UpstreamConfig describes the third-party catalog services.
type UpstreamConfig struct {
	StreamedBaseURL    string
	ReedstreamsBaseURL string
	RequestsPerSecond  int
	CacheTTL           time.Duration
	Timeout            time.Duration
}

// StoreConfig selects the key-value backend used for admin overrides.
type StoreConfig struct {
	Backend     string // memory, bolt or postgres
	BoltPath    string
	PostgresDSN string
}

// LDAPConfig is the optional directory used to authenticate admins.
type LDAPConfig struct {
	Enabled        bool
	Server         string
	BaseDN         string
	BindDN         string
	BindPassword   CredentialString
	UserAttribute  string
	GroupAttribute string
	RequiredGroup  string
}

// ShieldConfig tunes the ad shield heuristics.
type ShieldConfig struct {
	VideoIframeClass string
	ZIndexThreshold  int
	ExtraPatterns    []string
	ExtraWhitelist   []string
	AllowedHosts     []string
}

// ProxyConfig is the complete server configuration.
type ProxyConfig struct {
	HostConfig *HostConfiguration

	// PublicBaseURL is used to build absolute links in generated playlists.
	// When empty, links are derived from the incoming request.
	PublicBaseURL string

	Upstream UpstreamConfig
	Store    StoreConfig
	LDAP     LDAPConfig
	Shield   ShieldConfig

	AdminSecret       CredentialString
	DiscordWebhookURL CredentialString

	// SignedWrapSegments routes rewritten signed-manifest URIs back through
	// the signed relay instead of pointing players at the upstream.
	SignedWrapSegments bool

	ExtractCacheTTL time.Duration
	WorkerPoolSize  int
}

// Default returns a configuration with the same defaults as the CLI flags.
func Default() *ProxyConfig {
	return &ProxyConfig{
		HostConfig: &HostConfiguration{Port: 8080},
		Upstream: UpstreamConfig{
			StreamedBaseURL:    "https://streamed.pk",
			ReedstreamsBaseURL: "https://api.reedstreams.live",
			RequestsPerSecond:  10,
			CacheTTL:           30 * time.Second,
			Timeout:            10 * time.Second,
		},
		Store: StoreConfig{Backend: "memory"},
		LDAP: LDAPConfig{
			UserAttribute:  "uid",
			GroupAttribute: "memberOf",
		},
		Shield: ShieldConfig{
			VideoIframeClass: "video-iframe",
			ZIndexThreshold:  1000,
		},
		AdminSecret:     "matchcast-admin",
		ExtractCacheTTL: 5 * time.Minute,
		WorkerPoolSize:  16,
	}
}
