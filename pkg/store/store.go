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

// Package store is the small key-value persistence layer behind stream-control
// overrides.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lucasduport/matchcast/pkg/config"
	"github.com/lucasduport/matchcast/pkg/utils"
)

// ErrNotFound is returned by Get for missing keys.
var ErrNotFound = errors.New("key not found")

// Entry is one key-value pair returned by List.
type Entry struct {
	Key   string
	Value []byte
}

// Store is a string-keyed byte store. Implementations are safe for
// concurrent use.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	// List returns the entries whose key starts with prefix, sorted by key.
	List(ctx context.Context, prefix string) ([]Entry, error)
	Close() error
}

// Open returns the backend selected by cfg.Backend.
func Open(cfg config.StoreConfig) (Store, error) {
	backend := strings.ToLower(strings.TrimSpace(cfg.Backend))
	utils.InfoLog("Opening %s store", backendName(backend))

	switch backend {
	case "", "memory":
		return NewMemory(), nil
	case "bolt", "bbolt":
		return OpenBolt(cfg.BoltPath)
	case "postgres", "postgresql":
		return OpenPostgres(cfg.PostgresDSN)
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func backendName(b string) string {
	if b == "" {
		return "memory"
	}
	return b
}
