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

// Package control manages admin overrides that pin a match to a source.
package control

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lucasduport/matchcast/pkg/store"
	"github.com/lucasduport/matchcast/pkg/utils"
)

const keyPrefix = "override:"

// ErrMissingMatchID is returned when a mutation names no match.
var ErrMissingMatchID = errors.New("matchId is required")

// Override pins a match to one source.
type Override struct {
	MatchID   string    `json:"matchId"`
	Source    string    `json:"source"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Service reads and writes overrides.
type Service struct {
	store    store.Store
	auth     Authenticator
	notifier Notifier
	now      func() time.Time
}

// NewService returns a Service. notifier may be nil.
func NewService(st store.Store, auth Authenticator, notifier Notifier) *Service {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &Service{store: st, auth: auth, notifier: notifier, now: time.Now}
}

func overrideKey(matchID string) string {
	return keyPrefix + matchID
}

// Get returns the override of matchID, or nil when there is none.
func (s *Service) Get(ctx context.Context, matchID string) (*Override, error) {
	if strings.TrimSpace(matchID) == "" {
		return nil, ErrMissingMatchID
	}

	data, err := s.store.Get(ctx, overrideKey(matchID))
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read override: %w", err)
	}

	var o Override
	if err := json.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("corrupt override for %s: %w", matchID, err)
	}
	return &o, nil
}

// List returns every override, after checking creds.
func (s *Service) List(ctx context.Context, creds Credentials) ([]Override, error) {
	if err := s.auth.Authenticate(ctx, creds); err != nil {
		return nil, ErrUnauthorized
	}

	entries, err := s.store.List(ctx, keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to list overrides: %w", err)
	}

	overrides := make([]Override, 0, len(entries))
	for _, e := range entries {
		var o Override
		if err := json.Unmarshal(e.Value, &o); err != nil {
			utils.WarnLog("Skipping corrupt override %s: %v", e.Key, err)
			continue
		}
		overrides = append(overrides, o)
	}
	return overrides, nil
}

// Set pins matchID to source, or clears the override when source is empty.
// Credentials are checked before anything is written.
func (s *Service) Set(ctx context.Context, matchID, source string, creds Credentials) (*Override, error) {
	matchID = strings.TrimSpace(matchID)
	source = strings.TrimSpace(source)
	if matchID == "" {
		return nil, ErrMissingMatchID
	}
	if err := s.auth.Authenticate(ctx, creds); err != nil {
		utils.WarnLog("Rejected stream-control update for match %s", matchID)
		return nil, ErrUnauthorized
	}

	o := Override{MatchID: matchID, Source: source, UpdatedAt: s.now().UTC()}

	if source == "" {
		if err := s.store.Delete(ctx, overrideKey(matchID)); err != nil {
			return nil, fmt.Errorf("failed to clear override: %w", err)
		}
		utils.InfoLog("Stream override cleared for match %s", matchID)
		s.notify(o, true)
		return nil, nil
	}

	data, err := json.Marshal(o)
	if err != nil {
		return nil, err
	}
	if err := s.store.Set(ctx, overrideKey(matchID), data); err != nil {
		return nil, fmt.Errorf("failed to save override: %w", err)
	}
	utils.InfoLog("Stream override set for match %s: %s", matchID, source)
	s.notify(o, false)
	return &o, nil
}

func (s *Service) notify(o Override, cleared bool) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := s.notifier.OverrideChanged(ctx, o, cleared); err != nil {
			utils.WarnLog("Override notification failed: %v", err)
		}
	}()
}
