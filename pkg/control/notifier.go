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

package control

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/lucasduport/matchcast/pkg/utils"
)

// Notifier is told about override changes.
type Notifier interface {
	OverrideChanged(ctx context.Context, o Override, cleared bool) error
}

type nopNotifier struct{}

func (nopNotifier) OverrideChanged(context.Context, Override, bool) error { return nil }

// DiscordNotifier posts override changes to a Discord webhook.
type DiscordNotifier struct {
	session *discordgo.Session
	id      string
	token   string
}

// NewDiscordNotifier returns a notifier for webhookURL, or a no-op notifier
// when the URL is empty.
func NewDiscordNotifier(webhookURL string) (Notifier, error) {
	if webhookURL == "" {
		utils.DebugLog("Discord webhook not configured; override notifications disabled")
		return nopNotifier{}, nil
	}

	id, token, err := parseWebhookURL(webhookURL)
	if err != nil {
		return nil, err
	}

	session, err := discordgo.New("")
	if err != nil {
		return nil, fmt.Errorf("failed to create discord session: %w", err)
	}
	session.Client.Timeout = 10 * time.Second

	return &DiscordNotifier{session: session, id: id, token: token}, nil
}

// parseWebhookURL splits https://discord.com/api/webhooks/<id>/<token>.
func parseWebhookURL(raw string) (string, string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("invalid webhook url: %w", err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	for i := 0; i+2 < len(parts); i++ {
		if parts[i] == "webhooks" && parts[i+1] != "" && parts[i+2] != "" {
			return parts[i+1], parts[i+2], nil
		}
	}
	return "", "", fmt.Errorf("invalid webhook url: missing id or token")
}

func (n *DiscordNotifier) OverrideChanged(ctx context.Context, o Override, cleared bool) error {
	params := &discordgo.WebhookParams{
		Username: "matchcast",
		Embeds: []*discordgo.MessageEmbed{{
			Title:       "Stream override updated",
			Description: fmt.Sprintf("Match `%s` now uses source `%s`", o.MatchID, o.Source),
			Timestamp:   o.UpdatedAt.Format(time.RFC3339),
			Color:       0x2ecc71,
		}},
	}
	if cleared {
		params.Embeds[0].Title = "Stream override cleared"
		params.Embeds[0].Description = fmt.Sprintf("Match `%s` is back to automatic source selection", o.MatchID)
		params.Embeds[0].Color = 0xe67e22
	}

	_, err := n.session.WebhookExecute(n.id, n.token, false, params, discordgo.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("discord webhook failed: %w", err)
	}
	return nil
}
