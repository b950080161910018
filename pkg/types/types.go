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

package types

// APIResponse is a standardized API response structure
type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// Extraction is the result of locating a manifest inside an embed page.
type Extraction struct {
	Source   string `json:"source"`
	Manifest string `json:"manifest"`
	Proxied  string `json:"proxied"`
}

// StreamControlRequest is accepted as JSON or form data.
type StreamControlRequest struct {
	MatchID  string `json:"matchId" form:"matchId"`
	Source   string `json:"source" form:"source"`
	Secret   string `json:"secret" form:"secret"`
	Username string `json:"username" form:"username"`
	Password string `json:"password" form:"password"`
}

// ProviderReport is a client-side load report for one provider.
type ProviderReport struct {
	OK     bool  `json:"ok"`
	LoadMs int64 `json:"loadMs"`
}
