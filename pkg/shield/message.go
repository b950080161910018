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

package shield

import (
	"errors"
	"fmt"
)

// Message types accepted by Filter.Message.
const (
	MessageAddPattern = "ADD_PATTERN"
	MessageGetStatus  = "GET_STATUS"
)

// ErrUnknownMessage is returned for message types the filter does not handle.
var ErrUnknownMessage = errors.New("unknown message type")

// Message is a control request for the filter.
type Message struct {
	Type    string `json:"type" binding:"required"`
	Pattern string `json:"pattern,omitempty"`
}

// Reply answers a Message.
type Reply struct {
	Type    string  `json:"type"`
	Pattern string  `json:"pattern,omitempty"`
	Status  *Status `json:"status,omitempty"`
}

// Message handles one control request.
func (f *Filter) Message(msg Message) (Reply, error) {
	switch msg.Type {
	case MessageAddPattern:
		if err := f.AddPattern(msg.Pattern); err != nil {
			return Reply{}, err
		}
		return Reply{Type: "PATTERN_ADDED", Pattern: msg.Pattern}, nil
	case MessageGetStatus:
		status := f.Status()
		return Reply{Type: "STATUS", Status: &status}, nil
	default:
		return Reply{}, fmt.Errorf("%w: %q", ErrUnknownMessage, msg.Type)
	}
}
