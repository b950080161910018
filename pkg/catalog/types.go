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

// Package catalog talks to the match listing APIs and gathers the embeddable
// streams of a match across its sources.
package catalog

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// FlexString unmarshals a JSON string, number or null into a string. The
// upstreams are not consistent about the type of their ids.
type FlexString string

// UnmarshalJSON implements the json.Unmarshaler interface.
func (fs *FlexString) UnmarshalJSON(b []byte) error {
	if len(b) == 0 || string(b) == "null" {
		*fs = ""
		return nil
	}

	var s string
	if err := json.Unmarshal(b, &s); err == nil {
		*fs = FlexString(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return fmt.Errorf("id is neither a string nor a number: %s", b)
	}
	*fs = FlexString(n.String())
	return nil
}

// String returns the underlying value.
func (fs FlexString) String() string {
	return string(fs)
}

// Int returns the value as an int, or 0 when it is not numeric.
func (fs FlexString) Int() int {
	i, err := strconv.Atoi(string(fs))
	if err != nil {
		return 0
	}
	return i
}

// Team is one side of a match.
type Team struct {
	Name  string `json:"name"`
	Badge string `json:"badge,omitempty"`
}

// Teams holds both sides when the listing knows them.
type Teams struct {
	Home *Team `json:"home,omitempty"`
	Away *Team `json:"away,omitempty"`
}

// Source is a provider that carries a match, with the match id in that
// provider's namespace.
type Source struct {
	Source string     `json:"source"`
	ID     FlexString `json:"id"`
}

// Match is a listing entry.
type Match struct {
	ID       FlexString `json:"id"`
	Title    string     `json:"title"`
	Category string     `json:"category"`
	Date     int64      `json:"date"`
	Poster   string     `json:"poster,omitempty"`
	Popular  bool       `json:"popular"`
	Teams    *Teams     `json:"teams,omitempty"`
	Sources  []Source   `json:"sources"`
}

// Stream is one embeddable rendition of a match.
type Stream struct {
	ID               FlexString `json:"id"`
	StreamNo         int        `json:"streamNo"`
	Language         string     `json:"language"`
	HD               bool       `json:"hd"`
	EmbedURL         string     `json:"embedUrl"`
	Source           string     `json:"source"`
	SourceIdentifier string     `json:"sourceIdentifier,omitempty"`
}
