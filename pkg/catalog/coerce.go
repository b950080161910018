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

package catalog

import (
	"bytes"
	"fmt"
	"strconv"

	"github.com/buger/jsonparser"
)

// listKeys are the wrapper fields some endpoints put their arrays under.
var listKeys = []string{"data", "matches"}

// CoerceIDs rewrites numeric "id" fields as strings in every object of a
// top-level array, or of a data/matches array, including the ids of nested
// sources. Everything else is left byte for byte.
func CoerceIDs(data []byte) ([]byte, error) {
	_, dataType, _, err := jsonparser.Get(data)
	if err != nil {
		return nil, fmt.Errorf("invalid json: %w", err)
	}

	switch dataType {
	case jsonparser.Array:
		return coerceArray(data)
	case jsonparser.Object:
		for _, key := range listKeys {
			list, listType, _, err := jsonparser.Get(data, key)
			if err != nil || listType != jsonparser.Array {
				continue
			}
			coerced, err := coerceArray(list)
			if err != nil {
				return nil, err
			}
			if data, err = jsonparser.Set(data, coerced, key); err != nil {
				return nil, fmt.Errorf("failed to set %s: %w", key, err)
			}
		}
		return data, nil
	default:
		return data, nil
	}
}

func coerceArray(arr []byte) ([]byte, error) {
	var out bytes.Buffer
	var innerErr error
	first := true

	out.WriteByte('[')
	_, err := jsonparser.ArrayEach(arr, func(value []byte, dataType jsonparser.ValueType, _ int, _ error) {
		if innerErr != nil {
			return
		}
		if !first {
			out.WriteByte(',')
		}
		first = false

		switch dataType {
		case jsonparser.Object:
			obj, err := coerceObject(value)
			if err != nil {
				innerErr = err
				return
			}
			out.Write(obj)
		case jsonparser.String:
			out.WriteByte('"')
			out.Write(value)
			out.WriteByte('"')
		default:
			out.Write(value)
		}
	})
	if err != nil {
		return nil, fmt.Errorf("invalid json array: %w", err)
	}
	if innerErr != nil {
		return nil, innerErr
	}
	out.WriteByte(']')
	return out.Bytes(), nil
}

func coerceObject(obj []byte) ([]byte, error) {
	var err error

	id, idType, _, getErr := jsonparser.Get(obj, "id")
	if getErr == nil && idType == jsonparser.Number {
		if obj, err = jsonparser.Set(obj, []byte(strconv.Quote(string(id))), "id"); err != nil {
			return nil, fmt.Errorf("failed to coerce id: %w", err)
		}
	}

	sources, srcType, _, getErr := jsonparser.Get(obj, "sources")
	if getErr == nil && srcType == jsonparser.Array {
		coerced, err := coerceArray(sources)
		if err != nil {
			return nil, err
		}
		if obj, err = jsonparser.Set(obj, coerced, "sources"); err != nil {
			return nil, fmt.Errorf("failed to coerce sources: %w", err)
		}
	}
	return obj, nil
}

// listPayload returns the array carried by data, unwrapping data/matches.
func listPayload(data []byte) []byte {
	_, dataType, _, err := jsonparser.Get(data)
	if err != nil || dataType != jsonparser.Object {
		return data
	}
	for _, key := range listKeys {
		if list, listType, _, err := jsonparser.Get(data, key); err == nil && listType == jsonparser.Array {
			return list
		}
	}
	return data
}
