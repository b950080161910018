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

package utils

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// LocatedError annotates an error with where it was reported and, for
// upstream failures, the masked URL that failed. errors.Is and errors.As see
// through it.
type LocatedError struct {
	Location string
	URL      string
	Err      error
}

func (e *LocatedError) Error() string {
	var b strings.Builder
	if e.Location != "" {
		b.WriteString(e.Location)
		b.WriteString(": ")
	}
	if e.URL != "" {
		b.WriteString(e.URL)
		b.WriteString(": ")
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *LocatedError) Unwrap() error {
	return e.Err
}

// UpstreamError attaches the masked target URL to err. Tokens in the query
// never reach the logs.
func UpstreamError(target string, err error) error {
	if err == nil {
		return nil
	}
	return &LocatedError{URL: MaskURL(target), Err: err}
}

// PrintErrorAndReturn logs err at error level with the caller's file, line
// and function, and returns the annotated error. ERROR_DETAIL_LEVEL=none
// drops the location.
func PrintErrorAndReturn(err error) error {
	if err == nil {
		return nil
	}

	located, ok := err.(*LocatedError)
	if !ok {
		located = &LocatedError{Err: err}
	} else {
		cp := *located
		located = &cp
	}
	if located.Location == "" {
		located.Location = callerLocation(2)
	}

	ErrorLog("%v", located)
	return located
}

func callerLocation(skip int) string {
	if strings.EqualFold(os.Getenv("ERROR_DETAIL_LEVEL"), "none") {
		return ""
	}
	pc, file, line, ok := runtime.Caller(skip)
	if !ok {
		return ""
	}
	name := "?"
	if fn := runtime.FuncForPC(pc); fn != nil {
		name = filepath.Base(fn.Name())
	}
	return fmt.Sprintf("%s:%d [%s]", filepath.Base(file), line, name)
}
