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

package server

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/lucasduport/matchcast/pkg/control"
	"github.com/lucasduport/matchcast/pkg/types"
	"github.com/lucasduport/matchcast/pkg/utils"
)

const maxAnalyticsBody = 1 << 20

func credentialsFrom(req types.StreamControlRequest) control.Credentials {
	return control.Credentials{Secret: req.Secret, Username: req.Username, Password: req.Password}
}

func controlError(ctx *gin.Context, err error) {
	switch {
	case errors.Is(err, control.ErrUnauthorized):
		ctx.AbortWithStatusJSON(http.StatusUnauthorized, types.APIResponse{Success: false, Error: "Unauthorized"})
	case errors.Is(err, control.ErrMissingMatchID):
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: err.Error()})
	default:
		utils.PrintErrorAndReturn(fmt.Errorf("stream control: %w", err))
		ctx.AbortWithStatusJSON(http.StatusInternalServerError, types.APIResponse{Success: false, Error: err.Error()})
	}
}

// getStreamControl returns one override, or all of them to an admin.
func (c *Config) getStreamControl(ctx *gin.Context) {
	matchID := ctx.Query("matchId")
	if matchID == "" {
		creds := control.Credentials{
			Secret:   ctx.Query("secret"),
			Username: ctx.Query("username"),
			Password: ctx.Query("password"),
		}
		if h := ctx.GetHeader("X-Admin-Secret"); h != "" {
			creds.Secret = h
		}
		overrides, err := c.control.List(ctx.Request.Context(), creds)
		if err != nil {
			controlError(ctx, err)
			return
		}
		ctx.JSON(http.StatusOK, types.APIResponse{Success: true, Data: overrides})
		return
	}

	override, err := c.control.Get(ctx.Request.Context(), matchID)
	if err != nil {
		controlError(ctx, err)
		return
	}
	// a nil override still has to serialize as data: null
	ctx.JSON(http.StatusOK, gin.H{"success": true, "data": override})
}

func (c *Config) postStreamControl(ctx *gin.Context) {
	var req types.StreamControlRequest
	if err := ctx.ShouldBind(&req); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: "Invalid request: " + err.Error()})
		return
	}
	if h := ctx.GetHeader("X-Admin-Secret"); h != "" && req.Secret == "" {
		req.Secret = h
	}

	override, err := c.control.Set(ctx.Request.Context(), req.MatchID, req.Source, credentialsFrom(req))
	if err != nil {
		controlError(ctx, err)
		return
	}

	msg := "Override saved"
	if override == nil {
		msg = "Override cleared"
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "message": msg, "data": override})
}

func (c *Config) postAnalytics(ctx *gin.Context) {
	body, err := io.ReadAll(io.LimitReader(ctx.Request.Body, maxAnalyticsBody))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: "Unreadable body"})
		return
	}

	batch, err := c.analytics.Ingest(ctx.Param("kind"), body)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, types.APIResponse{Success: true, Data: batch})
}

func (c *Config) getAnalyticsSummary(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, types.APIResponse{Success: true, Data: c.analytics.Summary()})
}

func (c *Config) listProviders(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, types.APIResponse{Success: true, Data: c.providers.List()})
}

func (c *Config) getProvider(ctx *gin.Context) {
	cfg, err := c.providers.Get(strings.ToLower(ctx.Param("id")))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusNotFound, types.APIResponse{Success: false, Error: err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, types.APIResponse{Success: true, Data: cfg})
}

// reportProvider records a load attempt and tells the client where to go
// next when it failed.
func (c *Config) reportProvider(ctx *gin.Context) {
	id := strings.ToLower(ctx.Param("id"))

	var report types.ProviderReport
	if err := ctx.ShouldBindJSON(&report); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, types.APIResponse{Success: false, Error: "Invalid request: " + err.Error()})
		return
	}
	if err := c.providers.Report(id, report.OK, report.LoadMs); err != nil {
		ctx.AbortWithStatusJSON(http.StatusNotFound, types.APIResponse{Success: false, Error: err.Error()})
		return
	}

	data := gin.H{"provider": id}
	if !report.OK {
		if next, ok := c.providers.Fallback(id); ok {
			data["fallback"] = next
		}
	}
	ctx.JSON(http.StatusOK, types.APIResponse{Success: true, Data: data})
}
