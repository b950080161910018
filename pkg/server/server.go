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
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/lucasduport/matchcast/pkg/analytics"
	"github.com/lucasduport/matchcast/pkg/catalog"
	"github.com/lucasduport/matchcast/pkg/config"
	"github.com/lucasduport/matchcast/pkg/control"
	"github.com/lucasduport/matchcast/pkg/providers"
	"github.com/lucasduport/matchcast/pkg/relay"
	"github.com/lucasduport/matchcast/pkg/shield"
	"github.com/lucasduport/matchcast/pkg/store"
	"github.com/lucasduport/matchcast/pkg/types"
	"github.com/lucasduport/matchcast/pkg/utils"
	"github.com/panjf2000/ants/v2"
)

const extractCacheSize = 512

// Config represent the server configuration
type Config struct {
	*config.ProxyConfig

	// media relay, no overall timeout
	relay *relay.Client
	// embed pages and extraction
	pages *relay.Client

	filter    *shield.Filter
	sanitizer *shield.Sanitizer

	catalog     *catalog.Client
	reedstreams *catalog.Client
	aggregator  *catalog.Aggregator
	pool        *ants.Pool

	providers *providers.Registry
	store     store.Store
	control   *control.Service
	analytics *analytics.Sink

	extractCache *expirable.LRU[string, string]
}

// NewServer initializes a new server configuration with all necessary components
func NewServer(cfg *config.ProxyConfig) (*Config, error) {
	filter, err := shield.NewFilter(cfg.Shield.ExtraPatterns, cfg.Shield.ExtraWhitelist)
	if err != nil {
		return nil, utils.PrintErrorAndReturn(err)
	}

	st, err := store.Open(cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize store: %w", err)
	}

	notifier, err := control.NewDiscordNotifier(cfg.DiscordWebhookURL.String())
	if err != nil {
		st.Close()
		return nil, err
	}

	poolSize := cfg.WorkerPoolSize
	if poolSize <= 0 {
		poolSize = 16
	}
	pool, err := ants.NewPool(poolSize)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}

	c := &Config{
		ProxyConfig: cfg,
		relay:       relay.NewClient(relay.WithBlocker(filter)),
		pages:       relay.NewClient(relay.WithBlocker(filter), relay.WithTimeout(15*time.Second)),
		filter:      filter,
		sanitizer: shield.NewSanitizer(filter,
			shield.NavigationPolicy{AllowedHosts: cfg.Shield.AllowedHosts},
			shield.WithVideoIframeClass(cfg.Shield.VideoIframeClass),
			shield.WithZIndexThreshold(cfg.Shield.ZIndexThreshold),
		),
		catalog:     catalog.NewClient(cfg.Upstream.StreamedBaseURL, cfg.Upstream.RequestsPerSecond, cfg.Upstream.CacheTTL, cfg.Upstream.Timeout),
		reedstreams: catalog.NewClient(cfg.Upstream.ReedstreamsBaseURL, cfg.Upstream.RequestsPerSecond, cfg.Upstream.CacheTTL, cfg.Upstream.Timeout),
		pool:        pool,
		providers:   providers.NewRegistry(),
		store:       st,
		control:     control.NewService(st, control.NewAuthenticator(cfg), notifier),
		analytics:   analytics.NewSink(),
	}
	c.aggregator = catalog.NewAggregator(c.catalog, pool, providers.Preference)

	if cfg.ExtractCacheTTL > 0 {
		c.extractCache = expirable.NewLRU[string, string](extractCacheSize, nil, cfg.ExtractCacheTTL)
	}

	utils.InfoLog("Bootstrap: catalog=%s reedstreams=%s store=%s pool=%d",
		cfg.Upstream.StreamedBaseURL, cfg.Upstream.ReedstreamsBaseURL, cfg.Store.Backend, poolSize)
	return c, nil
}

// Close releases the worker pool and the store.
func (c *Config) Close() {
	c.pool.Release()
	if err := c.store.Close(); err != nil {
		utils.WarnLog("Failed to close store: %v", err)
	}
}

// Router builds the gin engine with every route mounted.
func (c *Config) Router() *gin.Engine {
	router := gin.Default()
	router.Use(requestIDMiddleware())
	router.Use(c.corsMiddleware())
	router.Use(recoveryMiddleware())
	c.routes(router)
	return router
}

// Serve the matchcast api
func (c *Config) Serve() error {
	utils.InfoLog("[matchcast] Server is starting...")
	defer c.Close()

	router := c.Router()

	utils.InfoLog("[matchcast] Server is ready and listening on %s", c.HostConfig.Addr())
	return router.Run(c.HostConfig.Addr())
}

// recoveryMiddleware turns handler panics into a JSON 500.
func recoveryMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				utils.ErrorLog("PANIC RECOVERED: %v\nStack trace: %s", err, debug.Stack())
				ctx.AbortWithStatusJSON(http.StatusInternalServerError, types.APIResponse{
					Success: false,
					Error:   fmt.Sprintf("Internal server error: %v", err),
				})
			}
		}()
		ctx.Next()
	}
}

// proxyPaths answer preflight with 200, players choke on 204 there.
const requestIDHeader = "X-Request-ID"

// requestIDMiddleware keeps a client supplied request id or assigns one.
func requestIDMiddleware() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader(requestIDHeader)
		if id == "" || len(id) > 128 {
			id = uuid.NewString()
		}
		ctx.Set("requestID", id)
		ctx.Writer.Header().Set(requestIDHeader, id)
		ctx.Next()
	}
}

var proxyPaths = []string{
	"/api/proxy/",
	"/api/stream/proxy",
	"/api/extract-stream",
	"/api/clean-stream",
	"/api/shield/embed",
}

func isProxyPath(p string) bool {
	for _, prefix := range proxyPaths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

func setProxyCORS(h http.Header) {
	h.Set("Access-Control-Allow-Origin", "*")
	h.Set("Access-Control-Allow-Methods", "GET, HEAD, OPTIONS")
	h.Set("Access-Control-Allow-Headers", "Range, Content-Type, Origin, Accept, User-Agent")
	h.Set("Access-Control-Expose-Headers", "Content-Length, Content-Range, Accept-Ranges, X-Playlist-Type")
	h.Set("Access-Control-Max-Age", "86400")
}

// corsMiddleware applies permissive CORS on the relay routes and the
// standard gin-contrib policy on the JSON API.
func (c *Config) corsMiddleware() gin.HandlerFunc {
	apiCORS := cors.Default()
	return func(ctx *gin.Context) {
		if !isProxyPath(ctx.Request.URL.Path) {
			apiCORS(ctx)
			return
		}
		setProxyCORS(ctx.Writer.Header())
		if ctx.Request.Method == http.MethodOptions {
			ctx.AbortWithStatus(http.StatusOK)
			return
		}
		ctx.Next()
	}
}
