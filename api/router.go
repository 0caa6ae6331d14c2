package api

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/harvest/api/handler"
	"github.com/use-agent/harvest/api/middleware"
	"github.com/use-agent/harvest/cache"
	"github.com/use-agent/harvest/config"
	"github.com/use-agent/harvest/runner"
)

// Deps are the services the routes are wired to.
type Deps struct {
	Pool     handler.PoolReporter
	Runner   *runner.Runner
	Cache    *cache.Cache
	Runs     *handler.RunStore
	Notifier handler.EventNotifier
}

// NewRouter creates a configured Gin engine with all routes and middleware.
// ctx bounds background runs and middleware housekeeping.
//
// Middleware chain:
//
//	Global:  Recovery → Logger
//	API:     Auth (if enabled) → RateLimit
//
// Health stays outside auth so monitoring probes always work.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())

	v1 := r.Group("/api/v1")

	v1.GET("/health", handler.Health(deps.Pool, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(cfg.RateLimit, ctx.Done()))

	// Single query, synchronous.
	protected.POST("/harvest", handler.Harvest(deps.Runner, deps.Cache))

	// Batch runs, asynchronous.
	protected.POST("/runs", handler.PostRun(ctx, deps.Runner, deps.Runs, deps.Notifier))
	protected.GET("/runs/:id", handler.GetRun(deps.Runs))

	return r
}
