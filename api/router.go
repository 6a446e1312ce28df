package api

import (
	"context"
	"net/http"
	"time"

	"github.com/ecoaudit/scanner/api/handler"
	"github.com/ecoaudit/scanner/api/middleware"
	"github.com/ecoaudit/scanner/cache"
	"github.com/ecoaudit/scanner/config"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Deps are the collaborators the routes are built on. History and Cache
// may be nil.
type Deps struct {
	Scanner handler.Scanner
	History handler.History
	Cache   *cache.Cache
	Batches *handler.Batches
}

// NewRouter creates a configured Gin engine with all routes and middleware.
//
// Middleware chain:
//
//	Global:  Recovery → Logger → CORS
//	API:     Auth (if enabled) → RateLimit
//
// Liveness and health stay outside auth so monitoring probes always work.
// Background goroutines owned by the router stop when ctx ends.
func NewRouter(ctx context.Context, cfg *config.Config, deps Deps, startTime time.Time) *gin.Engine {
	gin.SetMode(cfg.Server.Mode)

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(gin.Logger())
	r.Use(cors.New(corsConfig(cfg.CORS)))

	r.GET("/", func(c *gin.Context) {
		c.String(http.StatusOK, "EcoAudit scanner is running")
	})

	v1 := r.Group("/api/v1")
	v1.GET("/health", handler.Health(deps.Scanner, deps.History, startTime))

	protected := v1.Group("")
	if cfg.Auth.Enabled {
		protected.Use(middleware.Auth(cfg.Auth.APIKeys))
	}
	protected.Use(middleware.RateLimit(ctx, cfg.RateLimit))

	protected.POST("/scan", handler.Scan(deps.Scanner, deps.Cache, deps.History))

	if deps.Batches != nil {
		protected.POST("/batch/scan", deps.Batches.Post())
		protected.GET("/batch/:id", deps.Batches.Get())
	}

	protected.GET("/scans", handler.ListScans(deps.History))
	protected.GET("/scans/:id", handler.GetScan(deps.History))

	return r
}

func corsConfig(cfg config.CORSConfig) cors.Config {
	cc := cors.DefaultConfig()
	cc.AllowHeaders = append(cc.AllowHeaders, "Authorization", "X-API-Key")
	allowAll := len(cfg.AllowOrigins) == 0
	for _, o := range cfg.AllowOrigins {
		if o == "*" {
			allowAll = true
		}
	}
	if allowAll {
		cc.AllowAllOrigins = true
	} else {
		cc.AllowOrigins = cfg.AllowOrigins
	}
	return cc
}
