// Package router assembles the gin engine: middleware chain, webhook
// endpoint and the administrative sync API.
package router

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"github.com/erp/channelsync/internal/infrastructure/logger"
	"github.com/erp/channelsync/internal/interfaces/http/handler"
	"github.com/erp/channelsync/internal/interfaces/http/middleware"
)

// Config holds router configuration.
type Config struct {
	ServiceName    string
	Env            string
	MaxBodySize    int64
	CORSOrigins    []string
	TracingEnabled bool
}

// Handlers groups the handler set the router mounts.
type Handlers struct {
	System  *handler.SystemHandler
	Webhook *handler.WebhookHandler
	Sync    *handler.SyncHandler
}

// New builds the gin engine with the full middleware chain and all routes
// registered.
func New(cfg Config, h Handlers, log *zap.Logger) *gin.Engine {
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	if len(cfg.CORSOrigins) > 0 {
		corsCfg := middleware.DefaultCORSConfig()
		corsCfg.AllowOrigins = cfg.CORSOrigins
		engine.Use(middleware.CORS(corsCfg))
	}
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	if cfg.TracingEnabled {
		engine.Use(otelgin.Middleware(cfg.ServiceName))
	}

	engine.GET("/health", h.System.Health)
	engine.POST("/webhooks/stock", h.Webhook.HandleStockWebhook)

	api := engine.Group("/api/v1")
	{
		api.POST("/sync/stock", h.Sync.TriggerStockSync)
		api.POST("/sync/orders", h.Sync.TriggerOrderSync)
		api.POST("/sync/processed/reset", h.Sync.ResetProcessedOrders)
		api.GET("/sync/runs", h.Sync.ListRuns)
		api.GET("/sync/status", h.Sync.SyncStatus)
		api.POST("/mappings/reload", h.Sync.ReloadMappings)
		api.GET("/mappings/stats", h.Sync.MappingStats)
	}

	return engine
}
