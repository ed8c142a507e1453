package app

import (
	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/newrelic/go-agent/v3/integrations/nrgin"
	"github.com/newrelic/go-agent/v3/newrelic"
	"github.com/redis/go-redis/v9"

	"ridemeter/internal/handler"
	"ridemeter/internal/middleware"
)

// RouterDeps contains all dependencies needed for the router.
type RouterDeps struct {
	SessionHandler *handler.SessionHandler
	BillingHandler *handler.BillingHandler
	RedisClient    redis.Cmdable
	NewRelicApp    *newrelic.Application
	JWTSecret      []byte
	Logger         *slog.Logger
}

// NewRouter creates a new Gin router with all routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	router := gin.New()

	// Global middleware.
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(deps.Logger))
	router.Use(middleware.CORSMiddleware())

	// Add New Relic middleware if enabled.
	if deps.NewRelicApp != nil {
		router.Use(nrgin.Middleware(deps.NewRelicApp))
	}

	// Health check.
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	// API v1 routes. Every route is scoped to one driver.
	drivers := router.Group("/v1/drivers/:id")
	drivers.Use(middleware.DriverAuthMiddleware(deps.JWTSecret))
	drivers.Use(middleware.NewRelicDriverAttributes())
	if deps.RedisClient != nil {
		drivers.Use(middleware.IdempotencyMiddleware(deps.RedisClient))
	}
	{
		// Session routes.
		drivers.POST("/session/events", deps.SessionHandler.ApplyEvent)
		drivers.GET("/session", deps.SessionHandler.GetView)
		drivers.GET("/session/ws", deps.SessionHandler.Stream)

		// Billing routes.
		drivers.GET("/billing/live", deps.BillingHandler.Live)
		drivers.GET("/billing/records", deps.BillingHandler.Records)
		drivers.DELETE("/billing/records", deps.BillingHandler.Clear)
		drivers.POST("/billing/sync", deps.BillingHandler.Sync)
		drivers.GET("/billing/summary", deps.BillingHandler.Summary)
	}

	return router
}
