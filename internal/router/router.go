package router

import (
	"github.com/gin-gonic/gin"

	"fiscora/internal/handler"
	"fiscora/internal/middleware"
)

// Setup configures the Gin engine with all routes and middleware.
func Setup(
	corsOrigins []string,
	extractH *handler.ExtractHandler,
	batchH *handler.BatchHandler,
	cacheH *handler.CacheHandler,
	engineH *handler.EngineHandler,
	healthH *handler.HealthHandler,
) *gin.Engine {
	r := gin.New()

	// Global middleware
	r.Use(middleware.Recovery())
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.CORS(corsOrigins))

	// Health checks
	r.GET("/healthz", healthH.Liveness)
	r.GET("/readyz", healthH.Readiness)

	v1 := r.Group("/api/v1")

	v1.POST("/extract", extractH.Extract)
	v1.POST("/extract/upload", extractH.ExtractUpload)

	batches := v1.Group("/batches")
	batches.POST("", batchH.Create)
	batches.GET("", batchH.List)
	batches.GET("/:id", batchH.Get)
	batches.POST("/:id/cancel", batchH.Cancel)
	batches.POST("/:id/retry", batchH.Retry)
	batches.DELETE("/:id", batchH.Delete)

	cache := v1.Group("/cache")
	cache.GET("/stats", cacheH.Stats)
	cache.POST("/invalidate", cacheH.Invalidate)
	cache.DELETE("", cacheH.Clear)

	v1.GET("/engines", engineH.List)

	return r
}
