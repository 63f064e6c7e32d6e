package routes

import (
	"context"
	"time"

	"cratedig/config"
	"cratedig/controllers"
	"cratedig/logger"
	"cratedig/services"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

func SecurityHeadersMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Content-Security-Policy", "default-src 'none'; frame-ancestors 'none'")
		c.Header("X-Content-Type-Options", "nosniff")
		c.Header("X-Frame-Options", "DENY")
		c.Header("Referrer-Policy", "no-referrer")
		c.Next()
	}
}

// RequestLogger logs one structured line per request
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []logger.Field{
			logger.String("method", c.Request.Method),
			logger.String("path", c.FullPath()),
			logger.Int("status", c.Writer.Status()),
			logger.Duration("latency", time.Since(start)),
		}
		if c.Writer.Status() >= 500 {
			logger.Warn("Request failed", fields...)
			return
		}
		logger.Debug("Request served", fields...)
	}
}

// RequestTimeout bounds the request context of quick read endpoints
func RequestTimeout(d time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		if d <= 0 {
			c.Next()
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), d)
		defer cancel()
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

func SetupRoutes(r *gin.Engine, db *gorm.DB, svc *services.Services, httpCfg config.HTTPConfig) {
	recommendationController := controllers.NewRecommendationController(svc.Recommendation, svc.Catalog)
	trackController := controllers.NewTrackController(svc.Catalog)
	collectionController := controllers.NewCollectionController(svc.Catalog, svc.Resync)
	quotaController := controllers.NewQuotaController(svc.Quota)

	r.Use(SecurityHeadersMiddleware())
	r.Use(RequestLogger())

	r.GET("/health", func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err != nil {
			c.JSON(503, gin.H{
				"status":    "unhealthy",
				"error":     "database connection error",
				"timestamp": time.Now().Unix(),
			})
			return
		}

		pingCtx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
		defer cancel()

		if err := sqlDB.PingContext(pingCtx); err != nil {
			c.JSON(503, gin.H{
				"status":    "unhealthy",
				"error":     "database ping failed",
				"timestamp": time.Now().Unix(),
			})
			return
		}

		c.JSON(200, gin.H{
			"status":    "healthy",
			"database":  "connected",
			"timestamp": time.Now().Unix(),
		})
	})

	// long running: bounded only by the client connection
	r.POST("/recommendations", recommendationController.CreateRecommendation)
	r.POST("/collections/resync", collectionController.Resync)

	reads := r.Group("/", RequestTimeout(httpCfg.DefaultTimeout))
	{
		reads.GET("/runs", recommendationController.GetRecentRuns)
		reads.GET("/runs/:id", recommendationController.GetRun)

		reads.GET("/tracks/search", trackController.SearchTracks)
		reads.GET("/tracks/most-connected", trackController.GetMostConnected)
		reads.GET("/tracks/needing-enrichment", trackController.GetNeedingEnrichment)
		reads.GET("/tracks/:id", trackController.GetTrackByID)
		reads.GET("/tracks/:id/collections", trackController.GetTrackCollections)

		reads.GET("/collections/needing-sync", collectionController.GetNeedingSync)
		reads.GET("/collections/:id", collectionController.GetCollectionByID)

		reads.GET("/quota", quotaController.GetQuota)
	}
}
