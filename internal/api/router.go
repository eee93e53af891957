package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/cisco7507/langid-mr/pkg/logger"
	"github.com/cisco7507/langid-mr/pkg/middleware"
)

// SetupRoutes builds the gin engine for the HTTP surface in spec.md §6:
// health/metrics probes, job ingress and lifecycle, admin and cluster
// views. There is no bundled frontend or auth layer in this domain, so
// static-asset and JWT/API-key route groups are absent; what remains is the
// gin.New/Recovery/GinLogger/CompressionMiddleware bootstrap sequence.
func SetupRoutes(handler *Handler) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	logger.SetGinOutput()

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(logger.GinLogger())
	router.Use(middleware.CompressionMiddleware())
	router.Use(openCORS())

	router.GET("/healthz", handler.Healthz)
	router.GET("/health", handler.Health)

	router.GET("/metrics", handler.Metrics)
	router.GET("/metrics/json", handler.MetricsJSON)
	router.GET("/metrics/gate-paths", handler.MetricsGatePaths)

	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	jobs := router.Group("/jobs")
	{
		jobs.POST("", handler.CreateJob)
		jobs.POST("/by-url", handler.CreateJobByURL)
		jobs.GET("", handler.ListJobs)
		jobs.DELETE("", handler.DeleteJobs)
		jobs.GET("/:id", handler.GetJob)
		jobs.GET("/:id/result", handler.GetJobResult)
		jobs.GET("/:id/audio", handler.GetJobAudio)
		jobs.DELETE("/:id", handler.DeleteJob)
	}

	router.GET("/admin/jobs", handler.AdminJobs)

	clusterGroup := router.Group("/cluster")
	{
		clusterGroup.GET("/jobs", handler.ClusterJobs)
		clusterGroup.GET("/nodes", handler.ClusterNodes)
		clusterGroup.GET("/local-metrics", handler.ClusterLocalMetrics)
		clusterGroup.GET("/metrics-summary", handler.ClusterMetricsSummary)
	}

	return router
}

// openCORS echoes back the request's Origin instead of validating against
// an allow-list: this service has no browser-facing session cookies or
// bundled frontend to protect.
func openCORS() gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.Request.Header.Get("Origin")
		if origin != "" {
			c.Header("Access-Control-Allow-Origin", origin)
		} else {
			c.Header("Access-Control-Allow-Origin", "*")
		}
		c.Header("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Content-Length, Accept-Encoding, Authorization")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
