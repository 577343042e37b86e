package api

import (
	"github.com/gin-gonic/gin"

	"github.com/profitscan/profitscan/internal/telemetry"
)

// SetupRoutes configures all API routes.
func SetupRoutes(router *gin.Engine, handler *Handler) {
	router.GET("/health", handler.HealthCheck)
	router.GET("/metrics", gin.WrapH(telemetry.Handler()))

	v1 := router.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			jobs.POST("", handler.SubmitJob)                // POST /api/v1/jobs
			jobs.GET("/:id", handler.GetJobStatus)          // GET  /api/v1/jobs/:id
			jobs.GET("/:id/results", handler.GetJobResults) // GET  /api/v1/jobs/:id/results
			jobs.GET("/:id/stats", handler.GetJobStats)     // GET  /api/v1/jobs/:id/stats
			jobs.POST("/:id/cancel", handler.CancelJob)     // POST /api/v1/jobs/:id/cancel
		}
	}
}
