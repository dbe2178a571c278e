// Package router wires the HTTP routes of the API service
package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/photoflow-app/photoflow/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "photoflow-api",
		})
	})

	jobHandler := handler.NewJobHandler(deps)
	imageHandler := handler.NewImageHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		jobs := v1.Group("/jobs")
		{
			// POST /api/v1/jobs - Enqueue a job of any registered type
			jobs.POST("", jobHandler.CreateJob)

			// GET /api/v1/jobs - List jobs with filtering and pagination
			jobs.GET("", jobHandler.ListJobs)

			// POST /api/v1/jobs/run - Process one batch synchronously
			jobs.POST("/run", jobHandler.RunBatch)

			// GET /api/v1/jobs/:job_id - Get job details
			jobs.GET("/:job_id", jobHandler.GetJob)

			// POST /api/v1/jobs/:job_id/cancel - Cancel a job
			jobs.POST("/:job_id/cancel", jobHandler.CancelJob)
		}

		images := v1.Group("/images")
		{
			// POST /api/v1/images - Upload an image and start the pipeline
			images.POST("", imageHandler.UploadImage)

			// GET /api/v1/images/:image_id - Get image details
			images.GET("/:image_id", imageHandler.GetImage)
		}
	}

	return r
}
