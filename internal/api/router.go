package api

import (
	"github.com/gin-gonic/gin"
	"github.com/mverbeek/buurtlens/internal/api/handler"
	"github.com/mverbeek/buurtlens/internal/api/middleware"
	"github.com/mverbeek/buurtlens/internal/logger"
	"github.com/mverbeek/buurtlens/internal/service"
	"github.com/mverbeek/buurtlens/internal/telemetry"
)

// SetupRouter configures the Gin router with all routes
func SetupRouter(
	jobService *service.BatchJobService,
	log *logger.Logger,
	mode string,
) *gin.Engine {
	// Set Gin mode
	switch mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{AllowAllOrigins: true}))

	// Create handlers
	healthHandler := handler.NewHealthHandler()
	jobHandler := handler.NewJobHandler(jobService)

	// Health check and metrics
	r.GET("/health", healthHandler.Health)
	r.GET("/metrics", gin.WrapH(telemetry.Handler()))

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		// Jobs
		v1.POST("/jobs", jobHandler.Enqueue)
		v1.GET("/jobs", jobHandler.List)
		v1.GET("/jobs/recent", jobHandler.Recent)
		v1.GET("/jobs/:id", jobHandler.Details)
		v1.POST("/jobs/:id/retry", jobHandler.Retry)
		v1.POST("/jobs/:id/cancel", jobHandler.Cancel)
	}

	return r
}
