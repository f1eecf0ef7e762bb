package api

import (
	"github.com/gin-gonic/gin"

	"github.com/timmy/leaflet/internal/api/handler"
	"github.com/timmy/leaflet/internal/api/middleware"
	"github.com/timmy/leaflet/internal/config"
	"github.com/timmy/leaflet/internal/logger"
	"github.com/timmy/leaflet/internal/service"
)

// Services bundles what the HTTP layer calls into.
type Services struct {
	Uploads      *service.UploadService
	Jobs         *service.JobTracker
	Publications *service.PublicationService
	Checks       map[string]handler.Pinger
}

// SetupRouter configures the Gin router with all routes
func SetupRouter(svc *Services, cfg *config.Config, log *logger.Logger) *gin.Engine {
	// Set Gin mode
	switch cfg.Server.Mode {
	case "release":
		gin.SetMode(gin.ReleaseMode)
	case "test":
		gin.SetMode(gin.TestMode)
	default:
		gin.SetMode(gin.DebugMode)
	}

	r := gin.New()
	if cfg.Ingest.MaxUploadMB > 0 {
		r.MaxMultipartMemory = cfg.Ingest.MaxUploadMB << 20
	}

	// Add middleware
	r.Use(gin.Recovery())
	r.Use(middleware.LoggerMiddleware(log))
	r.Use(middleware.CORS(middleware.CORSConfig{
		AllowedOrigins:  cfg.Server.CORS.AllowedOrigins,
		AllowAllOrigins: cfg.Server.CORS.AllowAllOrigins,
	}))

	// Create handlers
	healthHandler := handler.NewHealthHandler(svc.Checks)
	jobHandler := handler.NewJobHandler(svc.Jobs)
	publicationHandler := handler.NewPublicationHandler(svc.Uploads, svc.Publications, cfg.Ingest.MaxUploadMB)

	// Health check
	r.GET("/health", healthHandler.Health)
	r.GET("/ready", healthHandler.Ready)

	// API v1 routes
	v1 := r.Group("/api/v1", middleware.RequireReader())
	{
		// Publications
		v1.POST("/publications/epub", publicationHandler.UploadEpub)
		v1.GET("/publications/:id", publicationHandler.GetPublication)

		// Jobs
		v1.GET("/jobs/:id", jobHandler.GetJob)
	}

	return r
}
