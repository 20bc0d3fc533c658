package routes

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/phambaophuc/smartmine-client/internal/http/handlers"
	"github.com/phambaophuc/smartmine-client/internal/http/middleware"
)

type Router struct {
	imageHandler  *handlers.ImageHandler
	jobHandler    *handlers.JobHandler
	healthHandler *handlers.HealthHandler
	auth          gin.HandlerFunc
	maxFileSize   int64
	logger        *zap.Logger
}

// NewRouter wires the gateway. auth guards the image and job routes when
// non-nil.
func NewRouter(
	imageHandler *handlers.ImageHandler,
	jobHandler *handlers.JobHandler,
	healthHandler *handlers.HealthHandler,
	auth gin.HandlerFunc,
	maxFileSize int64,
	logger *zap.Logger,
) *Router {
	return &Router{
		imageHandler:  imageHandler,
		jobHandler:    jobHandler,
		healthHandler: healthHandler,
		auth:          auth,
		maxFileSize:   maxFileSize,
		logger:        logger,
	}
}

func (r *Router) SetupRoutes() *gin.Engine {
	router := gin.New()
	if r.maxFileSize > 0 {
		router.MaxMultipartMemory = r.maxFileSize
	}

	router.Use(middleware.Logger(r.logger, "/api/v1/health"))
	router.Use(middleware.ErrorHandler(r.logger))
	router.Use(middleware.CORS())
	router.Use(middleware.SecurityHeaders())

	// API version 1
	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", r.healthHandler.HealthCheck)

		protected := v1.Group("")
		if r.auth != nil {
			protected.Use(r.auth)
		}

		images := protected.Group("/images")
		{
			images.POST("/process", middleware.ValidateContentType("multipart/form-data"), r.imageHandler.ProcessImage)
		}

		jobs := protected.Group("/jobs")
		{
			jobs.POST("", middleware.ValidateContentType("application/json"), r.jobHandler.EnqueueJob)
			jobs.GET("/:id", r.jobHandler.GetJob)
		}
	}

	router.GET("/", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{
			"status":  "OK",
			"message": "Smartmine gateway is running",
		})
	})

	return router
}
