package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/yungbote/journeys-backend/internal/http/handlers"
	"github.com/yungbote/journeys-backend/internal/http/middleware"
	"github.com/yungbote/journeys-backend/internal/observability"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

type RouterConfig struct {
	Log            *logger.Logger
	Metrics        *observability.Metrics
	ServiceName    string
	AllowedOrigins []string

	HealthHandler  *handlers.HealthHandler
	JourneyHandler *handlers.JourneyHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(middleware.AttachTraceContext())
	r.Use(middleware.RequestLogger(cfg.Log))
	r.Use(middleware.Metrics(cfg.Metrics))
	r.Use(middleware.CORS(cfg.AllowedOrigins))

	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.Metrics != nil {
		r.GET("/metrics", gin.WrapF(cfg.Metrics.WriteHTTP))
	}

	api := r.Group("/api")
	api.Use(middleware.AttachRequestContext())
	if h := cfg.JourneyHandler; h != nil {
		api.GET("/journeys/:id", h.GetJourney)
		api.GET("/journeys/:id/exists", h.Exists)

		user := api.Group("/journeys/:id", middleware.RequireUser())
		user.GET("/diagnostics", h.Diagnostics)
		user.POST("/sync", h.Sync)
		user.POST("/repair", h.Repair)
		user.POST("/cleanup", h.Cleanup)
		user.GET("/ghost-validations", h.GhostValidations)
		user.DELETE("/progress", h.DeleteProgress)
		user.POST("/reset", h.Reset)
		user.POST("/acquire", h.Acquire)

		api.DELETE("/cache", h.ClearCache)
		api.GET("/cache/stats", h.CacheStats)
	}
	return r
}
