package app

import (
	"github.com/gin-gonic/gin"

	httpapi "github.com/yungbote/journeys-backend/internal/http"
	httpH "github.com/yungbote/journeys-backend/internal/http/handlers"
	"github.com/yungbote/journeys-backend/internal/observability"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Journey *httpH.JourneyHandler
}

func wireHandlers(log *logger.Logger, services Services) Handlers {
	log.Info("Wiring handlers...")
	return Handlers{
		Health:  httpH.NewHealthHandler(),
		Journey: httpH.NewJourneyHandler(services.Cache, services.Reconciler, services.Lifecycle),
	}
}

func wireRouter(log *logger.Logger, cfg Config, metrics *observability.Metrics, handlers Handlers) *gin.Engine {
	serviceName := ""
	if cfg.OtelEnabled {
		serviceName = cfg.OtelServiceName
	}
	return httpapi.NewRouter(httpapi.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		AllowedOrigins: cfg.AllowedOrigins,
		HealthHandler:  handlers.Health,
		JourneyHandler: handlers.Journey,
	})
}
