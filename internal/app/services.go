package app

import (
	journeyrepos "github.com/yungbote/journeys-backend/internal/data/repos/journey"
	"github.com/yungbote/journeys-backend/internal/modules/journey"
	"github.com/yungbote/journeys-backend/internal/observability"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

type Services struct {
	Cache      *journey.FetchCache
	Reconciler *journey.Reconciler
	Lifecycle  *journey.Lifecycle
}

func wireServices(log *logger.Logger, cfg Config, repos journeyrepos.Set, metrics *observability.Metrics) Services {
	log.Info("Wiring services...")
	store := journeyStore(repos)
	jcfg := cfg.Journey(metrics)

	reconciler := journey.NewReconciler(log, store, jcfg.Now, metrics)
	cache := journey.NewFetchCache(log, store, reconciler, jcfg)
	lifecycle := journey.NewLifecycle(log, store, cache, jcfg.Now, metrics)

	return Services{
		Cache:      cache,
		Reconciler: reconciler,
		Lifecycle:  lifecycle,
	}
}
