package app

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/yungbote/journeys-backend/internal/data/db"
	journeyrepos "github.com/yungbote/journeys-backend/internal/data/repos/journey"
	"github.com/yungbote/journeys-backend/internal/observability"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
	"github.com/yungbote/journeys-backend/internal/realtime/bus"
)

type App struct {
	Log      *logger.Logger
	DB       *gorm.DB
	Router   *gin.Engine
	Cfg      Config
	Repos    journeyrepos.Set
	Services Services
	Metrics  *observability.Metrics

	bus          bus.Bus
	otelShutdown func(context.Context) error
	cancel       context.CancelFunc
}

func New(ctx context.Context) (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, err
	}
	log, err := logger.New(cfg.LogMode)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	otelShutdown := observability.InitOTel(ctx, log, cfg.Otel())
	metrics := observability.Init(log, cfg.Metrics())

	pg, err := db.NewPostgresService(log, cfg.Postgres())
	if err != nil {
		log.Sync()
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.MigrateOnStart {
		if err := pg.AutoMigrateAll(); err != nil {
			log.Sync()
			return nil, fmt.Errorf("postgres automigrate: %w", err)
		}
	}
	theDB := pg.DB()

	reposet := wireRepos(theDB, log)
	serviceset := wireServices(log, cfg, reposet, metrics)
	router := wireRouter(log, cfg, metrics, wireHandlers(log, serviceset))

	return &App{
		Log:          log,
		DB:           theDB,
		Router:       router,
		Cfg:          cfg,
		Repos:        reposet,
		Services:     serviceset,
		Metrics:      metrics,
		otelShutdown: otelShutdown,
	}, nil
}

// ConnectBus joins the cache-invalidation channel: Redis when REDIS_ADDR is
// set, otherwise an in-process bus.
func (a *App) ConnectBus(ctx context.Context) error {
	if a == nil || a.bus != nil {
		return nil
	}
	var b bus.Bus
	if a.Cfg.RedisAddr != "" {
		rb, err := bus.NewRedisBus(a.Log, a.Cfg.Redis())
		if err != nil {
			return fmt.Errorf("init invalidation bus: %w", err)
		}
		b = rb
	} else {
		b = bus.NewMemoryBus()
	}
	if err := a.Services.Cache.AttachBus(ctx, b); err != nil {
		_ = b.Close()
		return fmt.Errorf("attach invalidation bus: %w", err)
	}
	a.bus = b
	return nil
}

// Start runs the background pieces: invalidation bus and metric collectors.
func (a *App) Start(ctx context.Context) error {
	if a == nil || a.cancel != nil {
		return nil
	}
	ctx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	if err := a.ConnectBus(ctx); err != nil {
		return err
	}
	a.Metrics.StartPostgresCollector(ctx, a.Log, a.DB)
	a.Metrics.StartRedisCollector(ctx, a.Log, a.Cfg.RedisAddr)
	a.Metrics.StartServer(ctx, a.Log, a.Cfg.MetricsAddr)
	return nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.cancel != nil {
		a.cancel()
		a.cancel = nil
	}
	if a.Services.Cache != nil {
		a.Services.Cache.CancelAllRequests()
	}
	if a.bus != nil {
		if err := a.bus.Close(); err != nil {
			a.Log.Warn("close invalidation bus", "error", err)
		}
		a.bus = nil
	}
	if a.otelShutdown != nil {
		if err := a.otelShutdown(context.Background()); err != nil {
			a.Log.Warn("otel shutdown", "error", err)
		}
	}
	if a.DB != nil {
		if sqlDB, err := a.DB.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if a.Log != nil {
		a.Log.Sync()
	}
}
