package app

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/yungbote/journeys-backend/internal/data/db"
	"github.com/yungbote/journeys-backend/internal/modules/journey"
	"github.com/yungbote/journeys-backend/internal/observability"
	"github.com/yungbote/journeys-backend/internal/realtime/bus"
)

type Config struct {
	Port    string `env:"PORT" envDefault:"8080"`
	LogMode string `env:"LOG_MODE" envDefault:"development"`

	PostgresDSN      string `env:"POSTGRES_DSN"`
	PostgresHost     string `env:"POSTGRES_HOST" envDefault:"localhost"`
	PostgresPort     string `env:"POSTGRES_PORT" envDefault:"5432"`
	PostgresUser     string `env:"POSTGRES_USER" envDefault:"postgres"`
	PostgresPassword string `env:"POSTGRES_PASSWORD"`
	PostgresName     string `env:"POSTGRES_NAME" envDefault:"journeys"`
	MigrateOnStart   bool   `env:"MIGRATE_ON_START" envDefault:"true"`

	RedisAddr    string `env:"REDIS_ADDR"`
	RedisChannel string `env:"REDIS_CHANNEL" envDefault:"journey-cache-invalidation"`

	CacheTTL           time.Duration `env:"JOURNEY_CACHE_TTL" envDefault:"5m"`
	MetadataTTL        time.Duration `env:"JOURNEY_METADATA_TTL" envDefault:"5m"`
	MetadataTimeout    time.Duration `env:"JOURNEY_METADATA_TIMEOUT" envDefault:"10s"`
	BreakerMaxFailures int           `env:"JOURNEY_BREAKER_MAX_FAILURES" envDefault:"3"`
	BreakerCooldown    time.Duration `env:"JOURNEY_BREAKER_COOLDOWN" envDefault:"30s"`
	DefaultLanguage    string        `env:"JOURNEY_DEFAULT_LANGUAGE" envDefault:"fr"`

	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:","`

	MetricsEnabled        bool          `env:"METRICS_ENABLED"`
	MetricsAddr           string        `env:"METRICS_ADDR"`
	MetricsScrapeInterval time.Duration `env:"METRICS_SCRAPE_INTERVAL" envDefault:"15s"`

	OtelEnabled     bool    `env:"OTEL_ENABLED"`
	OtelServiceName string  `env:"OTEL_SERVICE_NAME" envDefault:"journeys-backend"`
	OtelEnvironment string  `env:"OTEL_ENVIRONMENT" envDefault:"development"`
	OtelVersion     string  `env:"OTEL_SERVICE_VERSION"`
	OtelEndpoint    string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	OtelHeaders     string  `env:"OTEL_EXPORTER_OTLP_HEADERS"`
	OtelInsecure    bool    `env:"OTEL_EXPORTER_OTLP_INSECURE"`
	OtelSampleRatio float64 `env:"OTEL_SAMPLE_RATIO" envDefault:"1"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}

func (c Config) Postgres() db.PostgresConfig {
	return db.PostgresConfig{
		DSN:      c.PostgresDSN,
		Host:     c.PostgresHost,
		Port:     c.PostgresPort,
		User:     c.PostgresUser,
		Password: c.PostgresPassword,
		Name:     c.PostgresName,
	}
}

func (c Config) Redis() bus.RedisConfig {
	return bus.RedisConfig{Addr: c.RedisAddr, Channel: c.RedisChannel}
}

func (c Config) Journey(metrics *observability.Metrics) journey.Config {
	return journey.Config{
		TTL:             c.CacheTTL,
		MetadataTTL:     c.MetadataTTL,
		MetadataTimeout: c.MetadataTimeout,
		MaxFailures:     c.BreakerMaxFailures,
		Cooldown:        c.BreakerCooldown,
		DefaultLanguage: journey.ParseLanguage(c.DefaultLanguage, journey.BaseLanguage),
		Metrics:         metrics,
	}
}

func (c Config) Metrics() observability.MetricsConfig {
	return observability.MetricsConfig{Enabled: c.MetricsEnabled, ScrapeInterval: c.MetricsScrapeInterval}
}

func (c Config) Otel() observability.OtelConfig {
	return observability.OtelConfig{
		Enabled:     c.OtelEnabled,
		ServiceName: c.OtelServiceName,
		Environment: c.OtelEnvironment,
		Version:     c.OtelVersion,
		Endpoint:    c.OtelEndpoint,
		Headers:     c.OtelHeaders,
		Insecure:    c.OtelInsecure,
		SampleRatio: c.OtelSampleRatio,
	}
}
