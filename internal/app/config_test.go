package app

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/yungbote/journeys-backend/internal/modules/journey"
)

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("POSTGRES_DSN", "")
	t.Setenv("REDIS_ADDR", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, "8080", cfg.Port)
	require.Equal(t, 5*time.Minute, cfg.CacheTTL)
	require.Equal(t, 3, cfg.BreakerMaxFailures)
	require.Equal(t, 30*time.Second, cfg.BreakerCooldown)
	require.Equal(t, "journey-cache-invalidation", cfg.Redis().Channel)

	jcfg := cfg.Journey(nil)
	require.Equal(t, journey.French, jcfg.DefaultLanguage)
	require.Equal(t, 5*time.Minute, jcfg.TTL)
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("JOURNEY_CACHE_TTL", "90s")
	t.Setenv("JOURNEY_BREAKER_MAX_FAILURES", "5")
	t.Setenv("JOURNEY_DEFAULT_LANGUAGE", "es")
	t.Setenv("CORS_ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("POSTGRES_DSN", "postgres://u:p@db:5432/journeys")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	require.Equal(t, 90*time.Second, cfg.CacheTTL)
	require.Equal(t, 5, cfg.Journey(nil).MaxFailures)
	require.Equal(t, journey.Spanish, cfg.Journey(nil).DefaultLanguage)
	require.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	require.Equal(t, "postgres://u:p@db:5432/journeys", cfg.Postgres().DSN)
}

func TestLoadConfigRejectsBadDuration(t *testing.T) {
	t.Setenv("JOURNEY_BREAKER_COOLDOWN", "soon")
	_, err := LoadConfig()
	require.ErrorContains(t, err, "parse env:")
}
