package observability

import (
	"context"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

type MetricsConfig struct {
	Enabled        bool
	ScrapeInterval time.Duration
}

type Metrics struct {
	apiRequests *CounterVec
	apiLatency  *HistogramVec
	apiInflight *Gauge

	cacheLookups      *CounterVec
	cacheEntries      *Gauge
	assemblies        *CounterVec
	assemblyLatency   *HistogramVec
	breakerRejections *Counter
	breakerOpen       *Gauge
	invalidations     *CounterVec
	reconciliations   *CounterVec
	lifecycleOps      *CounterVec

	pgStats   *GaugeVec
	redisUp   *Gauge
	redisPing *Gauge

	scrapeInterval time.Duration
}

var (
	initOnce sync.Once
	instance *Metrics
)

func Current() *Metrics {
	return instance
}

// Init builds the process-wide registry. It returns nil when metrics are
// disabled; every method on a nil *Metrics is a no-op.
func Init(log *logger.Logger, cfg MetricsConfig) *Metrics {
	if !cfg.Enabled {
		return nil
	}
	initOnce.Do(func() {
		instance = newMetrics(cfg)
		if log != nil {
			log.Info("metrics enabled", "scrape_interval", instance.scrapeInterval.String())
		}
	})
	return instance
}

func newMetrics(cfg MetricsConfig) *Metrics {
	interval := cfg.ScrapeInterval
	if interval <= 0 {
		interval = 10 * time.Second
	}
	return &Metrics{
		apiRequests: NewCounterVec("journeys_api_requests_total", "Total API requests by method/route/status.", []string{"method", "route", "status"}),
		apiLatency: NewHistogramVec(
			"journeys_api_request_duration_seconds",
			"API request latency in seconds by method/route/status.",
			[]string{"method", "route", "status"},
			[]float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		),
		apiInflight: NewGauge("journeys_api_inflight_requests", "In-flight API requests."),

		cacheLookups: NewCounterVec("journeys_cache_lookups_total", "Journey view cache lookups by result (hit, miss, joined).", []string{"result"}),
		cacheEntries: NewGauge("journeys_cache_entries", "Journey views currently cached."),
		assemblies:   NewCounterVec("journeys_assemblies_total", "Journey view assemblies by outcome.", []string{"outcome"}),
		assemblyLatency: NewHistogramVec(
			"journeys_assembly_duration_seconds",
			"Journey view assembly latency in seconds by outcome.",
			[]string{"outcome"},
			[]float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2},
		),
		breakerRejections: NewCounter("journeys_breaker_rejections_total", "Fetches rejected while the circuit breaker was open."),
		breakerOpen:       NewGauge("journeys_breaker_open", "1 when the fetch circuit breaker is open."),
		invalidations:     NewCounterVec("journeys_cache_invalidations_total", "Cache invalidations by scope and origin.", []string{"scope", "origin"}),
		reconciliations:   NewCounterVec("journeys_reconciliations_total", "Reconciliation runs by operation and outcome.", []string{"op", "outcome"}),
		lifecycleOps:      NewCounterVec("journeys_lifecycle_ops_total", "Lifecycle operations by operation and outcome.", []string{"op", "outcome"}),

		pgStats:   NewGaugeVec("journeys_postgres_pool", "Postgres connection pool stats.", []string{"stat"}),
		redisUp:   NewGauge("journeys_redis_up", "Redis reachability (1=up)."),
		redisPing: NewGauge("journeys_redis_ping_seconds", "Redis ping latency in seconds."),

		scrapeInterval: interval,
	}
}

func (m *Metrics) StartServer(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	srv := &http.Server{
		Addr:              addr,
		Handler:           http.HandlerFunc(m.WriteHTTP),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = srv.Shutdown(shutdownCtx)
		cancel()
	}()
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			if log != nil {
				log.Error("metrics server failed", "error", err, "addr", addr)
			}
		}
	}()
}

func (m *Metrics) WriteHTTP(w http.ResponseWriter, r *http.Request) {
	if m == nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "text/plain; version=0.0.4")
	_ = m.WritePrometheus(w)
}

type promWriter interface {
	WritePrometheus(w io.Writer) error
}

func (m *Metrics) WritePrometheus(w io.Writer) error {
	if m == nil {
		return nil
	}
	for _, c := range []promWriter{
		m.apiRequests, m.apiLatency, m.apiInflight,
		m.cacheLookups, m.cacheEntries, m.assemblies, m.assemblyLatency,
		m.breakerRejections, m.breakerOpen, m.invalidations,
		m.reconciliations, m.lifecycleOps,
		m.pgStats, m.redisUp, m.redisPing,
	} {
		if err := c.WritePrometheus(w); err != nil {
			return err
		}
	}
	return nil
}

func (m *Metrics) ObserveAPI(method, route, status string, dur time.Duration) {
	if m == nil {
		return
	}
	if method == "" {
		method = "UNKNOWN"
	}
	if route == "" {
		route = "unknown"
	}
	if status == "" {
		status = "0"
	}
	m.apiRequests.Inc(method, route, status)
	m.apiLatency.Observe(dur.Seconds(), method, route, status)
}

func (m *Metrics) ApiInflightInc() {
	if m == nil {
		return
	}
	m.apiInflight.Inc()
}

func (m *Metrics) ApiInflightDec() {
	if m == nil {
		return
	}
	m.apiInflight.Dec()
}

func (m *Metrics) IncCacheLookup(result string) {
	if m == nil {
		return
	}
	m.cacheLookups.Inc(result)
}

func (m *Metrics) SetCacheEntries(n int) {
	if m == nil {
		return
	}
	m.cacheEntries.Set(float64(n))
}

func (m *Metrics) ObserveAssembly(outcome string, dur time.Duration) {
	if m == nil {
		return
	}
	m.assemblies.Inc(outcome)
	m.assemblyLatency.Observe(dur.Seconds(), outcome)
}

func (m *Metrics) IncBreakerRejection() {
	if m == nil {
		return
	}
	m.breakerRejections.Inc()
}

func (m *Metrics) SetBreakerOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.breakerOpen.Set(1)
		return
	}
	m.breakerOpen.Set(0)
}

func (m *Metrics) IncInvalidation(scope, origin string) {
	if m == nil {
		return
	}
	m.invalidations.Inc(scope, origin)
}

func (m *Metrics) IncReconciliation(op string, success bool) {
	if m == nil {
		return
	}
	m.reconciliations.Inc(op, outcomeLabel(success))
}

func (m *Metrics) IncLifecycle(op string, success bool) {
	if m == nil {
		return
	}
	m.lifecycleOps.Inc(op, outcomeLabel(success))
}

func (m *Metrics) StartPostgresCollector(ctx context.Context, log *logger.Logger, db *gorm.DB) {
	if m == nil || db == nil {
		return
	}
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sqlDB, err := db.DB()
				if err != nil {
					if log != nil {
						log.Warn("metrics: postgres stats unavailable", "error", err)
					}
					continue
				}
				stats := sqlDB.Stats()
				m.pgStats.Set(float64(stats.OpenConnections), "open_connections")
				m.pgStats.Set(float64(stats.InUse), "in_use")
				m.pgStats.Set(float64(stats.Idle), "idle")
				m.pgStats.Set(float64(stats.WaitCount), "wait_count")
				m.pgStats.Set(stats.WaitDuration.Seconds(), "wait_duration_seconds")
			}
		}
	}()
}

func (m *Metrics) StartRedisCollector(ctx context.Context, log *logger.Logger, addr string) {
	if m == nil {
		return
	}
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	go func() {
		ticker := time.NewTicker(m.scrapeInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				_ = rdb.Close()
				return
			case <-ticker.C:
				start := time.Now()
				if err := rdb.Ping(ctx).Err(); err != nil {
					m.redisUp.Set(0)
					if log != nil {
						log.Warn("metrics: redis ping failed", "error", err)
					}
					continue
				}
				m.redisUp.Set(1)
				m.redisPing.Set(time.Since(start).Seconds())
			}
		}
	}()
}

func outcomeLabel(success bool) string {
	if success {
		return "success"
	}
	return "failure"
}
