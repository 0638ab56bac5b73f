package journey

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/yungbote/journeys-backend/internal/observability"
	"github.com/yungbote/journeys-backend/internal/pkg/ctxutil"
	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
	"github.com/yungbote/journeys-backend/internal/realtime/bus"
)

var tracer = otel.Tracer("journeys.journey")

type Config struct {
	// TTL is how long an assembled view stays fresh.
	TTL time.Duration
	// MetadataTTL bounds the shared, user-independent journey/step layer.
	MetadataTTL time.Duration
	// MetadataTimeout bounds one shared metadata read. The read is not tied to
	// any single caller's context since several assemblies may be waiting on it.
	MetadataTimeout time.Duration
	MaxFailures     int
	Cooldown        time.Duration
	DefaultLanguage Language
	Now             func() time.Time
	Metrics         *observability.Metrics
}

func (c Config) withDefaults() Config {
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
	if c.MetadataTTL <= 0 {
		c.MetadataTTL = c.TTL
	}
	if c.MetadataTimeout <= 0 {
		c.MetadataTimeout = 10 * time.Second
	}
	if c.MaxFailures <= 0 {
		c.MaxFailures = 3
	}
	if c.Cooldown <= 0 {
		c.Cooldown = 30 * time.Second
	}
	if c.DefaultLanguage == "" {
		c.DefaultLanguage = BaseLanguage
	}
	if c.Now == nil {
		c.Now = time.Now
	}
	return c
}

// DriftRepairer is the part of the reconciler the read path relies on.
type DriftRepairer interface {
	HasInconsistencies(ctx context.Context, userID, journeyID uuid.UUID) bool
	SynchronizeJourneyData(ctx context.Context, userID, journeyID uuid.UUID) SyncResult
}

type cacheEntry struct {
	view      *JourneyView
	builtAt   time.Time
	expiresAt time.Time
}

type metaEntry struct {
	meta      *journeyMeta
	expiresAt time.Time
}

// flight is one running assembly. done is closed once view/err are set.
type flight struct {
	done    chan struct{}
	cancel  context.CancelFunc
	gen     uint64
	waiters int
	view    *JourneyView
	err     error
}

type CacheStats struct {
	Entries         int          `json:"entries"`
	MetadataEntries int          `json:"metadata_entries"`
	InFlight        int          `json:"in_flight"`
	Breaker         BreakerState `json:"breaker"`
}

// FetchCache serves JourneyViews from memory, assembling at most one view
// per (journey, language, user) at a time and backing off when the store
// keeps failing.
type FetchCache struct {
	log     *logger.Logger
	store   Store
	repair  DriftRepairer
	cfg     Config
	breaker *CircuitBreaker
	metrics *observability.Metrics
	origin  string

	metaGroup singleflight.Group

	mu       sync.Mutex
	entries  map[string]cacheEntry
	meta     map[string]metaEntry
	inflight map[string]*flight
	// epoch and generations only grow; their sum changes on every clear.
	epoch       uint64
	generations map[uuid.UUID]uint64
	nextSweep   time.Time
	bus         bus.Bus
}

// NewFetchCache builds a cache over store. repair may be nil, in which case
// reads never trigger reconciliation.
func NewFetchCache(baseLog *logger.Logger, store Store, repair DriftRepairer, cfg Config) *FetchCache {
	cfg = cfg.withDefaults()
	return &FetchCache{
		log:         baseLog.With("service", "JourneyFetchCache"),
		store:       store,
		repair:      repair,
		cfg:         cfg,
		breaker:     NewCircuitBreaker(cfg.MaxFailures, cfg.Cooldown, cfg.Now),
		metrics:     cfg.Metrics,
		origin:      uuid.NewString(),
		entries:     map[string]cacheEntry{},
		meta:        map[string]metaEntry{},
		inflight:    map[string]*flight{},
		generations: map[uuid.UUID]uint64{},
	}
}

func viewKey(journeyID uuid.UUID, lang Language, userID uuid.UUID) string {
	return journeyID.String() + ":" + string(lang) + ":" + userID.String()
}

func metaKey(journeyID uuid.UUID, lang Language) string {
	return journeyID.String() + ":" + string(lang)
}

// FetchJourney returns the view of journeyID in lang. A zero userID asks for
// the anonymous view with no progress. Errors are ErrInvalidArgument,
// ErrServiceUnavailable, ErrNotFound, ErrCancelled or a *RemoteError.
func (c *FetchCache) FetchJourney(ctx context.Context, journeyID, userID uuid.UUID, lang string) (*JourneyView, error) {
	ctx = ctxutil.Default(ctx)
	if journeyID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}
	language := ParseLanguage(lang, c.cfg.DefaultLanguage)

	ctx, span := tracer.Start(ctx, "journey.fetch", trace.WithAttributes(
		attribute.String("journey_id", journeyID.String()),
		attribute.String("language", string(language)),
		attribute.Bool("personalized", userID != uuid.Nil),
	))
	defer span.End()

	if err := c.breaker.Allow(); err != nil {
		c.metrics.IncBreakerRejection()
		c.metrics.SetBreakerOpen(true)
		span.SetStatus(codes.Error, "circuit open")
		return nil, err
	}

	key := viewKey(journeyID, language, userID)

	c.mu.Lock()
	if e, ok := c.entries[key]; ok {
		if c.cfg.Now().Before(e.expiresAt) {
			c.mu.Unlock()
			c.metrics.IncCacheLookup("hit")
			span.SetAttributes(attribute.String("cache", "hit"))
			return e.view.Clone(), nil
		}
		delete(c.entries, key)
	}
	f, joined := c.inflight[key]
	if !joined {
		f = c.startFlightLocked(ctx, key, journeyID, userID, language)
	}
	f.waiters++
	c.mu.Unlock()

	if joined {
		c.metrics.IncCacheLookup("joined")
	} else {
		c.metrics.IncCacheLookup("miss")
	}
	span.SetAttributes(attribute.Bool("joined", joined))

	select {
	case <-f.done:
		if f.err != nil {
			span.RecordError(f.err)
			span.SetStatus(codes.Error, f.err.Error())
			return nil, f.err
		}
		return f.view.Clone(), nil
	case <-ctx.Done():
		c.leave(key, f)
		return nil, pkgerrors.ErrCancelled
	}
}

// startFlightLocked registers and launches a new assembly for key. The
// assembly runs detached from the caller so other waiters can share it.
func (c *FetchCache) startFlightLocked(parent context.Context, key string, journeyID, userID uuid.UUID, lang Language) *flight {
	actx, cancel := context.WithCancel(ctxutil.Detach(parent))
	f := &flight{
		done:   make(chan struct{}),
		cancel: cancel,
		gen:    c.generationLocked(journeyID),
	}
	c.inflight[key] = f
	go c.run(actx, key, f, journeyID, userID, lang)
	return f
}

// leave drops one waiter. When nobody is left waiting the assembly is
// cancelled and deregistered so the next request starts afresh.
func (c *FetchCache) leave(key string, f *flight) {
	c.mu.Lock()
	defer c.mu.Unlock()
	f.waiters--
	if f.waiters > 0 {
		return
	}
	select {
	case <-f.done:
		return
	default:
	}
	f.cancel()
	if c.inflight[key] == f {
		delete(c.inflight, key)
	}
}

func (c *FetchCache) run(ctx context.Context, key string, f *flight, journeyID, userID uuid.UUID, lang Language) {
	defer f.cancel()

	start := time.Now()
	view, err := c.assemble(ctx, journeyID, userID, lang)
	err = c.classify(ctx, err)

	outcome := "success"
	switch {
	case err == nil:
		c.breaker.Success()
		c.metrics.SetBreakerOpen(false)
	case pkgerrors.IsRemote(err):
		c.breaker.Failure()
		c.metrics.SetBreakerOpen(c.breaker.State().Open)
		outcome = "remote_failure"
		c.log.Warn("journey assembly failed", "journey_id", journeyID, "user_id", userID, "error", err)
	case pkgerrors.IsCancelled(err):
		outcome = "cancelled"
	default:
		outcome = "not_found"
	}
	c.metrics.ObserveAssembly(outcome, time.Since(start))

	c.mu.Lock()
	if c.inflight[key] == f {
		delete(c.inflight, key)
	}
	now := c.cfg.Now()
	c.sweepLocked(now)
	if err == nil && ctx.Err() == nil && c.generationLocked(journeyID) == f.gen {
		c.entries[key] = cacheEntry{view: view, builtAt: now, expiresAt: now.Add(c.cfg.TTL)}
	}
	entries := len(c.entries)
	f.view, f.err = view, err
	close(f.done)
	c.mu.Unlock()

	c.metrics.SetCacheEntries(entries)
}

// sweepLocked drops expired views and metadata. Keys carry the user id, so
// entries nobody asks for again would otherwise stay forever. It runs at most
// once per TTL.
func (c *FetchCache) sweepLocked(now time.Time) {
	if now.Before(c.nextSweep) {
		return
	}
	c.nextSweep = now.Add(c.cfg.TTL)
	for k, e := range c.entries {
		if !now.Before(e.expiresAt) {
			delete(c.entries, k)
		}
	}
	for k, e := range c.meta {
		if !now.Before(e.expiresAt) {
			delete(c.meta, k)
		}
	}
}

func (c *FetchCache) classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctx.Err() != nil || pkgerrors.IsCancelled(err) {
		return pkgerrors.ErrCancelled
	}
	return pkgerrors.Remote("assemble journey", err)
}

func (c *FetchCache) generationLocked(journeyID uuid.UUID) uint64 {
	return c.epoch + c.generations[journeyID]
}

// ClearJourneyCache drops every cached view of journeyID in all languages
// and for all users, and tells other instances to do the same.
func (c *FetchCache) ClearJourneyCache(journeyID uuid.UUID) {
	if journeyID == uuid.Nil {
		return
	}
	c.clearJourney(journeyID, "local")
	c.publish(bus.Invalidation{JourneyID: journeyID})
}

// ClearAllCache drops every cached view and tells other instances to do the
// same.
func (c *FetchCache) ClearAllCache() {
	c.clearAll("local")
	c.publish(bus.Invalidation{All: true})
}

// CancelAllRequests cancels every running assembly and forgets it without
// waiting for it to settle. Waiters receive ErrCancelled.
func (c *FetchCache) CancelAllRequests() {
	c.mu.Lock()
	n := len(c.inflight)
	for key, f := range c.inflight {
		f.cancel()
		delete(c.inflight, key)
	}
	c.mu.Unlock()
	if n > 0 {
		c.log.Info("cancelled in-flight journey assemblies", "count", n)
	}
}

func (c *FetchCache) clearJourney(journeyID uuid.UUID, origin string) {
	prefix := journeyID.String() + ":"
	c.mu.Lock()
	c.generations[journeyID]++
	for k := range c.entries {
		if strings.HasPrefix(k, prefix) {
			delete(c.entries, k)
		}
	}
	for k := range c.meta {
		if strings.HasPrefix(k, prefix) {
			delete(c.meta, k)
		}
	}
	entries := len(c.entries)
	c.mu.Unlock()

	c.metrics.IncInvalidation("journey", origin)
	c.metrics.SetCacheEntries(entries)
	c.log.Debug("journey cache cleared", "journey_id", journeyID, "origin", origin)
}

func (c *FetchCache) clearAll(origin string) {
	c.mu.Lock()
	c.epoch++
	c.entries = map[string]cacheEntry{}
	c.meta = map[string]metaEntry{}
	c.mu.Unlock()

	c.metrics.IncInvalidation("all", origin)
	c.metrics.SetCacheEntries(0)
	c.log.Debug("journey cache flushed", "origin", origin)
}

// AttachBus publishes local clears on b and applies clears published by
// other instances until ctx ends.
func (c *FetchCache) AttachBus(ctx context.Context, b bus.Bus) error {
	if b == nil {
		return nil
	}
	if err := b.StartForwarder(ctx, c.applyRemote); err != nil {
		return err
	}
	c.mu.Lock()
	c.bus = b
	c.mu.Unlock()
	return nil
}

func (c *FetchCache) applyRemote(m bus.Invalidation) {
	if m.Origin == c.origin {
		return
	}
	if m.All {
		c.clearAll("remote")
		return
	}
	if m.JourneyID != uuid.Nil {
		c.clearJourney(m.JourneyID, "remote")
	}
}

func (c *FetchCache) publish(m bus.Invalidation) {
	c.mu.Lock()
	b := c.bus
	c.mu.Unlock()
	if b == nil {
		return
	}
	m.Origin = c.origin
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := b.Publish(ctx, m); err != nil {
		c.log.Warn("publish cache invalidation failed", "scope", m.Scope(), "journey_id", m.JourneyID, "error", err)
	}
}

func (c *FetchCache) Stats() CacheStats {
	c.mu.Lock()
	st := CacheStats{
		Entries:         len(c.entries),
		MetadataEntries: len(c.meta),
		InFlight:        len(c.inflight),
	}
	c.mu.Unlock()
	st.Breaker = c.breaker.State()
	return st
}
