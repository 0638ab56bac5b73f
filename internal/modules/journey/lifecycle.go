package journey

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/journeys-backend/internal/observability"
	"github.com/yungbote/journeys-backend/internal/pkg/ctxutil"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
	"github.com/yungbote/journeys-backend/internal/pkg/pointers"
)

// Invalidator is the cache entry point lifecycle operations call after a
// write. *FetchCache implements it.
type Invalidator interface {
	ClearJourneyCache(journeyID uuid.UUID)
}

type DeleteOutcome struct {
	Success         bool   `json:"success"`
	DeletedSteps    int    `json:"deletedSteps"`
	DeletedProgress int    `json:"deletedProgress"`
	PointsRemoved   int    `json:"pointsRemoved"`
	Error           string `json:"error,omitempty"`
}

type ResetOutcome struct {
	Success       bool       `json:"success"`
	DeletedSteps  int        `json:"deletedSteps"`
	PointsRemoved int        `json:"pointsRemoved"`
	ProgressID    *uuid.UUID `json:"progressId,omitempty"`
	Error         string     `json:"error,omitempty"`
}

type GhostCheck struct {
	HasConflicts     bool        `json:"hasConflicts"`
	ConflictingSteps []uuid.UUID `json:"conflictingSteps"`
}

// Lifecycle changes a user's relationship to a journey. None of its methods
// return errors; failures are folded into the result.
type Lifecycle struct {
	log     *logger.Logger
	store   Store
	cache   Invalidator
	now     func() time.Time
	metrics *observability.Metrics
}

func NewLifecycle(baseLog *logger.Logger, store Store, cache Invalidator, now func() time.Time, metrics *observability.Metrics) *Lifecycle {
	if now == nil {
		now = time.Now
	}
	return &Lifecycle{
		log:     baseLog.With("service", "JourneyLifecycle"),
		store:   store,
		cache:   cache,
		now:     now,
		metrics: metrics,
	}
}

func (l *Lifecycle) invalidate(journeyID uuid.UUID) {
	if l.cache != nil {
		l.cache.ClearJourneyCache(journeyID)
	}
}

// DeleteJourneyCompletely removes the user's completions and progress for
// the journey. The cache is cleared whatever the outcome.
func (l *Lifecycle) DeleteJourneyCompletely(ctx context.Context, userID, journeyID uuid.UUID) DeleteOutcome {
	ctx = ctxutil.Default(ctx)
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return DeleteOutcome{Error: pkgerrors.ErrInvalidArgument.Error()}
	}
	defer l.invalidate(journeyID)

	res, err := l.store.Procedures.DeleteUserJourneyCompletely(dbctx.Context{Ctx: ctx}, userID, journeyID)
	if err != nil {
		l.log.Warn("delete journey failed", "journey_id", journeyID, "user_id", userID, "error", err)
		l.metrics.IncLifecycle("delete", false)
		return DeleteOutcome{Error: err.Error()}
	}
	l.metrics.IncLifecycle("delete", res.Success)
	if !res.Success {
		return DeleteOutcome{Error: res.Error}
	}
	l.log.Info("journey progress deleted",
		"journey_id", journeyID,
		"user_id", userID,
		"deleted_steps", res.DeletedSteps,
		"points_removed", res.PointsRemoved,
	)
	return DeleteOutcome{
		Success:         true,
		DeletedSteps:    res.DeletedSteps,
		DeletedProgress: res.DeletedProgress,
		PointsRemoved:   res.PointsRemoved,
	}
}

// ResetJourneyForReplay clears the user's completions and starts a fresh
// progress record. The cache is cleared whatever the outcome.
func (l *Lifecycle) ResetJourneyForReplay(ctx context.Context, userID, journeyID uuid.UUID) ResetOutcome {
	ctx = ctxutil.Default(ctx)
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return ResetOutcome{Error: pkgerrors.ErrInvalidArgument.Error()}
	}
	defer l.invalidate(journeyID)

	res, err := l.store.Procedures.ResetJourneyForReplay(dbctx.Context{Ctx: ctx}, userID, journeyID)
	if err != nil {
		l.log.Warn("reset journey failed", "journey_id", journeyID, "user_id", userID, "error", err)
		l.metrics.IncLifecycle("reset", false)
		return ResetOutcome{Error: err.Error()}
	}
	l.metrics.IncLifecycle("reset", res.Success)
	if !res.Success {
		return ResetOutcome{Error: res.Error}
	}
	out := ResetOutcome{
		Success:       true,
		DeletedSteps:  res.DeletedSteps,
		PointsRemoved: res.PointsRemoved,
	}
	if res.ProgressID != uuid.Nil {
		out.ProgressID = pointers.Ptr(res.ProgressID)
	}
	return out
}

// AcquireCompletedJourney stamps acquired_at on a completed progress record
// and reports whether one was updated.
func (l *Lifecycle) AcquireCompletedJourney(ctx context.Context, userID, journeyID uuid.UUID) bool {
	ctx = ctxutil.Default(ctx)
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return false
	}
	ok, err := l.store.Progress.MarkAcquired(dbctx.Context{Ctx: ctx}, userID, journeyID, l.now())
	if err != nil {
		l.log.Warn("acquire journey failed", "journey_id", journeyID, "user_id", userID, "error", err)
		l.metrics.IncLifecycle("acquire", false)
		return false
	}
	l.metrics.IncLifecycle("acquire", ok)
	if ok {
		l.invalidate(journeyID)
	}
	return ok
}

// ValidateJourneyExists fails open to false.
func (l *Lifecycle) ValidateJourneyExists(ctx context.Context, journeyID uuid.UUID) bool {
	ctx = ctxutil.Default(ctx)
	if journeyID == uuid.Nil {
		return false
	}
	ok, err := l.store.Journeys.IsActive(dbctx.Context{Ctx: ctx}, journeyID)
	if err != nil {
		l.log.Debug("journey existence check failed", "journey_id", journeyID, "error", err)
		return false
	}
	return ok
}

// CheckForGhostValidations reports the journey's steps the user already has
// completion rows for, from any journey. It fails open to no conflicts.
func (l *Lifecycle) CheckForGhostValidations(ctx context.Context, userID, journeyID uuid.UUID) GhostCheck {
	ctx = ctxutil.Default(ctx)
	none := GhostCheck{ConflictingSteps: []uuid.UUID{}}
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return none
	}
	dbc := dbctx.Context{Ctx: ctx}
	j, err := l.store.Journeys.GetActiveWithSteps(dbc, journeyID)
	if err != nil {
		l.log.Debug("ghost check: journey unavailable", "journey_id", journeyID, "error", err)
		return none
	}
	steps := orderedSteps(j)
	if len(steps) == 0 {
		return none
	}
	ids := make([]uuid.UUID, 0, len(steps))
	for _, s := range steps {
		ids = append(ids, s.ID)
	}
	rows, err := l.store.Completions.ListByUserSteps(dbc, userID, ids)
	if err != nil {
		l.log.Debug("ghost check: completions unavailable", "journey_id", journeyID, "error", err)
		return none
	}

	hit := map[uuid.UUID]bool{}
	for _, row := range rows {
		if row != nil {
			hit[row.StepID] = true
		}
	}
	out := GhostCheck{ConflictingSteps: []uuid.UUID{}}
	for _, id := range ids {
		if hit[id] {
			out.ConflictingSteps = append(out.ConflictingSteps, id)
		}
	}
	out.HasConflicts = len(out.ConflictingSteps) > 0
	return out
}
