package journey

import (
	"context"
	"strconv"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/pkg/ctxutil"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
	"github.com/yungbote/journeys-backend/internal/pkg/pointers"
)

// journeyMeta is the user-independent part of a view, shared by every user
// asking for the same journey in the same language.
type journeyMeta struct {
	base  *JourneyView
	index stepIndex
}

func buildMetadata(j *types.Journey, lang Language) *journeyMeta {
	steps := orderedSteps(j)
	views := make([]StepView, 0, len(steps))
	for _, s := range steps {
		views = append(views, localizeStep(s, lang))
	}
	return &journeyMeta{
		base: &JourneyView{
			ID:             j.ID,
			Name:           Localize(j.Name, map[Language]string{English: j.NameEn, Spanish: j.NameEs}, lang),
			Description:    Localize(j.Description, map[Language]string{English: j.DescriptionEn, Spanish: j.DescriptionEs}, lang),
			Language:       lang,
			Steps:          views,
			CompletedSteps: []int{},
		},
		index: indexSteps(steps),
	}
}

func (c *FetchCache) assemble(ctx context.Context, journeyID, userID uuid.UUID, lang Language) (*JourneyView, error) {
	ctx, span := tracer.Start(ctx, "journey.assemble", trace.WithAttributes(
		attribute.String("journey_id", journeyID.String()),
		attribute.String("language", string(lang)),
	))
	defer span.End()

	meta, err := c.loadMetadata(ctx, journeyID, lang)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "metadata")
		return nil, err
	}
	view := meta.base.Clone()
	if userID == uuid.Nil {
		return view, nil
	}
	if err := c.personalize(ctx, view, meta.index, journeyID, userID); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "personalize")
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("completed_steps", len(view.CompletedSteps)),
		attribute.Int("total_points", view.TotalPointsEarned),
	)
	return view, nil
}

// loadMetadata returns the shared layer for (journeyID, lang), reading it at
// most once at a time across all users.
func (c *FetchCache) loadMetadata(ctx context.Context, journeyID uuid.UUID, lang Language) (*journeyMeta, error) {
	key := metaKey(journeyID, lang)

	c.mu.Lock()
	if e, ok := c.meta[key]; ok && c.cfg.Now().Before(e.expiresAt) {
		c.mu.Unlock()
		return e.meta, nil
	}
	gen := c.generationLocked(journeyID)
	c.mu.Unlock()

	// The generation is part of the call key so a read that began before a
	// clear is never joined by a fetch that starts after it.
	ch := c.metaGroup.DoChan(key+"#"+strconv.FormatUint(gen, 10), func() (interface{}, error) {
		fctx, cancel := context.WithTimeout(ctxutil.Detach(ctx), c.cfg.MetadataTimeout)
		defer cancel()
		j, err := c.store.Journeys.GetActiveWithSteps(dbctx.Context{Ctx: fctx}, journeyID)
		if err != nil {
			return nil, pkgerrors.Remote("get journey", err)
		}
		m := buildMetadata(j, lang)
		c.mu.Lock()
		if c.generationLocked(journeyID) == gen {
			c.meta[key] = metaEntry{meta: m, expiresAt: c.cfg.Now().Add(c.cfg.MetadataTTL)}
		}
		c.mu.Unlock()
		return m, nil
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*journeyMeta), nil
	case <-ctx.Done():
		return nil, pkgerrors.ErrCancelled
	}
}

// personalize fills in the user's position and completions. Reconciliation
// and the progress pointer are best effort; only the completion read is
// allowed to fail the assembly.
func (c *FetchCache) personalize(ctx context.Context, view *JourneyView, idx stepIndex, journeyID, userID uuid.UUID) error {
	if c.repair != nil && c.repair.HasInconsistencies(ctx, userID, journeyID) {
		res := c.repair.SynchronizeJourneyData(ctx, userID, journeyID)
		if !res.Success {
			c.log.Warn("reconciliation during fetch failed",
				"journey_id", journeyID,
				"user_id", userID,
				"errors", res.Errors,
			)
		}
	}
	if ctx.Err() != nil {
		return pkgerrors.ErrCancelled
	}

	dbc := dbctx.Context{Ctx: ctx}

	progress, err := c.store.Progress.Get(dbc, userID, journeyID)
	if err == nil && progress == nil {
		progress, err = c.store.Progress.CreateIfAbsent(dbc, userID, journeyID)
	}
	if err != nil {
		if ctx.Err() != nil || pkgerrors.IsCancelled(err) {
			return pkgerrors.ErrCancelled
		}
		c.log.Warn("progress pointer unavailable", "journey_id", journeyID, "user_id", userID, "error", err)
		progress = nil
	}

	// Indices and points come from this one read so they always agree.
	rows, err := c.store.Completions.ListByUserJourney(dbc, userID, journeyID)
	if err != nil {
		return pkgerrors.Remote("list completions", err)
	}
	view.CompletedSteps, view.TotalPointsEarned = completedIndices(rows, idx)

	if progress != nil {
		view.CurrentStepIndex = max(0, progress.CurrentStepOrder-1)
		view.UserProgressRecordID = pointers.Ptr(progress.ID)
	}
	return nil
}
