package journey

import (
	"context"
	"encoding/json"
	"math"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/observability"
	"github.com/yungbote/journeys-backend/internal/pkg/ctxutil"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

// Diagnostics compares the step indices backed by completion rows with the
// indices recorded in the progress record's quiz responses.
type Diagnostics struct {
	CompletionStepIndices    []int `json:"completionStepIndices"`
	QuizResponseStepIndices  []int `json:"quizResponseStepIndices"`
	MissingFromQuizResponses []int `json:"missingFromQuizResponses"`
	ExtraInQuizResponses     []int `json:"extraInQuizResponses"`
	TotalInconsistencies     int   `json:"totalInconsistencies"`
}

const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

type SyncError struct {
	Severity string `json:"severity"`
	Stage    string `json:"stage"`
	Message  string `json:"message"`
}

type SyncResult struct {
	Success              bool        `json:"success"`
	StepsProcessed       int         `json:"stepsProcessed"`
	InconsistenciesFound int         `json:"inconsistenciesFound"`
	InconsistenciesFixed int         `json:"inconsistenciesFixed"`
	Errors               []SyncError `json:"errors"`
}

func failed(stage string, err error) SyncResult {
	return SyncResult{Errors: []SyncError{{Severity: SeverityError, Stage: stage, Message: err.Error()}}}
}

// Reconciler repairs drift between completion rows, which are authoritative,
// and the quiz responses copied onto the progress record.
type Reconciler struct {
	log     *logger.Logger
	store   Store
	now     func() time.Time
	metrics *observability.Metrics
}

func NewReconciler(baseLog *logger.Logger, store Store, now func() time.Time, metrics *observability.Metrics) *Reconciler {
	if now == nil {
		now = time.Now
	}
	return &Reconciler{
		log:     baseLog.With("service", "ProgressReconciler"),
		store:   store,
		now:     now,
		metrics: metrics,
	}
}

// DiagnoseInconsistencies reads the journey, the user's completions and the
// progress record concurrently and compares them. Any read failure is
// returned.
func (r *Reconciler) DiagnoseInconsistencies(ctx context.Context, userID, journeyID uuid.UUID) (*Diagnostics, error) {
	ctx = ctxutil.Default(ctx)
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return nil, pkgerrors.ErrInvalidArgument
	}

	var (
		j        *types.Journey
		rows     []*types.StepCompletion
		progress *types.UserJourneyProgress
	)
	g, gctx := errgroup.WithContext(ctx)
	dbc := dbctx.Context{Ctx: gctx}
	g.Go(func() error {
		var err error
		j, err = r.store.Journeys.GetActiveWithSteps(dbc, journeyID)
		return pkgerrors.Remote("get journey", err)
	})
	g.Go(func() error {
		var err error
		rows, err = r.store.Completions.ListByUserJourney(dbc, userID, journeyID)
		return pkgerrors.Remote("list completions", err)
	})
	g.Go(func() error {
		var err error
		progress, err = r.store.Progress.Get(dbc, userID, journeyID)
		return pkgerrors.Remote("get progress", err)
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	idx := indexSteps(orderedSteps(j))
	completed, _ := completedIndices(rows, idx)
	var recorded []int
	if progress != nil {
		recorded = quizResponseIndices(progress.QuizResponses)
	} else {
		recorded = []int{}
	}
	return diff(completed, recorded), nil
}

func diff(completed, recorded []int) *Diagnostics {
	inCompleted := map[int]bool{}
	for _, i := range completed {
		inCompleted[i] = true
	}
	inRecorded := map[int]bool{}
	for _, i := range recorded {
		inRecorded[i] = true
	}
	missing := []int{}
	for _, i := range completed {
		if !inRecorded[i] {
			missing = append(missing, i)
		}
	}
	extra := []int{}
	for _, i := range recorded {
		if !inCompleted[i] {
			extra = append(extra, i)
		}
	}
	return &Diagnostics{
		CompletionStepIndices:    completed,
		QuizResponseStepIndices:  recorded,
		MissingFromQuizResponses: missing,
		ExtraInQuizResponses:     extra,
		TotalInconsistencies:     len(missing) + len(extra),
	}
}

// quizResponseIndices extracts the distinct non-negative integral stepIndex
// values from a quiz_responses array. Anything malformed is skipped.
func quizResponseIndices(raw []byte) []int {
	if len(raw) == 0 {
		return []int{}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return []int{}
	}
	seen := map[int]bool{}
	for _, item := range items {
		var entry struct {
			StepIndex *float64 `json:"stepIndex"`
		}
		if err := json.Unmarshal(item, &entry); err != nil || entry.StepIndex == nil {
			continue
		}
		f := *entry.StepIndex
		if f < 0 || f != math.Trunc(f) || f > math.MaxInt32 {
			continue
		}
		seen[int(f)] = true
	}
	return sortedKeys(seen)
}

// HasInconsistencies fails open: a diagnosis error reads as "no drift" so it
// never blocks a journey read.
func (r *Reconciler) HasInconsistencies(ctx context.Context, userID, journeyID uuid.UUID) bool {
	d, err := r.DiagnoseInconsistencies(ctx, userID, journeyID)
	if err != nil {
		r.log.Debug("diagnosis failed, assuming consistent", "journey_id", journeyID, "user_id", userID, "error", err)
		return false
	}
	return d.TotalInconsistencies > 0
}

// SynchronizeJourneyData repairs the progress record when diagnosis finds
// drift, then recomputes the user's overall point balance. It does nothing
// when the data already agrees.
func (r *Reconciler) SynchronizeJourneyData(ctx context.Context, userID, journeyID uuid.UUID) SyncResult {
	ctx, span := r.start(ctx, "synchronize", userID, journeyID)
	defer span.End()

	d, err := r.DiagnoseInconsistencies(ctx, userID, journeyID)
	if err != nil {
		return r.finish(span, "synchronize", failed("diagnose", err))
	}
	if d.TotalInconsistencies == 0 {
		return r.finish(span, "synchronize", SyncResult{Success: true, Errors: []SyncError{}})
	}

	res := r.repair(ctx, userID, journeyID)
	res.InconsistenciesFound = d.TotalInconsistencies
	if !res.Success {
		return r.finish(span, "synchronize", res)
	}
	res.InconsistenciesFixed = d.TotalInconsistencies

	if err := r.recomputeTotalPoints(ctx, userID); err != nil {
		res.Errors = append(res.Errors, SyncError{Severity: SeverityWarning, Stage: "recompute_points", Message: err.Error()})
	}
	return r.finish(span, "synchronize", res)
}

func (r *Reconciler) repair(ctx context.Context, userID, journeyID uuid.UUID) SyncResult {
	out, err := r.store.Procedures.RepairJourneyData(dbctx.Context{Ctx: ctx}, userID, journeyID)
	if err != nil {
		return failed("repair", err)
	}
	if !out.Success {
		msg := out.Error
		if msg == "" {
			msg = "repair reported failure"
		}
		return SyncResult{Errors: []SyncError{{Severity: SeverityError, Stage: "repair", Message: msg}}}
	}
	return SyncResult{Success: true, StepsProcessed: out.StepsProcessed, Errors: []SyncError{}}
}

// recomputeTotalPoints sums the user's completions across every journey.
func (r *Reconciler) recomputeTotalPoints(ctx context.Context, userID uuid.UUID) error {
	dbc := dbctx.Context{Ctx: ctx}
	total, err := r.store.Completions.SumPointsByUser(dbc, userID)
	if err != nil {
		return err
	}
	return r.store.Profiles.SetTotalPoints(dbc, userID, total, r.now())
}

// CleanupGhostData deletes the user's completion rows for this journey whose
// step no longer belongs to it.
func (r *Reconciler) CleanupGhostData(ctx context.Context, userID, journeyID uuid.UUID) SyncResult {
	ctx, span := r.start(ctx, "cleanup", userID, journeyID)
	defer span.End()
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return r.finish(span, "cleanup", failed("validate", pkgerrors.ErrInvalidArgument))
	}

	dbc := dbctx.Context{Ctx: ctx}
	j, err := r.store.Journeys.GetActiveWithSteps(dbc, journeyID)
	if err != nil {
		return r.finish(span, "cleanup", failed("load_journey", err))
	}
	rows, err := r.store.Completions.ListByUserJourney(dbc, userID, journeyID)
	if err != nil {
		return r.finish(span, "cleanup", failed("list_completions", err))
	}

	idx := indexSteps(orderedSteps(j))
	var ghosts []uuid.UUID
	for _, row := range rows {
		if row == nil {
			continue
		}
		if _, ok := idx[row.StepID]; !ok {
			ghosts = append(ghosts, row.ID)
		}
	}
	if len(ghosts) == 0 {
		return r.finish(span, "cleanup", SyncResult{Success: true, Errors: []SyncError{}})
	}

	n, err := r.store.Completions.DeleteByIDs(dbc, ghosts)
	if err != nil {
		res := failed("delete_ghosts", err)
		res.InconsistenciesFound = len(ghosts)
		return r.finish(span, "cleanup", res)
	}
	r.log.Info("ghost completions removed", "journey_id", journeyID, "user_id", userID, "count", n)
	return r.finish(span, "cleanup", SyncResult{
		Success:              true,
		InconsistenciesFound: len(ghosts),
		InconsistenciesFixed: int(n),
		Errors:               []SyncError{},
	})
}

// FullSynchronization runs ghost cleanup then synchronization, stopping at a
// failed cleanup.
func (r *Reconciler) FullSynchronization(ctx context.Context, userID, journeyID uuid.UUID) SyncResult {
	cleanup := r.CleanupGhostData(ctx, userID, journeyID)
	if !cleanup.Success {
		return cleanup
	}
	synced := r.SynchronizeJourneyData(ctx, userID, journeyID)
	return SyncResult{
		Success:              synced.Success,
		StepsProcessed:       synced.StepsProcessed,
		InconsistenciesFound: cleanup.InconsistenciesFound + synced.InconsistenciesFound,
		InconsistenciesFixed: cleanup.InconsistenciesFixed + synced.InconsistenciesFixed,
		Errors:               append(append([]SyncError{}, cleanup.Errors...), synced.Errors...),
	}
}

// ManualRepair runs the repair procedure without diagnosing first.
func (r *Reconciler) ManualRepair(ctx context.Context, userID, journeyID uuid.UUID) SyncResult {
	ctx, span := r.start(ctx, "manual_repair", userID, journeyID)
	defer span.End()
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return r.finish(span, "manual_repair", failed("validate", pkgerrors.ErrInvalidArgument))
	}
	return r.finish(span, "manual_repair", r.repair(ctx, userID, journeyID))
}

func (r *Reconciler) start(ctx context.Context, op string, userID, journeyID uuid.UUID) (context.Context, trace.Span) {
	return tracer.Start(ctxutil.Default(ctx), "journey.reconcile", trace.WithAttributes(
		attribute.String("op", op),
		attribute.String("journey_id", journeyID.String()),
	))
}

func (r *Reconciler) finish(span trace.Span, op string, res SyncResult) SyncResult {
	if res.Errors == nil {
		res.Errors = []SyncError{}
	}
	span.SetAttributes(
		attribute.Int("found", res.InconsistenciesFound),
		attribute.Int("fixed", res.InconsistenciesFixed),
	)
	if !res.Success {
		span.SetStatus(codes.Error, op+" failed")
		r.log.Warn("reconciliation failed", "op", op, "errors", res.Errors)
	}
	r.metrics.IncReconciliation(op, res.Success)
	return res
}
