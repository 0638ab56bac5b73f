package journey

import (
	"time"

	"github.com/google/uuid"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
)

type JourneyReader interface {
	// GetActiveWithSteps returns the journey with placements ordered by
	// step_order and their steps preloaded. Missing or inactive journeys are
	// reported as errors.ErrNotFound.
	GetActiveWithSteps(dbc dbctx.Context, journeyID uuid.UUID) (*types.Journey, error)
	IsActive(dbc dbctx.Context, journeyID uuid.UUID) (bool, error)
}

type ProgressStore interface {
	// Get returns nil, nil when the user has no progress record.
	Get(dbc dbctx.Context, userID, journeyID uuid.UUID) (*types.UserJourneyProgress, error)
	CreateIfAbsent(dbc dbctx.Context, userID, journeyID uuid.UUID) (*types.UserJourneyProgress, error)
	MarkAcquired(dbc dbctx.Context, userID, journeyID uuid.UUID, at time.Time) (bool, error)
}

type CompletionStore interface {
	ListByUserJourney(dbc dbctx.Context, userID, journeyID uuid.UUID) ([]*types.StepCompletion, error)
	ListByUserSteps(dbc dbctx.Context, userID uuid.UUID, stepIDs []uuid.UUID) ([]*types.StepCompletion, error)
	SumPointsByUser(dbc dbctx.Context, userID uuid.UUID) (int, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
}

type ProfileStore interface {
	SetTotalPoints(dbc dbctx.Context, userID uuid.UUID, total int, at time.Time) error
}

// Procedures are the database-side routines. They report their own failures
// through the Error field of the result; a returned error means the call
// itself did not go through.
type Procedures interface {
	RepairJourneyData(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.RepairResult, error)
	DeleteUserJourneyCompletely(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.DeleteResult, error)
	ResetJourneyForReplay(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.ResetResult, error)
}

type Store struct {
	Journeys    JourneyReader
	Progress    ProgressStore
	Completions CompletionStore
	Profiles    ProfileStore
	Procedures  Procedures
}
