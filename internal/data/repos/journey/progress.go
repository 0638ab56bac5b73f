package journey

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

type ProgressRepo interface {
	Get(dbc dbctx.Context, userID, journeyID uuid.UUID) (*types.UserJourneyProgress, error)
	CreateIfAbsent(dbc dbctx.Context, userID, journeyID uuid.UUID) (*types.UserJourneyProgress, error)
	MarkAcquired(dbc dbctx.Context, userID, journeyID uuid.UUID, at time.Time) (bool, error)
}

type progressRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProgressRepo(db *gorm.DB, baseLog *logger.Logger) ProgressRepo {
	return &progressRepo{db: db, log: baseLog.With("repo", "ProgressRepo")}
}

// Get returns nil, nil when the user has no progress pointer for the journey.
func (r *progressRepo) Get(dbc dbctx.Context, userID, journeyID uuid.UUID) (*types.UserJourneyProgress, error) {
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return nil, nil
	}
	var row types.UserJourneyProgress
	err := dbc.DB(r.db).
		Where("user_id = ? AND journey_id = ?", userID, journeyID).
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// CreateIfAbsent inserts a fresh pointer at step 1. Losing a race against a
// concurrent insert is not an error: the winner's row is returned.
func (r *progressRepo) CreateIfAbsent(dbc dbctx.Context, userID, journeyID uuid.UUID) (*types.UserJourneyProgress, error) {
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return nil, nil
	}
	row := &types.UserJourneyProgress{
		UserID:           userID,
		JourneyID:        journeyID,
		CurrentStepOrder: 1,
		QuizResponses:    datatypes.JSON([]byte("[]")),
	}
	res := dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "journey_id"}},
			DoNothing: true,
		}).
		Create(row)
	if res.Error != nil && !isUniqueViolation(res.Error) {
		return nil, res.Error
	}
	if res.Error == nil && res.RowsAffected == 1 {
		return row, nil
	}
	r.log.Debug("progress pointer already existed", "user_id", userID, "journey_id", journeyID)
	return r.Get(dbc, userID, journeyID)
}

// MarkAcquired stamps acquired_at on a completed pointer and reports whether
// a row matched.
func (r *progressRepo) MarkAcquired(dbc dbctx.Context, userID, journeyID uuid.UUID, at time.Time) (bool, error) {
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return false, nil
	}
	res := dbc.DB(r.db).
		Model(&types.UserJourneyProgress{}).
		Where("user_id = ? AND journey_id = ? AND is_completed = ?", userID, journeyID, true).
		Updates(map[string]any{
			"acquired_at": at,
			"updated_at":  at,
		})
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
