package journey

import (
	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

type CompletionRepo interface {
	ListByUserJourney(dbc dbctx.Context, userID, journeyID uuid.UUID) ([]*types.StepCompletion, error)
	ListByUserSteps(dbc dbctx.Context, userID uuid.UUID, stepIDs []uuid.UUID) ([]*types.StepCompletion, error)
	SumPointsByUser(dbc dbctx.Context, userID uuid.UUID) (int, error)
	DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error)
}

type completionRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewCompletionRepo(db *gorm.DB, baseLog *logger.Logger) CompletionRepo {
	return &completionRepo{db: db, log: baseLog.With("repo", "CompletionRepo")}
}

func (r *completionRepo) ListByUserJourney(dbc dbctx.Context, userID, journeyID uuid.UUID) ([]*types.StepCompletion, error) {
	var out []*types.StepCompletion
	if userID == uuid.Nil || journeyID == uuid.Nil {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ? AND journey_id = ?", userID, journeyID).
		Order("completed_at ASC").
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

func (r *completionRepo) ListByUserSteps(dbc dbctx.Context, userID uuid.UUID, stepIDs []uuid.UUID) ([]*types.StepCompletion, error) {
	var out []*types.StepCompletion
	if userID == uuid.Nil || len(stepIDs) == 0 {
		return out, nil
	}
	if err := dbc.DB(r.db).
		Where("user_id = ? AND step_id IN ?", userID, stepIDs).
		Find(&out).Error; err != nil {
		return nil, err
	}
	return out, nil
}

// SumPointsByUser totals points across every journey the user touched.
func (r *completionRepo) SumPointsByUser(dbc dbctx.Context, userID uuid.UUID) (int, error) {
	if userID == uuid.Nil {
		return 0, nil
	}
	var total int64
	if err := dbc.DB(r.db).
		Model(&types.StepCompletion{}).
		Where("user_id = ?", userID).
		Select("COALESCE(SUM(points_earned), 0)").
		Scan(&total).Error; err != nil {
		return 0, err
	}
	return int(total), nil
}

func (r *completionRepo) DeleteByIDs(dbc dbctx.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := dbc.DB(r.db).
		Where("id IN ?", ids).
		Delete(&types.StepCompletion{})
	if res.Error != nil {
		return 0, res.Error
	}
	return res.RowsAffected, nil
}
