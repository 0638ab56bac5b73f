package journey

import (
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/journeys-backend/internal/pkg/errors"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

type JourneyRepo interface {
	GetActiveWithSteps(dbc dbctx.Context, journeyID uuid.UUID) (*types.Journey, error)
	IsActive(dbc dbctx.Context, journeyID uuid.UUID) (bool, error)
}

type journeyRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewJourneyRepo(db *gorm.DB, baseLog *logger.Logger) JourneyRepo {
	return &journeyRepo{db: db, log: baseLog.With("repo", "JourneyRepo")}
}

// GetActiveWithSteps loads the journey, its placements ordered by step_order
// and each placed step. Placements whose step row is gone come back with a
// nil Step.
func (r *journeyRepo) GetActiveWithSteps(dbc dbctx.Context, journeyID uuid.UUID) (*types.Journey, error) {
	if journeyID == uuid.Nil {
		return nil, fmt.Errorf("journey id: %w", pkgerrors.ErrInvalidArgument)
	}
	var row types.Journey
	err := dbc.DB(r.db).
		Where("id = ? AND is_active = ?", journeyID, true).
		Preload("Steps", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("step_order ASC")
		}).
		Preload("Steps.Step").
		Limit(1).
		Find(&row).Error
	if err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, fmt.Errorf("journey %s: %w", journeyID, pkgerrors.ErrNotFound)
	}
	return &row, nil
}

func (r *journeyRepo) IsActive(dbc dbctx.Context, journeyID uuid.UUID) (bool, error) {
	if journeyID == uuid.Nil {
		return false, nil
	}
	var count int64
	if err := dbc.DB(r.db).
		Model(&types.Journey{}).
		Where("id = ? AND is_active = ?", journeyID, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}
