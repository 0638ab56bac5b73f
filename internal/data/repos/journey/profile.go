package journey

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

type ProfileRepo interface {
	Get(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error)
	SetTotalPoints(dbc dbctx.Context, userID uuid.UUID, total int, at time.Time) error
}

type profileRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProfileRepo(db *gorm.DB, baseLog *logger.Logger) ProfileRepo {
	return &profileRepo{db: db, log: baseLog.With("repo", "ProfileRepo")}
}

func (r *profileRepo) Get(dbc dbctx.Context, userID uuid.UUID) (*types.Profile, error) {
	if userID == uuid.Nil {
		return nil, nil
	}
	var row types.Profile
	if err := dbc.DB(r.db).Where("id = ?", userID).Limit(1).Find(&row).Error; err != nil {
		return nil, err
	}
	if row.ID == uuid.Nil {
		return nil, nil
	}
	return &row, nil
}

// SetTotalPoints overwrites the balance, creating the profile row if needed.
func (r *profileRepo) SetTotalPoints(dbc dbctx.Context, userID uuid.UUID, total int, at time.Time) error {
	if userID == uuid.Nil {
		return nil
	}
	row := &types.Profile{
		ID:          userID,
		TotalPoints: total,
		CreatedAt:   at,
		UpdatedAt:   at,
	}
	return dbc.DB(r.db).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoUpdates: clause.AssignmentColumns([]string{"total_points", "updated_at"}),
		}).
		Create(row).Error
}
