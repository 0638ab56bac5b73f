package journey

import (
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/journeys-backend/internal/domain"
	"github.com/yungbote/journeys-backend/internal/pkg/dbctx"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

// ProcedureRepo calls the plpgsql functions installed by db.MigrateProcedures.
// Each function reports its own failure in error_message; a transport failure
// comes back as the Go error.
type ProcedureRepo interface {
	RepairJourneyData(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.RepairResult, error)
	DeleteUserJourneyCompletely(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.DeleteResult, error)
	ResetJourneyForReplay(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.ResetResult, error)
}

type procedureRepo struct {
	db  *gorm.DB
	log *logger.Logger
}

func NewProcedureRepo(db *gorm.DB, baseLog *logger.Logger) ProcedureRepo {
	return &procedureRepo{db: db, log: baseLog.With("repo", "ProcedureRepo")}
}

type repairRow struct {
	Success        bool
	StepsProcessed int
	ErrorMessage   sql.NullString
}

type deleteRow struct {
	Success         bool
	DeletedSteps    int
	DeletedProgress int
	PointsRemoved   int
	ErrorMessage    sql.NullString
}

type resetRow struct {
	Success       bool
	DeletedSteps  int
	PointsRemoved int
	ProgressID    *uuid.UUID
	ErrorMessage  sql.NullString
}

func (r *procedureRepo) RepairJourneyData(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.RepairResult, error) {
	var row repairRow
	res := dbc.DB(r.db).Raw("SELECT * FROM repair_journey_data(?, ?)", userID, journeyID).Scan(&row)
	if res.Error != nil {
		return types.RepairResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		return types.RepairResult{}, fmt.Errorf("repair_journey_data returned no row")
	}
	return types.RepairResult{
		Success:        row.Success,
		StepsProcessed: row.StepsProcessed,
		Error:          row.ErrorMessage.String,
	}, nil
}

func (r *procedureRepo) DeleteUserJourneyCompletely(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.DeleteResult, error) {
	var row deleteRow
	res := dbc.DB(r.db).Raw("SELECT * FROM delete_user_journey_completely(?, ?)", userID, journeyID).Scan(&row)
	if res.Error != nil {
		return types.DeleteResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		return types.DeleteResult{}, fmt.Errorf("delete_user_journey_completely returned no row")
	}
	return types.DeleteResult{
		Success:         row.Success,
		DeletedSteps:    row.DeletedSteps,
		DeletedProgress: row.DeletedProgress,
		PointsRemoved:   row.PointsRemoved,
		Error:           row.ErrorMessage.String,
	}, nil
}

func (r *procedureRepo) ResetJourneyForReplay(dbc dbctx.Context, userID, journeyID uuid.UUID) (types.ResetResult, error) {
	var row resetRow
	res := dbc.DB(r.db).Raw("SELECT * FROM reset_journey_for_replay(?, ?)", userID, journeyID).Scan(&row)
	if res.Error != nil {
		return types.ResetResult{}, res.Error
	}
	if res.RowsAffected == 0 {
		return types.ResetResult{}, fmt.Errorf("reset_journey_for_replay returned no row")
	}
	out := types.ResetResult{
		Success:       row.Success,
		DeletedSteps:  row.DeletedSteps,
		PointsRemoved: row.PointsRemoved,
		Error:         row.ErrorMessage.String,
	}
	if row.ProgressID != nil {
		out.ProgressID = *row.ProgressID
	}
	return out, nil
}
