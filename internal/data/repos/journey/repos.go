package journey

import (
	"gorm.io/gorm"

	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

// Set bundles every journey repository over one connection.
type Set struct {
	Journey    JourneyRepo
	Progress   ProgressRepo
	Completion CompletionRepo
	Profile    ProfileRepo
	Procedure  ProcedureRepo
}

func NewSet(db *gorm.DB, baseLog *logger.Logger) Set {
	return Set{
		Journey:    NewJourneyRepo(db, baseLog),
		Progress:   NewProgressRepo(db, baseLog),
		Completion: NewCompletionRepo(db, baseLog),
		Profile:    NewProfileRepo(db, baseLog),
		Procedure:  NewProcedureRepo(db, baseLog),
	}
}
