package app

import (
	"gorm.io/gorm"

	journeyrepos "github.com/yungbote/journeys-backend/internal/data/repos/journey"
	"github.com/yungbote/journeys-backend/internal/modules/journey"
	"github.com/yungbote/journeys-backend/internal/pkg/logger"
)

func wireRepos(db *gorm.DB, log *logger.Logger) journeyrepos.Set {
	log.Info("Wiring repos...")
	return journeyrepos.NewSet(db, log)
}

func journeyStore(r journeyrepos.Set) journey.Store {
	return journey.Store{
		Journeys:    r.Journey,
		Progress:    r.Progress,
		Completions: r.Completion,
		Profiles:    r.Profile,
		Procedures:  r.Procedure,
	}
}
