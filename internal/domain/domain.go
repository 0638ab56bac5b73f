package domain

import (
	"github.com/yungbote/journeys-backend/internal/domain/journeys"
	"github.com/yungbote/journeys-backend/internal/domain/user"
)

type Journey = journeys.Journey
type Step = journeys.Step
type JourneyStep = journeys.JourneyStep
type UserJourneyProgress = journeys.UserJourneyProgress
type StepCompletion = journeys.StepCompletion
type QuizResponse = journeys.QuizResponse

type Profile = user.Profile

// Models lists every table owned by this service, in migration order.
func Models() []interface{} {
	return []interface{}{
		&Profile{},
		&Journey{},
		&Step{},
		&JourneyStep{},
		&UserJourneyProgress{},
		&StepCompletion{},
	}
}

type RepairResult = journeys.RepairResult
type DeleteResult = journeys.DeleteResult
type ResetResult = journeys.ResetResult
