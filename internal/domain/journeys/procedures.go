package journeys

import "github.com/google/uuid"

// RepairResult mirrors repair_journey_data's row.
type RepairResult struct {
	Success        bool
	StepsProcessed int
	Error          string
}

// DeleteResult mirrors delete_user_journey_completely's row.
type DeleteResult struct {
	Success         bool
	DeletedSteps    int
	DeletedProgress int
	PointsRemoved   int
	Error           string
}

// ResetResult mirrors reset_journey_for_replay's row.
type ResetResult struct {
	Success       bool
	DeletedSteps  int
	PointsRemoved int
	ProgressID    uuid.UUID
	Error         string
}
