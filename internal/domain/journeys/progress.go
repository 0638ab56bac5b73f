package journeys

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// UserJourneyProgress is the per-user progress pointer. QuizResponses is a
// denormalized copy of what step_completions already records.
type UserJourneyProgress struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_journey_progress" json:"user_id"`
	JourneyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_journey_progress;index" json:"journey_id"`

	CurrentStepOrder  int            `gorm:"column:current_step_order;not null;default:1" json:"current_step_order"`
	IsCompleted       bool           `gorm:"column:is_completed;not null" json:"is_completed"`
	TotalPointsEarned int            `gorm:"column:total_points_earned;not null" json:"total_points_earned"`
	QuizResponses     datatypes.JSON `gorm:"column:quiz_responses;type:jsonb" json:"quiz_responses,omitempty"`
	AcquiredAt        *time.Time     `gorm:"column:acquired_at" json:"acquired_at,omitempty"`
	CompletedAt       *time.Time     `gorm:"column:completed_at" json:"completed_at,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (UserJourneyProgress) TableName() string { return "user_journey_progress" }

func (p *UserJourneyProgress) BeforeCreate(tx *gorm.DB) error {
	if p.ID == uuid.Nil {
		p.ID = uuid.New()
	}
	if len(p.QuizResponses) == 0 {
		p.QuizResponses = datatypes.JSON([]byte("[]"))
	}
	return nil
}

// StepCompletion is the authoritative record that a user finished a step.
type StepCompletion struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	UserID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_journey_step;index" json:"user_id"`
	JourneyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_journey_step" json:"journey_id"`
	StepID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_user_journey_step" json:"step_id"`

	PointsEarned int       `gorm:"column:points_earned;not null" json:"points_earned"`
	CompletedAt  time.Time `gorm:"column:completed_at;not null" json:"completed_at"`
}

func (StepCompletion) TableName() string { return "step_completions" }

func (c *StepCompletion) BeforeCreate(tx *gorm.DB) error {
	if c.ID == uuid.Nil {
		c.ID = uuid.New()
	}
	if c.CompletedAt.IsZero() {
		c.CompletedAt = time.Now().UTC()
	}
	return nil
}

// QuizResponse is one entry of UserJourneyProgress.QuizResponses. Only
// StepIndex matters for reconciliation; entries without it are ignored.
type QuizResponse struct {
	StepIndex *int            `json:"stepIndex,omitempty"`
	StepID    string          `json:"stepId,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	IsCorrect bool            `json:"isCorrect,omitempty"`
	Points    int             `json:"points,omitempty"`
}
