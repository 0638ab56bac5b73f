package journeys

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Journey is an ordered tour. Localized fields carry the base language in the
// unsuffixed column and overrides in the _en/_es columns.
type Journey struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name          string `gorm:"column:name;not null" json:"name"`
	NameEn        string `gorm:"column:name_en" json:"name_en,omitempty"`
	NameEs        string `gorm:"column:name_es" json:"name_es,omitempty"`
	Description   string `gorm:"column:description;type:text" json:"description,omitempty"`
	DescriptionEn string `gorm:"column:description_en;type:text" json:"description_en,omitempty"`
	DescriptionEs string `gorm:"column:description_es;type:text" json:"description_es,omitempty"`

	IsActive bool `gorm:"column:is_active;not null;index" json:"is_active"`

	Steps []*JourneyStep `gorm:"foreignKey:JourneyID;references:ID" json:"steps,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Journey) TableName() string { return "journeys" }

func (j *Journey) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	return nil
}

type Step struct {
	ID uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`

	Name          string `gorm:"column:name;not null" json:"name"`
	NameEn        string `gorm:"column:name_en" json:"name_en,omitempty"`
	NameEs        string `gorm:"column:name_es" json:"name_es,omitempty"`
	Description   string `gorm:"column:description;type:text" json:"description,omitempty"`
	DescriptionEn string `gorm:"column:description_en;type:text" json:"description_en,omitempty"`
	DescriptionEs string `gorm:"column:description_es;type:text" json:"description_es,omitempty"`

	Latitude               float64        `gorm:"column:latitude;not null" json:"latitude"`
	Longitude              float64        `gorm:"column:longitude;not null" json:"longitude"`
	PointsAwarded          int            `gorm:"column:points_awarded;not null" json:"points_awarded"`
	ValidationRadiusMeters int            `gorm:"column:validation_radius_meters;not null" json:"validation_radius_meters"`
	HasQuiz                bool           `gorm:"column:has_quiz;not null" json:"has_quiz"`
	Images                 datatypes.JSON `gorm:"column:images;type:jsonb" json:"images,omitempty"`

	CreatedAt time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt time.Time `gorm:"not null" json:"updated_at"`
}

func (Step) TableName() string { return "steps" }

func (s *Step) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// JourneyStep places a step inside a journey. StepID is not a hard foreign
// key; a dangling reference is skipped at read time.
type JourneyStep struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	JourneyID uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_journey_step" json:"journey_id"`
	StepID    uuid.UUID `gorm:"type:uuid;not null;uniqueIndex:idx_journey_step;index" json:"step_id"`
	StepOrder int       `gorm:"column:step_order;not null" json:"step_order"`

	Step *Step `gorm:"foreignKey:StepID;references:ID" json:"step,omitempty"`
}

func (JourneyStep) TableName() string { return "journey_steps" }

func (js *JourneyStep) BeforeCreate(tx *gorm.DB) error {
	if js.ID == uuid.Nil {
		js.ID = uuid.New()
	}
	return nil
}
