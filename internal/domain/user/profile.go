package user

import (
	"time"

	"github.com/google/uuid"
)

// Profile holds per-user aggregates. ID equals the auth user id.
type Profile struct {
	ID          uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	DisplayName string    `gorm:"column:display_name" json:"display_name,omitempty"`
	TotalPoints int       `gorm:"column:total_points;not null" json:"total_points"`
	CreatedAt   time.Time `gorm:"not null" json:"created_at"`
	UpdatedAt   time.Time `gorm:"not null" json:"updated_at"`
}

func (Profile) TableName() string { return "profiles" }
