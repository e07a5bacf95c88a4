package models

import "time"

// Sprint statuses.
const (
	SprintPlanning  = "Planning"
	SprintActive    = "Active"
	SprintCompleted = "Completed"
)

// Sprint is a time-boxed unit of work on a board. BaselinePoints, ScopeThresholdPct
// and ScopeAlerted carry the scope-creep tracking state.
type Sprint struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID             uint       `gorm:"not null;index" json:"board_id"`
	Name                string     `gorm:"size:128;not null" json:"name"`
	Goal                string     `gorm:"type:text" json:"goal"`
	StartDate           *time.Time `json:"start_date"`
	EndDate             *time.Time `json:"end_date"`
	Status              string     `gorm:"size:16;not null;index" json:"status"`
	CapacityStoryPoints float64    `gorm:"column:capacity_story_points;not null;default:0" json:"capacity_story_points"`
	CreatedBy           uint       `gorm:"not null" json:"created_by"`
	BaselinePoints      float64    `gorm:"not null;default:0" json:"baseline_points"`
	ScopeThresholdPct   float64    `gorm:"not null" json:"scope_threshold_pct"`
	ScopeAlerted        bool       `gorm:"not null;default:false" json:"scope_alerted"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Board   *Board `gorm:"foreignKey:BoardID" json:"-"`
	Creator *User  `gorm:"foreignKey:CreatedBy" json:"-"`
}
