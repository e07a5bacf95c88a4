package models

import "time"

// ActivityLog is an append-only audit trail of project events, including AI feature calls.
type ActivityLog struct {
	ID         uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID  uint      `gorm:"not null;index:idx_project_created" json:"project_id"`
	UserID     uint      `gorm:"index" json:"user_id"`
	Action     string    `gorm:"size:64;not null" json:"action"`
	EntityType string    `gorm:"size:32" json:"entity_type"`
	EntityID   uint      `json:"entity_id"`
	Details    string    `gorm:"type:json" json:"details,omitempty"`
	CreatedAt  time.Time `gorm:"index:idx_project_created" json:"created_at"`
}
