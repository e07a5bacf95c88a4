package models

import "time"

// Board is a scrum or kanban board within a project. Sprints live on boards.
type Board struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	ProjectID uint      `gorm:"not null;index" json:"project_id"`
	Name      string    `gorm:"size:128;not null" json:"name"`
	Type      string    `gorm:"size:16;not null;default:scrum" json:"type"`
	CreatedAt time.Time `json:"created_at"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
}
