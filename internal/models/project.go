package models

import "time"

// Member roles, ordered from most to least privileged.
const (
	RoleOwner  = "owner"
	RoleAdmin  = "admin"
	RoleMember = "member"
	RoleViewer = "viewer"
)

// Project groups boards, sprints and issues, and carries the monthly AI quota counter.
type Project struct {
	ID                  uint       `gorm:"primaryKey;autoIncrement" json:"id"`
	Key                 string     `gorm:"size:10;not null;uniqueIndex" json:"key"`
	Name                string     `gorm:"size:128;not null" json:"name"`
	Description         string     `gorm:"type:text" json:"description"`
	OwnerID             uint       `gorm:"not null;index" json:"owner_id"`
	AIRequestsCount     int        `gorm:"column:ai_requests_count;not null;default:0" json:"-"`
	AIRequestsResetDate *time.Time `gorm:"column:ai_requests_reset_date" json:"-"`
	CreatedAt           time.Time  `json:"created_at"`
	UpdatedAt           time.Time  `json:"updated_at"`

	Owner *User `gorm:"foreignKey:OwnerID" json:"-"`
}

// ProjectMember grants a user a role on a project.
type ProjectMember struct {
	ProjectID uint      `gorm:"primaryKey" json:"project_id"`
	UserID    uint      `gorm:"primaryKey" json:"user_id"`
	Role      string    `gorm:"size:16;not null;default:member" json:"role"`
	CreatedAt time.Time `json:"created_at"`

	Project *Project `gorm:"foreignKey:ProjectID;constraint:OnDelete:CASCADE" json:"-"`
	User    *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`
}
