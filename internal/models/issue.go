package models

import "time"

// Issue types.
const (
	IssueStory = "Story"
	IssueBug   = "Bug"
	IssueTask  = "Task"
	IssueEpic  = "Epic"
)

// Issue statuses.
const (
	StatusToDo       = "To Do"
	StatusInProgress = "In Progress"
	StatusDone       = "Done"
	StatusBlocked    = "Blocked"
)

// Issue is a unit of work. Its SprintID and StoryPoints are what move a sprint's scope.
type Issue struct {
	ID            uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	BoardID       uint      `gorm:"not null;index" json:"board_id"`
	SprintID      *uint     `gorm:"index" json:"sprint_id"`
	Title         string    `gorm:"size:255;not null" json:"title"`
	Description   string    `gorm:"type:text" json:"description"`
	Type          string    `gorm:"size:16;not null" json:"type"`
	Status        string    `gorm:"size:16;not null;index" json:"status"`
	Priority      string    `gorm:"size:2;not null" json:"priority"`
	StoryPoints   *float64  `json:"story_points"`
	AssigneeID    *uint     `gorm:"index" json:"assignee_id"`
	ReporterID    uint      `gorm:"not null" json:"reporter_id"`
	BlockedReason string    `gorm:"type:text" json:"blocked_reason,omitempty"`
	ExternalRef   string    `gorm:"size:128;index" json:"external_ref,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`

	Board    *Board  `gorm:"foreignKey:BoardID" json:"-"`
	Sprint   *Sprint `gorm:"foreignKey:SprintID" json:"-"`
	Assignee *User   `gorm:"foreignKey:AssigneeID" json:"-"`
	Reporter *User   `gorm:"foreignKey:ReporterID" json:"-"`
}

// Points returns the story points, treating unset as zero.
func (i *Issue) Points() float64 {
	if i.StoryPoints == nil {
		return 0
	}
	return *i.StoryPoints
}

// Comment is a discussion entry on an issue.
type Comment struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	IssueID   uint      `gorm:"not null;index" json:"issue_id"`
	AuthorID  uint      `gorm:"not null" json:"author_id"`
	Body      string    `gorm:"type:text;not null" json:"body"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	Issue  *Issue `gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE" json:"-"`
	Author *User  `gorm:"foreignKey:AuthorID" json:"-"`
}

// TimeLog records hours worked on an issue.
type TimeLog struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	IssueID   uint      `gorm:"not null;index" json:"issue_id"`
	UserID    uint      `gorm:"not null;index" json:"user_id"`
	Hours     float64   `gorm:"not null" json:"hours"`
	LoggedOn  time.Time `gorm:"not null" json:"logged_on"`
	Note      string    `gorm:"type:text" json:"note,omitempty"`
	CreatedAt time.Time `json:"created_at"`

	Issue *Issue `gorm:"foreignKey:IssueID;constraint:OnDelete:CASCADE" json:"-"`
	User  *User  `gorm:"foreignKey:UserID" json:"-"`
}
