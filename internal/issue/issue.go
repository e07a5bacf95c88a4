// Package issue provides issue CRUD, comments and time tracking. Every
// mutation reports the sprints whose scope it moved so callers can recompute.
package issue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/scope"
	"gorm.io/gorm"
)

// Accepted enumerations.
var (
	Types      = []string{models.IssueStory, models.IssueBug, models.IssueTask, models.IssueEpic}
	Statuses   = []string{models.StatusToDo, models.StatusInProgress, models.StatusDone, models.StatusBlocked}
	Priorities = []string{"P1", "P2", "P3", "P4"}
)

// CreateOpts holds parameters for creating an issue.
type CreateOpts struct {
	BoardID       uint
	SprintID      *uint
	Title         string
	Description   string
	Type          string
	Status        string
	Priority      string
	StoryPoints   *float64
	AssigneeID    *uint
	ReporterID    uint
	BlockedReason string
	ExternalRef   string
}

// Patch holds a partial update. Nil fields are left unchanged; the Clear
// flags null out the matching optional field.
type Patch struct {
	Title            *string
	Description      *string
	Type             *string
	Status           *string
	Priority         *string
	BlockedReason    *string
	SprintID         *uint
	ClearSprint      bool
	StoryPoints      *float64
	ClearStoryPoints bool
	AssigneeID       *uint
	ClearAssignee    bool
}

// Filter narrows List. Zero values match everything.
type Filter struct {
	BoardID    uint
	SprintID   uint
	Backlog    bool
	Status     string
	Type       string
	Priority   string
	AssigneeID uint
	Search     string
}

// Create validates and inserts an issue. It returns the sprints whose scope
// moved.
func Create(db *gorm.DB, opts CreateOpts) (*models.Issue, []uint, error) {
	is := models.Issue{
		BoardID:       opts.BoardID,
		SprintID:      opts.SprintID,
		Title:         strings.TrimSpace(opts.Title),
		Description:   opts.Description,
		Type:          opts.Type,
		Status:        opts.Status,
		Priority:      opts.Priority,
		StoryPoints:   opts.StoryPoints,
		AssigneeID:    opts.AssigneeID,
		ReporterID:    opts.ReporterID,
		BlockedReason: strings.TrimSpace(opts.BlockedReason),
		ExternalRef:   opts.ExternalRef,
	}
	if is.Type == "" {
		is.Type = models.IssueTask
	}
	if is.Status == "" {
		is.Status = models.StatusToDo
	}
	if is.Priority == "" {
		is.Priority = "P3"
	}
	if is.ReporterID == 0 {
		return nil, nil, apperr.Validation("reporter is required")
	}
	if err := validate(db, &is, nil); err != nil {
		return nil, nil, err
	}

	if err := db.Create(&is).Error; err != nil {
		return nil, nil, fmt.Errorf("issue: create: %w", err)
	}
	return &is, scope.AffectedSprints(nil, is.SprintID, nil, is.StoryPoints), nil
}

// Get retrieves an issue by ID.
func Get(db *gorm.DB, id uint) (*models.Issue, error) {
	var is models.Issue
	if err := db.First(&is, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("issue", id)
		}
		return nil, fmt.Errorf("issue: get %d: %w", id, err)
	}
	return &is, nil
}

// List returns a page of a project's issues matching f, and the total count.
func List(db *gorm.DB, projectID uint, f Filter, page, perPage int) ([]models.Issue, int64, error) {
	q := db.Model(&models.Issue{}).
		Joins("JOIN boards ON boards.id = issues.board_id").
		Where("boards.project_id = ?", projectID)
	if f.BoardID != 0 {
		q = q.Where("issues.board_id = ?", f.BoardID)
	}
	if f.SprintID != 0 {
		q = q.Where("issues.sprint_id = ?", f.SprintID)
	}
	if f.Backlog {
		q = q.Where("issues.sprint_id IS NULL")
	}
	if f.Status != "" {
		q = q.Where("issues.status = ?", f.Status)
	}
	if f.Type != "" {
		q = q.Where("issues.type = ?", f.Type)
	}
	if f.Priority != "" {
		q = q.Where("issues.priority = ?", f.Priority)
	}
	if f.AssigneeID != 0 {
		q = q.Where("issues.assignee_id = ?", f.AssigneeID)
	}
	if s := strings.TrimSpace(f.Search); s != "" {
		q = q.Where("LOWER(issues.title) LIKE ?", "%"+strings.ToLower(s)+"%")
	}

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("issue: count project %d: %w", projectID, err)
	}
	var issues []models.Issue
	if err := q.Select("issues.*").Order("issues.priority ASC, issues.id ASC").
		Offset((page - 1) * perPage).Limit(perPage).Find(&issues).Error; err != nil {
		return nil, 0, fmt.Errorf("issue: list project %d: %w", projectID, err)
	}
	return issues, total, nil
}

// Update applies p to an issue and returns the sprints whose scope moved.
func Update(db *gorm.DB, id uint, p Patch) (*models.Issue, []uint, error) {
	before, err := Get(db, id)
	if err != nil {
		return nil, nil, err
	}
	after := *before

	if p.Title != nil {
		after.Title = strings.TrimSpace(*p.Title)
	}
	if p.Description != nil {
		after.Description = *p.Description
	}
	if p.Type != nil {
		after.Type = *p.Type
	}
	if p.Priority != nil {
		after.Priority = *p.Priority
	}
	if p.Status != nil {
		after.Status = *p.Status
		if after.Status != models.StatusBlocked && p.BlockedReason == nil {
			after.BlockedReason = ""
		}
	}
	if p.BlockedReason != nil {
		after.BlockedReason = strings.TrimSpace(*p.BlockedReason)
	}
	switch {
	case p.ClearSprint:
		after.SprintID = nil
	case p.SprintID != nil:
		v := *p.SprintID
		after.SprintID = &v
	}
	switch {
	case p.ClearStoryPoints:
		after.StoryPoints = nil
	case p.StoryPoints != nil:
		v := *p.StoryPoints
		after.StoryPoints = &v
	}
	switch {
	case p.ClearAssignee:
		after.AssigneeID = nil
	case p.AssigneeID != nil:
		v := *p.AssigneeID
		after.AssigneeID = &v
	}

	if err := validate(db, &after, before.SprintID); err != nil {
		return nil, nil, err
	}

	updates := map[string]interface{}{
		"title":          after.Title,
		"description":    after.Description,
		"type":           after.Type,
		"status":         after.Status,
		"priority":       after.Priority,
		"blocked_reason": after.BlockedReason,
		"sprint_id":      after.SprintID,
		"story_points":   after.StoryPoints,
		"assignee_id":    after.AssigneeID,
	}
	if err := db.Model(&models.Issue{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, nil, fmt.Errorf("issue: update %d: %w", id, err)
	}
	updated, err := Get(db, id)
	if err != nil {
		return nil, nil, err
	}
	return updated, scope.AffectedSprints(before.SprintID, after.SprintID, before.StoryPoints, after.StoryPoints), nil
}

// Move assigns an issue to sprintID, or to the backlog when sprintID is nil.
func Move(db *gorm.DB, id uint, sprintID *uint) (*models.Issue, []uint, error) {
	if sprintID == nil {
		return Update(db, id, Patch{ClearSprint: true})
	}
	return Update(db, id, Patch{SprintID: sprintID})
}

// Delete removes an issue with its comments and time logs, returning the
// sprints whose scope moved.
func Delete(db *gorm.DB, id uint) ([]uint, error) {
	is, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("issue_id = ?", id).Delete(&models.Comment{}).Error; err != nil {
			return fmt.Errorf("issue: delete comments of %d: %w", id, err)
		}
		if err := tx.Where("issue_id = ?", id).Delete(&models.TimeLog{}).Error; err != nil {
			return fmt.Errorf("issue: delete time logs of %d: %w", id, err)
		}
		if err := tx.Delete(&models.Issue{}, id).Error; err != nil {
			return fmt.Errorf("issue: delete %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return scope.AffectedSprints(is.SprintID, nil, is.StoryPoints, nil), nil
}

// ProjectOf returns the project owning the issue's board.
func ProjectOf(db *gorm.DB, is *models.Issue) (uint, error) {
	var b models.Board
	if err := db.Select("id", "project_id").First(&b, is.BoardID).Error; err != nil {
		return 0, fmt.Errorf("issue: board of %d: %w", is.ID, err)
	}
	return b.ProjectID, nil
}

// validate checks is before it is written. prevSprint is the sprint the issue
// was in before the change; an issue may stay in a completed sprint but not
// be moved into one.
func validate(db *gorm.DB, is *models.Issue, prevSprint *uint) error {
	var errs []string
	if is.Title == "" {
		errs = append(errs, "title is required")
	}
	if !contains(Types, is.Type) {
		errs = append(errs, fmt.Sprintf("invalid type %q (must be %s)", is.Type, strings.Join(Types, ", ")))
	}
	if !contains(Statuses, is.Status) {
		errs = append(errs, fmt.Sprintf("invalid status %q (must be %s)", is.Status, strings.Join(Statuses, ", ")))
	}
	if !contains(Priorities, is.Priority) {
		errs = append(errs, fmt.Sprintf("invalid priority %q (must be %s)", is.Priority, strings.Join(Priorities, ", ")))
	}
	if is.StoryPoints != nil && *is.StoryPoints < 0 {
		errs = append(errs, "story points must not be negative")
	}
	if is.Status == models.StatusBlocked && is.BlockedReason == "" {
		errs = append(errs, "blocked_reason is required when status is Blocked")
	}
	if is.Status != models.StatusBlocked && is.BlockedReason != "" {
		errs = append(errs, "blocked_reason is only allowed when status is Blocked")
	}
	if len(errs) > 0 {
		return apperr.Validation("%s", strings.Join(errs, "; "))
	}

	var b models.Board
	if err := db.First(&b, is.BoardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("board", is.BoardID)
		}
		return fmt.Errorf("issue: load board %d: %w", is.BoardID, err)
	}
	if is.SprintID != nil {
		var s models.Sprint
		if err := db.First(&s, *is.SprintID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return apperr.Validation("sprint %d does not exist", *is.SprintID)
			}
			return fmt.Errorf("issue: load sprint %d: %w", *is.SprintID, err)
		}
		if s.BoardID != is.BoardID {
			return apperr.Validation("sprint %d belongs to another board", s.ID)
		}
		if s.Status == models.SprintCompleted && (prevSprint == nil || *prevSprint != s.ID) {
			return apperr.Validation("sprint %d is completed", s.ID)
		}
	}
	if is.AssigneeID != nil {
		var n int64
		if err := db.Model(&models.ProjectMember{}).
			Where("project_id = ? AND user_id = ?", b.ProjectID, *is.AssigneeID).
			Count(&n).Error; err != nil {
			return fmt.Errorf("issue: check assignee %d: %w", *is.AssigneeID, err)
		}
		if n == 0 {
			return apperr.Validation("assignee %d is not a project member", *is.AssigneeID)
		}
	}
	return nil
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
