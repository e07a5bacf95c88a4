// Package sprint provides sprint lifecycle operations and materializes
// AI-authored sprint plans.
package sprint

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/scope"
	"gorm.io/gorm"
)

// CreateOpts holds parameters for creating a sprint.
type CreateOpts struct {
	BoardID      uint
	Name         string
	Goal         string
	StartDate    *time.Time
	EndDate      *time.Time
	Capacity     float64
	ThresholdPct float64
	CreatedBy    uint
}

// UpdateOpts holds the editable sprint fields. Nil fields are left unchanged.
type UpdateOpts struct {
	Name         *string
	Goal         *string
	StartDate    *time.Time
	EndDate      *time.Time
	Capacity     *float64
	ThresholdPct *float64
}

// ValidTransitions maps each status to its valid next statuses.
var ValidTransitions = map[string][]string{
	models.SprintPlanning: {models.SprintActive},
	models.SprintActive:   {models.SprintCompleted},
}

// Progress is a sprint's point and issue tally.
type Progress struct {
	IssueCount int     `json:"issue_count"`
	DoneCount  int     `json:"done_count"`
	Points     float64 `json:"points"`
	DonePoints float64 `json:"done_points"`
}

// Create creates a sprint in Planning status.
func Create(db *gorm.DB, opts CreateOpts) (*models.Sprint, error) {
	if errs := validateFields(opts.Name, opts.StartDate, opts.EndDate, opts.Capacity, opts.ThresholdPct); len(errs) > 0 {
		return nil, apperr.Validation("%s", strings.Join(errs, "; "))
	}
	if opts.BoardID == 0 {
		return nil, apperr.Validation("board is required")
	}
	if opts.CreatedBy == 0 {
		return nil, apperr.Validation("creator is required")
	}

	s := models.Sprint{
		BoardID:             opts.BoardID,
		Name:                strings.TrimSpace(opts.Name),
		Goal:                opts.Goal,
		StartDate:           opts.StartDate,
		EndDate:             opts.EndDate,
		Status:              models.SprintPlanning,
		CapacityStoryPoints: opts.Capacity,
		CreatedBy:           opts.CreatedBy,
		ScopeThresholdPct:   opts.ThresholdPct,
	}
	if err := db.Create(&s).Error; err != nil {
		return nil, fmt.Errorf("sprint: create: %w", err)
	}
	return &s, nil
}

// Get retrieves a sprint by ID.
func Get(db *gorm.DB, id uint) (*models.Sprint, error) {
	var s models.Sprint
	if err := db.First(&s, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("sprint", id)
		}
		return nil, fmt.Errorf("sprint: get %d: %w", id, err)
	}
	return &s, nil
}

// List returns a board's sprints, newest first.
func List(db *gorm.DB, boardID uint) ([]models.Sprint, error) {
	var sprints []models.Sprint
	if err := db.Where("board_id = ?", boardID).Order("id DESC").Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("sprint: list board %d: %w", boardID, err)
	}
	return sprints, nil
}

// ListActive returns every Active sprint across all boards.
func ListActive(db *gorm.DB) ([]models.Sprint, error) {
	var sprints []models.Sprint
	if err := db.Where("status = ?", models.SprintActive).Order("id ASC").Find(&sprints).Error; err != nil {
		return nil, fmt.Errorf("sprint: list active: %w", err)
	}
	return sprints, nil
}

// Update modifies the editable fields of a sprint that is not Completed.
func Update(db *gorm.DB, id uint, opts UpdateOpts) (*models.Sprint, error) {
	s, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if s.Status == models.SprintCompleted {
		return nil, apperr.Conflict("sprint %d is completed", id)
	}

	updates := map[string]interface{}{}
	name, start, end, capacity, threshold := s.Name, s.StartDate, s.EndDate, s.CapacityStoryPoints, s.ScopeThresholdPct
	if opts.Name != nil {
		name = strings.TrimSpace(*opts.Name)
		updates["name"] = name
	}
	if opts.Goal != nil {
		updates["goal"] = *opts.Goal
	}
	if opts.StartDate != nil {
		start = opts.StartDate
		updates["start_date"] = *opts.StartDate
	}
	if opts.EndDate != nil {
		end = opts.EndDate
		updates["end_date"] = *opts.EndDate
	}
	if opts.Capacity != nil {
		capacity = *opts.Capacity
		updates["capacity_story_points"] = capacity
	}
	if opts.ThresholdPct != nil {
		threshold = *opts.ThresholdPct
		updates["scope_threshold_pct"] = threshold
	}
	if errs := validateFields(name, start, end, capacity, threshold); len(errs) > 0 {
		return nil, apperr.Validation("%s", strings.Join(errs, "; "))
	}
	if len(updates) == 0 {
		return s, nil
	}

	if err := db.Model(&models.Sprint{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("sprint: update %d: %w", id, err)
	}
	return Get(db, id)
}

// Start moves a Planning sprint to Active. It fails with a conflict if another
// sprint on the board is Active. The start date defaults to now, and a zero
// baseline is snapshotted from the sprint's current points.
func Start(db *gorm.DB, id uint, now time.Time) (*models.Sprint, error) {
	err := db.Transaction(func(tx *gorm.DB) error {
		s, err := Get(tx, id)
		if err != nil {
			return err
		}
		if err := checkTransition(s, models.SprintActive); err != nil {
			return err
		}

		var active int64
		if err := tx.Model(&models.Sprint{}).
			Where("board_id = ? AND status = ? AND id <> ?", s.BoardID, models.SprintActive, id).
			Count(&active).Error; err != nil {
			return fmt.Errorf("sprint: check active on board %d: %w", s.BoardID, err)
		}
		if active > 0 {
			return apperr.Conflict("board %d already has an active sprint", s.BoardID)
		}

		updates := map[string]interface{}{"status": models.SprintActive}
		if s.StartDate == nil {
			updates["start_date"] = now
		}
		if s.BaselinePoints == 0 {
			current, err := scope.CurrentPoints(tx, id)
			if err != nil {
				return err
			}
			updates["baseline_points"] = current
		}
		if err := tx.Model(&models.Sprint{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return fmt.Errorf("sprint: start %d: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return Get(db, id)
}

// Complete moves an Active sprint to Completed, setting the end date if absent.
func Complete(db *gorm.DB, id uint, now time.Time) (*models.Sprint, error) {
	s, err := Get(db, id)
	if err != nil {
		return nil, err
	}
	if err := checkTransition(s, models.SprintCompleted); err != nil {
		return nil, err
	}
	updates := map[string]interface{}{"status": models.SprintCompleted}
	if s.EndDate == nil {
		updates["end_date"] = now
	}
	if err := db.Model(&models.Sprint{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, fmt.Errorf("sprint: complete %d: %w", id, err)
	}
	return Get(db, id)
}

// Delete removes a sprint. It is rejected while any issue references it.
func Delete(db *gorm.DB, id uint) error {
	if _, err := Get(db, id); err != nil {
		return err
	}
	var n int64
	if err := db.Model(&models.Issue{}).Where("sprint_id = ?", id).Count(&n).Error; err != nil {
		return fmt.Errorf("sprint: count issues of %d: %w", id, err)
	}
	if n > 0 {
		return apperr.Conflict("sprint %d still has %d issues", id, n)
	}
	if err := db.Delete(&models.Sprint{}, id).Error; err != nil {
		return fmt.Errorf("sprint: delete %d: %w", id, err)
	}
	return nil
}

// SetBaseline re-snapshots the sprint's baseline from its current points.
// Completed sprints keep their baseline.
func SetBaseline(db *gorm.DB, id uint) (float64, error) {
	s, err := Get(db, id)
	if err != nil {
		return 0, err
	}
	if s.Status == models.SprintCompleted {
		return 0, apperr.Conflict("sprint %d is completed", id)
	}
	return scope.SnapshotBaseline(db, id)
}

// Issues returns the issues in a sprint ordered by priority then id.
func Issues(db *gorm.DB, id uint) ([]models.Issue, error) {
	var issues []models.Issue
	if err := db.Where("sprint_id = ?", id).Order("priority ASC, id ASC").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("sprint: issues of %d: %w", id, err)
	}
	return issues, nil
}

// ProgressOf tallies a sprint's issues.
func ProgressOf(db *gorm.DB, id uint) (Progress, error) {
	issues, err := Issues(db, id)
	if err != nil {
		return Progress{}, err
	}
	var p Progress
	for i := range issues {
		p.IssueCount++
		p.Points += issues[i].Points()
		if issues[i].Status == models.StatusDone {
			p.DoneCount++
			p.DonePoints += issues[i].Points()
		}
	}
	return p, nil
}

// ProjectOf returns the project that owns the sprint's board.
func ProjectOf(db *gorm.DB, s *models.Sprint) (uint, error) {
	var b models.Board
	if err := db.Select("id", "project_id").First(&b, s.BoardID).Error; err != nil {
		return 0, fmt.Errorf("sprint: board of %d: %w", s.ID, err)
	}
	return b.ProjectID, nil
}

func checkTransition(s *models.Sprint, to string) error {
	for _, next := range ValidTransitions[s.Status] {
		if next == to {
			return nil
		}
	}
	return apperr.Conflict("invalid sprint transition from %q to %q; valid transitions: %v", s.Status, to, ValidTransitions[s.Status])
}

func validateFields(name string, start, end *time.Time, capacity, threshold float64) []string {
	var errs []string
	if strings.TrimSpace(name) == "" {
		errs = append(errs, "name is required")
	}
	if start != nil && end != nil && end.Before(*start) {
		errs = append(errs, "end date is before start date")
	}
	if capacity < 0 {
		errs = append(errs, "capacity must not be negative")
	}
	if threshold <= 0 || threshold > 10 {
		errs = append(errs, fmt.Sprintf("scope threshold %.2f out of range (0, 10]", threshold))
	}
	return errs
}
