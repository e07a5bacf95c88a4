package sprint

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/zulandar/sprintyard/internal/activity"
	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/db"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/planner"
	"github.com/zulandar/sprintyard/internal/project"
	"github.com/zulandar/sprintyard/internal/scope"
	"gorm.io/gorm"
)

// Created is the result of materializing a plan.
type Created struct {
	Sprint  CreatedSprint  `json:"sprint"`
	Issues  []CreatedIssue `json:"issues"`
	Summary CreatedSummary `json:"summary"`
}

// CreatedSprint summarizes the persisted sprint.
type CreatedSprint struct {
	ID             uint       `json:"id"`
	Name           string     `json:"name"`
	Goal           string     `json:"goal"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Status         string     `json:"status"`
	Capacity       float64    `json:"capacity_story_points"`
	BaselinePoints float64    `json:"baseline_points"`
}

// CreatedIssue summarizes one persisted plan issue.
type CreatedIssue struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Priority    string   `json:"priority"`
	StoryPoints *float64 `json:"story_points"`
}

// CreatedSummary totals a materialized plan.
type CreatedSummary struct {
	TotalIssues      int     `json:"total_issues"`
	TotalStoryPoints float64 `json:"total_story_points"`
	Capacity         float64 `json:"capacity_story_points"`
	Utilization      float64 `json:"capacity_utilization"`
}

// CreateFromPlan persists a validated plan as one sprint plus its issues in a
// single transaction. Issues are inserted in plan order, each attached to the
// new sprint and to the plan's board. The sprint's baseline is the plan's
// total points. creatorID replaces the plan's created_by.
//
// Any failed insert rolls back the whole plan; store failures are returned as
// persistence errors.
func CreateFromPlan(gdb *gorm.DB, projectID, creatorID uint, threshold float64, plan *planner.Plan) (*Created, error) {
	if plan == nil {
		return nil, apperr.Validation("plan is required")
	}
	if len(plan.Issues) == 0 {
		return nil, apperr.Validation("plan has no issues")
	}
	if _, err := project.GetBoard(gdb, projectID, plan.BoardID); err != nil {
		return nil, err
	}

	start, end := plan.Start(), plan.End()
	total := plan.TotalPoints()
	s := models.Sprint{
		BoardID:             plan.BoardID,
		Name:                plan.Name,
		Goal:                plan.Goal,
		StartDate:           &start,
		EndDate:             &end,
		Status:              plan.Status,
		CapacityStoryPoints: plan.CapacityStoryPoints,
		CreatedBy:           creatorID,
		BaselinePoints:      total,
		ScopeThresholdPct:   threshold,
	}
	issues := make([]models.Issue, len(plan.Issues))

	err := gdb.Transaction(func(tx *gorm.DB) error {
		if s.Status == models.SprintActive {
			var active int64
			if err := tx.Model(&models.Sprint{}).
				Where("board_id = ? AND status = ?", s.BoardID, models.SprintActive).
				Count(&active).Error; err != nil {
				return fmt.Errorf("sprint: check active on board %d: %w", s.BoardID, err)
			}
			if active > 0 {
				return apperr.Conflict("board %d already has an active sprint", s.BoardID)
			}
		}
		if err := tx.Create(&s).Error; err != nil {
			return fmt.Errorf("insert sprint: %w", err)
		}
		for i, pi := range plan.Issues {
			issues[i] = models.Issue{
				BoardID:     plan.BoardID,
				SprintID:    &s.ID,
				Title:       pi.Title,
				Description: pi.Description,
				Type:        pi.Type,
				Status:      pi.Status,
				Priority:    pi.Priority,
				StoryPoints: pi.StoryPoints,
				AssigneeID:  pi.AssigneeID,
				ReporterID:  pi.ReporterID,
			}
			if err := tx.Create(&issues[i]).Error; err != nil {
				return fmt.Errorf("insert issue %d (%s): %w", i, pi.Title, err)
			}
		}
		return nil
	})
	if err != nil {
		if apperr.KindOf(err) != apperr.KindInternal {
			return nil, err
		}
		if db.IsConstraintViolation(err) {
			return nil, apperr.Persistence("plan references a missing record", err)
		}
		return nil, apperr.Persistence("create sprint from plan", err)
	}

	out := &Created{
		Sprint: CreatedSprint{
			ID:             s.ID,
			Name:           s.Name,
			Goal:           s.Goal,
			StartDate:      s.StartDate,
			EndDate:        s.EndDate,
			Status:         s.Status,
			Capacity:       s.CapacityStoryPoints,
			BaselinePoints: s.BaselinePoints,
		},
		Issues: make([]CreatedIssue, len(issues)),
	}
	for i, is := range issues {
		out.Issues[i] = CreatedIssue{
			ID:          is.ID,
			Title:       is.Title,
			Type:        is.Type,
			Priority:    is.Priority,
			StoryPoints: is.StoryPoints,
		}
	}
	out.Summary = CreatedSummary{
		TotalIssues:      len(issues),
		TotalStoryPoints: total,
		Capacity:         plan.CapacityStoryPoints,
	}
	if plan.CapacityStoryPoints > 0 {
		out.Summary.Utilization = total / plan.CapacityStoryPoints * 100
	}
	return out, nil
}

// Materializer wraps CreateFromPlan with its post-commit side effects: an
// activity entry and a scope recompute. Neither can fail the call.
type Materializer struct {
	db         *gorm.DB
	log        *slog.Logger
	threshold  float64
	recorder   *activity.Recorder
	recomputer *scope.Recomputer
}

// NewMaterializer returns a Materializer. recorder and recomputer may be nil.
func NewMaterializer(gdb *gorm.DB, log *slog.Logger, threshold float64, recorder *activity.Recorder, recomputer *scope.Recomputer) *Materializer {
	return &Materializer{db: gdb, log: log, threshold: threshold, recorder: recorder, recomputer: recomputer}
}

// Create materializes plan for the given project on behalf of userID.
func (m *Materializer) Create(ctx context.Context, projectID, userID uint, plan *planner.Plan) (*Created, error) {
	out, err := CreateFromPlan(m.db, projectID, userID, m.threshold, plan)
	if err != nil {
		return nil, err
	}
	m.log.Info("sprint created from plan",
		"sprint_id", out.Sprint.ID,
		"board_id", plan.BoardID,
		"issues", out.Summary.TotalIssues,
		"points", out.Summary.TotalStoryPoints,
	)
	if m.recorder != nil {
		m.recorder.RecordAsync(activity.Entry{
			ProjectID:  projectID,
			UserID:     userID,
			Action:     "sprint_created_from_plan",
			EntityType: "sprint",
			EntityID:   out.Sprint.ID,
			Details: map[string]interface{}{
				"issues": out.Summary.TotalIssues,
				"points": out.Summary.TotalStoryPoints,
			},
		})
	}
	if m.recomputer != nil {
		m.recomputer.Recompute(ctx, out.Sprint.ID)
	}
	return out, nil
}
