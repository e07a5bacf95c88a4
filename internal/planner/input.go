// Package planner renders AI feature prompts and validates model responses.
// Rendering is pure string construction; parsing never panics or returns a
// Go error for bad model output, only a *ResponseError describing it.
package planner

import (
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/sprintyard/internal/apperr"
)

// Feature names an AI feature. It is also the action recorded in the audit log.
type Feature string

const (
	FeatureSprintPlanning Feature = "sprint_planning"
	FeatureScopeCreep     Feature = "scope_creep"
	FeatureRiskAssessment Feature = "risk_assessment"
	FeatureRetrospective  Feature = "retrospective"
	FeatureSprintCreation Feature = "sprint_creation"
)

// Input is one feature's validated prompt data.
type Input interface {
	Feature() Feature
	Validate() error
}

// TeamMember is a project member as shown to the model.
type TeamMember struct {
	ID   uint   `json:"id"`
	Name string `json:"name"`
	Role string `json:"role"`
}

// IssueSummary is the slice of an issue the prompts need.
type IssueSummary struct {
	ID          uint     `json:"id"`
	Title       string   `json:"title"`
	Type        string   `json:"type"`
	Status      string   `json:"status"`
	Priority    string   `json:"priority"`
	StoryPoints *float64 `json:"story_points"`
	Assignee    string   `json:"assignee,omitempty"`
}

// SprintSummary is the slice of a sprint the prompts need.
type SprintSummary struct {
	ID             uint       `json:"id"`
	Name           string     `json:"name"`
	Goal           string     `json:"goal"`
	Status         string     `json:"status"`
	StartDate      *time.Time `json:"start_date"`
	EndDate        *time.Time `json:"end_date"`
	Capacity       float64    `json:"capacity_story_points"`
	BaselinePoints float64    `json:"baseline_points"`
	CurrentPoints  float64    `json:"current_points"`
	DonePoints     float64    `json:"done_points"`
}

// SprintPlanningInput asks for a recommended sprint composition from a backlog.
type SprintPlanningInput struct {
	ProjectName  string         `json:"project_name"`
	SprintGoal   string         `json:"sprint_goal"`
	Capacity     float64        `json:"capacity"`
	DurationDays int            `json:"duration_days"`
	Team         []TeamMember   `json:"team"`
	Backlog      []IssueSummary `json:"backlog"`
}

// Feature returns FeatureSprintPlanning.
func (SprintPlanningInput) Feature() Feature { return FeatureSprintPlanning }

// Validate checks the capacity, the 1-60 day duration and that there is at
// least one candidate issue. All problems are reported together.
func (in SprintPlanningInput) Validate() error {
	var errs []string
	if in.Capacity < 0 {
		errs = append(errs, "capacity must not be negative")
	}
	if in.DurationDays < 1 || in.DurationDays > 60 {
		errs = append(errs, fmt.Sprintf("duration %d out of range 1-60 days", in.DurationDays))
	}
	if len(in.Backlog) == 0 {
		errs = append(errs, "no candidate issues to plan")
	}
	return joinErrs(errs)
}

// ScopeCreepInput compares a sprint's original issue set with its current one.
type ScopeCreepInput struct {
	ProjectName string         `json:"project_name"`
	Sprint      SprintSummary  `json:"sprint"`
	Original    []IssueSummary `json:"original"`
	Added       []IssueSummary `json:"added"`
	Removed     []IssueSummary `json:"removed"`
	Current     []IssueSummary `json:"current"`
}

// Feature returns FeatureScopeCreep.
func (ScopeCreepInput) Feature() Feature { return FeatureScopeCreep }

// Validate requires a sprint with at least one original or current issue.
func (in ScopeCreepInput) Validate() error {
	var errs []string
	if in.Sprint.ID == 0 {
		errs = append(errs, "sprint is required")
	}
	if len(in.Original) == 0 && len(in.Current) == 0 {
		errs = append(errs, "sprint has no original or current issues")
	}
	return joinErrs(errs)
}

// RiskAssessmentInput summarizes a project's open work.
type RiskAssessmentInput struct {
	ProjectName   string          `json:"project_name"`
	ActiveSprints []SprintSummary `json:"active_sprints"`
	OpenIssues    []IssueSummary  `json:"open_issues"`
	Team          []TeamMember    `json:"team"`
	StatusCounts  map[string]int  `json:"status_counts"`
}

// Feature returns FeatureRiskAssessment.
func (RiskAssessmentInput) Feature() Feature { return FeatureRiskAssessment }

// Validate requires a project name. A project with no open work is valid.
func (in RiskAssessmentInput) Validate() error {
	if in.ProjectName == "" {
		return apperr.Validation("project name is required")
	}
	return nil
}

// RetrospectiveInput describes a finished (or finishing) sprint.
type RetrospectiveInput struct {
	ProjectName  string             `json:"project_name"`
	Sprint       SprintSummary      `json:"sprint"`
	Issues       []IssueSummary     `json:"issues"`
	Team         []TeamMember       `json:"team"`
	TeamFeedback string             `json:"team_feedback"`
	Metrics      map[string]float64 `json:"metrics"`
}

// Feature returns FeatureRetrospective.
func (RetrospectiveInput) Feature() Feature { return FeatureRetrospective }

// Validate requires a sprint.
func (in RetrospectiveInput) Validate() error {
	if in.Sprint.ID == 0 {
		return apperr.Validation("sprint is required")
	}
	return nil
}

// SprintCreationInput turns a free-form task list into a sprint plan.
type SprintCreationInput struct {
	ProjectName      string       `json:"project_name"`
	BoardID          uint         `json:"board_id"`
	StartDate        time.Time    `json:"start_date"`
	EndDate          time.Time    `json:"end_date"`
	TotalStoryPoints float64      `json:"total_story_points"`
	Tasks            []string     `json:"tasks"`
	Team             []TeamMember `json:"team"`
	CreatorID        uint         `json:"creator_id"`
}

// Feature returns FeatureSprintCreation.
func (SprintCreationInput) Feature() Feature { return FeatureSprintCreation }

// Validate checks the board, the date range, the point budget, every task
// line and the creator. All problems are reported together.
func (in SprintCreationInput) Validate() error {
	var errs []string
	if in.BoardID == 0 {
		errs = append(errs, "boardId is required")
	}
	if in.StartDate.IsZero() || in.EndDate.IsZero() {
		errs = append(errs, "startDate and endDate are required")
	} else if in.EndDate.Before(in.StartDate) {
		errs = append(errs, "endDate is before startDate")
	}
	if in.TotalStoryPoints <= 0 {
		errs = append(errs, "totalStoryPoints must be positive")
	}
	if len(in.Tasks) == 0 {
		errs = append(errs, "tasksList must not be empty")
	}
	for i, task := range in.Tasks {
		if strings.TrimSpace(task) == "" {
			errs = append(errs, fmt.Sprintf("tasksList[%d] is empty", i))
		}
	}
	if in.CreatorID == 0 {
		errs = append(errs, "creator is required")
	}
	return joinErrs(errs)
}

func joinErrs(errs []string) error {
	if len(errs) == 0 {
		return nil
	}
	return apperr.Validation("%s", strings.Join(errs, "; "))
}
