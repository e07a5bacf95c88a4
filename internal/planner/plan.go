package planner

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/zulandar/sprintyard/internal/apperr"
)

// MaxPlanStoryPoints bounds a single planned issue's points.
const MaxPlanStoryPoints = 21

// Plan is a validated sprint-creation plan: one sprint and its issues, not yet
// persisted. It serializes back to the same JSON the model produced so a
// client can review it and post it to the create-sprint endpoint.
type Plan struct {
	BoardID             uint        `json:"board_id"`
	Name                string      `json:"name"`
	Goal                string      `json:"goal"`
	StartDate           string      `json:"start_date"`
	EndDate             string      `json:"end_date"`
	CapacityStoryPoints float64     `json:"capacity_story_points"`
	Status              string      `json:"status"`
	CreatedBy           uint        `json:"created_by"`
	Issues              []PlanIssue `json:"issues"`
}

// PlanIssue is one issue draft inside a Plan.
type PlanIssue struct {
	BoardID        uint     `json:"board_id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Type           string   `json:"type"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	StoryPoints    *float64 `json:"story_points"`
	ReporterID     uint     `json:"reporter_id"`
	AssigneeID     *uint    `json:"assignee_id"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty"`
}

// Start parses StartDate. Only valid on a validated plan.
func (p *Plan) Start() time.Time {
	t, _ := time.Parse(DateLayout, p.StartDate)
	return t
}

// End parses EndDate. Only valid on a validated plan.
func (p *Plan) End() time.Time {
	t, _ := time.Parse(DateLayout, p.EndDate)
	return t
}

// TotalPoints sums story points across the plan's issues.
func (p *Plan) TotalPoints() float64 {
	var total float64
	for _, is := range p.Issues {
		if is.StoryPoints != nil {
			total += *is.StoryPoints
		}
	}
	return total
}

// PlanDraft mirrors Plan with every field optional so missing fields can be
// told apart from zero values.
type PlanDraft struct {
	BoardID             *uint        `json:"board_id"`
	Name                *string      `json:"name"`
	Goal                *string      `json:"goal"`
	StartDate           *string      `json:"start_date"`
	EndDate             *string      `json:"end_date"`
	CapacityStoryPoints *float64     `json:"capacity_story_points"`
	Status              *string      `json:"status"`
	CreatedBy           *uint        `json:"created_by"`
	Issues              []IssueDraft `json:"issues"`
}

// IssueDraft mirrors PlanIssue with every field optional.
type IssueDraft struct {
	BoardID        *uint    `json:"board_id"`
	Title          *string  `json:"title"`
	Description    *string  `json:"description"`
	Type           *string  `json:"type"`
	Status         *string  `json:"status"`
	Priority       *string  `json:"priority"`
	StoryPoints    *float64 `json:"story_points"`
	ReporterID     *uint    `json:"reporter_id"`
	AssigneeID     *uint    `json:"assignee_id"`
	EstimatedHours *float64 `json:"estimated_hours"`
}

// Enumerations accepted in a sprint-creation plan. Priority is P1-P3 here,
// narrower than the P1-P4 issues otherwise allow.
var (
	PlanIssueTypes    = []string{"Story", "Task", "Bug", "Epic"}
	PlanPriorities    = []string{"P1", "P2", "P3"}
	PlanSprintStatus  = []string{"Planning", "Active"}
	PlanIssueStatuses = []string{"To Do", "In Progress", "Done"}
)

// ValidatePlanDraft checks that a draft is a complete, well-formed plan.
// Returns a list of validation errors (empty if valid).
func ValidatePlanDraft(d *PlanDraft) []string {
	if d == nil {
		return []string{"plan is nil"}
	}

	var errs []string
	if d.BoardID == nil || *d.BoardID == 0 {
		errs = append(errs, "board_id is required")
	}
	if blank(d.Name) {
		errs = append(errs, "name is required")
	}
	if blank(d.Goal) {
		errs = append(errs, "goal is required")
	}

	var start, end time.Time
	var err error
	if blank(d.StartDate) {
		errs = append(errs, "start_date is required")
	} else if start, err = time.Parse(DateLayout, *d.StartDate); err != nil {
		errs = append(errs, fmt.Sprintf("start_date %q is not YYYY-MM-DD", *d.StartDate))
	}
	if blank(d.EndDate) {
		errs = append(errs, "end_date is required")
	} else if end, err = time.Parse(DateLayout, *d.EndDate); err != nil {
		errs = append(errs, fmt.Sprintf("end_date %q is not YYYY-MM-DD", *d.EndDate))
	}
	if !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, "end_date is before start_date")
	}

	if d.CapacityStoryPoints == nil {
		errs = append(errs, "capacity_story_points is required")
	} else if *d.CapacityStoryPoints < 0 {
		errs = append(errs, "capacity_story_points must not be negative")
	}
	if blank(d.Status) {
		errs = append(errs, "status is required")
	} else if !contains(PlanSprintStatus, *d.Status) {
		errs = append(errs, fmt.Sprintf("invalid status %q (must be %s)", *d.Status, strings.Join(PlanSprintStatus, " or ")))
	}
	if d.CreatedBy == nil || *d.CreatedBy == 0 {
		errs = append(errs, "created_by is required")
	}
	if len(d.Issues) == 0 {
		errs = append(errs, "plan has no issues")
	}

	for i, is := range d.Issues {
		label := fmt.Sprintf("issues[%d]", i)
		if !blank(is.Title) {
			label = fmt.Sprintf("issues[%d] (%s)", i, *is.Title)
		}
		if is.BoardID == nil || *is.BoardID == 0 {
			errs = append(errs, label+": board_id is required")
		} else if d.BoardID != nil && *is.BoardID != *d.BoardID {
			errs = append(errs, fmt.Sprintf("%s: board_id %d does not match plan board %d", label, *is.BoardID, *d.BoardID))
		}
		if blank(is.Title) {
			errs = append(errs, label+": title is required")
		}
		if blank(is.Description) {
			errs = append(errs, label+": description is required")
		}
		if blank(is.Type) {
			errs = append(errs, label+": type is required")
		} else if !contains(PlanIssueTypes, *is.Type) {
			errs = append(errs, fmt.Sprintf("%s: invalid type %q (must be %s)", label, *is.Type, strings.Join(PlanIssueTypes, ", ")))
		}
		if blank(is.Status) {
			errs = append(errs, label+": status is required")
		} else if !contains(PlanIssueStatuses, *is.Status) {
			errs = append(errs, fmt.Sprintf("%s: invalid status %q (must be %s)", label, *is.Status, strings.Join(PlanIssueStatuses, ", ")))
		}
		if blank(is.Priority) {
			errs = append(errs, label+": priority is required")
		} else if !contains(PlanPriorities, *is.Priority) {
			errs = append(errs, fmt.Sprintf("%s: invalid priority %q (must be %s)", label, *is.Priority, strings.Join(PlanPriorities, ", ")))
		}
		if is.StoryPoints != nil && (*is.StoryPoints < 0 || *is.StoryPoints > MaxPlanStoryPoints) {
			errs = append(errs, fmt.Sprintf("%s: story_points %v out of range 0-%d", label, *is.StoryPoints, MaxPlanStoryPoints))
		}
		if is.ReporterID == nil || *is.ReporterID == 0 {
			errs = append(errs, label+": reporter_id is required")
		}
		if is.EstimatedHours != nil && *is.EstimatedHours < 0 {
			errs = append(errs, label+": estimated_hours must not be negative")
		}
	}
	return errs
}

// Plan converts a draft that passed ValidatePlanDraft.
func (d *PlanDraft) Plan() *Plan {
	p := &Plan{
		BoardID:             *d.BoardID,
		Name:                strings.TrimSpace(*d.Name),
		Goal:                strings.TrimSpace(*d.Goal),
		StartDate:           *d.StartDate,
		EndDate:             *d.EndDate,
		CapacityStoryPoints: *d.CapacityStoryPoints,
		Status:              *d.Status,
		CreatedBy:           *d.CreatedBy,
		Issues:              make([]PlanIssue, 0, len(d.Issues)),
	}
	for _, is := range d.Issues {
		p.Issues = append(p.Issues, PlanIssue{
			BoardID:        *is.BoardID,
			Title:          strings.TrimSpace(*is.Title),
			Description:    *is.Description,
			Type:           *is.Type,
			Status:         *is.Status,
			Priority:       *is.Priority,
			StoryPoints:    is.StoryPoints,
			ReporterID:     *is.ReporterID,
			AssigneeID:     is.AssigneeID,
			EstimatedHours: is.EstimatedHours,
		})
	}
	return p
}

// ParseSprintCreationResponse parses and validates a sprint-creation response.
// Text that does not end in "}" is reported as truncated before any JSON
// parsing is attempted.
func ParseSprintCreationResponse(raw string) (*Plan, *ResponseError) {
	var d PlanDraft
	if rerr := decode(raw, &d, true); rerr != nil {
		return nil, rerr
	}
	if errs := ValidatePlanDraft(&d); len(errs) > 0 {
		return nil, schemaError(raw, errs)
	}
	return d.Plan(), nil
}

// DecodePlan decodes and validates a plan posted by a client. Unlike the
// response parser it returns a validation error, since the caller supplied it.
func DecodePlan(data []byte) (*Plan, error) {
	var d PlanDraft
	if err := json.Unmarshal(data, &d); err != nil {
		return nil, apperr.Validation("invalid plan JSON: %v", err)
	}
	if errs := ValidatePlanDraft(&d); len(errs) > 0 {
		return nil, apperr.Validation("invalid plan: %s", strings.Join(errs, "; "))
	}
	return d.Plan(), nil
}

func blank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}
