package assist

import (
	"fmt"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/planner"
	"github.com/zulandar/sprintyard/internal/project"
	"github.com/zulandar/sprintyard/internal/sprint"
	"gorm.io/gorm"
)

// maxPromptIssues bounds how many issues are shown to the model.
const maxPromptIssues = 100

type team struct {
	members []planner.TeamMember
	names   map[uint]string
}

func loadTeam(db *gorm.DB, projectID uint) (team, error) {
	ms, err := project.Members(db, projectID)
	if err != nil {
		return team{}, err
	}
	t := team{names: make(map[uint]string, len(ms))}
	for _, m := range ms {
		name := fmt.Sprintf("user %d", m.UserID)
		if m.User != nil {
			name = m.User.Name
		}
		t.members = append(t.members, planner.TeamMember{ID: m.UserID, Name: name, Role: m.Role})
		t.names[m.UserID] = name
	}
	return t, nil
}

// summarize renders issues for a prompt. Only the first maxPromptIssues are
// kept; callers pass them in priority order.
func (t team) summarize(issues []models.Issue) []planner.IssueSummary {
	if len(issues) > maxPromptIssues {
		issues = issues[:maxPromptIssues]
	}
	out := make([]planner.IssueSummary, 0, len(issues))
	for _, is := range issues {
		s := planner.IssueSummary{
			ID:          is.ID,
			Title:       is.Title,
			Type:        is.Type,
			Status:      is.Status,
			Priority:    is.Priority,
			StoryPoints: is.StoryPoints,
		}
		if is.AssigneeID != nil {
			s.Assignee = t.names[*is.AssigneeID]
		}
		out = append(out, s)
	}
	return out
}

// projectIssues returns every project issue matching where, in priority order.
func projectIssues(db *gorm.DB, projectID uint, where string, args ...interface{}) ([]models.Issue, error) {
	var issues []models.Issue
	q := db.Joins("JOIN boards ON boards.id = issues.board_id").
		Where("boards.project_id = ?", projectID)
	if where != "" {
		q = q.Where(where, args...)
	}
	if err := q.Select("issues.*").Order("issues.priority ASC, issues.id ASC").Find(&issues).Error; err != nil {
		return nil, fmt.Errorf("assist: load issues of project %d: %w", projectID, err)
	}
	return issues, nil
}

// projectSprint loads a sprint and checks it belongs to projectID.
func projectSprint(db *gorm.DB, projectID, sprintID uint) (*models.Sprint, error) {
	s, err := sprint.Get(db, sprintID)
	if err != nil {
		return nil, err
	}
	owner, err := sprint.ProjectOf(db, s)
	if err != nil {
		return nil, err
	}
	if owner != projectID {
		return nil, apperr.NotFound("sprint", sprintID)
	}
	return s, nil
}

func summarizeSprint(s *models.Sprint, p sprint.Progress) planner.SprintSummary {
	return planner.SprintSummary{
		ID:             s.ID,
		Name:           s.Name,
		Goal:           s.Goal,
		Status:         s.Status,
		StartDate:      s.StartDate,
		EndDate:        s.EndDate,
		Capacity:       s.CapacityStoryPoints,
		BaselinePoints: s.BaselinePoints,
		CurrentPoints:  p.Points,
		DonePoints:     p.DonePoints,
	}
}
