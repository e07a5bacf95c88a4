package assist

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/issue"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/planner"
	"github.com/zulandar/sprintyard/internal/project"
	"github.com/zulandar/sprintyard/internal/scope"
	"github.com/zulandar/sprintyard/internal/sprint"
	"gorm.io/gorm"
)

// Sprint planning defaults applied when the request leaves them out.
const (
	DefaultCapacity     = 40
	DefaultDurationDays = 14
)

// SprintPlanRequest asks for a recommended sprint composition.
type SprintPlanRequest struct {
	SprintGoal string   `json:"sprintGoal"`
	Capacity   *float64 `json:"capacity"`
	Duration   *int     `json:"duration"`
	IssueIDs   []uint   `json:"issueIds"`
}

// SprintPlanResult is the sprint planning response body.
type SprintPlanResult struct {
	SprintPlan interface{}                 `json:"sprint_plan"`
	InputData  planner.SprintPlanningInput `json:"input_data"`
	Metadata   Metadata                    `json:"metadata"`

	Plan       *planner.SprintPlan    `json:"-"`
	ParseError *planner.ResponseError `json:"-"`
}

// GenerateSprintPlan recommends which backlog issues to pull into a sprint.
// Without IssueIDs the candidates are the project's open backlog issues.
func (a *Assistant) GenerateSprintPlan(ctx context.Context, projectID, userID uint, req SprintPlanRequest) (*SprintPlanResult, error) {
	db := a.db.WithContext(ctx)
	p, err := project.Get(db, projectID)
	if err != nil {
		return nil, err
	}
	tm, err := loadTeam(db, projectID)
	if err != nil {
		return nil, err
	}

	var candidates []models.Issue
	if len(req.IssueIDs) > 0 {
		candidates, err = projectIssues(db, projectID, "issues.id IN ?", req.IssueIDs)
		if err != nil {
			return nil, err
		}
		if missing := missingIDs(req.IssueIDs, candidates); len(missing) > 0 {
			return nil, apperr.Validation("issues %v are not in project %d", missing, projectID)
		}
	} else {
		candidates, err = projectIssues(db, projectID, "issues.sprint_id IS NULL AND issues.status <> ?", models.StatusDone)
		if err != nil {
			return nil, err
		}
	}

	in := planner.SprintPlanningInput{
		ProjectName:  p.Name,
		SprintGoal:   req.SprintGoal,
		Capacity:     DefaultCapacity,
		DurationDays: DefaultDurationDays,
		Team:         tm.members,
		Backlog:      tm.summarize(candidates),
	}
	if req.Capacity != nil {
		in.Capacity = *req.Capacity
	}
	if req.Duration != nil {
		in.DurationDays = *req.Duration
	}

	c := call{
		projectID: projectID,
		userID:    userID,
		input:     in,
		summary:   map[string]interface{}{"candidates": len(candidates), "capacity": in.Capacity},
	}
	raw, md, err := a.complete(ctx, c)
	if err != nil {
		return nil, err
	}
	plan, perr := planner.ParseSprintPlanResponse(raw)
	a.finish(c, &md, perr)
	return &SprintPlanResult{
		SprintPlan: result(plan, perr),
		InputData:  in,
		Metadata:   md,
		Plan:       plan,
		ParseError: perr,
	}, nil
}

// ScopeCreepRequest compares a sprint against the issue ids it started with.
type ScopeCreepRequest struct {
	SprintID      uint   `json:"sprintId"`
	OriginalScope []uint `json:"originalScope"`
}

// SprintInfo is the scope position reported with a scope-creep analysis.
type SprintInfo struct {
	ID             uint    `json:"id"`
	Name           string  `json:"name"`
	Status         string  `json:"status"`
	BaselinePoints float64 `json:"baseline_points"`
	CurrentPoints  float64 `json:"current_points"`
	CreepRatio     float64 `json:"creep_ratio"`
	Threshold      float64 `json:"scope_threshold_pct"`
	ScopeAlerted   bool    `json:"scope_alerted"`
	OriginalCount  int     `json:"original_count"`
	AddedCount     int     `json:"added_count"`
	RemovedCount   int     `json:"removed_count"`
}

// ScopeCreepResult is the scope-creep response body.
type ScopeCreepResult struct {
	ScopeAnalysis interface{} `json:"scope_analysis"`
	SprintInfo    SprintInfo  `json:"sprint_info"`
	Metadata      Metadata    `json:"metadata"`

	Analysis   *planner.ScopeAnalysis `json:"-"`
	ParseError *planner.ResponseError `json:"-"`
}

// DetectScopeCreep asks the model to judge how a sprint drifted from its
// original issue set.
func (a *Assistant) DetectScopeCreep(ctx context.Context, projectID, userID uint, req ScopeCreepRequest) (*ScopeCreepResult, error) {
	if req.SprintID == 0 {
		return nil, apperr.Validation("sprintId is required")
	}
	db := a.db.WithContext(ctx)
	p, err := project.Get(db, projectID)
	if err != nil {
		return nil, err
	}
	s, err := projectSprint(db, projectID, req.SprintID)
	if err != nil {
		return nil, err
	}
	tm, err := loadTeam(db, projectID)
	if err != nil {
		return nil, err
	}
	current, err := sprint.Issues(db, s.ID)
	if err != nil {
		return nil, err
	}
	var original []models.Issue
	if len(req.OriginalScope) > 0 {
		original, err = projectIssues(db, projectID, "issues.id IN ?", req.OriginalScope)
		if err != nil {
			return nil, err
		}
	}
	progress, err := sprint.ProgressOf(db, s.ID)
	if err != nil {
		return nil, err
	}
	status, err := scope.Status(db, s.ID)
	if err != nil {
		return nil, err
	}

	added := difference(current, original)
	removed := difference(original, current)
	in := planner.ScopeCreepInput{
		ProjectName: p.Name,
		Sprint:      summarizeSprint(s, progress),
		Original:    tm.summarize(original),
		Added:       tm.summarize(added),
		Removed:     tm.summarize(removed),
		Current:     tm.summarize(current),
	}
	info := SprintInfo{
		ID:             s.ID,
		Name:           s.Name,
		Status:         s.Status,
		BaselinePoints: s.BaselinePoints,
		CurrentPoints:  status.Current,
		CreepRatio:     status.Ratio,
		Threshold:      s.ScopeThresholdPct,
		ScopeAlerted:   s.ScopeAlerted,
		OriginalCount:  len(original),
		AddedCount:     len(added),
		RemovedCount:   len(removed),
	}

	c := call{
		projectID: projectID,
		userID:    userID,
		input:     in,
		summary:   map[string]interface{}{"sprint_id": s.ID, "added": len(added), "removed": len(removed)},
	}
	raw, md, err := a.complete(ctx, c)
	if err != nil {
		return nil, err
	}
	analysis, perr := planner.ParseScopeCreepResponse(raw)
	a.finish(c, &md, perr)
	return &ScopeCreepResult{
		ScopeAnalysis: result(analysis, perr),
		SprintInfo:    info,
		Metadata:      md,
		Analysis:      analysis,
		ParseError:    perr,
	}, nil
}

// RiskRequest configures a risk assessment.
type RiskRequest struct {
	IncludeHeatmap bool `json:"includeHeatmap"`
}

// ProjectSummary is the project snapshot reported with a risk assessment.
type ProjectSummary struct {
	ProjectName   string         `json:"project_name"`
	ActiveSprints int            `json:"active_sprints"`
	OpenIssues    int            `json:"open_issues"`
	OpenPoints    float64        `json:"open_points"`
	TeamSize      int            `json:"team_size"`
	StatusCounts  map[string]int `json:"status_counts"`
}

// HeatCell counts open issues for one priority and status pair.
type HeatCell struct {
	Priority string  `json:"priority"`
	Status   string  `json:"status"`
	Count    int     `json:"count"`
	Points   float64 `json:"points"`
}

// RiskResult is the risk assessment response body.
type RiskResult struct {
	RiskAssessment interface{}    `json:"risk_assessment"`
	ProjectSummary ProjectSummary `json:"project_summary"`
	HeatmapData    []HeatCell     `json:"heatmap_data,omitempty"`
	Metadata       Metadata       `json:"metadata"`

	Assessment *planner.RiskAssessment `json:"-"`
	ParseError *planner.ResponseError  `json:"-"`
}

// AssessRisks asks the model for delivery risks across the project's active
// sprints and open issues.
func (a *Assistant) AssessRisks(ctx context.Context, projectID, userID uint, req RiskRequest) (*RiskResult, error) {
	db := a.db.WithContext(ctx)
	p, err := project.Get(db, projectID)
	if err != nil {
		return nil, err
	}
	tm, err := loadTeam(db, projectID)
	if err != nil {
		return nil, err
	}
	open, err := projectIssues(db, projectID, "issues.status <> ?", models.StatusDone)
	if err != nil {
		return nil, err
	}
	counts, err := statusCounts(db, projectID)
	if err != nil {
		return nil, err
	}

	var active []models.Sprint
	if err := db.Joins("JOIN boards ON boards.id = sprints.board_id").
		Where("boards.project_id = ? AND sprints.status = ?", projectID, models.SprintActive).
		Select("sprints.*").Order("sprints.id ASC").Find(&active).Error; err != nil {
		return nil, fmt.Errorf("assist: active sprints of project %d: %w", projectID, err)
	}
	sprints := make([]planner.SprintSummary, 0, len(active))
	for i := range active {
		progress, err := sprint.ProgressOf(db, active[i].ID)
		if err != nil {
			return nil, err
		}
		sprints = append(sprints, summarizeSprint(&active[i], progress))
	}

	in := planner.RiskAssessmentInput{
		ProjectName:   p.Name,
		ActiveSprints: sprints,
		OpenIssues:    tm.summarize(open),
		Team:          tm.members,
		StatusCounts:  counts,
	}
	summary := ProjectSummary{
		ProjectName:   p.Name,
		ActiveSprints: len(active),
		OpenIssues:    len(open),
		TeamSize:      len(tm.members),
		StatusCounts:  counts,
	}
	for i := range open {
		summary.OpenPoints += open[i].Points()
	}

	c := call{
		projectID: projectID,
		userID:    userID,
		input:     in,
		summary:   map[string]interface{}{"active_sprints": len(active), "open_issues": len(open)},
	}
	raw, md, err := a.complete(ctx, c)
	if err != nil {
		return nil, err
	}
	assessment, perr := planner.ParseRiskAssessmentResponse(raw)
	a.finish(c, &md, perr)
	out := &RiskResult{
		RiskAssessment: result(assessment, perr),
		ProjectSummary: summary,
		Metadata:       md,
		Assessment:     assessment,
		ParseError:     perr,
	}
	if req.IncludeHeatmap {
		out.HeatmapData = Heatmap(open)
	}
	return out, nil
}

// Heatmap buckets issues by priority and status, ordered P1 first and then
// by workflow position.
func Heatmap(issues []models.Issue) []HeatCell {
	type key struct{ priority, status string }
	cells := map[key]*HeatCell{}
	for i := range issues {
		k := key{issues[i].Priority, issues[i].Status}
		c, ok := cells[k]
		if !ok {
			c = &HeatCell{Priority: k.priority, Status: k.status}
			cells[k] = c
		}
		c.Count++
		c.Points += issues[i].Points()
	}

	order := map[string]int{}
	for i, s := range issue.Statuses {
		order[s] = i
	}
	out := make([]HeatCell, 0, len(cells))
	for _, c := range cells {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority < out[j].Priority
		}
		return order[out[i].Status] < order[out[j].Status]
	})
	return out
}

// RetrospectiveRequest asks for insights on one sprint.
type RetrospectiveRequest struct {
	SprintID     uint               `json:"sprintId"`
	TeamFeedback string             `json:"teamFeedback"`
	Metrics      map[string]float64 `json:"metrics"`
}

// RetroSprintSummary is the sprint snapshot reported with retrospective insights.
type RetroSprintSummary struct {
	ID             uint    `json:"id"`
	Name           string  `json:"name"`
	Goal           string  `json:"goal"`
	Status         string  `json:"status"`
	IssueCount     int     `json:"issue_count"`
	DoneCount      int     `json:"done_count"`
	Points         float64 `json:"points"`
	DonePoints     float64 `json:"done_points"`
	CompletionRate float64 `json:"completion_rate"`
	ScopeAlerted   bool    `json:"scope_alerted"`
}

// RetrospectiveResult is the retrospective response body.
type RetrospectiveResult struct {
	RetrospectiveInsights interface{}        `json:"retrospective_insights"`
	SprintSummary         RetroSprintSummary `json:"sprint_summary"`
	Metadata              Metadata           `json:"metadata"`

	Insights   *planner.RetrospectiveInsights `json:"-"`
	ParseError *planner.ResponseError         `json:"-"`
}

// GenerateRetrospectiveInsights asks the model for a retrospective of a sprint.
// Computed completion metrics are added to the caller's metrics unless the
// caller already supplied them.
func (a *Assistant) GenerateRetrospectiveInsights(ctx context.Context, projectID, userID uint, req RetrospectiveRequest) (*RetrospectiveResult, error) {
	if req.SprintID == 0 {
		return nil, apperr.Validation("sprintId is required")
	}
	db := a.db.WithContext(ctx)
	p, err := project.Get(db, projectID)
	if err != nil {
		return nil, err
	}
	s, err := projectSprint(db, projectID, req.SprintID)
	if err != nil {
		return nil, err
	}
	tm, err := loadTeam(db, projectID)
	if err != nil {
		return nil, err
	}
	issues, err := sprint.Issues(db, s.ID)
	if err != nil {
		return nil, err
	}
	progress, err := sprint.ProgressOf(db, s.ID)
	if err != nil {
		return nil, err
	}

	summary := RetroSprintSummary{
		ID:           s.ID,
		Name:         s.Name,
		Goal:         s.Goal,
		Status:       s.Status,
		IssueCount:   progress.IssueCount,
		DoneCount:    progress.DoneCount,
		Points:       progress.Points,
		DonePoints:   progress.DonePoints,
		ScopeAlerted: s.ScopeAlerted,
	}
	if progress.Points > 0 {
		summary.CompletionRate = progress.DonePoints / progress.Points * 100
	}

	metrics := map[string]float64{
		"completion_rate": summary.CompletionRate,
		"velocity":        progress.DonePoints,
		"committed":       s.BaselinePoints,
	}
	for k, v := range req.Metrics {
		metrics[k] = v
	}

	in := planner.RetrospectiveInput{
		ProjectName:  p.Name,
		Sprint:       summarizeSprint(s, progress),
		Issues:       tm.summarize(issues),
		Team:         tm.members,
		TeamFeedback: strings.TrimSpace(req.TeamFeedback),
		Metrics:      metrics,
	}
	c := call{
		projectID: projectID,
		userID:    userID,
		input:     in,
		summary:   map[string]interface{}{"sprint_id": s.ID, "has_feedback": in.TeamFeedback != ""},
	}
	raw, md, err := a.complete(ctx, c)
	if err != nil {
		return nil, err
	}
	insights, perr := planner.ParseRetrospectiveResponse(raw)
	a.finish(c, &md, perr)
	return &RetrospectiveResult{
		RetrospectiveInsights: result(insights, perr),
		SprintSummary:         summary,
		Metadata:              md,
		Insights:              insights,
		ParseError:            perr,
	}, nil
}

// SprintCreationRequest asks the model to turn a task list into a sprint plan.
type SprintCreationRequest struct {
	BoardID          uint     `json:"boardId"`
	StartDate        string   `json:"startDate"`
	EndDate          string   `json:"endDate"`
	TotalStoryPoints float64  `json:"totalStoryPoints"`
	TasksList        []string `json:"tasksList"`
}

// SprintCreationResult is the sprint-creation response body. The plan is not
// persisted; the caller reviews it and posts it back to create the sprint.
type SprintCreationResult struct {
	SprintPlan interface{}                 `json:"sprint_plan"`
	InputData  planner.SprintCreationInput `json:"input_data"`
	Metadata   Metadata                    `json:"metadata"`

	Plan       *planner.Plan          `json:"-"`
	ParseError *planner.ResponseError `json:"-"`
}

// GenerateSprintCreationPlan asks the model for a complete sprint plan built
// from the request's task list. The reply is validated against the
// materializer's contract before it is returned.
func (a *Assistant) GenerateSprintCreationPlan(ctx context.Context, projectID, userID uint, req SprintCreationRequest) (*SprintCreationResult, error) {
	var errs []string
	start, err := time.Parse(planner.DateLayout, req.StartDate)
	if err != nil {
		errs = append(errs, fmt.Sprintf("startDate %q must be YYYY-MM-DD", req.StartDate))
	}
	end, err := time.Parse(planner.DateLayout, req.EndDate)
	if err != nil {
		errs = append(errs, fmt.Sprintf("endDate %q must be YYYY-MM-DD", req.EndDate))
	}
	if len(errs) > 0 {
		return nil, apperr.Validation("%s", strings.Join(errs, "; "))
	}

	db := a.db.WithContext(ctx)
	p, err := project.Get(db, projectID)
	if err != nil {
		return nil, err
	}
	if req.BoardID != 0 {
		if _, err := project.GetBoard(db, projectID, req.BoardID); err != nil {
			return nil, err
		}
	}
	tm, err := loadTeam(db, projectID)
	if err != nil {
		return nil, err
	}

	in := planner.SprintCreationInput{
		ProjectName:      p.Name,
		BoardID:          req.BoardID,
		StartDate:        start,
		EndDate:          end,
		TotalStoryPoints: req.TotalStoryPoints,
		Tasks:            req.TasksList,
		Team:             tm.members,
		CreatorID:        userID,
	}
	c := call{
		projectID: projectID,
		userID:    userID,
		input:     in,
		maxTokens: a.cfg.CreationMaxTokens,
		summary:   map[string]interface{}{"board_id": req.BoardID, "tasks": len(req.TasksList), "total_story_points": req.TotalStoryPoints},
	}
	raw, md, err := a.complete(ctx, c)
	if err != nil {
		return nil, err
	}
	plan, perr := planner.ParseSprintCreationResponse(raw)
	if perr == nil && plan.BoardID != req.BoardID {
		perr = &planner.ResponseError{
			Kind:    planner.ErrSchema,
			Message: "response does not match the expected schema",
			Raw:     raw,
			Details: []string{fmt.Sprintf("board_id %d does not match requested board %d", plan.BoardID, req.BoardID)},
		}
		plan = nil
	}
	a.finish(c, &md, perr)
	return &SprintCreationResult{
		SprintPlan: result(plan, perr),
		InputData:  in,
		Metadata:   md,
		Plan:       plan,
		ParseError: perr,
	}, nil
}

func statusCounts(db *gorm.DB, projectID uint) (map[string]int, error) {
	var rows []struct {
		Status string
		N      int
	}
	if err := db.Table("issues").
		Joins("JOIN boards ON boards.id = issues.board_id").
		Where("boards.project_id = ?", projectID).
		Select("issues.status AS status, COUNT(*) AS n").
		Group("issues.status").Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("assist: status counts of project %d: %w", projectID, err)
	}
	counts := make(map[string]int, len(rows))
	for _, r := range rows {
		counts[r.Status] = r.N
	}
	return counts, nil
}

func missingIDs(want []uint, got []models.Issue) []uint {
	have := make(map[uint]bool, len(got))
	for _, is := range got {
		have[is.ID] = true
	}
	var missing []uint
	for _, id := range want {
		if !have[id] {
			missing = append(missing, id)
		}
	}
	return missing
}

// difference returns the issues in a whose ids are absent from b.
func difference(a, b []models.Issue) []models.Issue {
	in := make(map[uint]bool, len(b))
	for _, is := range b {
		in[is.ID] = true
	}
	var out []models.Issue
	for _, is := range a {
		if !in[is.ID] {
			out = append(out, is)
		}
	}
	return out
}
