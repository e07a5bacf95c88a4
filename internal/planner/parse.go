package planner

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// DateLayout is the date format used in prompts and plans.
const DateLayout = "2006-01-02"

// ErrorKind classifies a ResponseError.
type ErrorKind string

const (
	// ErrTruncated means the model stopped before closing the JSON object;
	// raising the token budget is the remedy.
	ErrTruncated ErrorKind = "truncated"
	// ErrMalformedJSON means the text is not valid JSON; reprompting is the remedy.
	ErrMalformedJSON ErrorKind = "malformed_json"
	// ErrSchema means the JSON parsed but violates the feature's contract.
	ErrSchema ErrorKind = "schema"
)

// ResponseError describes model output that could not be used as-is. It is
// returned as data inside a successful response, never as a request failure.
type ResponseError struct {
	Kind    ErrorKind `json:"kind"`
	Message string    `json:"error"`
	Raw     string    `json:"raw_response"`
	Details []string  `json:"details,omitempty"`
}

func (e *ResponseError) Error() string {
	if len(e.Details) > 0 {
		return fmt.Sprintf("planner: %s: %s: %s", e.Kind, e.Message, strings.Join(e.Details, "; "))
	}
	return fmt.Sprintf("planner: %s: %s", e.Kind, e.Message)
}

// Payload is the degraded body shown to callers in place of a parsed result.
func (e *ResponseError) Payload() map[string]interface{} {
	p := map[string]interface{}{
		"error":        e.Message,
		"error_kind":   string(e.Kind),
		"raw_response": e.Raw,
	}
	if len(e.Details) > 0 {
		p["details"] = e.Details
	}
	return p
}

// CleanResponse trims whitespace and Markdown code fences around model output.
func CleanResponse(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```")
		// Drop the info string (e.g. "json") up to the first newline.
		if nl := strings.IndexByte(s, '\n'); nl >= 0 {
			s = s[nl+1:]
		} else {
			s = strings.TrimPrefix(s, "json")
		}
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// decode cleans raw and unmarshals it into v, classifying failures.
func decode(raw string, v interface{}, detectTruncation bool) *ResponseError {
	cleaned := CleanResponse(raw)
	if cleaned == "" {
		return &ResponseError{Kind: ErrMalformedJSON, Message: "empty response", Raw: raw}
	}
	if detectTruncation && !strings.HasSuffix(cleaned, "}") {
		return &ResponseError{
			Kind:    ErrTruncated,
			Message: "response appears truncated; increase the token budget and retry",
			Raw:     raw,
		}
	}
	if err := json.Unmarshal([]byte(cleaned), v); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			return &ResponseError{
				Kind:    ErrSchema,
				Message: "response does not match the expected schema",
				Raw:     raw,
				Details: []string{fmt.Sprintf("%s: expected %s, got %s", typeErr.Field, typeErr.Type, typeErr.Value)},
			}
		}
		return &ResponseError{Kind: ErrMalformedJSON, Message: "response is not valid JSON", Raw: raw, Details: []string{err.Error()}}
	}
	return nil
}

func schemaError(raw string, details []string) *ResponseError {
	return &ResponseError{
		Kind:    ErrSchema,
		Message: "response does not match the expected schema",
		Raw:     raw,
		Details: details,
	}
}

var generalPriorities = map[string]bool{"P1": true, "P2": true, "P3": true, "P4": true}

// SprintPlan is the parsed sprint planning response.
type SprintPlan struct {
	SprintGoal          string             `json:"sprint_goal"`
	RecommendedIssues   []RecommendedIssue `json:"recommended_issues"`
	TotalStoryPoints    float64            `json:"total_story_points"`
	CapacityUtilization float64            `json:"capacity_utilization"`
	Risks               []string           `json:"risks"`
	Recommendations     []string           `json:"recommendations"`
}

// RecommendedIssue is one issue the model proposes for the sprint.
type RecommendedIssue struct {
	IssueID            uint    `json:"issue_id"`
	Title              string  `json:"title"`
	StoryPoints        float64 `json:"story_points"`
	Priority           string  `json:"priority"`
	AssigneeSuggestion string  `json:"assignee_suggestion"`
	Rationale          string  `json:"rationale"`
}

// ParseSprintPlanResponse parses a sprint planning response.
func ParseSprintPlanResponse(raw string) (*SprintPlan, *ResponseError) {
	var p struct {
		SprintPlan
		RecommendedIssues *[]RecommendedIssue `json:"recommended_issues"`
	}
	if rerr := decode(raw, &p, false); rerr != nil {
		return nil, rerr
	}
	var errs []string
	if p.RecommendedIssues == nil {
		errs = append(errs, "recommended_issues is required")
	} else {
		for i, ri := range *p.RecommendedIssues {
			if ri.Priority != "" && !generalPriorities[ri.Priority] {
				errs = append(errs, fmt.Sprintf("recommended_issues[%d]: invalid priority %q (must be P1-P4)", i, ri.Priority))
			}
		}
	}
	if len(errs) > 0 {
		return nil, schemaError(raw, errs)
	}
	plan := p.SprintPlan
	plan.RecommendedIssues = *p.RecommendedIssues
	return &plan, nil
}

// ScopeAnalysis is the parsed scope-creep response.
type ScopeAnalysis struct {
	ScopeCreepDetected bool          `json:"scope_creep_detected"`
	CreepPercentage    float64       `json:"creep_percentage"`
	Severity           string        `json:"severity"`
	AddedIssues        []ScopeImpact `json:"added_issues"`
	ImpactAnalysis     string        `json:"impact_analysis"`
	Recommendations    []string      `json:"recommendations"`
}

// ScopeImpact is the model's view of one added issue.
type ScopeImpact struct {
	IssueID     uint    `json:"issue_id"`
	Title       string  `json:"title"`
	StoryPoints float64 `json:"story_points"`
	Impact      string  `json:"impact"`
}

var severities = map[string]bool{"low": true, "medium": true, "high": true}

// ParseScopeCreepResponse parses a scope-creep analysis response.
func ParseScopeCreepResponse(raw string) (*ScopeAnalysis, *ResponseError) {
	var a ScopeAnalysis
	if rerr := decode(raw, &a, false); rerr != nil {
		return nil, rerr
	}
	if !severities[a.Severity] {
		return nil, schemaError(raw, []string{fmt.Sprintf("invalid severity %q (must be low, medium or high)", a.Severity)})
	}
	return &a, nil
}

// RiskAssessment is the parsed risk assessment response.
type RiskAssessment struct {
	OverallRiskLevel string `json:"overall_risk_level"`
	Risks            []Risk `json:"risks"`
	Summary          string `json:"summary"`
}

// Risk is one identified delivery risk.
type Risk struct {
	Title          string `json:"title"`
	Description    string `json:"description"`
	Category       string `json:"category"`
	Probability    string `json:"probability"`
	Impact         string `json:"impact"`
	AffectedIssues []uint `json:"affected_issues"`
	Mitigation     string `json:"mitigation"`
	Priority       string `json:"priority"`
}

var riskLevels = map[string]bool{"low": true, "medium": true, "high": true, "critical": true}

// ParseRiskAssessmentResponse parses a risk assessment response.
func ParseRiskAssessmentResponse(raw string) (*RiskAssessment, *ResponseError) {
	var r RiskAssessment
	if rerr := decode(raw, &r, false); rerr != nil {
		return nil, rerr
	}
	var errs []string
	if !riskLevels[r.OverallRiskLevel] {
		errs = append(errs, fmt.Sprintf("invalid overall_risk_level %q", r.OverallRiskLevel))
	}
	for i, risk := range r.Risks {
		if risk.Title == "" {
			errs = append(errs, fmt.Sprintf("risks[%d]: title is required", i))
		}
		if risk.Priority != "" && !generalPriorities[risk.Priority] {
			errs = append(errs, fmt.Sprintf("risks[%d]: invalid priority %q (must be P1-P4)", i, risk.Priority))
		}
		if risk.Probability != "" && !severities[risk.Probability] {
			errs = append(errs, fmt.Sprintf("risks[%d]: invalid probability %q", i, risk.Probability))
		}
		if risk.Impact != "" && !severities[risk.Impact] {
			errs = append(errs, fmt.Sprintf("risks[%d]: invalid impact %q", i, risk.Impact))
		}
	}
	if len(errs) > 0 {
		return nil, schemaError(raw, errs)
	}
	return &r, nil
}

// RetrospectiveInsights is the parsed retrospective response.
type RetrospectiveInsights struct {
	Summary          string       `json:"summary"`
	WentWell         []string     `json:"went_well"`
	NeedsImprovement []string     `json:"needs_improvement"`
	ActionItems      []ActionItem `json:"action_items"`
	MetricsAnalysis  string       `json:"metrics_analysis"`
	TeamHealthScore  int          `json:"team_health_score"`
}

// ActionItem is one retrospective follow-up.
type ActionItem struct {
	Title    string `json:"title"`
	Owner    string `json:"owner"`
	Priority string `json:"priority"`
}

// ParseRetrospectiveResponse parses a retrospective insights response.
func ParseRetrospectiveResponse(raw string) (*RetrospectiveInsights, *ResponseError) {
	var r RetrospectiveInsights
	if rerr := decode(raw, &r, false); rerr != nil {
		return nil, rerr
	}
	var errs []string
	if r.Summary == "" {
		errs = append(errs, "summary is required")
	}
	if r.TeamHealthScore != 0 && (r.TeamHealthScore < 1 || r.TeamHealthScore > 10) {
		errs = append(errs, fmt.Sprintf("team_health_score %d out of range 1-10", r.TeamHealthScore))
	}
	for i, a := range r.ActionItems {
		if a.Priority != "" && !generalPriorities[a.Priority] {
			errs = append(errs, fmt.Sprintf("action_items[%d]: invalid priority %q (must be P1-P4)", i, a.Priority))
		}
	}
	if len(errs) > 0 {
		return nil, schemaError(raw, errs)
	}
	return &r, nil
}
