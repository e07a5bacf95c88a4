package planner

import (
	"bytes"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"
)

// Fibonacci is the set of story-point values the sprint-creation prompt allows.
var Fibonacci = []int{1, 2, 3, 5, 8, 13, 21}

const teamSection = `## Team Members
{{ if .Team }}{{ range .Team }}- {{ .Name }} (id {{ .ID }}{{ if .Role }}, {{ .Role }}{{ end }})
{{ end }}{{ else }}- No team members recorded
{{ end }}`

const sprintPlanningTemplate = `You are an experienced agile coach helping a software team plan their next sprint.

## Project
- Name: {{ .ProjectName }}
- Sprint goal: {{ if .SprintGoal }}{{ .SprintGoal }}{{ else }}Not specified; propose one from the backlog{{ end }}
- Capacity: {{ num .Capacity }} story points
- Duration: {{ .DurationDays }} days

` + teamSection + `
## Candidate Issues
{{ range .Backlog }}- #{{ .ID }} [{{ .Type }}, {{ .Priority }}, {{ points .StoryPoints }}] {{ .Title }}{{ if .Assignee }} (assigned to {{ .Assignee }}){{ end }}
{{ end }}
## Instructions
1. Select issues that best serve the sprint goal without exceeding capacity.
2. Prefer higher priority work (P1 before P4) and keep related issues together.
3. Suggest an assignee from the team for each selected issue.
4. Call out risks such as unestimated issues or overloaded members.

## Output Format
Respond with a single JSON object and nothing else:
{
  "sprint_goal": "string",
  "recommended_issues": [
    {"issue_id": 0, "title": "string", "story_points": 0, "priority": "P1|P2|P3|P4", "assignee_suggestion": "string", "rationale": "string"}
  ],
  "total_story_points": 0,
  "capacity_utilization": 0.0,
  "risks": ["string"],
  "recommendations": ["string"]
}
Priority must be one of P1, P2, P3, P4. capacity_utilization is a fraction of capacity (0.85 = 85%).
`

const scopeCreepTemplate = `You are an agile delivery analyst reviewing scope changes in an active sprint.

## Sprint
- Project: {{ .ProjectName }}
- Name: {{ .Sprint.Name }}
- Goal: {{ .Sprint.Goal }}
- Dates: {{ date .Sprint.StartDate }} to {{ date .Sprint.EndDate }}
- Capacity: {{ num .Sprint.Capacity }} story points
- Baseline: {{ num .Sprint.BaselinePoints }} story points
- Current: {{ num .Sprint.CurrentPoints }} story points

## Original Scope
{{ range .Original }}- #{{ .ID }} [{{ .Type }}, {{ .Priority }}, {{ points .StoryPoints }}] {{ .Title }}
{{ else }}- None recorded
{{ end }}
## Added Since Commitment
{{ range .Added }}- #{{ .ID }} [{{ .Type }}, {{ .Priority }}, {{ points .StoryPoints }}] {{ .Title }}
{{ else }}- None
{{ end }}
## Removed Since Commitment
{{ range .Removed }}- #{{ .ID }} [{{ .Type }}, {{ .Priority }}, {{ points .StoryPoints }}] {{ .Title }}
{{ else }}- None
{{ end }}
## Instructions
Judge whether the sprint has experienced scope creep, how severe it is, and what the team should do about it.

## Output Format
Respond with a single JSON object and nothing else:
{
  "scope_creep_detected": true,
  "creep_percentage": 0.0,
  "severity": "low|medium|high",
  "added_issues": [{"issue_id": 0, "title": "string", "story_points": 0, "impact": "string"}],
  "impact_analysis": "string",
  "recommendations": ["string"]
}
severity must be one of low, medium, high.
`

const riskAssessmentTemplate = `You are a delivery risk analyst for a software project.

## Project
- Name: {{ .ProjectName }}

## Active Sprints
{{ range .ActiveSprints }}- {{ .Name }}: {{ num .CurrentPoints }} of {{ num .Capacity }} capacity points, {{ num .DonePoints }} done, ends {{ date .EndDate }}
{{ else }}- No active sprint
{{ end }}
## Issue Status Counts
{{ range $status, $n := .StatusCounts }}- {{ $status }}: {{ $n }}
{{ end }}
` + teamSection + `
## Open Issues
{{ range .OpenIssues }}- #{{ .ID }} [{{ .Type }}, {{ .Status }}, {{ .Priority }}, {{ points .StoryPoints }}] {{ .Title }}{{ if .Assignee }} (assigned to {{ .Assignee }}){{ else }} (unassigned){{ end }}
{{ else }}- No open issues
{{ end }}
## Instructions
Identify delivery risks: blocked or unassigned high-priority work, overloaded members, unestimated issues, and sprints at risk of missing their end date.

## Output Format
Respond with a single JSON object and nothing else:
{
  "overall_risk_level": "low|medium|high|critical",
  "risks": [
    {"title": "string", "description": "string", "category": "string", "probability": "low|medium|high", "impact": "low|medium|high", "affected_issues": [0], "mitigation": "string", "priority": "P1|P2|P3|P4"}
  ],
  "summary": "string"
}
Priority must be one of P1, P2, P3, P4.
`

const retrospectiveTemplate = `You are facilitating a sprint retrospective for a software team.

## Sprint
- Project: {{ .ProjectName }}
- Name: {{ .Sprint.Name }}
- Goal: {{ .Sprint.Goal }}
- Status: {{ .Sprint.Status }}
- Dates: {{ date .Sprint.StartDate }} to {{ date .Sprint.EndDate }}
- Committed: {{ num .Sprint.BaselinePoints }} story points
- Final scope: {{ num .Sprint.CurrentPoints }} story points
- Completed: {{ num .Sprint.DonePoints }} story points

` + teamSection + `
## Issues
{{ range .Issues }}- #{{ .ID }} [{{ .Type }}, {{ .Status }}, {{ points .StoryPoints }}] {{ .Title }}
{{ else }}- No issues
{{ end }}{{ if .Metrics }}
## Metrics
{{ range $name, $v := .Metrics }}- {{ $name }}: {{ num $v }}
{{ end }}{{ end }}{{ if .TeamFeedback }}
## Team Feedback
{{ .TeamFeedback }}
{{ end }}
## Instructions
Summarize what went well, what needs improvement, and concrete action items with owners.

## Output Format
Respond with a single JSON object and nothing else:
{
  "summary": "string",
  "went_well": ["string"],
  "needs_improvement": ["string"],
  "action_items": [{"title": "string", "owner": "string", "priority": "P1|P2|P3|P4"}],
  "metrics_analysis": "string",
  "team_health_score": 0
}
team_health_score is an integer from 1 to 10. Priority must be one of P1, P2, P3, P4.
`

const sprintCreationTemplate = `You are a senior scrum master turning a raw task list into a ready-to-run sprint.

## Sprint Parameters
- Project: {{ .ProjectName }}
- Board id: {{ .BoardID }}
- Start date: {{ date .StartDate }}
- End date: {{ date .EndDate }}
- Target capacity: {{ num .TotalStoryPoints }} story points
- Creator id: {{ .CreatorID }}

` + teamSection + `
## Tasks
{{ range $i, $t := .Tasks }}{{ inc $i }}. {{ $t }}
{{ end }}
## Rules
1. Create one issue per task. Write a clear title and a description with acceptance criteria.
2. Infer priority from severity words in the task: "Critical" or "High" -> P1, "Medium" -> P2, "Low" -> P4. Default to P2.
3. Story points must be Fibonacci values only: {{ fib }}.
4. Derive estimated_hours at 4-6 hours per story point.
5. Type is Story for user-facing features, Bug for defects, Task for technical work, Epic for large containers.
6. Keep the total close to the target capacity. Do not exceed it by more than 10%.
7. Assign issues only to team member ids listed above, or leave assignee_id null.
8. Every issue has board_id {{ .BoardID }}, status "To Do" and reporter_id {{ .CreatorID }}.

## Output Format
Respond with a single JSON object and nothing else. Do not wrap it in markdown.
{
  "board_id": {{ .BoardID }},
  "name": "string",
  "goal": "string",
  "start_date": "{{ date .StartDate }}",
  "end_date": "{{ date .EndDate }}",
  "capacity_story_points": {{ num .TotalStoryPoints }},
  "status": "Planning",
  "created_by": {{ .CreatorID }},
  "issues": [
    {"board_id": {{ .BoardID }}, "title": "string", "description": "string", "type": "Story|Task|Bug|Epic", "status": "To Do", "priority": "P1|P2|P3", "story_points": 0, "reporter_id": {{ .CreatorID }}, "assignee_id": null, "estimated_hours": 0}
  ]
}
type must be one of Story, Task, Bug, Epic. priority must be one of P1, P2, P3. story_points must be between 0 and 21.
`

var templates = map[Feature]*template.Template{}

func init() {
	funcs := template.FuncMap{
		"date":   formatDate,
		"points": formatPoints,
		"num":    formatNum,
		"inc":    func(i int) int { return i + 1 },
		"fib": func() string {
			parts := make([]string, len(Fibonacci))
			for i, n := range Fibonacci {
				parts[i] = strconv.Itoa(n)
			}
			return strings.Join(parts, ", ")
		},
	}
	for f, src := range map[Feature]string{
		FeatureSprintPlanning: sprintPlanningTemplate,
		FeatureScopeCreep:     scopeCreepTemplate,
		FeatureRiskAssessment: riskAssessmentTemplate,
		FeatureRetrospective:  retrospectiveTemplate,
		FeatureSprintCreation: sprintCreationTemplate,
	} {
		templates[f] = template.Must(template.New(string(f)).Funcs(funcs).Parse(src))
	}
}

// Build renders the prompt for any feature input.
func Build(in Input) (string, error) {
	tmpl, ok := templates[in.Feature()]
	if !ok {
		return "", fmt.Errorf("planner: no template for feature %q", in.Feature())
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, in); err != nil {
		return "", fmt.Errorf("planner: render %s: %w", in.Feature(), err)
	}
	return buf.String(), nil
}

// BuildSprintPlanningPrompt renders the sprint planning prompt.
func BuildSprintPlanningPrompt(in SprintPlanningInput) (string, error) {
	return Build(in)
}

// BuildScopeCreepPrompt renders the scope-creep analysis prompt.
func BuildScopeCreepPrompt(in ScopeCreepInput) (string, error) {
	return Build(in)
}

// BuildRiskAssessmentPrompt renders the risk assessment prompt.
func BuildRiskAssessmentPrompt(in RiskAssessmentInput) (string, error) {
	return Build(in)
}

// BuildRetrospectivePrompt renders the retrospective insights prompt.
func BuildRetrospectivePrompt(in RetrospectiveInput) (string, error) {
	return Build(in)
}

// BuildSprintCreationPrompt renders the sprint-from-task-list prompt.
func BuildSprintCreationPrompt(in SprintCreationInput) (string, error) {
	return Build(in)
}

func formatDate(v interface{}) string {
	switch t := v.(type) {
	case time.Time:
		if t.IsZero() {
			return "not set"
		}
		return t.Format(DateLayout)
	case *time.Time:
		if t == nil || t.IsZero() {
			return "not set"
		}
		return t.Format(DateLayout)
	}
	return fmt.Sprint(v)
}

func formatPoints(p *float64) string {
	if p == nil {
		return "unestimated"
	}
	return formatNum(*p) + " pts"
}

func formatNum(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}
