package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/zulandar/sprintyard/internal/scope"
	"github.com/zulandar/sprintyard/internal/sprint"
	"gorm.io/gorm"
)

// SprintScopeTool handles the sprint_scope MCP tool.
type SprintScopeTool struct {
	db      *gorm.DB
	onAlert scope.AlertFunc
}

// NewSprintScopeTool creates a SprintScopeTool. onAlert, when set, is called
// if a requested recompute latches the alert.
func NewSprintScopeTool(db *gorm.DB, onAlert scope.AlertFunc) *SprintScopeTool {
	return &SprintScopeTool{db: db, onAlert: onAlert}
}

// Definition returns the MCP tool definition for sprint_scope.
func (t *SprintScopeTool) Definition() mcp.Tool {
	return mcp.NewTool("sprint_scope",
		mcp.WithDescription(
			"Show a sprint's scope creep: baseline and current story points, creep ratio, "+
				"threshold and alert flag. Set recompute to re-evaluate and latch the alert.",
		),
		mcp.WithNumber("sprint_id",
			mcp.Required(),
			mcp.Description("Sprint id"),
		),
		mcp.WithBoolean("recompute",
			mcp.Description("Re-evaluate and persist the alert flag (default: false)"),
		),
	)
}

// Handle processes the sprint_scope tool call.
func (t *SprintScopeTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sprintID, ok := idArg(req, "sprint_id")
	if !ok {
		return mcp.NewToolResultError("'sprint_id' must be a positive integer"), nil
	}

	var (
		r   scope.Result
		err error
	)
	if boolArg(req, "recompute", false) {
		r, err = scope.Recompute(t.db.WithContext(ctx), sprintID)
	} else {
		r, err = scope.Status(t.db.WithContext(ctx), sprintID)
	}
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("scope lookup failed: %v", err)), nil
	}
	if r.Triggered && t.onAlert != nil {
		t.onAlert(ctx, r)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## Scope of %s (#%d)\n\n", r.SprintName, r.SprintID)
	fmt.Fprintf(&b, "- **Baseline**: %g pts\n", r.Baseline)
	fmt.Fprintf(&b, "- **Current**: %g pts\n", r.Current)
	if r.Skipped {
		b.WriteString("- **Creep**: n/a (no baseline)\n")
	} else {
		fmt.Fprintf(&b, "- **Creep**: %.1f%% (threshold %.0f%%)\n", r.Ratio*100, r.Threshold*100)
	}
	fmt.Fprintf(&b, "- **Alerted**: %t\n", r.Alerted)
	if r.Triggered {
		b.WriteString("\nAlert latched by this recompute.\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// SprintIssuesTool handles the sprint_issues MCP tool.
type SprintIssuesTool struct {
	db *gorm.DB
}

// NewSprintIssuesTool creates a SprintIssuesTool.
func NewSprintIssuesTool(db *gorm.DB) *SprintIssuesTool {
	return &SprintIssuesTool{db: db}
}

// Definition returns the MCP tool definition for sprint_issues.
func (t *SprintIssuesTool) Definition() mcp.Tool {
	return mcp.NewTool("sprint_issues",
		mcp.WithDescription("List the issues in a sprint by priority, with status and story points."),
		mcp.WithNumber("sprint_id",
			mcp.Required(),
			mcp.Description("Sprint id"),
		),
	)
}

// Handle processes the sprint_issues tool call.
func (t *SprintIssuesTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	sprintID, ok := idArg(req, "sprint_id")
	if !ok {
		return mcp.NewToolResultError("'sprint_id' must be a positive integer"), nil
	}
	db := t.db.WithContext(ctx)
	s, err := sprint.Get(db, sprintID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("sprint lookup failed: %v", err)), nil
	}
	issues, err := sprint.Issues(db, sprintID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("issue lookup failed: %v", err)), nil
	}
	if len(issues) == 0 {
		return mcp.NewToolResultText(fmt.Sprintf("Sprint %q has no issues.", s.Name)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d issues in %s (%s):\n\n", len(issues), s.Name, s.Status)
	for _, is := range issues {
		points := "-"
		if is.StoryPoints != nil {
			points = fmt.Sprintf("%g", *is.StoryPoints)
		}
		fmt.Fprintf(&b, "- #%d [%s] %s | %s | %s | %s pts\n", is.ID, is.Priority, is.Title, is.Type, is.Status, points)
	}
	return mcp.NewToolResultText(b.String()), nil
}
