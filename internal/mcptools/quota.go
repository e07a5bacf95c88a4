package mcptools

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/zulandar/sprintyard/internal/quota"
)

// QuotaStatusTool handles the quota_status MCP tool.
type QuotaStatusTool struct {
	gov *quota.Governor
}

// NewQuotaStatusTool creates a QuotaStatusTool.
func NewQuotaStatusTool(gov *quota.Governor) *QuotaStatusTool {
	return &QuotaStatusTool{gov: gov}
}

// Definition returns the MCP tool definition for quota_status.
func (t *QuotaStatusTool) Definition() mcp.Tool {
	return mcp.NewTool("quota_status",
		mcp.WithDescription("Show a project's AI request quota: limit, used, remaining and the next reset date."),
		mcp.WithNumber("project_id",
			mcp.Required(),
			mcp.Description("Project id"),
		),
	)
}

// Handle processes the quota_status tool call. It applies a due reset, like
// any quota read.
func (t *QuotaStatusTool) Handle(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	projectID, ok := idArg(req, "project_id")
	if !ok {
		return mcp.NewToolResultError("'project_id' must be a positive integer"), nil
	}
	st, err := t.gov.Check(ctx, projectID)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("quota check failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "## AI quota for project %d\n\n", projectID)
	fmt.Fprintf(&b, "- **Limit**: %d\n", st.Limit)
	fmt.Fprintf(&b, "- **Used**: %d\n", st.Used)
	fmt.Fprintf(&b, "- **Remaining**: %d\n", st.Remaining)
	fmt.Fprintf(&b, "- **Resets**: %s\n", st.ResetDate.Format("2006-01-02"))
	return mcp.NewToolResultText(b.String()), nil
}
