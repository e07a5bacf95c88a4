// Package mcptools exposes read-mostly Sprintyard operations as MCP tools
// for operators and agents.
//
// Each tool is a struct holding its dependencies, with Definition() returning
// the mcp.Tool schema and Handle() serving calls. Failures are reported as
// tool error results, never as protocol errors.
package mcptools

import (
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"github.com/zulandar/sprintyard/internal/quota"
	"github.com/zulandar/sprintyard/internal/scope"
	"gorm.io/gorm"
)

// NewServer registers every Sprintyard tool on a new MCP server. onAlert
// may be nil.
func NewServer(db *gorm.DB, gov *quota.Governor, onAlert scope.AlertFunc, version string) *server.MCPServer {
	s := server.NewMCPServer(
		"sprintyard",
		version,
		server.WithToolCapabilities(false),
	)

	quotaTool := NewQuotaStatusTool(gov)
	s.AddTool(quotaTool.Definition(), quotaTool.Handle)

	scopeTool := NewSprintScopeTool(db, onAlert)
	s.AddTool(scopeTool.Definition(), scopeTool.Handle)

	issuesTool := NewSprintIssuesTool(db)
	s.AddTool(issuesTool.Definition(), issuesTool.Handle)

	return s
}

// idArg extracts a positive integer id argument (JSON numbers are float64).
// ok is false when the key is missing, not a whole number, or not positive.
func idArg(req mcp.CallToolRequest, key string) (uint, bool) {
	v, ok := req.GetArguments()[key].(float64)
	if !ok || v < 1 || v != float64(uint(v)) {
		return 0, false
	}
	return uint(v), true
}

// boolArg extracts a boolean argument from a tool request.
func boolArg(req mcp.CallToolRequest, key string, defaultVal bool) bool {
	v, ok := req.GetArguments()[key].(bool)
	if !ok {
		return defaultVal
	}
	return v
}
