package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
)

// registerRoutes sets up all API routes on the gin router.
func registerRoutes(router *gin.Engine, d Deps) {
	db := d.DB
	write := requireRole(models.RoleMember)
	admin := requireRole(models.RoleAdmin)

	public := router.Group("/api/v1")
	public.GET("/healthz", handleHealth(db))
	public.POST("/users", handleCreateUser(db))

	v1 := router.Group("/api/v1", requireUser(db))
	v1.GET("/users/:userId", handleGetUser(db))
	v1.POST("/projects", handleCreateProject(db))
	v1.GET("/projects", handleListProjects(db))

	p := v1.Group("/projects/:projectId", requireMember(db))
	p.GET("", handleGetProject(db))
	p.GET("/members", handleListMembers(db))
	p.POST("/members", admin, handleAddMember(d))
	p.DELETE("/members/:userId", admin, handleRemoveMember(d))
	p.GET("/activity", handleActivity(db))

	// Boards and sprints.
	p.GET("/boards", handleListBoards(db))
	p.POST("/boards", write, handleCreateBoard(db))
	p.GET("/boards/:boardId/sprints", handleListSprints(db))
	p.POST("/boards/:boardId/sprints", write, handleCreateSprint(d))
	p.POST("/boards/:boardId/import/github", write, handleImportGitHub(d))
	p.GET("/sprints/:sprintId", handleGetSprint(db))
	p.PATCH("/sprints/:sprintId", write, handleUpdateSprint(d))
	p.DELETE("/sprints/:sprintId", admin, handleDeleteSprint(d))
	p.POST("/sprints/:sprintId/start", write, handleStartSprint(d))
	p.POST("/sprints/:sprintId/complete", write, handleCompleteSprint(d))
	p.POST("/sprints/:sprintId/baseline", write, handleSprintBaseline(d))
	p.POST("/sprints/:sprintId/reset-alert", write, handleResetAlert(d))
	p.GET("/sprints/:sprintId/issues", handleSprintIssues(db))
	p.GET("/sprints/:sprintId/scope", handleSprintScope(db))
	p.GET("/sprints/:sprintId/report.pdf", handleSprintReport(db))

	// Issues.
	p.GET("/issues", handleListIssues(db))
	p.POST("/issues", write, handleCreateIssue(d))
	p.GET("/issues/:issueId", handleGetIssue(db))
	p.PATCH("/issues/:issueId", write, handleUpdateIssue(d))
	p.DELETE("/issues/:issueId", admin, handleDeleteIssue(d))
	p.GET("/issues/:issueId/comments", handleListComments(db))
	p.POST("/issues/:issueId/comments", write, handleAddComment(d))
	p.DELETE("/issues/:issueId/comments/:commentId", write, handleDeleteComment(d))
	p.GET("/issues/:issueId/worklogs", handleListWorklogs(db))
	p.POST("/issues/:issueId/worklogs", write, handleLogWork(d))

	// AI assistance.
	ai := p.Group("/ai")
	ai.GET("/quota", handleAIQuota(d))
	ai.POST("/sprint-plan", write, handleSprintPlan(d))
	ai.POST("/scope-creep", write, handleScopeCreep(d))
	ai.POST("/risk-assessment", write, handleRiskAssessment(d))
	ai.POST("/retrospective", write, handleRetrospective(d))
	ai.POST("/generate-sprint-plan", write, handleGenerateSprintCreation(d))
	ai.POST("/create-sprint", write, handleCreateSprintFromPlan(d))
}

func handleHealth(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		sqlDB, err := db.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "database": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
