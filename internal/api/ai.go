package api

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/assist"
	"github.com/zulandar/sprintyard/internal/planner"
)

// maxPlanBytes caps a posted sprint plan.
const maxPlanBytes = 1 << 20

// AI feature responses are 200 even when degraded: a rejected model reply is
// returned as {error, raw_response, details} in place of the analysis.

func handleAIQuota(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		v, err := d.Assistant.Quota(c.Request.Context(), projectID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, v)
	}
}

// bindOptionalJSON is bindJSON that accepts an empty body, including a
// chunked one with no declared length.
func bindOptionalJSON(c *gin.Context, dst interface{}) bool {
	if err := c.ShouldBindJSON(dst); err != nil && !errors.Is(err, io.EOF) {
		badRequest(c, "invalid request body: %v", err)
		return false
	}
	return true
}

func handleSprintPlan(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assist.SprintPlanRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		res, err := d.Assistant.GenerateSprintPlan(c.Request.Context(), projectID(c), userID(c), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleScopeCreep(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assist.ScopeCreepRequest
		if !bindJSON(c, &req) {
			return
		}
		res, err := d.Assistant.DetectScopeCreep(c.Request.Context(), projectID(c), userID(c), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleRiskAssessment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assist.RiskRequest
		if !bindOptionalJSON(c, &req) {
			return
		}
		res, err := d.Assistant.AssessRisks(c.Request.Context(), projectID(c), userID(c), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleRetrospective(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assist.RetrospectiveRequest
		if !bindJSON(c, &req) {
			return
		}
		res, err := d.Assistant.GenerateRetrospectiveInsights(c.Request.Context(), projectID(c), userID(c), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

func handleGenerateSprintCreation(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req assist.SprintCreationRequest
		if !bindJSON(c, &req) {
			return
		}
		res, err := d.Assistant.GenerateSprintCreationPlan(c.Request.Context(), projectID(c), userID(c), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, res)
	}
}

// handleCreateSprintFromPlan materializes a reviewed plan. The body is the
// sprint_plan object returned by generate-sprint-plan.
func handleCreateSprintFromPlan(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxPlanBytes+1))
		if err != nil {
			badRequest(c, "read body: %v", err)
			return
		}
		if len(body) > maxPlanBytes {
			badRequest(c, "plan exceeds %d bytes", maxPlanBytes)
			return
		}
		plan, err := planner.DecodePlan(body)
		if err != nil {
			abortWithError(c, err)
			return
		}
		if d.Materializer == nil {
			abortWithError(c, apperr.Unavailable("sprint materializer is not configured", nil))
			return
		}
		out, err := d.Materializer.Create(c.Request.Context(), projectID(c), userID(c), plan)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, out)
	}
}
