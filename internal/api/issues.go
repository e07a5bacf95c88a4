package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/ghimport"
	"github.com/zulandar/sprintyard/internal/issue"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/project"
	"gorm.io/gorm"
)

// loadIssue resolves :issueId within the caller's project.
func loadIssue(c *gin.Context, db *gorm.DB) (*models.Issue, bool) {
	id, ok := uintParam(c, "issueId")
	if !ok {
		return nil, false
	}
	is, err := issue.Get(db, id)
	if err == nil {
		var pid uint
		if pid, err = issue.ProjectOf(db, is); err == nil && pid != projectID(c) {
			err = apperr.NotFound("issue", id)
		}
	}
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return is, true
}

func handleListIssues(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var f issue.Filter
		var ok bool
		if f.BoardID, ok = queryUint(c, "board_id"); !ok {
			return
		}
		if f.SprintID, ok = queryUint(c, "sprint_id"); !ok {
			return
		}
		if f.AssigneeID, ok = queryUint(c, "assignee_id"); !ok {
			return
		}
		f.Backlog = c.Query("backlog") == "true"
		f.Status = c.Query("status")
		f.Type = c.Query("type")
		f.Priority = c.Query("priority")
		f.Search = c.Query("q")

		pg, perPage := pagination(c)
		issues, total, err := issue.List(db.WithContext(c.Request.Context()), projectID(c), f, pg, perPage)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, page{Items: issues, Page: pg, PerPage: perPage, Total: total})
	}
}

func handleCreateIssue(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			BoardID       uint     `json:"board_id"`
			SprintID      *uint    `json:"sprint_id"`
			Title         string   `json:"title"`
			Description   string   `json:"description"`
			Type          string   `json:"type"`
			Status        string   `json:"status"`
			Priority      string   `json:"priority"`
			StoryPoints   *float64 `json:"story_points"`
			AssigneeID    *uint    `json:"assignee_id"`
			BlockedReason string   `json:"blocked_reason"`
		}
		if !bindJSON(c, &req) {
			return
		}
		if req.BoardID == 0 {
			badRequest(c, "board_id is required")
			return
		}
		ctx := c.Request.Context()
		if _, err := project.GetBoard(d.DB.WithContext(ctx), projectID(c), req.BoardID); err != nil {
			abortWithError(c, err)
			return
		}
		is, err := d.Issues.Create(ctx, projectID(c), issue.CreateOpts{
			BoardID:       req.BoardID,
			SprintID:      req.SprintID,
			Title:         req.Title,
			Description:   req.Description,
			Type:          req.Type,
			Status:        req.Status,
			Priority:      req.Priority,
			StoryPoints:   req.StoryPoints,
			AssigneeID:    req.AssigneeID,
			ReporterID:    userID(c),
			BlockedReason: req.BlockedReason,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, is)
	}
}

func handleGetIssue(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		is, ok := loadIssue(c, db.WithContext(c.Request.Context()))
		if !ok {
			return
		}
		c.JSON(http.StatusOK, is)
	}
}

func handleUpdateIssue(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		is, ok := loadIssue(c, d.DB.WithContext(ctx))
		if !ok {
			return
		}
		var raw map[string]json.RawMessage
		if !bindJSON(c, &raw) {
			return
		}
		p, err := decodePatch(raw)
		if err != nil {
			abortWithError(c, err)
			return
		}

		var updated *models.Issue
		if _, onlySprint := raw["sprint_id"]; onlySprint && len(raw) == 1 {
			updated, err = d.Issues.Move(ctx, projectID(c), userID(c), is.ID, p.SprintID)
		} else {
			updated, err = d.Issues.Update(ctx, projectID(c), userID(c), is.ID, p)
		}
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, updated)
	}
}

// decodePatch turns a JSON merge-style body into an issue.Patch. An explicit
// null on sprint_id, story_points or assignee_id clears the field.
func decodePatch(raw map[string]json.RawMessage) (issue.Patch, error) {
	var p issue.Patch
	strs := map[string]**string{
		"title":          &p.Title,
		"description":    &p.Description,
		"type":           &p.Type,
		"status":         &p.Status,
		"priority":       &p.Priority,
		"blocked_reason": &p.BlockedReason,
	}
	for key, v := range raw {
		if dst, ok := strs[key]; ok {
			var s string
			if err := json.Unmarshal(v, &s); err != nil {
				return p, apperr.Validation("%s must be a string", key)
			}
			*dst = &s
			continue
		}
		isNull := string(v) == "null"
		switch key {
		case "sprint_id":
			if isNull {
				p.ClearSprint = true
			} else if err := json.Unmarshal(v, &p.SprintID); err != nil {
				return p, apperr.Validation("sprint_id must be a positive integer or null")
			}
		case "assignee_id":
			if isNull {
				p.ClearAssignee = true
			} else if err := json.Unmarshal(v, &p.AssigneeID); err != nil {
				return p, apperr.Validation("assignee_id must be a positive integer or null")
			}
		case "story_points":
			if isNull {
				p.ClearStoryPoints = true
			} else if err := json.Unmarshal(v, &p.StoryPoints); err != nil {
				return p, apperr.Validation("story_points must be a number or null")
			}
		default:
			return p, apperr.Validation("field %q cannot be updated", key)
		}
	}
	return p, nil
}

func handleDeleteIssue(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		is, ok := loadIssue(c, d.DB.WithContext(ctx))
		if !ok {
			return
		}
		if err := d.Issues.Delete(ctx, projectID(c), userID(c), is.ID); err != nil {
			abortWithError(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

func handleListComments(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := db.WithContext(c.Request.Context())
		is, ok := loadIssue(c, gdb)
		if !ok {
			return
		}
		cs, err := issue.Comments(gdb, is.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": cs})
	}
}

func handleAddComment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := d.DB.WithContext(c.Request.Context())
		is, ok := loadIssue(c, gdb)
		if !ok {
			return
		}
		var req struct {
			Body string `json:"body"`
		}
		if !bindJSON(c, &req) {
			return
		}
		cm, err := issue.AddComment(gdb, is.ID, userID(c), req.Body)
		if err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "comment_added", "issue", is.ID, map[string]interface{}{"comment_id": cm.ID})
		c.JSON(http.StatusCreated, cm)
	}
}

func handleDeleteComment(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := d.DB.WithContext(c.Request.Context())
		is, ok := loadIssue(c, gdb)
		if !ok {
			return
		}
		commentID, ok := uintParam(c, "commentId")
		if !ok {
			return
		}
		moderator := project.HasRole(member(c).Role, models.RoleAdmin)
		if err := issue.DeleteComment(gdb, is.ID, commentID, userID(c), moderator); err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "comment_deleted", "issue", is.ID, map[string]interface{}{"comment_id": commentID})
		c.Status(http.StatusNoContent)
	}
}

func handleListWorklogs(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := db.WithContext(c.Request.Context())
		is, ok := loadIssue(c, gdb)
		if !ok {
			return
		}
		logs, err := issue.TimeLogs(gdb, is.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		total, err := issue.TotalHours(gdb, is.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": logs, "total_hours": total})
	}
}

func handleLogWork(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := d.DB.WithContext(c.Request.Context())
		is, ok := loadIssue(c, gdb)
		if !ok {
			return
		}
		var req struct {
			Hours    float64 `json:"hours"`
			LoggedOn *string `json:"logged_on"`
			Note     string  `json:"note"`
		}
		if !bindJSON(c, &req) {
			return
		}
		on, ok := parseDate(c, "logged_on", req.LoggedOn)
		if !ok {
			return
		}
		if on == nil {
			today := time.Now().UTC().Truncate(24 * time.Hour)
			on = &today
		}
		tl, err := issue.LogTime(gdb, is.ID, userID(c), req.Hours, *on, req.Note)
		if err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "work_logged", "issue", is.ID, map[string]interface{}{"hours": tl.Hours})
		c.JSON(http.StatusCreated, tl)
	}
}

func handleImportGitHub(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		b, ok := loadBoard(c, d.DB.WithContext(ctx))
		if !ok {
			return
		}
		if d.Importer == nil {
			abortWithError(c, apperr.Unavailable("GitHub import is not configured", nil))
			return
		}
		var req ghimport.Opts
		if !bindJSON(c, &req) {
			return
		}
		res, err := d.Importer.Import(ctx, b.ID, userID(c), req)
		if err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "github_imported", "board", b.ID, map[string]interface{}{
			"repo":     req.Owner + "/" + req.Repo,
			"imported": res.Imported,
			"skipped":  res.Skipped,
		})
		c.JSON(http.StatusOK, res)
	}
}
