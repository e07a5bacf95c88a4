package api

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/project"
	"github.com/zulandar/sprintyard/internal/report"
	"github.com/zulandar/sprintyard/internal/scope"
	"github.com/zulandar/sprintyard/internal/sprint"
	"gorm.io/gorm"
)

// sprintRequest is the body of sprint create and update.
type sprintRequest struct {
	Name         *string  `json:"name"`
	Goal         *string  `json:"goal"`
	StartDate    *string  `json:"start_date"`
	EndDate      *string  `json:"end_date"`
	Capacity     *float64 `json:"capacity_story_points"`
	ThresholdPct *float64 `json:"scope_threshold_pct"`
}

// sprintView is a sprint with its live progress.
type sprintView struct {
	*models.Sprint
	Progress sprint.Progress `json:"progress"`
}

// loadSprint resolves :sprintId within the caller's project. A sprint on
// another project's board is reported as not found.
func loadSprint(c *gin.Context, db *gorm.DB) (*models.Sprint, bool) {
	id, ok := uintParam(c, "sprintId")
	if !ok {
		return nil, false
	}
	s, err := sprint.Get(db, id)
	if err == nil {
		var pid uint
		if pid, err = sprint.ProjectOf(db, s); err == nil && pid != projectID(c) {
			err = apperr.NotFound("sprint", id)
		}
	}
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return s, true
}

// loadBoard resolves :boardId within the caller's project.
func loadBoard(c *gin.Context, db *gorm.DB) (*models.Board, bool) {
	id, ok := uintParam(c, "boardId")
	if !ok {
		return nil, false
	}
	b, err := project.GetBoard(db, projectID(c), id)
	if err != nil {
		abortWithError(c, err)
		return nil, false
	}
	return b, true
}

func withProgress(c *gin.Context, db *gorm.DB, status int, s *models.Sprint) {
	p, err := sprint.ProgressOf(db, s.ID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(status, sprintView{Sprint: s, Progress: p})
}

func handleListSprints(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := db.WithContext(c.Request.Context())
		b, ok := loadBoard(c, gdb)
		if !ok {
			return
		}
		ss, err := sprint.List(gdb, b.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": ss})
	}
}

func handleCreateSprint(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := d.DB.WithContext(c.Request.Context())
		b, ok := loadBoard(c, gdb)
		if !ok {
			return
		}
		var req sprintRequest
		if !bindJSON(c, &req) {
			return
		}
		start, ok := parseDate(c, "start_date", req.StartDate)
		if !ok {
			return
		}
		end, ok := parseDate(c, "end_date", req.EndDate)
		if !ok {
			return
		}
		opts := sprint.CreateOpts{
			BoardID:      b.ID,
			StartDate:    start,
			EndDate:      end,
			ThresholdPct: d.Threshold,
			CreatedBy:    userID(c),
		}
		if req.Name != nil {
			opts.Name = *req.Name
		}
		if req.Goal != nil {
			opts.Goal = *req.Goal
		}
		if req.Capacity != nil {
			opts.Capacity = *req.Capacity
		}
		if req.ThresholdPct != nil {
			opts.ThresholdPct = *req.ThresholdPct
		}
		s, err := sprint.Create(gdb, opts)
		if err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "sprint_created", "sprint", s.ID, map[string]interface{}{"name": s.Name})
		c.JSON(http.StatusCreated, sprintView{Sprint: s})
	}
}

func handleGetSprint(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := db.WithContext(c.Request.Context())
		s, ok := loadSprint(c, gdb)
		if !ok {
			return
		}
		withProgress(c, gdb, http.StatusOK, s)
	}
}

func handleUpdateSprint(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := d.DB.WithContext(c.Request.Context())
		s, ok := loadSprint(c, gdb)
		if !ok {
			return
		}
		var req sprintRequest
		if !bindJSON(c, &req) {
			return
		}
		start, ok := parseDate(c, "start_date", req.StartDate)
		if !ok {
			return
		}
		end, ok := parseDate(c, "end_date", req.EndDate)
		if !ok {
			return
		}
		updated, err := sprint.Update(gdb, s.ID, sprint.UpdateOpts{
			Name:         req.Name,
			Goal:         req.Goal,
			StartDate:    start,
			EndDate:      end,
			Capacity:     req.Capacity,
			ThresholdPct: req.ThresholdPct,
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		if req.ThresholdPct != nil && d.Recomputer != nil {
			d.Recomputer.Recompute(c.Request.Context(), s.ID)
			if updated, err = sprint.Get(gdb, s.ID); err != nil {
				abortWithError(c, err)
				return
			}
		}
		d.record(c, "sprint_updated", "sprint", s.ID, nil)
		withProgress(c, gdb, http.StatusOK, updated)
	}
}

func handleDeleteSprint(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := d.DB.WithContext(c.Request.Context())
		s, ok := loadSprint(c, gdb)
		if !ok {
			return
		}
		if err := sprint.Delete(gdb, s.ID); err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "sprint_deleted", "sprint", s.ID, map[string]interface{}{"name": s.Name})
		c.Status(http.StatusNoContent)
	}
}

// sprintTransition serves start and complete.
func sprintTransition(d Deps, action string, fn func(*gorm.DB, uint, time.Time) (*models.Sprint, error)) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := d.DB.WithContext(c.Request.Context())
		s, ok := loadSprint(c, gdb)
		if !ok {
			return
		}
		updated, err := fn(gdb, s.ID, time.Now().UTC())
		if err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, action, "sprint", s.ID, map[string]interface{}{"status": updated.Status})
		withProgress(c, gdb, http.StatusOK, updated)
	}
}

func handleStartSprint(d Deps) gin.HandlerFunc {
	return sprintTransition(d, "sprint_started", sprint.Start)
}

func handleCompleteSprint(d Deps) gin.HandlerFunc {
	return sprintTransition(d, "sprint_completed", sprint.Complete)
}

func handleSprintBaseline(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := d.DB.WithContext(c.Request.Context())
		s, ok := loadSprint(c, gdb)
		if !ok {
			return
		}
		baseline, err := sprint.SetBaseline(gdb, s.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "sprint_baseline_set", "sprint", s.ID, map[string]interface{}{"baseline_points": baseline})
		scopeStatus(c, gdb, s.ID)
	}
}

func handleResetAlert(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := d.DB.WithContext(c.Request.Context())
		s, ok := loadSprint(c, gdb)
		if !ok {
			return
		}
		if err := scope.ResetAlert(gdb, s.ID); err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "scope_alert_reset", "sprint", s.ID, nil)
		scopeStatus(c, gdb, s.ID)
	}
}

func handleSprintScope(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := db.WithContext(c.Request.Context())
		s, ok := loadSprint(c, gdb)
		if !ok {
			return
		}
		scopeStatus(c, gdb, s.ID)
	}
}

func scopeStatus(c *gin.Context, db *gorm.DB, sprintID uint) {
	r, err := scope.Status(db, sprintID)
	if err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, r)
}

func handleSprintIssues(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := db.WithContext(c.Request.Context())
		s, ok := loadSprint(c, gdb)
		if !ok {
			return
		}
		issues, err := sprint.Issues(gdb, s.ID)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": issues})
	}
}

func handleSprintReport(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		gdb := db.WithContext(c.Request.Context())
		s, ok := loadSprint(c, gdb)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := report.Sprint(gdb, s.ID, &buf); err != nil {
			abortWithError(c, err)
			return
		}
		c.Header("Content-Disposition", fmt.Sprintf(`inline; filename="sprint-%d.pdf"`, s.ID))
		c.Data(http.StatusOK, "application/pdf", buf.Bytes())
	}
}
