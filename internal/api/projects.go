package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sprintyard/internal/activity"
	"github.com/zulandar/sprintyard/internal/project"
	"gorm.io/gorm"
)

func handleCreateUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name  string `json:"name"`
			Email string `json:"email"`
		}
		if !bindJSON(c, &req) {
			return
		}
		u, err := project.CreateUser(db.WithContext(c.Request.Context()), req.Name, req.Email)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, u)
	}
}

func handleGetUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "userId")
		if !ok {
			return
		}
		u, err := project.GetUser(db.WithContext(c.Request.Context()), id)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, u)
	}
}

func handleCreateProject(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Key         string `json:"key"`
			Name        string `json:"name"`
			Description string `json:"description"`
		}
		if !bindJSON(c, &req) {
			return
		}
		p, err := project.Create(db.WithContext(c.Request.Context()), project.CreateOpts{
			Key:         req.Key,
			Name:        req.Name,
			Description: req.Description,
			OwnerID:     userID(c),
		})
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, p)
	}
}

func handleListProjects(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ps, err := project.ListForUser(db.WithContext(c.Request.Context()), userID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": ps})
	}
}

func handleGetProject(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := project.Get(db.WithContext(c.Request.Context()), projectID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, p)
	}
}

func handleListMembers(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		ms, err := project.Members(db.WithContext(c.Request.Context()), projectID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": ms})
	}
}

func handleAddMember(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			UserID uint   `json:"user_id"`
			Role   string `json:"role"`
		}
		if !bindJSON(c, &req) {
			return
		}
		if req.UserID == 0 {
			badRequest(c, "user_id is required")
			return
		}
		m, err := project.AddMember(d.DB.WithContext(c.Request.Context()), projectID(c), req.UserID, req.Role)
		if err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "member_added", "user", req.UserID, map[string]interface{}{"role": m.Role})
		c.JSON(http.StatusCreated, m)
	}
}

func handleRemoveMember(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid, ok := uintParam(c, "userId")
		if !ok {
			return
		}
		if err := project.RemoveMember(d.DB.WithContext(c.Request.Context()), projectID(c), uid); err != nil {
			abortWithError(c, err)
			return
		}
		d.record(c, "member_removed", "user", uid, nil)
		c.Status(http.StatusNoContent)
	}
}

func handleActivity(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		pg, perPage := pagination(c)
		rows, total, err := activity.List(db.WithContext(c.Request.Context()), projectID(c), pg, perPage)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, page{Items: rows, Page: pg, PerPage: perPage, Total: total})
	}
}

func handleListBoards(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		bs, err := project.Boards(db.WithContext(c.Request.Context()), projectID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"items": bs})
	}
}

func handleCreateBoard(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req struct {
			Name string `json:"name"`
			Type string `json:"type"`
		}
		if !bindJSON(c, &req) {
			return
		}
		b, err := project.CreateBoard(db.WithContext(c.Request.Context()), projectID(c), req.Name, req.Type)
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.JSON(http.StatusCreated, b)
	}
}

// record writes an audit entry for the caller in the background.
func (d Deps) record(c *gin.Context, action, entityType string, entityID uint, details interface{}) {
	if d.Recorder == nil {
		return
	}
	d.Recorder.RecordAsync(activity.Entry{
		ProjectID:  projectID(c),
		UserID:     userID(c),
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Details:    details,
	})
}
