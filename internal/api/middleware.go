package api

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/project"
	"gorm.io/gorm"
)

// Context keys set by the middleware.
const (
	keyLogger    = "sy.logger"
	keyUserID    = "sy.user_id"
	keyProjectID = "sy.project_id"
	keyMember    = "sy.member"
)

// requestLogger logs one line per request and stores log in the context.
func requestLogger(log *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Set(keyLogger, log)
		c.Next()

		attrs := []any{
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
		}
		if uid, ok := c.Get(keyUserID); ok {
			attrs = append(attrs, "user_id", uid)
		}
		switch {
		case c.Writer.Status() >= 500:
			log.Error("request", attrs...)
		case c.Writer.Status() >= 400:
			log.Warn("request", attrs...)
		default:
			log.Info("request", attrs...)
		}
	}
}

func logger(c *gin.Context) *slog.Logger {
	if v, ok := c.Get(keyLogger); ok {
		return v.(*slog.Logger)
	}
	return slog.Default()
}

// requireUser resolves the caller from the X-User-ID header. Authentication
// happens upstream; an absent, malformed or unknown id is 401.
func requireUser(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := c.GetHeader("X-User-ID")
		id, err := strconv.ParseUint(raw, 10, 32)
		if raw == "" || err != nil || id == 0 {
			unauthorized(c)
			return
		}
		if _, err := project.GetUser(db.WithContext(c.Request.Context()), uint(id)); err != nil {
			if apperr.Is(err, apperr.KindNotFound) {
				unauthorized(c)
				return
			}
			abortWithError(c, err)
			return
		}
		c.Set(keyUserID, uint(id))
		c.Next()
	}
}

func unauthorized(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": errorBody{
		Code:    "unauthenticated",
		Message: "a valid X-User-ID header is required",
	}})
}

// requireMember checks the caller belongs to the :projectId project.
func requireMember(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		projectID, ok := uintParam(c, "projectId")
		if !ok {
			return
		}
		m, err := project.RequireMember(db.WithContext(c.Request.Context()), projectID, userID(c))
		if err != nil {
			abortWithError(c, err)
			return
		}
		c.Set(keyProjectID, projectID)
		c.Set(keyMember, m)
		c.Next()
	}
}

// requireRole rejects callers below minRole. It runs after requireMember.
func requireRole(minRole string) gin.HandlerFunc {
	return func(c *gin.Context) {
		m := member(c)
		if !project.HasRole(m.Role, minRole) {
			abortWithError(c, apperr.Access("role %s required, user %d is %s", minRole, m.UserID, m.Role))
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) uint { return c.GetUint(keyUserID) }

func projectID(c *gin.Context) uint { return c.GetUint(keyProjectID) }

func member(c *gin.Context) *models.ProjectMember {
	return c.MustGet(keyMember).(*models.ProjectMember)
}
