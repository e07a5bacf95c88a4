// Package activity records the project audit trail.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
)

// Entry is one event to record.
type Entry struct {
	ProjectID  uint
	UserID     uint
	Action     string
	EntityType string
	EntityID   uint
	Details    interface{}
}

// Record writes an entry synchronously.
func Record(db *gorm.DB, e Entry) (*models.ActivityLog, error) {
	if e.ProjectID == 0 {
		return nil, fmt.Errorf("activity: project is required")
	}
	if e.Action == "" {
		return nil, fmt.Errorf("activity: action is required")
	}

	details := "{}"
	if e.Details != nil {
		b, err := json.Marshal(e.Details)
		if err != nil {
			return nil, fmt.Errorf("activity: marshal details: %w", err)
		}
		details = string(b)
	}

	row := models.ActivityLog{
		ProjectID:  e.ProjectID,
		UserID:     e.UserID,
		Action:     e.Action,
		EntityType: e.EntityType,
		EntityID:   e.EntityID,
		Details:    details,
		CreatedAt:  time.Now(),
	}
	if err := db.Create(&row).Error; err != nil {
		return nil, fmt.Errorf("activity: record %s: %w", e.Action, err)
	}
	return &row, nil
}

// List returns a page of a project's activity, newest first, and the total count.
func List(db *gorm.DB, projectID uint, page, perPage int) ([]models.ActivityLog, int64, error) {
	q := db.Model(&models.ActivityLog{}).Where("project_id = ?", projectID)

	var total int64
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("activity: count project %d: %w", projectID, err)
	}

	var rows []models.ActivityLog
	if err := q.Order("created_at DESC, id DESC").
		Offset((page - 1) * perPage).Limit(perPage).
		Find(&rows).Error; err != nil {
		return nil, 0, fmt.Errorf("activity: list project %d: %w", projectID, err)
	}
	return rows, total, nil
}

// Recorder writes entries in the background after the caller's work is done.
// Failures are logged, never returned.
type Recorder struct {
	db  *gorm.DB
	log *slog.Logger
	wg  sync.WaitGroup
}

// NewRecorder returns a Recorder over db.
func NewRecorder(db *gorm.DB, log *slog.Logger) *Recorder {
	return &Recorder{db: db, log: log}
}

// RecordAsync writes e on its own goroutine. The write is detached from the
// request context so it survives the response being sent.
func (r *Recorder) RecordAsync(e Entry) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		defer func() {
			if p := recover(); p != nil {
				r.log.Error("activity record panicked", "action", e.Action, "panic", p)
			}
		}()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if _, err := Record(r.db.WithContext(ctx), e); err != nil {
			r.log.Warn("activity record failed",
				"project_id", e.ProjectID,
				"action", e.Action,
				"error", err,
			)
		}
	}()
}

// Wait blocks until every pending RecordAsync has finished.
func (r *Recorder) Wait() {
	r.wg.Wait()
}
