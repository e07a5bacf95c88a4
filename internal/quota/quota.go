// Package quota governs the per-project AI request budget. Each project has a
// counter and a reset anchor; once the anchor is resetDays old the counter
// starts over.
package quota

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
)

// Status is a project's quota position.
type Status struct {
	Limit     int       `json:"quota_limit"`
	Used      int       `json:"quota_used"`
	Remaining int       `json:"quota_remaining"`
	ResetDate time.Time `json:"reset_date"`
}

// Governor checks and increments project quotas.
type Governor struct {
	db        *gorm.DB
	limit     int
	resetDays int
	now       func() time.Time
}

// New returns a Governor allowing limit requests per resetDays-day window.
func New(db *gorm.DB, limit, resetDays int) *Governor {
	return &Governor{db: db, limit: limit, resetDays: resetDays, now: time.Now}
}

// Limit returns the configured per-window request limit.
func (g *Governor) Limit() int {
	return g.limit
}

// Check returns the project's quota, resetting the counter first when the
// anchor is resetDays or more in the past. A project that has never used the
// AI features has no anchor and is reset on first check.
func (g *Governor) Check(ctx context.Context, projectID uint) (Status, error) {
	db := g.db.WithContext(ctx)

	var p models.Project
	if err := db.Select("id", "ai_requests_count", "ai_requests_reset_date").First(&p, projectID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return Status{}, apperr.NotFound("project", projectID)
		}
		return Status{}, fmt.Errorf("quota: load project %d: %w", projectID, err)
	}

	today := dateOf(g.now())
	if p.AIRequestsResetDate == nil || daysBetween(dateOf(*p.AIRequestsResetDate), today) >= g.resetDays {
		if err := db.Model(&models.Project{}).Where("id = ?", projectID).Updates(map[string]interface{}{
			"ai_requests_count":      0,
			"ai_requests_reset_date": today,
		}).Error; err != nil {
			return Status{}, fmt.Errorf("quota: reset project %d: %w", projectID, err)
		}
		return Status{
			Limit:     g.limit,
			Remaining: g.limit,
			ResetDate: today.AddDate(0, 0, g.resetDays),
		}, nil
	}

	remaining := g.limit - p.AIRequestsCount
	if remaining < 0 {
		remaining = 0
	}
	return Status{
		Limit:     g.limit,
		Used:      p.AIRequestsCount,
		Remaining: remaining,
		ResetDate: dateOf(*p.AIRequestsResetDate).AddDate(0, 0, g.resetDays),
	}, nil
}

// Require is Check that fails with a quota_exceeded error when nothing remains.
func (g *Governor) Require(ctx context.Context, projectID uint) (Status, error) {
	st, err := g.Check(ctx, projectID)
	if err != nil {
		return st, err
	}
	if st.Remaining <= 0 {
		return st, apperr.QuotaExceeded(st.ResetDate)
	}
	return st, nil
}

// Increment counts one successful AI request against the project. The update
// is a single relative UPDATE; a concurrent Check/Increment pair on the same
// project may still let one extra request through.
func (g *Governor) Increment(ctx context.Context, projectID uint) error {
	res := g.db.WithContext(ctx).Model(&models.Project{}).
		Where("id = ?", projectID).
		Update("ai_requests_count", gorm.Expr("ai_requests_count + ?", 1))
	if res.Error != nil {
		return fmt.Errorf("quota: increment project %d: %w", projectID, res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("project", projectID)
	}
	return nil
}

func dateOf(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func daysBetween(from, to time.Time) int {
	return int(to.Sub(from).Hours() / 24)
}
