// Package scope tracks sprint scope creep: the committed baseline against the
// live sum of story points, with a sticky alert flag that latches once the
// creep ratio reaches the sprint's threshold.
package scope

import (
	"errors"
	"fmt"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
)

// Result is the outcome of evaluating one sprint's scope.
type Result struct {
	SprintID   uint    `json:"sprint_id"`
	SprintName string  `json:"sprint_name"`
	BoardID    uint    `json:"board_id"`
	Baseline   float64 `json:"baseline_points"`
	Current    float64 `json:"current_points"`
	Ratio      float64 `json:"creep_ratio"`
	Threshold  float64 `json:"scope_threshold_pct"`
	Alerted    bool    `json:"scope_alerted"`

	// Skipped is true when the baseline is zero and no ratio exists.
	Skipped bool `json:"skipped"`
	// Triggered is true when this evaluation latched the alert.
	Triggered bool `json:"-"`
}

// Evaluate computes the creep ratio and the next alert state. It never
// clears an alert: once alerted is true the result stays alerted.
func Evaluate(baseline, current, threshold float64, alerted bool) Result {
	r := Result{
		Baseline:  baseline,
		Current:   current,
		Threshold: threshold,
		Alerted:   alerted,
	}
	if baseline == 0 {
		r.Skipped = true
		return r
	}
	r.Ratio = (current - baseline) / baseline
	if !alerted && r.Ratio >= threshold {
		r.Alerted = true
		r.Triggered = true
	}
	return r
}

// CurrentPoints sums story points over the issues in a sprint. Unset points count as zero.
func CurrentPoints(db *gorm.DB, sprintID uint) (float64, error) {
	var total float64
	err := db.Model(&models.Issue{}).
		Where("sprint_id = ?", sprintID).
		Select("COALESCE(SUM(story_points), 0)").
		Scan(&total).Error
	if err != nil {
		return 0, fmt.Errorf("scope: sum points for sprint %d: %w", sprintID, err)
	}
	return total, nil
}

// Status reports the sprint's scope without writing anything.
func Status(db *gorm.DB, sprintID uint) (Result, error) {
	s, err := load(db, sprintID)
	if err != nil {
		return Result{}, err
	}
	current, err := CurrentPoints(db, sprintID)
	if err != nil {
		return Result{}, err
	}
	r := Evaluate(s.BaselinePoints, current, s.ScopeThresholdPct, s.ScopeAlerted)
	// Report the stored flag; only Recompute may latch it.
	r.Alerted = s.ScopeAlerted
	r.Triggered = false
	fill(&r, s)
	return r, nil
}

// Recompute re-evaluates a sprint and latches scope_alerted when the creep
// ratio reaches the threshold. Calling it repeatedly is safe. The latch is a
// single conditional UPDATE with no row lock: a concurrent recompute can only
// set the same value.
func Recompute(db *gorm.DB, sprintID uint) (Result, error) {
	s, err := load(db, sprintID)
	if err != nil {
		return Result{}, err
	}
	current, err := CurrentPoints(db, sprintID)
	if err != nil {
		return Result{}, err
	}
	r := Evaluate(s.BaselinePoints, current, s.ScopeThresholdPct, s.ScopeAlerted)
	fill(&r, s)
	if !r.Triggered {
		return r, nil
	}

	res := db.Model(&models.Sprint{}).
		Where("id = ? AND scope_alerted = ?", sprintID, false).
		Update("scope_alerted", true)
	if res.Error != nil {
		return r, fmt.Errorf("scope: latch alert for sprint %d: %w", sprintID, res.Error)
	}
	if res.RowsAffected == 0 {
		// Someone else latched it first.
		r.Triggered = false
	}
	return r, nil
}

// ResetAlert clears the scope alert. Nothing calls it implicitly.
func ResetAlert(db *gorm.DB, sprintID uint) error {
	if _, err := load(db, sprintID); err != nil {
		return err
	}
	if err := db.Model(&models.Sprint{}).Where("id = ?", sprintID).
		Update("scope_alerted", false).Error; err != nil {
		return fmt.Errorf("scope: reset alert for sprint %d: %w", sprintID, err)
	}
	return nil
}

// SnapshotBaseline sets the sprint's baseline to its current point total and
// returns the new baseline.
func SnapshotBaseline(db *gorm.DB, sprintID uint) (float64, error) {
	if _, err := load(db, sprintID); err != nil {
		return 0, err
	}
	current, err := CurrentPoints(db, sprintID)
	if err != nil {
		return 0, err
	}
	if err := db.Model(&models.Sprint{}).Where("id = ?", sprintID).
		Update("baseline_points", current).Error; err != nil {
		return 0, fmt.Errorf("scope: snapshot baseline for sprint %d: %w", sprintID, err)
	}
	return current, nil
}

// AffectedSprints returns the sprints whose scope an issue change can move.
// A sprint change affects both the old and the new sprint; a points change
// within one sprint affects that sprint only.
func AffectedSprints(oldSprint, newSprint *uint, oldPoints, newPoints *float64) []uint {
	if !sameSprint(oldSprint, newSprint) {
		var ids []uint
		if oldSprint != nil {
			ids = append(ids, *oldSprint)
		}
		if newSprint != nil {
			ids = append(ids, *newSprint)
		}
		return ids
	}
	if newSprint == nil {
		return nil
	}
	if pointsOf(oldPoints) != pointsOf(newPoints) {
		return []uint{*newSprint}
	}
	return nil
}

func sameSprint(a, b *uint) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func pointsOf(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}

func load(db *gorm.DB, sprintID uint) (*models.Sprint, error) {
	var s models.Sprint
	if err := db.First(&s, sprintID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("sprint", sprintID)
		}
		return nil, fmt.Errorf("scope: load sprint %d: %w", sprintID, err)
	}
	return &s, nil
}

func fill(r *Result, s *models.Sprint) {
	r.SprintID = s.ID
	r.SprintName = s.Name
	r.BoardID = s.BoardID
}
