package issue

import (
	"fmt"
	"time"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
)

// MaxHoursPerEntry caps a single time log.
const MaxHoursPerEntry = 24

// LogTime records hours worked by userID on an issue.
func LogTime(db *gorm.DB, issueID, userID uint, hours float64, on time.Time, note string) (*models.TimeLog, error) {
	if hours <= 0 || hours > MaxHoursPerEntry {
		return nil, apperr.Validation("hours %.2f out of range (0, %d]", hours, MaxHoursPerEntry)
	}
	if _, err := Get(db, issueID); err != nil {
		return nil, err
	}
	if on.IsZero() {
		on = time.Now().UTC()
	}
	tl := models.TimeLog{IssueID: issueID, UserID: userID, Hours: hours, LoggedOn: on, Note: note}
	if err := db.Create(&tl).Error; err != nil {
		return nil, fmt.Errorf("issue: log time on %d: %w", issueID, err)
	}
	return &tl, nil
}

// TimeLogs lists an issue's time entries, oldest first.
func TimeLogs(db *gorm.DB, issueID uint) ([]models.TimeLog, error) {
	var logs []models.TimeLog
	if err := db.Where("issue_id = ?", issueID).Order("logged_on ASC, id ASC").Find(&logs).Error; err != nil {
		return nil, fmt.Errorf("issue: time logs of %d: %w", issueID, err)
	}
	return logs, nil
}

// TotalHours sums the hours logged on an issue.
func TotalHours(db *gorm.DB, issueID uint) (float64, error) {
	var total float64
	if err := db.Model(&models.TimeLog{}).
		Where("issue_id = ?", issueID).
		Select("COALESCE(SUM(hours), 0)").
		Scan(&total).Error; err != nil {
		return 0, fmt.Errorf("issue: total hours of %d: %w", issueID, err)
	}
	return total, nil
}
