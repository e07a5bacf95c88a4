package notify

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/zulandar/sprintyard/internal/sprint"
	"gorm.io/gorm"
)

// SprintDigest holds the progress of one active sprint.
type SprintDigest struct {
	SprintID      uint
	Name          string
	BoardID       uint
	DonePoints    float64
	TotalPoints   float64
	DoneCount     int
	IssueCount    int
	DaysRemaining int  // -1 when the sprint has no end date
	ScopeAlerted  bool // latched scope-creep alert
}

// BuildDigest collects progress for every active sprint, ordered by id.
func BuildDigest(db *gorm.DB, now time.Time) ([]SprintDigest, error) {
	sprints, err := sprint.ListActive(db)
	if err != nil {
		return nil, fmt.Errorf("notify: digest: %w", err)
	}
	out := make([]SprintDigest, 0, len(sprints))
	for i := range sprints {
		s := &sprints[i]
		p, err := sprint.ProgressOf(db, s.ID)
		if err != nil {
			return nil, fmt.Errorf("notify: digest: %w", err)
		}
		d := SprintDigest{
			SprintID:      s.ID,
			Name:          s.Name,
			BoardID:       s.BoardID,
			DonePoints:    p.DonePoints,
			TotalPoints:   p.Points,
			DoneCount:     p.DoneCount,
			IssueCount:    p.IssueCount,
			DaysRemaining: -1,
			ScopeAlerted:  s.ScopeAlerted,
		}
		if s.EndDate != nil {
			d.DaysRemaining = daysUntil(now, *s.EndDate)
		}
		out = append(out, d)
	}
	return out, nil
}

// daysUntil counts whole UTC days from now to end, never negative.
func daysUntil(now, end time.Time) int {
	from := now.UTC().Truncate(24 * time.Hour)
	to := end.UTC().Truncate(24 * time.Hour)
	days := int(math.Round(to.Sub(from).Hours() / 24))
	if days < 0 {
		return 0
	}
	return days
}

// FormatDigest renders digests as one event. It returns nil when there
// are no active sprints.
func FormatDigest(digests []SprintDigest, now time.Time) *Event {
	if len(digests) == 0 {
		return nil
	}
	var b strings.Builder
	severity := SeveritySuccess
	fields := make([]Field, 0, len(digests))
	for _, d := range digests {
		pct := 0.0
		if d.TotalPoints > 0 {
			pct = d.DonePoints / d.TotalPoints * 100
		}
		value := fmt.Sprintf("%g/%g pts (%.0f%%), %d/%d issues", d.DonePoints, d.TotalPoints, pct, d.DoneCount, d.IssueCount)
		if d.DaysRemaining >= 0 {
			value += fmt.Sprintf(", %d days left", d.DaysRemaining)
		}
		if d.ScopeAlerted {
			value += ", scope alert"
			severity = SeverityWarning
		}
		fields = append(fields, Field{Name: d.Name, Value: value})
	}
	fmt.Fprintf(&b, "%d active sprint", len(digests))
	if len(digests) != 1 {
		b.WriteString("s")
	}
	return &Event{
		Kind:      EventSprintDigest,
		Title:     "Sprint digest " + now.UTC().Format("2006-01-02"),
		Body:      b.String(),
		Severity:  severity,
		Fields:    fields,
		Timestamp: now.UTC(),
	}
}
