package notify

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/zulandar/sprintyard/internal/logging"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/testutil"
	"gorm.io/gorm"
)

func seedActive(t *testing.T) (*gorm.DB, time.Time) {
	t.Helper()
	gdb := testutil.NewDB(t)
	owner := testutil.User(t, gdb, "ana")
	p := testutil.Project(t, gdb, "WEB", owner)
	b := testutil.Board(t, gdb, p, "Main")

	active := testutil.Sprint(t, gdb, b, owner, testutil.SprintOpts{Name: "Sprint 4", Status: models.SprintActive, Alerted: true})
	testutil.Sprint(t, gdb, b, owner, testutil.SprintOpts{Name: "Next"})

	done := testutil.Issue(t, gdb, b, active, owner, "login", 5)
	if err := gdb.Model(done).Update("status", models.StatusDone).Error; err != nil {
		t.Fatalf("mark done: %v", err)
	}
	testutil.Issue(t, gdb, b, active, owner, "signup", 3)

	end := testutil.Date(2026, 10, 20)
	if err := gdb.Model(active).Update("end_date", end).Error; err != nil {
		t.Fatalf("set end date: %v", err)
	}
	return gdb, time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)
}

func TestBuildDigest(t *testing.T) {
	gdb, now := seedActive(t)

	digests, err := BuildDigest(gdb, now)
	if err != nil {
		t.Fatalf("BuildDigest: %v", err)
	}
	if len(digests) != 1 {
		t.Fatalf("digests = %d, want 1 (planning sprint excluded)", len(digests))
	}
	d := digests[0]
	if d.DonePoints != 5 || d.TotalPoints != 8 || d.DoneCount != 1 || d.IssueCount != 2 {
		t.Errorf("progress = %+v", d)
	}
	if d.DaysRemaining != 4 {
		t.Errorf("DaysRemaining = %d, want 4", d.DaysRemaining)
	}
	if !d.ScopeAlerted {
		t.Error("ScopeAlerted = false")
	}
}

func TestFormatDigest(t *testing.T) {
	now := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	if FormatDigest(nil, now) != nil {
		t.Error("FormatDigest(nil) should be nil")
	}

	e := FormatDigest([]SprintDigest{
		{Name: "A", DonePoints: 5, TotalPoints: 10, DoneCount: 1, IssueCount: 3, DaysRemaining: 2},
		{Name: "B", DaysRemaining: -1},
	}, now)
	if e.Title != "Sprint digest 2026-10-16" || e.Body != "2 active sprints" {
		t.Errorf("title/body = %q/%q", e.Title, e.Body)
	}
	if e.Severity != SeveritySuccess {
		t.Errorf("Severity = %q, want success", e.Severity)
	}
	if e.Fields[0].Value != "5/10 pts (50%), 1/3 issues, 2 days left" {
		t.Errorf("field A = %q", e.Fields[0].Value)
	}
	if strings.Contains(e.Fields[1].Value, "days left") {
		t.Errorf("field B = %q, want no days", e.Fields[1].Value)
	}

	alerted := FormatDigest([]SprintDigest{{Name: "C", ScopeAlerted: true, DaysRemaining: -1}}, now)
	if alerted.Severity != SeverityWarning || !strings.HasSuffix(alerted.Fields[0].Value, "scope alert") {
		t.Errorf("alerted = %+v", alerted)
	}
	if alerted.Body != "1 active sprint" {
		t.Errorf("Body = %q", alerted.Body)
	}
}

func TestDaysUntil(t *testing.T) {
	now := time.Date(2026, 10, 16, 23, 0, 0, 0, time.UTC)
	if got := daysUntil(now, testutil.Date(2026, 10, 17)); got != 1 {
		t.Errorf("daysUntil tomorrow = %d, want 1", got)
	}
	if got := daysUntil(now, testutil.Date(2026, 10, 1)); got != 0 {
		t.Errorf("daysUntil past = %d, want 0", got)
	}
}

func TestScheduler_InvalidExpression(t *testing.T) {
	if _, err := NewScheduler(nil, &recorder{}, logging.Discard(), "every day"); err == nil {
		t.Fatal("expected error for invalid cron expression")
	}
}

func TestScheduler_Next(t *testing.T) {
	s, err := NewScheduler(nil, &recorder{}, logging.Discard(), "0 9 * * 1-5")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	// 2026-10-16 is a Friday; the next weekday 09:00 is Monday the 19th.
	got := s.Next(time.Date(2026, 10, 16, 10, 0, 0, 0, time.UTC))
	want := time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC)
	if !got.Equal(want) {
		t.Errorf("Next = %v, want %v", got, want)
	}
}

func TestScheduler_RunOnce(t *testing.T) {
	gdb, now := seedActive(t)
	n := &recorder{name: "test"}
	s, err := NewScheduler(gdb, n, logging.Discard(), "0 9 * * *")
	if err != nil {
		t.Fatalf("NewScheduler: %v", err)
	}
	s.now = func() time.Time { return now }

	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(n.events) != 1 || n.events[0].Kind != EventSprintDigest {
		t.Fatalf("events = %+v", n.events)
	}
	if n.events[0].Severity != SeverityWarning {
		t.Errorf("Severity = %q, want warning for alerted sprint", n.events[0].Severity)
	}
}

func TestScheduler_RunOnceNoActiveSprints(t *testing.T) {
	gdb := testutil.NewDB(t)
	n := &recorder{name: "test"}
	s, _ := NewScheduler(gdb, n, logging.Discard(), "0 9 * * *")
	if err := s.RunOnce(context.Background()); err != nil {
		t.Fatalf("RunOnce: %v", err)
	}
	if len(n.events) != 0 {
		t.Errorf("events = %d, want 0", len(n.events))
	}
}
