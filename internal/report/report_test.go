package report

import (
	"bytes"
	"strings"
	"testing"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/testutil"
)

func TestSprint_RendersPDF(t *testing.T) {
	gdb := testutil.NewDB(t)
	owner := testutil.User(t, gdb, "ana")
	p := testutil.Project(t, gdb, "WEB", owner)
	b := testutil.Board(t, gdb, p, "Main")
	s := testutil.Sprint(t, gdb, b, owner, testutil.SprintOpts{
		Name: "Sprint 7", Status: models.SprintActive, Baseline: 10, Alerted: true, Capacity: 20,
	})
	testutil.Issue(t, gdb, b, s, owner, "Checkout flow", 8)
	testutil.Issue(t, gdb, b, s, owner, strings.Repeat("Very long title ", 20), 5)

	var buf bytes.Buffer
	if err := Sprint(gdb, s.ID, &buf); err != nil {
		t.Fatalf("Sprint: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("%PDF-")) {
		t.Fatalf("output is not a PDF: %q", buf.Bytes()[:min(16, buf.Len())])
	}
}

func TestLoad(t *testing.T) {
	gdb := testutil.NewDB(t)
	owner := testutil.User(t, gdb, "ana")
	p := testutil.Project(t, gdb, "WEB", owner)
	b := testutil.Board(t, gdb, p, "Main")
	s := testutil.Sprint(t, gdb, b, owner, testutil.SprintOpts{Baseline: 10})
	testutil.Issue(t, gdb, b, s, owner, "a", 8)
	testutil.Issue(t, gdb, b, s, owner, "b", 5)

	d, err := Load(gdb, s.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if d.Progress.Points != 13 || len(d.Issues) != 2 {
		t.Errorf("progress = %+v, issues = %d", d.Progress, len(d.Issues))
	}
	if d.Scope.Ratio != 0.3 {
		t.Errorf("Ratio = %v, want 0.3", d.Scope.Ratio)
	}
}

func TestSprint_NotFound(t *testing.T) {
	gdb := testutil.NewDB(t)
	var buf bytes.Buffer
	err := Sprint(gdb, 42, &buf)
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Errorf("kind = %v, want not found", apperr.KindOf(err))
	}
	if buf.Len() != 0 {
		t.Error("nothing should be written for a missing sprint")
	}
}
