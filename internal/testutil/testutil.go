// Package testutil provides a migrated SQLite store and fixture builders for tests.
package testutil

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/zulandar/sprintyard/internal/config"
	"github.com/zulandar/sprintyard/internal/db"
	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
)

// NewDB opens a file-backed SQLite database in t.TempDir() with foreign keys
// enforced and every model migrated. A file is used instead of :memory: so
// every pooled connection sees the same database.
func NewDB(t testing.TB) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sprintyard_test.db")
	gormDB, err := db.Connect(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("testutil: connect: %v", err)
	}
	if err := db.AutoMigrate(gormDB); err != nil {
		t.Fatalf("testutil: migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := gormDB.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gormDB
}

// User creates a user with a unique email derived from name.
func User(t testing.TB, gdb *gorm.DB, name string) *models.User {
	t.Helper()
	u := models.User{Name: name, Email: fmt.Sprintf("%s-%d@example.com", name, time.Now().UnixNano())}
	if err := gdb.Create(&u).Error; err != nil {
		t.Fatalf("testutil: create user: %v", err)
	}
	return &u
}

// Project creates a project owned by owner, who is also added as an owner member.
func Project(t testing.TB, gdb *gorm.DB, key string, owner *models.User) *models.Project {
	t.Helper()
	p := models.Project{Key: key, Name: key + " project", OwnerID: owner.ID}
	if err := gdb.Create(&p).Error; err != nil {
		t.Fatalf("testutil: create project: %v", err)
	}
	Member(t, gdb, &p, owner, models.RoleOwner)
	return &p
}

// Member adds user to project with role.
func Member(t testing.TB, gdb *gorm.DB, p *models.Project, u *models.User, role string) {
	t.Helper()
	m := models.ProjectMember{ProjectID: p.ID, UserID: u.ID, Role: role}
	if err := gdb.Create(&m).Error; err != nil {
		t.Fatalf("testutil: add member: %v", err)
	}
}

// Board creates a scrum board on project.
func Board(t testing.TB, gdb *gorm.DB, p *models.Project, name string) *models.Board {
	t.Helper()
	b := models.Board{ProjectID: p.ID, Name: name, Type: "scrum"}
	if err := gdb.Create(&b).Error; err != nil {
		t.Fatalf("testutil: create board: %v", err)
	}
	return &b
}

// SprintOpts controls the scope-tracking fields of a fixture sprint.
type SprintOpts struct {
	Name      string
	Status    string
	Baseline  float64
	Threshold float64
	Alerted   bool
	Capacity  float64
}

// Sprint creates a sprint on board. Zero-valued options default to a
// Planning sprint with a 0.20 threshold.
func Sprint(t testing.TB, gdb *gorm.DB, b *models.Board, creator *models.User, opts SprintOpts) *models.Sprint {
	t.Helper()
	if opts.Name == "" {
		opts.Name = "Sprint"
	}
	if opts.Status == "" {
		opts.Status = models.SprintPlanning
	}
	if opts.Threshold == 0 {
		opts.Threshold = 0.20
	}
	s := models.Sprint{
		BoardID:             b.ID,
		Name:                opts.Name,
		Status:              opts.Status,
		CapacityStoryPoints: opts.Capacity,
		CreatedBy:           creator.ID,
		BaselinePoints:      opts.Baseline,
		ScopeThresholdPct:   opts.Threshold,
		ScopeAlerted:        opts.Alerted,
	}
	if err := gdb.Create(&s).Error; err != nil {
		t.Fatalf("testutil: create sprint: %v", err)
	}
	return &s
}

// Issue creates a Task in To Do on board, optionally in sprint, with points.
func Issue(t testing.TB, gdb *gorm.DB, b *models.Board, sprint *models.Sprint, reporter *models.User, title string, points float64) *models.Issue {
	t.Helper()
	i := models.Issue{
		BoardID:     b.ID,
		Title:       title,
		Type:        models.IssueTask,
		Status:      models.StatusToDo,
		Priority:    "P2",
		StoryPoints: &points,
		ReporterID:  reporter.ID,
	}
	if sprint != nil {
		id := sprint.ID
		i.SprintID = &id
	}
	if err := gdb.Create(&i).Error; err != nil {
		t.Fatalf("testutil: create issue: %v", err)
	}
	return &i
}

// Reload re-reads a sprint from the store.
func Reload(t testing.TB, gdb *gorm.DB, id uint) *models.Sprint {
	t.Helper()
	var s models.Sprint
	if err := gdb.First(&s, id).Error; err != nil {
		t.Fatalf("testutil: reload sprint %d: %v", id, err)
	}
	return &s
}

// Date returns midnight UTC for the given day.
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}
