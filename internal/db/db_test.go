package db

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-sql-driver/mysql"
	"github.com/zulandar/sprintyard/internal/config"
	"github.com/zulandar/sprintyard/internal/models"
)

func TestDSN(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.DatabaseConfig
		database string
		want     string
	}{
		{
			name:     "default local",
			cfg:      config.DatabaseConfig{Host: "127.0.0.1", Port: 3306, User: "root"},
			database: "sprintyard",
			want:     "root@tcp(127.0.0.1:3306)/sprintyard?parseTime=true",
		},
		{
			name:     "with password",
			cfg:      config.DatabaseConfig{Host: "10.0.0.5", Port: 3307, User: "sy", Password: "pw"},
			database: "sprintyard_prod",
			want:     "sy:pw@tcp(10.0.0.5:3307)/sprintyard_prod?parseTime=true",
		},
		{
			name:     "admin without database",
			cfg:      config.DatabaseConfig{Host: "db.internal", Port: 3306, User: "root"},
			database: "",
			want:     "root@tcp(db.internal:3306)/?parseTime=true",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DSN(tt.cfg, tt.database)
			if got != tt.want {
				t.Errorf("DSN() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSQLiteDSN_EnablesForeignKeys(t *testing.T) {
	dsn := SQLiteDSN("/tmp/x.db")
	if !strings.Contains(dsn, "_foreign_keys=on") {
		t.Errorf("SQLiteDSN missing foreign keys: %s", dsn)
	}
}

func TestConnect_UnsupportedDriver(t *testing.T) {
	_, err := Connect(config.DatabaseConfig{Driver: "oracle"})
	if err == nil || !strings.Contains(err.Error(), "unsupported driver") {
		t.Fatalf("err = %v, want unsupported driver", err)
	}
}

func TestConnect_SQLiteAndMigrate(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sy.db")
	gormDB, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}
	for _, m := range AllModels() {
		if !gormDB.Migrator().HasTable(m) {
			t.Errorf("table for %T not created", m)
		}
	}

	// Idempotent.
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("second AutoMigrate: %v", err)
	}
}

func TestSQLite_ForeignKeysEnforced(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fk.db")
	gormDB, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: path})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	err = gormDB.Create(&models.Board{ProjectID: 999, Name: "orphan", Type: "scrum"}).Error
	if err == nil {
		t.Fatal("expected foreign key violation")
	}
	if !IsConstraintViolation(err) {
		t.Errorf("IsConstraintViolation(%v) = false, want true", err)
	}
}

func TestSeedUser_Upserts(t *testing.T) {
	gormDB, err := Connect(config.DatabaseConfig{Driver: "sqlite", Path: filepath.Join(t.TempDir(), "seed.db")})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if err := AutoMigrate(gormDB); err != nil {
		t.Fatalf("AutoMigrate: %v", err)
	}

	u1, err := SeedUser(gormDB, "Ada", "ada@example.com")
	if err != nil {
		t.Fatalf("SeedUser: %v", err)
	}
	u2, err := SeedUser(gormDB, "Ada Lovelace", "ada@example.com")
	if err != nil {
		t.Fatalf("SeedUser again: %v", err)
	}
	if u1.ID != u2.ID {
		t.Errorf("upsert created a second user: %d vs %d", u1.ID, u2.ID)
	}
	if u2.Name != "Ada Lovelace" {
		t.Errorf("Name = %q, want updated name", u2.Name)
	}

	if _, err := SeedUser(gormDB, "x", ""); err == nil {
		t.Error("expected error for empty email")
	}
}

func TestIsConstraintViolation(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"mysql fk", &mysql.MySQLError{Number: 1452, Message: "no referenced row"}, true},
		{"mysql referenced", fmt.Errorf("wrap: %w", &mysql.MySQLError{Number: 1451}), true},
		{"mysql duplicate", &mysql.MySQLError{Number: 1062}, true},
		{"mysql other", &mysql.MySQLError{Number: 1205}, false},
		{"sqlite fk", errors.New("FOREIGN KEY constraint failed"), true},
		{"sqlite unique", errors.New("UNIQUE constraint failed: users.email"), true},
		{"plain", errors.New("connection refused"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsConstraintViolation(tt.err); got != tt.want {
				t.Errorf("IsConstraintViolation() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestIsDuplicate(t *testing.T) {
	if !IsDuplicate(&mysql.MySQLError{Number: 1062}) {
		t.Error("mysql 1062 should be duplicate")
	}
	if IsDuplicate(&mysql.MySQLError{Number: 1452}) {
		t.Error("mysql 1452 is not a duplicate")
	}
	if !IsDuplicate(errors.New("UNIQUE constraint failed: projects.key")) {
		t.Error("sqlite unique should be duplicate")
	}
}

func TestValidateName(t *testing.T) {
	for _, ok := range []string{"sprintyard", "sy_test_1"} {
		if err := validateName(ok); err != nil {
			t.Errorf("validateName(%q) = %v", ok, err)
		}
	}
	for _, bad := range []string{"", "a`b", "drop table;", "db-name"} {
		if err := validateName(bad); err == nil {
			t.Errorf("validateName(%q) = nil, want error", bad)
		}
	}
}
