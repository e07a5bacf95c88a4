package db

import (
	"fmt"

	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AllModels returns the list of all GORM models for migration.
func AllModels() []interface{} {
	return []interface{}{
		&models.User{},
		&models.Project{},
		&models.ProjectMember{},
		&models.Board{},
		&models.Sprint{},
		&models.Issue{},
		&models.Comment{},
		&models.TimeLog{},
		&models.ActivityLog{},
	}
}

// AutoMigrate creates or updates all tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("db: auto-migrate: %w", err)
	}
	return nil
}

// SeedUser upserts a user by email, used by `sy db init --admin-email`.
func SeedUser(db *gorm.DB, name, email string) (*models.User, error) {
	if email == "" {
		return nil, fmt.Errorf("db: seed user: email is required")
	}
	if name == "" {
		name = email
	}
	u := models.User{Name: name, Email: email}
	result := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&u)
	if result.Error != nil {
		return nil, fmt.Errorf("db: seed user %q: %w", email, result.Error)
	}
	if err := db.Where("email = ?", email).First(&u).Error; err != nil {
		return nil, fmt.Errorf("db: reload user %q: %w", email, err)
	}
	return &u, nil
}
