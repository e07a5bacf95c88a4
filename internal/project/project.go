// Package project manages users, projects, boards and project membership.
package project

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/db"
	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
)

var keyPattern = regexp.MustCompile(`^[A-Z][A-Z0-9]{1,9}$`)

// roleRank orders roles from least to most privileged.
var roleRank = map[string]int{
	models.RoleViewer: 1,
	models.RoleMember: 2,
	models.RoleAdmin:  3,
	models.RoleOwner:  4,
}

// ValidRole reports whether role is a known member role.
func ValidRole(role string) bool {
	_, ok := roleRank[role]
	return ok
}

// CreateUser registers a user.
func CreateUser(gdb *gorm.DB, name, email string) (*models.User, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(strings.ToLower(email))
	if name == "" {
		return nil, apperr.Validation("name is required")
	}
	if !strings.Contains(email, "@") {
		return nil, apperr.Validation("email %q is invalid", email)
	}
	u := models.User{Name: name, Email: email}
	if err := gdb.Create(&u).Error; err != nil {
		if db.IsDuplicate(err) {
			return nil, apperr.Conflict("email %s is already registered", email)
		}
		return nil, fmt.Errorf("project: create user: %w", err)
	}
	return &u, nil
}

// GetUser loads a user.
func GetUser(gdb *gorm.DB, id uint) (*models.User, error) {
	var u models.User
	if err := gdb.First(&u, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("user", id)
		}
		return nil, fmt.Errorf("project: get user %d: %w", id, err)
	}
	return &u, nil
}

// CreateOpts holds parameters for creating a project.
type CreateOpts struct {
	Key         string
	Name        string
	Description string
	OwnerID     uint
}

// Create creates a project and makes its owner an owner member, atomically.
func Create(gdb *gorm.DB, opts CreateOpts) (*models.Project, error) {
	key := strings.ToUpper(strings.TrimSpace(opts.Key))
	if !keyPattern.MatchString(key) {
		return nil, apperr.Validation("key %q must be 2-10 uppercase letters or digits, starting with a letter", opts.Key)
	}
	if strings.TrimSpace(opts.Name) == "" {
		return nil, apperr.Validation("name is required")
	}
	if _, err := GetUser(gdb, opts.OwnerID); err != nil {
		return nil, err
	}

	p := models.Project{
		Key:         key,
		Name:        strings.TrimSpace(opts.Name),
		Description: opts.Description,
		OwnerID:     opts.OwnerID,
	}
	err := gdb.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&p).Error; err != nil {
			return err
		}
		return tx.Create(&models.ProjectMember{ProjectID: p.ID, UserID: opts.OwnerID, Role: models.RoleOwner}).Error
	})
	if err != nil {
		if db.IsDuplicate(err) {
			return nil, apperr.Conflict("project key %s is taken", key)
		}
		return nil, fmt.Errorf("project: create: %w", err)
	}
	return &p, nil
}

// Get loads a project.
func Get(gdb *gorm.DB, id uint) (*models.Project, error) {
	var p models.Project
	if err := gdb.First(&p, id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("project", id)
		}
		return nil, fmt.Errorf("project: get %d: %w", id, err)
	}
	return &p, nil
}

// ListForUser returns the projects userID belongs to, ordered by key.
func ListForUser(gdb *gorm.DB, userID uint) ([]models.Project, error) {
	var projects []models.Project
	err := gdb.Joins("JOIN project_members ON project_members.project_id = projects.id").
		Where("project_members.user_id = ?", userID).
		Order("projects.key ASC").
		Find(&projects).Error
	if err != nil {
		return nil, fmt.Errorf("project: list for user %d: %w", userID, err)
	}
	return projects, nil
}
