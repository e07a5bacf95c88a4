package project

import (
	"errors"
	"fmt"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/db"
	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Membership loads userID's membership in projectID.
func Membership(gdb *gorm.DB, projectID, userID uint) (*models.ProjectMember, error) {
	var m models.ProjectMember
	err := gdb.Where("project_id = ? AND user_id = ?", projectID, userID).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.Access("user %d is not a member of project %d", userID, projectID)
		}
		return nil, fmt.Errorf("project: membership %d/%d: %w", projectID, userID, err)
	}
	return &m, nil
}

// RequireMember returns an access error unless userID belongs to projectID.
func RequireMember(gdb *gorm.DB, projectID, userID uint) (*models.ProjectMember, error) {
	if _, err := Get(gdb, projectID); err != nil {
		return nil, err
	}
	return Membership(gdb, projectID, userID)
}

// RequireRole returns an access error unless userID holds at least minRole on projectID.
func RequireRole(gdb *gorm.DB, projectID, userID uint, minRole string) (*models.ProjectMember, error) {
	m, err := RequireMember(gdb, projectID, userID)
	if err != nil {
		return nil, err
	}
	if !HasRole(m.Role, minRole) {
		return nil, apperr.Access("role %s required, user %d is %s", minRole, userID, m.Role)
	}
	return m, nil
}

// HasRole reports whether role is at least as privileged as minRole.
func HasRole(role, minRole string) bool {
	return roleRank[role] > 0 && roleRank[role] >= roleRank[minRole]
}

// Members lists a project's members with their users, ordered by user id.
func Members(gdb *gorm.DB, projectID uint) ([]models.ProjectMember, error) {
	var ms []models.ProjectMember
	if err := gdb.Preload("User").Where("project_id = ?", projectID).
		Order("user_id ASC").Find(&ms).Error; err != nil {
		return nil, fmt.Errorf("project: members of %d: %w", projectID, err)
	}
	return ms, nil
}

// AddMember adds or re-roles userID on projectID. The owner role cannot be granted.
func AddMember(gdb *gorm.DB, projectID, userID uint, role string) (*models.ProjectMember, error) {
	if role == "" {
		role = models.RoleMember
	}
	if !ValidRole(role) || role == models.RoleOwner {
		return nil, apperr.Validation("role %q must be admin, member or viewer", role)
	}
	if _, err := GetUser(gdb, userID); err != nil {
		return nil, err
	}
	if existing, err := Membership(gdb, projectID, userID); err == nil && existing.Role == models.RoleOwner {
		return nil, apperr.Conflict("cannot change the owner's role")
	}

	m := models.ProjectMember{ProjectID: projectID, UserID: userID, Role: role}
	err := gdb.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "project_id"}, {Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"role"}),
	}).Create(&m).Error
	if err != nil {
		if db.IsConstraintViolation(err) {
			return nil, apperr.NotFound("project", projectID)
		}
		return nil, fmt.Errorf("project: add member %d to %d: %w", userID, projectID, err)
	}
	return &m, nil
}

// RemoveMember removes userID from projectID. The owner cannot be removed.
func RemoveMember(gdb *gorm.DB, projectID, userID uint) error {
	m, err := Membership(gdb, projectID, userID)
	if err != nil {
		return apperr.NotFound("member", userID)
	}
	if m.Role == models.RoleOwner {
		return apperr.Conflict("cannot remove the project owner")
	}
	if err := gdb.Where("project_id = ? AND user_id = ?", projectID, userID).
		Delete(&models.ProjectMember{}).Error; err != nil {
		return fmt.Errorf("project: remove member %d from %d: %w", userID, projectID, err)
	}
	return nil
}
