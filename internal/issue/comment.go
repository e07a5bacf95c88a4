package issue

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
)

// AddComment appends a comment to an issue.
func AddComment(db *gorm.DB, issueID, authorID uint, body string) (*models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperr.Validation("comment body is required")
	}
	if _, err := Get(db, issueID); err != nil {
		return nil, err
	}
	c := models.Comment{IssueID: issueID, AuthorID: authorID, Body: body}
	if err := db.Create(&c).Error; err != nil {
		return nil, fmt.Errorf("issue: add comment to %d: %w", issueID, err)
	}
	return &c, nil
}

// Comments lists an issue's comments, oldest first.
func Comments(db *gorm.DB, issueID uint) ([]models.Comment, error) {
	var cs []models.Comment
	if err := db.Where("issue_id = ?", issueID).Order("id ASC").Find(&cs).Error; err != nil {
		return nil, fmt.Errorf("issue: comments of %d: %w", issueID, err)
	}
	return cs, nil
}

// DeleteComment removes a comment. Only its author may delete it unless
// moderator is set.
func DeleteComment(db *gorm.DB, issueID, commentID, userID uint, moderator bool) error {
	var c models.Comment
	if err := db.Where("id = ? AND issue_id = ?", commentID, issueID).First(&c).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperr.NotFound("comment", commentID)
		}
		return fmt.Errorf("issue: load comment %d: %w", commentID, err)
	}
	if c.AuthorID != userID && !moderator {
		return apperr.Access("only the author or an admin may delete comment %d", commentID)
	}
	if err := db.Delete(&models.Comment{}, commentID).Error; err != nil {
		return fmt.Errorf("issue: delete comment %d: %w", commentID, err)
	}
	return nil
}
