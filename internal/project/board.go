package project

import (
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/models"
	"gorm.io/gorm"
)

// Board types.
const (
	BoardScrum  = "scrum"
	BoardKanban = "kanban"
)

// CreateBoard adds a board to a project.
func CreateBoard(gdb *gorm.DB, projectID uint, name, boardType string) (*models.Board, error) {
	if strings.TrimSpace(name) == "" {
		return nil, apperr.Validation("board name is required")
	}
	if boardType == "" {
		boardType = BoardScrum
	}
	if boardType != BoardScrum && boardType != BoardKanban {
		return nil, apperr.Validation("board type %q must be scrum or kanban", boardType)
	}
	if _, err := Get(gdb, projectID); err != nil {
		return nil, err
	}
	b := models.Board{ProjectID: projectID, Name: strings.TrimSpace(name), Type: boardType}
	if err := gdb.Create(&b).Error; err != nil {
		return nil, fmt.Errorf("project: create board: %w", err)
	}
	return &b, nil
}

// Boards lists a project's boards.
func Boards(gdb *gorm.DB, projectID uint) ([]models.Board, error) {
	var bs []models.Board
	if err := gdb.Where("project_id = ?", projectID).Order("id ASC").Find(&bs).Error; err != nil {
		return nil, fmt.Errorf("project: boards of %d: %w", projectID, err)
	}
	return bs, nil
}

// GetBoard loads a board and checks that it belongs to projectID.
func GetBoard(gdb *gorm.DB, projectID, boardID uint) (*models.Board, error) {
	var b models.Board
	if err := gdb.First(&b, boardID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.NotFound("board", boardID)
		}
		return nil, fmt.Errorf("project: get board %d: %w", boardID, err)
	}
	if projectID != 0 && b.ProjectID != projectID {
		return nil, apperr.NotFound("board", boardID)
	}
	return &b, nil
}

// ProjectOfBoard returns the project id that owns boardID.
func ProjectOfBoard(gdb *gorm.DB, boardID uint) (uint, error) {
	b, err := GetBoard(gdb, 0, boardID)
	if err != nil {
		return 0, err
	}
	return b.ProjectID, nil
}
