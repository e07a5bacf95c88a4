package issue

import (
	"context"
	"log/slog"

	"github.com/zulandar/sprintyard/internal/activity"
	"github.com/zulandar/sprintyard/internal/models"
	"github.com/zulandar/sprintyard/internal/scope"
	"gorm.io/gorm"
)

// Service runs issue mutations followed by their side effects: a scope
// recompute of every affected sprint and an activity entry. Side effects
// never fail the mutation.
type Service struct {
	db         *gorm.DB
	log        *slog.Logger
	recorder   *activity.Recorder
	recomputer *scope.Recomputer
}

// NewService returns a Service. recorder and recomputer may be nil.
func NewService(db *gorm.DB, log *slog.Logger, recorder *activity.Recorder, recomputer *scope.Recomputer) *Service {
	return &Service{db: db, log: log, recorder: recorder, recomputer: recomputer}
}

// Create creates an issue on behalf of the reporter in opts.
func (s *Service) Create(ctx context.Context, projectID uint, opts CreateOpts) (*models.Issue, error) {
	is, affected, err := Create(s.db.WithContext(ctx), opts)
	if err != nil {
		return nil, err
	}
	s.after(ctx, projectID, opts.ReporterID, "issue_created", is, affected)
	return is, nil
}

// Update applies p on behalf of userID.
func (s *Service) Update(ctx context.Context, projectID, userID, id uint, p Patch) (*models.Issue, error) {
	is, affected, err := Update(s.db.WithContext(ctx), id, p)
	if err != nil {
		return nil, err
	}
	s.after(ctx, projectID, userID, "issue_updated", is, affected)
	return is, nil
}

// Move assigns an issue to a sprint or the backlog on behalf of userID.
func (s *Service) Move(ctx context.Context, projectID, userID, id uint, sprintID *uint) (*models.Issue, error) {
	is, affected, err := Move(s.db.WithContext(ctx), id, sprintID)
	if err != nil {
		return nil, err
	}
	s.after(ctx, projectID, userID, "issue_moved", is, affected)
	return is, nil
}

// Delete removes an issue on behalf of userID.
func (s *Service) Delete(ctx context.Context, projectID, userID, id uint) error {
	affected, err := Delete(s.db.WithContext(ctx), id)
	if err != nil {
		return err
	}
	s.after(ctx, projectID, userID, "issue_deleted", &models.Issue{ID: id}, affected)
	return nil
}

func (s *Service) after(ctx context.Context, projectID, userID uint, action string, is *models.Issue, affected []uint) {
	if s.recomputer != nil && len(affected) > 0 {
		s.recomputer.Recompute(ctx, affected...)
	}
	if s.recorder != nil {
		s.recorder.RecordAsync(activity.Entry{
			ProjectID:  projectID,
			UserID:     userID,
			Action:     action,
			EntityType: "issue",
			EntityID:   is.ID,
			Details:    map[string]interface{}{"title": is.Title, "affected_sprints": affected},
		})
	}
	s.log.Debug("issue mutated", "action", action, "issue_id", is.ID, "affected_sprints", affected)
}
