package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
	"gorm.io/gorm"
)

// cronParser uses standard 5-field cron expressions (minute, hour, dom, month, dow).
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Scheduler posts the sprint digest on a cron schedule.
type Scheduler struct {
	db   *gorm.DB
	n    Notifier
	log  *slog.Logger
	cron *cron.Cron
	now  func() time.Time
}

// NewScheduler validates expr and prepares a scheduler. Nothing runs until Start.
func NewScheduler(db *gorm.DB, n Notifier, log *slog.Logger, expr string) (*Scheduler, error) {
	s := &Scheduler{
		db:   db,
		n:    n,
		log:  log,
		cron: cron.New(cron.WithParser(cronParser), cron.WithLocation(time.UTC)),
		now:  time.Now,
	}
	if _, err := s.cron.AddFunc(expr, func() {
		if err := s.RunOnce(context.Background()); err != nil {
			s.log.Warn("sprint digest failed", "error", err)
		}
	}); err != nil {
		return nil, fmt.Errorf("notify: digest schedule %q: %w", expr, err)
	}
	return s, nil
}

// Next returns the next time the digest fires after t.
func (s *Scheduler) Next(t time.Time) time.Time {
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return time.Time{}
	}
	return entries[0].Schedule.Next(t)
}

// Start runs the schedule in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.log.Info("sprint digest scheduled", "next", s.Next(s.now()))
}

// Stop halts the schedule and waits for a running digest to finish or ctx
// to expire.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
	}
}

// RunOnce builds and sends the digest immediately. No event is sent when
// there are no active sprints.
func (s *Scheduler) RunOnce(ctx context.Context) error {
	now := s.now()
	digests, err := BuildDigest(s.db, now)
	if err != nil {
		return err
	}
	e := FormatDigest(digests, now)
	if e == nil {
		s.log.Debug("sprint digest skipped, no active sprints")
		return nil
	}
	if err := s.n.Send(ctx, *e); err != nil {
		return fmt.Errorf("notify: send digest: %w", err)
	}
	s.log.Info("sprint digest sent", "sprints", len(digests), "notifier", s.n.Name())
	return nil
}
