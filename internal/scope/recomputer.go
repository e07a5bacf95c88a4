package scope

import (
	"context"
	"log/slog"

	"gorm.io/gorm"
)

// AlertFunc is called when a recompute latches a sprint's alert.
type AlertFunc func(ctx context.Context, r Result)

// Recomputer runs best-effort recomputes after issue mutations. Failures are
// logged and never returned to the caller.
type Recomputer struct {
	db      *gorm.DB
	log     *slog.Logger
	onAlert AlertFunc
}

// NewRecomputer returns a Recomputer over db.
func NewRecomputer(db *gorm.DB, log *slog.Logger) *Recomputer {
	return &Recomputer{db: db, log: log}
}

// OnAlert registers fn to run when an alert latches.
func (r *Recomputer) OnAlert(fn AlertFunc) {
	r.onAlert = fn
}

// Recompute re-evaluates every listed sprint, in order.
func (r *Recomputer) Recompute(ctx context.Context, sprintIDs ...uint) {
	for _, id := range sprintIDs {
		r.recomputeOne(ctx, id)
	}
}

func (r *Recomputer) recomputeOne(ctx context.Context, id uint) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("scope recompute panicked", "sprint_id", id, "panic", p)
		}
	}()

	res, err := Recompute(r.db.WithContext(ctx), id)
	if err != nil {
		r.log.Warn("scope recompute failed", "sprint_id", id, "error", err)
		return
	}
	if res.Skipped {
		r.log.Debug("scope recompute skipped, no baseline", "sprint_id", id)
		return
	}
	if res.Triggered {
		r.log.Info("scope alert latched",
			"sprint_id", id,
			"baseline_points", res.Baseline,
			"current_points", res.Current,
			"creep_ratio", res.Ratio,
		)
		if r.onAlert != nil {
			r.onAlert(ctx, res)
		}
	}
}
