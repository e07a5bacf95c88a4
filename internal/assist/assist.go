// Package assist runs the AI features. Every feature follows the same
// protocol: require quota, render the prompt, call the completion client,
// count the request, parse the reply, then record an audit entry in the
// background. A reply that fails to parse is returned as data, not as an
// error.
package assist

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/zulandar/sprintyard/internal/activity"
	"github.com/zulandar/sprintyard/internal/apperr"
	"github.com/zulandar/sprintyard/internal/completion"
	"github.com/zulandar/sprintyard/internal/config"
	"github.com/zulandar/sprintyard/internal/planner"
	"github.com/zulandar/sprintyard/internal/quota"
	"gorm.io/gorm"
)

// Assistant orchestrates the AI features for one process.
type Assistant struct {
	db       *gorm.DB
	log      *slog.Logger
	client   completion.Client
	quota    *quota.Governor
	recorder *activity.Recorder
	cfg      config.AIConfig
	now      func() time.Time
}

// New returns an Assistant. client may be nil, in which case every feature
// fails with a service-unavailable error. recorder may be nil.
func New(db *gorm.DB, log *slog.Logger, client completion.Client, gov *quota.Governor, recorder *activity.Recorder, cfg config.AIConfig) *Assistant {
	return &Assistant{
		db:       db,
		log:      log,
		client:   client,
		quota:    gov,
		recorder: recorder,
		cfg:      cfg,
		now:      time.Now,
	}
}

// Available reports whether a completion client is configured.
func (a *Assistant) Available() bool {
	return a.client != nil
}

// QuotaView is a project's quota plus service availability.
type QuotaView struct {
	quota.Status
	AIServiceAvailable bool `json:"ai_service_available"`
}

// Quota returns the project's current quota position.
func (a *Assistant) Quota(ctx context.Context, projectID uint) (QuotaView, error) {
	st, err := a.quota.Check(ctx, projectID)
	if err != nil {
		return QuotaView{}, err
	}
	return QuotaView{Status: st, AIServiceAvailable: a.Available()}, nil
}

// Metadata describes one AI call.
type Metadata struct {
	Feature        planner.Feature `json:"feature"`
	Model          string          `json:"model"`
	GeneratedAt    time.Time       `json:"generated_at"`
	QuotaRemaining int             `json:"quota_remaining"`
	Degraded       bool            `json:"degraded"`
	ErrorKind      string          `json:"error_kind,omitempty"`
}

type call struct {
	projectID uint
	userID    uint
	input     planner.Input
	maxTokens int
	summary   map[string]interface{}
}

// complete runs the shared protocol up to the raw reply. The quota is counted
// only once the client has answered.
func (a *Assistant) complete(ctx context.Context, c call) (string, Metadata, error) {
	md := Metadata{Feature: c.input.Feature(), Model: a.cfg.Model}
	if err := c.input.Validate(); err != nil {
		return "", md, err
	}

	st, err := a.quota.Require(ctx, c.projectID)
	if err != nil {
		return "", md, err
	}

	prompt, err := planner.Build(c.input)
	if err != nil {
		return "", md, err
	}

	if a.client == nil {
		return "", md, apperr.Unavailable("AI service is not configured", completion.ErrUnavailable)
	}
	maxTokens := c.maxTokens
	if maxTokens == 0 {
		maxTokens = a.cfg.MaxTokens
	}
	raw, err := a.client.Complete(ctx, completion.Request{
		Prompt:      prompt,
		MaxTokens:   maxTokens,
		Temperature: a.cfg.Temperature,
	})
	if err != nil {
		a.log.Warn("completion failed", "feature", md.Feature, "project_id", c.projectID, "error", err)
		if errors.Is(err, completion.ErrUnavailable) {
			return "", md, apperr.Unavailable("AI service is not configured", err)
		}
		return "", md, apperr.Unavailable("AI service request failed", err)
	}

	md.QuotaRemaining = st.Remaining - 1
	if err := a.quota.Increment(ctx, c.projectID); err != nil {
		a.log.Warn("quota increment failed", "feature", md.Feature, "project_id", c.projectID, "error", err)
	}
	md.GeneratedAt = a.now().UTC()
	return raw, md, nil
}

// finish flags a degraded reply and records the audit entry.
func (a *Assistant) finish(c call, md *Metadata, perr *planner.ResponseError) {
	if perr != nil {
		md.Degraded = true
		md.ErrorKind = string(perr.Kind)
		a.log.Warn("ai response rejected",
			"feature", md.Feature,
			"project_id", c.projectID,
			"error_kind", perr.Kind,
			"error", perr.Message,
		)
	}
	if a.recorder == nil {
		return
	}
	details := map[string]interface{}{"degraded": md.Degraded}
	for k, v := range c.summary {
		details[k] = v
	}
	a.recorder.RecordAsync(activity.Entry{
		ProjectID:  c.projectID,
		UserID:     c.userID,
		Action:     "ai_" + string(md.Feature),
		EntityType: "project",
		EntityID:   c.projectID,
		Details:    details,
	})
}

// result picks the parsed value or the degraded payload for the response body.
func result(parsed interface{}, perr *planner.ResponseError) interface{} {
	if perr != nil {
		return perr.Payload()
	}
	return parsed
}
