// Package notify delivers Sprintyard events to chat platforms. Delivery is
// always best-effort: callers log failures and carry on.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/zulandar/sprintyard/internal/scope"
)

// EventKind names what happened.
type EventKind string

const (
	EventScopeAlert   EventKind = "scope_alert"
	EventSprintDigest EventKind = "sprint_digest"
)

// Severity values.
const (
	SeverityInfo    = "info"
	SeveritySuccess = "success"
	SeverityWarning = "warning"
	SeverityError   = "error"
)

// Sidebar colors per severity.
const (
	ColorSuccess = "#36a64f"
	ColorInfo    = "#2196f3"
	ColorWarning = "#ff9800"
	ColorError   = "#e53935"
)

// Event is one notification, already formatted for display.
type Event struct {
	Kind      EventKind
	Title     string
	Body      string
	Severity  string
	Fields    []Field
	SprintID  uint
	Timestamp time.Time
}

// Field is a key-value pair shown with an event.
type Field struct {
	Name  string
	Value string
	Short bool // render side-by-side with another field
}

// Color returns the sidebar color for the event's severity.
func (e Event) Color() string {
	switch e.Severity {
	case SeveritySuccess:
		return ColorSuccess
	case SeverityWarning:
		return ColorWarning
	case SeverityError:
		return ColorError
	default:
		return ColorInfo
	}
}

// Notifier delivers events to one destination.
type Notifier interface {
	Name() string
	Send(ctx context.Context, e Event) error
}

// Multi fans an event out to every notifier and joins their errors.
type Multi []Notifier

// Name implements Notifier.
func (m Multi) Name() string { return "multi" }

// Send implements Notifier. Every notifier is tried even when one fails.
func (m Multi) Send(ctx context.Context, e Event) error {
	var errs []error
	for _, n := range m {
		if err := n.Send(ctx, e); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", n.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// ScopeAlertEvent formats a latched scope alert.
func ScopeAlertEvent(r scope.Result) Event {
	return Event{
		Kind:     EventScopeAlert,
		Title:    fmt.Sprintf("Scope creep on %s", r.SprintName),
		Body:     fmt.Sprintf("Sprint grew %.0f%% over its baseline, past the %.0f%% threshold.", r.Ratio*100, r.Threshold*100),
		Severity: SeverityWarning,
		SprintID: r.SprintID,
		Fields: []Field{
			{Name: "Baseline", Value: fmt.Sprintf("%g pts", r.Baseline), Short: true},
			{Name: "Current", Value: fmt.Sprintf("%g pts", r.Current), Short: true},
		},
		Timestamp: time.Now().UTC(),
	}
}

// ScopeAlertHook returns a scope.AlertFunc that sends each latched alert to n.
// Send failures are logged and dropped.
func ScopeAlertHook(n Notifier, log *slog.Logger) scope.AlertFunc {
	return func(ctx context.Context, r scope.Result) {
		if err := n.Send(ctx, ScopeAlertEvent(r)); err != nil {
			log.Warn("scope alert notification failed", "sprint_id", r.SprintID, "notifier", n.Name(), "error", err)
		}
	}
}
