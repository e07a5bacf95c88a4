package slack

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/sprintyard/internal/notify"
)

type mockSlackClient struct {
	mu       sync.Mutex
	channels []string
	options  [][]slackapi.MsgOption
	errs     []error // returned in order, then nil
}

func (m *mockSlackClient) PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return "", "", err
	}
	m.channels = append(m.channels, channelID)
	m.options = append(m.options, options)
	return channelID, "1234567890.123456", nil
}

func sampleEvent() notify.Event {
	return notify.Event{
		Kind:     notify.EventScopeAlert,
		Title:    "Scope creep on Sprint 4",
		Body:     "grew 25%",
		Severity: notify.SeverityWarning,
		Fields:   []notify.Field{{Name: "Baseline", Value: "40 pts", Short: true}},
	}
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "C1"}); err == nil || !strings.Contains(err.Error(), "bot token") {
		t.Errorf("err = %v, want bot token error", err)
	}
	if _, err := New(Opts{BotToken: "xoxb-1"}); err == nil || !strings.Contains(err.Error(), "channel") {
		t.Errorf("err = %v, want channel error", err)
	}
}

func TestSend(t *testing.T) {
	mc := &mockSlackClient{}
	n, err := New(Opts{ChannelID: "C123", Client: mc})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := n.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mc.channels) != 1 || mc.channels[0] != "C123" {
		t.Errorf("channels = %v, want [C123]", mc.channels)
	}
	if len(mc.options[0]) != 2 {
		t.Errorf("options = %d, want text + attachment", len(mc.options[0]))
	}
}

func TestSend_RetriesRateLimit(t *testing.T) {
	mc := &mockSlackClient{errs: []error{&slackapi.RateLimitedError{RetryAfter: time.Millisecond}}}
	n, _ := New(Opts{ChannelID: "C123", Client: mc})

	if err := n.Send(context.Background(), sampleEvent()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(mc.channels) != 1 {
		t.Errorf("posts = %d, want 1 after retry", len(mc.channels))
	}
}

func TestSend_NonRateLimitErrorNotRetried(t *testing.T) {
	mc := &mockSlackClient{errs: []error{errors.New("channel_not_found"), errors.New("unexpected second call")}}
	n, _ := New(Opts{ChannelID: "C123", Client: mc})

	err := n.Send(context.Background(), sampleEvent())
	if err == nil || !strings.Contains(err.Error(), "channel_not_found") {
		t.Fatalf("err = %v, want channel_not_found", err)
	}
	if len(mc.errs) != 1 {
		t.Errorf("client called %d times, want 1", 2-len(mc.errs))
	}
}

func TestEventToAttachment(t *testing.T) {
	att := eventToAttachment(sampleEvent())
	if att.Color != notify.ColorWarning {
		t.Errorf("Color = %q, want warning color", att.Color)
	}
	if att.Fallback != "Scope creep on Sprint 4" || att.Text != "grew 25%" {
		t.Errorf("attachment = %+v", att)
	}
	if len(att.Fields) != 1 || !att.Fields[0].Short {
		t.Errorf("fields = %+v", att.Fields)
	}
}
