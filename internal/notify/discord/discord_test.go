package discord

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/sprintyard/internal/notify"
)

type mockSession struct {
	sent []*discordgo.MessageSend
	errs []error
}

func (m *mockSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if len(m.errs) > 0 {
		err := m.errs[0]
		m.errs = m.errs[1:]
		return nil, err
	}
	m.sent = append(m.sent, data)
	return &discordgo.Message{ChannelID: channelID}, nil
}

func TestNew_Validation(t *testing.T) {
	if _, err := New(Opts{ChannelID: "1"}); err == nil || !strings.Contains(err.Error(), "bot token") {
		t.Errorf("err = %v, want bot token error", err)
	}
	if _, err := New(Opts{Session: &mockSession{}}); err == nil || !strings.Contains(err.Error(), "channel") {
		t.Errorf("err = %v, want channel error", err)
	}
}

func TestSend(t *testing.T) {
	ms := &mockSession{}
	n, err := New(Opts{ChannelID: "42", Session: ms})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	e := notify.Event{
		Title:     "Sprint digest",
		Body:      "2 active sprints",
		Severity:  notify.SeveritySuccess,
		Fields:    []notify.Field{{Name: "Sprint 4", Value: "10/20 pts"}},
		Timestamp: time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC),
	}
	if err := n.Send(context.Background(), e); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(ms.sent) != 1 {
		t.Fatalf("sent = %d, want 1", len(ms.sent))
	}
	embed := ms.sent[0].Embeds[0]
	if embed.Color != 0x36a64f {
		t.Errorf("Color = %x, want 36a64f", embed.Color)
	}
	if embed.Timestamp != "2026-10-16T09:00:00Z" {
		t.Errorf("Timestamp = %q", embed.Timestamp)
	}
	if len(embed.Fields) != 1 || embed.Fields[0].Name != "Sprint 4" {
		t.Errorf("fields = %+v", embed.Fields)
	}
}

func TestSend_RetriesRateLimit(t *testing.T) {
	rateLimited := &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusTooManyRequests}}
	ms := &mockSession{errs: []error{rateLimited}}
	n, _ := New(Opts{ChannelID: "42", Session: ms})
	n.baseBackoff = time.Millisecond

	if err := n.Send(context.Background(), notify.Event{Title: "x"}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if len(ms.sent) != 1 {
		t.Errorf("sent = %d, want 1 after retry", len(ms.sent))
	}
}

func TestSend_OtherErrorFails(t *testing.T) {
	ms := &mockSession{errs: []error{errors.New("missing access")}}
	n, _ := New(Opts{ChannelID: "42", Session: ms})
	if err := n.Send(context.Background(), notify.Event{Title: "x"}); err == nil {
		t.Fatal("expected error")
	}
}

func TestParseHexColor(t *testing.T) {
	tests := []struct {
		in   string
		want int
	}{
		{"#36a64f", 0x36a64f},
		{"ff9800", 0xff9800},
		{"#E53935", 0xe53935},
		{"", 0},
	}
	for _, tt := range tests {
		if got := parseHexColor(tt.in); got != tt.want {
			t.Errorf("parseHexColor(%q) = %x, want %x", tt.in, got, tt.want)
		}
	}
}
