package completion

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zulandar/sprintyard/internal/config"
)

func testConfig(url string) config.AIConfig {
	return config.AIConfig{
		Enabled: true,
		APIKey:  "sk-test",
		BaseURL: url,
		Model:   "claude-sonnet-4-5",
		Timeout: 5 * time.Second,
	}
}

func TestNewAnthropic_Unavailable(t *testing.T) {
	tests := []config.AIConfig{
		{Enabled: false, APIKey: "sk"},
		{Enabled: true, APIKey: ""},
	}
	for _, cfg := range tests {
		if _, err := NewAnthropic(cfg); !errors.Is(err, ErrUnavailable) {
			t.Errorf("NewAnthropic(%+v) err = %v, want ErrUnavailable", cfg, err)
		}
	}
}

type sentRequest struct {
	Model       string  `json:"model"`
	MaxTokens   int     `json:"max_tokens"`
	Temperature float64 `json:"temperature"`
	Messages    []struct {
		Role    string `json:"role"`
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
	} `json:"messages"`
}

func messageBody(content, stopReason string) string {
	return `{"id":"msg_1","type":"message","role":"assistant","model":"claude-sonnet-4-5",` +
		`"content":` + content + `,"stop_reason":"` + stopReason + `",` +
		`"usage":{"input_tokens":1,"output_tokens":1}}`
}

func TestComplete_Success(t *testing.T) {
	var got sentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/messages" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-api-key") != "sk-test" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") == "" {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("request body: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, messageBody(`[{"type":"text","text":"{\"a\":"},{"type":"text","text":"1}"}]`, "end_turn"))
	}))
	defer srv.Close()

	c, err := NewAnthropic(testConfig(srv.URL + "/"))
	if err != nil {
		t.Fatalf("NewAnthropic: %v", err)
	}
	text, err := c.Complete(context.Background(), Request{Prompt: "plan it", MaxTokens: 4000, Temperature: 0.7})
	if err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if text != `{"a":1}` {
		t.Errorf("text = %q", text)
	}
	if got.MaxTokens != 4000 || got.Temperature != 0.7 || got.Model != "claude-sonnet-4-5" {
		t.Errorf("request = %+v", got)
	}
	if len(got.Messages) != 1 || got.Messages[0].Role != "user" ||
		len(got.Messages[0].Content) != 1 || got.Messages[0].Content[0].Text != "plan it" {
		t.Errorf("messages = %+v", got.Messages)
	}
}

func TestComplete_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"type":"error","error":{"type":"rate_limit_error","message":"slow down"}}`)
	}))
	defer srv.Close()

	c, _ := NewAnthropic(testConfig(srv.URL), option.WithMaxRetries(0))
	_, err := c.Complete(context.Background(), Request{Prompt: "x", MaxTokens: 10})
	var apiErr *anthropic.Error
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusTooManyRequests {
		t.Errorf("err = %v, want *anthropic.Error with status 429", err)
	}
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "slow down") {
		t.Errorf("err = %v", err)
	}
}

func TestComplete_EmptyContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, messageBody(`[]`, "max_tokens"))
	}))
	defer srv.Close()

	c, _ := NewAnthropic(testConfig(srv.URL))
	_, err := c.Complete(context.Background(), Request{Prompt: "x", MaxTokens: 10})
	if err == nil || !strings.Contains(err.Error(), "max_tokens") {
		t.Errorf("err = %v", err)
	}
}

func TestComplete_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer srv.Close()

	c, _ := NewAnthropic(testConfig(srv.URL), option.WithMaxRetries(0))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.Complete(ctx, Request{Prompt: "x"}); err == nil {
		t.Error("expected error for cancelled context")
	}
}
