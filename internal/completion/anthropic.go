package completion

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/zulandar/sprintyard/internal/config"
)

// Anthropic calls the Anthropic Messages API through the official SDK.
type Anthropic struct {
	client anthropic.Client
	model  string
}

// NewAnthropic returns a client for cfg, or ErrUnavailable when the AI
// features are disabled or no API key is set. opts are applied after the
// options derived from cfg.
func NewAnthropic(cfg config.AIConfig, opts ...option.RequestOption) (*Anthropic, error) {
	if !cfg.Enabled || cfg.APIKey == "" {
		return nil, ErrUnavailable
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 60 * time.Second
	}
	base := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithRequestTimeout(timeout),
		option.WithMaxRetries(2),
	}
	if cfg.BaseURL != "" {
		base = append(base, option.WithBaseURL(strings.TrimRight(cfg.BaseURL, "/")+"/"))
	}
	return &Anthropic{
		client: anthropic.NewClient(append(base, opts...)...),
		model:  cfg.Model,
	}, nil
}

// Complete sends req as a single user message and returns the concatenated
// text blocks of the reply.
func (a *Anthropic) Complete(ctx context.Context, req Request) (string, error) {
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       anthropic.Model(a.model),
		MaxTokens:   int64(req.MaxTokens),
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.Prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", fmt.Errorf("completion: API returned %d: %w", apiErr.StatusCode, err)
		}
		return "", fmt.Errorf("completion: request: %w", err)
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("completion: empty response (stop_reason %q)", msg.StopReason)
	}
	return b.String(), nil
}
