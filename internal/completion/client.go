// Package completion wraps the text-completion API used by the AI features.
package completion

//go:generate mockgen -source=client.go -destination=mock/mock_client.go -package=mock

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when no completion client is configured.
var ErrUnavailable = errors.New("completion: AI service not configured")

// Request is one completion call.
type Request struct {
	Prompt      string
	MaxTokens   int
	Temperature float64
}

// Client executes a prompt and returns the model's raw text.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}
