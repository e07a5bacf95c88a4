// Package logging builds the structured logger shared by Sprintyard services.
package logging

import (
	"io"
	"log/slog"
	"os"
)

// New returns a JSON logger at Info for env "prod" and a text logger at Debug
// otherwise, writing to stdout.
func New(env string) *slog.Logger {
	return NewWithWriter(env, os.Stdout)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(env string, w io.Writer) *slog.Logger {
	var handler slog.Handler
	if env == "prod" {
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: slog.LevelInfo})
	} else {
		handler = slog.NewTextHandler(w, &slog.HandlerOptions{Level: slog.LevelDebug})
	}
	return slog.New(handler)
}

// Discard returns a logger that drops everything. Used by tests and the MCP
// server, whose stdout carries the protocol.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
