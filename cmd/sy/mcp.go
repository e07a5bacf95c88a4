package main

import (
	"fmt"

	"github.com/mark3labs/mcp-go/server"
	"github.com/spf13/cobra"
	"github.com/zulandar/sprintyard/internal/logging"
	"github.com/zulandar/sprintyard/internal/mcptools"
	"github.com/zulandar/sprintyard/internal/notify"
	"github.com/zulandar/sprintyard/internal/quota"
	"github.com/zulandar/sprintyard/internal/scope"
)

func newMCPCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve sprint and quota tools over MCP on stdio",
		Long: `Runs a Model Context Protocol server on stdin/stdout exposing read-mostly
tools: sprint_scope, sprint_issues and quota_status. Nothing else is written
to stdout while serving.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMCP(configPath)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Sprintyard config file")
	return cmd
}

func runMCP(configPath string) error {
	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}

	// stdout carries the protocol.
	log := logging.Discard()
	var onAlert scope.AlertFunc
	n, err := buildNotifier(cfg.Notify, log)
	if err != nil {
		return err
	}
	if n != nil {
		onAlert = notify.ScopeAlertHook(n, log)
	}

	s := mcptools.NewServer(gormDB, quota.New(gormDB, cfg.AI.QuotaLimit, cfg.AI.QuotaResetDays), onAlert, Version)
	if err := server.ServeStdio(s); err != nil {
		return fmt.Errorf("mcp: %w", err)
	}
	return nil
}
