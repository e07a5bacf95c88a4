package main

import (
	"fmt"
	"log/slog"
	"strconv"

	"github.com/zulandar/sprintyard/internal/config"
	"github.com/zulandar/sprintyard/internal/db"
	"github.com/zulandar/sprintyard/internal/notify"
	"github.com/zulandar/sprintyard/internal/notify/discord"
	"github.com/zulandar/sprintyard/internal/notify/slack"
	"gorm.io/gorm"
)

const defaultConfigPath = "sprintyard.yaml"

// connectFromConfig loads config and returns a GORM DB connection.
func connectFromConfig(configPath string) (*config.Config, *gorm.DB, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	gormDB, err := db.Connect(cfg.Database)
	if err != nil {
		return nil, nil, err
	}

	return cfg, gormDB, nil
}

// buildNotifier returns the configured chat notifiers, or nil when none are
// configured.
func buildNotifier(cfg config.NotifyConfig, log *slog.Logger) (notify.Notifier, error) {
	var multi notify.Multi
	if cfg.Slack.BotToken != "" {
		n, err := slack.New(slack.Opts{BotToken: cfg.Slack.BotToken, ChannelID: cfg.Slack.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	if cfg.Discord.BotToken != "" {
		n, err := discord.New(discord.Opts{BotToken: cfg.Discord.BotToken, ChannelID: cfg.Discord.ChannelID})
		if err != nil {
			return nil, err
		}
		multi = append(multi, n)
	}
	switch len(multi) {
	case 0:
		return nil, nil
	case 1:
		log.Info("notifications enabled", "notifier", multi[0].Name())
		return multi[0], nil
	}
	log.Info("notifications enabled", "notifiers", len(multi))
	return multi, nil
}

// parseID parses a positional id argument.
func parseID(what, s string) (uint, error) {
	v, err := strconv.ParseUint(s, 10, 32)
	if err != nil || v == 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", what, s)
	}
	return uint(v), nil
}
