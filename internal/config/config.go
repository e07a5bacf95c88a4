// Package config provides YAML-based configuration loading for Sprintyard.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// Config is the top-level Sprintyard configuration, loaded from sprintyard.yaml.
type Config struct {
	Env      string         `yaml:"env"`
	Database DatabaseConfig `yaml:"database"`
	Server   ServerConfig   `yaml:"server"`
	AI       AIConfig       `yaml:"ai"`
	Scope    ScopeConfig    `yaml:"scope"`
	Notify   NotifyConfig   `yaml:"notify"`
	GitHub   GitHubConfig   `yaml:"github"`
}

// DatabaseConfig holds connection settings for the relational store.
type DatabaseConfig struct {
	Driver   string `yaml:"driver"` // mysql, sqlite
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	Path     string `yaml:"path"` // sqlite file
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// AIConfig controls the completion client and the per-project quota.
type AIConfig struct {
	Enabled           bool          `yaml:"enabled"`
	APIKey            string        `yaml:"api_key"`
	BaseURL           string        `yaml:"base_url"`
	Model             string        `yaml:"model"`
	MaxTokens         int           `yaml:"max_tokens"`
	CreationMaxTokens int           `yaml:"creation_max_tokens"`
	Temperature       float64       `yaml:"temperature"`
	Timeout           time.Duration `yaml:"timeout"`
	QuotaLimit        int           `yaml:"quota_limit"`
	QuotaResetDays    int           `yaml:"quota_reset_days"`
}

// ScopeConfig holds scope-creep tracking defaults applied to new sprints.
type ScopeConfig struct {
	DefaultThresholdPct float64 `yaml:"default_threshold_pct"`
}

// NotifyConfig configures outbound chat notifications.
type NotifyConfig struct {
	Slack      SlackConfig   `yaml:"slack"`
	Discord    DiscordConfig `yaml:"discord"`
	DigestCron string        `yaml:"digest_cron"`
}

// SlackConfig holds Slack bot credentials.
type SlackConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// DiscordConfig holds Discord bot credentials.
type DiscordConfig struct {
	BotToken  string `yaml:"bot_token"`
	ChannelID string `yaml:"channel_id"`
}

// GitHubConfig holds credentials for backlog import.
type GitHubConfig struct {
	Token string `yaml:"token"`
}

// cronParser matches the 5-field expressions used by the digest scheduler.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// Load reads a YAML config file from path and returns a validated Config.
// ${VAR} references are expanded from the environment before parsing.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse([]byte(os.ExpandEnv(string(data))))
}

// Parse unmarshals YAML bytes into a validated Config.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Default returns a validated configuration with every default applied,
// backed by a local SQLite file.
func Default() *Config {
	cfg := &Config{Database: DatabaseConfig{Driver: "sqlite"}}
	cfg.applyDefaults()
	return cfg
}

// applyDefaults fills in derived and default values.
func (c *Config) applyDefaults() {
	if c.Env == "" {
		c.Env = "dev"
	}
	if c.Database.Driver == "" {
		c.Database.Driver = "mysql"
	}
	if c.Database.Host == "" {
		c.Database.Host = "127.0.0.1"
	}
	if c.Database.Port == 0 {
		c.Database.Port = 3306
	}
	if c.Database.User == "" {
		c.Database.User = "root"
	}
	if c.Database.Driver == "sqlite" && c.Database.Path == "" {
		c.Database.Path = "sprintyard.db"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.AI.BaseURL == "" {
		c.AI.BaseURL = "https://api.anthropic.com"
	}
	if c.AI.Model == "" {
		c.AI.Model = "claude-sonnet-4-5"
	}
	if c.AI.MaxTokens == 0 {
		c.AI.MaxTokens = 4000
	}
	if c.AI.CreationMaxTokens == 0 {
		c.AI.CreationMaxTokens = 8000
	}
	if c.AI.Temperature == 0 {
		c.AI.Temperature = 0.7
	}
	if c.AI.Timeout == 0 {
		c.AI.Timeout = 60 * time.Second
	}
	if c.AI.QuotaLimit == 0 {
		c.AI.QuotaLimit = 50
	}
	if c.AI.QuotaResetDays == 0 {
		c.AI.QuotaResetDays = 30
	}
	if c.Scope.DefaultThresholdPct == 0 {
		c.Scope.DefaultThresholdPct = 0.20
	}
}

// validate checks that all required fields are present and consistent.
func (c *Config) validate() error {
	var errs []string
	if c.Env != "dev" && c.Env != "prod" {
		errs = append(errs, fmt.Sprintf("env %q must be dev or prod", c.Env))
	}
	switch c.Database.Driver {
	case "mysql":
		if c.Database.Name == "" {
			errs = append(errs, "database.name is required for mysql")
		}
	case "sqlite":
	default:
		errs = append(errs, fmt.Sprintf("database.driver %q must be mysql or sqlite", c.Database.Driver))
	}
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port %d out of range", c.Server.Port))
	}
	if c.AI.MaxTokens < 0 || c.AI.CreationMaxTokens < 0 {
		errs = append(errs, "ai token budgets must be positive")
	}
	if c.AI.Temperature < 0 || c.AI.Temperature > 1 {
		errs = append(errs, fmt.Sprintf("ai.temperature %.2f out of range 0-1", c.AI.Temperature))
	}
	if c.AI.QuotaLimit < 0 {
		errs = append(errs, "ai.quota_limit must be positive")
	}
	if c.AI.QuotaResetDays < 0 {
		errs = append(errs, "ai.quota_reset_days must be positive")
	}
	if c.Scope.DefaultThresholdPct < 0 || c.Scope.DefaultThresholdPct > 10 {
		errs = append(errs, fmt.Sprintf("scope.default_threshold_pct %.2f out of range", c.Scope.DefaultThresholdPct))
	}
	if c.Notify.DigestCron != "" {
		if _, err := cronParser.Parse(c.Notify.DigestCron); err != nil {
			errs = append(errs, fmt.Sprintf("notify.digest_cron: %v", err))
		}
	}
	if (c.Notify.Slack.BotToken == "") != (c.Notify.Slack.ChannelID == "") {
		errs = append(errs, "notify.slack requires both bot_token and channel_id")
	}
	if (c.Notify.Discord.BotToken == "") != (c.Notify.Discord.ChannelID == "") {
		errs = append(errs, "notify.discord requires both bot_token and channel_id")
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

// AIAvailable reports whether the completion client can be constructed.
func (c *Config) AIAvailable() bool {
	return c.AI.Enabled && c.AI.APIKey != ""
}
