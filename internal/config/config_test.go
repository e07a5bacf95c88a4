package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const fullYAML = `
env: prod
database:
  driver: mysql
  host: 10.0.0.5
  port: 3307
  user: sprint
  password: secret
  name: sprintyard_prod
server:
  port: 9090
ai:
  enabled: true
  api_key: sk-test
  model: claude-haiku-4-5
  max_tokens: 2000
  creation_max_tokens: 6000
  temperature: 0.3
  timeout: 30s
  quota_limit: 100
  quota_reset_days: 14
scope:
  default_threshold_pct: 0.15
notify:
  slack:
    bot_token: xoxb-1
    channel_id: C123
  digest_cron: "0 9 * * 1-5"
github:
  token: ghp_abc
`

const minimalYAML = `
database:
  name: sprintyard
`

func TestParse_FullConfig(t *testing.T) {
	cfg, err := Parse([]byte(fullYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "prod" {
		t.Errorf("Env = %q, want prod", cfg.Env)
	}
	if cfg.Database.Host != "10.0.0.5" || cfg.Database.Port != 3307 {
		t.Errorf("Database = %s:%d, want 10.0.0.5:3307", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Database.User != "sprint" || cfg.Database.Password != "secret" {
		t.Errorf("Database credentials = %q/%q", cfg.Database.User, cfg.Database.Password)
	}
	if cfg.Server.Port != 9090 {
		t.Errorf("Server.Port = %d, want 9090", cfg.Server.Port)
	}
	if cfg.AI.Model != "claude-haiku-4-5" {
		t.Errorf("AI.Model = %q", cfg.AI.Model)
	}
	if cfg.AI.MaxTokens != 2000 || cfg.AI.CreationMaxTokens != 6000 {
		t.Errorf("AI token budgets = %d/%d, want 2000/6000", cfg.AI.MaxTokens, cfg.AI.CreationMaxTokens)
	}
	if cfg.AI.Temperature != 0.3 {
		t.Errorf("AI.Temperature = %v, want 0.3", cfg.AI.Temperature)
	}
	if cfg.AI.Timeout != 30*time.Second {
		t.Errorf("AI.Timeout = %v, want 30s", cfg.AI.Timeout)
	}
	if cfg.AI.QuotaLimit != 100 || cfg.AI.QuotaResetDays != 14 {
		t.Errorf("quota = %d/%d, want 100/14", cfg.AI.QuotaLimit, cfg.AI.QuotaResetDays)
	}
	if cfg.Scope.DefaultThresholdPct != 0.15 {
		t.Errorf("Scope.DefaultThresholdPct = %v, want 0.15", cfg.Scope.DefaultThresholdPct)
	}
	if cfg.Notify.Slack.ChannelID != "C123" {
		t.Errorf("Notify.Slack.ChannelID = %q", cfg.Notify.Slack.ChannelID)
	}
	if cfg.GitHub.Token != "ghp_abc" {
		t.Errorf("GitHub.Token = %q", cfg.GitHub.Token)
	}
	if !cfg.AIAvailable() {
		t.Error("AIAvailable() = false, want true")
	}
}

func TestParse_MinimalConfig_AppliesDefaults(t *testing.T) {
	cfg, err := Parse([]byte(minimalYAML))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Env != "dev" {
		t.Errorf("Env = %q, want dev (default)", cfg.Env)
	}
	if cfg.Database.Driver != "mysql" {
		t.Errorf("Database.Driver = %q, want mysql (default)", cfg.Database.Driver)
	}
	if cfg.Database.Host != "127.0.0.1" || cfg.Database.Port != 3306 {
		t.Errorf("Database = %s:%d, want 127.0.0.1:3306 (default)", cfg.Database.Host, cfg.Database.Port)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want 8080 (default)", cfg.Server.Port)
	}
	if cfg.AI.QuotaLimit != 50 {
		t.Errorf("AI.QuotaLimit = %d, want 50 (default)", cfg.AI.QuotaLimit)
	}
	if cfg.AI.QuotaResetDays != 30 {
		t.Errorf("AI.QuotaResetDays = %d, want 30 (default)", cfg.AI.QuotaResetDays)
	}
	if cfg.AI.MaxTokens != 4000 || cfg.AI.CreationMaxTokens != 8000 {
		t.Errorf("AI token budgets = %d/%d, want 4000/8000", cfg.AI.MaxTokens, cfg.AI.CreationMaxTokens)
	}
	if cfg.Scope.DefaultThresholdPct != 0.20 {
		t.Errorf("Scope.DefaultThresholdPct = %v, want 0.20 (default)", cfg.Scope.DefaultThresholdPct)
	}
	if cfg.AIAvailable() {
		t.Error("AIAvailable() = true without api key")
	}
}

func TestParse_SQLiteDefaultsPath(t *testing.T) {
	cfg, err := Parse([]byte("database:\n  driver: sqlite\n"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Database.Path != "sprintyard.db" {
		t.Errorf("Database.Path = %q, want sprintyard.db", cfg.Database.Path)
	}
}

func TestParse_ValidationErrors(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{"mysql without name", "database:\n  driver: mysql\n", "database.name is required"},
		{"unknown driver", "database:\n  driver: postgres\n", "must be mysql or sqlite"},
		{"bad env", "env: staging\ndatabase:\n  driver: sqlite\n", "must be dev or prod"},
		{"bad temperature", "database:\n  driver: sqlite\nai:\n  temperature: 1.5\n", "ai.temperature"},
		{"bad cron", "database:\n  driver: sqlite\nnotify:\n  digest_cron: \"not a cron\"\n", "notify.digest_cron"},
		{"half slack", "database:\n  driver: sqlite\nnotify:\n  slack:\n    bot_token: x\n", "notify.slack requires"},
		{"half discord", "database:\n  driver: sqlite\nnotify:\n  discord:\n    channel_id: x\n", "notify.discord requires"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want to contain %q", err.Error(), tt.want)
			}
		})
	}
}

func TestParse_MultipleErrorsJoined(t *testing.T) {
	_, err := Parse([]byte("env: qa\ndatabase:\n  driver: mysql\n"))
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"env", "database.name"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err.Error(), want)
		}
	}
}

func TestParse_InvalidYAML(t *testing.T) {
	_, err := Parse([]byte("database: [unclosed"))
	if err == nil {
		t.Fatal("expected parse error")
	}
	if !strings.Contains(err.Error(), "config: parse") {
		t.Errorf("error = %q, want config: parse prefix", err.Error())
	}
}

func TestLoad_ExpandsEnv(t *testing.T) {
	t.Setenv("SY_TEST_KEY", "sk-from-env")
	dir := t.TempDir()
	path := filepath.Join(dir, "sprintyard.yaml")
	content := "database:\n  driver: sqlite\nai:\n  enabled: true\n  api_key: ${SY_TEST_KEY}\n"
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.AI.APIKey != "sk-from-env" {
		t.Errorf("AI.APIKey = %q, want sk-from-env", cfg.AI.APIKey)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil {
		t.Fatal("expected error for missing file")
	}
	if !strings.Contains(err.Error(), "config: read") {
		t.Errorf("error = %q, want config: read prefix", err.Error())
	}
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Database.Driver != "sqlite" {
		t.Errorf("Driver = %q, want sqlite", cfg.Database.Driver)
	}
	if err := cfg.validate(); err != nil {
		t.Errorf("Default() should validate: %v", err)
	}
}
