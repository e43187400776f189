package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfigFromEnvPath(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	content := `{
	  "assistant": {"quiet_period_ms": 1500, "admins": ["42"]},
	  "capability": {"provider": "openai", "model": "openai/gpt-5-nano"},
	  "store": {"backend": "redis", "redis": {"addr": "127.0.0.1:6379"}},
	  "channels": {"zalo": {"enabled": true, "message_limit": 120}},
	  "gateway": {"host": "0.0.0.0", "port": 18790},
	  "logging": {"format": "json", "level": "debug", "add_source": true}
	}`
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("TOURDESK_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Logging.Format != "json" {
		t.Fatalf("logging.format = %q, want %q", cfg.Logging.Format, "json")
	}
	if !cfg.Logging.AddSource {
		t.Fatal("logging.add_source = false, want true")
	}
	if cfg.Assistant.QuietPeriodMillis != 1500 {
		t.Fatalf("assistant.quiet_period_ms = %d, want 1500", cfg.Assistant.QuietPeriodMillis)
	}
	if cfg.Assistant.StalenessSeconds != 300 {
		t.Fatalf("assistant.staleness_seconds = %d, want default 300", cfg.Assistant.StalenessSeconds)
	}
	if cfg.Store.Backend != "redis" || cfg.Store.Redis.Addr != "127.0.0.1:6379" {
		t.Fatalf("store = %+v, want redis at 127.0.0.1:6379", cfg.Store)
	}
	if cfg.Channels.Zalo.MessageLimit != 120 {
		t.Fatalf("channels.zalo.message_limit = %d, want 120", cfg.Channels.Zalo.MessageLimit)
	}
	if len(cfg.Assistant.Admins) != 1 || cfg.Assistant.Admins[0] != "42" {
		t.Fatalf("assistant.admins = %v, want [42]", cfg.Assistant.Admins)
	}
}

func TestLoadConfigYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := "assistant:\n  hotline: \"1800 0000\"\nstore:\n  backend: dynamodb\n  dynamodb:\n    table: tourdesk\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config file: %v", err)
	}

	t.Setenv("TOURDESK_CONFIG", path)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Assistant.Hotline != "1800 0000" {
		t.Fatalf("assistant.hotline = %q, want %q", cfg.Assistant.Hotline, "1800 0000")
	}
	if cfg.Store.DynamoDB.Table != "tourdesk" {
		t.Fatalf("store.dynamodb.table = %q, want tourdesk", cfg.Store.DynamoDB.Table)
	}
}

func TestLoadConfigInvalidEnvPath(t *testing.T) {
	t.Setenv("TOURDESK_CONFIG", filepath.Join(t.TempDir(), "missing.json"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config path")
	}
}

func TestEnvOverridesSecrets(t *testing.T) {
	t.Setenv("ZALO_ACCESS_TOKEN", "zalo-token")
	t.Setenv("TELEGRAM_ALLOW_FROM", " 1, ,2 ")
	t.Setenv("TOURDESK_ADMINS", "7")

	cfg := &Config{}
	applyEnvOverrides(cfg)

	if cfg.Channels.Zalo.AccessToken != "zalo-token" {
		t.Fatalf("zalo access token = %q, want zalo-token", cfg.Channels.Zalo.AccessToken)
	}
	if got := cfg.Channels.Telegram.AllowFrom; len(got) != 2 || got[0] != "1" || got[1] != "2" {
		t.Fatalf("telegram allow_from = %v, want [1 2]", got)
	}
	if got := cfg.Assistant.Admins; len(got) != 1 || got[0] != "7" {
		t.Fatalf("admins = %v, want [7]", got)
	}
}

func TestDefaultsFillZeroValues(t *testing.T) {
	t.Parallel()

	cfg := Defaults()
	if cfg.Assistant.QuietPeriodMillis != 5000 {
		t.Fatalf("quiet period = %d, want 5000", cfg.Assistant.QuietPeriodMillis)
	}
	if cfg.Assistant.IdleExpiryHours != 24 {
		t.Fatalf("idle expiry = %d, want 24", cfg.Assistant.IdleExpiryHours)
	}
	if cfg.Store.Backend != "memory" {
		t.Fatalf("store backend = %q, want memory", cfg.Store.Backend)
	}
	if cfg.Channels.Zalo.MessageLimit != 160 {
		t.Fatalf("zalo message limit = %d, want 160", cfg.Channels.Zalo.MessageLimit)
	}
}
