package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envConfigPath        = "TOURDESK_CONFIG"
	envTelegramBotToken  = "TELEGRAM_BOT_TOKEN"
	envTelegramAllowFrom = "TELEGRAM_ALLOW_FROM"
	envZaloAccessToken   = "ZALO_ACCESS_TOKEN"
	envZaloAppSecret     = "ZALO_APP_SECRET"
	envRedisAddr         = "REDIS_ADDR"
	envRedisPassword     = "REDIS_PASSWORD"
	envSlackWebhookURL   = "SLACK_WEBHOOK_URL"
	envAdmins            = "TOURDESK_ADMINS"
)

// Config is the root runtime configuration.
type Config struct {
	Assistant  AssistantConfig  `mapstructure:"assistant"`
	Capability CapabilityConfig `mapstructure:"capability"`
	Providers  ProvidersConfig  `mapstructure:"providers"`
	Store      StoreConfig      `mapstructure:"store"`
	Channels   ChannelsConfig   `mapstructure:"channels"`
	Leads      LeadsConfig      `mapstructure:"leads"`
	Gateway    GatewayConfig    `mapstructure:"gateway"`
	Logging    LoggingConfig    `mapstructure:"logging"`
}

// AssistantConfig holds the conversation pipeline knobs.
type AssistantConfig struct {
	StalenessSeconds    int      `mapstructure:"staleness_seconds"`
	QuietPeriodMillis   int      `mapstructure:"quiet_period_ms"`
	IdleExpiryHours     int      `mapstructure:"idle_expiry_hours"`
	MaxBufferedMessages int      `mapstructure:"max_buffered_messages"`
	Workers             int      `mapstructure:"workers"`
	DefaultPauseMinutes int      `mapstructure:"default_pause_minutes"`
	Hotline             string   `mapstructure:"hotline"`
	Brand               string   `mapstructure:"brand"`
	ReplayOnResume      bool     `mapstructure:"replay_on_resume"`
	PricingFile         string   `mapstructure:"pricing_file"`
	Admins              []string `mapstructure:"admins"`
}

// CapabilityConfig selects the language capability used for slot inference.
type CapabilityConfig struct {
	Provider       string  `mapstructure:"provider"`
	Model          string  `mapstructure:"model"`
	MaxTokens      int     `mapstructure:"max_tokens"`
	Temperature    float64 `mapstructure:"temperature"`
	TimeoutSeconds int     `mapstructure:"timeout_seconds"`
}

// ProvidersConfig stores per-provider connection settings.
type ProvidersConfig struct {
	OpenAI   OpenAIProviderConfig   `mapstructure:"openai"`
	OpenCode OpenCodeProviderConfig `mapstructure:"opencode"`
}

// OpenAIProviderConfig configures the OpenAI client.
//
// The API key comes from APIKeyEnv, then OPENAI_API_KEY, then the SSM
// parameter named by APIKeyParam.
type OpenAIProviderConfig struct {
	BaseURL      string `mapstructure:"base_url"`
	Organization string `mapstructure:"organization"`
	Project      string `mapstructure:"project"`
	APIKeyEnv    string `mapstructure:"api_key_env"`
	APIKeyParam  string `mapstructure:"api_key_param"`
	AWSRegion    string `mapstructure:"aws_region"`
}

// OpenCodeProviderConfig configures the OpenCode client.
type OpenCodeProviderConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	Username    string `mapstructure:"username"`
	PasswordEnv string `mapstructure:"password_env"`
}

// StoreConfig selects the key-value backend for admission records, sessions,
// pause flags and leads.
type StoreConfig struct {
	Backend  string         `mapstructure:"backend"`
	Janitor  string         `mapstructure:"janitor"`
	Redis    RedisConfig    `mapstructure:"redis"`
	DynamoDB DynamoDBConfig `mapstructure:"dynamodb"`
}

// RedisConfig configures the redis backend.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// DynamoDBConfig configures the DynamoDB backend.
type DynamoDBConfig struct {
	Table    string `mapstructure:"table"`
	Region   string `mapstructure:"region"`
	Endpoint string `mapstructure:"endpoint"`
}

// ChannelsConfig stores transport adapter settings.
type ChannelsConfig struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Zalo     ZaloConfig     `mapstructure:"zalo"`
}

// TelegramConfig configures Telegram long polling.
type TelegramConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Token     string   `mapstructure:"token"`
	AllowFrom []string `mapstructure:"allow_from"`
}

// ZaloConfig configures the Zalo Official Account webhook and send API.
type ZaloConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	Listen          string  `mapstructure:"listen"`
	WebhookPath     string  `mapstructure:"webhook_path"`
	APIBaseURL      string  `mapstructure:"api_base_url"`
	AccessToken     string  `mapstructure:"access_token"`
	AppSecret       string  `mapstructure:"app_secret"`
	MessageLimit    int     `mapstructure:"message_limit"`
	SendRatePerSec  float64 `mapstructure:"send_rate_per_sec"`
	SkipSignature   bool    `mapstructure:"skip_signature"`
	TimeoutSeconds  int     `mapstructure:"timeout_seconds"`
	TypingIndicator bool    `mapstructure:"typing_indicator"`
}

// LeadsConfig configures lead retention and staff notifications.
type LeadsConfig struct {
	RetentionDays   int    `mapstructure:"retention_days"`
	SlackWebhookURL string `mapstructure:"slack_webhook_url"`
	Source          string `mapstructure:"source"`
}

// GatewayConfig configures the status server bind settings.
type GatewayConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// LoggingConfig controls structured log output format and verbosity.
type LoggingConfig struct {
	Format     string `mapstructure:"format"`
	Level      string `mapstructure:"level"`
	AddSource  bool   `mapstructure:"add_source"`
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// Defaults returns a configuration that runs fully in memory.
func Defaults() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

// Load reads .env, resolves the config file, unmarshals it and applies
// environment overrides. A missing config file yields Defaults.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	configPath, err := findConfigPath()
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if configPath != "" {
		v := viper.New()
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
		if err := v.Unmarshal(cfg); err != nil {
			return nil, fmt.Errorf("parse config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	a := &c.Assistant
	if a.StalenessSeconds <= 0 {
		a.StalenessSeconds = 300
	}
	if a.QuietPeriodMillis <= 0 {
		a.QuietPeriodMillis = 5000
	}
	if a.IdleExpiryHours <= 0 {
		a.IdleExpiryHours = 24
	}
	if a.MaxBufferedMessages <= 0 {
		a.MaxBufferedMessages = 20
	}
	if a.Workers <= 0 {
		a.Workers = 64
	}
	if a.DefaultPauseMinutes <= 0 {
		a.DefaultPauseMinutes = 30
	}
	if strings.TrimSpace(a.Hotline) == "" {
		a.Hotline = "1900 636563"
	}
	if strings.TrimSpace(a.Brand) == "" {
		a.Brand = "Passport Lounge"
	}

	if c.Capability.Provider == "" {
		c.Capability.Provider = "none"
	}
	if c.Capability.TimeoutSeconds <= 0 {
		c.Capability.TimeoutSeconds = 8
	}

	if c.Store.Backend == "" {
		c.Store.Backend = "memory"
	}
	if c.Store.Janitor == "" {
		c.Store.Janitor = "@every 1m"
	}
	if c.Store.Redis.Prefix == "" {
		c.Store.Redis.Prefix = "tourdesk:"
	}

	z := &c.Channels.Zalo
	if z.Listen == "" {
		z.Listen = ":8080"
	}
	if z.WebhookPath == "" {
		z.WebhookPath = "/webhook"
	}
	if z.APIBaseURL == "" {
		z.APIBaseURL = "https://openapi.zalo.me/v3.0"
	}
	if z.MessageLimit <= 0 {
		z.MessageLimit = 160
	}
	if z.SendRatePerSec <= 0 {
		z.SendRatePerSec = 5
	}
	if z.TimeoutSeconds <= 0 {
		z.TimeoutSeconds = 10
	}

	if c.Leads.RetentionDays <= 0 {
		c.Leads.RetentionDays = 180
	}
	if c.Leads.Source == "" {
		c.Leads.Source = "chat_bot"
	}
}

// applyEnvOverrides injects secrets and deployment settings on top of file config.
func applyEnvOverrides(cfg *Config) {
	if cfg == nil {
		return
	}

	if token := strings.TrimSpace(os.Getenv(envTelegramBotToken)); token != "" {
		cfg.Channels.Telegram.Token = token
	}
	if raw := strings.TrimSpace(os.Getenv(envTelegramAllowFrom)); raw != "" {
		cfg.Channels.Telegram.AllowFrom = parseCSV(raw)
	}
	if token := strings.TrimSpace(os.Getenv(envZaloAccessToken)); token != "" {
		cfg.Channels.Zalo.AccessToken = token
	}
	if secret := strings.TrimSpace(os.Getenv(envZaloAppSecret)); secret != "" {
		cfg.Channels.Zalo.AppSecret = secret
	}
	if addr := strings.TrimSpace(os.Getenv(envRedisAddr)); addr != "" {
		cfg.Store.Redis.Addr = addr
	}
	if password := os.Getenv(envRedisPassword); password != "" {
		cfg.Store.Redis.Password = password
	}
	if url := strings.TrimSpace(os.Getenv(envSlackWebhookURL)); url != "" {
		cfg.Leads.SlackWebhookURL = url
	}
	if raw := strings.TrimSpace(os.Getenv(envAdmins)); raw != "" {
		cfg.Assistant.Admins = parseCSV(raw)
	}
}

// parseCSV splits comma-separated values and returns a trimmed compact slice.
func parseCSV(input string) []string {
	parts := strings.Split(input, ",")
	clean := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed == "" {
			continue
		}
		clean = append(clean, trimmed)
	}

	return slices.Clip(clean)
}

// findConfigPath resolves the active config file location.
//
// TOURDESK_CONFIG wins and must point to a file. Otherwise the working
// directory is searched; an empty path means no file was found.
func findConfigPath() (string, error) {
	if value := strings.TrimSpace(os.Getenv(envConfigPath)); value != "" {
		if info, err := os.Stat(value); err == nil && !info.IsDir() {
			return value, nil
		}
		return "", fmt.Errorf("%s does not point to a file: %s", envConfigPath, value)
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get current working directory: %w", err)
	}

	for _, dir := range []string{cwd, filepath.Join(cwd, "config")} {
		for _, ext := range []string{"json", "yaml", "yml", "toml"} {
			candidate := filepath.Join(dir, "config."+ext)
			if info, err := os.Stat(candidate); err == nil && !info.IsDir() {
				return candidate, nil
			}
		}
	}

	return "", nil
}
