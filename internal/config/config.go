package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config is the single JSON document shared by the three processes.
// It is loaded wholesale and rewritten wholesale; last writer wins.
type Config struct {
	SentinelOne SentinelOneConfig `json:"sentinelone"`
	Polling     PollingConfig     `json:"polling"`
	Web         WebConfig         `json:"web"`
	Channels    ChannelsConfig    `json:"channels"`
	Backup      BackupConfig      `json:"backup"`
	AI          AIConfig          `json:"ai"`
	Sanitizer   SanitizerConfig   `json:"sanitizer"`
	Database    DatabaseConfig    `json:"database"`
}

type SentinelOneConfig struct {
	BaseURL       string   `json:"base_url"`
	APIToken      string   `json:"api_token"`
	WebhookSecret string   `json:"webhook_secret"`
	SiteIDs       []string `json:"site_ids"`
}

type PollingConfig struct {
	Enabled         bool `json:"enabled"`
	IntervalSeconds int  `json:"interval_seconds"`
	FetchLimit      int  `json:"fetch_limit"`
}

type WebConfig struct {
	Host   string `json:"host"`
	Port   int    `json:"port"`
	PIN    string `json:"pin"`
	APIKey string `json:"api_key"`
}

type ChannelsConfig struct {
	Telegram TelegramConfig `json:"telegram"`
	Teams    TeamsConfig    `json:"teams"`
	WhatsApp WhatsAppConfig `json:"whatsapp"`
}

type TelegramConfig struct {
	Enabled  bool     `json:"enabled"`
	BotToken string   `json:"bot_token"`
	ChatIDs  []string `json:"chats"`
	Template string   `json:"template"`
}

type TeamsConfig struct {
	Enabled     bool     `json:"enabled"`
	WebhookURLs []string `json:"webhooks"`
	Template    string   `json:"template"`
}

type WhatsAppConfig struct {
	Enabled    bool     `json:"enabled"`
	GatewayURL string   `json:"gateway_url"`
	Session    string   `json:"session_name"`
	Recipients []string `json:"recipients"`
	Template   string   `json:"template"`
}

type BackupConfig struct {
	Enabled       bool   `json:"enabled"`
	Location      string `json:"location"`
	RetentionDays int    `json:"retention_days"`
}

type AIConfig struct {
	Enabled bool   `json:"enabled"`
	APIURL  string `json:"api_url"`
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
}

type SanitizerConfig struct {
	Enabled       bool     `json:"enabled"`
	ExtraPatterns []string `json:"extra_patterns"`
}

type DatabaseConfig struct {
	DSN string `json:"dsn"`
}

// Default returns the configuration used when no file exists yet.
// The dashboard can save over it to bootstrap a fresh install.
func Default() *Config {
	return &Config{
		SentinelOne: SentinelOneConfig{SiteIDs: []string{}},
		Polling:     PollingConfig{Enabled: true, IntervalSeconds: 60, FetchLimit: 10},
		Web:         WebConfig{Host: "0.0.0.0", Port: 8899},
		Channels: ChannelsConfig{
			Telegram: TelegramConfig{ChatIDs: []string{}},
			Teams:    TeamsConfig{WebhookURLs: []string{}},
			WhatsApp: WhatsAppConfig{Session: "default", Recipients: []string{}},
		},
		Backup:    BackupConfig{Enabled: true, Location: "storage", RetentionDays: 30},
		AI:        AIConfig{Model: "gpt-4o-mini", APIURL: "https://api.openai.com/v1/chat/completions"},
		Sanitizer: SanitizerConfig{Enabled: true, ExtraPatterns: []string{}},
	}
}

// Load reads the config document from path. A missing file returns
// defaults so the web process can start and let the operator configure.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return cfg, nil
}

// Save writes the whole document atomically: temp file in the same
// directory, then rename. Mode 0600 since it holds API tokens.
func Save(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create config dir: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".config-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp config: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write config: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to chmod config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp config: %w", err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace config: %w", err)
	}
	return nil
}
