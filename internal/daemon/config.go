// Package daemon manages the focusbot process lifecycle and configuration.
package daemon

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/focusgroup/focusbot/internal/app/summary"
)

// Config holds all daemon configuration.
type Config struct {
	API        APIConfig        `toml:"api"`
	Telegram   TelegramConfig   `toml:"telegram"`
	Classifier ClassifierConfig `toml:"classifier"`
	Tracker    TrackerConfig    `toml:"tracker"`
	Digest     DigestConfig     `toml:"digest"`
	Storage    StorageConfig    `toml:"storage"`
	Logging    LoggingConfig    `toml:"logging"`
	Telemetry  TelemetryConfig  `toml:"telemetry"`
}

// APIConfig controls the HTTP server.
type APIConfig struct {
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	WebhookSecret string `toml:"webhook_secret"`
	AdminToken    string `toml:"admin_token"`
}

// TelegramConfig controls the Bot API client.
type TelegramConfig struct {
	BotToken string `toml:"bot_token"`
	APIBase  string `toml:"api_base"`
	Timeout  string `toml:"timeout"`
	// MaxRetries bounds redelivery attempts for a failed reply.
	MaxRetries int `toml:"max_retries"`
}

// ClassifierConfig controls message classification.
type ClassifierConfig struct {
	AnthropicAPIKey string `toml:"anthropic_api_key"`
	Model           string `toml:"model"`
	APIBase         string `toml:"api_base"`
	Timeout         string `toml:"timeout"`
	MaxRetries      int    `toml:"max_retries"`
	// CategoriesFile replaces the built-in category keyword rules.
	CategoriesFile string `toml:"categories_file"`
}

// TrackerConfig controls task bookkeeping.
type TrackerConfig struct {
	Timezone             string `toml:"timezone"`
	ConfirmPrivateStarts bool   `toml:"confirm_private_starts"`
	MaxScan              int    `toml:"max_scan"`
}

// DigestConfig controls the daily group digest.
type DigestConfig struct {
	Enabled     bool   `toml:"enabled"`
	At          string `toml:"at"`
	Concurrency int    `toml:"concurrency"`
}

// StorageConfig controls where the database lives.
type StorageConfig struct {
	Dir string `toml:"dir"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// TelemetryConfig controls metrics exposure.
type TelemetryConfig struct {
	Prometheus bool `toml:"prometheus"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Telegram: TelegramConfig{
			APIBase:    "https://api.telegram.org",
			Timeout:    "10s",
			MaxRetries: 5,
		},
		Classifier: ClassifierConfig{
			Model:      "claude-3-haiku-20240307",
			Timeout:    "15s",
			MaxRetries: 3,
		},
		Tracker: TrackerConfig{
			Timezone:             "UTC",
			ConfirmPrivateStarts: true,
			MaxScan:              5000,
		},
		Digest: DigestConfig{
			At:          "21:00",
			Concurrency: 4,
		},
		Storage: StorageConfig{
			Dir: focusbotHome(),
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadConfig reads config from ~/.focusbot/config.toml, falling back to
// defaults, then applies environment overrides for secrets.
func LoadConfig() (Config, error) {
	return LoadConfigFrom(ConfigPath())
}

// LoadConfigFrom reads config from path. A missing file is not an error.
func LoadConfigFrom(path string) (Config, error) {
	cfg := DefaultConfig()

	if _, err := os.Stat(path); err == nil {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	} else if !os.IsNotExist(err) {
		return cfg, fmt.Errorf("stat config: %w", err)
	}

	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	overrides := []struct {
		env string
		dst *string
	}{
		{"TELEGRAM_BOT_TOKEN", &cfg.Telegram.BotToken},
		{"ANTHROPIC_API_KEY", &cfg.Classifier.AnthropicAPIKey},
		{"FOCUSBOT_WEBHOOK_SECRET", &cfg.API.WebhookSecret},
		{"FOCUSBOT_ADMIN_TOKEN", &cfg.API.AdminToken},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.dst = v
		}
	}
}

// Validate rejects values the daemon cannot start with.
func (c Config) Validate() error {
	if c.API.Port <= 0 || c.API.Port > 65535 {
		return fmt.Errorf("api.port %d out of range", c.API.Port)
	}
	if _, err := time.LoadLocation(c.Tracker.Timezone); err != nil {
		return fmt.Errorf("tracker.timezone: %w", err)
	}
	if c.Digest.Enabled {
		if _, _, err := summary.ParseClock(c.Digest.At); err != nil {
			return fmt.Errorf("digest.at: %w", err)
		}
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q: want text or json", c.Logging.Format)
	}
	return nil
}

// SaveConfig writes the config to ~/.focusbot/config.toml.
func SaveConfig(cfg Config) error {
	return SaveConfigTo(ConfigPath(), cfg)
}

// SaveConfigTo writes the config to path.
func SaveConfigTo(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}
	defer f.Close()

	encoder := toml.NewEncoder(f)
	return encoder.Encode(cfg)
}

// ConfigPath is where LoadConfig and SaveConfig look.
func ConfigPath() string {
	return filepath.Join(focusbotHome(), "config.toml")
}

// focusbotHome returns the focusbot data directory.
func focusbotHome() string {
	if env := os.Getenv("FOCUSBOT_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".focusbot")
}

// Home is exported for use by other packages.
func Home() string {
	return focusbotHome()
}

// NewLogger builds the process logger from the logging section.
func NewLogger(cfg LoggingConfig, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(cfg.Level)}
	if strings.EqualFold(cfg.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

func parseLevel(s string) slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// parseDuration parses a duration string, returning a fallback on error.
func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
