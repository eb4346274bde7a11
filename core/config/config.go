package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Duration parses human-readable values like "30m" from YAML and env.
type Duration time.Duration

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var raw string
	if err := value.Decode(&raw); err != nil {
		return err
	}
	return d.Decode(raw)
}

// Decode implements envconfig.Decoder.
func (d *Duration) Decode(value string) error {
	parsed, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value, err)
	}
	*d = Duration(parsed)
	return nil
}

// TelegramConfig holds Telegram bot related settings.
type TelegramConfig struct {
	Token   string `yaml:"token" envconfig:"BOT_TOKEN"`
	RunMode string `yaml:"run_mode" envconfig:"TELEGRAM_RUN_MODE"`
	// LongPollTimeoutSeconds defines long polling timeout; 0 -> default
	LongPollTimeoutSeconds int `yaml:"longpoll_timeout_seconds" envconfig:"TELEGRAM_LONGPOLL_TIMEOUT_SECONDS"`
	// Admins is the static allow-list of admin user IDs.
	Admins []int64 `yaml:"admins" envconfig:"ADMIN_IDS"`
	// SessionTTL evicts idle purchase conversations; 0 disables eviction.
	SessionTTL Duration `yaml:"session_ttl" envconfig:"SESSION_TTL"`
}

// WebhookConfig specifies webhook settings.
type WebhookConfig struct {
	URL    string `yaml:"url" envconfig:"WEBHOOK_URL"`
	Listen string `yaml:"listen" envconfig:"WEBHOOK_LISTEN"`
	Port   int    `yaml:"port" envconfig:"WEBHOOK_PORT"`
}

// LoggingConfig defines logging related configuration.
type LoggingConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	Dir     string `yaml:"dir"`
	BotFile string `yaml:"bot_file"`
	// Profile indicates environment profile such as "debug" or "prod".
	Profile string `yaml:"profile"`
}

const (
	// RunModeWebhook selects webhook mode for Telegram updates.
	RunModeWebhook = "webhook"
	// RunModeLongpoll selects long-polling mode for Telegram updates.
	RunModeLongpoll = "longpoll"
)

const (
	// UpdateCallback identifies callback updates for rate limit exclusions.
	UpdateCallback = "callback"
	// UpdateMessage identifies message updates for rate limit exclusions.
	UpdateMessage = "message"
)

// RateLimitConfig holds settings for rate limiting.
// ExcludeUpdates accepts update types to bypass limiting:
// - "callback": Telegram callback button presses
// - "message": standard text messages
type RateLimitConfig struct {
	IntervalMS     int      `yaml:"interval_ms" envconfig:"RATE_LIMIT_INTERVAL_MS"`
	ExcludeUpdates []string `yaml:"exclude_updates" envconfig:"RATE_LIMIT_EXCLUDE_UPDATES"`
}

const (
	// BackendFile selects the JSON snapshot file store.
	BackendFile = "file"
	// BackendPostgres selects the transactional Postgres store.
	BackendPostgres = "postgres"
)

// DatabaseConfig holds connection settings for the postgres backend.
// It mirrors the database package's Config so the config layer stays
// free of driver imports.
type DatabaseConfig struct {
	Host           string `yaml:"host" envconfig:"DB_HOST"`
	Port           string `yaml:"port" envconfig:"DB_PORT"`
	User           string `yaml:"user" envconfig:"DB_USER"`
	Password       string `yaml:"password" envconfig:"DB_PASSWORD"`
	Name           string `yaml:"name" envconfig:"DB_NAME"`
	SSLMode        string `yaml:"sslmode" envconfig:"DB_SSLMODE"`
	MaxConnections int    `yaml:"max_connections" envconfig:"DB_MAX_CONNECTIONS"`
}

// StoreConfig selects and configures the durable snapshot backend.
type StoreConfig struct {
	Backend string `yaml:"backend" envconfig:"STORE_BACKEND"`
	// Dir is the snapshot directory for the file backend.
	Dir      string         `yaml:"dir" envconfig:"STORE_DIR"`
	Database DatabaseConfig `yaml:"database"`
}

// PackageConfig declares one catalog entry.
type PackageConfig struct {
	ID    string `yaml:"id"`
	Label string `yaml:"label"`
	Hours int    `yaml:"hours"`
	Price int    `yaml:"price"`
}

// Config aggregates the application configuration.
type Config struct {
	Telegram  TelegramConfig  `yaml:"telegram"`
	Webhook   WebhookConfig   `yaml:"webhook"`
	Logging   LoggingConfig   `yaml:"logging"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Store     StoreConfig     `yaml:"store"`
	Packages  []PackageConfig `yaml:"packages"`
}

// Load reads configuration from a YAML file and environment variables.
func Load(path string) (*Config, error) {
	var cfg Config

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse YAML config: %w", err)
	}
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process env: %w", err)
	}

	if err := Normalize(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalize performs basic validation of required configuration fields and adjusts defaults.
func Normalize(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}

	if cfg.Telegram.Token == "" {
		return fmt.Errorf("telegram token is required")
	}
	if len(cfg.Telegram.Admins) == 0 {
		return fmt.Errorf("telegram.admins must list at least one admin id")
	}
	if cfg.Telegram.SessionTTL < 0 {
		return fmt.Errorf("telegram.session_ttl must be >= 0")
	}

	rm := strings.ToLower(strings.TrimSpace(cfg.Telegram.RunMode))
	if rm == "" {
		rm = RunModeLongpoll
	}
	if rm == "polling" { // accept alias
		rm = RunModeLongpoll
	}
	switch rm {
	case RunModeWebhook:
		if strings.TrimSpace(cfg.Webhook.URL) == "" {
			return fmt.Errorf("webhook.url is required when telegram.run_mode is 'webhook'")
		}
		if strings.TrimSpace(cfg.Webhook.Listen) == "" {
			return fmt.Errorf("webhook.listen is required when telegram.run_mode is 'webhook'")
		}
		if cfg.Webhook.Port <= 0 {
			return fmt.Errorf("webhook.port must be > 0 when telegram.run_mode is 'webhook'")
		}
	case RunModeLongpoll:
		if cfg.Telegram.LongPollTimeoutSeconds < 0 {
			return fmt.Errorf("telegram.longpoll_timeout_seconds must be >= 0")
		}
	default:
		return fmt.Errorf("invalid telegram.run_mode %q; allowed: webhook, longpoll", cfg.Telegram.RunMode)
	}
	cfg.Telegram.RunMode = rm

	backend := strings.ToLower(strings.TrimSpace(cfg.Store.Backend))
	if backend == "" {
		backend = BackendFile
	}
	switch backend {
	case BackendFile:
		if strings.TrimSpace(cfg.Store.Dir) == "" {
			cfg.Store.Dir = "data"
		}
	case BackendPostgres:
		if strings.TrimSpace(cfg.Store.Database.Host) == "" {
			return fmt.Errorf("store.database.host is required when store.backend is 'postgres'")
		}
		if strings.TrimSpace(cfg.Store.Database.Name) == "" {
			return fmt.Errorf("store.database.name is required when store.backend is 'postgres'")
		}
	default:
		return fmt.Errorf("invalid store.backend %q; allowed: file, postgres", cfg.Store.Backend)
	}
	cfg.Store.Backend = backend

	for i, p := range cfg.Packages {
		if strings.TrimSpace(p.ID) == "" {
			return fmt.Errorf("packages[%d].id must not be empty", i)
		}
		if p.Hours <= 0 {
			return fmt.Errorf("packages[%d].hours must be > 0", i)
		}
		if p.Price <= 0 {
			return fmt.Errorf("packages[%d].price must be > 0", i)
		}
	}

	allowed := map[string]struct{}{
		UpdateCallback: {},
		UpdateMessage:  {},
	}
	for i, v := range cfg.RateLimit.ExcludeUpdates {
		key := strings.ToLower(strings.TrimSpace(v))
		if key == "" {
			continue
		}
		if _, ok := allowed[key]; !ok {
			return fmt.Errorf("invalid rate_limit.exclude_updates value %q; allowed: callback, message", v)
		}
		cfg.RateLimit.ExcludeUpdates[i] = key
	}
	return nil
}
