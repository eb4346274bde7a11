package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func validConfig() *Config {
	return &Config{
		Telegram: TelegramConfig{
			Token:  "123:abc",
			Admins: []int64{1},
		},
	}
}

func TestNormalizeDefaults(t *testing.T) {
	cfg := validConfig()
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
	if cfg.Store.Backend != BackendFile {
		t.Fatalf("backend = %q, want %q", cfg.Store.Backend, BackendFile)
	}
	if cfg.Store.Dir != "data" {
		t.Fatalf("store dir = %q, want data", cfg.Store.Dir)
	}
}

func TestNormalizeRunModeAlias(t *testing.T) {
	cfg := validConfig()
	cfg.Telegram.RunMode = "polling"
	if err := Normalize(cfg); err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if cfg.Telegram.RunMode != RunModeLongpoll {
		t.Fatalf("run_mode = %q, want %q", cfg.Telegram.RunMode, RunModeLongpoll)
	}
}

func TestNormalizeRejects(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"missing token", func(c *Config) { c.Telegram.Token = "" }},
		{"no admins", func(c *Config) { c.Telegram.Admins = nil }},
		{"negative session ttl", func(c *Config) { c.Telegram.SessionTTL = Duration(-time.Second) }},
		{"bad run mode", func(c *Config) { c.Telegram.RunMode = "carrier-pigeon" }},
		{"webhook without url", func(c *Config) { c.Telegram.RunMode = RunModeWebhook }},
		{"bad backend", func(c *Config) { c.Store.Backend = "sqlite" }},
		{"postgres without host", func(c *Config) { c.Store.Backend = BackendPostgres }},
		{"package without id", func(c *Config) {
			c.Packages = []PackageConfig{{Label: "x", Hours: 1, Price: 1}}
		}},
		{"package zero price", func(c *Config) {
			c.Packages = []PackageConfig{{ID: "a", Label: "x", Hours: 1}}
		}},
		{"bad rate limit exclusion", func(c *Config) {
			c.RateLimit.ExcludeUpdates = []string{"inline_query"}
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validConfig()
			tc.mutate(cfg)
			if err := Normalize(cfg); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadFromYAML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
telegram:
  token: "123:abc"
  run_mode: longpoll
  admins: [100, 200]
  session_ttl: 30m
store:
  backend: file
  dir: snapshots
packages:
  - id: 3hr
    label: 3 hours
    hours: 3
    price: 80
`)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(cfg.Telegram.Admins) != 2 || cfg.Telegram.Admins[0] != 100 {
		t.Fatalf("admins = %v", cfg.Telegram.Admins)
	}
	if cfg.Telegram.SessionTTL.Std() != 30*time.Minute {
		t.Fatalf("session_ttl = %v", cfg.Telegram.SessionTTL)
	}
	if cfg.Store.Dir != "snapshots" {
		t.Fatalf("store dir = %q", cfg.Store.Dir)
	}
	if len(cfg.Packages) != 1 || cfg.Packages[0].Price != 80 {
		t.Fatalf("packages = %+v", cfg.Packages)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Fatal("expected error")
	}
}
