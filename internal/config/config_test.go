// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestDefaultConfig verifies that defaultConfig() returns proper defaults
func TestDefaultConfig(t *testing.T) {
	cfg := defaultConfig()

	// Server defaults
	if cfg.Server.Port != 8090 {
		t.Errorf("Server.Port = %d, want 8090", cfg.Server.Port)
	}
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0", cfg.Server.Host)
	}
	if cfg.Server.Timeout != 30*time.Second {
		t.Errorf("Server.Timeout = %v, want 30s", cfg.Server.Timeout)
	}

	// Database defaults to the in-process store
	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %q, want memory", cfg.Database.Driver)
	}
	if cfg.Database.DSN != "" {
		t.Errorf("Database.DSN should be empty by default, got %q", cfg.Database.DSN)
	}

	// Economy defaults
	if cfg.Economy.WelcomeBonusCoins != 100 {
		t.Errorf("Economy.WelcomeBonusCoins = %d, want 100", cfg.Economy.WelcomeBonusCoins)
	}
	if cfg.Economy.CoinUnitPriceMicros != 10000 {
		t.Errorf("Economy.CoinUnitPriceMicros = %d, want 10000", cfg.Economy.CoinUnitPriceMicros)
	}
	if cfg.Economy.CreatorShareBasisPoints != 7000 {
		t.Errorf("Economy.CreatorShareBasisPoints = %d, want 7000", cfg.Economy.CreatorShareBasisPoints)
	}
	if cfg.Economy.Currency != "USD" {
		t.Errorf("Economy.Currency = %q, want USD", cfg.Economy.Currency)
	}

	// Chat defaults
	if cfg.Chat.MaxContentLength != 500 {
		t.Errorf("Chat.MaxContentLength = %d, want 500", cfg.Chat.MaxContentLength)
	}
	if cfg.Chat.HistoryLimit != 50 {
		t.Errorf("Chat.HistoryLimit = %d, want 50", cfg.Chat.HistoryLimit)
	}

	// Rate limit defaults: 5 messages per 10 seconds
	if cfg.RateLimit.MaxMessages != 5 {
		t.Errorf("RateLimit.MaxMessages = %d, want 5", cfg.RateLimit.MaxMessages)
	}
	if cfg.RateLimit.Window != 10*time.Second {
		t.Errorf("RateLimit.Window = %v, want 10s", cfg.RateLimit.Window)
	}
	if cfg.RateLimit.Store != "memory" {
		t.Errorf("RateLimit.Store = %q, want memory", cfg.RateLimit.Store)
	}

	// Relay defaults
	if cfg.Relay.SessionBuffer != 64 {
		t.Errorf("Relay.SessionBuffer = %d, want 64", cfg.Relay.SessionBuffer)
	}
	if cfg.Relay.MaxSessionsPerStream != 10000 {
		t.Errorf("Relay.MaxSessionsPerStream = %d, want 10000", cfg.Relay.MaxSessionsPerStream)
	}
	if cfg.Relay.MaxConsecutiveDrops != 8 {
		t.Errorf("Relay.MaxConsecutiveDrops = %d, want 8", cfg.Relay.MaxConsecutiveDrops)
	}

	// Worker defaults
	if cfg.Outbox.PollInterval != 200*time.Millisecond {
		t.Errorf("Outbox.PollInterval = %v, want 200ms", cfg.Outbox.PollInterval)
	}
	if cfg.Subscriptions.DefaultInterval != 30*24*time.Hour {
		t.Errorf("Subscriptions.DefaultInterval = %v, want 720h", cfg.Subscriptions.DefaultInterval)
	}
	if cfg.Subscriptions.MaxRenewalFailures != 3 {
		t.Errorf("Subscriptions.MaxRenewalFailures = %d, want 3", cfg.Subscriptions.MaxRenewalFailures)
	}
	if cfg.Payouts.MinAmountMicros != 10_000_000 {
		t.Errorf("Payouts.MinAmountMicros = %d, want 10000000", cfg.Payouts.MinAmountMicros)
	}

	// Defaults must always pass validation
	if err := cfg.Validate(); err != nil {
		t.Errorf("defaultConfig() failed validation: %v", err)
	}
}

func TestEnvTransformFunc(t *testing.T) {
	tests := []struct {
		env  string
		want string
	}{
		{"HTTP_PORT", "server.port"},
		{"HTTP_HOST", "server.host"},
		{"DATABASE_DRIVER", "database.driver"},
		{"DATABASE_DSN", "database.dsn"},
		{"LOG_LEVEL", "logging.level"},
		{"WELCOME_BONUS_COINS", "economy.welcome_bonus_coins"},
		{"CREATOR_SHARE_BASIS_POINTS", "economy.creator_share_basis_points"},
		{"CHAT_RATE_LIMIT_MAX", "rate_limit.max_messages"},
		{"CHAT_RATE_LIMIT_WINDOW", "rate_limit.window"},
		{"RELAY_MAX_SESSIONS_PER_STREAM", "relay.max_sessions_per_stream"},
		{"OUTBOX_POLL_INTERVAL", "outbox.poll_interval"},
		{"SUBSCRIPTION_MAX_RENEWAL_FAILURES", "subscriptions.max_renewal_failures"},
		{"PAYOUT_MIN_AMOUNT_MICROS", "payouts.min_amount_micros"},
		{"METRICS_ENABLED", "metrics.enabled"},
		// Unmapped keys are dropped
		{"PATH", ""},
		{"HOME", ""},
		{"RANDOM_UNRELATED_VAR", ""},
	}

	for _, tt := range tests {
		if got := envTransformFunc(tt.env); got != tt.want {
			t.Errorf("envTransformFunc(%q) = %q, want %q", tt.env, got, tt.want)
		}
	}
}

func TestLoadEnvVars(t *testing.T) {
	os.Clearenv()

	os.Setenv("HTTP_PORT", "9000")
	os.Setenv("LOG_LEVEL", "debug")
	os.Setenv("WELCOME_BONUS_COINS", "250")
	os.Setenv("CHAT_RATE_LIMIT_MAX", "10")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want 9000", cfg.Server.Port)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %q, want debug", cfg.Logging.Level)
	}
	if cfg.Economy.WelcomeBonusCoins != 250 {
		t.Errorf("Economy.WelcomeBonusCoins = %d, want 250", cfg.Economy.WelcomeBonusCoins)
	}
	if cfg.RateLimit.MaxMessages != 10 {
		t.Errorf("RateLimit.MaxMessages = %d, want 10", cfg.RateLimit.MaxMessages)
	}

	// Defaults are still applied for unset values
	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want 0.0.0.0 (default)", cfg.Server.Host)
	}
	if cfg.Database.Driver != "memory" {
		t.Errorf("Database.Driver = %q, want memory (default)", cfg.Database.Driver)
	}
}

func TestLoadConfigFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `
server:
  port: 8888
  host: "127.0.0.1"

economy:
  welcome_bonus_coins: 500
  creator_share_basis_points: 8000

logging:
  level: "warn"
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	os.Clearenv()
	os.Setenv(ConfigPathEnvVar, configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 8888 {
		t.Errorf("Server.Port = %d, want 8888", cfg.Server.Port)
	}
	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want 127.0.0.1", cfg.Server.Host)
	}
	if cfg.Economy.WelcomeBonusCoins != 500 {
		t.Errorf("Economy.WelcomeBonusCoins = %d, want 500", cfg.Economy.WelcomeBonusCoins)
	}
	if cfg.Economy.CreatorShareBasisPoints != 8000 {
		t.Errorf("Economy.CreatorShareBasisPoints = %d, want 8000", cfg.Economy.CreatorShareBasisPoints)
	}
	if cfg.Logging.Level != "warn" {
		t.Errorf("Logging.Level = %q, want warn", cfg.Logging.Level)
	}

	// Defaults survive for unset sections
	if cfg.Chat.MaxContentLength != 500 {
		t.Errorf("Chat.MaxContentLength = %d, want 500 (default)", cfg.Chat.MaxContentLength)
	}
}

func TestLoadEnvOverridesFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configContent := `
server:
  port: 8888

logging:
  level: "warn"
`
	configPath := filepath.Join(tmpDir, "config.yaml")
	if err := os.WriteFile(configPath, []byte(configContent), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	os.Clearenv()
	os.Setenv(ConfigPathEnvVar, configPath)
	os.Setenv("HTTP_PORT", "9999")
	os.Setenv("LOG_LEVEL", "error")
	os.Setenv("PAYOUT_MIN_AMOUNT_MICROS", "5000000")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Port != 9999 {
		t.Errorf("Server.Port = %d, want 9999 (env override)", cfg.Server.Port)
	}
	if cfg.Logging.Level != "error" {
		t.Errorf("Logging.Level = %q, want error (env override)", cfg.Logging.Level)
	}
	if cfg.Payouts.MinAmountMicros != 5_000_000 {
		t.Errorf("Payouts.MinAmountMicros = %d, want 5000000 (env override)", cfg.Payouts.MinAmountMicros)
	}
}

func TestLoadCORSOriginsFromEnv(t *testing.T) {
	os.Clearenv()
	os.Setenv("CORS_ORIGINS", "https://emberlive.tv, https://studio.emberlive.tv")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	want := []string{"https://emberlive.tv", "https://studio.emberlive.tv"}
	if len(cfg.Server.CORSOrigins) != len(want) {
		t.Fatalf("Server.CORSOrigins = %v, want %v", cfg.Server.CORSOrigins, want)
	}
	for i := range want {
		if cfg.Server.CORSOrigins[i] != want[i] {
			t.Errorf("Server.CORSOrigins[%d] = %q, want %q", i, cfg.Server.CORSOrigins[i], want[i])
		}
	}
}

func TestFindConfigFile(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "config_test")
	if err != nil {
		t.Fatalf("Failed to create temp dir: %v", err)
	}
	defer os.RemoveAll(tmpDir)

	configPath := filepath.Join(tmpDir, "custom.yaml")
	if err := os.WriteFile(configPath, []byte("server:\n  port: 8090\n"), 0644); err != nil {
		t.Fatalf("Failed to create config file: %v", err)
	}

	os.Clearenv()
	os.Setenv(ConfigPathEnvVar, configPath)
	if got := findConfigFile(); got != configPath {
		t.Errorf("findConfigFile() = %q, want %q", got, configPath)
	}

	// A nonexistent CONFIG_PATH falls through to the default search
	os.Setenv(ConfigPathEnvVar, filepath.Join(tmpDir, "missing.yaml"))
	if got := findConfigFile(); got == filepath.Join(tmpDir, "missing.yaml") {
		t.Errorf("findConfigFile() returned nonexistent path %q", got)
	}
}

func TestValidateRejections(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "port out of range",
			mutate:  func(c *Config) { c.Server.Port = 0 },
			wantErr: "HTTP_PORT",
		},
		{
			name:    "unknown database driver",
			mutate:  func(c *Config) { c.Database.Driver = "sqlite" },
			wantErr: "DATABASE_DRIVER",
		},
		{
			name:    "postgres without dsn",
			mutate:  func(c *Config) { c.Database.Driver = "postgres" },
			wantErr: "DATABASE_DSN",
		},
		{
			name:    "negative welcome bonus",
			mutate:  func(c *Config) { c.Economy.WelcomeBonusCoins = -1 },
			wantErr: "WELCOME_BONUS_COINS",
		},
		{
			name:    "creator share over 100 percent",
			mutate:  func(c *Config) { c.Economy.CreatorShareBasisPoints = 10001 },
			wantErr: "CREATOR_SHARE_BASIS_POINTS",
		},
		{
			name:    "bad currency code",
			mutate:  func(c *Config) { c.Economy.Currency = "DOLLARS" },
			wantErr: "ECONOMY_CURRENCY",
		},
		{
			name:    "zero rate limit window",
			mutate:  func(c *Config) { c.RateLimit.Window = 0 },
			wantErr: "CHAT_RATE_LIMIT_WINDOW",
		},
		{
			name:    "unknown rate limit store",
			mutate:  func(c *Config) { c.RateLimit.Store = "redis" },
			wantErr: "RATE_LIMIT_STORE",
		},
		{
			name:    "badger store without path",
			mutate:  func(c *Config) { c.RateLimit.Store = "badger"; c.RateLimit.BadgerPath = "" },
			wantErr: "RATE_LIMIT_BADGER_PATH",
		},
		{
			name:    "zero relay session buffer",
			mutate:  func(c *Config) { c.Relay.SessionBuffer = 0 },
			wantErr: "RELAY_SESSION_BUFFER",
		},
		{
			name:    "zero max renewal failures",
			mutate:  func(c *Config) { c.Subscriptions.MaxRenewalFailures = 0 },
			wantErr: "SUBSCRIPTION_MAX_RENEWAL_FAILURES",
		},
		{
			name:    "zero payout minimum",
			mutate:  func(c *Config) { c.Payouts.MinAmountMicros = 0 },
			wantErr: "PAYOUT_MIN_AMOUNT_MICROS",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: "LOG_LEVEL",
		},
		{
			name:    "bad log format",
			mutate:  func(c *Config) { c.Logging.Format = "xml" },
			wantErr: "LOG_FORMAT",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := defaultConfig()
			tt.mutate(cfg)

			err := cfg.Validate()
			if err == nil {
				t.Fatalf("Validate() = nil, want error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %q, want it to mention %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoadValidationFailure(t *testing.T) {
	os.Clearenv()
	os.Setenv("HTTP_PORT", "99999")

	if _, err := Load(); err == nil {
		t.Fatal("Load() with out-of-range port should fail validation")
	}
}
