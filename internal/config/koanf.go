// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// DefaultConfigPaths lists the paths where config files are searched in
// order of priority. The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/emberlive/config.yaml",
	"/etc/emberlive/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// defaultConfig returns a Config with all defaults populated. Defaults are
// applied first, then overridden by the config file and env vars.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:        "0.0.0.0",
			Port:        8090,
			Timeout:     30 * time.Second,
			CORSOrigins: []string{"*"},
		},
		Database: DatabaseConfig{
			Driver:   "memory",
			DSN:      "",
			MaxConns: 0, // pool default
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
		Economy: EconomyConfig{
			WelcomeBonusCoins:       100,
			CoinUnitPriceMicros:     10000, // $0.01 per coin
			CreatorShareBasisPoints: 7000,  // 70% to the creator
			MaxCoinsPerGift:         1_000_000,
			Currency:                "USD",
		},
		Chat: ChatConfig{
			MaxContentLength: 500,
			HistoryLimit:     50,
		},
		RateLimit: RateLimitConfig{
			MaxMessages: 5,
			Window:      10 * time.Second,
			Store:       "memory",
			BadgerPath:  "/data/ratelimit",
		},
		Relay: RelayConfig{
			BroadcastBuffer:      256,
			SessionBuffer:        64,
			MaxSessionsPerStream: 10000,
			MaxConsecutiveDrops:  8,
		},
		Outbox: OutboxConfig{
			PollInterval: 200 * time.Millisecond,
			BatchSize:    100,
		},
		Subscriptions: SubscriptionsConfig{
			DefaultInterval:    30 * 24 * time.Hour,
			MaxRenewalFailures: 3,
			RenewPollInterval:  time.Minute,
			RenewBatchSize:     100,
		},
		Payouts: PayoutsConfig{
			MinAmountMicros: 10_000_000, // $10 minimum
			PollInterval:    5 * time.Second,
			BatchSize:       50,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Load builds configuration using Koanf v2 with layered sources:
//  1. Defaults: built-in values from defaultConfig
//  2. Config file: optional YAML file (if one exists)
//  3. Environment variables: override any setting
//
// Precedence is ENV > file > defaults.
func Load() (*Config, error) {
	k := koanf.New(".")

	defaults := defaultConfig()
	if err := k.Load(structs.Provider(defaults, "koanf"), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	configPath := findConfigFile()
	if configPath != "" {
		if err := k.Load(file.Provider(configPath), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
	}

	// Environment variable names map to koanf paths through an explicit
	// table so stray env vars never pollute the config.
	envProvider := env.Provider("", ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	if err := processSliceFields(k); err != nil {
		return nil, fmt.Errorf("failed to process slice fields: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// findConfigFile searches for a config file, honoring CONFIG_PATH first.
// Returns empty string when no file exists.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}

	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}

	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices when
// set from the environment.
var sliceConfigPaths = []string{
	"server.cors_origins",
}

// processSliceFields converts comma-separated string values to slices for
// known slice fields. Env vars arrive as strings but the config expects
// slices.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		if val == nil {
			continue
		}

		// Already a slice (from the YAML file): nothing to do.
		if _, ok := val.([]interface{}); ok {
			continue
		}
		if _, ok := val.([]string); ok {
			continue
		}

		if strVal, ok := val.(string); ok {
			if strVal == "" {
				continue
			}
			parts := strings.Split(strVal, ",")
			trimmed := make([]string, 0, len(parts))
			for _, p := range parts {
				p = strings.TrimSpace(p)
				if p != "" {
					trimmed = append(trimmed, p)
				}
			}
			if len(trimmed) > 0 {
				if err := k.Set(path, trimmed); err != nil {
					return fmt.Errorf("failed to set %s: %w", path, err)
				}
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf config paths.
//
// Examples:
//   - HTTP_PORT -> server.port
//   - DATABASE_DSN -> database.dsn
//   - CHAT_RATE_LIMIT_WINDOW -> rate_limit.window
func envTransformFunc(key string) string {
	key = strings.ToLower(key)

	envMappings := map[string]string{
		// Server mappings
		"http_host":    "server.host",
		"http_port":    "server.port",
		"http_timeout": "server.timeout",
		"cors_origins": "server.cors_origins",

		// Database mappings
		"database_driver":    "database.driver",
		"database_dsn":       "database.dsn",
		"database_max_conns": "database.max_conns",

		// Logging mappings
		"log_level":  "logging.level",
		"log_format": "logging.format",
		"log_caller": "logging.caller",

		// Economy mappings
		"welcome_bonus_coins":        "economy.welcome_bonus_coins",
		"coin_unit_price_micros":     "economy.coin_unit_price_micros",
		"creator_share_basis_points": "economy.creator_share_basis_points",
		"max_coins_per_gift":         "economy.max_coins_per_gift",
		"economy_currency":           "economy.currency",

		// Chat mappings
		"chat_max_content_length": "chat.max_content_length",
		"chat_history_limit":      "chat.history_limit",

		// Rate limit mappings
		"chat_rate_limit_max":    "rate_limit.max_messages",
		"chat_rate_limit_window": "rate_limit.window",
		"rate_limit_store":       "rate_limit.store",
		"rate_limit_badger_path": "rate_limit.badger_path",

		// Relay mappings
		"relay_broadcast_buffer":        "relay.broadcast_buffer",
		"relay_session_buffer":          "relay.session_buffer",
		"relay_max_sessions_per_stream": "relay.max_sessions_per_stream",
		"relay_max_consecutive_drops":   "relay.max_consecutive_drops",

		// Outbox mappings
		"outbox_poll_interval": "outbox.poll_interval",
		"outbox_batch_size":    "outbox.batch_size",

		// Subscription mappings
		"subscription_interval":             "subscriptions.default_interval",
		"subscription_max_renewal_failures": "subscriptions.max_renewal_failures",
		"subscription_renew_poll_interval":  "subscriptions.renew_poll_interval",
		"subscription_renew_batch_size":     "subscriptions.renew_batch_size",

		// Payout mappings
		"payout_min_amount_micros": "payouts.min_amount_micros",
		"payout_poll_interval":     "payouts.poll_interval",
		"payout_batch_size":        "payouts.batch_size",

		// Metrics mappings
		"metrics_enabled": "metrics.enabled",
	}

	if mapped, ok := envMappings[key]; ok {
		return mapped
	}

	// Unmapped keys are skipped so random environment variables never
	// leak into the configuration.
	return ""
}
