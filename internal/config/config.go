// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package config loads and validates Emberlive configuration from layered
// sources: built-in defaults, an optional YAML file, and environment
// variables (highest priority).
package config

import "time"

// Config is the root configuration for the Emberlive server.
type Config struct {
	Server        ServerConfig        `koanf:"server"`
	Database      DatabaseConfig      `koanf:"database"`
	Logging       LoggingConfig       `koanf:"logging"`
	Economy       EconomyConfig       `koanf:"economy"`
	Chat          ChatConfig          `koanf:"chat"`
	RateLimit     RateLimitConfig     `koanf:"rate_limit"`
	Relay         RelayConfig         `koanf:"relay"`
	Outbox        OutboxConfig        `koanf:"outbox"`
	Subscriptions SubscriptionsConfig `koanf:"subscriptions"`
	Payouts       PayoutsConfig       `koanf:"payouts"`
	Metrics       MetricsConfig       `koanf:"metrics"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host        string        `koanf:"host"`
	Port        int           `koanf:"port"`
	Timeout     time.Duration `koanf:"timeout"`
	CORSOrigins []string      `koanf:"cors_origins"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	// Driver is "postgres" or "memory". The memory driver is intended for
	// development and tests; it keeps all state in-process.
	Driver string `koanf:"driver"`

	// DSN is the PostgreSQL connection string. Required when Driver is
	// "postgres".
	DSN string `koanf:"dsn"`

	// MaxConns caps the pgx connection pool size. 0 uses the pool default.
	MaxConns int `koanf:"max_conns"`
}

// LoggingConfig holds log output settings.
type LoggingConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
	Caller bool   `koanf:"caller"`
}

// EconomyConfig holds the coin economy parameters shared by the wallet
// ledger and the gift coordinator.
type EconomyConfig struct {
	// WelcomeBonusCoins is credited to every newly created wallet.
	WelcomeBonusCoins int64 `koanf:"welcome_bonus_coins"`

	// CoinUnitPriceMicros is the platform-facing value of one coin in
	// micro-currency units.
	CoinUnitPriceMicros int64 `koanf:"coin_unit_price_micros"`

	// CreatorShareBasisPoints is the creator's cut of gift value, in
	// basis points (7000 = 70%).
	CreatorShareBasisPoints int64 `koanf:"creator_share_basis_points"`

	// MaxCoinsPerGift bounds a single gift.
	MaxCoinsPerGift int64 `koanf:"max_coins_per_gift"`

	// Currency is the ISO 4217 code earnings are denominated in.
	Currency string `koanf:"currency"`
}

// ChatConfig holds chat message admission settings.
type ChatConfig struct {
	MaxContentLength int `koanf:"max_content_length"`
	HistoryLimit     int `koanf:"history_limit"`
}

// RateLimitConfig holds per-user-per-stream chat rate limiting settings.
type RateLimitConfig struct {
	MaxMessages int64         `koanf:"max_messages"`
	Window      time.Duration `koanf:"window"`

	// Store is "memory" or "badger". Badger persists counters across
	// restarts so a restart does not reset in-flight windows.
	Store string `koanf:"store"`

	// BadgerPath is the on-disk location for the badger store.
	BadgerPath string `koanf:"badger_path"`
}

// RelayConfig holds chat fanout hub settings.
type RelayConfig struct {
	BroadcastBuffer      int `koanf:"broadcast_buffer"`
	SessionBuffer        int `koanf:"session_buffer"`
	MaxSessionsPerStream int `koanf:"max_sessions_per_stream"`
	MaxConsecutiveDrops  int `koanf:"max_consecutive_drops"`
}

// OutboxConfig holds the durable outbox dispatcher settings.
type OutboxConfig struct {
	PollInterval time.Duration `koanf:"poll_interval"`
	BatchSize    int           `koanf:"batch_size"`
}

// SubscriptionsConfig holds recurring subscription settings.
type SubscriptionsConfig struct {
	DefaultInterval    time.Duration `koanf:"default_interval"`
	MaxRenewalFailures int           `koanf:"max_renewal_failures"`
	RenewPollInterval  time.Duration `koanf:"renew_poll_interval"`
	RenewBatchSize     int           `koanf:"renew_batch_size"`
}

// PayoutsConfig holds creator payout settings.
type PayoutsConfig struct {
	MinAmountMicros int64         `koanf:"min_amount_micros"`
	PollInterval    time.Duration `koanf:"poll_interval"`
	BatchSize       int           `koanf:"batch_size"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `koanf:"enabled"`
}
