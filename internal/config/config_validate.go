// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package config

import (
	"fmt"
	"strings"
)

// Validate checks that required configuration is present and valid.
func (c *Config) Validate() error {
	if err := c.validateServer(); err != nil {
		return err
	}

	if err := c.validateDatabase(); err != nil {
		return err
	}

	if err := c.validateEconomy(); err != nil {
		return err
	}

	if err := c.validateChat(); err != nil {
		return err
	}

	if err := c.validateRateLimit(); err != nil {
		return err
	}

	if err := c.validateRelay(); err != nil {
		return err
	}

	if err := c.validateWorkers(); err != nil {
		return err
	}

	return c.validateLogging()
}

func (c *Config) validateServer() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("HTTP_PORT must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Server.Timeout <= 0 {
		return fmt.Errorf("HTTP_TIMEOUT must be positive")
	}
	return nil
}

func (c *Config) validateDatabase() error {
	switch c.Database.Driver {
	case "memory":
		return nil
	case "postgres":
		if c.Database.DSN == "" {
			return fmt.Errorf("DATABASE_DSN is required when DATABASE_DRIVER=postgres")
		}
		if c.Database.MaxConns < 0 {
			return fmt.Errorf("DATABASE_MAX_CONNS must not be negative")
		}
		return nil
	default:
		return fmt.Errorf("DATABASE_DRIVER must be 'postgres' or 'memory', got %q", c.Database.Driver)
	}
}

func (c *Config) validateEconomy() error {
	if c.Economy.WelcomeBonusCoins < 0 {
		return fmt.Errorf("WELCOME_BONUS_COINS must not be negative")
	}
	if c.Economy.CoinUnitPriceMicros <= 0 {
		return fmt.Errorf("COIN_UNIT_PRICE_MICROS must be positive")
	}
	if c.Economy.CreatorShareBasisPoints < 0 || c.Economy.CreatorShareBasisPoints > 10000 {
		return fmt.Errorf("CREATOR_SHARE_BASIS_POINTS must be between 0 and 10000, got %d", c.Economy.CreatorShareBasisPoints)
	}
	if c.Economy.MaxCoinsPerGift <= 0 {
		return fmt.Errorf("MAX_COINS_PER_GIFT must be positive")
	}
	if len(c.Economy.Currency) != 3 {
		return fmt.Errorf("ECONOMY_CURRENCY must be a 3-letter ISO 4217 code, got %q", c.Economy.Currency)
	}
	return nil
}

func (c *Config) validateChat() error {
	if c.Chat.MaxContentLength < 1 {
		return fmt.Errorf("CHAT_MAX_CONTENT_LENGTH must be positive")
	}
	if c.Chat.HistoryLimit < 1 {
		return fmt.Errorf("CHAT_HISTORY_LIMIT must be positive")
	}
	return nil
}

func (c *Config) validateRateLimit() error {
	if c.RateLimit.MaxMessages < 1 {
		return fmt.Errorf("CHAT_RATE_LIMIT_MAX must be positive")
	}
	if c.RateLimit.Window <= 0 {
		return fmt.Errorf("CHAT_RATE_LIMIT_WINDOW must be positive")
	}
	switch c.RateLimit.Store {
	case "memory":
	case "badger":
		if c.RateLimit.BadgerPath == "" {
			return fmt.Errorf("RATE_LIMIT_BADGER_PATH is required when RATE_LIMIT_STORE=badger")
		}
	default:
		return fmt.Errorf("RATE_LIMIT_STORE must be 'memory' or 'badger', got %q", c.RateLimit.Store)
	}
	return nil
}

func (c *Config) validateRelay() error {
	if c.Relay.BroadcastBuffer < 1 {
		return fmt.Errorf("RELAY_BROADCAST_BUFFER must be positive")
	}
	if c.Relay.SessionBuffer < 1 {
		return fmt.Errorf("RELAY_SESSION_BUFFER must be positive")
	}
	if c.Relay.MaxSessionsPerStream < 1 {
		return fmt.Errorf("RELAY_MAX_SESSIONS_PER_STREAM must be positive")
	}
	if c.Relay.MaxConsecutiveDrops < 1 {
		return fmt.Errorf("RELAY_MAX_CONSECUTIVE_DROPS must be positive")
	}
	return nil
}

func (c *Config) validateWorkers() error {
	if c.Outbox.PollInterval <= 0 {
		return fmt.Errorf("OUTBOX_POLL_INTERVAL must be positive")
	}
	if c.Outbox.BatchSize < 1 {
		return fmt.Errorf("OUTBOX_BATCH_SIZE must be positive")
	}
	if c.Subscriptions.DefaultInterval <= 0 {
		return fmt.Errorf("SUBSCRIPTION_INTERVAL must be positive")
	}
	if c.Subscriptions.MaxRenewalFailures < 1 {
		return fmt.Errorf("SUBSCRIPTION_MAX_RENEWAL_FAILURES must be positive")
	}
	if c.Subscriptions.RenewPollInterval <= 0 {
		return fmt.Errorf("SUBSCRIPTION_RENEW_POLL_INTERVAL must be positive")
	}
	if c.Subscriptions.RenewBatchSize < 1 {
		return fmt.Errorf("SUBSCRIPTION_RENEW_BATCH_SIZE must be positive")
	}
	if c.Payouts.MinAmountMicros <= 0 {
		return fmt.Errorf("PAYOUT_MIN_AMOUNT_MICROS must be positive")
	}
	if c.Payouts.PollInterval <= 0 {
		return fmt.Errorf("PAYOUT_POLL_INTERVAL must be positive")
	}
	if c.Payouts.BatchSize < 1 {
		return fmt.Errorf("PAYOUT_BATCH_SIZE must be positive")
	}
	return nil
}

var validLogLevels = map[string]bool{
	"trace": true,
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
	"fatal": true,
}

func (c *Config) validateLogging() error {
	level := strings.ToLower(c.Logging.Level)
	if !validLogLevels[level] {
		return fmt.Errorf("LOG_LEVEL must be one of trace, debug, info, warn, error, fatal; got %q", c.Logging.Level)
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("LOG_FORMAT must be 'json' or 'console', got %q", c.Logging.Format)
	}
	return nil
}
