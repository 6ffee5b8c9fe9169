// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package ratelimit enforces per-sender chat rate limits.
//
// The limiter uses fixed windows: each (user, stream) pair gets a counter
// keyed by the window's start timestamp, and a message is allowed while the
// counter is below the configured maximum. Counters older than the current
// window are never consulted, so a new window resets the allowance in full.
package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/emberworks/emberlive/internal/metrics"
)

// ErrLimited indicates the sender exhausted the current window's allowance.
var ErrLimited = errors.New("ratelimit: limit exceeded")

// ErrStoreClosed indicates the backing counter store has been closed.
var ErrStoreClosed = errors.New("ratelimit: store is closed")

// CounterStore is the counter backend. Incr must be atomic: concurrent
// callers on the same key each observe a distinct post-increment value.
type CounterStore interface {
	// Incr increments the counter for key and returns the new value.
	// The entry may be discarded after ttl.
	Incr(ctx context.Context, key string, ttl time.Duration) (int64, error)

	// Close releases backend resources.
	Close() error
}

// Config holds the limiter policy.
type Config struct {
	// MaxMessages is the allowance per window.
	MaxMessages int64

	// Window is the fixed window length.
	Window time.Duration
}

// Limiter decides whether a sender may post to a stream right now.
type Limiter struct {
	store CounterStore
	cfg   Config
	now   func() time.Time
}

// New creates a Limiter over the given counter store.
func New(store CounterStore, cfg Config) *Limiter {
	if cfg.MaxMessages <= 0 {
		cfg.MaxMessages = 5
	}
	if cfg.Window <= 0 {
		cfg.Window = 10 * time.Second
	}
	return &Limiter{store: store, cfg: cfg, now: time.Now}
}

// SetClock overrides the limiter clock. Tests only.
func (l *Limiter) SetClock(now func() time.Time) { l.now = now }

// Allow records one message attempt for the user on the stream and reports
// whether it fits the current window. A denied attempt still counts toward
// the window, matching the behavior of httprate-style limiters.
func (l *Limiter) Allow(ctx context.Context, userID, streamID string) error {
	window := l.now().UTC().Truncate(l.cfg.Window)
	key := fmt.Sprintf("rl:%s:%s:%d", streamID, userID, window.Unix())

	n, err := l.store.Incr(ctx, key, l.cfg.Window)
	if err != nil {
		return fmt.Errorf("ratelimit incr: %w", err)
	}
	if n > l.cfg.MaxMessages {
		metrics.ChatRateLimited.Inc()
		return ErrLimited
	}
	return nil
}

// RetryAfter reports how long until the current window rolls over. Used to
// populate the Retry-After response header on rejections.
func (l *Limiter) RetryAfter() time.Duration {
	now := l.now().UTC()
	return now.Truncate(l.cfg.Window).Add(l.cfg.Window).Sub(now)
}
