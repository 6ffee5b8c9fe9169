// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package ratelimit

import (
	"context"
	"sync"
	"time"
)

// MemoryCounterStore is an in-memory CounterStore. Counters are lost on
// restart, which is acceptable for rate limiting: a restart at worst grants
// one fresh window.
type MemoryCounterStore struct {
	mu      sync.Mutex
	entries map[string]*memCounter
	closed  bool

	// Now is the expiry clock. Tests may replace it.
	Now func() time.Time
}

type memCounter struct {
	count     int64
	expiresAt time.Time
}

// NewMemoryCounterStore creates an empty in-memory counter store.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{
		entries: make(map[string]*memCounter),
		Now:     time.Now,
	}
}

// Incr increments the counter for key, creating it with the given TTL.
func (s *MemoryCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrStoreClosed
	}

	now := s.Now()
	e, ok := s.entries[key]
	if !ok || now.After(e.expiresAt) {
		e = &memCounter{expiresAt: now.Add(ttl)}
		s.entries[key] = e
	}
	e.count++
	return e.count, nil
}

// CleanupExpired removes counters past their TTL. Returns the number removed.
func (s *MemoryCounterStore) CleanupExpired() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0
	}

	count := 0
	now := s.Now()
	for key, e := range s.entries {
		if now.After(e.expiresAt) {
			delete(s.entries, key)
			count++
		}
	}
	return count
}

// Close closes the store.
func (s *MemoryCounterStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	s.entries = nil
	return nil
}
