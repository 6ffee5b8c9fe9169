// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package ratelimit

import (
	"context"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// BadgerCounterStore is a BadgerDB-backed CounterStore. Counters survive
// restarts so a crash-loop cannot be used to dodge the limit. Entries carry
// a TTL matching the window so Badger compaction discards stale windows.
type BadgerCounterStore struct {
	db     *badger.DB
	prefix []byte
	mu     sync.RWMutex
	closed bool
}

// NewBadgerCounterStore creates a counter store on a shared BadgerDB
// instance. Keys are namespaced under prefix (default "ratelimit:").
func NewBadgerCounterStore(db *badger.DB, prefix string) *BadgerCounterStore {
	if prefix == "" {
		prefix = "ratelimit:"
	}
	return &BadgerCounterStore{db: db, prefix: []byte(prefix)}
}

func (s *BadgerCounterStore) makeKey(key string) []byte {
	return append(append([]byte{}, s.prefix...), key...)
}

// Incr increments the counter for key inside one Badger update transaction.
// Badger surfaces ErrConflict rather than retrying, so concurrent sends on
// the same window key are retried here until one distinct value per caller
// is committed.
func (s *BadgerCounterStore) Incr(ctx context.Context, key string, ttl time.Duration) (int64, error) {
	s.mu.RLock()
	if s.closed {
		s.mu.RUnlock()
		return 0, ErrStoreClosed
	}
	s.mu.RUnlock()

	k := s.makeKey(key)

	for {
		if err := ctx.Err(); err != nil {
			return 0, err
		}

		var count int64
		err := s.db.Update(func(txn *badger.Txn) error {
			item, err := txn.Get(k)
			switch {
			case err == nil:
				if valErr := item.Value(func(val []byte) error {
					if len(val) == 8 {
						count = int64(binary.BigEndian.Uint64(val))
					}
					return nil
				}); valErr != nil {
					return valErr
				}
			case errors.Is(err, badger.ErrKeyNotFound):
				count = 0
			default:
				return err
			}

			count++
			buf := make([]byte, 8)
			binary.BigEndian.PutUint64(buf, uint64(count))
			return txn.SetEntry(badger.NewEntry(k, buf).WithTTL(ttl))
		})
		if errors.Is(err, badger.ErrConflict) {
			continue
		}
		if err != nil {
			return 0, err
		}
		return count, nil
	}
}

// Close closes the store. The shared BadgerDB instance stays open.
func (s *BadgerCounterStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}
