// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/store"
)

// Store is the in-memory store.Store implementation.
type Store struct {
	mu sync.RWMutex
	st *state

	// Now is the clock used for UpdatedAt stamps. Tests may replace it.
	Now func() time.Time
}

var _ store.Store = (*Store)(nil)

// New creates an empty in-memory store.
func New() *Store {
	return &Store{st: newState(), Now: time.Now}
}

// WithTx runs fn against a deep copy of the state and swaps the copy in on
// success. The whole unit runs under the store mutex, so concurrent units
// serialize; context cancellation is honored before the unit starts.
func (s *Store) WithTx(ctx context.Context, fn func(store.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	work := s.st.clone()
	tx := &memTx{st: work, now: s.Now}
	if err := fn(tx); err != nil {
		return err
	}
	s.st = work
	return nil
}

func (s *Store) Wallet(ctx context.Context, userID string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.st.walletsByUser[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	w := *s.st.wallets[id]
	return &w, nil
}

func (s *Store) WalletByID(ctx context.Context, walletID string) (*models.Wallet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	w, ok := s.st.wallets[walletID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (s *Store) TransactionsByWallet(ctx context.Context, walletID string) ([]models.Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Transaction
	for _, id := range s.st.txOrder {
		if t := s.st.transactions[id]; t.WalletID == walletID {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (s *Store) Stream(ctx context.Context, streamID string) (*models.Stream, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.st.streams[streamID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *st
	return &cp, nil
}

func (s *Store) UpsertStream(ctx context.Context, m *models.Stream) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *m
	s.st.streams[m.ID] = &cp
	if _, ok := s.st.aggregates[m.ID]; !ok {
		s.st.aggregates[m.ID] = &models.StreamAggregate{StreamID: m.ID, UpdatedAt: s.Now()}
	}
	return nil
}

func (s *Store) StreamAggregate(ctx context.Context, streamID string) (*models.StreamAggregate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.st.aggregates[streamID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (s *Store) IsBlocked(ctx context.Context, streamID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.blocks[pairKey(streamID, userID)], nil
}

func (s *Store) SetBlocked(ctx context.Context, streamID, userID string, blocked bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if blocked {
		s.st.blocks[pairKey(streamID, userID)] = true
	} else {
		delete(s.st.blocks, pairKey(streamID, userID))
	}
	return nil
}

func (s *Store) IsModerator(ctx context.Context, streamID, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.moderators[pairKey(streamID, userID)], nil
}

func (s *Store) SetModerator(ctx context.Context, streamID, userID string, moderator bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if moderator {
		s.st.moderators[pairKey(streamID, userID)] = true
	} else {
		delete(s.st.moderators, pairKey(streamID, userID))
	}
	return nil
}

func (s *Store) IsAdmin(ctx context.Context, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.st.admins[userID], nil
}

func (s *Store) SetAdmin(ctx context.Context, userID string, admin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if admin {
		s.st.admins[userID] = true
	} else {
		delete(s.st.admins, userID)
	}
	return nil
}

func (s *Store) ChatMessage(ctx context.Context, streamID, messageID string) (*models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.st.messages[messageID]
	if !ok || m.StreamID != streamID {
		return nil, store.ErrNotFound
	}
	cp := *m
	return &cp, nil
}

func (s *Store) ChatHistory(ctx context.Context, streamID string, limit int, before time.Time) ([]models.ChatMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order := s.st.msgOrder[streamID]
	var out []models.ChatMessage
	for i := len(order) - 1; i >= 0 && len(out) < limit; i-- {
		m := s.st.messages[order[i]]
		if m.Deleted {
			continue
		}
		if !before.IsZero() && !m.CreatedAt.Before(before) {
			continue
		}
		out = append(out, *m)
	}
	return out, nil
}

func (s *Store) GiftByIdempotencyKey(ctx context.Context, key string) (*models.Gift, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.st.giftsByKey[key]
	if !ok {
		return nil, store.ErrNotFound
	}
	g := *s.st.gifts[id]
	return &g, nil
}

func (s *Store) Subscription(ctx context.Context, id string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	sub, ok := s.st.subscriptions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *sub
	return &cp, nil
}

func (s *Store) ActiveSubscription(ctx context.Context, subscriberID, creatorID string) (*models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, sub := range s.st.subscriptions {
		if sub.SubscriberID == subscriberID && sub.CreatorID == creatorID && sub.Status != models.SubscriptionCanceled {
			cp := *sub
			return &cp, nil
		}
	}
	return nil, store.ErrNotFound
}

func (s *Store) DueSubscriptions(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Subscription
	for _, sub := range s.st.subscriptions {
		if sub.Status == models.SubscriptionCanceled {
			continue
		}
		if !sub.CurrentPeriodEnd.After(now) {
			out = append(out, *sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CurrentPeriodEnd.Before(out[j].CurrentPeriodEnd) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) Payout(ctx context.Context, id string) (*models.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.st.payouts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s *Store) PendingPayouts(ctx context.Context, limit int) ([]models.Payout, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []models.Payout
	for _, p := range s.st.payouts {
		if p.Status == models.PayoutPending {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *Store) UnpublishedOutboxEvents(ctx context.Context, limit int) ([]store.OutboxEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []store.OutboxEvent
	for _, id := range s.st.outboxOrder {
		e := s.st.outbox[id]
		if e.PublishedAt == nil {
			out = append(out, *e)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (s *Store) MarkOutboxPublished(ctx context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.st.outbox[id]
	if !ok {
		return store.ErrNotFound
	}
	e.PublishedAt = &at
	return nil
}

func (s *Store) BumpOutboxAttempts(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.st.outbox[id]
	if !ok {
		return store.ErrNotFound
	}
	e.Attempts++
	return nil
}

func (s *Store) Close() error { return nil }
