// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/store"
)

// memTx mutates the working copy owned by WithTx. Locking methods are
// trivially exclusive because the whole unit runs under the store mutex.
type memTx struct {
	st  *state
	now func() time.Time
}

var _ store.Tx = (*memTx)(nil)

func (t *memTx) WalletForUpdate(ctx context.Context, walletID string) (*models.Wallet, error) {
	w, ok := t.st.wallets[walletID]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *w
	return &cp, nil
}

func (t *memTx) WalletByUserForUpdate(ctx context.Context, userID string) (*models.Wallet, error) {
	id, ok := t.st.walletsByUser[userID]
	if !ok {
		return nil, store.ErrNotFound
	}
	return t.WalletForUpdate(ctx, id)
}

func (t *memTx) InsertWallet(ctx context.Context, w *models.Wallet) error {
	if _, ok := t.st.walletsByUser[w.UserID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *w
	t.st.wallets[w.ID] = &cp
	t.st.walletsByUser[w.UserID] = w.ID
	return nil
}

func (t *memTx) ApplyWalletDeltas(ctx context.Context, walletID string, coins, pendingMicros, totalMicros int64) error {
	w, ok := t.st.wallets[walletID]
	if !ok {
		return store.ErrNotFound
	}
	if w.Coins+coins < 0 {
		return fmt.Errorf("wallet %s: coins would go negative: %w", walletID, store.ErrInvariantViolation)
	}
	if w.PendingEarningsMicros+pendingMicros < 0 {
		return fmt.Errorf("wallet %s: pending earnings would go negative: %w", walletID, store.ErrInvariantViolation)
	}
	w.Coins += coins
	w.PendingEarningsMicros += pendingMicros
	w.TotalEarningsMicros += totalMicros
	w.UpdatedAt = t.now()
	return nil
}

func (t *memTx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	if _, ok := t.st.transactions[tr.ID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *tr
	t.st.transactions[tr.ID] = &cp
	t.st.txOrder = append(t.st.txOrder, tr.ID)
	return nil
}

func (t *memTx) UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus, completedAt *time.Time) error {
	tr, ok := t.st.transactions[id]
	if !ok {
		return store.ErrNotFound
	}
	tr.Status = status
	if completedAt != nil {
		tr.CompletedAt = completedAt
	}
	return nil
}

func (t *memTx) InsertGift(ctx context.Context, g *models.Gift) error {
	if g.IdempotencyKey != "" {
		if _, ok := t.st.giftsByKey[g.IdempotencyKey]; ok {
			return store.ErrDuplicateKey
		}
	}
	cp := *g
	t.st.gifts[g.ID] = &cp
	if g.IdempotencyKey != "" {
		t.st.giftsByKey[g.IdempotencyKey] = g.ID
	}
	return nil
}

func (t *memTx) InsertChatMessage(ctx context.Context, m *models.ChatMessage) error {
	if _, ok := t.st.messages[m.ID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *m
	t.st.messages[m.ID] = &cp
	t.st.msgOrder[m.StreamID] = append(t.st.msgOrder[m.StreamID], m.ID)
	return nil
}

func (t *memTx) MarkChatMessageDeleted(ctx context.Context, streamID, messageID string, at time.Time) error {
	m, ok := t.st.messages[messageID]
	if !ok || m.StreamID != streamID {
		return store.ErrNotFound
	}
	m.Deleted = true
	m.DeletedAt = &at
	return nil
}

func (t *memTx) BumpStreamMessages(ctx context.Context, streamID string) error {
	a, ok := t.st.aggregates[streamID]
	if !ok {
		return store.ErrNotFound
	}
	a.TotalMessages++
	a.UpdatedAt = t.now()
	return nil
}

func (t *memTx) BumpStreamGifts(ctx context.Context, streamID string, revenueMicros int64) error {
	a, ok := t.st.aggregates[streamID]
	if !ok {
		return store.ErrNotFound
	}
	a.TotalGifts++
	a.TotalRevenueMicros += revenueMicros
	a.UpdatedAt = t.now()
	return nil
}

func (t *memTx) InsertOutboxEvent(ctx context.Context, e *store.OutboxEvent) error {
	cp := *e
	t.st.outbox[e.ID] = &cp
	t.st.outboxOrder = append(t.st.outboxOrder, e.ID)
	return nil
}

func (t *memTx) InsertSubscription(ctx context.Context, s *models.Subscription) error {
	if _, ok := t.st.subscriptions[s.ID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *s
	t.st.subscriptions[s.ID] = &cp
	return nil
}

func (t *memTx) SubscriptionForUpdate(ctx context.Context, id string) (*models.Subscription, error) {
	s, ok := t.st.subscriptions[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (t *memTx) UpdateSubscription(ctx context.Context, s *models.Subscription) error {
	if _, ok := t.st.subscriptions[s.ID]; !ok {
		return store.ErrNotFound
	}
	cp := *s
	t.st.subscriptions[s.ID] = &cp
	return nil
}

func (t *memTx) InsertPayout(ctx context.Context, p *models.Payout) error {
	if _, ok := t.st.payouts[p.ID]; ok {
		return store.ErrDuplicateKey
	}
	cp := *p
	t.st.payouts[p.ID] = &cp
	return nil
}

func (t *memTx) PayoutForUpdate(ctx context.Context, id string) (*models.Payout, error) {
	p, ok := t.st.payouts[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (t *memTx) UpdatePayoutStatus(ctx context.Context, id string, from, to models.PayoutStatus, railRef string, settledAt *time.Time) (bool, error) {
	p, ok := t.st.payouts[id]
	if !ok {
		return false, store.ErrNotFound
	}
	if p.Status != from {
		return false, nil
	}
	p.Status = to
	if railRef != "" {
		p.RailRef = railRef
	}
	if settledAt != nil {
		p.SettledAt = settledAt
	}
	return true, nil
}
