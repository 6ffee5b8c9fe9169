// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package store defines the persistence boundary of the Emberlive core.
//
// Two implementations exist: postgres (production, pgx with row-level
// locking) and memory (deterministic, for tests and single-node dev mode).
// Services depend only on these interfaces; ownership rules from the domain
// model are enforced here — the ledger is the sole writer of wallet balances
// and transactions, the chat relay the sole writer of chat messages.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/emberworks/emberlive/internal/models"
)

// Sentinel errors shared by all implementations.
var (
	// ErrNotFound indicates the requested row does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicateKey indicates a unique-constraint violation, used for
	// idempotency-key dedup on gift inserts.
	ErrDuplicateKey = errors.New("store: duplicate key")

	// ErrInvariantViolation indicates a write that would break a balance
	// invariant (coins < 0, pending earnings < 0). The ledger checks before
	// writing; this is the storage backstop that refuses the commit and is
	// treated as a bug, not an expected error.
	ErrInvariantViolation = errors.New("store: balance invariant violation")
)

// OutboxEvent is one durably queued relay publication. Rows are written in
// the same transaction as the state change they announce and published
// best-effort afterwards, so a crash between commit and publish is recovered
// by the dispatcher rather than lost.
type OutboxEvent struct {
	ID          string
	StreamID    string
	Kind        string // chat event kind: message, gift, retraction
	Payload     []byte
	CreatedAt   time.Time
	PublishedAt *time.Time
	Attempts    int
}

// Tx is the set of mutations available inside one atomic unit. Either every
// write in the unit lands or none do.
type Tx interface {
	// WalletForUpdate loads a wallet by ID and holds an exclusive lock on it
	// until the transaction ends. Callers lock multiple wallets in ascending
	// ID order to avoid deadlock.
	WalletForUpdate(ctx context.Context, walletID string) (*models.Wallet, error)

	// WalletByUserForUpdate is WalletForUpdate keyed by owning user.
	WalletByUserForUpdate(ctx context.Context, userID string) (*models.Wallet, error)

	InsertWallet(ctx context.Context, w *models.Wallet) error

	// ApplyWalletDeltas adjusts balances of a wallet previously locked in
	// this transaction. Implementations must refuse commits that would leave
	// coins or pending earnings negative.
	ApplyWalletDeltas(ctx context.Context, walletID string, coins, pendingMicros, totalMicros int64) error

	InsertTransaction(ctx context.Context, t *models.Transaction) error

	// UpdateTransactionStatus settles a PENDING ledger movement. Amounts are
	// immutable; only the status and completion time change.
	UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus, completedAt *time.Time) error

	InsertGift(ctx context.Context, g *models.Gift) error

	InsertChatMessage(ctx context.Context, m *models.ChatMessage) error

	// MarkChatMessageDeleted soft-deletes a message. Returns ErrNotFound if
	// the message does not belong to the stream.
	MarkChatMessageDeleted(ctx context.Context, streamID, messageID string, at time.Time) error

	// BumpStreamMessages increments the stream's message counter.
	BumpStreamMessages(ctx context.Context, streamID string) error

	// BumpStreamGifts increments the gift counter and adds revenue.
	BumpStreamGifts(ctx context.Context, streamID string, revenueMicros int64) error

	InsertOutboxEvent(ctx context.Context, e *OutboxEvent) error

	InsertSubscription(ctx context.Context, s *models.Subscription) error

	// SubscriptionForUpdate loads and locks a subscription row.
	SubscriptionForUpdate(ctx context.Context, id string) (*models.Subscription, error)

	UpdateSubscription(ctx context.Context, s *models.Subscription) error

	InsertPayout(ctx context.Context, p *models.Payout) error

	// PayoutForUpdate loads and locks a payout row.
	PayoutForUpdate(ctx context.Context, id string) (*models.Payout, error)

	// UpdatePayoutStatus transitions a payout from one status to another.
	// Returns false without error when the payout is not in the expected
	// status, making settlement callbacks idempotent.
	UpdatePayoutStatus(ctx context.Context, id string, from, to models.PayoutStatus, railRef string, settledAt *time.Time) (bool, error)
}

// Store is the full persistence surface.
type Store interface {
	// WithTx runs fn inside one atomic unit, committing when fn returns nil
	// and rolling back otherwise. The context deadline bounds lock waits so
	// contended commits fail with a retryable error instead of blocking.
	WithTx(ctx context.Context, fn func(Tx) error) error

	Wallet(ctx context.Context, userID string) (*models.Wallet, error)
	WalletByID(ctx context.Context, walletID string) (*models.Wallet, error)
	TransactionsByWallet(ctx context.Context, walletID string) ([]models.Transaction, error)

	Stream(ctx context.Context, streamID string) (*models.Stream, error)
	UpsertStream(ctx context.Context, s *models.Stream) error
	StreamAggregate(ctx context.Context, streamID string) (*models.StreamAggregate, error)

	// IsBlocked reports whether the stream host has blocked the user.
	IsBlocked(ctx context.Context, streamID, userID string) (bool, error)
	SetBlocked(ctx context.Context, streamID, userID string, blocked bool) error

	// IsModerator reports whether the user moderates the stream.
	IsModerator(ctx context.Context, streamID, userID string) (bool, error)
	SetModerator(ctx context.Context, streamID, userID string, moderator bool) error

	// IsAdmin reports whether the user is a platform administrator.
	IsAdmin(ctx context.Context, userID string) (bool, error)
	SetAdmin(ctx context.Context, userID string, admin bool) error

	ChatMessage(ctx context.Context, streamID, messageID string) (*models.ChatMessage, error)

	// ChatHistory returns the newest messages first, excluding deleted ones.
	// A zero before time means "from the latest".
	ChatHistory(ctx context.Context, streamID string, limit int, before time.Time) ([]models.ChatMessage, error)

	// GiftByIdempotencyKey returns the gift committed under the key, or
	// ErrNotFound. Used to answer client retries without a second charge.
	GiftByIdempotencyKey(ctx context.Context, key string) (*models.Gift, error)

	Subscription(ctx context.Context, id string) (*models.Subscription, error)

	// ActiveSubscription returns the non-canceled subscription between the
	// pair, or ErrNotFound.
	ActiveSubscription(ctx context.Context, subscriberID, creatorID string) (*models.Subscription, error)

	// DueSubscriptions lists ACTIVE or PAST_DUE subscriptions whose current
	// period ended at or before now.
	DueSubscriptions(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error)

	Payout(ctx context.Context, id string) (*models.Payout, error)

	// PendingPayouts lists payouts awaiting submission to the payment rail.
	PendingPayouts(ctx context.Context, limit int) ([]models.Payout, error)

	// UnpublishedOutboxEvents lists outbox rows not yet published, oldest first.
	UnpublishedOutboxEvents(ctx context.Context, limit int) ([]OutboxEvent, error)

	// MarkOutboxPublished records a successful publication.
	MarkOutboxPublished(ctx context.Context, id string, at time.Time) error

	// BumpOutboxAttempts increments the retry counter after a failed publish.
	BumpOutboxAttempts(ctx context.Context, id string) error

	Close() error
}
