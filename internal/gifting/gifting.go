// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package gifting coordinates the gift send: one atomic unit covering the
// ledger transfer, the gift record, the stream aggregate bump, and the
// outbox row for the chat announcement. Nothing about a gift is observable
// until everything about it is committed.
package gifting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberworks/emberlive/internal/ledger"
	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/metrics"
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/rails"
	"github.com/emberworks/emberlive/internal/relay"
	"github.com/emberworks/emberlive/internal/store"
)

// Gift failure conditions beyond what the ledger reports.
var (
	ErrSelfGift       = errors.New("gifting: sender and receiver are the same user")
	ErrStreamNotFound = errors.New("gifting: stream not found")
	ErrStreamNotLive  = errors.New("gifting: stream is not live")
	ErrGiftsDisabled  = errors.New("gifting: gifts are disabled for this stream")
	ErrInvalidCoins   = errors.New("gifting: coin amount must be positive")
	ErrMissingIdemKey = errors.New("gifting: idempotency key required")
)

// Config carries the gift economy constants.
type Config struct {
	// CoinUnitPriceMicros is the USD value of one coin in micro-units.
	// 10000 micros = one cent.
	CoinUnitPriceMicros int64

	// CreatorShareBasisPoints is the creator's cut of a gift's value,
	// in basis points (7000 = 70%). Integer math keeps money exact.
	CreatorShareBasisPoints int64

	// MaxCoinsPerGift caps a single gift.
	MaxCoinsPerGift int64
}

func (c Config) withDefaults() Config {
	if c.CoinUnitPriceMicros <= 0 {
		c.CoinUnitPriceMicros = 10000
	}
	if c.CreatorShareBasisPoints <= 0 {
		c.CreatorShareBasisPoints = 7000
	}
	if c.MaxCoinsPerGift <= 0 {
		c.MaxCoinsPerGift = 1_000_000
	}
	return c
}

// CreatorValueMicros computes the receiver's share of a gift in micro-USD.
func (c Config) CreatorValueMicros(coins int64) int64 {
	return coins * c.CoinUnitPriceMicros * c.CreatorShareBasisPoints / 10000
}

// Coordinator runs gift transactions.
type Coordinator struct {
	store    store.Store
	ledger   *ledger.Ledger
	notifier rails.Notifier
	cfg      Config
	now      func() time.Time
}

// New creates a gift Coordinator.
func New(st store.Store, ldg *ledger.Ledger, notifier rails.Notifier, cfg Config) *Coordinator {
	if notifier == nil {
		notifier = rails.LoggingNotifier{}
	}
	return &Coordinator{
		store:    st,
		ledger:   ldg,
		notifier: notifier,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// SetClock overrides the coordinator clock. Tests only.
func (c *Coordinator) SetClock(now func() time.Time) { c.now = now }

// SendGiftParams is one gift request.
type SendGiftParams struct {
	SenderID       string
	ReceiverID     string
	StreamID       string
	GiftType       string
	Coins          int64
	Message        string
	IsPublic       bool
	IdempotencyKey string
}

// SendGift validates and commits one gift. Retrying with the same
// idempotency key returns the originally committed gift without moving
// funds again.
func (c *Coordinator) SendGift(ctx context.Context, p SendGiftParams) (*models.Gift, error) {
	if p.IdempotencyKey == "" {
		return nil, ErrMissingIdemKey
	}
	if p.Coins <= 0 || p.Coins > c.cfg.MaxCoinsPerGift {
		return nil, fmt.Errorf("coins %d: %w", p.Coins, ErrInvalidCoins)
	}
	if p.SenderID == p.ReceiverID {
		return nil, ErrSelfGift
	}

	// Answer replays before touching the ledger.
	if prior, err := c.store.GiftByIdempotencyKey(ctx, p.IdempotencyKey); err == nil {
		logging.Ctx(ctx).Debug().
			Str("gift_id", prior.ID).
			Str("idempotency_key", p.IdempotencyKey).
			Msg("gift replay answered from committed record")
		return prior, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	stream, err := c.store.Stream(ctx, p.StreamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, err
	}
	if !stream.Live {
		return nil, ErrStreamNotLive
	}
	if !stream.GiftsEnabled {
		return nil, ErrGiftsDisabled
	}

	valueMicros := c.cfg.CreatorValueMicros(p.Coins)
	gift := &models.Gift{
		ID:             uuid.New().String(),
		StreamID:       p.StreamID,
		SenderID:       p.SenderID,
		ReceiverID:     p.ReceiverID,
		GiftType:       p.GiftType,
		Coins:          p.Coins,
		ValueMicros:    valueMicros,
		Message:        p.Message,
		IsPublic:       p.IsPublic,
		IdempotencyKey: p.IdempotencyKey,
		CreatedAt:      c.now().UTC(),
	}

	announcement, err := c.announcementRow(gift)
	if err != nil {
		return nil, err
	}

	err = c.store.WithTx(ctx, func(tx store.Tx) error {
		if _, err := c.ledger.TransferTx(ctx, tx, ledger.TransferParams{
			SenderUserID:   p.SenderID,
			ReceiverUserID: p.ReceiverID,
			Coins:          p.Coins,
			ValueMicros:    valueMicros,
			CorrelationID:  gift.ID,
		}); err != nil {
			return err
		}
		if err := tx.InsertGift(ctx, gift); err != nil {
			return err
		}
		if err := tx.BumpStreamGifts(ctx, p.StreamID, valueMicros); err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, announcement)
	})
	if err != nil {
		if errors.Is(err, store.ErrDuplicateKey) {
			// A concurrent retry with the same key won the race; its
			// committed gift is the answer.
			if prior, lookupErr := c.store.GiftByIdempotencyKey(ctx, p.IdempotencyKey); lookupErr == nil {
				return prior, nil
			}
		}
		return nil, err
	}

	metrics.LedgerTransfers.Inc()
	metrics.GiftsCommitted.Inc()
	metrics.GiftCoinsSpent.Add(float64(p.Coins))
	logging.Ctx(ctx).Info().
		Str("gift_id", gift.ID).
		Str("stream_id", p.StreamID).
		Str("sender_id", p.SenderID).
		Str("receiver_id", p.ReceiverID).
		Int64("coins", p.Coins).
		Int64("value_micros", valueMicros).
		Msg("gift committed")

	c.notifier.GiftReceived(ctx, p.ReceiverID, gift.ID, valueMicros)
	return gift, nil
}

// announcementRow builds the outbox row carrying the gift's chat
// announcement. Private gifts still produce an event; subscribers decide
// how to render IsPublic=false.
func (c *Coordinator) announcementRow(gift *models.Gift) (*store.OutboxEvent, error) {
	return relay.OutboxRow(uuid.New().String(), relay.NewGiftEvent(gift))
}
