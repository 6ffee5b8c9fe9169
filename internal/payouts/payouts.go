// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package payouts turns accrued creator earnings into withdrawals.
//
// A payout request reserves the amount out of pending earnings and creates
// a PENDING payout; the worker claims it (PROCESSING) and submits it to the
// payment rail behind a circuit breaker; the rail's settlement callback
// finishes it. A FAILED settlement restores the reservation in the same
// transaction that flips the status, so funds are never silently lost.
package payouts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sony/gobreaker/v2"

	"github.com/emberworks/emberlive/internal/ledger"
	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/metrics"
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/rails"
	"github.com/emberworks/emberlive/internal/store"
)

// Payout failure conditions.
var (
	ErrBelowMinimum   = errors.New("payouts: amount below configured minimum")
	ErrPayoutNotFound = errors.New("payouts: payout not found")
	ErrWalletNotFound = errors.New("payouts: wallet not found")
)

// Config holds payout policy.
type Config struct {
	// MinAmountMicros is the smallest withdrawal accepted.
	MinAmountMicros int64

	// Currency for rail submissions.
	Currency string

	// PollInterval is the pending-payout scan period.
	PollInterval time.Duration

	// BatchSize bounds each scan.
	BatchSize int
}

func (c Config) withDefaults() Config {
	if c.MinAmountMicros <= 0 {
		c.MinAmountMicros = 10_000_000 // $10
	}
	if c.Currency == "" {
		c.Currency = "USD"
	}
	if c.PollInterval <= 0 {
		c.PollInterval = 5 * time.Second
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 50
	}
	return c
}

// Processor runs the payout lifecycle.
type Processor struct {
	store    store.Store
	ledger   *ledger.Ledger
	rail     rails.PaymentRail
	notifier rails.Notifier
	breaker  *gobreaker.CircuitBreaker[string]
	cfg      Config
	now      func() time.Time
}

// New creates a payout Processor.
func New(st store.Store, ldg *ledger.Ledger, rail rails.PaymentRail, notifier rails.Notifier, cfg Config) *Processor {
	if rail == nil {
		rail = rails.LoggingRail{}
	}
	if notifier == nil {
		notifier = rails.LoggingNotifier{}
	}
	breaker := gobreaker.NewCircuitBreaker[string](gobreaker.Settings{
		Name:    "payment-rail",
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.Warn().
				Str("breaker", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("payment rail circuit breaker state changed")
		},
	})
	return &Processor{
		store:    st,
		ledger:   ldg,
		rail:     rail,
		notifier: notifier,
		breaker:  breaker,
		cfg:      cfg.withDefaults(),
		now:      time.Now,
	}
}

// SetClock overrides the processor clock. Tests only.
func (p *Processor) SetClock(now func() time.Time) { p.now = now }

// RequestParams is one withdrawal request.
type RequestParams struct {
	UserID       string
	AmountMicros int64
	Method       string
}

// Request validates and reserves a withdrawal. The ledger reservation and
// the PENDING payout row commit together.
func (p *Processor) Request(ctx context.Context, rp RequestParams) (*models.Payout, error) {
	if rp.AmountMicros < p.cfg.MinAmountMicros {
		return nil, fmt.Errorf("%d < %d micros: %w", rp.AmountMicros, p.cfg.MinAmountMicros, ErrBelowMinimum)
	}

	payout := &models.Payout{
		ID:           uuid.New().String(),
		UserID:       rp.UserID,
		AmountMicros: rp.AmountMicros,
		Status:       models.PayoutPending,
		Method:       rp.Method,
		CreatedAt:    p.now().UTC(),
	}

	err := p.store.WithTx(ctx, func(tx store.Tx) error {
		reservation, err := p.ledger.ReserveEarningsTx(ctx, tx, rp.UserID, rp.AmountMicros, payout.ID)
		if err != nil {
			if errors.Is(err, ledger.ErrWalletNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		payout.WalletID = reservation.WalletID
		payout.LedgerTxID = reservation.ID
		return tx.InsertPayout(ctx, payout)
	})
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("payout_id", payout.ID).
		Str("user_id", rp.UserID).
		Int64("amount_micros", rp.AmountMicros).
		Msg("payout requested")
	return payout, nil
}

// Get returns one payout.
func (p *Processor) Get(ctx context.Context, id string) (*models.Payout, error) {
	payout, err := p.store.Payout(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrPayoutNotFound
	}
	return payout, err
}

// Serve runs the submission worker until ctx is canceled. Designed for
// suture supervision.
func (p *Processor) Serve(ctx context.Context) error {
	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()

	logging.Info().
		Dur("poll_interval", p.cfg.PollInterval).
		Msg("payout submission worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := p.SubmitPending(ctx); err != nil {
				logging.Error().Err(err).Msg("payout submission scan failed")
			}
		}
	}
}

// SubmitPending hands every PENDING payout to the rail. Exported so tests
// and operational tooling can drive submission without the ticker.
func (p *Processor) SubmitPending(ctx context.Context) error {
	pending, err := p.store.PendingPayouts(ctx, p.cfg.BatchSize)
	if err != nil {
		return err
	}
	for i := range pending {
		if err := p.submit(ctx, &pending[i]); err != nil {
			logging.Error().Err(err).
				Str("payout_id", pending[i].ID).
				Msg("payout submission failed, will retry")
		}
	}
	return nil
}

// submit claims one payout and hands it to the rail. The claim is a guarded
// PENDING->PROCESSING flip so concurrent workers cannot double-submit; a
// rail failure releases the claim for the next scan.
func (p *Processor) submit(ctx context.Context, payout *models.Payout) error {
	var claimed bool
	err := p.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		claimed, err = tx.UpdatePayoutStatus(ctx, payout.ID,
			models.PayoutPending, models.PayoutProcessing, "", nil)
		return err
	})
	if err != nil {
		return err
	}
	if !claimed {
		return nil
	}

	railRef, err := p.breaker.Execute(func() (string, error) {
		return p.rail.SubmitPayout(ctx, rails.PayoutSubmission{
			PayoutID:     payout.ID,
			UserID:       payout.UserID,
			AmountMicros: payout.AmountMicros,
			Currency:     p.cfg.Currency,
			Destination:  payout.Method,
		})
	})
	if err != nil {
		// Release the claim; the next scan retries once the breaker
		// lets submissions through again.
		releaseErr := p.store.WithTx(ctx, func(tx store.Tx) error {
			_, err := tx.UpdatePayoutStatus(ctx, payout.ID,
				models.PayoutProcessing, models.PayoutPending, "", nil)
			return err
		})
		if releaseErr != nil {
			return fmt.Errorf("release claim after rail error %v: %w", err, releaseErr)
		}
		return err
	}

	err = p.store.WithTx(ctx, func(tx store.Tx) error {
		_, err := tx.UpdatePayoutStatus(ctx, payout.ID,
			models.PayoutProcessing, models.PayoutProcessing, railRef, nil)
		return err
	})
	if err != nil {
		return err
	}

	metrics.PayoutsSubmitted.Inc()
	logging.Ctx(ctx).Info().
		Str("payout_id", payout.ID).
		Str("rail_ref", railRef).
		Msg("payout submitted to payment rail")
	return nil
}

// HandleRailCallback settles a payout from the rail's webhook. Settlement is
// idempotent: a repeated callback finds the payout already settled and acks
// without touching the ledger again.
func (p *Processor) HandleRailCallback(ctx context.Context, payoutID string, succeeded bool) error {
	var payout *models.Payout
	err := p.store.WithTx(ctx, func(tx store.Tx) error {
		var err error
		payout, err = tx.PayoutForUpdate(ctx, payoutID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrPayoutNotFound
			}
			return err
		}

		target := models.PayoutCompleted
		if !succeeded {
			target = models.PayoutFailed
		}
		now := p.now().UTC()
		flipped, err := tx.UpdatePayoutStatus(ctx, payoutID,
			models.PayoutProcessing, target, payout.RailRef, &now)
		if err != nil {
			return err
		}
		if !flipped {
			// Already settled (or never claimed); nothing to do.
			payout = nil
			return nil
		}

		return p.ledger.SettleReservationTx(ctx, tx,
			payout.WalletID, payout.LedgerTxID, payout.AmountMicros, succeeded)
	})
	if err != nil {
		return err
	}
	if payout == nil {
		return nil
	}

	outcome := "completed"
	if !succeeded {
		outcome = "failed"
	}
	metrics.PayoutsSettled.WithLabelValues(outcome).Inc()
	logging.Ctx(ctx).Info().
		Str("payout_id", payoutID).
		Str("outcome", outcome).
		Int64("amount_micros", payout.AmountMicros).
		Msg("payout settled")

	p.notifier.PayoutSettled(ctx, payout.UserID, payoutID, succeeded)
	return nil
}
