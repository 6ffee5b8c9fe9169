// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package subscriptions manages recurring creator subscriptions.
//
// State machine: ACTIVE is entered on a successful first charge; successful
// renewals keep it ACTIVE and advance the period; a failed renewal moves it
// to PAST_DUE; a renewal from PAST_DUE that succeeds returns to ACTIVE;
// repeated failures or an explicit cancel reach the terminal CANCELED state.
package subscriptions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberworks/emberlive/internal/ledger"
	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/rails"
	"github.com/emberworks/emberlive/internal/store"
)

// Subscription failure conditions.
var (
	ErrAlreadySubscribed    = errors.New("subscriptions: active subscription already exists")
	ErrSubscriptionNotFound = errors.New("subscriptions: subscription not found")
	ErrForbidden            = errors.New("subscriptions: acting user may not modify this subscription")
	ErrSelfSubscribe        = errors.New("subscriptions: cannot subscribe to yourself")
	ErrInvalidAmount        = errors.New("subscriptions: amount must be positive")
	ErrChargeFailed         = errors.New("subscriptions: charge declined by payment rail")
)

// Config holds subscription policy.
type Config struct {
	// DefaultInterval is the billing period when a request does not set one.
	DefaultInterval time.Duration

	// CreatorShareBasisPoints is the creator's cut of each charge.
	CreatorShareBasisPoints int64

	// MaxRenewalFailures cancels a subscription after this many consecutive
	// failed renewals.
	MaxRenewalFailures int

	// RenewPollInterval is the due-subscription scan period.
	RenewPollInterval time.Duration

	// RenewBatchSize bounds each scan.
	RenewBatchSize int
}

func (c Config) withDefaults() Config {
	if c.DefaultInterval <= 0 {
		c.DefaultInterval = 30 * 24 * time.Hour
	}
	if c.CreatorShareBasisPoints <= 0 {
		c.CreatorShareBasisPoints = 7000
	}
	if c.MaxRenewalFailures <= 0 {
		c.MaxRenewalFailures = 3
	}
	if c.RenewPollInterval <= 0 {
		c.RenewPollInterval = time.Minute
	}
	if c.RenewBatchSize <= 0 {
		c.RenewBatchSize = 100
	}
	return c
}

// Service manages subscription state and renewals.
type Service struct {
	store  store.Store
	ledger *ledger.Ledger
	rail   rails.PaymentRail
	cfg    Config
	now    func() time.Time
}

// New creates a subscription Service.
func New(st store.Store, ldg *ledger.Ledger, rail rails.PaymentRail, cfg Config) *Service {
	if rail == nil {
		rail = rails.LoggingRail{}
	}
	return &Service{
		store:  st,
		ledger: ldg,
		rail:   rail,
		cfg:    cfg.withDefaults(),
		now:    time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// CreateParams is one subscription request.
type CreateParams struct {
	SubscriberID string
	CreatorID    string
	Tier         string
	AmountMicros int64
	Interval     time.Duration
}

// Create charges the first period and opens the subscription. The creator's
// share lands as earnings in the same transaction that inserts the row, so
// an open subscription always has its first charge accounted for.
func (s *Service) Create(ctx context.Context, p CreateParams) (*models.Subscription, error) {
	if p.AmountMicros <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.SubscriberID == p.CreatorID {
		return nil, ErrSelfSubscribe
	}
	if p.Interval <= 0 {
		p.Interval = s.cfg.DefaultInterval
	}

	if _, err := s.store.ActiveSubscription(ctx, p.SubscriberID, p.CreatorID); err == nil {
		return nil, ErrAlreadySubscribed
	} else if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	now := s.now().UTC()
	sub := &models.Subscription{
		ID:                 uuid.New().String(),
		SubscriberID:       p.SubscriberID,
		CreatorID:          p.CreatorID,
		Tier:               p.Tier,
		Status:             models.SubscriptionActive,
		AmountMicros:       p.AmountMicros,
		Interval:           p.Interval,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.Add(p.Interval),
		CreatedAt:          now,
	}

	if _, err := s.rail.ChargeCard(ctx, rails.ChargeRequest{
		UserID:       p.SubscriberID,
		AmountMicros: p.AmountMicros,
		Currency:     "USD",
		Reference:    sub.ID,
	}); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrChargeFailed, err)
	}

	share := s.creatorShare(p.AmountMicros)
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertSubscription(ctx, sub); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return ErrAlreadySubscribed
			}
			return err
		}
		_, err := s.ledger.CreditEarningsTx(ctx, tx, p.CreatorID, share,
			models.TransactionSubscriptionCharge, sub.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	logging.Ctx(ctx).Info().
		Str("subscription_id", sub.ID).
		Str("subscriber_id", p.SubscriberID).
		Str("creator_id", p.CreatorID).
		Int64("amount_micros", p.AmountMicros).
		Msg("subscription created")
	return sub, nil
}

// Cancel moves the subscription to the terminal CANCELED state. Only the
// subscriber may cancel. Canceling an already-canceled subscription acks.
func (s *Service) Cancel(ctx context.Context, id, actingUserID string) error {
	err := s.store.WithTx(ctx, func(tx store.Tx) error {
		sub, err := tx.SubscriptionForUpdate(ctx, id)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrSubscriptionNotFound
			}
			return err
		}
		if sub.SubscriberID != actingUserID {
			return ErrForbidden
		}
		if sub.Status == models.SubscriptionCanceled {
			return nil
		}
		now := s.now().UTC()
		sub.Status = models.SubscriptionCanceled
		sub.CanceledAt = &now
		return tx.UpdateSubscription(ctx, sub)
	})
	if err != nil {
		return err
	}

	logging.Ctx(ctx).Info().
		Str("subscription_id", id).
		Str("acting_user", actingUserID).
		Msg("subscription canceled")
	return nil
}

// Get returns one subscription.
func (s *Service) Get(ctx context.Context, id string) (*models.Subscription, error) {
	sub, err := s.store.Subscription(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrSubscriptionNotFound
	}
	return sub, err
}

// Serve runs the renewal worker until ctx is canceled. Designed for suture
// supervision.
func (s *Service) Serve(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.RenewPollInterval)
	defer ticker.Stop()

	logging.Info().
		Dur("poll_interval", s.cfg.RenewPollInterval).
		Msg("subscription renewal worker started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.RenewDue(ctx); err != nil {
				logging.Error().Err(err).Msg("renewal scan failed")
			}
		}
	}
}

// RenewDue processes every subscription whose period has lapsed. Exported so
// tests and operational tooling can drive renewals without the ticker.
func (s *Service) RenewDue(ctx context.Context) error {
	due, err := s.store.DueSubscriptions(ctx, s.now().UTC(), s.cfg.RenewBatchSize)
	if err != nil {
		return err
	}
	for i := range due {
		if err := s.renew(ctx, due[i].ID); err != nil {
			logging.Error().Err(err).
				Str("subscription_id", due[i].ID).
				Msg("subscription renewal errored")
		}
	}
	return nil
}

// renew charges one period. The rail charge happens before the state
// transaction; a charge that succeeds but fails to record is reconciled by
// the rail's charge reference (the subscription ID plus period start).
func (s *Service) renew(ctx context.Context, id string) error {
	sub, err := s.store.Subscription(ctx, id)
	if err != nil {
		return err
	}
	if sub.Status == models.SubscriptionCanceled {
		return nil
	}

	_, chargeErr := s.rail.ChargeCard(ctx, rails.ChargeRequest{
		UserID:       sub.SubscriberID,
		AmountMicros: sub.AmountMicros,
		Currency:     "USD",
		Reference:    fmt.Sprintf("%s:%d", sub.ID, sub.CurrentPeriodEnd.Unix()),
	})

	return s.store.WithTx(ctx, func(tx store.Tx) error {
		sub, err := tx.SubscriptionForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if sub.Status == models.SubscriptionCanceled {
			return nil
		}

		if chargeErr != nil {
			sub.RenewalFailures++
			if sub.RenewalFailures >= s.cfg.MaxRenewalFailures {
				now := s.now().UTC()
				sub.Status = models.SubscriptionCanceled
				sub.CanceledAt = &now
				logging.Ctx(ctx).Warn().
					Str("subscription_id", sub.ID).
					Int("failures", sub.RenewalFailures).
					Msg("subscription canceled after repeated failed renewals")
			} else {
				sub.Status = models.SubscriptionPastDue
				logging.Ctx(ctx).Warn().Err(chargeErr).
					Str("subscription_id", sub.ID).
					Int("failures", sub.RenewalFailures).
					Msg("subscription renewal charge failed")
			}
			return tx.UpdateSubscription(ctx, sub)
		}

		sub.Status = models.SubscriptionActive
		sub.RenewalFailures = 0
		sub.CurrentPeriodStart = sub.CurrentPeriodEnd
		sub.CurrentPeriodEnd = sub.CurrentPeriodEnd.Add(sub.Interval)
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		_, err = s.ledger.CreditEarningsTx(ctx, tx, sub.CreatorID,
			s.creatorShare(sub.AmountMicros), models.TransactionSubscriptionCharge, sub.ID)
		return err
	})
}

func (s *Service) creatorShare(amountMicros int64) int64 {
	return amountMicros * s.cfg.CreatorShareBasisPoints / 10000
}
