// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/emberworks/emberlive/internal/models"
)

const subscriptionColumns = `id, subscriber_id, creator_id, tier, status, amount_micros,
	interval_seconds, current_period_start, current_period_end, renewal_failures,
	created_at, canceled_at`

func scanSubscription(row interface{ Scan(...any) error }) (*models.Subscription, error) {
	var s models.Subscription
	var intervalSeconds int64
	err := row.Scan(&s.ID, &s.SubscriberID, &s.CreatorID, &s.Tier, &s.Status,
		&s.AmountMicros, &intervalSeconds, &s.CurrentPeriodStart, &s.CurrentPeriodEnd,
		&s.RenewalFailures, &s.CreatedAt, &s.CanceledAt)
	if err != nil {
		return nil, translateErr(err)
	}
	s.Interval = time.Duration(intervalSeconds) * time.Second
	return &s, nil
}

func (s *Store) Subscription(ctx context.Context, id string) (*models.Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) ActiveSubscription(ctx context.Context, subscriberID, creatorID string) (*models.Subscription, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE subscriber_id = $1 AND creator_id = $2 AND status <> 'CANCELED'`,
		subscriberID, creatorID)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("get active subscription: %w", err)
	}
	return sub, nil
}

func (s *Store) DueSubscriptions(ctx context.Context, now time.Time, limit int) ([]models.Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+` FROM subscriptions
		WHERE status <> 'CANCELED' AND current_period_end <= $1
		ORDER BY current_period_end
		LIMIT $2`, now, limit)
	if err != nil {
		return nil, fmt.Errorf("query due subscriptions: %w", err)
	}
	defer rows.Close()

	var out []models.Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, fmt.Errorf("scan subscription: %w", err)
		}
		out = append(out, *sub)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertSubscription(ctx context.Context, s *models.Subscription) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO subscriptions (id, subscriber_id, creator_id, tier, status,
		                           amount_micros, interval_seconds, current_period_start,
		                           current_period_end, renewal_failures, created_at, canceled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`,
		s.ID, s.SubscriberID, s.CreatorID, s.Tier, s.Status,
		s.AmountMicros, int64(s.Interval/time.Second), s.CurrentPeriodStart,
		s.CurrentPeriodEnd, s.RenewalFailures, s.CreatedAt, nullableTime(s.CanceledAt))
	if err != nil {
		return fmt.Errorf("insert subscription: %w", translateErr(err))
	}
	return nil
}

func (t *pgTx) SubscriptionForUpdate(ctx context.Context, id string) (*models.Subscription, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE id = $1 FOR UPDATE`, id)
	sub, err := scanSubscription(row)
	if err != nil {
		return nil, fmt.Errorf("lock subscription: %w", err)
	}
	return sub, nil
}

func (t *pgTx) UpdateSubscription(ctx context.Context, s *models.Subscription) error {
	_, err := t.tx.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, current_period_start = $3, current_period_end = $4,
		    renewal_failures = $5, canceled_at = $6
		WHERE id = $1`,
		s.ID, s.Status, s.CurrentPeriodStart, s.CurrentPeriodEnd,
		s.RenewalFailures, nullableTime(s.CanceledAt))
	if err != nil {
		return fmt.Errorf("update subscription: %w", translateErr(err))
	}
	return nil
}
