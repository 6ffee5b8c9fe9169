// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package models

import "time"

// SubscriptionStatus is the recurring-billing state.
//
// Machine: ACTIVE -> CANCELED (terminal), or ACTIVE -> PAST_DUE -> CANCELED.
// A successful renewal from PAST_DUE returns to ACTIVE.
type SubscriptionStatus string

const (
	SubscriptionActive   SubscriptionStatus = "ACTIVE"
	SubscriptionPastDue  SubscriptionStatus = "PAST_DUE"
	SubscriptionCanceled SubscriptionStatus = "CANCELED"
)

// Subscription is a recurring creator subscription.
type Subscription struct {
	ID                 string             `json:"id"`
	SubscriberID       string             `json:"subscriber_id"`
	CreatorID          string             `json:"creator_id"`
	Tier               string             `json:"tier"`
	Status             SubscriptionStatus `json:"status"`
	AmountMicros       int64              `json:"amount_micros"`
	Interval           time.Duration      `json:"interval"`
	CurrentPeriodStart time.Time          `json:"current_period_start"`
	CurrentPeriodEnd   time.Time          `json:"current_period_end"`
	RenewalFailures    int                `json:"renewal_failures"`
	CreatedAt          time.Time          `json:"created_at"`
	CanceledAt         *time.Time         `json:"canceled_at,omitempty"`
}

// PayoutStatus is the lifecycle state of a withdrawal.
type PayoutStatus string

const (
	PayoutPending    PayoutStatus = "PENDING"
	PayoutProcessing PayoutStatus = "PROCESSING"
	PayoutCompleted  PayoutStatus = "COMPLETED"
	PayoutFailed     PayoutStatus = "FAILED"
)

// Payout is one withdrawal request drawing down accrued earnings. Created
// PENDING with the amount reserved out of pending earnings; settled by the
// payment rail's callback. A FAILED payout restores the reservation.
type Payout struct {
	ID           string       `json:"id"`
	UserID       string       `json:"user_id"`
	WalletID     string       `json:"wallet_id"`
	AmountMicros int64        `json:"amount_micros"`
	Status       PayoutStatus `json:"status"`
	Method       string       `json:"method"`
	RailRef      string       `json:"rail_ref,omitempty"`
	// LedgerTxID is the PENDING PAYOUT transaction reserving the funds;
	// settlement completes or fails that movement.
	LedgerTxID string     `json:"-"`
	CreatedAt  time.Time  `json:"created_at"`
	SettledAt  *time.Time `json:"settled_at,omitempty"`
}
