// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package models

import "time"

// MicrosPerUSD is the scale factor for money amounts. All amounts in the
// ledger are integer micro-USD so balance math is exact.
const MicrosPerUSD = 1_000_000

// Wallet is a user's authoritative balance record. Coins are the spendable
// virtual currency; earnings accrue in micro-USD and are drawn down by payouts.
//
// Invariants maintained by the ledger: Coins >= 0 and PendingEarningsMicros >= 0
// at every commit. A wallet is created once per account (with the welcome
// bonus) and never deleted while the account exists.
type Wallet struct {
	ID                    string    `json:"id"`
	UserID                string    `json:"user_id"`
	Coins                 int64     `json:"coins"`
	PendingEarningsMicros int64     `json:"pending_earnings_micros"`
	TotalEarningsMicros   int64     `json:"total_earnings_micros"`
	Currency              string    `json:"currency"`
	CreatedAt             time.Time `json:"created_at"`
	UpdatedAt             time.Time `json:"updated_at"`
}

// TransactionType classifies a ledger movement.
type TransactionType string

const (
	TransactionCoinPurchase       TransactionType = "COIN_PURCHASE"
	TransactionGiftSent           TransactionType = "GIFT_SENT"
	TransactionGiftReceived       TransactionType = "GIFT_RECEIVED"
	TransactionSubscriptionCharge TransactionType = "SUBSCRIPTION_CHARGE"
	TransactionPayout             TransactionType = "PAYOUT"
)

// TransactionStatus is the lifecycle state of a ledger movement.
type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "PENDING"
	TransactionCompleted TransactionStatus = "COMPLETED"
	TransactionFailed    TransactionStatus = "FAILED"
)

// Transaction is one immutable ledger movement. The audit trail is
// append-only: the sum of all COMPLETED movements for a wallet reconciles
// exactly with the wallet's current balances.
//
// CorrelationID links the two halves of a transfer (GIFT_SENT and
// GIFT_RECEIVED share one correlation ID).
type Transaction struct {
	ID            string            `json:"id"`
	WalletID      string            `json:"wallet_id"`
	Type          TransactionType   `json:"type"`
	AmountMicros  int64             `json:"amount_micros"`
	Coins         int64             `json:"coins,omitempty"`
	Status        TransactionStatus `json:"status"`
	CorrelationID string            `json:"correlation_id,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	CompletedAt   *time.Time        `json:"completed_at,omitempty"`
}

// TransactionPair is the result of a transfer: the sender's debit and the
// receiver's credit, written atomically with a shared correlation ID.
type TransactionPair struct {
	Sent     *Transaction `json:"sent"`
	Received *Transaction `json:"received"`
}
