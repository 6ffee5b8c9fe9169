// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package models

import "time"

// Gift is the immutable record of one successful gift send. It is created
// only as the terminal step of a committed gift transaction, so a Gift row
// always has matching GIFT_SENT/GIFT_RECEIVED ledger movements.
type Gift struct {
	ID         string    `json:"id"`
	StreamID   string    `json:"stream_id"`
	SenderID   string    `json:"sender_id"`
	ReceiverID string    `json:"receiver_id"`
	GiftType   string    `json:"gift_type"`
	Coins      int64     `json:"coins"`
	// ValueMicros is the receiver's payout share in micro-USD
	// (coins x unit price x creator share).
	ValueMicros    int64     `json:"value_micros"`
	Message        string    `json:"message,omitempty"`
	IsPublic       bool      `json:"is_public"`
	IdempotencyKey string    `json:"-"`
	CreatedAt      time.Time `json:"created_at"`
}
