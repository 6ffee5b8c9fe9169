// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

// Request payloads with validation tags. Field names that fail validation
// surface in the error details, so they stay close to the wire names.

// SendGiftRequest is the POST /api/v1/gifts payload.
type SendGiftRequest struct {
	ReceiverID     string `json:"receiver_id" validate:"required"`
	StreamID       string `json:"stream_id" validate:"required"`
	GiftType       string `json:"gift_type" validate:"required,max=64"`
	Coins          int64  `json:"coins" validate:"required,gt=0"`
	Message        string `json:"message" validate:"omitempty,max=500"`
	IsPublic       bool   `json:"is_public"`
	IdempotencyKey string `json:"idempotency_key" validate:"required,min=8,max=128"`
}

// SendChatRequest is the POST /api/v1/streams/{streamID}/chat payload.
type SendChatRequest struct {
	Content string `json:"content" validate:"required,max=500"`
	Type    string `json:"type" validate:"required,oneof=TEXT EMOTE"`
	EmoteID string `json:"emote_id" validate:"omitempty,max=64"`
}

// PurchaseRequest is the POST /api/v1/wallets/{userID}/purchase payload.
type PurchaseRequest struct {
	Coins       int64  `json:"coins" validate:"required,gt=0,lte=10000000"`
	PaymentRef  string `json:"payment_ref" validate:"required,max=128"`
	AmountMicro int64  `json:"amount_micros" validate:"required,gt=0"`
}

// CreateSubscriptionRequest is the POST /api/v1/subscriptions payload.
type CreateSubscriptionRequest struct {
	CreatorID    string `json:"creator_id" validate:"required"`
	Tier         string `json:"tier" validate:"required,max=64"`
	AmountMicros int64  `json:"amount_micros" validate:"required,gt=0"`
}

// PayoutRequest is the POST /api/v1/payouts payload.
type PayoutRequest struct {
	AmountMicros int64  `json:"amount_micros" validate:"required,gt=0"`
	Method       string `json:"method" validate:"required,max=64"`
}

// PayoutCallbackRequest is the rail settlement webhook payload.
type PayoutCallbackRequest struct {
	PayoutID  string `json:"payout_id" validate:"required"`
	Succeeded bool   `json:"succeeded"`
	RailRef   string `json:"rail_ref" validate:"omitempty,max=128"`
}
