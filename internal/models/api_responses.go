// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package models

import "time"

// APIResponse is the standardized response wrapper used by every HTTP
// endpoint, for both success and error outcomes.
//
// Example error response:
//
//	{
//	  "status": "error",
//	  "error": {"code": "insufficient_balance", "message": "wallet has 10 coins, gift costs 50"},
//	  "metadata": {"timestamp": "2026-08-27T12:00:00Z"}
//	}
type APIResponse struct {
	Status   string      `json:"status"`
	Data     interface{} `json:"data"`
	Metadata Metadata    `json:"metadata"`
	Error    *APIError   `json:"error,omitempty"`
}

// Metadata carries response metadata for observability.
type Metadata struct {
	Timestamp   time.Time `json:"timestamp"`
	QueryTimeMS int64     `json:"query_time_ms,omitempty"`
}

// APIError is a machine-readable error: a stable code clients can branch on
// plus a human-readable message.
type APIError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Stable error codes returned by the API. These are part of the public
// contract; clients key retry/top-up/cooldown behavior off them.
const (
	CodeValidationError     = "validation_error"
	CodeInsufficientBalance = "insufficient_balance"
	CodeWalletNotFound      = "wallet_not_found"
	CodeStreamNotFound      = "stream_not_found"
	CodeStreamNotLive       = "stream_not_live"
	CodeGiftsDisabled       = "gifts_disabled"
	CodeChatDisabled        = "chat_disabled"
	CodeInvalidOperation    = "invalid_operation"
	CodeUserBlocked         = "user_blocked"
	CodeRateLimited         = "rate_limited"
	CodeMessageNotFound     = "message_not_found"
	CodeForbidden           = "forbidden"
	CodeAlreadySubscribed   = "already_subscribed"
	CodeSubscriptionMissing = "subscription_not_found"
	CodePayoutBelowMinimum  = "payout_below_minimum"
	CodePayoutNotFound      = "payout_not_found"
	CodePaymentRailError    = "payment_rail_error"
	CodeStorageTimeout      = "storage_timeout"
	CodeInternalError       = "internal_error"
)
