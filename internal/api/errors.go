// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/emberworks/emberlive/internal/chat"
	"github.com/emberworks/emberlive/internal/gifting"
	"github.com/emberworks/emberlive/internal/ledger"
	"github.com/emberworks/emberlive/internal/payouts"
	"github.com/emberworks/emberlive/internal/subscriptions"
)

// mapServiceError translates a service-layer error to an HTTP status and a
// stable error code. Validation and state-conflict errors surface verbatim;
// anything unrecognized is an internal error so internals never leak.
func mapServiceError(err error) (status int, code, message string) {
	switch {
	// Ledger
	case errors.Is(err, ledger.ErrInsufficientBalance):
		return http.StatusBadRequest, ErrCodeInsufficientBalance, "insufficient coin balance"
	case errors.Is(err, ledger.ErrInsufficientEarnings):
		return http.StatusBadRequest, ErrCodeInsufficientBalance, "insufficient payable earnings"
	case errors.Is(err, ledger.ErrWalletNotFound):
		return http.StatusNotFound, ErrCodeWalletNotFound, "wallet not found"
	case errors.Is(err, ledger.ErrInvalidAmount):
		return http.StatusBadRequest, ErrCodeInvalidOperation, "amount must be positive"

	// Gifting
	case errors.Is(err, gifting.ErrSelfGift):
		return http.StatusBadRequest, ErrCodeInvalidOperation, "cannot send a gift to yourself"
	case errors.Is(err, gifting.ErrStreamNotFound):
		return http.StatusNotFound, ErrCodeStreamNotFound, "stream not found"
	case errors.Is(err, gifting.ErrStreamNotLive):
		return http.StatusBadRequest, ErrCodeStreamNotLive, "stream is not live"
	case errors.Is(err, gifting.ErrGiftsDisabled):
		return http.StatusForbidden, ErrCodeGiftsDisabled, "gifts are disabled for this stream"
	case errors.Is(err, gifting.ErrInvalidCoins):
		return http.StatusBadRequest, ErrCodeInvalidOperation, "coin amount out of range"
	case errors.Is(err, gifting.ErrMissingIdemKey):
		return http.StatusBadRequest, ErrCodeValidationError, "idempotency key is required"

	// Chat
	case errors.Is(err, chat.ErrStreamNotFound):
		return http.StatusNotFound, ErrCodeStreamNotFound, "stream not found"
	case errors.Is(err, chat.ErrStreamNotLive):
		return http.StatusBadRequest, ErrCodeStreamNotLive, "stream is not live"
	case errors.Is(err, chat.ErrChatDisabled):
		return http.StatusForbidden, ErrCodeChatDisabled, "chat is disabled for this stream"
	case errors.Is(err, chat.ErrUserBlocked):
		return http.StatusForbidden, ErrCodeUserBlocked, "you are blocked on this stream"
	case errors.Is(err, chat.ErrRateLimited):
		return http.StatusTooManyRequests, ErrCodeRateLimited, "too many messages, slow down"
	case errors.Is(err, chat.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden, "not allowed to perform this action"
	case errors.Is(err, chat.ErrMessageNotFound):
		return http.StatusNotFound, ErrCodeMessageNotFound, "message not found"
	case errors.Is(err, chat.ErrEmptyMessage):
		return http.StatusBadRequest, ErrCodeValidationError, "message has no content"
	case errors.Is(err, chat.ErrInvalidType):
		return http.StatusBadRequest, ErrCodeValidationError, "message type not allowed"

	// Subscriptions
	case errors.Is(err, subscriptions.ErrAlreadySubscribed):
		return http.StatusConflict, ErrCodeAlreadySubscribed, "active subscription already exists"
	case errors.Is(err, subscriptions.ErrSubscriptionNotFound):
		return http.StatusNotFound, ErrCodeSubscriptionNotFound, "subscription not found"
	case errors.Is(err, subscriptions.ErrForbidden):
		return http.StatusForbidden, ErrCodeForbidden, "not allowed to modify this subscription"
	case errors.Is(err, subscriptions.ErrSelfSubscribe):
		return http.StatusBadRequest, ErrCodeInvalidOperation, "cannot subscribe to yourself"
	case errors.Is(err, subscriptions.ErrInvalidAmount):
		return http.StatusBadRequest, ErrCodeInvalidOperation, "amount must be positive"
	case errors.Is(err, subscriptions.ErrChargeFailed):
		return http.StatusBadRequest, ErrCodeChargeFailed, "payment was declined"

	// Payouts
	case errors.Is(err, payouts.ErrBelowMinimum):
		return http.StatusBadRequest, ErrCodePayoutBelowMinimum, "amount is below the payout minimum"
	case errors.Is(err, payouts.ErrPayoutNotFound):
		return http.StatusNotFound, ErrCodePayoutNotFound, "payout not found"
	case errors.Is(err, payouts.ErrWalletNotFound):
		return http.StatusNotFound, ErrCodeWalletNotFound, "wallet not found"

	// Transient infrastructure failures surface as retryable 503s.
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, ErrCodeStorageTimeout, "storage timed out, retry the request"
	}

	return http.StatusInternalServerError, ErrCodeInternalError, "internal error"
}
