// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package rails defines the external collaborators the core depends on:
// the payment rail, the moderation service, and the notifier. Production
// deployments bind real providers; the stubs here log and succeed so the
// core runs standalone.
package rails

import (
	"context"

	"github.com/emberworks/emberlive/internal/logging"
)

// PayoutSubmission is a payout handed to the payment rail.
type PayoutSubmission struct {
	PayoutID     string
	UserID       string
	AmountMicros int64
	Currency     string
	Destination  string
}

// ChargeRequest is a card charge for a coin purchase or subscription period.
type ChargeRequest struct {
	UserID       string
	AmountMicros int64
	Currency     string
	Reference    string
}

// PaymentRail is the money-movement provider. Payout settlement is
// asynchronous: SubmitPayout returns a rail reference and the final outcome
// arrives later on the settlement webhook.
type PaymentRail interface {
	// SubmitPayout hands a payout to the rail and returns its reference.
	SubmitPayout(ctx context.Context, sub PayoutSubmission) (railRef string, err error)

	// ChargeCard charges synchronously and returns the rail's charge ref.
	ChargeCard(ctx context.Context, req ChargeRequest) (chargeRef string, err error)
}

// Verdict is a moderation decision on a message.
type Verdict struct {
	Allowed bool
	Reason  string
}

// ModerationService screens chat content before it is persisted.
type ModerationService interface {
	CheckMessage(ctx context.Context, streamID, userID, content string) (Verdict, error)
}

// Notifier delivers out-of-band notifications. Failures are logged, never
// surfaced to the operation that triggered them.
type Notifier interface {
	GiftReceived(ctx context.Context, receiverID, giftID string, valueMicros int64)
	PayoutSettled(ctx context.Context, userID, payoutID string, succeeded bool)
}

// LoggingRail is a PaymentRail stub that approves everything.
type LoggingRail struct{}

func (LoggingRail) SubmitPayout(ctx context.Context, sub PayoutSubmission) (string, error) {
	logging.Ctx(ctx).Info().
		Str("payout_id", sub.PayoutID).
		Str("user_id", sub.UserID).
		Int64("amount_micros", sub.AmountMicros).
		Msg("payout submitted to logging rail")
	return "lograil-" + sub.PayoutID, nil
}

func (LoggingRail) ChargeCard(ctx context.Context, req ChargeRequest) (string, error) {
	logging.Ctx(ctx).Info().
		Str("user_id", req.UserID).
		Int64("amount_micros", req.AmountMicros).
		Str("reference", req.Reference).
		Msg("card charged on logging rail")
	return "logcharge-" + req.Reference, nil
}

// AllowAllModeration is a ModerationService stub that allows every message.
type AllowAllModeration struct{}

func (AllowAllModeration) CheckMessage(ctx context.Context, streamID, userID, content string) (Verdict, error) {
	return Verdict{Allowed: true}, nil
}

// LoggingNotifier is a Notifier stub that only logs.
type LoggingNotifier struct{}

func (LoggingNotifier) GiftReceived(ctx context.Context, receiverID, giftID string, valueMicros int64) {
	logging.Ctx(ctx).Debug().
		Str("receiver_id", receiverID).
		Str("gift_id", giftID).
		Int64("value_micros", valueMicros).
		Msg("gift received notification")
}

func (LoggingNotifier) PayoutSettled(ctx context.Context, userID, payoutID string, succeeded bool) {
	logging.Ctx(ctx).Debug().
		Str("user_id", userID).
		Str("payout_id", payoutID).
		Bool("succeeded", succeeded).
		Msg("payout settled notification")
}
