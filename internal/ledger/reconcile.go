// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/metrics"
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/store"
)

// ErrReconciliationMismatch indicates the audit trail no longer explains the
// wallet's balances. This is an invariant violation: it raises an alert and
// must be investigated, never auto-corrected.
var ErrReconciliationMismatch = errors.New("ledger: reconciliation mismatch")

// ReconcileReport is the audit result for one wallet.
type ReconcileReport struct {
	WalletID              string `json:"wallet_id"`
	Coins                 int64  `json:"coins"`
	CoinsFromTrail        int64  `json:"coins_from_trail"`
	PendingEarningsMicros int64  `json:"pending_earnings_micros"`
	PendingFromTrail      int64  `json:"pending_from_trail"`
	TotalEarningsMicros   int64  `json:"total_earnings_micros"`
	TotalFromTrail        int64  `json:"total_from_trail"`
	Consistent            bool   `json:"consistent"`
}

// Reconcile replays the wallet's movement trail and checks it against the
// stored balances: coins must equal the sum of COMPLETED coin deltas,
// lifetime earnings the sum of positive COMPLETED amounts, and pending
// earnings that sum minus completed and still-reserved payouts.
func (l *Ledger) Reconcile(ctx context.Context, walletID string) (*ReconcileReport, error) {
	w, err := l.store.WalletByID(ctx, walletID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}

	trail, err := l.store.TransactionsByWallet(ctx, walletID)
	if err != nil {
		return nil, fmt.Errorf("load trail: %w", err)
	}

	var coins, earned, drawnDown int64
	for _, t := range trail {
		switch t.Status {
		case models.TransactionCompleted:
			coins += t.Coins
			if t.AmountMicros > 0 {
				earned += t.AmountMicros
			} else {
				drawnDown += -t.AmountMicros
			}
		case models.TransactionPending:
			// A pending payout has already left the payable balance.
			if t.Type == models.TransactionPayout {
				drawnDown += -t.AmountMicros
			}
		case models.TransactionFailed:
			// Failed movements were reversed; they contribute nothing.
		}
	}

	report := &ReconcileReport{
		WalletID:              walletID,
		Coins:                 w.Coins,
		CoinsFromTrail:        coins,
		PendingEarningsMicros: w.PendingEarningsMicros,
		PendingFromTrail:      earned - drawnDown,
		TotalEarningsMicros:   w.TotalEarningsMicros,
		TotalFromTrail:        earned,
	}
	report.Consistent = report.Coins == report.CoinsFromTrail &&
		report.PendingEarningsMicros == report.PendingFromTrail &&
		report.TotalEarningsMicros == report.TotalFromTrail

	if !report.Consistent {
		metrics.InvariantViolations.WithLabelValues("reconciliation").Inc()
		logging.Ctx(ctx).Error().
			Str("wallet_id", walletID).
			Int64("coins", report.Coins).
			Int64("coins_from_trail", report.CoinsFromTrail).
			Int64("pending", report.PendingEarningsMicros).
			Int64("pending_from_trail", report.PendingFromTrail).
			Msg("wallet reconciliation mismatch")
		return report, ErrReconciliationMismatch
	}
	return report, nil
}
