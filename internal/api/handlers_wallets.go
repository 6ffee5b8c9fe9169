// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/rails"
)

// Wallet handles GET /api/v1/wallets/{userID}. Users may only read their
// own wallet.
func (h *Handler) Wallet(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	uid := userID(r)
	if uid == "" {
		rw.Unauthorized("missing user identity")
		return
	}

	target := chi.URLParam(r, "userID")
	if target != uid {
		rw.Error(http.StatusForbidden, ErrCodeForbidden, "cannot read another user's wallet")
		return
	}

	wallet, err := h.ledger.Wallet(r.Context(), target)
	if err != nil {
		status, code, msg := mapServiceError(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Msg("wallet read failed")
		}
		rw.Error(status, code, msg)
		return
	}

	rw.Success(wallet)
}

// Purchase handles POST /api/v1/wallets/{userID}/purchase. The card charge
// goes through the payment rail first; coins are credited only after the
// rail accepts the charge.
func (h *Handler) Purchase(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	uid := userID(r)
	if uid == "" {
		rw.Unauthorized("missing user identity")
		return
	}

	target := chi.URLParam(r, "userID")
	if target != uid {
		rw.Error(http.StatusForbidden, ErrCodeForbidden, "cannot purchase for another user")
		return
	}

	var req PurchaseRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	chargeRef, err := h.rail.ChargeCard(r.Context(), rails.ChargeRequest{
		UserID:       uid,
		AmountMicros: req.AmountMicro,
		Currency:     h.cfg.Currency,
		Reference:    req.PaymentRef,
	})
	if err != nil {
		logging.Ctx(r.Context()).Warn().Err(err).Str("user_id", uid).Msg("coin purchase charge declined")
		rw.Error(http.StatusBadRequest, ErrCodeChargeFailed, "payment was declined")
		return
	}

	txn, err := h.ledger.CreditCoins(r.Context(), uid, req.Coins, models.TransactionCoinPurchase)
	if err != nil {
		// The charge went through but the credit failed; surface loudly.
		logging.Ctx(r.Context()).Error().
			Err(err).
			Str("user_id", uid).
			Str("charge_ref", chargeRef).
			Msg("coin credit failed after successful charge")
		status, code, msg := mapServiceError(err)
		rw.Error(status, code, msg)
		return
	}

	rw.Created(map[string]interface{}{
		"transaction": txn,
		"charge_ref":  chargeRef,
	})
}
