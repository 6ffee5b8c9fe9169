// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"net/http"

	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/payouts"
)

// RequestPayout handles POST /api/v1/payouts. The payout is reserved
// synchronously and settles asynchronously through the rail callback,
// so success is 202.
func (h *Handler) RequestPayout(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	uid := userID(r)
	if uid == "" {
		rw.Unauthorized("missing user identity")
		return
	}

	var req PayoutRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	payout, err := h.payouts.Request(r.Context(), payouts.RequestParams{
		UserID:       uid,
		AmountMicros: req.AmountMicros,
		Method:       req.Method,
	})
	if err != nil {
		status, code, msg := mapServiceError(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Msg("payout request failed")
		}
		rw.Error(status, code, msg)
		return
	}

	rw.Accepted(payout)
}

// PayoutCallback handles POST /api/v1/payouts/callback, the settlement
// webhook from the payment rail. Redelivery of a settled payout is a no-op
// ack so the rail can retry safely.
func (h *Handler) PayoutCallback(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	var req PayoutCallbackRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	if err := h.payouts.HandleRailCallback(r.Context(), req.PayoutID, req.Succeeded); err != nil {
		status, code, msg := mapServiceError(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Str("payout_id", req.PayoutID).Msg("payout settlement failed")
		}
		rw.Error(status, code, msg)
		return
	}

	rw.Success(map[string]string{"payout_id": req.PayoutID, "status": "acknowledged"})
}
