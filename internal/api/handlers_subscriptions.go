// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/subscriptions"
)

// CreateSubscription handles POST /api/v1/subscriptions.
func (h *Handler) CreateSubscription(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	uid := userID(r)
	if uid == "" {
		rw.Unauthorized("missing user identity")
		return
	}

	var req CreateSubscriptionRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	sub, err := h.subs.Create(r.Context(), subscriptions.CreateParams{
		SubscriberID: uid,
		CreatorID:    req.CreatorID,
		Tier:         req.Tier,
		AmountMicros: req.AmountMicros,
	})
	if err != nil {
		status, code, msg := mapServiceError(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Msg("subscription create failed")
		}
		rw.Error(status, code, msg)
		return
	}

	rw.Created(sub)
}

// CancelSubscription handles DELETE /api/v1/subscriptions/{subscriptionID}.
// Canceling an already-canceled subscription acknowledges without error.
func (h *Handler) CancelSubscription(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	uid := userID(r)
	if uid == "" {
		rw.Unauthorized("missing user identity")
		return
	}

	subID := chi.URLParam(r, "subscriptionID")

	if err := h.subs.Cancel(r.Context(), subID, uid); err != nil {
		status, code, msg := mapServiceError(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Msg("subscription cancel failed")
		}
		rw.Error(status, code, msg)
		return
	}

	rw.Success(map[string]string{"subscription_id": subID, "status": "canceled"})
}
