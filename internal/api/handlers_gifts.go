// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"net/http"

	"github.com/emberworks/emberlive/internal/gifting"
	"github.com/emberworks/emberlive/internal/logging"
)

// SendGift handles POST /api/v1/gifts.
func (h *Handler) SendGift(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	sender := userID(r)
	if sender == "" {
		rw.Unauthorized("missing user identity")
		return
	}

	var req SendGiftRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	gift, err := h.gifts.SendGift(r.Context(), gifting.SendGiftParams{
		SenderID:       sender,
		ReceiverID:     req.ReceiverID,
		StreamID:       req.StreamID,
		GiftType:       req.GiftType,
		Coins:          req.Coins,
		Message:        req.Message,
		IsPublic:       req.IsPublic,
		IdempotencyKey: req.IdempotencyKey,
	})
	if err != nil {
		status, code, msg := mapServiceError(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Msg("gift send failed")
		}
		rw.Error(status, code, msg)
		return
	}

	rw.Created(gift)
}
