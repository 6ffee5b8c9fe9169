// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/relay"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// Cross-origin policy is enforced by the CORS middleware in front of
	// the router; the upgrader accepts what got that far.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// ChatSubscribe handles GET /api/v1/streams/{streamID}/chat/ws. It upgrades
// the connection and registers a relay session; delivery ends when the
// client disconnects or the hub evicts the session.
func (h *Handler) ChatSubscribe(w http.ResponseWriter, r *http.Request) {
	uid := userID(r)
	if uid == "" {
		NewResponseWriter(w, r).Unauthorized("missing user identity")
		return
	}

	streamID := chi.URLParam(r, "streamID")
	if err := h.chat.CanSubscribe(r.Context(), streamID); err != nil {
		status, code, msg := mapServiceError(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Msg("chat subscribe check failed")
		}
		NewResponseWriter(w, r).Error(status, code, msg)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error.
		logging.Ctx(r.Context()).Warn().Err(err).Str("stream_id", streamID).Msg("websocket upgrade failed")
		return
	}

	session := relay.NewSession(h.hub, conn, uid, streamID)
	h.hub.Register <- session
	session.Start()

	logging.Ctx(r.Context()).Debug().
		Str("stream_id", streamID).
		Str("user_id", uid).
		Uint64("session_id", session.ID()).
		Msg("chat subscriber connected")
}
