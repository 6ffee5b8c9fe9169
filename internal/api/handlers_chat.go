// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/emberworks/emberlive/internal/chat"
	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/models"
)

// SendChat handles POST /api/v1/streams/{streamID}/chat.
func (h *Handler) SendChat(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	uid := userID(r)
	if uid == "" {
		rw.Unauthorized("missing user identity")
		return
	}

	var req SendChatRequest
	if !decodeAndValidate(rw, r, &req) {
		return
	}

	params := chat.SendParams{
		StreamID: chi.URLParam(r, "streamID"),
		UserID:   uid,
		Content:  req.Content,
		Type:     models.MessageType(req.Type),
	}
	if params.Type == models.MessageEmote && req.EmoteID != "" {
		params.Metadata = &models.EmoteMetadata{EmoteID: req.EmoteID}
	}

	msg, err := h.chat.SendMessage(r.Context(), params)
	if err != nil {
		status, code, errMsg := mapServiceError(err)
		if status == http.StatusTooManyRequests {
			// Tell the client when the window reopens.
			w.Header().Set("Retry-After", strconv.Itoa(int(h.limiter.RetryAfter().Seconds())+1))
		}
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Msg("chat send failed")
		}
		rw.Error(status, code, errMsg)
		return
	}

	rw.Created(msg)
}

// DeleteChat handles DELETE /api/v1/streams/{streamID}/chat/{messageID}.
// Deleting an already-deleted message acknowledges without error.
func (h *Handler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	uid := userID(r)
	if uid == "" {
		rw.Unauthorized("missing user identity")
		return
	}

	streamID := chi.URLParam(r, "streamID")
	messageID := chi.URLParam(r, "messageID")

	if err := h.chat.DeleteMessage(r.Context(), streamID, messageID, uid); err != nil {
		status, code, msg := mapServiceError(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Msg("chat delete failed")
		}
		rw.Error(status, code, msg)
		return
	}

	rw.Success(map[string]string{"message_id": messageID, "status": "deleted"})
}

// ChatHistory handles GET /api/v1/streams/{streamID}/chat.
// Optional query params: limit, before (RFC3339).
func (h *Handler) ChatHistory(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	streamID := chi.URLParam(r, "streamID")

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			rw.Error(http.StatusBadRequest, ErrCodeValidationError, "limit must be a positive integer")
			return
		}
		limit = n
	}

	var before time.Time
	if raw := r.URL.Query().Get("before"); raw != "" {
		t, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			rw.Error(http.StatusBadRequest, ErrCodeValidationError, "before must be an RFC3339 timestamp")
			return
		}
		before = t
	}

	messages, err := h.chat.History(r.Context(), streamID, limit, before)
	if err != nil {
		status, code, msg := mapServiceError(err)
		if status >= http.StatusInternalServerError {
			logging.Ctx(r.Context()).Error().Err(err).Msg("chat history failed")
		}
		rw.Error(status, code, msg)
		return
	}

	rw.Success(map[string]interface{}{
		"stream_id": streamID,
		"messages":  messages,
		"count":     len(messages),
	})
}
