// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/emberworks/emberlive/internal/chat"
	"github.com/emberworks/emberlive/internal/gifting"
	"github.com/emberworks/emberlive/internal/ledger"
	"github.com/emberworks/emberlive/internal/payouts"
	"github.com/emberworks/emberlive/internal/rails"
	"github.com/emberworks/emberlive/internal/ratelimit"
	"github.com/emberworks/emberlive/internal/relay"
	"github.com/emberworks/emberlive/internal/subscriptions"
	"github.com/emberworks/emberlive/internal/validation"
)

// userIDHeader carries the authenticated user identity. Authentication
// itself happens at the edge proxy; the core trusts this header.
const userIDHeader = "X-User-ID"

// HandlerConfig holds the handler-level knobs.
type HandlerConfig struct {
	// Currency for coin purchases, ISO 4217.
	Currency string

	// HistoryLimit caps the chat transcript page size.
	HistoryLimit int
}

// Handler bundles the core services behind the HTTP surface.
type Handler struct {
	ledger  *ledger.Ledger
	gifts   *gifting.Coordinator
	chat    *chat.Service
	subs    *subscriptions.Service
	payouts *payouts.Processor
	hub     *relay.Hub
	limiter *ratelimit.Limiter
	rail    rails.PaymentRail
	cfg     HandlerConfig
}

// NewHandler creates the API handler.
func NewHandler(
	ldg *ledger.Ledger,
	gifts *gifting.Coordinator,
	chatSvc *chat.Service,
	subs *subscriptions.Service,
	payoutProc *payouts.Processor,
	hub *relay.Hub,
	limiter *ratelimit.Limiter,
	rail rails.PaymentRail,
	cfg HandlerConfig,
) *Handler {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = 50
	}
	return &Handler{
		ledger:  ldg,
		gifts:   gifts,
		chat:    chatSvc,
		subs:    subs,
		payouts: payoutProc,
		hub:     hub,
		limiter: limiter,
		rail:    rail,
		cfg:     cfg,
	}
}

// userID extracts the acting user from the request. Empty means the
// request is unauthenticated.
func userID(r *http.Request) string {
	if id := r.Header.Get(userIDHeader); id != "" {
		return id
	}
	// Websocket upgrades from browsers cannot set custom headers.
	return r.URL.Query().Get("user_id")
}

// decodeAndValidate decodes the JSON body into dst and runs struct
// validation, writing the error response itself on failure.
func decodeAndValidate(rw *ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		rw.Error(http.StatusBadRequest, ErrCodeValidationError, "malformed JSON body")
		return false
	}
	if verr := validation.ValidateStruct(dst); verr != nil {
		apiErr := verr.ToAPIError()
		rw.ValidationFailed(apiErr.Message, apiErr.Details)
		return false
	}
	return true
}
