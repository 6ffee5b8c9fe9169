// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package metrics provides Prometheus instrumentation for the Emberlive core:
// ledger throughput, gift commits, chat fanout behavior, websocket sessions,
// rate limiting, the outbox dispatcher, and API latency.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ledger metrics
	LedgerTransfers = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "ledger_transfers_total",
			Help: "Total number of committed wallet-to-wallet transfers",
		},
	)

	LedgerRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_rejections_total",
			Help: "Ledger mutations rejected before commit",
		},
		[]string{"reason"}, // insufficient_balance, wallet_not_found, invalid_amount
	)

	// Gift metrics
	GiftsCommitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gifts_committed_total",
			Help: "Total number of committed gift transactions",
		},
	)

	GiftCoinsSpent = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gift_coins_spent_total",
			Help: "Total coins spent on gifts",
		},
	)

	// Chat metrics
	ChatMessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_persisted_total",
			Help: "Total chat messages persisted, by type",
		},
		[]string{"type"},
	)

	ChatRateLimited = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Chat sends rejected by the per-user rate limiter",
		},
	)

	ChatRetractions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_retractions_total",
			Help: "Soft-deleted messages published as retractions",
		},
	)

	// Fanout metrics
	RelaySessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "relay_sessions_active",
			Help: "Currently connected viewer sessions across all streams",
		},
	)

	RelayEventsDelivered = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_delivered_total",
			Help: "Events enqueued to viewer session buffers",
		},
	)

	RelayEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_events_dropped_total",
			Help: "Events dropped because a session buffer was full",
		},
	)

	RelaySessionsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "relay_sessions_evicted_total",
			Help: "Sessions disconnected after sustained buffer overflow",
		},
	)

	// Outbox metrics
	OutboxPublished = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_events_published_total",
			Help: "Outbox events successfully published to the relay bus",
		},
	)

	OutboxRetries = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "outbox_publish_retries_total",
			Help: "Failed outbox publish attempts that will be retried",
		},
	)

	// Payout metrics
	PayoutsSubmitted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "payouts_submitted_total",
			Help: "Payouts handed to the payment rail",
		},
	)

	PayoutsSettled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payouts_settled_total",
			Help: "Payouts settled by rail callback, by outcome",
		},
		[]string{"outcome"}, // completed, failed
	)

	// API metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	// Invariant alerts, wired to alerting
	InvariantViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ledger_invariant_violations_total",
			Help: "Commits refused because they would break a balance invariant",
		},
		[]string{"invariant"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(statusCode)).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(start bool) {
	if start {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}
