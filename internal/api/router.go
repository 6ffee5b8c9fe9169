// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/emberworks/emberlive/internal/middleware"
)

// RouterConfig holds HTTP-level policy for the router: CORS origins,
// per-IP rate limiting for the REST surface, and whether the Prometheus
// scrape endpoint is mounted.
type RouterConfig struct {
	CORSAllowedOrigins []string
	RateLimitRequests  int
	RateLimitWindow    time.Duration
	MetricsEnabled     bool
}

// DefaultRouterConfig returns a secure default configuration.
// CORS origins default to empty, requiring explicit configuration.
func DefaultRouterConfig() RouterConfig {
	return RouterConfig{
		CORSAllowedOrigins: []string{},
		RateLimitRequests:  300,
		RateLimitWindow:    time.Minute,
		MetricsEnabled:     true,
	}
}

// NewRouter configures all HTTP routes using Chi router.
//
// Middleware ordering matters: request IDs are assigned before anything
// that logs, CORS runs globally so OPTIONS preflight is answered even
// for rate-limited groups, and the per-IP httprate limit guards only
// the /api/v1 surface so health probes and metrics scrapes are never
// throttled by client traffic.
func NewRouter(h *Handler, cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Global middleware stack, applied to all routes in order.
	r.Use(middleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSAllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization", "X-User-ID", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "Retry-After"},
		AllowCredentials: false,
		MaxAge:           86400,
	}))

	// Health endpoints sit outside the API rate limit group so load
	// balancer probes never get throttled behind client traffic.
	r.Route("/api/v1/health", func(r chi.Router) {
		r.Use(httprate.LimitByIP(1000, time.Minute))
		r.Get("/", h.Health)
		r.Get("/live", h.HealthLive)
	})

	// Core API endpoints.
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(httprate.Limit(
			cfg.RateLimitRequests,
			cfg.RateLimitWindow,
			httprate.WithKeyFuncs(httprate.KeyByIP),
		))
		r.Use(middleware.PrometheusMetrics)
		r.Use(chimiddleware.Compress(5, "application/json"))

		r.Post("/gifts", h.SendGift)

		r.Route("/streams/{streamID}/chat", func(r chi.Router) {
			r.Post("/", h.SendChat)
			r.Get("/", h.ChatHistory)
			r.Delete("/{messageID}", h.DeleteChat)
			r.Get("/ws", h.ChatSubscribe)
		})

		r.Route("/wallets/{userID}", func(r chi.Router) {
			r.Get("/", h.Wallet)
			r.Post("/purchase", h.Purchase)
		})

		r.Route("/subscriptions", func(r chi.Router) {
			r.Post("/", h.CreateSubscription)
			r.Delete("/{subscriptionID}", h.CancelSubscription)
		})

		r.Route("/payouts", func(r chi.Router) {
			r.Post("/", h.RequestPayout)
			r.Post("/callback", h.PayoutCallback)
		})
	})

	if cfg.MetricsEnabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	return r
}
