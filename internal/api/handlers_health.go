// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"net/http"
	"time"
)

var startTime = time.Now()

// Health handles GET /api/v1/health.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	rw := NewResponseWriter(w, r)

	rw.Success(map[string]interface{}{
		"status":          "ok",
		"uptime_seconds":  int64(time.Since(startTime).Seconds()),
		"active_sessions": h.hub.SessionCount(),
	})
}

// HealthLive handles GET /api/v1/health/live. Liveness only: the process
// is up and serving.
func (h *Handler) HealthLive(w http.ResponseWriter, r *http.Request) {
	NewResponseWriter(w, r).Success(map[string]string{"status": "alive"})
}
