// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package models

import "time"

// Stream is the metadata the core needs about a live stream. The surrounding
// product owns the rest of the stream record (title editing, thumbnails,
// discovery); the core only reads the flags that gate chat and gifting.
type Stream struct {
	ID           string    `json:"id"`
	HostID       string    `json:"host_id"`
	Live         bool      `json:"live"`
	ChatEnabled  bool      `json:"chat_enabled"`
	GiftsEnabled bool      `json:"gifts_enabled"`
	StartedAt    time.Time `json:"started_at"`
}

// StreamAggregate carries per-stream running counters. Counters only grow;
// corrections are explicit administrative updates, never decrements on the
// hot path.
type StreamAggregate struct {
	StreamID           string    `json:"stream_id"`
	TotalMessages      int64     `json:"total_messages"`
	TotalGifts         int64     `json:"total_gifts"`
	TotalRevenueMicros int64     `json:"total_revenue_micros"`
	ViewerCount        int       `json:"viewer_count"`
	UpdatedAt          time.Time `json:"updated_at"`
}
