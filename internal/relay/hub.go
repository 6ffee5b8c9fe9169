// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package relay delivers committed chat events to live websocket
// subscribers. The hub owns all session membership; sessions register and
// unregister through channels so membership changes and broadcasts are
// serialized by a single goroutine.
//
// Delivery is fire-and-forget: each session has a bounded send buffer, a
// full buffer drops the event for that session only, and a session that
// keeps falling behind is disconnected. A slow consumer can never block
// the fanout loop or other sessions.
package relay

import (
	"context"
	"sort"
	"sync"

	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/metrics"
)

// HubConfig bounds the hub's queues and per-stream membership.
type HubConfig struct {
	// BroadcastBuffer is the hub's inbound event queue length.
	BroadcastBuffer int

	// SessionBuffer is each session's send queue length.
	SessionBuffer int

	// MaxSessionsPerStream caps subscribers per stream. When a new session
	// pushes a stream over the cap, the oldest session is evicted.
	MaxSessionsPerStream int

	// MaxConsecutiveDrops disconnects a session after this many dropped
	// events in a row. A delivered event resets the count.
	MaxConsecutiveDrops int
}

func (c HubConfig) withDefaults() HubConfig {
	if c.BroadcastBuffer <= 0 {
		c.BroadcastBuffer = 256
	}
	if c.SessionBuffer <= 0 {
		c.SessionBuffer = 64
	}
	if c.MaxSessionsPerStream <= 0 {
		c.MaxSessionsPerStream = 10000
	}
	if c.MaxConsecutiveDrops <= 0 {
		c.MaxConsecutiveDrops = 8
	}
	return c
}

// Hub maintains per-stream session sets and fans committed events out to
// them in deterministic session-ID order.
type Hub struct {
	cfg       HubConfig
	streams   map[string]map[*Session]bool
	broadcast chan Event

	Register   chan *Session
	Unregister chan *Session

	mu sync.RWMutex
}

// NewHub creates a Hub with the given bounds.
func NewHub(cfg HubConfig) *Hub {
	cfg = cfg.withDefaults()
	return &Hub{
		cfg:        cfg,
		streams:    make(map[string]map[*Session]bool),
		broadcast:  make(chan Event, cfg.BroadcastBuffer),
		Register:   make(chan *Session),
		Unregister: make(chan *Session),
	}
}

// Serve runs the hub loop until ctx is canceled. Designed for suture
// supervision: on cancellation every session is closed and ctx.Err()
// is returned.
//
// Channel readiness is checked in priority order (shutdown, lifecycle,
// broadcast) so membership is always settled before an event fans out.
func (h *Hub) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		default:
		}

		select {
		case s := <-h.Register:
			h.register(s)
			continue
		case s := <-h.Unregister:
			h.unregister(s)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			h.shutdown(ctx)
			return ctx.Err()
		case s := <-h.Register:
			h.register(s)
		case s := <-h.Unregister:
			h.unregister(s)
		case e := <-h.broadcast:
			h.fanout(e)
		}
	}
}

// Broadcast enqueues an event for fanout without blocking the caller.
// A full hub queue drops the event; subscribers are an at-most-once
// audience, the transcript of record lives in storage.
func (h *Hub) Broadcast(e Event) {
	select {
	case h.broadcast <- e:
	default:
		metrics.RelayEventsDropped.Inc()
		logging.Warn().
			Str("stream_id", e.StreamID).
			Str("kind", string(e.Kind)).
			Msg("relay broadcast queue full, dropping event")
	}
}

// ViewerCount returns the number of live sessions subscribed to a stream.
func (h *Hub) ViewerCount(streamID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.streams[streamID])
}

// SessionCount returns the number of live sessions across all streams.
func (h *Hub) SessionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for _, set := range h.streams {
		n += len(set)
	}
	return n
}

func (h *Hub) register(s *Session) {
	h.mu.Lock()
	set, ok := h.streams[s.streamID]
	if !ok {
		set = make(map[*Session]bool)
		h.streams[s.streamID] = set
	}
	set[s] = true

	// Over the cap, the oldest session yields its seat.
	var evicted *Session
	if len(set) > h.cfg.MaxSessionsPerStream {
		for cand := range set {
			if cand == s {
				continue
			}
			if evicted == nil || cand.id < evicted.id {
				evicted = cand
			}
		}
		if evicted != nil {
			delete(set, evicted)
			close(evicted.send)
		}
	}
	total := len(set)
	h.mu.Unlock()

	metrics.RelaySessions.Inc()
	if evicted != nil {
		metrics.RelaySessions.Dec()
		metrics.RelaySessionsEvicted.Inc()
		logging.Warn().
			Str("stream_id", s.streamID).
			Str("user_id", evicted.userID).
			Int("cap", h.cfg.MaxSessionsPerStream).
			Msg("stream session cap reached, evicted oldest session")
	}
	logging.Debug().
		Str("stream_id", s.streamID).
		Str("user_id", s.userID).
		Int("stream_sessions", total).
		Msg("relay session registered")
}

// unregister removes a session. Safe to call for a session that was
// already evicted or unregistered.
func (h *Hub) unregister(s *Session) {
	h.mu.Lock()
	set, ok := h.streams[s.streamID]
	if ok {
		if _, member := set[s]; member {
			delete(set, s)
			close(s.send)
			metrics.RelaySessions.Dec()
		}
		if len(set) == 0 {
			delete(h.streams, s.streamID)
		}
	}
	h.mu.Unlock()
}

// fanout delivers one event to its stream's sessions in ascending
// session-ID order.
func (h *Hub) fanout(e Event) {
	h.mu.Lock()
	defer h.mu.Unlock()

	set := h.streams[e.StreamID]
	if len(set) == 0 {
		return
	}

	sessions := make([]*Session, 0, len(set))
	for s := range set {
		sessions = append(sessions, s)
	}
	sort.Slice(sessions, func(i, j int) bool { return sessions[i].id < sessions[j].id })

	var toDisconnect []*Session
	for _, s := range sessions {
		select {
		case s.send <- e:
			s.drops = 0
			metrics.RelayEventsDelivered.Inc()
		default:
			s.drops++
			metrics.RelayEventsDropped.Inc()
			if s.drops >= h.cfg.MaxConsecutiveDrops {
				toDisconnect = append(toDisconnect, s)
			}
		}
	}

	for _, s := range toDisconnect {
		delete(set, s)
		close(s.send)
		metrics.RelaySessions.Dec()
		logging.Warn().
			Str("stream_id", s.streamID).
			Str("user_id", s.userID).
			Int("consecutive_drops", s.drops).
			Msg("disconnecting slow relay session")
	}
	if len(set) == 0 {
		delete(h.streams, e.StreamID)
	}
}

func (h *Hub) shutdown(ctx context.Context) {
	h.mu.Lock()
	closed := 0
	for streamID, set := range h.streams {
		for s := range set {
			close(s.send)
			closed++
		}
		delete(h.streams, streamID)
	}
	h.mu.Unlock()

	reason := "context_canceled"
	if ctx.Err() == context.DeadlineExceeded {
		reason = "context_deadline"
	}

	metrics.RelaySessions.Sub(float64(closed))
	logging.Info().
		Str("component", "relay-hub").
		Str("reason", reason).
		Int("sessions_closed", closed).
		Msg("relay hub stopped")
}
