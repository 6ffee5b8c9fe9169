// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package relay

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/emberworks/emberlive/internal/logging"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 4 * 1024
)

// sessionIDCounter hands out monotonically increasing session IDs. The IDs
// give the hub a stable sort key so fanout order is reproducible.
var sessionIDCounter atomic.Uint64

// Session is the hub-side handle for one subscriber connection. The
// websocket is a one-way delivery channel: inbound frames are ignored
// except for the protocol-level pongs that keep the connection alive.
type Session struct {
	id       uint64
	userID   string
	streamID string
	hub      *Hub
	conn     *websocket.Conn
	send     chan Event

	// drops counts consecutive undelivered events. Owned by the hub loop.
	drops int
}

// NewSession creates a session for a subscriber on a stream. The caller
// registers it with the hub and calls Start.
func NewSession(hub *Hub, conn *websocket.Conn, userID, streamID string) *Session {
	return &Session{
		id:       sessionIDCounter.Add(1),
		userID:   userID,
		streamID: streamID,
		hub:      hub,
		conn:     conn,
		send:     make(chan Event, hub.cfg.SessionBuffer),
	}
}

// ID returns the session's unique identifier.
func (s *Session) ID() uint64 { return s.id }

// UserID returns the subscriber this session belongs to.
func (s *Session) UserID() string { return s.userID }

// StreamID returns the stream this session is subscribed to.
func (s *Session) StreamID() string { return s.streamID }

// Start runs the session's pumps. Returns immediately; the pumps exit when
// the peer disconnects or the hub closes the send channel.
func (s *Session) Start() {
	go s.writePump()
	go s.readPump()
}

// readPump drains the connection so close frames and pongs are processed.
// Any read error unregisters the session; unregister is idempotent so a
// session the hub already evicted is unaffected.
func (s *Session) readPump() {
	defer func() {
		s.hub.Unregister <- s
		_ = s.conn.Close()
	}()

	s.conn.SetReadLimit(maxMessageSize)
	if err := s.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		logging.Error().Err(err).Msg("failed to set read deadline")
		return
	}
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := s.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Debug().Err(err).
					Str("stream_id", s.streamID).
					Str("user_id", s.userID).
					Msg("relay session read error")
			}
			return
		}
	}
}

// writePump writes queued events and keepalive pings. Pings are control
// frames; they never appear in the event stream subscribers observe.
func (s *Session) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = s.conn.Close()
	}()

	for {
		select {
		case event, ok := <-s.send:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Hub closed the session.
				_ = s.conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := s.conn.WriteJSON(event); err != nil {
				logging.Debug().Err(err).
					Str("stream_id", s.streamID).
					Str("user_id", s.userID).
					Msg("relay session write error")
				return
			}

		case <-ticker.C:
			if err := s.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := s.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
