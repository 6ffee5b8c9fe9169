// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package relay

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberworks/emberlive/internal/models"
)

func startHub(t *testing.T, cfg HubConfig) *Hub {
	t.Helper()
	hub := NewHub(cfg)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = hub.Serve(ctx)
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return hub
}

func testSession(hub *Hub, userID, streamID string) *Session {
	return NewSession(hub, nil, userID, streamID)
}

func msgEvent(streamID, messageID string) Event {
	return NewMessageEvent(&models.ChatMessage{
		ID:        messageID,
		StreamID:  streamID,
		Type:      models.MessageText,
		Content:   "hello",
		CreatedAt: time.Now().UTC(),
	})
}

func recvEvent(t *testing.T, s *Session) Event {
	t.Helper()
	select {
	case e, ok := <-s.send:
		require.True(t, ok, "session channel closed")
		return e
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for event")
		return Event{}
	}
}

func recvClosed(t *testing.T, s *Session) {
	t.Helper()
	select {
	case _, ok := <-s.send:
		require.False(t, ok, "expected closed session channel")
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for session close")
	}
}

func waitViewerCount(t *testing.T, hub *Hub, streamID string, want int) {
	t.Helper()
	require.Eventually(t, func() bool {
		return hub.ViewerCount(streamID) == want
	}, 2*time.Second, 5*time.Millisecond)
}

func TestFanoutRoutesByStream(t *testing.T) {
	hub := startHub(t, HubConfig{})

	s1 := testSession(hub, "alice", "stream-1")
	s2 := testSession(hub, "bob", "stream-2")
	hub.Register <- s1
	hub.Register <- s2
	waitViewerCount(t, hub, "stream-1", 1)
	waitViewerCount(t, hub, "stream-2", 1)

	hub.Broadcast(msgEvent("stream-1", "m1"))

	e := recvEvent(t, s1)
	assert.Equal(t, "m1", e.Message.ID)

	select {
	case e := <-s2.send:
		t.Fatalf("stream-2 session received foreign event %v", e)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestSubscribersObserveSameOrder(t *testing.T) {
	hub := startHub(t, HubConfig{})

	s1 := testSession(hub, "alice", "stream-1")
	s2 := testSession(hub, "bob", "stream-1")
	hub.Register <- s1
	hub.Register <- s2
	waitViewerCount(t, hub, "stream-1", 2)

	want := []string{"m1", "m2", "m3", "m4", "m5"}
	for _, id := range want {
		hub.Broadcast(msgEvent("stream-1", id))
	}

	for _, s := range []*Session{s1, s2} {
		var got []string
		for range want {
			got = append(got, recvEvent(t, s).Message.ID)
		}
		assert.Equal(t, want, got)
	}
}

func TestUnregisterIsIdempotent(t *testing.T) {
	hub := startHub(t, HubConfig{})

	s := testSession(hub, "alice", "stream-1")
	hub.Register <- s
	waitViewerCount(t, hub, "stream-1", 1)

	hub.Unregister <- s
	recvClosed(t, s)

	// A second unregister for the same session must be a no-op,
	// not a double close.
	hub.Unregister <- s
	waitViewerCount(t, hub, "stream-1", 0)
}

func TestSlowSessionDisconnected(t *testing.T) {
	// Drive the hub loop's handlers directly so the drop sequence
	// is deterministic.
	hub := NewHub(HubConfig{SessionBuffer: 1, MaxConsecutiveDrops: 2})

	slow := testSession(hub, "alice", "stream-1")
	hub.register(slow)

	// First event fills the buffer; two more overflow it and cross the
	// disconnect threshold.
	hub.fanout(msgEvent("stream-1", "m1"))
	hub.fanout(msgEvent("stream-1", "m2"))
	hub.fanout(msgEvent("stream-1", "m3"))

	assert.Zero(t, hub.ViewerCount("stream-1"))

	e := recvEvent(t, slow)
	assert.Equal(t, "m1", e.Message.ID, "buffered event still delivered")
	recvClosed(t, slow)
}

func TestDeliveryResetsDropCount(t *testing.T) {
	hub := NewHub(HubConfig{SessionBuffer: 1, MaxConsecutiveDrops: 2})

	s := testSession(hub, "alice", "stream-1")
	hub.register(s)

	hub.fanout(msgEvent("stream-1", "m1"))
	hub.fanout(msgEvent("stream-1", "m2")) // dropped, streak 1
	assert.Equal(t, "m1", recvEvent(t, s).Message.ID)

	// Buffer has room again: this delivery resets the streak.
	hub.fanout(msgEvent("stream-1", "m3"))
	assert.Equal(t, "m3", recvEvent(t, s).Message.ID)
	assert.Equal(t, 1, hub.ViewerCount("stream-1"))
}

func TestSessionCapEvictsOldest(t *testing.T) {
	hub := startHub(t, HubConfig{MaxSessionsPerStream: 2})

	s1 := testSession(hub, "alice", "stream-1")
	s2 := testSession(hub, "bob", "stream-1")
	s3 := testSession(hub, "carol", "stream-1")
	hub.Register <- s1
	hub.Register <- s2
	hub.Register <- s3

	waitViewerCount(t, hub, "stream-1", 2)
	recvClosed(t, s1)

	hub.Broadcast(msgEvent("stream-1", "m1"))
	assert.Equal(t, "m1", recvEvent(t, s2).Message.ID)
	assert.Equal(t, "m1", recvEvent(t, s3).Message.ID)
}

func TestShutdownClosesSessions(t *testing.T) {
	hub := NewHub(HubConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- hub.Serve(ctx) }()

	s := testSession(hub, "alice", "stream-1")
	hub.Register <- s
	waitViewerCount(t, hub, "stream-1", 1)

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(2 * time.Second):
		t.Fatal("hub did not stop")
	}
	recvClosed(t, s)
	assert.Zero(t, hub.SessionCount())
}

func TestViewerCount(t *testing.T) {
	hub := startHub(t, HubConfig{})

	assert.Zero(t, hub.ViewerCount("stream-1"))

	s1 := testSession(hub, "alice", "stream-1")
	s2 := testSession(hub, "bob", "stream-1")
	hub.Register <- s1
	hub.Register <- s2
	waitViewerCount(t, hub, "stream-1", 2)
	assert.Equal(t, 2, hub.SessionCount())

	hub.Unregister <- s1
	waitViewerCount(t, hub, "stream-1", 1)
}

func TestBusDeliversToHub(t *testing.T) {
	hub := startHub(t, HubConfig{})
	bus := NewBus()
	t.Cleanup(func() { _ = bus.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	subDone := make(chan struct{})
	sub := NewBusSubscriber(bus, hub)
	go func() {
		_ = sub.Serve(ctx)
		close(subDone)
	}()
	t.Cleanup(func() {
		cancel()
		<-subDone
	})

	s := testSession(hub, "alice", "stream-1")
	hub.Register <- s
	waitViewerCount(t, hub, "stream-1", 1)

	require.NoError(t, bus.Publish(NewGiftEvent(&models.Gift{
		ID:        "gift-1",
		StreamID:  "stream-1",
		CreatedAt: time.Now().UTC(),
	})))

	e := recvEvent(t, s)
	assert.Equal(t, EventGift, e.Kind)
	assert.Equal(t, "gift-1", e.Gift.ID)
}

func TestEventEnvelopeRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e := NewRetractionEvent("stream-1", "m1", "host", now)

	msg, err := e.ToWatermill()
	require.NoError(t, err)
	assert.Equal(t, "stream-1", msg.Metadata.Get("stream_id"))
	assert.Equal(t, string(EventRetraction), msg.Metadata.Get("kind"))

	got, err := DecodeEvent(msg)
	require.NoError(t, err)
	assert.Equal(t, e, got)
}
