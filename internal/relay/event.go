// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package relay

import (
	"fmt"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/emberworks/emberlive/internal/models"
)

// TopicChatEvents is the bus topic carrying all committed chat events.
// The hub routes each event to its stream's sessions, so publish order on
// the topic is the order every subscriber of a stream observes.
const TopicChatEvents = "chat.events"

// EventKind discriminates relay event payloads.
type EventKind string

const (
	// EventMessage carries a persisted chat message.
	EventMessage EventKind = "message"

	// EventGift carries the chat-visible announcement of a committed gift.
	EventGift EventKind = "gift"

	// EventRetraction tells subscribers to drop a deleted message.
	EventRetraction EventKind = "retraction"
)

// Event is the wire envelope delivered to chat subscribers. Exactly one
// payload field is set, matching Kind.
type Event struct {
	Kind      EventKind `json:"kind"`
	StreamID  string    `json:"stream_id"`
	Timestamp time.Time `json:"timestamp"`

	Message    *models.ChatMessage `json:"message,omitempty"`
	Gift       *models.Gift        `json:"gift,omitempty"`
	Retraction *Retraction         `json:"retraction,omitempty"`
}

// Retraction identifies a message subscribers must stop displaying.
type Retraction struct {
	MessageID string `json:"message_id"`
	DeletedBy string `json:"deleted_by"`
}

// NewMessageEvent wraps a persisted chat message for the bus.
func NewMessageEvent(m *models.ChatMessage) Event {
	return Event{Kind: EventMessage, StreamID: m.StreamID, Timestamp: m.CreatedAt, Message: m}
}

// NewGiftEvent wraps a committed gift for the bus.
func NewGiftEvent(g *models.Gift) Event {
	return Event{Kind: EventGift, StreamID: g.StreamID, Timestamp: g.CreatedAt, Gift: g}
}

// NewRetractionEvent wraps a message deletion for the bus.
func NewRetractionEvent(streamID, messageID, deletedBy string, at time.Time) Event {
	return Event{
		Kind:      EventRetraction,
		StreamID:  streamID,
		Timestamp: at,
		Retraction: &Retraction{
			MessageID: messageID,
			DeletedBy: deletedBy,
		},
	}
}

// ToWatermill packages the event as a watermill message for publication.
func (e Event) ToWatermill() (*message.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal relay event: %w", err)
	}
	msg := message.NewMessage(uuid.New().String(), payload)
	msg.Metadata.Set("stream_id", e.StreamID)
	msg.Metadata.Set("kind", string(e.Kind))
	return msg, nil
}

// DecodeEvent unpacks a watermill message back into an Event.
func DecodeEvent(msg *message.Message) (Event, error) {
	var e Event
	if err := json.Unmarshal(msg.Payload, &e); err != nil {
		return Event{}, fmt.Errorf("decode relay event: %w", err)
	}
	return e, nil
}
