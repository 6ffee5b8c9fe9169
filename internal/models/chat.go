// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package models

import (
	"fmt"
	"time"

	"github.com/goccy/go-json"
)

// MessageType discriminates chat message payloads.
type MessageType string

const (
	MessageText   MessageType = "TEXT"
	MessageEmote  MessageType = "EMOTE"
	MessageSystem MessageType = "SYSTEM"
	MessageGift   MessageType = "GIFT"
)

// ChatMessage is one persisted chat event. Deletion is a soft flag so the
// moderation audit trail survives; deleted messages are retracted from live
// subscribers but never removed from storage.
type ChatMessage struct {
	ID        string      `json:"id"`
	StreamID  string      `json:"stream_id"`
	UserID    string      `json:"user_id"`
	Content   string      `json:"content"`
	Type      MessageType `json:"type"`
	// Metadata is the JSON encoding of the typed variant matching Type.
	// Use DecodeMetadata to resolve it.
	Metadata  []byte     `json:"metadata,omitempty"`
	CreatedAt time.Time  `json:"created_at"`
	Deleted   bool       `json:"deleted"`
	DeletedAt *time.Time `json:"deleted_at,omitempty"`
}

// EmoteMetadata accompanies EMOTE messages.
type EmoteMetadata struct {
	EmoteID string `json:"emote_id"`
}

// SystemMetadata accompanies SYSTEM messages.
type SystemMetadata struct {
	Kind string `json:"kind"` // stream_started, stream_ended, user_timed_out
}

// GiftMetadata accompanies GIFT messages, carrying the committed gift facts
// viewers render (animation, amount) without a second lookup.
type GiftMetadata struct {
	GiftID      string `json:"gift_id"`
	GiftType    string `json:"gift_type"`
	Coins       int64  `json:"coins"`
	SenderID    string `json:"sender_id"`
	ReceiverID  string `json:"receiver_id"`
	ValueMicros int64  `json:"value_micros"`
}

// DecodeMetadata resolves the typed metadata variant for the message's
// discriminant. TEXT messages carry no metadata and return (nil, nil).
func (m *ChatMessage) DecodeMetadata() (interface{}, error) {
	if len(m.Metadata) == 0 {
		return nil, nil
	}
	switch m.Type {
	case MessageText:
		return nil, nil
	case MessageEmote:
		var md EmoteMetadata
		if err := json.Unmarshal(m.Metadata, &md); err != nil {
			return nil, fmt.Errorf("decode emote metadata: %w", err)
		}
		return &md, nil
	case MessageSystem:
		var md SystemMetadata
		if err := json.Unmarshal(m.Metadata, &md); err != nil {
			return nil, fmt.Errorf("decode system metadata: %w", err)
		}
		return &md, nil
	case MessageGift:
		var md GiftMetadata
		if err := json.Unmarshal(m.Metadata, &md); err != nil {
			return nil, fmt.Errorf("decode gift metadata: %w", err)
		}
		return &md, nil
	default:
		return nil, fmt.Errorf("unknown message type %q", m.Type)
	}
}

// EncodeMetadata marshals a typed metadata variant for storage.
func EncodeMetadata(md interface{}) ([]byte, error) {
	if md == nil {
		return nil, nil
	}
	data, err := json.Marshal(md)
	if err != nil {
		return nil, fmt.Errorf("encode metadata: %w", err)
	}
	return data, nil
}
