// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package relay

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"

	"github.com/emberworks/emberlive/internal/logging"
)

// Bus is the in-process event bus connecting the chat/gift write path to
// the relay hub. Messages are published after the owning store transaction
// commits, so topic order is commit order.
type Bus struct {
	ch *gochannel.GoChannel
}

// NewBus creates the in-process bus. BlockPublishUntilSubscriberAck keeps
// delivery in publish order: without it gochannel hands each message to a
// fresh goroutine per subscriber and a retraction can overtake the message
// it retracts. The subscriber acks immediately after the hub's non-blocking
// Broadcast, so a blocked publish never deadlocks.
func NewBus() *Bus {
	ch := gochannel.NewGoChannel(
		gochannel.Config{
			OutputChannelBuffer:            256,
			BlockPublishUntilSubscriberAck: true,
		},
		watermill.NewStdLogger(false, false),
	)
	return &Bus{ch: ch}
}

// Publish puts an event on the chat events topic.
func (b *Bus) Publish(e Event) error {
	msg, err := e.ToWatermill()
	if err != nil {
		return err
	}
	if err := b.ch.Publish(TopicChatEvents, msg); err != nil {
		return fmt.Errorf("publish %s: %w", TopicChatEvents, err)
	}
	return nil
}

// Subscribe opens a subscription on the chat events topic.
func (b *Bus) Subscribe(ctx context.Context) (<-chan *message.Message, error) {
	return b.ch.Subscribe(ctx, TopicChatEvents)
}

// Close shuts the bus down. In-flight messages are discarded.
func (b *Bus) Close() error {
	return b.ch.Close()
}

// BusSubscriber drains the bus into the hub. Runs under suture supervision;
// a decode failure acks and skips the message rather than wedging the topic.
type BusSubscriber struct {
	bus *Bus
	hub *Hub
}

// NewBusSubscriber connects a bus to a hub.
func NewBusSubscriber(bus *Bus, hub *Hub) *BusSubscriber {
	return &BusSubscriber{bus: bus, hub: hub}
}

// Serve consumes the chat events topic until ctx is canceled.
func (s *BusSubscriber) Serve(ctx context.Context) error {
	messages, err := s.bus.Subscribe(ctx)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", TopicChatEvents, err)
	}

	logging.Info().Str("topic", TopicChatEvents).Msg("relay bus subscriber started")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return ctx.Err()
			}
			e, err := DecodeEvent(msg)
			if err != nil {
				logging.Error().Err(err).Str("message_id", msg.UUID).Msg("dropping undecodable relay event")
				msg.Ack()
				continue
			}
			s.hub.Broadcast(e)
			msg.Ack()
		}
	}
}
