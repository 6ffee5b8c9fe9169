// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package chat is the stream chat write path: admission checks, content
// sanitization, persistence, and retraction. Delivery to live subscribers
// happens through the durable outbox and the relay bus, so a message is
// acknowledged to its sender once committed, never blocked on fanout.
package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/metrics"
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/rails"
	"github.com/emberworks/emberlive/internal/ratelimit"
	"github.com/emberworks/emberlive/internal/relay"
	"github.com/emberworks/emberlive/internal/store"
)

// Chat failure conditions, mapped to stable API codes by the handlers.
var (
	ErrStreamNotFound  = errors.New("chat: stream not found")
	ErrStreamNotLive   = errors.New("chat: stream is not live")
	ErrChatDisabled    = errors.New("chat: chat is disabled for this stream")
	ErrUserBlocked     = errors.New("chat: user is blocked on this stream")
	ErrRateLimited     = errors.New("chat: rate limited")
	ErrForbidden       = errors.New("chat: forbidden")
	ErrMessageNotFound = errors.New("chat: message not found")
	ErrEmptyMessage    = errors.New("chat: message has no content")
	ErrInvalidType     = errors.New("chat: message type not allowed")
)

// Config holds chat policy knobs.
type Config struct {
	// MaxContentLength caps sanitized message length in runes.
	MaxContentLength int

	// HistoryLimit is the default transcript page size.
	HistoryLimit int
}

func (c Config) withDefaults() Config {
	if c.MaxContentLength <= 0 {
		c.MaxContentLength = 500
	}
	if c.HistoryLimit <= 0 {
		c.HistoryLimit = 50
	}
	return c
}

// Service is the chat relay write path.
type Service struct {
	store      store.Store
	limiter    *ratelimit.Limiter
	moderation rails.ModerationService
	cfg        Config
	now        func() time.Time
}

// New creates a chat Service.
func New(st store.Store, limiter *ratelimit.Limiter, moderation rails.ModerationService, cfg Config) *Service {
	if moderation == nil {
		moderation = rails.AllowAllModeration{}
	}
	return &Service{
		store:      st,
		limiter:    limiter,
		moderation: moderation,
		cfg:        cfg.withDefaults(),
		now:        time.Now,
	}
}

// SetClock overrides the service clock. Tests only.
func (s *Service) SetClock(now func() time.Time) { s.now = now }

// SendParams is one chat send request.
type SendParams struct {
	StreamID string
	UserID   string
	Content  string
	Type     models.MessageType

	// Metadata is the typed variant matching Type (e.g. *models.EmoteMetadata).
	Metadata interface{}
}

// SendMessage admits, sanitizes, and persists one chat message.
//
// Checks run in a fixed order: stream exists and is live with chat enabled,
// sender is not blocked, sender is under the rate limit, moderation allows
// the content. Only then is the message sanitized and committed together
// with the aggregate bump and its outbox row.
func (s *Service) SendMessage(ctx context.Context, p SendParams) (*models.ChatMessage, error) {
	if p.Type == "" {
		p.Type = models.MessageText
	}
	if p.Type != models.MessageText && p.Type != models.MessageEmote {
		return nil, fmt.Errorf("type %q: %w", p.Type, ErrInvalidType)
	}

	stream, err := s.store.Stream(ctx, p.StreamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, err
	}
	if !stream.Live {
		return nil, ErrStreamNotLive
	}
	if !stream.ChatEnabled {
		return nil, ErrChatDisabled
	}

	blocked, err := s.store.IsBlocked(ctx, p.StreamID, p.UserID)
	if err != nil {
		return nil, err
	}
	if blocked {
		return nil, ErrUserBlocked
	}

	if err := s.limiter.Allow(ctx, p.UserID, p.StreamID); err != nil {
		if errors.Is(err, ratelimit.ErrLimited) {
			return nil, ErrRateLimited
		}
		return nil, err
	}

	verdict, err := s.moderation.CheckMessage(ctx, p.StreamID, p.UserID, p.Content)
	if err != nil {
		return nil, fmt.Errorf("moderation check: %w", err)
	}
	if !verdict.Allowed {
		logging.Ctx(ctx).Info().
			Str("stream_id", p.StreamID).
			Str("user_id", p.UserID).
			Str("reason", verdict.Reason).
			Msg("message rejected by moderation")
		return nil, ErrForbidden
	}

	content := Sanitize(p.Content, s.cfg.MaxContentLength)
	if content == "" {
		return nil, ErrEmptyMessage
	}

	metadata, err := models.EncodeMetadata(p.Metadata)
	if err != nil {
		return nil, err
	}

	msg := &models.ChatMessage{
		ID:        uuid.New().String(),
		StreamID:  p.StreamID,
		UserID:    p.UserID,
		Content:   content,
		Type:      p.Type,
		Metadata:  metadata,
		CreatedAt: s.now().UTC(),
	}

	outboxRow, err := relay.OutboxRow(uuid.New().String(), relay.NewMessageEvent(msg))
	if err != nil {
		return nil, err
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertChatMessage(ctx, msg); err != nil {
			return err
		}
		if err := tx.BumpStreamMessages(ctx, p.StreamID); err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, outboxRow)
	})
	if err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}

	metrics.ChatMessagesPersisted.WithLabelValues(string(msg.Type)).Inc()
	return msg, nil
}

// DeleteMessage soft-deletes a message and queues its retraction. The acting
// user must be the author, the stream host, a stream moderator, or a
// platform administrator.
func (s *Service) DeleteMessage(ctx context.Context, streamID, messageID, actingUserID string) error {
	msg, err := s.store.ChatMessage(ctx, streamID, messageID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrMessageNotFound
		}
		return err
	}

	allowed, err := s.canDelete(ctx, msg, actingUserID)
	if err != nil {
		return err
	}
	if !allowed {
		return ErrForbidden
	}

	if msg.Deleted {
		// Already retracted; deleting again is a no-op ack.
		return nil
	}

	now := s.now().UTC()
	outboxRow, err := relay.OutboxRow(uuid.New().String(),
		relay.NewRetractionEvent(streamID, messageID, actingUserID, now))
	if err != nil {
		return err
	}

	err = s.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.MarkChatMessageDeleted(ctx, streamID, messageID, now); err != nil {
			return err
		}
		return tx.InsertOutboxEvent(ctx, outboxRow)
	})
	if err != nil {
		return fmt.Errorf("delete message: %w", err)
	}

	metrics.ChatRetractions.Inc()
	logging.Ctx(ctx).Info().
		Str("stream_id", streamID).
		Str("message_id", messageID).
		Str("acting_user", actingUserID).
		Msg("chat message retracted")
	return nil
}

func (s *Service) canDelete(ctx context.Context, msg *models.ChatMessage, actingUserID string) (bool, error) {
	if actingUserID == msg.UserID {
		return true, nil
	}
	stream, err := s.store.Stream(ctx, msg.StreamID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return false, err
	}
	if stream != nil && stream.HostID == actingUserID {
		return true, nil
	}
	if mod, err := s.store.IsModerator(ctx, msg.StreamID, actingUserID); err != nil {
		return false, err
	} else if mod {
		return true, nil
	}
	return s.store.IsAdmin(ctx, actingUserID)
}

// CanSubscribe reports whether a viewer may open a live chat subscription
// on the stream. Mirrors the send-path gates that apply before any message
// exists: the stream must exist and be live.
func (s *Service) CanSubscribe(ctx context.Context, streamID string) error {
	stream, err := s.store.Stream(ctx, streamID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return ErrStreamNotFound
		}
		return err
	}
	if !stream.Live {
		return ErrStreamNotLive
	}
	return nil
}

// History returns the stream's most recent visible messages, newest first.
// Deleted messages never appear. A zero before means "from now".
func (s *Service) History(ctx context.Context, streamID string, limit int, before time.Time) ([]models.ChatMessage, error) {
	if limit <= 0 || limit > s.cfg.HistoryLimit {
		limit = s.cfg.HistoryLimit
	}
	if _, err := s.store.Stream(ctx, streamID); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrStreamNotFound
		}
		return nil, err
	}
	return s.store.ChatHistory(ctx, streamID, limit, before)
}
