// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package postgres

import (
	"context"
	"fmt"

	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/store"
)

func (s *Store) Stream(ctx context.Context, streamID string) (*models.Stream, error) {
	var m models.Stream
	err := s.pool.QueryRow(ctx, `
		SELECT id, host_id, live, chat_enabled, gifts_enabled, started_at
		FROM streams WHERE id = $1`, streamID).
		Scan(&m.ID, &m.HostID, &m.Live, &m.ChatEnabled, &m.GiftsEnabled, &m.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("get stream: %w", translateErr(err))
	}
	return &m, nil
}

// UpsertStream writes stream core flags and ensures an aggregate row exists.
// The outer product owns the rest of the stream record.
func (s *Store) UpsertStream(ctx context.Context, m *models.Stream) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO streams (id, host_id, live, chat_enabled, gifts_enabled, started_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE
		SET host_id = EXCLUDED.host_id,
		    live = EXCLUDED.live,
		    chat_enabled = EXCLUDED.chat_enabled,
		    gifts_enabled = EXCLUDED.gifts_enabled`,
		m.ID, m.HostID, m.Live, m.ChatEnabled, m.GiftsEnabled, m.StartedAt)
	if err != nil {
		return fmt.Errorf("upsert stream: %w", translateErr(err))
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO stream_aggregates (stream_id) VALUES ($1)
		ON CONFLICT (stream_id) DO NOTHING`, m.ID)
	if err != nil {
		return fmt.Errorf("ensure aggregate row: %w", translateErr(err))
	}
	return nil
}

func (s *Store) StreamAggregate(ctx context.Context, streamID string) (*models.StreamAggregate, error) {
	var a models.StreamAggregate
	err := s.pool.QueryRow(ctx, `
		SELECT stream_id, total_messages, total_gifts, total_revenue_micros, updated_at
		FROM stream_aggregates WHERE stream_id = $1`, streamID).
		Scan(&a.StreamID, &a.TotalMessages, &a.TotalGifts, &a.TotalRevenueMicros, &a.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("get aggregate: %w", translateErr(err))
	}
	return &a, nil
}

func (s *Store) IsBlocked(ctx context.Context, streamID, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM stream_blocks WHERE stream_id = $1 AND user_id = $2)`,
		streamID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check block: %w", err)
	}
	return exists, nil
}

func (s *Store) SetBlocked(ctx context.Context, streamID, userID string, blocked bool) error {
	var err error
	if blocked {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO stream_blocks (stream_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, streamID, userID)
	} else {
		_, err = s.pool.Exec(ctx, `
			DELETE FROM stream_blocks WHERE stream_id = $1 AND user_id = $2`, streamID, userID)
	}
	if err != nil {
		return fmt.Errorf("set block: %w", translateErr(err))
	}
	return nil
}

func (s *Store) IsModerator(ctx context.Context, streamID, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM stream_moderators WHERE stream_id = $1 AND user_id = $2)`,
		streamID, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check moderator: %w", err)
	}
	return exists, nil
}

func (s *Store) SetModerator(ctx context.Context, streamID, userID string, moderator bool) error {
	var err error
	if moderator {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO stream_moderators (stream_id, user_id) VALUES ($1, $2)
			ON CONFLICT DO NOTHING`, streamID, userID)
	} else {
		_, err = s.pool.Exec(ctx, `
			DELETE FROM stream_moderators WHERE stream_id = $1 AND user_id = $2`, streamID, userID)
	}
	if err != nil {
		return fmt.Errorf("set moderator: %w", translateErr(err))
	}
	return nil
}

func (s *Store) IsAdmin(ctx context.Context, userID string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx, `
		SELECT EXISTS (SELECT 1 FROM platform_admins WHERE user_id = $1)`, userID).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check admin: %w", err)
	}
	return exists, nil
}

func (s *Store) SetAdmin(ctx context.Context, userID string, admin bool) error {
	var err error
	if admin {
		_, err = s.pool.Exec(ctx, `
			INSERT INTO platform_admins (user_id) VALUES ($1) ON CONFLICT DO NOTHING`, userID)
	} else {
		_, err = s.pool.Exec(ctx, `DELETE FROM platform_admins WHERE user_id = $1`, userID)
	}
	if err != nil {
		return fmt.Errorf("set admin: %w", translateErr(err))
	}
	return nil
}

func (t *pgTx) BumpStreamMessages(ctx context.Context, streamID string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE stream_aggregates
		SET total_messages = total_messages + 1, updated_at = now()
		WHERE stream_id = $1`, streamID)
	if err != nil {
		return fmt.Errorf("bump messages: %w", translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bump messages: stream %s: %w", streamID, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) BumpStreamGifts(ctx context.Context, streamID string, revenueMicros int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE stream_aggregates
		SET total_gifts = total_gifts + 1,
		    total_revenue_micros = total_revenue_micros + $2,
		    updated_at = now()
		WHERE stream_id = $1`, streamID, revenueMicros)
	if err != nil {
		return fmt.Errorf("bump gifts: %w", translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("bump gifts: stream %s: %w", streamID, store.ErrNotFound)
	}
	return nil
}
