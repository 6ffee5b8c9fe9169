// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/store"
)

func (s *Store) ChatMessage(ctx context.Context, streamID, messageID string) (*models.ChatMessage, error) {
	var m models.ChatMessage
	err := s.pool.QueryRow(ctx, `
		SELECT id, stream_id, user_id, content, type, metadata, created_at, deleted, deleted_at
		FROM chat_messages
		WHERE id = $1 AND stream_id = $2`, messageID, streamID).
		Scan(&m.ID, &m.StreamID, &m.UserID, &m.Content, &m.Type, &m.Metadata,
			&m.CreatedAt, &m.Deleted, &m.DeletedAt)
	if err != nil {
		return nil, fmt.Errorf("get chat message: %w", translateErr(err))
	}
	return &m, nil
}

func (s *Store) ChatHistory(ctx context.Context, streamID string, limit int, before time.Time) ([]models.ChatMessage, error) {
	query := `
		SELECT id, stream_id, user_id, content, type, metadata, created_at, deleted, deleted_at
		FROM chat_messages
		WHERE stream_id = $1 AND NOT deleted`
	args := []any{streamID}
	if !before.IsZero() {
		query += ` AND created_at < $2`
		args = append(args, before)
	}
	query += fmt.Sprintf(` ORDER BY created_at DESC LIMIT %d`, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var out []models.ChatMessage
	for rows.Next() {
		var m models.ChatMessage
		if err := rows.Scan(&m.ID, &m.StreamID, &m.UserID, &m.Content, &m.Type,
			&m.Metadata, &m.CreatedAt, &m.Deleted, &m.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertChatMessage(ctx context.Context, m *models.ChatMessage) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO chat_messages (id, stream_id, user_id, content, type, metadata, created_at, deleted)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false)`,
		m.ID, m.StreamID, m.UserID, m.Content, m.Type, m.Metadata, m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert chat message: %w", translateErr(err))
	}
	return nil
}

func (t *pgTx) MarkChatMessageDeleted(ctx context.Context, streamID, messageID string, at time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE chat_messages
		SET deleted = true, deleted_at = $3
		WHERE id = $1 AND stream_id = $2`, messageID, streamID, at)
	if err != nil {
		return fmt.Errorf("mark deleted: %w", translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark deleted: message %s: %w", messageID, store.ErrNotFound)
	}
	return nil
}
