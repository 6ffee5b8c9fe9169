// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/emberworks/emberlive/internal/store"
)

func (s *Store) UnpublishedOutboxEvents(ctx context.Context, limit int) ([]store.OutboxEvent, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, stream_id, kind, payload, created_at, published_at, attempts
		FROM outbox_events
		WHERE published_at IS NULL
		ORDER BY position
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var out []store.OutboxEvent
	for rows.Next() {
		var e store.OutboxEvent
		if err := rows.Scan(&e.ID, &e.StreamID, &e.Kind, &e.Payload,
			&e.CreatedAt, &e.PublishedAt, &e.Attempts); err != nil {
			return nil, fmt.Errorf("scan outbox event: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) MarkOutboxPublished(ctx context.Context, id string, at time.Time) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET published_at = $2 WHERE id = $1`, id, at)
	if err != nil {
		return fmt.Errorf("mark outbox published: %w", translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("mark outbox published: event %s: %w", id, store.ErrNotFound)
	}
	return nil
}

func (s *Store) BumpOutboxAttempts(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE outbox_events SET attempts = attempts + 1 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bump outbox attempts: %w", translateErr(err))
	}
	return nil
}

func (t *pgTx) InsertOutboxEvent(ctx context.Context, e *store.OutboxEvent) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO outbox_events (id, stream_id, kind, payload, created_at, attempts)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		e.ID, e.StreamID, e.Kind, e.Payload, e.CreatedAt, e.Attempts)
	if err != nil {
		return fmt.Errorf("insert outbox event: %w", translateErr(err))
	}
	return nil
}
