// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package postgres

import (
	"context"
	"fmt"

	"github.com/emberworks/emberlive/internal/models"
)

func (s *Store) GiftByIdempotencyKey(ctx context.Context, key string) (*models.Gift, error) {
	var g models.Gift
	err := s.pool.QueryRow(ctx, `
		SELECT id, stream_id, sender_id, receiver_id, gift_type, coins, value_micros,
		       message, is_public, COALESCE(idempotency_key, ''), created_at
		FROM gifts WHERE idempotency_key = $1`, key).
		Scan(&g.ID, &g.StreamID, &g.SenderID, &g.ReceiverID, &g.GiftType, &g.Coins,
			&g.ValueMicros, &g.Message, &g.IsPublic, &g.IdempotencyKey, &g.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("get gift by key: %w", translateErr(err))
	}
	return &g, nil
}

func (t *pgTx) InsertGift(ctx context.Context, g *models.Gift) error {
	var key interface{}
	if g.IdempotencyKey != "" {
		key = g.IdempotencyKey
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO gifts (id, stream_id, sender_id, receiver_id, gift_type, coins,
		                   value_micros, message, is_public, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		g.ID, g.StreamID, g.SenderID, g.ReceiverID, g.GiftType, g.Coins,
		g.ValueMicros, g.Message, g.IsPublic, key, g.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert gift: %w", translateErr(err))
	}
	return nil
}
