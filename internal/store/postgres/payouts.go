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
)

const payoutColumns = `id, user_id, wallet_id, amount_micros, status, method, rail_ref, ledger_tx_id, created_at, settled_at`

func scanPayout(row interface{ Scan(...any) error }) (*models.Payout, error) {
	var p models.Payout
	err := row.Scan(&p.ID, &p.UserID, &p.WalletID, &p.AmountMicros, &p.Status,
		&p.Method, &p.RailRef, &p.LedgerTxID, &p.CreatedAt, &p.SettledAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &p, nil
}

func (s *Store) Payout(ctx context.Context, id string) (*models.Payout, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1`, id)
	p, err := scanPayout(row)
	if err != nil {
		return nil, fmt.Errorf("get payout: %w", err)
	}
	return p, nil
}

func (s *Store) PendingPayouts(ctx context.Context, limit int) ([]models.Payout, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+payoutColumns+` FROM payouts
		WHERE status = 'PENDING'
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("query pending payouts: %w", err)
	}
	defer rows.Close()

	var out []models.Payout
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scan payout: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func (t *pgTx) InsertPayout(ctx context.Context, p *models.Payout) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO payouts (id, user_id, wallet_id, amount_micros, status, method, rail_ref, ledger_tx_id, created_at, settled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.UserID, p.WalletID, p.AmountMicros, p.Status, p.Method,
		p.RailRef, p.LedgerTxID, p.CreatedAt, nullableTime(p.SettledAt))
	if err != nil {
		return fmt.Errorf("insert payout: %w", translateErr(err))
	}
	return nil
}

func (t *pgTx) PayoutForUpdate(ctx context.Context, id string) (*models.Payout, error) {
	row := t.tx.QueryRow(ctx, `SELECT `+payoutColumns+` FROM payouts WHERE id = $1 FOR UPDATE`, id)
	p, err := scanPayout(row)
	if err != nil {
		return nil, fmt.Errorf("lock payout: %w", err)
	}
	return p, nil
}

func (t *pgTx) UpdatePayoutStatus(ctx context.Context, id string, from, to models.PayoutStatus, railRef string, settledAt *time.Time) (bool, error) {
	tag, err := t.tx.Exec(ctx, `
		UPDATE payouts
		SET status = $3,
		    rail_ref = CASE WHEN $4 <> '' THEN $4 ELSE rail_ref END,
		    settled_at = COALESCE($5, settled_at)
		WHERE id = $1 AND status = $2`,
		id, from, to, railRef, nullableTime(settledAt))
	if err != nil {
		return false, fmt.Errorf("update payout status: %w", translateErr(err))
	}
	return tag.RowsAffected() == 1, nil
}
