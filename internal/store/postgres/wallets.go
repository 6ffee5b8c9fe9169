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

const walletColumns = `id, user_id, coins, pending_earnings_micros, total_earnings_micros, currency, created_at, updated_at`

func scanWallet(row interface{ Scan(...any) error }) (*models.Wallet, error) {
	var w models.Wallet
	err := row.Scan(&w.ID, &w.UserID, &w.Coins, &w.PendingEarningsMicros,
		&w.TotalEarningsMicros, &w.Currency, &w.CreatedAt, &w.UpdatedAt)
	if err != nil {
		return nil, translateErr(err)
	}
	return &w, nil
}

func (s *Store) Wallet(ctx context.Context, userID string) (*models.Wallet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1`, userID)
	w, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("get wallet by user: %w", err)
	}
	return w, nil
}

func (s *Store) WalletByID(ctx context.Context, walletID string) (*models.Wallet, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1`, walletID)
	w, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

func (s *Store) TransactionsByWallet(ctx context.Context, walletID string) ([]models.Transaction, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, wallet_id, type, amount_micros, coins, status,
		       COALESCE(correlation_id, ''), created_at, completed_at
		FROM wallet_transactions
		WHERE wallet_id = $1
		ORDER BY created_at`, walletID)
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var out []models.Transaction
	for rows.Next() {
		var t models.Transaction
		if err := rows.Scan(&t.ID, &t.WalletID, &t.Type, &t.AmountMicros, &t.Coins,
			&t.Status, &t.CorrelationID, &t.CreatedAt, &t.CompletedAt); err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (t *pgTx) WalletForUpdate(ctx context.Context, walletID string) (*models.Wallet, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE id = $1 FOR UPDATE`, walletID)
	w, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("lock wallet: %w", err)
	}
	return w, nil
}

func (t *pgTx) WalletByUserForUpdate(ctx context.Context, userID string) (*models.Wallet, error) {
	row := t.tx.QueryRow(ctx,
		`SELECT `+walletColumns+` FROM wallets WHERE user_id = $1 FOR UPDATE`, userID)
	w, err := scanWallet(row)
	if err != nil {
		return nil, fmt.Errorf("lock wallet by user: %w", err)
	}
	return w, nil
}

func (t *pgTx) InsertWallet(ctx context.Context, w *models.Wallet) error {
	_, err := t.tx.Exec(ctx, `
		INSERT INTO wallets (id, user_id, coins, pending_earnings_micros,
		                     total_earnings_micros, currency, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		w.ID, w.UserID, w.Coins, w.PendingEarningsMicros,
		w.TotalEarningsMicros, w.Currency, w.CreatedAt, w.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", translateErr(err))
	}
	return nil
}

func (t *pgTx) ApplyWalletDeltas(ctx context.Context, walletID string, coins, pendingMicros, totalMicros int64) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE wallets
		SET coins = coins + $2,
		    pending_earnings_micros = pending_earnings_micros + $3,
		    total_earnings_micros = total_earnings_micros + $4,
		    updated_at = now()
		WHERE id = $1`,
		walletID, coins, pendingMicros, totalMicros)
	if err != nil {
		return fmt.Errorf("apply wallet deltas: %w", translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("apply wallet deltas: wallet %s: %w", walletID, store.ErrNotFound)
	}
	return nil
}

func (t *pgTx) InsertTransaction(ctx context.Context, tr *models.Transaction) error {
	var corr interface{}
	if tr.CorrelationID != "" {
		corr = tr.CorrelationID
	}
	_, err := t.tx.Exec(ctx, `
		INSERT INTO wallet_transactions (id, wallet_id, type, amount_micros, coins,
		                                 status, correlation_id, created_at, completed_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		tr.ID, tr.WalletID, tr.Type, tr.AmountMicros, tr.Coins,
		tr.Status, corr, tr.CreatedAt, nullableTime(tr.CompletedAt))
	if err != nil {
		return fmt.Errorf("insert transaction: %w", translateErr(err))
	}
	return nil
}

func (t *pgTx) UpdateTransactionStatus(ctx context.Context, id string, status models.TransactionStatus, completedAt *time.Time) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE wallet_transactions
		SET status = $2, completed_at = COALESCE($3, completed_at)
		WHERE id = $1`, id, status, nullableTime(completedAt))
	if err != nil {
		return fmt.Errorf("update transaction status: %w", translateErr(err))
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("update transaction status: %s: %w", id, store.ErrNotFound)
	}
	return nil
}
