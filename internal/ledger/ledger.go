// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package ledger is the authoritative wallet ledger. It is the only writer
// of wallet balances and wallet transactions.
//
// Every mutation runs under an exclusive lock on the affected wallet rows
// (store.Tx lock methods), taken in ascending user-ID order when more than
// one wallet is involved, so a transfer can never pass its balance check
// against a stale read and crossing transfers cannot deadlock.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/metrics"
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/store"
)

// Ledger failure conditions. All are state-conflict errors surfaced
// synchronously; none are retried internally.
var (
	ErrInsufficientBalance  = errors.New("ledger: insufficient coin balance")
	ErrInsufficientEarnings = errors.New("ledger: insufficient pending earnings")
	ErrWalletNotFound       = errors.New("ledger: wallet not found")
	ErrInvalidAmount        = errors.New("ledger: amount must be positive")
	ErrWalletExists         = errors.New("ledger: wallet already exists")
)

// Config carries the economy constants the ledger applies at wallet creation.
type Config struct {
	// WelcomeBonusCoins is credited to every new wallet.
	WelcomeBonusCoins int64

	// Currency is the wallet display currency.
	Currency string
}

// Ledger implements the wallet operations. Transfer-shaped methods with a Tx
// suffix run inside a caller-owned atomic unit so coordinators can compose
// them with their own writes; the rest manage their own unit.
type Ledger struct {
	store store.Store
	cfg   Config
	now   func() time.Time
}

// New creates a Ledger on the given store.
func New(st store.Store, cfg Config) *Ledger {
	if cfg.Currency == "" {
		cfg.Currency = "USD"
	}
	return &Ledger{store: st, cfg: cfg, now: time.Now}
}

// SetClock overrides the ledger clock. Tests only.
func (l *Ledger) SetClock(now func() time.Time) { l.now = now }

// TransferParams describes one sender-to-receiver movement: the sender
// spends Coins and the receiver accrues ValueMicros of earnings.
type TransferParams struct {
	SenderUserID   string
	ReceiverUserID string
	Coins          int64
	ValueMicros    int64
	CorrelationID  string
}

// CreateWallet creates the user's wallet with the welcome bonus applied.
// The bonus credit is recorded as a COMPLETED COIN_PURCHASE movement so the
// audit trail reconciles from the first coin.
func (l *Ledger) CreateWallet(ctx context.Context, userID string) (*models.Wallet, error) {
	now := l.now().UTC()
	w := &models.Wallet{
		ID:        uuid.New().String(),
		UserID:    userID,
		Coins:     l.cfg.WelcomeBonusCoins,
		Currency:  l.cfg.Currency,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		if err := tx.InsertWallet(ctx, w); err != nil {
			if errors.Is(err, store.ErrDuplicateKey) {
				return ErrWalletExists
			}
			return err
		}
		if l.cfg.WelcomeBonusCoins > 0 {
			bonus := &models.Transaction{
				ID:          uuid.New().String(),
				WalletID:    w.ID,
				Type:        models.TransactionCoinPurchase,
				Coins:       l.cfg.WelcomeBonusCoins,
				Status:      models.TransactionCompleted,
				CreatedAt:   now,
				CompletedAt: &now,
			}
			if err := tx.InsertTransaction(ctx, bonus); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("create wallet: %w", err)
	}

	logging.Ctx(ctx).Info().
		Str("user_id", userID).
		Int64("welcome_bonus", l.cfg.WelcomeBonusCoins).
		Msg("wallet created")
	return w, nil
}

// Wallet returns the user's wallet.
func (l *Ledger) Wallet(ctx context.Context, userID string) (*models.Wallet, error) {
	w, err := l.store.Wallet(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, ErrWalletNotFound
	}
	return w, err
}

// TransferTx moves coins out of the sender and credits the receiver's
// earnings inside the caller's atomic unit. It writes the linked
// GIFT_SENT/GIFT_RECEIVED pair sharing p.CorrelationID.
//
// Wallets are locked in ascending user-ID order regardless of direction.
func (l *Ledger) TransferTx(ctx context.Context, tx store.Tx, p TransferParams) (*models.TransactionPair, error) {
	if p.Coins <= 0 || p.ValueMicros < 0 {
		metrics.LedgerRejections.WithLabelValues("invalid_amount").Inc()
		return nil, ErrInvalidAmount
	}

	first, second := p.SenderUserID, p.ReceiverUserID
	if second < first {
		first, second = second, first
	}
	locked := map[string]*models.Wallet{}
	for _, userID := range []string{first, second} {
		w, err := tx.WalletByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				metrics.LedgerRejections.WithLabelValues("wallet_not_found").Inc()
				return nil, fmt.Errorf("user %s: %w", userID, ErrWalletNotFound)
			}
			return nil, err
		}
		locked[userID] = w
	}
	sender, receiver := locked[p.SenderUserID], locked[p.ReceiverUserID]

	if sender.Coins < p.Coins {
		metrics.LedgerRejections.WithLabelValues("insufficient_balance").Inc()
		return nil, fmt.Errorf("have %d, need %d: %w", sender.Coins, p.Coins, ErrInsufficientBalance)
	}

	if err := tx.ApplyWalletDeltas(ctx, sender.ID, -p.Coins, 0, 0); err != nil {
		return nil, err
	}
	if err := tx.ApplyWalletDeltas(ctx, receiver.ID, 0, p.ValueMicros, p.ValueMicros); err != nil {
		return nil, err
	}

	now := l.now().UTC()
	sent := &models.Transaction{
		ID:            uuid.New().String(),
		WalletID:      sender.ID,
		Type:          models.TransactionGiftSent,
		Coins:         -p.Coins,
		Status:        models.TransactionCompleted,
		CorrelationID: p.CorrelationID,
		CreatedAt:     now,
		CompletedAt:   &now,
	}
	received := &models.Transaction{
		ID:            uuid.New().String(),
		WalletID:      receiver.ID,
		Type:          models.TransactionGiftReceived,
		AmountMicros:  p.ValueMicros,
		Status:        models.TransactionCompleted,
		CorrelationID: p.CorrelationID,
		CreatedAt:     now,
		CompletedAt:   &now,
	}
	if err := tx.InsertTransaction(ctx, sent); err != nil {
		return nil, err
	}
	if err := tx.InsertTransaction(ctx, received); err != nil {
		return nil, err
	}

	// LedgerTransfers is counted by the coordinator after commit; a rolled
	// back transfer must not be counted.
	return &models.TransactionPair{Sent: sent, Received: received}, nil
}

// CreditCoins adds purchased coins to a wallet in its own atomic unit.
// The payment rail has already authorized the purchase when this is called.
func (l *Ledger) CreditCoins(ctx context.Context, userID string, coins int64, txType models.TransactionType) (*models.Transaction, error) {
	if coins <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *models.Transaction
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		w, err := tx.WalletByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if err := tx.ApplyWalletDeltas(ctx, w.ID, coins, 0, 0); err != nil {
			return err
		}
		now := l.now().UTC()
		out = &models.Transaction{
			ID:          uuid.New().String(),
			WalletID:    w.ID,
			Type:        txType,
			Coins:       coins,
			Status:      models.TransactionCompleted,
			CreatedAt:   now,
			CompletedAt: &now,
		}
		return tx.InsertTransaction(ctx, out)
	})
	if err != nil {
		return nil, fmt.Errorf("credit coins: %w", err)
	}
	return out, nil
}

// DebitCoins removes coins from a wallet in its own atomic unit.
func (l *Ledger) DebitCoins(ctx context.Context, userID string, coins int64, txType models.TransactionType) (*models.Transaction, error) {
	if coins <= 0 {
		return nil, ErrInvalidAmount
	}
	var out *models.Transaction
	err := l.store.WithTx(ctx, func(tx store.Tx) error {
		w, err := tx.WalletByUserForUpdate(ctx, userID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrWalletNotFound
			}
			return err
		}
		if w.Coins < coins {
			metrics.LedgerRejections.WithLabelValues("insufficient_balance").Inc()
			return fmt.Errorf("have %d, need %d: %w", w.Coins, coins, ErrInsufficientBalance)
		}
		if err := tx.ApplyWalletDeltas(ctx, w.ID, -coins, 0, 0); err != nil {
			return err
		}
		now := l.now().UTC()
		out = &models.Transaction{
			ID:          uuid.New().String(),
			WalletID:    w.ID,
			Type:        txType,
			Coins:       -coins,
			Status:      models.TransactionCompleted,
			CreatedAt:   now,
			CompletedAt: &now,
		}
		return tx.InsertTransaction(ctx, out)
	})
	if err != nil {
		return nil, fmt.Errorf("debit coins: %w", err)
	}
	return out, nil
}

// CreditEarningsTx accrues earnings on a user's wallet inside the caller's
// atomic unit. Used by subscription renewals to pay the creator's share.
func (l *Ledger) CreditEarningsTx(ctx context.Context, tx store.Tx, userID string, micros int64, txType models.TransactionType, correlationID string) (*models.Transaction, error) {
	if micros <= 0 {
		return nil, ErrInvalidAmount
	}
	w, err := tx.WalletByUserForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	if err := tx.ApplyWalletDeltas(ctx, w.ID, 0, micros, micros); err != nil {
		return nil, err
	}
	now := l.now().UTC()
	out := &models.Transaction{
		ID:            uuid.New().String(),
		WalletID:      w.ID,
		Type:          txType,
		AmountMicros:  micros,
		Status:        models.TransactionCompleted,
		CorrelationID: correlationID,
		CreatedAt:     now,
		CompletedAt:   &now,
	}
	if err := tx.InsertTransaction(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// ReserveEarningsTx moves micros out of pending earnings into a PENDING
// PAYOUT movement inside the caller's atomic unit. Settlement later
// completes or fails the movement; failure restores the reservation.
func (l *Ledger) ReserveEarningsTx(ctx context.Context, tx store.Tx, userID string, micros int64, correlationID string) (*models.Transaction, error) {
	if micros <= 0 {
		return nil, ErrInvalidAmount
	}
	w, err := tx.WalletByUserForUpdate(ctx, userID)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	if w.PendingEarningsMicros < micros {
		return nil, fmt.Errorf("have %d, need %d: %w", w.PendingEarningsMicros, micros, ErrInsufficientEarnings)
	}
	if err := tx.ApplyWalletDeltas(ctx, w.ID, 0, -micros, 0); err != nil {
		return nil, err
	}
	out := &models.Transaction{
		ID:            uuid.New().String(),
		WalletID:      w.ID,
		Type:          models.TransactionPayout,
		AmountMicros:  -micros,
		Status:        models.TransactionPending,
		CorrelationID: correlationID,
		CreatedAt:     l.now().UTC(),
	}
	if err := tx.InsertTransaction(ctx, out); err != nil {
		return nil, err
	}
	return out, nil
}

// SettleReservationTx finalizes a payout reservation inside the caller's
// atomic unit. On failure the reserved earnings return to the wallet so
// funds are never silently lost.
func (l *Ledger) SettleReservationTx(ctx context.Context, tx store.Tx, walletID, ledgerTxID string, micros int64, success bool) error {
	now := l.now().UTC()
	if success {
		return tx.UpdateTransactionStatus(ctx, ledgerTxID, models.TransactionCompleted, &now)
	}
	if err := tx.ApplyWalletDeltas(ctx, walletID, 0, micros, 0); err != nil {
		return err
	}
	return tx.UpdateTransactionStatus(ctx, ledgerTxID, models.TransactionFailed, &now)
}
