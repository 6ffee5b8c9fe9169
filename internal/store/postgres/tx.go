// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package postgres

import (
	"github.com/jackc/pgx/v5"

	"github.com/emberworks/emberlive/internal/store"
)

// pgTx wraps one pgx transaction. All mutations of an atomic unit go
// through it; commit/rollback is owned by Store.WithTx.
type pgTx struct {
	tx pgx.Tx
}

var _ store.Tx = (*pgTx)(nil)
