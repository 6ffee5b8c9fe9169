// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package models defines the domain types shared across the Emberlive core:
// wallets and their transaction ledger, gifts, chat messages and their typed
// metadata variants, stream records and aggregates, subscriptions, and payouts.
//
// Money amounts are stored as int64 micro-USD (1 USD = 1_000_000 micros) so
// the ledger never does floating-point arithmetic. Coins are plain integers.
package models
