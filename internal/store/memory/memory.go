// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Package memory implements store.Store entirely in process memory.
//
// Transactions operate on a deep copy of the state under one mutex and swap
// it in on commit, so every atomic unit is serializable and rollback is a
// discard. That is stricter serialization than the postgres implementation
// needs (which locks per wallet row), but it keeps the fake deterministic for
// the concurrency and atomicity tests, and it is good enough for single-node
// dev mode.
package memory

import (
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/store"
)

type state struct {
	wallets       map[string]*models.Wallet // by wallet ID
	walletsByUser map[string]string         // user ID -> wallet ID
	transactions  map[string]*models.Transaction
	txOrder       []string
	gifts         map[string]*models.Gift
	giftsByKey    map[string]string // idempotency key -> gift ID
	messages      map[string]*models.ChatMessage
	msgOrder      map[string][]string // stream ID -> message IDs in commit order
	streams       map[string]*models.Stream
	aggregates    map[string]*models.StreamAggregate
	blocks        map[string]bool // streamID+"/"+userID
	moderators    map[string]bool
	admins        map[string]bool
	subscriptions map[string]*models.Subscription
	payouts       map[string]*models.Payout
	outbox        map[string]*store.OutboxEvent
	outboxOrder   []string
}

func newState() *state {
	return &state{
		wallets:       map[string]*models.Wallet{},
		walletsByUser: map[string]string{},
		transactions:  map[string]*models.Transaction{},
		gifts:         map[string]*models.Gift{},
		giftsByKey:    map[string]string{},
		messages:      map[string]*models.ChatMessage{},
		msgOrder:      map[string][]string{},
		streams:       map[string]*models.Stream{},
		aggregates:    map[string]*models.StreamAggregate{},
		blocks:        map[string]bool{},
		moderators:    map[string]bool{},
		admins:        map[string]bool{},
		subscriptions: map[string]*models.Subscription{},
		payouts:       map[string]*models.Payout{},
		outbox:        map[string]*store.OutboxEvent{},
	}
}

func (s *state) clone() *state {
	c := newState()
	for k, v := range s.wallets {
		w := *v
		c.wallets[k] = &w
	}
	for k, v := range s.walletsByUser {
		c.walletsByUser[k] = v
	}
	for k, v := range s.transactions {
		t := *v
		c.transactions[k] = &t
	}
	c.txOrder = append([]string(nil), s.txOrder...)
	for k, v := range s.gifts {
		g := *v
		c.gifts[k] = &g
	}
	for k, v := range s.giftsByKey {
		c.giftsByKey[k] = v
	}
	for k, v := range s.messages {
		m := *v
		c.messages[k] = &m
	}
	for k, v := range s.msgOrder {
		c.msgOrder[k] = append([]string(nil), v...)
	}
	for k, v := range s.streams {
		st := *v
		c.streams[k] = &st
	}
	for k, v := range s.aggregates {
		a := *v
		c.aggregates[k] = &a
	}
	for k, v := range s.blocks {
		c.blocks[k] = v
	}
	for k, v := range s.moderators {
		c.moderators[k] = v
	}
	for k, v := range s.admins {
		c.admins[k] = v
	}
	for k, v := range s.subscriptions {
		sub := *v
		c.subscriptions[k] = &sub
	}
	for k, v := range s.payouts {
		p := *v
		c.payouts[k] = &p
	}
	for k, v := range s.outbox {
		o := *v
		c.outbox[k] = &o
	}
	c.outboxOrder = append([]string(nil), s.outboxOrder...)
	return c
}

func pairKey(streamID, userID string) string { return streamID + "/" + userID }
