// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package relay

import (
	"context"
	"time"

	"github.com/goccy/go-json"

	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/metrics"
	"github.com/emberworks/emberlive/internal/store"
)

// DispatcherConfig bounds the outbox polling loop.
type DispatcherConfig struct {
	// PollInterval is the scan period for unpublished rows.
	PollInterval time.Duration

	// BatchSize is the maximum rows claimed per scan.
	BatchSize int
}

func (c DispatcherConfig) withDefaults() DispatcherConfig {
	if c.PollInterval <= 0 {
		c.PollInterval = 200 * time.Millisecond
	}
	if c.BatchSize <= 0 {
		c.BatchSize = 100
	}
	return c
}

// Dispatcher drains the durable outbox onto the bus. Outbox rows are written
// in the same transaction as the state change they announce, so a crash
// between commit and publish is replayed on the next scan instead of losing
// the event. Rows are published in insertion order, which preserves per-stream
// commit order for subscribers.
type Dispatcher struct {
	store store.Store
	bus   *Bus
	cfg   DispatcherConfig
}

// NewDispatcher creates an outbox dispatcher.
func NewDispatcher(st store.Store, bus *Bus, cfg DispatcherConfig) *Dispatcher {
	return &Dispatcher{store: st, bus: bus, cfg: cfg.withDefaults()}
}

// Serve polls the outbox until ctx is canceled. Designed for suture
// supervision.
func (d *Dispatcher) Serve(ctx context.Context) error {
	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	logging.Info().
		Dur("poll_interval", d.cfg.PollInterval).
		Int("batch_size", d.cfg.BatchSize).
		Msg("outbox dispatcher started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := d.drain(ctx); err != nil {
				logging.Error().Err(err).Msg("outbox drain failed")
			}
		}
	}
}

// drain publishes one batch. A row that fails to publish stops the batch so
// later rows cannot overtake it; the next scan retries from the same point.
func (d *Dispatcher) drain(ctx context.Context) error {
	rows, err := d.store.UnpublishedOutboxEvents(ctx, d.cfg.BatchSize)
	if err != nil {
		return err
	}

	for i := range rows {
		row := &rows[i]
		if err := d.publish(ctx, row); err != nil {
			metrics.OutboxRetries.Inc()
			if bumpErr := d.store.BumpOutboxAttempts(ctx, row.ID); bumpErr != nil {
				logging.Error().Err(bumpErr).Str("outbox_id", row.ID).Msg("failed to bump outbox attempts")
			}
			logging.Warn().Err(err).
				Str("outbox_id", row.ID).
				Str("kind", row.Kind).
				Int("attempts", row.Attempts+1).
				Msg("outbox publish failed, will retry")
			return nil
		}
		if err := d.store.MarkOutboxPublished(ctx, row.ID, time.Now().UTC()); err != nil {
			// The event is on the bus; an unmarked row means one
			// duplicate publication on the next scan, which
			// subscribers tolerate.
			logging.Error().Err(err).Str("outbox_id", row.ID).Msg("failed to mark outbox row published")
			return err
		}
		metrics.OutboxPublished.Inc()
	}
	return nil
}

func (d *Dispatcher) publish(ctx context.Context, row *store.OutboxEvent) error {
	var e Event
	if err := json.Unmarshal(row.Payload, &e); err != nil {
		// Undecodable rows can never succeed; mark them published so
		// they stop blocking the queue.
		logging.Error().Err(err).Str("outbox_id", row.ID).Msg("dropping undecodable outbox row")
		return d.store.MarkOutboxPublished(ctx, row.ID, time.Now().UTC())
	}
	return d.bus.Publish(e)
}

// OutboxRow packages a relay event as an outbox row for insertion inside a
// store transaction.
func OutboxRow(id string, e Event) (*store.OutboxEvent, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return nil, err
	}
	return &store.OutboxEvent{
		ID:        id,
		StreamID:  e.StreamID,
		Kind:      string(e.Kind),
		Payload:   payload,
		CreatedAt: e.Timestamp,
	}, nil
}
