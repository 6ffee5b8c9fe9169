// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

// Command server runs the Emberlive core: the HTTP API, the websocket
// fanout hub, and the background workers (outbox dispatcher, subscription
// renewals, payout submission), all under one supervisor tree.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	badger "github.com/dgraph-io/badger/v4"

	"github.com/emberworks/emberlive/internal/api"
	"github.com/emberworks/emberlive/internal/chat"
	"github.com/emberworks/emberlive/internal/config"
	"github.com/emberworks/emberlive/internal/gifting"
	"github.com/emberworks/emberlive/internal/ledger"
	"github.com/emberworks/emberlive/internal/logging"
	"github.com/emberworks/emberlive/internal/payouts"
	"github.com/emberworks/emberlive/internal/rails"
	"github.com/emberworks/emberlive/internal/ratelimit"
	"github.com/emberworks/emberlive/internal/relay"
	"github.com/emberworks/emberlive/internal/store"
	"github.com/emberworks/emberlive/internal/store/memory"
	"github.com/emberworks/emberlive/internal/store/postgres"
	"github.com/emberworks/emberlive/internal/subscriptions"
	"github.com/emberworks/emberlive/internal/supervisor"
	"github.com/emberworks/emberlive/internal/supervisor/services"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to load configuration")
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})

	logging.Info().
		Str("db_driver", cfg.Database.Driver).
		Str("rate_limit_store", cfg.RateLimit.Store).
		Int("port", cfg.Server.Port).
		Msg("Starting Emberlive")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage. The in-memory store is for development and tests; postgres
	// is the production driver.
	var st store.Store
	switch cfg.Database.Driver {
	case "postgres":
		pg, err := postgres.New(ctx, cfg.Database.DSN, cfg.Database.MaxConns)
		if err != nil {
			logging.Fatal().Err(err).Msg("Failed to connect to postgres")
		}
		defer func() {
			if err := pg.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing postgres pool")
			}
		}()
		st = pg
		logging.Info().Msg("Postgres store initialized")
	default:
		st = memory.New()
		logging.Warn().Msg("In-memory store selected; all state is lost on restart")
	}

	// Chat rate limit counters. Badger persists windows across restarts
	// so a crash never resets every sender's allowance.
	var counters ratelimit.CounterStore
	if cfg.RateLimit.Store == "badger" {
		opts := badger.DefaultOptions(cfg.RateLimit.BadgerPath)
		opts.Logger = nil
		db, err := badger.Open(opts)
		if err != nil {
			logging.Fatal().Err(err).Str("path", cfg.RateLimit.BadgerPath).Msg("Failed to open badger rate limit store")
		}
		defer func() {
			if err := db.Close(); err != nil {
				logging.Error().Err(err).Msg("Error closing badger")
			}
		}()
		counters = ratelimit.NewBadgerCounterStore(db, "rl")
		logging.Info().Str("path", cfg.RateLimit.BadgerPath).Msg("Badger rate limit store initialized")
	} else {
		counters = ratelimit.NewMemoryCounterStore()
	}

	limiter := ratelimit.New(counters, ratelimit.Config{
		MaxMessages: cfg.RateLimit.MaxMessages,
		Window:      cfg.RateLimit.Window,
	})

	// External provider stubs. Real rails plug in behind these interfaces.
	rail := rails.LoggingRail{}
	notifier := rails.LoggingNotifier{}
	moderation := rails.AllowAllModeration{}

	ldg := ledger.New(st, ledger.Config{
		WelcomeBonusCoins: cfg.Economy.WelcomeBonusCoins,
		Currency:          cfg.Economy.Currency,
	})
	gifts := gifting.New(st, ldg, notifier, gifting.Config{
		CoinUnitPriceMicros:     cfg.Economy.CoinUnitPriceMicros,
		CreatorShareBasisPoints: cfg.Economy.CreatorShareBasisPoints,
		MaxCoinsPerGift:         cfg.Economy.MaxCoinsPerGift,
	})
	chatSvc := chat.New(st, limiter, moderation, chat.Config{
		MaxContentLength: cfg.Chat.MaxContentLength,
		HistoryLimit:     cfg.Chat.HistoryLimit,
	})
	subs := subscriptions.New(st, ldg, rail, subscriptions.Config{
		DefaultInterval:         cfg.Subscriptions.DefaultInterval,
		CreatorShareBasisPoints: cfg.Economy.CreatorShareBasisPoints,
		MaxRenewalFailures:      cfg.Subscriptions.MaxRenewalFailures,
		RenewPollInterval:       cfg.Subscriptions.RenewPollInterval,
		RenewBatchSize:          cfg.Subscriptions.RenewBatchSize,
	})
	payoutProc := payouts.New(st, ldg, rail, notifier, payouts.Config{
		MinAmountMicros: cfg.Payouts.MinAmountMicros,
		Currency:        cfg.Economy.Currency,
		PollInterval:    cfg.Payouts.PollInterval,
		BatchSize:       cfg.Payouts.BatchSize,
	})

	// Fanout pipeline: committed outbox rows are dispatched onto the bus,
	// the bus subscriber hands them to the hub, the hub fans out to
	// websocket sessions.
	hub := relay.NewHub(relay.HubConfig{
		BroadcastBuffer:      cfg.Relay.BroadcastBuffer,
		SessionBuffer:        cfg.Relay.SessionBuffer,
		MaxSessionsPerStream: cfg.Relay.MaxSessionsPerStream,
		MaxConsecutiveDrops:  cfg.Relay.MaxConsecutiveDrops,
	})
	bus := relay.NewBus()
	defer func() {
		if err := bus.Close(); err != nil {
			logging.Error().Err(err).Msg("Error closing event bus")
		}
	}()
	busSub := relay.NewBusSubscriber(bus, hub)
	dispatcher := relay.NewDispatcher(st, bus, relay.DispatcherConfig{
		PollInterval: cfg.Outbox.PollInterval,
		BatchSize:    cfg.Outbox.BatchSize,
	})

	handler := api.NewHandler(ldg, gifts, chatSvc, subs, payoutProc, hub, limiter, rail, api.HandlerConfig{
		Currency:     cfg.Economy.Currency,
		HistoryLimit: cfg.Chat.HistoryLimit,
	})
	routerCfg := api.DefaultRouterConfig()
	routerCfg.CORSAllowedOrigins = cfg.Server.CORSOrigins
	routerCfg.MetricsEnabled = cfg.Metrics.Enabled

	server := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      api.NewRouter(handler, routerCfg),
		ReadTimeout:  cfg.Server.Timeout,
		WriteTimeout: cfg.Server.Timeout,
		IdleTimeout:  60 * time.Second,
	}

	tree, err := supervisor.NewSupervisorTree(logging.NewSlogLogger(), supervisor.DefaultTreeConfig())
	if err != nil {
		logging.Fatal().Err(err).Msg("Failed to create supervisor tree")
	}

	tree.AddMessagingService(hub)
	tree.AddMessagingService(busSub)
	tree.AddWorkerService(dispatcher)
	tree.AddWorkerService(subs)
	tree.AddWorkerService(payoutProc)
	tree.AddAPIService(services.NewHTTPServerService(server, 10*time.Second))
	logging.Info().Str("addr", server.Addr).Msg("Services added to supervisor tree")

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("Received shutdown signal")
		cancel()
	}()

	logging.Info().Msg("Starting supervisor tree")
	errCh := tree.ServeBackground(ctx)

	select {
	case <-ctx.Done():
		logging.Info().Msg("Context canceled, waiting for supervisor to finish")
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor tree error")
		}
	}

	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Error().Err(err).Msg("Supervisor shutdown error")
		}
	}

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("Service failed to stop within timeout")
	}

	logging.Info().Msg("Emberlive stopped gracefully")
}
