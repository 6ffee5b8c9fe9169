// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/emberworks/emberlive/internal/chat"
	"github.com/emberworks/emberlive/internal/gifting"
	"github.com/emberworks/emberlive/internal/ledger"
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/payouts"
	"github.com/emberworks/emberlive/internal/rails"
	"github.com/emberworks/emberlive/internal/ratelimit"
	"github.com/emberworks/emberlive/internal/relay"
	"github.com/emberworks/emberlive/internal/store/memory"
	"github.com/emberworks/emberlive/internal/subscriptions"
)

// testStack wires the full service graph over the in-memory store and
// exposes the assembled router, so tests exercise the same code path as
// production requests: routing, middleware, handler, service, store.
type testStack struct {
	router  http.Handler
	store   *memory.Store
	ledger  *ledger.Ledger
	payouts *payouts.Processor
}

func setupTestStack(t *testing.T) *testStack {
	t.Helper()

	st := memory.New()
	ldg := ledger.New(st, ledger.Config{WelcomeBonusCoins: 100, Currency: "USD"})
	limiter := ratelimit.New(ratelimit.NewMemoryCounterStore(), ratelimit.Config{
		MaxMessages: 5,
		Window:      10 * time.Second,
	})
	gifts := gifting.New(st, ldg, rails.LoggingNotifier{}, gifting.Config{
		CoinUnitPriceMicros:     10000,
		CreatorShareBasisPoints: 7000,
		MaxCoinsPerGift:         1_000_000,
	})
	chatSvc := chat.New(st, limiter, rails.AllowAllModeration{}, chat.Config{
		MaxContentLength: 500,
		HistoryLimit:     50,
	})
	subs := subscriptions.New(st, ldg, rails.LoggingRail{}, subscriptions.Config{})
	payoutProc := payouts.New(st, ldg, rails.LoggingRail{}, rails.LoggingNotifier{}, payouts.Config{
		MinAmountMicros: 10_000_000,
	})
	hub := relay.NewHub(relay.HubConfig{})

	h := NewHandler(ldg, gifts, chatSvc, subs, payoutProc, hub, limiter, rails.LoggingRail{}, HandlerConfig{
		Currency:     "USD",
		HistoryLimit: 50,
	})
	router := NewRouter(h, RouterConfig{
		CORSAllowedOrigins: []string{"*"},
		RateLimitRequests:  10000,
		RateLimitWindow:    time.Minute,
		MetricsEnabled:     false,
	})

	return &testStack{router: router, store: st, ledger: ldg, payouts: payoutProc}
}

// seedLiveStream inserts a live stream with chat and gifts enabled.
func (s *testStack) seedLiveStream(t *testing.T, streamID, hostID string) {
	t.Helper()
	err := s.store.UpsertStream(context.Background(), &models.Stream{
		ID:           streamID,
		HostID:       hostID,
		Live:         true,
		ChatEnabled:  true,
		GiftsEnabled: true,
		StartedAt:    time.Now().UTC(),
	})
	if err != nil {
		t.Fatalf("seed stream: %v", err)
	}
}

// seedWallet creates a wallet and tops it up to the given coin balance.
// Every new wallet starts with the 100 coin welcome bonus.
func (s *testStack) seedWallet(t *testing.T, userID string, extraCoins int64) {
	t.Helper()
	if _, err := s.ledger.CreateWallet(context.Background(), userID); err != nil {
		t.Fatalf("seed wallet: %v", err)
	}
	if extraCoins > 0 {
		_, err := s.ledger.CreditCoins(context.Background(), userID, extraCoins, models.TransactionCoinPurchase)
		if err != nil {
			t.Fatalf("seed coins: %v", err)
		}
	}
}

func doJSON(t *testing.T, router http.Handler, method, path, userID string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set("X-User-ID", userID)
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

// decodeEnvelope unpacks the standard response envelope.
func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) APIResponse {
	t.Helper()
	var resp APIResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v (body %q)", err, rec.Body.String())
	}
	return resp
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, wantStatus int, wantCode string) {
	t.Helper()
	if rec.Code != wantStatus {
		t.Fatalf("expected status %d, got %d (body %q)", wantStatus, rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if resp.Success {
		t.Fatal("expected success=false")
	}
	if resp.Error == nil {
		t.Fatal("expected error in envelope")
	}
	if resp.Error.Code != wantCode {
		t.Errorf("expected error code %q, got %q", wantCode, resp.Error.Code)
	}
}

// ========================================
// Gift Tests
// ========================================

func TestSendGift_Success(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedLiveStream(t, "stream-1", "creator-1")
	s.seedWallet(t, "viewer-1", 400)
	s.seedWallet(t, "creator-1", 0)

	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/gifts", "viewer-1", SendGiftRequest{
		ReceiverID:     "creator-1",
		StreamID:       "stream-1",
		GiftType:       "rocket",
		Coins:          200,
		IsPublic:       true,
		IdempotencyKey: "gift-idem-0001",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body %q)", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if !resp.Success {
		t.Fatal("expected success=true")
	}

	// 100 bonus + 400 purchased - 200 gifted.
	w, err := s.ledger.Wallet(context.Background(), "viewer-1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Coins != 300 {
		t.Errorf("expected sender balance 300, got %d", w.Coins)
	}

	// 200 coins * 10000 micros * 70% = 1,400,000 micros creator share.
	cw, err := s.ledger.Wallet(context.Background(), "creator-1")
	if err != nil {
		t.Fatalf("creator wallet: %v", err)
	}
	if cw.PendingEarningsMicros != 1_400_000 {
		t.Errorf("expected creator pending 1400000, got %d", cw.PendingEarningsMicros)
	}
}

func TestSendGift_InsufficientBalance(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedLiveStream(t, "stream-1", "creator-1")
	s.seedWallet(t, "viewer-1", 0) // only the 100 coin bonus
	s.seedWallet(t, "creator-1", 0)

	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/gifts", "viewer-1", SendGiftRequest{
		ReceiverID:     "creator-1",
		StreamID:       "stream-1",
		GiftType:       "rocket",
		Coins:          5000,
		IdempotencyKey: "gift-idem-0002",
	})

	assertErrorCode(t, rec, http.StatusBadRequest, ErrCodeInsufficientBalance)
}

func TestSendGift_StreamNotFound(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedWallet(t, "viewer-1", 400)

	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/gifts", "viewer-1", SendGiftRequest{
		ReceiverID:     "creator-1",
		StreamID:       "no-such-stream",
		GiftType:       "rocket",
		Coins:          10,
		IdempotencyKey: "gift-idem-0003",
	})

	assertErrorCode(t, rec, http.StatusNotFound, ErrCodeStreamNotFound)
}

func TestSendGift_IdempotentReplay(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedLiveStream(t, "stream-1", "creator-1")
	s.seedWallet(t, "viewer-1", 400)
	s.seedWallet(t, "creator-1", 0)

	body := SendGiftRequest{
		ReceiverID:     "creator-1",
		StreamID:       "stream-1",
		GiftType:       "rocket",
		Coins:          50,
		IdempotencyKey: "gift-idem-0004",
	}
	first := doJSON(t, s.router, http.MethodPost, "/api/v1/gifts", "viewer-1", body)
	second := doJSON(t, s.router, http.MethodPost, "/api/v1/gifts", "viewer-1", body)

	if first.Code != http.StatusCreated || second.Code != http.StatusCreated {
		t.Fatalf("expected 201/201, got %d/%d", first.Code, second.Code)
	}

	// The replay must not debit twice.
	w, err := s.ledger.Wallet(context.Background(), "viewer-1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Coins != 450 {
		t.Errorf("expected sender balance 450 after replay, got %d", w.Coins)
	}
}

func TestSendGift_Unauthorized(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/gifts", "", SendGiftRequest{
		ReceiverID:     "creator-1",
		StreamID:       "stream-1",
		GiftType:       "rocket",
		Coins:          10,
		IdempotencyKey: "gift-idem-0005",
	})

	assertErrorCode(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestSendGift_ValidationError(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/gifts", "viewer-1", SendGiftRequest{
		ReceiverID: "creator-1",
		StreamID:   "stream-1",
		GiftType:   "rocket",
		Coins:      10,
		// missing idempotency_key
	})

	assertErrorCode(t, rec, http.StatusBadRequest, ErrCodeValidationError)
}

// ========================================
// Chat Tests
// ========================================

func TestSendChat_Success(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedLiveStream(t, "stream-1", "creator-1")

	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/streams/stream-1/chat", "viewer-1", SendChatRequest{
		Content: "hello chat",
		Type:    "TEXT",
	})

	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body %q)", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	if !resp.Success {
		t.Fatal("expected success=true")
	}
}

func TestSendChat_RateLimited(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedLiveStream(t, "stream-1", "creator-1")

	var rec *httptest.ResponseRecorder
	for i := 0; i < 6; i++ {
		rec = doJSON(t, s.router, http.MethodPost, "/api/v1/streams/stream-1/chat", "viewer-1", SendChatRequest{
			Content: fmt.Sprintf("message %d", i),
			Type:    "TEXT",
		})
	}

	assertErrorCode(t, rec, http.StatusTooManyRequests, ErrCodeRateLimited)
	if rec.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on 429")
	}
}

func TestDeleteChat_AuthorAndForbidden(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedLiveStream(t, "stream-1", "creator-1")

	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/streams/stream-1/chat", "viewer-1", SendChatRequest{
		Content: "delete me",
		Type:    "TEXT",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("send failed: %d", rec.Code)
	}
	var msg models.ChatMessage
	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode message: %v", err)
	}

	// A random viewer may not delete someone else's message.
	del := doJSON(t, s.router, http.MethodDelete,
		"/api/v1/streams/stream-1/chat/"+msg.ID, "viewer-2", nil)
	assertErrorCode(t, del, http.StatusForbidden, ErrCodeForbidden)

	// The author may.
	del = doJSON(t, s.router, http.MethodDelete,
		"/api/v1/streams/stream-1/chat/"+msg.ID, "viewer-1", nil)
	if del.Code != http.StatusOK {
		t.Fatalf("expected 200 for author delete, got %d (body %q)", del.Code, del.Body.String())
	}
}

func TestChatHistory(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedLiveStream(t, "stream-1", "creator-1")

	for i := 0; i < 3; i++ {
		rec := doJSON(t, s.router, http.MethodPost, "/api/v1/streams/stream-1/chat", "viewer-1", SendChatRequest{
			Content: fmt.Sprintf("message %d", i),
			Type:    "TEXT",
		})
		if rec.Code != http.StatusCreated {
			t.Fatalf("send %d failed: %d", i, rec.Code)
		}
	}

	rec := doJSON(t, s.router, http.MethodGet, "/api/v1/streams/stream-1/chat", "viewer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %q)", rec.Code, rec.Body.String())
	}
	resp := decodeEnvelope(t, rec)
	data, ok := resp.Data.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected data shape: %T", resp.Data)
	}
	if got := data["count"].(float64); got != 3 {
		t.Errorf("expected count 3, got %v", got)
	}
}

// ========================================
// Wallet Tests
// ========================================

func TestWallet_OwnerOnly(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedWallet(t, "viewer-1", 0)

	rec := doJSON(t, s.router, http.MethodGet, "/api/v1/wallets/viewer-1", "viewer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %q)", rec.Code, rec.Body.String())
	}

	// Reading another user's wallet is forbidden.
	rec = doJSON(t, s.router, http.MethodGet, "/api/v1/wallets/viewer-1", "viewer-2", nil)
	assertErrorCode(t, rec, http.StatusForbidden, ErrCodeForbidden)
}

func TestPurchase_CreditsCoins(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedWallet(t, "viewer-1", 0)

	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/wallets/viewer-1/purchase", "viewer-1", PurchaseRequest{
		Coins:       500,
		PaymentRef:  "order-12345",
		AmountMicro: 5_000_000,
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body %q)", rec.Code, rec.Body.String())
	}

	w, err := s.ledger.Wallet(context.Background(), "viewer-1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.Coins != 600 { // 100 bonus + 500 purchased
		t.Errorf("expected 600 coins, got %d", w.Coins)
	}
}

// ========================================
// Subscription Tests
// ========================================

func TestSubscription_Lifecycle(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedWallet(t, "creator-1", 0)

	body := CreateSubscriptionRequest{
		CreatorID:    "creator-1",
		Tier:         "gold",
		AmountMicros: 4_990_000,
	}
	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/subscriptions", "viewer-1", body)
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d (body %q)", rec.Code, rec.Body.String())
	}
	var sub models.Subscription
	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(raw, &sub); err != nil {
		t.Fatalf("decode subscription: %v", err)
	}

	// Double-subscribe conflicts while the first is active.
	rec = doJSON(t, s.router, http.MethodPost, "/api/v1/subscriptions", "viewer-1", body)
	assertErrorCode(t, rec, http.StatusConflict, ErrCodeAlreadySubscribed)

	// Only the subscriber may cancel.
	rec = doJSON(t, s.router, http.MethodDelete, "/api/v1/subscriptions/"+sub.ID, "viewer-2", nil)
	assertErrorCode(t, rec, http.StatusForbidden, ErrCodeForbidden)

	rec = doJSON(t, s.router, http.MethodDelete, "/api/v1/subscriptions/"+sub.ID, "viewer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (body %q)", rec.Code, rec.Body.String())
	}

	// Cancel is idempotent.
	rec = doJSON(t, s.router, http.MethodDelete, "/api/v1/subscriptions/"+sub.ID, "viewer-1", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on repeat cancel, got %d", rec.Code)
	}
}

// ========================================
// Payout Tests
// ========================================

// fundCreatorEarnings routes a large gift through the coordinator so the
// creator has real pending earnings, same as production.
func fundCreatorEarnings(t *testing.T, s *testStack) {
	t.Helper()
	s.seedLiveStream(t, "stream-1", "creator-1")
	s.seedWallet(t, "viewer-1", 2000)
	s.seedWallet(t, "creator-1", 0)

	// 2000 coins * 10000 micros * 70% = 14,000,000 micros pending.
	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/gifts", "viewer-1", SendGiftRequest{
		ReceiverID:     "creator-1",
		StreamID:       "stream-1",
		GiftType:       "galaxy",
		Coins:          2000,
		IdempotencyKey: "gift-idem-fund",
	})
	if rec.Code != http.StatusCreated {
		t.Fatalf("funding gift failed: %d (body %q)", rec.Code, rec.Body.String())
	}
}

func TestPayout_RequestAndSettle(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	fundCreatorEarnings(t, s)

	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/payouts", "creator-1", PayoutRequest{
		AmountMicros: 12_000_000,
		Method:       "bank_transfer",
	})
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d (body %q)", rec.Code, rec.Body.String())
	}
	var payout models.Payout
	resp := decodeEnvelope(t, rec)
	raw, _ := json.Marshal(resp.Data)
	if err := json.Unmarshal(raw, &payout); err != nil {
		t.Fatalf("decode payout: %v", err)
	}

	// The worker submits pending payouts to the rail before settlement
	// callbacks can land.
	if err := s.payouts.SubmitPending(context.Background()); err != nil {
		t.Fatalf("submit pending: %v", err)
	}

	cb := PayoutCallbackRequest{PayoutID: payout.ID, Succeeded: true}
	rec = doJSON(t, s.router, http.MethodPost, "/api/v1/payouts/callback", "", cb)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 callback ack, got %d (body %q)", rec.Code, rec.Body.String())
	}

	// Redelivered callbacks ack without double-settling.
	rec = doJSON(t, s.router, http.MethodPost, "/api/v1/payouts/callback", "", cb)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on redelivery, got %d", rec.Code)
	}

	w, err := s.ledger.Wallet(context.Background(), "creator-1")
	if err != nil {
		t.Fatalf("wallet: %v", err)
	}
	if w.PendingEarningsMicros != 2_000_000 {
		t.Errorf("expected 2000000 pending after settlement, got %d", w.PendingEarningsMicros)
	}
}

func TestPayout_BelowMinimum(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	fundCreatorEarnings(t, s)

	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/payouts", "creator-1", PayoutRequest{
		AmountMicros: 1_000_000, // $1 < $10 minimum
		Method:       "bank_transfer",
	})
	assertErrorCode(t, rec, http.StatusBadRequest, ErrCodePayoutBelowMinimum)
}

func TestPayout_CallbackUnknownPayout(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	rec := doJSON(t, s.router, http.MethodPost, "/api/v1/payouts/callback", "", PayoutCallbackRequest{
		PayoutID:  "no-such-payout",
		Succeeded: true,
	})
	assertErrorCode(t, rec, http.StatusNotFound, ErrCodePayoutNotFound)
}

// ========================================
// Websocket Subscribe Tests
// ========================================

// The subscribe endpoint gates on the stream before attempting the
// upgrade, so a viewer cannot hold a hub session on a stream that does
// not exist or is not live.
func TestChatSubscribe_StreamGates(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	s.seedLiveStream(t, "stream-1", "creator")

	rec := doJSON(t, s.router, http.MethodGet, "/api/v1/streams/ghost/chat/ws", "viewer", nil)
	assertErrorCode(t, rec, http.StatusNotFound, ErrCodeStreamNotFound)

	err := s.store.UpsertStream(context.Background(), &models.Stream{
		ID:     "stream-ended",
		HostID: "creator",
		Live:   false,
	})
	if err != nil {
		t.Fatalf("seed stream: %v", err)
	}
	rec = doJSON(t, s.router, http.MethodGet, "/api/v1/streams/stream-ended/chat/ws", "viewer", nil)
	assertErrorCode(t, rec, http.StatusBadRequest, ErrCodeStreamNotLive)

	rec = doJSON(t, s.router, http.MethodGet, "/api/v1/streams/stream-1/chat/ws", "", nil)
	assertErrorCode(t, rec, http.StatusUnauthorized, ErrCodeUnauthorized)
}

// ========================================
// Health Tests
// ========================================

func TestHealth(t *testing.T) {
	t.Parallel()

	s := setupTestStack(t)
	rec := doJSON(t, s.router, http.MethodGet, "/api/v1/health", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	rec = doJSON(t, s.router, http.MethodGet, "/api/v1/health/live", "", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
