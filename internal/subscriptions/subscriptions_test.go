// Emberlive - Live Stream Gifting Economy and Chat Fanout Core
// Copyright 2026 Emberworks
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/emberworks/emberlive

package subscriptions

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emberworks/emberlive/internal/ledger"
	"github.com/emberworks/emberlive/internal/models"
	"github.com/emberworks/emberlive/internal/rails"
	"github.com/emberworks/emberlive/internal/store/memory"
)

// fakeRail scripts charge outcomes.
type fakeRail struct {
	rails.LoggingRail
	declineCharges bool
	charges        int
}

func (r *fakeRail) ChargeCard(ctx context.Context, req rails.ChargeRequest) (string, error) {
	r.charges++
	if r.declineCharges {
		return "", errors.New("card declined")
	}
	return "charge-" + req.Reference, nil
}

type subFixture struct {
	svc   *Service
	store *memory.Store
	rail  *fakeRail
	now   time.Time
}

func newSubFixture(t *testing.T) *subFixture {
	t.Helper()
	ctx := context.Background()

	st := memory.New()
	ldg := ledger.New(st, ledger.Config{})
	_, err := ldg.CreateWallet(ctx, "fan")
	require.NoError(t, err)
	_, err = ldg.CreateWallet(ctx, "creator")
	require.NoError(t, err)

	rail := &fakeRail{}
	f := &subFixture{
		svc: New(st, ldg, rail, Config{
			DefaultInterval:    30 * 24 * time.Hour,
			MaxRenewalFailures: 3,
		}),
		store: st,
		rail:  rail,
		now:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
	f.svc.SetClock(func() time.Time { return f.now })
	return f
}

func (f *subFixture) create(t *testing.T) *models.Subscription {
	t.Helper()
	sub, err := f.svc.Create(context.Background(), CreateParams{
		SubscriberID: "fan",
		CreatorID:    "creator",
		Tier:         "gold",
		AmountMicros: 5_000_000, // $5
	})
	require.NoError(t, err)
	return sub
}

func TestCreateSubscription(t *testing.T) {
	ctx := context.Background()
	f := newSubFixture(t)

	sub := f.create(t)
	assert.Equal(t, models.SubscriptionActive, sub.Status)
	assert.Equal(t, f.now, sub.CurrentPeriodStart)
	assert.Equal(t, f.now.Add(30*24*time.Hour), sub.CurrentPeriodEnd)
	assert.Equal(t, 1, f.rail.charges)

	// Creator accrued 70% of $5 in the same commit.
	w, err := f.store.Wallet(ctx, "creator")
	require.NoError(t, err)
	assert.Equal(t, int64(3_500_000), w.PendingEarningsMicros)

	trail, err := f.store.TransactionsByWallet(ctx, w.ID)
	require.NoError(t, err)
	require.Len(t, trail, 1)
	assert.Equal(t, models.TransactionSubscriptionCharge, trail[0].Type)
	assert.Equal(t, sub.ID, trail[0].CorrelationID)
}

func TestCreateSubscriptionRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("already subscribed", func(t *testing.T) {
		f := newSubFixture(t)
		f.create(t)
		_, err := f.svc.Create(ctx, CreateParams{
			SubscriberID: "fan", CreatorID: "creator", AmountMicros: 5_000_000,
		})
		assert.ErrorIs(t, err, ErrAlreadySubscribed)
	})

	t.Run("self subscribe", func(t *testing.T) {
		f := newSubFixture(t)
		_, err := f.svc.Create(ctx, CreateParams{
			SubscriberID: "fan", CreatorID: "fan", AmountMicros: 5_000_000,
		})
		assert.ErrorIs(t, err, ErrSelfSubscribe)
	})

	t.Run("zero amount", func(t *testing.T) {
		f := newSubFixture(t)
		_, err := f.svc.Create(ctx, CreateParams{
			SubscriberID: "fan", CreatorID: "creator",
		})
		assert.ErrorIs(t, err, ErrInvalidAmount)
	})

	t.Run("declined first charge", func(t *testing.T) {
		f := newSubFixture(t)
		f.rail.declineCharges = true
		_, err := f.svc.Create(ctx, CreateParams{
			SubscriberID: "fan", CreatorID: "creator", AmountMicros: 5_000_000,
		})
		assert.ErrorIs(t, err, ErrChargeFailed)

		// No subscription and no creator earnings on a declined charge.
		w, err := f.store.Wallet(ctx, "creator")
		require.NoError(t, err)
		assert.Zero(t, w.PendingEarningsMicros)
	})
}

func TestCancelSubscription(t *testing.T) {
	ctx := context.Background()
	f := newSubFixture(t)
	sub := f.create(t)

	assert.ErrorIs(t, f.svc.Cancel(ctx, sub.ID, "stranger"), ErrForbidden)
	assert.ErrorIs(t, f.svc.Cancel(ctx, "ghost", "fan"), ErrSubscriptionNotFound)

	require.NoError(t, f.svc.Cancel(ctx, sub.ID, "fan"))
	got, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCanceled, got.Status)
	require.NotNil(t, got.CanceledAt)

	// Cancel is terminal and idempotent.
	require.NoError(t, f.svc.Cancel(ctx, sub.ID, "fan"))

	// A canceled pair may subscribe again.
	_, err = f.svc.Create(ctx, CreateParams{
		SubscriberID: "fan", CreatorID: "creator", AmountMicros: 5_000_000,
	})
	assert.NoError(t, err)
}

func TestRenewalAdvancesPeriod(t *testing.T) {
	ctx := context.Background()
	f := newSubFixture(t)
	sub := f.create(t)
	firstEnd := sub.CurrentPeriodEnd

	// Not yet due: nothing happens.
	require.NoError(t, f.svc.RenewDue(ctx))
	assert.Equal(t, 1, f.rail.charges)

	f.now = firstEnd.Add(time.Minute)
	require.NoError(t, f.svc.RenewDue(ctx))
	assert.Equal(t, 2, f.rail.charges)

	got, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, got.Status)
	assert.Equal(t, firstEnd, got.CurrentPeriodStart)
	assert.Equal(t, firstEnd.Add(sub.Interval), got.CurrentPeriodEnd)
	assert.Zero(t, got.RenewalFailures)

	// Two charges' worth of creator share.
	w, err := f.store.Wallet(ctx, "creator")
	require.NoError(t, err)
	assert.Equal(t, int64(7_000_000), w.PendingEarningsMicros)
}

func TestFailedRenewalGoesPastDueThenCanceled(t *testing.T) {
	ctx := context.Background()
	f := newSubFixture(t)
	sub := f.create(t)

	f.rail.declineCharges = true
	f.now = sub.CurrentPeriodEnd.Add(time.Minute)

	require.NoError(t, f.svc.RenewDue(ctx))
	got, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPastDue, got.Status)
	assert.Equal(t, 1, got.RenewalFailures)

	require.NoError(t, f.svc.RenewDue(ctx))
	got, err = f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionPastDue, got.Status)
	assert.Equal(t, 2, got.RenewalFailures)

	require.NoError(t, f.svc.RenewDue(ctx))
	got, err = f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionCanceled, got.Status, "third failure cancels")
	require.NotNil(t, got.CanceledAt)

	// Canceled subscriptions drop out of the due scan.
	require.NoError(t, f.svc.RenewDue(ctx))
	got2, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, got.RenewalFailures, got2.RenewalFailures)

	// Only one charge accrued earnings.
	w, err := f.store.Wallet(ctx, "creator")
	require.NoError(t, err)
	assert.Equal(t, int64(3_500_000), w.PendingEarningsMicros)
}

func TestPastDueRenewalRecovers(t *testing.T) {
	ctx := context.Background()
	f := newSubFixture(t)
	sub := f.create(t)

	f.rail.declineCharges = true
	f.now = sub.CurrentPeriodEnd.Add(time.Minute)
	require.NoError(t, f.svc.RenewDue(ctx))

	f.rail.declineCharges = false
	require.NoError(t, f.svc.RenewDue(ctx))

	got, err := f.svc.Get(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, models.SubscriptionActive, got.Status)
	assert.Zero(t, got.RenewalFailures)
}
