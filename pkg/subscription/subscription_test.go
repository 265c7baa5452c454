package subscription_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialecho/echokit/pkg/plan"
	"github.com/socialecho/echokit/pkg/subscription"
)

func newTestSubscription(tenantID uuid.UUID) *subscription.Subscription {
	now := time.Now().UTC()
	return &subscription.Subscription{
		TenantID:           tenantID,
		Plan:               plan.Starter,
		Status:             subscription.StatusActive,
		UsageLimit:         plan.Capped(30),
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		ProviderCustomerID: "cus_" + tenantID.String()[:8],
		CreatedAt:          now,
	}
}

func TestStatusIsTrial(t *testing.T) {
	t.Parallel()

	assert.True(t, subscription.StatusTrialing.IsTrial())
	assert.True(t, subscription.StatusTrialLegacy.IsTrial())
	assert.False(t, subscription.StatusFreeTrial.IsTrial())
	assert.False(t, subscription.StatusActive.IsTrial())
}

func TestTrialExpiredAt(t *testing.T) {
	t.Parallel()

	now := time.Now().UTC()
	past := now.Add(-time.Hour)

	sub := &subscription.Subscription{Status: subscription.StatusTrialing, TrialEndsAt: &past}
	assert.True(t, sub.TrialExpiredAt(now))

	future := now.Add(time.Hour)
	sub.TrialEndsAt = &future
	assert.False(t, sub.TrialExpiredAt(now))

	// free_trial quota is lifetime, never time-expired
	sub = &subscription.Subscription{Status: subscription.StatusFreeTrial, TrialEndsAt: &past}
	assert.False(t, sub.TrialExpiredAt(now))

	sub = &subscription.Subscription{Status: subscription.StatusTrialing}
	assert.False(t, sub.TrialExpiredAt(now))
}

func TestMemoryStore(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("get missing returns ErrNotFound", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		_, err := store.Get(ctx, uuid.New())
		require.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("save and get round trip", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := newTestSubscription(uuid.New())
		require.NoError(t, store.Save(ctx, sub))

		got, err := store.Get(ctx, sub.TenantID)
		require.NoError(t, err)
		assert.Equal(t, sub.TenantID, got.TenantID)
		assert.Equal(t, plan.Starter, got.Plan)
		assert.Equal(t, int64(30), got.UsageLimit.Value())

		// mutating the returned copy must not leak into the store
		got.Status = subscription.StatusCanceled
		again, err := store.Get(ctx, sub.TenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, again.Status)
	})

	t.Run("lookup by provider customer id", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := newTestSubscription(uuid.New())
		require.NoError(t, store.Save(ctx, sub))

		got, err := store.GetByProviderCustomerID(ctx, sub.ProviderCustomerID)
		require.NoError(t, err)
		assert.Equal(t, sub.TenantID, got.TenantID)

		_, err = store.GetByProviderCustomerID(ctx, "cus_unknown")
		require.ErrorIs(t, err, subscription.ErrNotFound)
	})

	t.Run("save rejects inverted period", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := newTestSubscription(uuid.New())
		sub.CurrentPeriodStart = sub.CurrentPeriodEnd.Add(time.Hour)
		require.ErrorIs(t, store.Save(ctx, sub), subscription.ErrInvalidPeriod)
	})

	t.Run("set status is idempotent", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := newTestSubscription(uuid.New())
		require.NoError(t, store.Save(ctx, sub))

		require.NoError(t, store.SetStatus(ctx, sub.TenantID, subscription.StatusSuspended))
		require.NoError(t, store.SetStatus(ctx, sub.TenantID, subscription.StatusSuspended))

		got, err := store.Get(ctx, sub.TenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusSuspended, got.Status)
	})

	t.Run("reset cycle zeroes counter once", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := newTestSubscription(uuid.New())
		sub.UsageCount = 12
		require.NoError(t, store.Save(ctx, sub))

		start := sub.CurrentPeriodEnd
		end := start.AddDate(0, 1, 0)

		got, err := store.ResetCycle(ctx, sub.TenantID, start, end)
		require.NoError(t, err)
		assert.Equal(t, int64(0), got.UsageCount)
		assert.Equal(t, end, got.CurrentPeriodEnd)

		// second rollover to the same boundary is a no-op even after
		// usage accrued in the new cycle
		_, err = store.IncrementUsage(ctx, sub.TenantID)
		require.NoError(t, err)

		got, err = store.ResetCycle(ctx, sub.TenantID, start, end)
		require.NoError(t, err)
		assert.Equal(t, int64(1), got.UsageCount)
	})

	t.Run("increment usage is atomic", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		sub := newTestSubscription(uuid.New())
		require.NoError(t, store.Save(ctx, sub))

		const workers = 32
		var wg sync.WaitGroup
		wg.Add(workers)
		for range workers {
			go func() {
				defer wg.Done()
				_, _ = store.IncrementUsage(ctx, sub.TenantID)
			}()
		}
		wg.Wait()

		got, err := store.Get(ctx, sub.TenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(workers), got.UsageCount)
	})

	t.Run("list due skips free trial", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		now := time.Now().UTC()

		expired := newTestSubscription(uuid.New())
		expired.CurrentPeriodStart = now.AddDate(0, -2, 0)
		expired.CurrentPeriodEnd = now.AddDate(0, -1, 0)
		require.NoError(t, store.Save(ctx, expired))

		freeTrial := newTestSubscription(uuid.New())
		freeTrial.Status = subscription.StatusFreeTrial
		freeTrial.CurrentPeriodStart = now.AddDate(0, -2, 0)
		freeTrial.CurrentPeriodEnd = now.AddDate(0, -1, 0)
		require.NoError(t, store.Save(ctx, freeTrial))

		fresh := newTestSubscription(uuid.New())
		require.NoError(t, store.Save(ctx, fresh))

		due, err := store.ListDue(ctx, now, 10)
		require.NoError(t, err)
		require.Len(t, due, 1)
		assert.Equal(t, expired.TenantID, due[0].TenantID)
	})
}
