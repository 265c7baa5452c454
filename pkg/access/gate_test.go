package access_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialecho/echokit/pkg/access"
	"github.com/socialecho/echokit/pkg/plan"
	"github.com/socialecho/echokit/pkg/subscription"
)

type stubVerifier struct {
	verified map[uuid.UUID]bool
}

func (v *stubVerifier) IsVerified(_ context.Context, tenantID uuid.UUID) (bool, error) {
	return v.verified[tenantID], nil
}

func newVerifier(verified ...uuid.UUID) *stubVerifier {
	m := make(map[uuid.UUID]bool, len(verified))
	for _, id := range verified {
		m[id] = true
	}
	return &stubVerifier{verified: m}
}

func seedSubscription(t *testing.T, store subscription.Store, status subscription.Status, mutate func(*subscription.Subscription)) uuid.UUID {
	t.Helper()

	tenantID := uuid.New()
	now := time.Now().UTC()
	sub := &subscription.Subscription{
		TenantID:           tenantID,
		Plan:               plan.Pro,
		Status:             status,
		UsageLimit:         plan.Capped(100),
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
		CreatedAt:          now,
	}
	if mutate != nil {
		mutate(sub)
	}
	require.NoError(t, store.Save(context.Background(), sub))
	return tenantID
}

func TestCheckAccess(t *testing.T) {
	t.Parallel()

	ctx := context.Background()

	t.Run("no subscription", func(t *testing.T) {
		t.Parallel()

		gate := access.New(subscription.NewMemoryStore(), newVerifier())
		dec, err := gate.CheckAccess(ctx, uuid.New())
		require.NoError(t, err)
		assert.False(t, dec.Allowed)
		assert.Equal(t, access.ReasonSubscriptionRequired, dec.Reason)
		assert.NotEmpty(t, dec.Message)
	})

	t.Run("free trial needs verified email", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		tenantID := seedSubscription(t, store, subscription.StatusFreeTrial, nil)

		gate := access.New(store, newVerifier())
		dec, err := gate.CheckAccess(ctx, tenantID)
		require.NoError(t, err)
		assert.False(t, dec.Allowed)
		assert.Equal(t, access.ReasonEmailUnverified, dec.Reason)

		gate = access.New(store, newVerifier(tenantID))
		dec, err = gate.CheckAccess(ctx, tenantID)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
	})

	t.Run("expired trial is auto-suspended", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		trialEnd := time.Now().UTC().Add(-time.Hour)
		tenantID := seedSubscription(t, store, subscription.StatusTrialing, func(s *subscription.Subscription) {
			s.TrialEndsAt = &trialEnd
		})

		gate := access.New(store, newVerifier(tenantID))
		dec, err := gate.CheckAccess(ctx, tenantID)
		require.NoError(t, err)
		assert.False(t, dec.Allowed)
		assert.Equal(t, access.ReasonTrialExpired, dec.Reason)
		assert.Equal(t, subscription.StatusSuspended, dec.Subscription.Status)

		stored, err := store.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusSuspended, stored.Status)

		// re-evaluating an already suspended row denies without another
		// status transition
		dec, err = gate.CheckAccess(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, access.ReasonSuspended, dec.Reason)
	})

	t.Run("legacy trial status also expires", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		trialEnd := time.Now().UTC().Add(-time.Minute)
		tenantID := seedSubscription(t, store, subscription.StatusTrialLegacy, func(s *subscription.Subscription) {
			s.TrialEndsAt = &trialEnd
		})

		gate := access.New(store, newVerifier(tenantID))
		dec, err := gate.CheckAccess(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, access.ReasonTrialExpired, dec.Reason)
	})

	t.Run("suspended and canceled are denied", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		suspended := seedSubscription(t, store, subscription.StatusSuspended, nil)
		canceled := seedSubscription(t, store, subscription.StatusCanceled, nil)

		gate := access.New(store, newVerifier(suspended, canceled))

		dec, err := gate.CheckAccess(ctx, suspended)
		require.NoError(t, err)
		assert.Equal(t, access.ReasonSuspended, dec.Reason)

		dec, err = gate.CheckAccess(ctx, canceled)
		require.NoError(t, err)
		assert.Equal(t, access.ReasonCanceled, dec.Reason)
	})

	t.Run("unknown status denied defensively", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		tenantID := seedSubscription(t, store, subscription.Status("corrupted"), nil)

		gate := access.New(store, newVerifier(tenantID))
		dec, err := gate.CheckAccess(ctx, tenantID)
		require.NoError(t, err)
		assert.False(t, dec.Allowed)
		assert.Equal(t, access.ReasonInvalidStatus, dec.Reason)
	})

	t.Run("allowed statuses pass with snapshot", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		var tenants []uuid.UUID
		for _, status := range []subscription.Status{
			subscription.StatusActive,
			subscription.StatusPastDue,
			subscription.StatusFreeTrial,
		} {
			tenants = append(tenants, seedSubscription(t, store, status, nil))
		}

		gate := access.New(store, newVerifier(tenants...))
		for _, tenantID := range tenants {
			dec, err := gate.CheckAccess(ctx, tenantID)
			require.NoError(t, err)
			assert.True(t, dec.Allowed)
			require.NotNil(t, dec.Subscription)
			assert.Equal(t, tenantID, dec.Subscription.TenantID)
		}
	})

	t.Run("trial with future end allowed", func(t *testing.T) {
		t.Parallel()

		store := subscription.NewMemoryStore()
		trialEnd := time.Now().UTC().Add(24 * time.Hour)
		tenantID := seedSubscription(t, store, subscription.StatusTrialing, func(s *subscription.Subscription) {
			s.TrialEndsAt = &trialEnd
		})

		gate := access.New(store, newVerifier(tenantID))
		dec, err := gate.CheckAccess(ctx, tenantID)
		require.NoError(t, err)
		assert.True(t, dec.Allowed)
	})
}
