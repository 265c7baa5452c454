package billing_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/socialecho/echokit/pkg/billing"
	"github.com/socialecho/echokit/pkg/plan"
	"github.com/socialecho/echokit/pkg/subscription"
)

func seedSyncedSub(t *testing.T, subs subscription.Store) uuid.UUID {
	t.Helper()
	tenantID := uuid.New()
	require.NoError(t, subs.Save(context.Background(), &subscription.Subscription{
		TenantID:               tenantID,
		Plan:                   plan.Starter,
		Status:                 subscription.StatusActive,
		UsageCount:             12,
		UsageLimit:             plan.Capped(30),
		CurrentPeriodStart:     time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:       time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
		ProviderCustomerID:     "cus_123",
		ProviderSubscriptionID: "sub_1",
		CreatedAt:              time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
	}))
	return tenantID
}

func TestSyncerHandleEvent(t *testing.T) {
	t.Parallel()
	ctx := context.Background()

	t.Run("provider plan and period win over local state", func(t *testing.T) {
		t.Parallel()
		subs := subscription.NewMemoryStore()
		tenantID := seedSyncedSub(t, subs)
		syncer := billing.NewSyncer(subs, testCatalog(t))

		newStart := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		newEnd := time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC)
		require.NoError(t, syncer.HandleEvent(ctx, &billing.Event{
			ID:         "evt_1",
			Type:       billing.EventSubscriptionUpdated,
			CustomerID: "cus_123",
			Subscription: &billing.ProviderSubscription{
				ID:          "sub_2",
				CustomerID:  "cus_123",
				Status:      "active",
				PriceID:     "price_pro",
				PeriodStart: newStart,
				PeriodEnd:   newEnd,
			},
		}))

		got, err := subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, plan.Pro, got.Plan)
		assert.Equal(t, plan.Capped(100), got.UsageLimit)
		assert.Equal(t, int64(0), got.UsageCount, "plan switch resets the counter")
		assert.Equal(t, newEnd, got.CurrentPeriodEnd)
		assert.Equal(t, "sub_2", got.ProviderSubscriptionID)
	})

	t.Run("unknown customer is dropped without error", func(t *testing.T) {
		t.Parallel()
		subs := subscription.NewMemoryStore()
		syncer := billing.NewSyncer(subs, testCatalog(t))

		require.NoError(t, syncer.HandleEvent(ctx, &billing.Event{
			ID:         "evt_2",
			Type:       billing.EventSubscriptionUpdated,
			CustomerID: "cus_ghost",
			Subscription: &billing.ProviderSubscription{
				ID: "sub_ghost", Status: "active", PriceID: "price_pro",
			},
		}))
	})

	t.Run("deletion cancels locally and clears pending changes", func(t *testing.T) {
		t.Parallel()
		subs := subscription.NewMemoryStore()
		tenantID := seedSyncedSub(t, subs)
		sub, err := subs.Get(ctx, tenantID)
		require.NoError(t, err)
		effective := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
		sub.PendingPlan = plan.Starter
		sub.PendingEffectiveAt = &effective
		require.NoError(t, subs.Save(ctx, sub))

		syncer := billing.NewSyncer(subs, testCatalog(t))
		require.NoError(t, syncer.HandleEvent(ctx, &billing.Event{
			ID:         "evt_3",
			Type:       billing.EventSubscriptionDeleted,
			CustomerID: "cus_123",
			Subscription: &billing.ProviderSubscription{
				ID: "sub_1", Status: "canceled",
			},
		}))

		got, err := subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCanceled, got.Status)
		assert.False(t, got.HasPendingChange())
	})

	t.Run("payment failure and recovery flip the status", func(t *testing.T) {
		t.Parallel()
		subs := subscription.NewMemoryStore()
		tenantID := seedSyncedSub(t, subs)
		syncer := billing.NewSyncer(subs, testCatalog(t))

		require.NoError(t, syncer.HandleEvent(ctx, &billing.Event{
			ID: "evt_4", Type: billing.EventPaymentFailed, CustomerID: "cus_123",
		}))
		got, err := subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusPastDue, got.Status)

		require.NoError(t, syncer.HandleEvent(ctx, &billing.Event{
			ID: "evt_5", Type: billing.EventPaymentSucceeded, CustomerID: "cus_123",
		}))
		got, err = subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, got.Status)
	})

	t.Run("trial end from the provider is persisted and later cleared", func(t *testing.T) {
		t.Parallel()
		subs := subscription.NewMemoryStore()
		tenantID := seedSyncedSub(t, subs)
		syncer := billing.NewSyncer(subs, testCatalog(t))

		trialEnd := time.Date(2025, 7, 15, 0, 0, 0, 0, time.UTC)
		require.NoError(t, syncer.HandleEvent(ctx, &billing.Event{
			ID:         "evt_7",
			Type:       billing.EventSubscriptionUpdated,
			CustomerID: "cus_123",
			Subscription: &billing.ProviderSubscription{
				ID:         "sub_1",
				CustomerID: "cus_123",
				Status:     "trialing",
				PriceID:    "price_starter",
				TrialEnd:   trialEnd,
			},
		}))

		got, err := subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusTrialing, got.Status)
		require.NotNil(t, got.TrialEndsAt, "trial expiry drives auto-suspend")
		assert.Equal(t, trialEnd, *got.TrialEndsAt)

		require.NoError(t, syncer.HandleEvent(ctx, &billing.Event{
			ID:         "evt_8",
			Type:       billing.EventSubscriptionUpdated,
			CustomerID: "cus_123",
			Subscription: &billing.ProviderSubscription{
				ID:         "sub_1",
				CustomerID: "cus_123",
				Status:     "active",
				PriceID:    "price_starter",
			},
		}))

		got, err = subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusActive, got.Status)
		assert.Nil(t, got.TrialEndsAt)
	})

	t.Run("replayed event does not reset the cycle twice", func(t *testing.T) {
		t.Parallel()
		subs := subscription.NewMemoryStore()
		tenantID := seedSyncedSub(t, subs)
		syncer := billing.NewSyncer(subs, testCatalog(t))

		ev := &billing.Event{
			ID:         "evt_6",
			Type:       billing.EventSubscriptionUpdated,
			CustomerID: "cus_123",
			Subscription: &billing.ProviderSubscription{
				ID:          "sub_1",
				CustomerID:  "cus_123",
				Status:      "active",
				PriceID:     "price_starter",
				PeriodStart: time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
				PeriodEnd:   time.Date(2025, 8, 1, 0, 0, 0, 0, time.UTC),
			},
		}
		require.NoError(t, syncer.HandleEvent(ctx, ev))
		first, err := subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(0), first.UsageCount)

		_, err = subs.IncrementUsage(ctx, tenantID)
		require.NoError(t, err)

		require.NoError(t, syncer.HandleEvent(ctx, ev))
		second, err := subs.Get(ctx, tenantID)
		require.NoError(t, err)
		assert.Equal(t, int64(1), second.UsageCount, "replay must not re-reset the counter")
	})
}

type stubParser struct {
	event *billing.Event
	err   error
}

func (p stubParser) ParseWebhook([]byte, string) (*billing.Event, error) {
	return p.event, p.err
}

type recordingSink struct {
	events []*billing.Event
	err    error
}

func (s *recordingSink) HandleEvent(_ context.Context, ev *billing.Event) error {
	s.events = append(s.events, ev)
	return s.err
}

type recordingNotifier struct {
	events []*billing.Event
}

func (n *recordingNotifier) NotifyEvent(_ context.Context, ev *billing.Event) {
	n.events = append(n.events, ev)
}

func TestWebhookHandler(t *testing.T) {
	t.Parallel()

	post := func(h http.Handler) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhooks/billing", strings.NewReader(`{}`))
		req.Header.Set("Stripe-Signature", "t=1,v1=sig")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	t.Run("bad signature never reaches the sink", func(t *testing.T) {
		t.Parallel()
		sink := &recordingSink{}
		h := billing.NewWebhookHandler(stubParser{err: billing.ErrInvalidSignature}, sink)

		rec := post(h)
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Empty(t, sink.events)
	})

	t.Run("verified event flows to sink and notifier", func(t *testing.T) {
		t.Parallel()
		sink := &recordingSink{}
		notifier := &recordingNotifier{}
		ev := &billing.Event{ID: "evt_1", Type: billing.EventPaymentFailed, CustomerID: "cus_123"}
		h := billing.NewWebhookHandler(stubParser{event: ev}, sink, billing.WithNotifier(notifier))

		rec := post(h)
		assert.Equal(t, http.StatusOK, rec.Code)
		require.Len(t, sink.events, 1)
		assert.Equal(t, "evt_1", sink.events[0].ID)
		require.Len(t, notifier.events, 1)
	})

	t.Run("unhandled event type is acknowledged and skipped", func(t *testing.T) {
		t.Parallel()
		sink := &recordingSink{}
		h := billing.NewWebhookHandler(stubParser{}, sink)

		rec := post(h)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, sink.events)
	})

	t.Run("sink failure returns 500 so the provider retries", func(t *testing.T) {
		t.Parallel()
		sink := &recordingSink{err: assert.AnError}
		ev := &billing.Event{ID: "evt_2", Type: billing.EventPaymentFailed}
		h := billing.NewWebhookHandler(stubParser{event: ev}, sink)

		rec := post(h)
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})
}
