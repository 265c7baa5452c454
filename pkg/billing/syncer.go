package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/socialecho/echokit/pkg/plan"
	"github.com/socialecho/echokit/pkg/subscription"
)

// Syncer applies verified provider events to the local subscription record.
// The provider is authoritative: whatever plan, status and period it reports
// wins over local state. Events for customers with no local record are
// logged and dropped, never guessed at.
type Syncer struct {
	subs    subscription.Store
	catalog *plan.Catalog
	log     *slog.Logger
}

// SyncerOption configures optional Syncer behavior.
type SyncerOption func(*Syncer)

// WithSyncerLogger sets the logger.
func WithSyncerLogger(log *slog.Logger) SyncerOption {
	return func(s *Syncer) { s.log = log }
}

// NewSyncer creates a Syncer. Store and catalog are required; panics on nil.
func NewSyncer(subs subscription.Store, catalog *plan.Catalog, opts ...SyncerOption) *Syncer {
	if subs == nil {
		panic("billing: subscription store is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	s := &Syncer{subs: subs, catalog: catalog, log: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleEvent applies one provider event. Unknown customers and unknown
// prices are skipped without error so a bad event cannot wedge the webhook
// queue.
func (s *Syncer) HandleEvent(ctx context.Context, ev *Event) error {
	if ev == nil {
		return nil
	}
	sub, err := s.subs.GetByProviderCustomerID(ctx, ev.CustomerID)
	if errors.Is(err, subscription.ErrNotFound) {
		s.log.WarnContext(ctx, "provider event for unknown customer",
			slog.String("event_id", ev.ID),
			slog.String("customer_id", ev.CustomerID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("sync event %s: %w", ev.ID, err)
	}

	switch ev.Type {
	case EventSubscriptionCreated, EventSubscriptionUpdated:
		return s.applySubscriptionState(ctx, sub, ev)
	case EventSubscriptionDeleted:
		sub.Status = subscription.StatusCanceled
		sub.PendingPlan = ""
		sub.PendingEffectiveAt = nil
		sub.ProviderScheduleID = ""
		if err := s.subs.Save(ctx, sub); err != nil {
			return fmt.Errorf("sync event %s: %w", ev.ID, err)
		}
		s.log.InfoContext(ctx, "subscription cancelled by provider",
			slog.String("tenant_id", sub.TenantID.String()))
		return nil
	case EventPaymentFailed:
		if err := s.subs.SetStatus(ctx, sub.TenantID, subscription.StatusPastDue); err != nil {
			return fmt.Errorf("sync event %s: %w", ev.ID, err)
		}
		s.log.WarnContext(ctx, "payment failed",
			slog.String("tenant_id", sub.TenantID.String()))
		return nil
	case EventPaymentSucceeded:
		if sub.Status == subscription.StatusPastDue || sub.Status == subscription.StatusPendingPayment {
			if err := s.subs.SetStatus(ctx, sub.TenantID, subscription.StatusActive); err != nil {
				return fmt.Errorf("sync event %s: %w", ev.ID, err)
			}
		}
		return nil
	}
	return nil
}

func (s *Syncer) applySubscriptionState(ctx context.Context, sub *subscription.Subscription, ev *Event) error {
	state := ev.Subscription
	if state == nil {
		return nil
	}

	if state.PriceID != "" {
		livePlan, err := s.catalog.ByPriceID(state.PriceID)
		if err != nil {
			s.log.WarnContext(ctx, "provider reports unknown price",
				slog.String("event_id", ev.ID),
				slog.String("price_id", state.PriceID))
		} else if livePlan != sub.Plan {
			ent, err := s.catalog.Entitlements(livePlan)
			if err != nil {
				return fmt.Errorf("sync event %s: %w", ev.ID, err)
			}
			sub.Plan = livePlan
			sub.UsageLimit = ent.Posts
			sub.UsageCount = 0
			if sub.PendingPlan == livePlan {
				sub.PendingPlan = ""
				sub.PendingEffectiveAt = nil
				sub.ProviderScheduleID = ""
			}
		}
	}

	sub.Status = statusFromProvider(state.Status)
	sub.ProviderSubscriptionID = state.ID
	if state.ScheduleID != "" {
		sub.ProviderScheduleID = state.ScheduleID
	}
	// Trial expiry drives the access gate's auto-suspend, so the provider's
	// value wins either way.
	if state.TrialEnd.IsZero() {
		sub.TrialEndsAt = nil
	} else {
		trialEnd := state.TrialEnd
		sub.TrialEndsAt = &trialEnd
	}

	// A forward-moving period end means a new cycle: the counter reset rides
	// on the conditional store update so replayed events cannot reset twice.
	newPeriod := !state.PeriodEnd.IsZero() && state.PeriodEnd.After(sub.CurrentPeriodEnd)

	if err := s.subs.Save(ctx, sub); err != nil {
		return fmt.Errorf("sync event %s: %w", ev.ID, err)
	}
	if newPeriod {
		if _, err := s.subs.ResetCycle(ctx, sub.TenantID, state.PeriodStart, state.PeriodEnd); err != nil {
			return fmt.Errorf("sync event %s: %w", ev.ID, err)
		}
	}
	s.log.InfoContext(ctx, "subscription synced from provider",
		slog.String("tenant_id", sub.TenantID.String()),
		slog.String("plan", string(sub.Plan)),
		slog.String("status", string(sub.Status)))
	return nil
}

func statusFromProvider(status string) subscription.Status {
	switch status {
	case "active":
		return subscription.StatusActive
	case "trialing":
		return subscription.StatusTrialing
	case "past_due":
		return subscription.StatusPastDue
	case "canceled", "incomplete_expired":
		return subscription.StatusCanceled
	case "unpaid", "paused":
		return subscription.StatusSuspended
	case "incomplete":
		return subscription.StatusPendingPayment
	}
	return subscription.StatusSuspended
}
