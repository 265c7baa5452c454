package billing

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/socialecho/echokit/pkg/audit"
	"github.com/socialecho/echokit/pkg/plan"
	"github.com/socialecho/echokit/pkg/subscription"
)

// Manager executes plan transitions. Upgrades are immediate, downgrades are
// scheduled for the period boundary. Every method talks to the provider
// first and persists locally only after the provider accepted the change.
type Manager struct {
	subs     subscription.Store
	provider Provider
	catalog  *plan.Catalog
	audit    audit.Logger
	now      func() time.Time
	log      *slog.Logger
}

// ManagerOption configures optional Manager behavior.
type ManagerOption func(*Manager)

// WithAudit sets the audit trail for plan transitions.
func WithAudit(a audit.Logger) ManagerOption {
	return func(m *Manager) { m.audit = a }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a Manager. Store, provider and catalog are required;
// panics on nil.
func NewManager(subs subscription.Store, provider Provider, catalog *plan.Catalog, opts ...ManagerOption) *Manager {
	if subs == nil {
		panic("billing: subscription store is required")
	}
	if provider == nil {
		panic("billing: provider is required")
	}
	if catalog == nil {
		panic("billing: plan catalog is required")
	}
	m := &Manager{
		subs:     subs,
		provider: provider,
		catalog:  catalog,
		audit:    audit.Nop(),
		now:      time.Now,
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// EnsureCustomer makes sure the tenant has a billing provider customer and
// returns its identifier. An existing customer is returned as-is; otherwise
// one is created at the provider and persisted before any charge can
// reference it.
func (m *Manager) EnsureCustomer(ctx context.Context, tenantID uuid.UUID, email string) (string, error) {
	sub, err := m.subs.Get(ctx, tenantID)
	if err != nil {
		return "", err
	}
	if sub.ProviderCustomerID != "" {
		return sub.ProviderCustomerID, nil
	}

	customerID, err := m.provider.CreateCustomer(ctx, tenantID.String(), email)
	if err != nil {
		return "", err
	}
	sub.ProviderCustomerID = customerID
	if err := m.subs.Save(ctx, sub); err != nil {
		return "", err
	}

	m.log.InfoContext(ctx, "provider customer created",
		slog.String("tenant_id", tenantID.String()),
		slog.String("customer_id", customerID))
	return customerID, nil
}

// Upgrade moves the tenant to a strictly higher tier, effective immediately.
// The old provider subscription is cancelled without proration and a new one
// is created at the target price under an idempotency key, so a retried call
// cannot double-bill. The new allowance starts fresh: the usage counter is
// reset and the billing period comes from the new provider subscription.
//
// If the provider accepts the cancel but rejects the create, the error wraps
// ErrUpgradeIncomplete and the local record is left untouched so the
// follow-up is visible.
func (m *Manager) Upgrade(ctx context.Context, tenantID uuid.UUID, target plan.ID) (*subscription.Subscription, error) {
	sub, err := m.subs.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if target.Tier() <= sub.Plan.Tier() {
		return nil, fmt.Errorf("%w: %s to %s", ErrNotAnUpgrade, sub.Plan, target)
	}
	priceID, err := m.catalog.PriceID(target)
	if err != nil {
		return nil, err
	}
	ent, err := m.catalog.Entitlements(target)
	if err != nil {
		return nil, err
	}
	if sub.ProviderSubscriptionID == "" || sub.ProviderCustomerID == "" {
		return nil, ErrNoProviderSubscription
	}

	// A pending downgrade schedule would fight the new subscription; release
	// it before touching anything else.
	if sub.ProviderScheduleID != "" {
		if err := m.releaseIfReleasable(ctx, sub.ProviderScheduleID); err != nil {
			return nil, err
		}
	}

	if err := m.provider.CancelSubscription(ctx, sub.ProviderSubscriptionID); err != nil {
		return nil, err
	}

	// A fresh key per attempt: the provider replays the stored outcome for a
	// reused key, which would pin a declined charge onto every later retry.
	idempotencyKey := uuid.NewString()
	created, err := m.provider.CreateSubscription(ctx, sub.ProviderCustomerID, priceID, idempotencyKey)
	if err != nil {
		m.log.ErrorContext(ctx, "upgrade stranded after cancel",
			slog.String("tenant_id", tenantID.String()),
			slog.String("cancelled_subscription", sub.ProviderSubscriptionID),
			slog.Any("error", err))
		if auditErr := m.audit.LogError(ctx, "billing.upgrade", err,
			audit.WithTenant(tenantID.String()),
			audit.WithResource("subscription", sub.ProviderSubscriptionID),
			audit.WithMetadata("target_plan", string(target)),
		); auditErr != nil {
			m.log.ErrorContext(ctx, "audit write failed", slog.Any("error", auditErr))
		}
		return nil, fmt.Errorf("%w: %w", ErrUpgradeIncomplete, err)
	}

	previous := sub.Plan
	sub.Plan = target
	sub.Status = subscription.StatusActive
	sub.UsageCount = 0
	sub.UsageLimit = ent.Posts
	sub.CurrentPeriodStart = created.PeriodStart
	sub.CurrentPeriodEnd = created.PeriodEnd
	sub.ProviderSubscriptionID = created.ID
	sub.ProviderScheduleID = ""
	sub.PendingPlan = ""
	sub.PendingEffectiveAt = nil
	if err := m.subs.Save(ctx, sub); err != nil {
		return nil, err
	}

	if err := m.audit.Log(ctx, "billing.upgrade",
		audit.WithTenant(tenantID.String()),
		audit.WithResource("subscription", created.ID),
		audit.WithMetadata("from_plan", string(previous)),
		audit.WithMetadata("to_plan", string(target)),
	); err != nil {
		m.log.ErrorContext(ctx, "audit write failed", slog.Any("error", err))
	}
	m.log.InfoContext(ctx, "plan upgraded",
		slog.String("tenant_id", tenantID.String()),
		slog.String("from", string(previous)),
		slog.String("to", string(target)))
	return sub, nil
}

// ScheduleDowngrade defers a move to a strictly lower paid tier until the
// current period ends. The tenant keeps their current entitlements and usage
// counter until then; only the pending marker changes locally, and only
// after the provider accepted the schedule.
func (m *Manager) ScheduleDowngrade(ctx context.Context, tenantID uuid.UUID, target plan.ID) (*subscription.Subscription, error) {
	sub, err := m.subs.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if target.Tier() >= sub.Plan.Tier() {
		return nil, fmt.Errorf("%w: %s to %s", ErrNotADowngrade, sub.Plan, target)
	}
	targetPrice, err := m.catalog.PriceID(target)
	if err != nil {
		return nil, err
	}
	if sub.ProviderSubscriptionID == "" {
		return nil, ErrNoProviderSubscription
	}
	// Reject obviously stale records before spending a provider round trip.
	// The live period below remains authoritative.
	if sub.CurrentPeriodEnd.IsZero() {
		return nil, fmt.Errorf("%w: no current period on record", ErrInvalidPeriodEnd)
	}

	live, err := m.provider.GetSubscription(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		return nil, err
	}
	if !live.PeriodEnd.After(m.now()) {
		return nil, fmt.Errorf("%w: period ends at %s", ErrInvalidPeriodEnd, live.PeriodEnd)
	}

	// The subscription can carry at most one schedule; replace any existing
	// one instead of stacking.
	existing := live.ScheduleID
	if existing == "" {
		existing = sub.ProviderScheduleID
	}
	if existing != "" {
		if err := m.releaseIfReleasable(ctx, existing); err != nil {
			return nil, err
		}
	}

	sched, err := m.provider.CreateSchedule(ctx, live.ID)
	if err != nil {
		return nil, err
	}
	if _, err := m.provider.SetSchedulePhases(ctx, sched.ID, []PhaseParams{
		{PriceID: live.PriceID, Start: live.PeriodStart, End: live.PeriodEnd},
		{PriceID: targetPrice, Start: live.PeriodEnd, Iterations: 1},
	}); err != nil {
		// Leave the bare schedule released so it cannot pin the current
		// phases forever.
		if relErr := m.provider.ReleaseSchedule(ctx, sched.ID); relErr != nil {
			m.log.ErrorContext(ctx, "failed to release abandoned schedule",
				slog.String("schedule_id", sched.ID), slog.Any("error", relErr))
		}
		return nil, err
	}

	effective := live.PeriodEnd
	sub.PendingPlan = target
	sub.PendingEffectiveAt = &effective
	sub.ProviderScheduleID = sched.ID
	if err := m.subs.Save(ctx, sub); err != nil {
		return nil, err
	}

	if err := m.audit.Log(ctx, "billing.downgrade_scheduled",
		audit.WithTenant(tenantID.String()),
		audit.WithResource("subscription_schedule", sched.ID),
		audit.WithMetadata("from_plan", string(sub.Plan)),
		audit.WithMetadata("to_plan", string(target)),
		audit.WithMetadata("effective_at", effective),
	); err != nil {
		m.log.ErrorContext(ctx, "audit write failed", slog.Any("error", err))
	}
	m.log.InfoContext(ctx, "downgrade scheduled",
		slog.String("tenant_id", tenantID.String()),
		slog.String("to", string(target)),
		slog.Time("effective_at", effective))
	return sub, nil
}

// CancelDowngrade releases the pending schedule and keeps the tenant on
// their current plan.
func (m *Manager) CancelDowngrade(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := m.subs.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !sub.HasPendingChange() {
		return nil, ErrNoPendingChange
	}
	if sub.ProviderScheduleID != "" {
		if err := m.releaseIfReleasable(ctx, sub.ProviderScheduleID); err != nil {
			return nil, err
		}
	}

	cancelled := sub.PendingPlan
	sub.PendingPlan = ""
	sub.PendingEffectiveAt = nil
	sub.ProviderScheduleID = ""
	if err := m.subs.Save(ctx, sub); err != nil {
		return nil, err
	}

	if err := m.audit.Log(ctx, "billing.downgrade_cancelled",
		audit.WithTenant(tenantID.String()),
		audit.WithMetadata("cancelled_target", string(cancelled)),
	); err != nil {
		m.log.ErrorContext(ctx, "audit write failed", slog.Any("error", err))
	}
	return sub, nil
}

// ReconcilePendingPlan resynchronizes the pending-downgrade marker with the
// provider. When nothing is pending locally it checks the live subscription
// for a schedule this record does not know about, so a timed-out
// ScheduleDowngrade whose external calls actually went through is recovered
// on the next read. When a pending change exists and its boundary has
// passed, the provider's live price is applied. Safe to call at any time.
func (m *Manager) ReconcilePendingPlan(ctx context.Context, tenantID uuid.UUID) (*subscription.Subscription, error) {
	sub, err := m.subs.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	if !sub.HasPendingChange() {
		return m.rebuildPendingFromProvider(ctx, sub)
	}
	if sub.PendingEffectiveAt != nil && m.now().Before(*sub.PendingEffectiveAt) {
		return sub, nil
	}
	if sub.ProviderSubscriptionID == "" {
		return nil, ErrNoProviderSubscription
	}

	live, err := m.provider.GetSubscription(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		return nil, err
	}
	livePlan, err := m.catalog.ByPriceID(live.PriceID)
	if err != nil {
		return nil, err
	}
	if livePlan != sub.PendingPlan {
		// Provider has not switched phases yet; try again later.
		m.log.InfoContext(ctx, "pending plan not yet live at provider",
			slog.String("tenant_id", tenantID.String()),
			slog.String("pending", string(sub.PendingPlan)),
			slog.String("live", string(livePlan)))
		return sub, nil
	}

	ent, err := m.catalog.Entitlements(livePlan)
	if err != nil {
		return nil, err
	}
	previous := sub.Plan
	sub.Plan = livePlan
	sub.UsageCount = 0
	sub.UsageLimit = ent.Posts
	sub.CurrentPeriodStart = live.PeriodStart
	sub.CurrentPeriodEnd = live.PeriodEnd
	sub.PendingPlan = ""
	sub.PendingEffectiveAt = nil
	sub.ProviderScheduleID = ""
	if err := m.subs.Save(ctx, sub); err != nil {
		return nil, err
	}

	if err := m.audit.Log(ctx, "billing.downgrade_applied",
		audit.WithTenant(tenantID.String()),
		audit.WithResource("subscription", live.ID),
		audit.WithMetadata("from_plan", string(previous)),
		audit.WithMetadata("to_plan", string(livePlan)),
	); err != nil {
		m.log.ErrorContext(ctx, "audit write failed", slog.Any("error", err))
	}
	return sub, nil
}

// rebuildPendingFromProvider re-derives the pending-downgrade marker from
// the provider when the local record has none. It looks for a live schedule
// on the subscription whose later phase switches to a lower-tier price and,
// if found, persists it as the pending change.
func (m *Manager) rebuildPendingFromProvider(ctx context.Context, sub *subscription.Subscription) (*subscription.Subscription, error) {
	if sub.ProviderSubscriptionID == "" {
		return sub, nil
	}
	live, err := m.provider.GetSubscription(ctx, sub.ProviderSubscriptionID)
	if err != nil {
		return nil, err
	}
	scheduleID := live.ScheduleID
	if scheduleID == "" {
		scheduleID = sub.ProviderScheduleID
	}
	if scheduleID == "" {
		return sub, nil
	}
	sched, err := m.provider.GetSchedule(ctx, scheduleID)
	if err != nil {
		return nil, err
	}
	if !sched.Status.Releasable() {
		// Completed, released or canceled schedules carry no future change.
		return sub, nil
	}
	for _, phase := range sched.Phases {
		target, err := m.catalog.ByPriceID(phase.PriceID)
		if err != nil || phase.Start.IsZero() {
			continue
		}
		if target.Tier() >= sub.Plan.Tier() {
			continue
		}
		effectiveAt := phase.Start
		sub.PendingPlan = target
		sub.PendingEffectiveAt = &effectiveAt
		sub.ProviderScheduleID = sched.ID
		if err := m.subs.Save(ctx, sub); err != nil {
			return nil, err
		}
		m.log.InfoContext(ctx, "pending downgrade rebuilt from provider schedule",
			slog.String("tenant_id", sub.TenantID.String()),
			slog.String("schedule_id", sched.ID),
			slog.String("pending", string(target)))
		return sub, nil
	}
	return sub, nil
}

func (m *Manager) releaseIfReleasable(ctx context.Context, scheduleID string) error {
	sched, err := m.provider.GetSchedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	if !sched.Status.Releasable() {
		return nil
	}
	return m.provider.ReleaseSchedule(ctx, scheduleID)
}
