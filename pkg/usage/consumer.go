package usage

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/socialecho/echokit/pkg/access"
	"github.com/socialecho/echokit/pkg/cycle"
	"github.com/socialecho/echokit/pkg/plan"
	"github.com/socialecho/echokit/pkg/subscription"
)

// Consumer gates and records billable generations. Every call runs the full
// pipeline: access check, cycle freshness, entitlement lookup, then the
// atomic ledger increment. There is no cached entitlement anywhere; a plan
// change is visible on the very next call.
type Consumer struct {
	gate      *access.Gate
	cycles    *cycle.Engine
	catalog   *plan.Catalog
	counters  CounterStore
	subs      subscription.Store
	artifacts ArtifactStore
	now       func() time.Time
	log       *slog.Logger
}

// ConsumerOption configures optional Consumer behavior.
type ConsumerOption func(*Consumer)

// WithConsumerClock overrides the time source, for tests.
func WithConsumerClock(now func() time.Time) ConsumerOption {
	return func(c *Consumer) { c.now = now }
}

// WithConsumerLogger sets the logger.
func WithConsumerLogger(log *slog.Logger) ConsumerOption {
	return func(c *Consumer) { c.log = log }
}

// NewConsumer creates a Consumer. All dependencies are required; panics on
// nil.
func NewConsumer(
	gate *access.Gate,
	cycles *cycle.Engine,
	catalog *plan.Catalog,
	counters CounterStore,
	subs subscription.Store,
	artifacts ArtifactStore,
	opts ...ConsumerOption,
) *Consumer {
	if gate == nil {
		panic("usage: access gate is required")
	}
	if cycles == nil {
		panic("usage: cycle engine is required")
	}
	if catalog == nil {
		panic("usage: plan catalog is required")
	}
	if counters == nil {
		panic("usage: counter store is required")
	}
	if subs == nil {
		panic("usage: subscription store is required")
	}
	if artifacts == nil {
		panic("usage: artifact store is required")
	}
	c := &Consumer{
		gate:      gate,
		cycles:    cycles,
		catalog:   catalog,
		counters:  counters,
		subs:      subs,
		artifacts: artifacts,
		now:       time.Now,
		log:       slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TryConsume attempts to consume one generation slot for the tenant. On
// success the ledger and the subscription's fast counter both advance by one.
// On denial neither moves and the result carries the reason.
func (c *Consumer) TryConsume(ctx context.Context, tenantID uuid.UUID) (*ConsumeResult, error) {
	dec, err := c.gate.CheckAccess(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToConsume, err)
	}
	if !dec.Allowed {
		return &ConsumeResult{
			Denial:       DenialAccess,
			AccessReason: dec.Reason,
			Message:      dec.Message,
		}, nil
	}

	sub, err := c.cycles.EnsureFresh(ctx, dec.Subscription)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToConsume, err)
	}

	ent, err := c.catalog.Entitlements(sub.Plan)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToConsume, err)
	}

	key := CycleKey{TenantID: tenantID, CycleStart: sub.CurrentPeriodStart, CycleEnd: sub.CurrentPeriodEnd}

	if ent.Posts.IsUnlimited() {
		count, err := c.counters.Increment(ctx, key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToConsume, err)
		}
		if _, err := c.subs.IncrementUsage(ctx, tenantID); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrFailedToConsume, err)
		}
		return &ConsumeResult{
			Allowed:   true,
			Used:      count,
			Limit:     ent.Posts,
			Remaining: -1,
			CycleEnd:  sub.CurrentPeriodEnd,
		}, nil
	}

	count, ok, err := c.counters.IncrementUnder(ctx, key, ent.Posts.Value())
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToConsume, err)
	}
	if !ok {
		c.log.InfoContext(ctx, "usage limit reached",
			slog.String("tenant_id", tenantID.String()),
			slog.Int64("used", count),
			slog.Int64("limit", ent.Posts.Value()))
		return &ConsumeResult{
			Denial:    DenialUsageLimit,
			Message:   fmt.Sprintf("You have used all %d posts for this billing cycle.", ent.Posts.Value()),
			Used:      count,
			Limit:     ent.Posts,
			Remaining: 0,
			CycleEnd:  sub.CurrentPeriodEnd,
		}, nil
	}
	if _, err := c.subs.IncrementUsage(ctx, tenantID); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFailedToConsume, err)
	}
	return &ConsumeResult{
		Allowed:   true,
		Used:      count,
		Limit:     ent.Posts,
		Remaining: ent.Posts.Value() - count,
		CycleEnd:  sub.CurrentPeriodEnd,
	}, nil
}

// RegisterArtifact records a newly generated artifact for the tenant so that
// later customisations can be quota-tracked against it.
func (c *Consumer) RegisterArtifact(ctx context.Context, tenantID, artifactID uuid.UUID) (*Artifact, error) {
	a := &Artifact{
		ID:        artifactID,
		TenantID:  tenantID,
		CreatedAt: c.now().UTC(),
	}
	if err := c.artifacts.Create(ctx, a); err != nil {
		return nil, err
	}
	return a, nil
}

// MarkFirstGenerated stamps the artifact's first-generation time. The second
// and later calls are no-ops and report false; the original stamp never
// moves. Artifacts belonging to other tenants are reported as not found.
func (c *Consumer) MarkFirstGenerated(ctx context.Context, tenantID, artifactID uuid.UUID) (bool, error) {
	a, err := c.artifacts.Get(ctx, artifactID)
	if err != nil {
		return false, err
	}
	if a.TenantID != tenantID {
		return false, ErrArtifactNotFound
	}
	return c.artifacts.MarkFirstGenerated(ctx, artifactID, c.now().UTC())
}

// Snapshot returns the tenant's current usage standing without consuming
// anything. The access gate still applies; a denied tenant gets the denial,
// not a snapshot.
func (c *Consumer) Snapshot(ctx context.Context, tenantID uuid.UUID) (*Snapshot, *access.Decision, error) {
	dec, err := c.gate.CheckAccess(ctx, tenantID)
	if err != nil {
		return nil, nil, err
	}
	if !dec.Allowed {
		return nil, dec, nil
	}
	sub, err := c.cycles.EnsureFresh(ctx, dec.Subscription)
	if err != nil {
		return nil, nil, err
	}
	ent, err := c.catalog.Entitlements(sub.Plan)
	if err != nil {
		return nil, nil, err
	}
	key := CycleKey{TenantID: tenantID, CycleStart: sub.CurrentPeriodStart, CycleEnd: sub.CurrentPeriodEnd}
	count, err := c.counters.Count(ctx, key)
	if err != nil {
		return nil, nil, err
	}
	return &Snapshot{
		Plan:       sub.Plan,
		Used:       count,
		Limit:      ent.Posts,
		Remaining:  ent.Posts.Remaining(count),
		CycleStart: sub.CurrentPeriodStart,
		CycleEnd:   sub.CurrentPeriodEnd,
	}, dec, nil
}
