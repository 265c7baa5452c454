package cycle

import (
	"context"
	"log/slog"
	"time"

	"github.com/socialecho/echokit/pkg/subscription"
)

// Engine performs lazy billing-cycle resets.
type Engine struct {
	subs subscription.Store
	now  func() time.Time
	log  *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithLogger sets the logger for rollover events.
func WithLogger(log *slog.Logger) Option {
	return func(e *Engine) { e.log = log }
}

// New creates a cycle engine over the given subscription store.
func New(subs subscription.Store, opts ...Option) *Engine {
	if subs == nil {
		panic("cycle: subscription store is required")
	}

	e := &Engine{
		subs: subs,
		now:  func() time.Time { return time.Now().UTC() },
		log:  slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// EnsureFresh makes sure the subscription's billing period covers now,
// resetting the usage counter when it rolls the period forward. It returns
// the record the caller should use afterwards.
//
// Free-trial subscriptions are never reset: their quota is lifetime, not
// periodic. For everyone else, an uninitialized period is anchored at the
// subscription's creation time and advanced by whole months until it covers
// now; an expired period is advanced by exactly one month per call, so a
// tenant inactive for several months converges over successive calls (or
// via the sweep) rather than skipping cycles in one jump.
//
// Safe to invoke concurrently for the same tenant: the store's rollover is
// conditional, and a second caller simply reads back the advanced period.
func (e *Engine) EnsureFresh(ctx context.Context, sub *subscription.Subscription) (*subscription.Subscription, error) {
	if sub.Status == subscription.StatusFreeTrial {
		return sub, nil
	}

	now := e.now()

	if !sub.HasPeriod() {
		start, end := initialPeriod(sub.CreatedAt, now)
		fresh, err := e.subs.ResetCycle(ctx, sub.TenantID, start, end)
		if err != nil {
			return nil, err
		}
		e.log.InfoContext(ctx, "billing period initialized",
			slog.String("tenant_id", sub.TenantID.String()),
			slog.Time("period_start", fresh.CurrentPeriodStart),
			slog.Time("period_end", fresh.CurrentPeriodEnd))
		return fresh, nil
	}

	if !sub.PeriodExpiredAt(now) {
		return sub, nil
	}

	start := sub.CurrentPeriodEnd
	end := start.AddDate(0, 1, 0)
	fresh, err := e.subs.ResetCycle(ctx, sub.TenantID, start, end)
	if err != nil {
		return nil, err
	}
	e.log.InfoContext(ctx, "billing period rolled forward",
		slog.String("tenant_id", sub.TenantID.String()),
		slog.Time("period_start", fresh.CurrentPeriodStart),
		slog.Time("period_end", fresh.CurrentPeriodEnd),
		slog.Int64("previous_usage", sub.UsageCount))
	return fresh, nil
}

// initialPeriod anchors period boundaries at the subscription's creation
// time and rolls forward by whole months so the first observed period never
// starts entirely in the past. Falls back to now as the anchor for legacy
// rows without a creation timestamp.
func initialPeriod(createdAt, now time.Time) (time.Time, time.Time) {
	anchor := createdAt
	if anchor.IsZero() {
		anchor = now
	}

	start := anchor
	end := start.AddDate(0, 1, 0)
	for !now.Before(end) {
		start = end
		end = start.AddDate(0, 1, 0)
	}
	return start, end
}
