package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/socialecho/echokit/pkg/plan"
)

// pgStore persists subscriptions in Postgres via pgx.
type pgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore returns a Postgres-backed subscription store.
func NewPgStore(pool *pgxpool.Pool) Store {
	if pool == nil {
		panic("subscription: pgx pool is required")
	}
	return &pgStore{pool: pool}
}

const subscriptionColumns = `tenant_id, plan, status, usage_count, usage_limit, usage_unlimited,
	current_period_start, current_period_end, trial_ends_at,
	pending_plan, pending_effective_at,
	provider_customer_id, provider_subscription_id, provider_schedule_id,
	created_at, updated_at`

func scanSubscription(row pgx.Row) (*Subscription, error) {
	var (
		sub            Subscription
		planID         string
		status         string
		limitValue     int64
		limitUnlimited bool
		periodStart    *time.Time
		periodEnd      *time.Time
		pendingPlan    *string
		customerID     *string
		subID          *string
		scheduleID     *string
	)

	err := row.Scan(
		&sub.TenantID, &planID, &status, &sub.UsageCount, &limitValue, &limitUnlimited,
		&periodStart, &periodEnd, &sub.TrialEndsAt,
		&pendingPlan, &sub.PendingEffectiveAt,
		&customerID, &subID, &scheduleID,
		&sub.CreatedAt, &sub.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan subscription: %w", err)
	}

	sub.Plan = plan.ID(planID)
	sub.Status = Status(status)
	if limitUnlimited {
		sub.UsageLimit = plan.Unlimited()
	} else {
		sub.UsageLimit = plan.Capped(limitValue)
	}
	if periodStart != nil {
		sub.CurrentPeriodStart = *periodStart
	}
	if periodEnd != nil {
		sub.CurrentPeriodEnd = *periodEnd
	}
	if pendingPlan != nil {
		sub.PendingPlan = plan.ID(*pendingPlan)
	}
	if customerID != nil {
		sub.ProviderCustomerID = *customerID
	}
	if subID != nil {
		sub.ProviderSubscriptionID = *subID
	}
	if scheduleID != nil {
		sub.ProviderScheduleID = *scheduleID
	}
	return &sub, nil
}

func (s *pgStore) Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE tenant_id = $1`,
		tenantID)
	return scanSubscription(row)
}

func (s *pgStore) GetByProviderCustomerID(ctx context.Context, customerID string) (*Subscription, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+subscriptionColumns+` FROM subscriptions WHERE provider_customer_id = $1`,
		customerID)
	return scanSubscription(row)
}

func (s *pgStore) Save(ctx context.Context, sub *Subscription) error {
	if !sub.CurrentPeriodStart.IsZero() && !sub.CurrentPeriodEnd.IsZero() &&
		!sub.CurrentPeriodStart.Before(sub.CurrentPeriodEnd) {
		return ErrInvalidPeriod
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO subscriptions (
			tenant_id, plan, status, usage_count, usage_limit, usage_unlimited,
			current_period_start, current_period_end, trial_ends_at,
			pending_plan, pending_effective_at,
			provider_customer_id, provider_subscription_id, provider_schedule_id,
			created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, now(), now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			plan = EXCLUDED.plan,
			status = EXCLUDED.status,
			usage_count = EXCLUDED.usage_count,
			usage_limit = EXCLUDED.usage_limit,
			usage_unlimited = EXCLUDED.usage_unlimited,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			trial_ends_at = EXCLUDED.trial_ends_at,
			pending_plan = EXCLUDED.pending_plan,
			pending_effective_at = EXCLUDED.pending_effective_at,
			provider_customer_id = EXCLUDED.provider_customer_id,
			provider_subscription_id = EXCLUDED.provider_subscription_id,
			provider_schedule_id = EXCLUDED.provider_schedule_id,
			updated_at = now()`,
		sub.TenantID, string(sub.Plan), string(sub.Status),
		sub.UsageCount, sub.UsageLimit.Value(), sub.UsageLimit.IsUnlimited(),
		nullTime(sub.CurrentPeriodStart), nullTime(sub.CurrentPeriodEnd), sub.TrialEndsAt,
		nullString(string(sub.PendingPlan)), sub.PendingEffectiveAt,
		nullString(sub.ProviderCustomerID), nullString(sub.ProviderSubscriptionID), nullString(sub.ProviderScheduleID),
	)
	if err != nil {
		return fmt.Errorf("save subscription: %w", err)
	}
	return nil
}

func (s *pgStore) SetStatus(ctx context.Context, tenantID uuid.UUID, status Status) error {
	tag, err := s.pool.Exec(ctx, `
		UPDATE subscriptions
		SET status = $2, updated_at = now()
		WHERE tenant_id = $1`,
		tenantID, string(status))
	if err != nil {
		return fmt.Errorf("set subscription status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *pgStore) ResetCycle(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (*Subscription, error) {
	if !start.Before(end) {
		return nil, ErrInvalidPeriod
	}

	// The WHERE guard makes concurrent rollovers idempotent: whichever
	// caller commits first advances the period, the rest read it back.
	_, err := s.pool.Exec(ctx, `
		UPDATE subscriptions
		SET current_period_start = $2, current_period_end = $3, usage_count = 0, updated_at = now()
		WHERE tenant_id = $1
		  AND (current_period_end IS NULL OR current_period_end < $3)`,
		tenantID, start, end)
	if err != nil {
		return nil, fmt.Errorf("reset subscription cycle: %w", err)
	}
	return s.Get(ctx, tenantID)
}

func (s *pgStore) IncrementUsage(ctx context.Context, tenantID uuid.UUID) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, `
		UPDATE subscriptions
		SET usage_count = usage_count + 1, updated_at = now()
		WHERE tenant_id = $1
		RETURNING usage_count`,
		tenantID).Scan(&count)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("increment subscription usage: %w", err)
	}
	return count, nil
}

func (s *pgStore) ListDue(ctx context.Context, now time.Time, limit int) ([]*Subscription, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT `+subscriptionColumns+`
		FROM subscriptions
		WHERE status <> $1
		  AND (current_period_end IS NULL OR current_period_end <= $2)
		ORDER BY current_period_end NULLS FIRST
		LIMIT $3`,
		string(StatusFreeTrial), now, limit)
	if err != nil {
		return nil, fmt.Errorf("list due subscriptions: %w", err)
	}
	defer rows.Close()

	var due []*Subscription
	for rows.Next() {
		sub, err := scanSubscription(rows)
		if err != nil {
			return nil, err
		}
		due = append(due, sub)
	}
	return due, rows.Err()
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}

func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
