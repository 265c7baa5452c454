package subscription

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store defines subscription persistence. Implementations must make
// SetStatus, ResetCycle, and IncrementUsage atomic with respect to
// concurrent calls for the same tenant.
type Store interface {
	// Get retrieves a subscription by tenant ID.
	// Returns ErrNotFound if no subscription exists.
	Get(ctx context.Context, tenantID uuid.UUID) (*Subscription, error)

	// GetByProviderCustomerID resolves a subscription from the billing
	// provider's customer identifier. This is the only join key for
	// inbound provider events; email is never used for billing identity.
	GetByProviderCustomerID(ctx context.Context, customerID string) (*Subscription, error)

	// Save creates or updates the full record keyed by TenantID.
	Save(ctx context.Context, sub *Subscription) error

	// SetStatus transitions the lifecycle status. Writing the current
	// status again is a no-op, which makes the access gate's auto-suspend
	// safe to re-run.
	SetStatus(ctx context.Context, tenantID uuid.UUID, status Status) error

	// ResetCycle installs new period boundaries and zeroes the fast
	// counter, but only if the stored period end still precedes the new
	// one. A concurrent caller that already rolled the cycle forward makes
	// this a no-op. The fresh record is returned either way.
	ResetCycle(ctx context.Context, tenantID uuid.UUID, start, end time.Time) (*Subscription, error)

	// IncrementUsage bumps the denormalized fast counter and returns the
	// new value.
	IncrementUsage(ctx context.Context, tenantID uuid.UUID) (int64, error)

	// ListDue returns up to limit subscriptions whose period end is unset
	// or has passed, excluding free-trial rows. Used only by the
	// background sweep.
	ListDue(ctx context.Context, now time.Time, limit int) ([]*Subscription, error)
}
