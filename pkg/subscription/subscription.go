package subscription

import (
	"time"

	"github.com/google/uuid"

	"github.com/socialecho/echokit/pkg/plan"
)

// Status represents the lifecycle state of a subscription.
type Status string

const (
	StatusActive         Status = "active"
	StatusTrialing       Status = "trialing"
	StatusTrialLegacy    Status = "trial" // legacy rows created before trialing was adopted
	StatusFreeTrial      Status = "free_trial"
	StatusPastDue        Status = "past_due"
	StatusSuspended      Status = "suspended"
	StatusCanceled       Status = "canceled"
	StatusPendingPayment Status = "pending_payment"
)

// IsTrial reports whether the status is one of the time-boxed trial states.
// free_trial is not included: it is quota-boxed, not time-boxed.
func (s Status) IsTrial() bool {
	return s == StatusTrialing || s == StatusTrialLegacy
}

// Subscription is the per-tenant billing record. Exactly one exists per
// tenant; TenantID is the primary key.
type Subscription struct {
	TenantID uuid.UUID
	Plan     plan.ID
	Status   Status

	// UsageCount is the denormalized fast counter for the current cycle,
	// read on every dashboard call. The cycle-keyed ledger in pkg/usage is
	// the authoritative guard; this field mirrors it.
	UsageCount int64
	// UsageLimit mirrors the plan's post limit so display paths never need
	// a catalog lookup. Entitlement math always resolves through the
	// catalog instead.
	UsageLimit plan.Limit

	// CurrentPeriodStart/End bound the active billing cycle. Zero values
	// mean the period has not been initialized yet; the cycle engine
	// anchors it lazily on first touch.
	CurrentPeriodStart time.Time
	CurrentPeriodEnd   time.Time

	TrialEndsAt *time.Time // set only for time-boxed trials

	// PendingPlan and PendingEffectiveAt are set only while a downgrade is
	// scheduled with the billing provider. They are display state: all
	// entitlement math keeps using Plan until the provider fires the
	// scheduled change.
	PendingPlan        plan.ID
	PendingEffectiveAt *time.Time

	ProviderCustomerID     string
	ProviderSubscriptionID string
	ProviderScheduleID     string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasPeriod reports whether billing-period boundaries have been initialized.
func (s *Subscription) HasPeriod() bool {
	return !s.CurrentPeriodEnd.IsZero()
}

// PeriodExpiredAt reports whether the current period has ended as of now.
func (s *Subscription) PeriodExpiredAt(now time.Time) bool {
	return s.HasPeriod() && !now.Before(s.CurrentPeriodEnd)
}

// TrialExpiredAt reports whether a time-boxed trial has ended as of now.
func (s *Subscription) TrialExpiredAt(now time.Time) bool {
	if !s.Status.IsTrial() || s.TrialEndsAt == nil {
		return false
	}
	return now.After(*s.TrialEndsAt)
}

// HasPendingChange reports whether a deferred plan change is scheduled.
func (s *Subscription) HasPendingChange() bool {
	return s.PendingPlan != "" && s.PendingPlan != plan.None && s.PendingEffectiveAt != nil
}

// Clone returns a deep copy. Stores hand out clones so that callers can
// never mutate shared state through a returned pointer.
func (s *Subscription) Clone() *Subscription {
	c := *s
	if s.TrialEndsAt != nil {
		t := *s.TrialEndsAt
		c.TrialEndsAt = &t
	}
	if s.PendingEffectiveAt != nil {
		t := *s.PendingEffectiveAt
		c.PendingEffectiveAt = &t
	}
	return &c
}
