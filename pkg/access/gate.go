package access

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/socialecho/echokit/pkg/subscription"
)

// Reason is a machine-readable denial code. The caller maps it to
// remediation: subscribe, verify email, upgrade, or contact support.
type Reason string

const (
	ReasonSubscriptionRequired Reason = "subscription_required"
	ReasonEmailUnverified      Reason = "email_unverified"
	ReasonTrialExpired         Reason = "trial_expired"
	ReasonSuspended            Reason = "suspended"
	ReasonCanceled             Reason = "canceled"
	ReasonInvalidStatus        Reason = "invalid_status"
)

// Message returns the human-readable companion to the reason code.
func (r Reason) Message() string {
	switch r {
	case ReasonSubscriptionRequired:
		return "Subscription required. Please subscribe to a plan."
	case ReasonEmailUnverified:
		return "Please verify your email address to start using your free trial."
	case ReasonTrialExpired:
		return "Your trial has expired. Please subscribe to continue."
	case ReasonSuspended:
		return "Your account has been suspended. Please contact support or update your subscription."
	case ReasonCanceled:
		return "Your subscription has been canceled. Please reactivate to continue."
	case ReasonInvalidStatus:
		return "Your subscription is in an unexpected state. Please contact support."
	default:
		return "Access denied."
	}
}

// Decision is the outcome of an access check. Subscription carries the
// freshly loaded record so downstream quota checks do not re-read it.
type Decision struct {
	Allowed      bool
	Reason       Reason
	Message      string
	Subscription *subscription.Subscription
}

// VerificationSource reports whether a tenant's identity (email) has been
// verified. Backed by the user store, which lives outside this engine.
type VerificationSource interface {
	IsVerified(ctx context.Context, tenantID uuid.UUID) (bool, error)
}

// Gate loads the tenant's subscription and applies the admission rules.
type Gate struct {
	subs     subscription.Store
	identity VerificationSource
	now      func() time.Time
	log      *slog.Logger
}

// Option configures a Gate.
type Option func(*Gate)

// WithClock overrides the time source, used by tests.
func WithClock(now func() time.Time) Option {
	return func(g *Gate) { g.now = now }
}

// WithLogger sets the logger for the gate's one mutating side effect.
func WithLogger(log *slog.Logger) Option {
	return func(g *Gate) { g.log = log }
}

// New creates an access gate. Both the subscription store and the identity
// verification source are required.
func New(subs subscription.Store, identity VerificationSource, opts ...Option) *Gate {
	if subs == nil {
		panic("access: subscription store is required")
	}
	if identity == nil {
		panic("access: verification source is required")
	}

	g := &Gate{
		subs:     subs,
		identity: identity,
		now:      func() time.Time { return time.Now().UTC() },
		log:      slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// allowedStatuses is the closed set of statuses that admit product use.
// Anything outside it is treated as data corruption and denied generically.
var allowedStatuses = map[subscription.Status]struct{}{
	subscription.StatusActive:      {},
	subscription.StatusTrialing:    {},
	subscription.StatusTrialLegacy: {},
	subscription.StatusFreeTrial:   {},
	subscription.StatusPastDue:     {},
}

// CheckAccess evaluates the admission rules in order, first match wins.
// The gate loads the subscription itself so the decision is never based on
// caller-supplied stale state.
//
// Rule three is the single place the read path mutates state: an expired
// time-boxed trial is transitioned to suspended before the denial is
// returned. The write is idempotent, so concurrent evaluation of the same
// expired trial is safe.
func (g *Gate) CheckAccess(ctx context.Context, tenantID uuid.UUID) (*Decision, error) {
	sub, err := g.subs.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, subscription.ErrNotFound) {
			return deny(ReasonSubscriptionRequired, nil), nil
		}
		return nil, err
	}

	if sub.Status == subscription.StatusFreeTrial {
		verified, err := g.identity.IsVerified(ctx, tenantID)
		if err != nil {
			return nil, err
		}
		if !verified {
			return deny(ReasonEmailUnverified, sub), nil
		}
	}

	if sub.TrialExpiredAt(g.now()) {
		if err := g.subs.SetStatus(ctx, tenantID, subscription.StatusSuspended); err != nil {
			return nil, err
		}
		g.log.InfoContext(ctx, "trial expired, subscription suspended",
			slog.String("tenant_id", tenantID.String()),
			slog.Time("trial_ended_at", *sub.TrialEndsAt))
		sub.Status = subscription.StatusSuspended
		return deny(ReasonTrialExpired, sub), nil
	}

	if sub.Status == subscription.StatusSuspended {
		return deny(ReasonSuspended, sub), nil
	}

	if sub.Status == subscription.StatusCanceled {
		return deny(ReasonCanceled, sub), nil
	}

	if _, ok := allowedStatuses[sub.Status]; !ok {
		return deny(ReasonInvalidStatus, sub), nil
	}

	return &Decision{Allowed: true, Subscription: sub}, nil
}

func deny(reason Reason, sub *subscription.Subscription) *Decision {
	return &Decision{
		Reason:       reason,
		Message:      reason.Message(),
		Subscription: sub,
	}
}
