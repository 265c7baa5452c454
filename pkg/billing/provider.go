package billing

import (
	"context"
	"time"
)

// ProviderSubscription is the provider's view of one subscription, reduced to
// the fields the engine acts on.
type ProviderSubscription struct {
	ID                string
	CustomerID        string
	Status            string
	PriceID           string
	ScheduleID        string
	CancelAtPeriodEnd bool
	PeriodStart       time.Time
	PeriodEnd         time.Time
	TrialEnd          time.Time
}

// ScheduleStatus is the provider-side lifecycle state of a subscription
// schedule.
type ScheduleStatus string

const (
	ScheduleNotStarted ScheduleStatus = "not_started"
	ScheduleActive     ScheduleStatus = "active"
	ScheduleCompleted  ScheduleStatus = "completed"
	ScheduleReleased   ScheduleStatus = "released"
	ScheduleCanceled   ScheduleStatus = "canceled"
)

// Releasable reports whether the schedule still controls a subscription and
// can be released.
func (s ScheduleStatus) Releasable() bool {
	return s == ScheduleNotStarted || s == ScheduleActive
}

// Schedule is the provider's view of a subscription schedule.
type Schedule struct {
	ID             string
	Status         ScheduleStatus
	SubscriptionID string
	Phases         []SchedulePhase
}

// SchedulePhase is one resolved phase of a provider schedule.
type SchedulePhase struct {
	PriceID string
	Start   time.Time
	End     time.Time
}

// PhaseParams describes one phase when writing a schedule. End and
// Iterations are alternatives: a bounded phase sets End, a trailing phase
// sets Iterations.
type PhaseParams struct {
	PriceID    string
	Start      time.Time
	End        time.Time
	Iterations int64
}

// Provider is the payment provider surface the transition manager needs.
// Implementations must make CancelSubscription immediate and non-prorated,
// and must apply the idempotency key on CreateSubscription so a retried
// upgrade cannot create two subscriptions.
type Provider interface {
	CreateCustomer(ctx context.Context, tenantID, email string) (string, error)
	CreateSubscription(ctx context.Context, customerID, priceID, idempotencyKey string) (*ProviderSubscription, error)
	CancelSubscription(ctx context.Context, subscriptionID string) error
	GetSubscription(ctx context.Context, subscriptionID string) (*ProviderSubscription, error)

	CreateSchedule(ctx context.Context, fromSubscriptionID string) (*Schedule, error)
	SetSchedulePhases(ctx context.Context, scheduleID string, phases []PhaseParams) (*Schedule, error)
	ReleaseSchedule(ctx context.Context, scheduleID string) error
	GetSchedule(ctx context.Context, scheduleID string) (*Schedule, error)
}

// EventType classifies provider webhook events into the handful the engine
// reacts to.
type EventType string

const (
	EventSubscriptionCreated EventType = "subscription.created"
	EventSubscriptionUpdated EventType = "subscription.updated"
	EventSubscriptionDeleted EventType = "subscription.deleted"
	EventPaymentSucceeded    EventType = "payment.succeeded"
	EventPaymentFailed       EventType = "payment.failed"
)

// Event is a provider webhook event after signature verification and
// normalization. Subscription is set for subscription.* events and nil for
// payment events.
type Event struct {
	ID           string
	Type         EventType
	CustomerID   string
	Subscription *ProviderSubscription
}

// WebhookParser verifies a raw webhook payload against its signature and
// normalizes it into an Event. A nil Event with nil error means the event
// type is not one the engine handles.
type WebhookParser interface {
	ParseWebhook(payload []byte, signatureHeader string) (*Event, error)
}
