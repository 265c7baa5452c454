package billing

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/customer"
	"github.com/stripe/stripe-go/v82/subscription"
	"github.com/stripe/stripe-go/v82/subscriptionschedule"
	"github.com/stripe/stripe-go/v82/webhook"
)

// StripeConfig carries the Stripe credentials.
type StripeConfig struct {
	APIKey        string `env:"STRIPE_API_KEY,required"`
	WebhookSecret string `env:"STRIPE_WEBHOOK_SECRET,required"`
}

// StripeProvider implements Provider and WebhookParser on the Stripe API.
type StripeProvider struct {
	webhookSecret string
}

// NewStripeProvider configures the Stripe client with the given credentials.
func NewStripeProvider(cfg StripeConfig) *StripeProvider {
	stripe.Key = cfg.APIKey
	return &StripeProvider{webhookSecret: cfg.WebhookSecret}
}

func (p *StripeProvider) CreateCustomer(_ context.Context, tenantID, email string) (string, error) {
	params := &stripe.CustomerParams{
		Email: stripe.String(email),
		Metadata: map[string]string{
			"tenant_id": tenantID,
		},
	}
	c, err := customer.New(params)
	if err != nil {
		return "", fmt.Errorf("%w: create customer: %w", ErrProviderFailure, err)
	}
	return c.ID, nil
}

func (p *StripeProvider) CreateSubscription(_ context.Context, customerID, priceID, idempotencyKey string) (*ProviderSubscription, error) {
	params := &stripe.SubscriptionParams{
		Customer: stripe.String(customerID),
		Items: []*stripe.SubscriptionItemsParams{
			{Price: stripe.String(priceID)},
		},
		ProrationBehavior: stripe.String("none"),
	}
	if idempotencyKey != "" {
		params.SetIdempotencyKey(idempotencyKey)
	}
	sub, err := subscription.New(params)
	if err != nil {
		return nil, fmt.Errorf("%w: create subscription: %w", ErrProviderFailure, err)
	}
	return mapStripeSubscription(sub), nil
}

// CancelSubscription ends the subscription immediately without prorating the
// unused remainder of the period.
func (p *StripeProvider) CancelSubscription(_ context.Context, subscriptionID string) error {
	_, err := subscription.Cancel(subscriptionID, &stripe.SubscriptionCancelParams{
		Prorate: stripe.Bool(false),
	})
	if err != nil {
		return fmt.Errorf("%w: cancel subscription: %w", ErrProviderFailure, err)
	}
	return nil
}

func (p *StripeProvider) GetSubscription(_ context.Context, subscriptionID string) (*ProviderSubscription, error) {
	sub, err := subscription.Get(subscriptionID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: get subscription: %w", ErrProviderFailure, err)
	}
	return mapStripeSubscription(sub), nil
}

func (p *StripeProvider) CreateSchedule(_ context.Context, fromSubscriptionID string) (*Schedule, error) {
	sched, err := subscriptionschedule.New(&stripe.SubscriptionScheduleParams{
		FromSubscription: stripe.String(fromSubscriptionID),
	})
	if err != nil {
		return nil, fmt.Errorf("%w: create schedule: %w", ErrProviderFailure, err)
	}
	return mapStripeSchedule(sched), nil
}

func (p *StripeProvider) SetSchedulePhases(_ context.Context, scheduleID string, phases []PhaseParams) (*Schedule, error) {
	params := &stripe.SubscriptionScheduleParams{
		EndBehavior:       stripe.String("release"),
		ProrationBehavior: stripe.String("none"),
	}
	for _, ph := range phases {
		phase := &stripe.SubscriptionSchedulePhaseParams{
			Items: []*stripe.SubscriptionSchedulePhaseItemParams{
				{Price: stripe.String(ph.PriceID), Quantity: stripe.Int64(1)},
			},
			ProrationBehavior: stripe.String("none"),
		}
		if !ph.Start.IsZero() {
			phase.StartDate = stripe.Int64(ph.Start.Unix())
		}
		if !ph.End.IsZero() {
			phase.EndDate = stripe.Int64(ph.End.Unix())
		}
		if ph.Iterations > 0 {
			phase.Iterations = stripe.Int64(ph.Iterations)
		}
		params.Phases = append(params.Phases, phase)
	}
	sched, err := subscriptionschedule.Update(scheduleID, params)
	if err != nil {
		return nil, fmt.Errorf("%w: update schedule: %w", ErrProviderFailure, err)
	}
	return mapStripeSchedule(sched), nil
}

func (p *StripeProvider) ReleaseSchedule(_ context.Context, scheduleID string) error {
	_, err := subscriptionschedule.Release(scheduleID, &stripe.SubscriptionScheduleReleaseParams{})
	if err != nil {
		return fmt.Errorf("%w: release schedule: %w", ErrProviderFailure, err)
	}
	return nil
}

func (p *StripeProvider) GetSchedule(_ context.Context, scheduleID string) (*Schedule, error) {
	sched, err := subscriptionschedule.Get(scheduleID, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: get schedule: %w", ErrProviderFailure, err)
	}
	return mapStripeSchedule(sched), nil
}

// ParseWebhook verifies the Stripe signature before reading anything from the
// payload. Unhandled event types return (nil, nil).
func (p *StripeProvider) ParseWebhook(payload []byte, signatureHeader string) (*Event, error) {
	event, err := webhook.ConstructEventWithOptions(payload, signatureHeader, p.webhookSecret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidSignature, err)
	}

	switch event.Type {
	case "customer.subscription.created", "customer.subscription.updated", "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			return nil, fmt.Errorf("parse subscription event %s: %w", event.ID, err)
		}
		mapped := mapStripeSubscription(&sub)
		typ := EventSubscriptionUpdated
		switch event.Type {
		case "customer.subscription.created":
			typ = EventSubscriptionCreated
		case "customer.subscription.deleted":
			typ = EventSubscriptionDeleted
		}
		return &Event{ID: event.ID, Type: typ, CustomerID: mapped.CustomerID, Subscription: mapped}, nil
	case "invoice.paid":
		customerID, err := invoiceCustomerID(event.Data.Raw)
		if err != nil {
			return nil, fmt.Errorf("parse invoice event %s: %w", event.ID, err)
		}
		return &Event{ID: event.ID, Type: EventPaymentSucceeded, CustomerID: customerID}, nil
	case "invoice.payment_failed":
		customerID, err := invoiceCustomerID(event.Data.Raw)
		if err != nil {
			return nil, fmt.Errorf("parse invoice event %s: %w", event.ID, err)
		}
		return &Event{ID: event.ID, Type: EventPaymentFailed, CustomerID: customerID}, nil
	}
	return nil, nil
}

func invoiceCustomerID(raw json.RawMessage) (string, error) {
	var inv stripe.Invoice
	if err := json.Unmarshal(raw, &inv); err != nil {
		return "", err
	}
	if inv.Customer == nil {
		return "", nil
	}
	return inv.Customer.ID, nil
}

func mapStripeSubscription(sub *stripe.Subscription) *ProviderSubscription {
	out := &ProviderSubscription{
		ID:                sub.ID,
		Status:            string(sub.Status),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		TrialEnd:          unixTime(sub.TrialEnd),
	}
	if sub.Customer != nil {
		out.CustomerID = sub.Customer.ID
	}
	if sub.Schedule != nil {
		out.ScheduleID = sub.Schedule.ID
	}
	// Billing periods live on the subscription items.
	if sub.Items != nil && len(sub.Items.Data) > 0 {
		item := sub.Items.Data[0]
		if item.Price != nil {
			out.PriceID = item.Price.ID
		}
		out.PeriodStart = unixTime(item.CurrentPeriodStart)
		out.PeriodEnd = unixTime(item.CurrentPeriodEnd)
	}
	return out
}

func mapStripeSchedule(sched *stripe.SubscriptionSchedule) *Schedule {
	out := &Schedule{
		ID:     sched.ID,
		Status: ScheduleStatus(sched.Status),
	}
	if sched.Subscription != nil {
		out.SubscriptionID = sched.Subscription.ID
	}
	for _, ph := range sched.Phases {
		phase := SchedulePhase{
			Start: unixTime(ph.StartDate),
			End:   unixTime(ph.EndDate),
		}
		if len(ph.Items) > 0 && ph.Items[0].Price != nil {
			phase.PriceID = ph.Items[0].Price.ID
		}
		out.Phases = append(out.Phases, phase)
	}
	return out
}

func unixTime(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0).UTC()
}
