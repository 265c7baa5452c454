package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/socialecho/echokit/pkg/audit"
	"github.com/socialecho/echokit/pkg/billing"
	"github.com/socialecho/echokit/pkg/email"
)

// Dispatcher sends billing notifications with at-most-once delivery per
// provider event. It implements billing.Notifier.
type Dispatcher struct {
	recipients RecipientSource
	log        DispatchLog
	sender     email.Sender
	renderer   Renderer
	deny       map[string]struct{}
	audit      audit.Logger
	logger     *slog.Logger
}

// DispatcherOption configures optional Dispatcher behavior.
type DispatcherOption func(*Dispatcher)

// WithDenyList blocks addresses or whole domains (entries without "@") from
// ever receiving billing mail.
func WithDenyList(entries []string) DispatcherOption {
	return func(d *Dispatcher) {
		for _, e := range entries {
			e = strings.ToLower(strings.TrimSpace(e))
			if e != "" {
				d.deny[e] = struct{}{}
			}
		}
	}
}

// WithAudit sets the audit trail for dispatch outcomes.
func WithAudit(a audit.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.audit = a }
}

// WithLogger sets the logger.
func WithLogger(log *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) { d.logger = log }
}

// New creates a Dispatcher. All positional dependencies are required; panics
// on nil.
func New(recipients RecipientSource, log DispatchLog, sender email.Sender, renderer Renderer, opts ...DispatcherOption) *Dispatcher {
	if recipients == nil {
		panic("notify: recipient source is required")
	}
	if log == nil {
		panic("notify: dispatch log is required")
	}
	if sender == nil {
		panic("notify: email sender is required")
	}
	if renderer == nil {
		panic("notify: renderer is required")
	}
	d := &Dispatcher{
		recipients: recipients,
		log:        log,
		sender:     sender,
		renderer:   renderer,
		deny:       make(map[string]struct{}),
		audit:      audit.Nop(),
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch sends one notification for one provider event. The dispatch key
// is eventID:type:customerID, so the same event can legitimately produce
// different notification types but never the same one twice.
func (d *Dispatcher) Dispatch(ctx context.Context, eventID string, typ Type, customerID string) (Outcome, error) {
	key := fmt.Sprintf("%s:%s:%s", eventID, typ, customerID)

	claimed, err := d.log.Claim(ctx, Entry{
		Key:        key,
		EventID:    eventID,
		Type:       typ,
		CustomerID: customerID,
	})
	if err != nil {
		return OutcomeError, fmt.Errorf("%w: %w", ErrFailedToDispatch, err)
	}
	if !claimed {
		d.logger.InfoContext(ctx, "duplicate notification suppressed",
			slog.String("key", key))
		return OutcomeDuplicate, nil
	}

	recipient, err := d.recipients.ByProviderCustomerID(ctx, customerID)
	if errors.Is(err, ErrNoRecipient) {
		return d.finalize(ctx, key, OutcomeSkippedNoUser, "", nil)
	}
	if err != nil {
		out, _ := d.finalize(ctx, key, OutcomeError, "", err)
		return out, fmt.Errorf("%w: %w", ErrFailedToDispatch, err)
	}

	addr := strings.ToLower(strings.TrimSpace(recipient.Email))
	if !email.ValidAddress(addr) {
		return d.finalize(ctx, key, OutcomeSkippedInvalidRecipient, addr, nil)
	}
	if d.denied(addr) {
		out, _ := d.finalize(ctx, key, OutcomeForbidden, addr, ErrForbiddenRecipient)
		if err := d.audit.LogError(ctx, "notify.forbidden_recipient", ErrForbiddenRecipient,
			audit.WithTenant(recipient.TenantID.String()),
			audit.WithResource("dispatch", key),
		); err != nil {
			d.logger.ErrorContext(ctx, "audit write failed", slog.Any("error", err))
		}
		return out, ErrForbiddenRecipient
	}

	subject, body, err := d.renderer.Render(typ, *recipient)
	if err != nil {
		out, _ := d.finalize(ctx, key, OutcomeError, addr, err)
		return out, fmt.Errorf("%w: %w", ErrFailedToDispatch, err)
	}

	if err := d.sender.SendEmail(ctx, email.SendEmailParams{
		To:       addr,
		Subject:  subject,
		BodyHTML: body,
		Tag:      string(typ),
	}); err != nil {
		out, _ := d.finalize(ctx, key, OutcomeError, addr, err)
		return out, fmt.Errorf("%w: %w", ErrFailedToDispatch, err)
	}

	d.logger.InfoContext(ctx, "billing notification sent",
		slog.String("type", string(typ)),
		slog.String("tenant_id", recipient.TenantID.String()))
	if err := d.audit.Log(ctx, "notify.sent",
		audit.WithTenant(recipient.TenantID.String()),
		audit.WithResource("dispatch", key),
		audit.WithMetadata("type", string(typ)),
	); err != nil {
		d.logger.ErrorContext(ctx, "audit write failed", slog.Any("error", err))
	}
	return d.finalize(ctx, key, OutcomeSent, addr, nil)
}

// NotifyEvent implements billing.Notifier. Failures are logged, never
// propagated: the webhook was already processed and must be acknowledged.
func (d *Dispatcher) NotifyEvent(ctx context.Context, ev *billing.Event) {
	var typ Type
	switch ev.Type {
	case billing.EventPaymentFailed:
		typ = TypePaymentFailed
	case billing.EventSubscriptionDeleted:
		typ = TypeSubscriptionCanceled
	default:
		return
	}
	if _, err := d.Dispatch(ctx, ev.ID, typ, ev.CustomerID); err != nil {
		d.logger.ErrorContext(ctx, "notification dispatch failed",
			slog.String("event_id", ev.ID),
			slog.String("type", string(typ)),
			slog.Any("error", err))
	}
}

func (d *Dispatcher) denied(addr string) bool {
	if _, ok := d.deny[addr]; ok {
		return true
	}
	if at := strings.LastIndex(addr, "@"); at >= 0 {
		if _, ok := d.deny[addr[at+1:]]; ok {
			return true
		}
	}
	return false
}

func (d *Dispatcher) finalize(ctx context.Context, key string, outcome Outcome, recipient string, cause error) (Outcome, error) {
	if err := d.log.SetOutcome(ctx, key, outcome, recipient, cause); err != nil {
		d.logger.ErrorContext(ctx, "failed to finalize dispatch entry",
			slog.String("key", key), slog.Any("error", err))
	}
	return outcome, nil
}
