package notify

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrNoRecipient = errors.New("no recipient for provider customer")

	// ErrForbiddenRecipient means the resolved address is on the deny-list.
	// This is a hard failure: something upstream resolved to an address that
	// must never receive billing mail, and that needs human eyes.
	ErrForbiddenRecipient = errors.New("recipient address is forbidden")

	ErrFailedToDispatch = errors.New("failed to dispatch notification")
)

// Type is the kind of billing notification.
type Type string

const (
	TypePaymentFailed        Type = "payment_failed"
	TypeSubscriptionCanceled Type = "subscription_canceled"
	TypePlanChanged          Type = "plan_changed"
)

// Outcome is the terminal state of one dispatch attempt.
type Outcome string

const (
	// OutcomePending is the claimed-but-unsent state. Rows stuck here mark
	// sends interrupted mid-flight.
	OutcomePending Outcome = "pending"

	OutcomeSent Outcome = "sent"

	// OutcomeSkippedNoUser means no tenant maps to the provider customer.
	OutcomeSkippedNoUser Outcome = "skipped_no_user"

	// OutcomeSkippedInvalidRecipient means the directory returned an address
	// that does not parse as an email.
	OutcomeSkippedInvalidRecipient Outcome = "skipped_invalid_recipient"

	// OutcomeDuplicate means this event was already claimed; nothing was
	// sent.
	OutcomeDuplicate Outcome = "duplicate"

	OutcomeForbidden Outcome = "forbidden"
	OutcomeError     Outcome = "error"
)

// Recipient is a resolved notification target.
type Recipient struct {
	TenantID uuid.UUID
	Email    string
	Name     string
}

// RecipientSource resolves recipients from the provider customer ID. That ID
// is the only accepted lookup key; resolving by email or tenant name would
// let a crafted event redirect mail.
type RecipientSource interface {
	ByProviderCustomerID(ctx context.Context, customerID string) (*Recipient, error)
}

// Entry is one row of the dispatch log.
type Entry struct {
	Key        string
	EventID    string
	Type       Type
	CustomerID string
	Recipient  string
	Outcome    Outcome
	Error      string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// DispatchLog is the durable at-most-once ledger. Claim must be atomic:
// exactly one of any number of concurrent claims for the same key wins.
type DispatchLog interface {
	// Claim inserts the entry with OutcomePending and reports whether this
	// caller won the claim. A false return means the key already exists.
	Claim(ctx context.Context, entry Entry) (bool, error)

	// SetOutcome finalizes a claimed entry.
	SetOutcome(ctx context.Context, key string, outcome Outcome, recipient string, sendErr error) error

	Get(ctx context.Context, key string) (*Entry, error)
}
