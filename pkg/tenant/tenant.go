package tenant

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrAccountNotFound = errors.New("tenant account not found")

// Account is the billing-relevant slice of a tenant's profile.
type Account struct {
	TenantID           uuid.UUID
	Email              string
	Name               string
	EmailVerified      bool
	ProviderCustomerID string
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

// Clone returns a deep copy.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	return &c
}

// Store persists tenant accounts.
type Store interface {
	Get(ctx context.Context, tenantID uuid.UUID) (*Account, error)
	GetByProviderCustomerID(ctx context.Context, customerID string) (*Account, error)
	Save(ctx context.Context, account *Account) error
}

// Verifier answers identity-verification checks from the account store.
// A missing account counts as unverified rather than an error so the
// caller's denial path stays uniform.
type Verifier struct {
	store Store
}

// NewVerifier creates a Verifier.
func NewVerifier(store Store) *Verifier {
	if store == nil {
		panic("tenant: store is required")
	}
	return &Verifier{store: store}
}

func (v *Verifier) IsVerified(ctx context.Context, tenantID uuid.UUID) (bool, error) {
	account, err := v.store.Get(ctx, tenantID)
	if err != nil {
		if errors.Is(err, ErrAccountNotFound) {
			return false, nil
		}
		return false, err
	}
	return account.EmailVerified, nil
}
