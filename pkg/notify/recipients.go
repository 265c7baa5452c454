package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/socialecho/echokit/pkg/tenant"
)

// AccountRecipientSource resolves recipients from the tenant account store.
type AccountRecipientSource struct {
	accounts tenant.Store
}

// NewAccountRecipientSource creates a RecipientSource backed by accounts.
func NewAccountRecipientSource(accounts tenant.Store) *AccountRecipientSource {
	if accounts == nil {
		panic("notify: tenant account store is required")
	}
	return &AccountRecipientSource{accounts: accounts}
}

func (s *AccountRecipientSource) ByProviderCustomerID(ctx context.Context, customerID string) (*Recipient, error) {
	account, err := s.accounts.GetByProviderCustomerID(ctx, customerID)
	if err != nil {
		if errors.Is(err, tenant.ErrAccountNotFound) {
			return nil, ErrNoRecipient
		}
		return nil, fmt.Errorf("resolve recipient: %w", err)
	}
	return &Recipient{
		TenantID: account.TenantID,
		Email:    account.Email,
		Name:     account.Name,
	}, nil
}
