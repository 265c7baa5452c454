package tenant

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development.
type MemoryStore struct {
	mu       sync.RWMutex
	accounts map[uuid.UUID]*Account
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{accounts: make(map[uuid.UUID]*Account)}
}

func (s *MemoryStore) Get(ctx context.Context, tenantID uuid.UUID) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	account, ok := s.accounts[tenantID]
	if !ok {
		return nil, ErrAccountNotFound
	}
	return account.Clone(), nil
}

func (s *MemoryStore) GetByProviderCustomerID(ctx context.Context, customerID string) (*Account, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, account := range s.accounts {
		if account.ProviderCustomerID != "" && account.ProviderCustomerID == customerID {
			return account.Clone(), nil
		}
	}
	return nil, ErrAccountNotFound
}

func (s *MemoryStore) Save(ctx context.Context, account *Account) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored := account.Clone()
	now := time.Now().UTC()
	if existing, ok := s.accounts[account.TenantID]; ok {
		stored.CreatedAt = existing.CreatedAt
	} else {
		stored.CreatedAt = now
	}
	stored.UpdatedAt = now
	s.accounts[account.TenantID] = stored
	return nil
}
