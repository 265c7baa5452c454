package subscription

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// memoryStore is an in-memory Store for tests and local development.
// All invariants the Postgres store enforces with conditional updates are
// enforced here under a single mutex.
type memoryStore struct {
	mu   sync.Mutex
	subs map[uuid.UUID]*Subscription
}

// NewMemoryStore returns an empty in-memory subscription store.
func NewMemoryStore() Store {
	return &memoryStore{subs: make(map[uuid.UUID]*Subscription)}
}

func (s *memoryStore) Get(_ context.Context, tenantID uuid.UUID) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[tenantID]
	if !ok {
		return nil, ErrNotFound
	}
	return sub.Clone(), nil
}

func (s *memoryStore) GetByProviderCustomerID(_ context.Context, customerID string) (*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, sub := range s.subs {
		if sub.ProviderCustomerID != "" && sub.ProviderCustomerID == customerID {
			return sub.Clone(), nil
		}
	}
	return nil, ErrNotFound
}

func (s *memoryStore) Save(_ context.Context, sub *Subscription) error {
	if !sub.CurrentPeriodStart.IsZero() && !sub.CurrentPeriodEnd.IsZero() &&
		!sub.CurrentPeriodStart.Before(sub.CurrentPeriodEnd) {
		return ErrInvalidPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	c := sub.Clone()
	c.UpdatedAt = time.Now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = c.UpdatedAt
	}
	s.subs[sub.TenantID] = c
	return nil
}

func (s *memoryStore) SetStatus(_ context.Context, tenantID uuid.UUID, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[tenantID]
	if !ok {
		return ErrNotFound
	}
	if sub.Status == status {
		return nil
	}
	sub.Status = status
	sub.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memoryStore) ResetCycle(_ context.Context, tenantID uuid.UUID, start, end time.Time) (*Subscription, error) {
	if !start.Before(end) {
		return nil, ErrInvalidPeriod
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[tenantID]
	if !ok {
		return nil, ErrNotFound
	}

	// A concurrent rollover that already advanced the period wins; this
	// call then returns the fresh row untouched.
	if !sub.CurrentPeriodEnd.IsZero() && !sub.CurrentPeriodEnd.Before(end) {
		return sub.Clone(), nil
	}

	sub.CurrentPeriodStart = start
	sub.CurrentPeriodEnd = end
	sub.UsageCount = 0
	sub.UpdatedAt = time.Now().UTC()
	return sub.Clone(), nil
}

func (s *memoryStore) IncrementUsage(_ context.Context, tenantID uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.subs[tenantID]
	if !ok {
		return 0, ErrNotFound
	}
	sub.UsageCount++
	sub.UpdatedAt = time.Now().UTC()
	return sub.UsageCount, nil
}

func (s *memoryStore) ListDue(_ context.Context, now time.Time, limit int) ([]*Subscription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var due []*Subscription
	for _, sub := range s.subs {
		if len(due) >= limit {
			break
		}
		if sub.Status == StatusFreeTrial {
			continue
		}
		if sub.CurrentPeriodEnd.IsZero() || !now.Before(sub.CurrentPeriodEnd) {
			due = append(due, sub.Clone())
		}
	}
	return due, nil
}
