package audit

import (
	"context"
	"fmt"
	"sync"

	"github.com/jackc/pgx/v5/pgxpool"
)

// MemoryStorage keeps events in memory, for tests and local development.
type MemoryStorage struct {
	mu     sync.Mutex
	events []Event
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (s *MemoryStorage) Store(_ context.Context, event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

// Events returns a copy of everything stored so far.
func (s *MemoryStorage) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// PGStorage writes events to the billing_audit_log table.
type PGStorage struct {
	pool *pgxpool.Pool
}

// NewPGStorage creates a postgres-backed storage. Panics if pool is nil.
func NewPGStorage(pool *pgxpool.Pool) *PGStorage {
	if pool == nil {
		panic("audit: pgxpool is required")
	}
	return &PGStorage{pool: pool}
}

func (s *PGStorage) Store(ctx context.Context, event Event) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO billing_audit_log (id, tenant_id, action, resource, resource_id, result, error, metadata, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		event.ID, event.TenantID, event.Action, event.Resource, event.ResourceID,
		string(event.Result), event.Error, event.Metadata, event.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("store audit event: %w", err)
	}
	return nil
}
