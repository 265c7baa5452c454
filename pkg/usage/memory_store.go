package usage

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCounterStore is an in-memory CounterStore for tests and local
// development.
type MemoryCounterStore struct {
	mu     sync.Mutex
	counts map[CycleKey]int64
}

// NewMemoryCounterStore creates an empty in-memory ledger.
func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counts: make(map[CycleKey]int64)}
}

func (s *MemoryCounterStore) Count(_ context.Context, key CycleKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[key], nil
}

func (s *MemoryCounterStore) Increment(_ context.Context, key CycleKey) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[key]++
	return s.counts[key], nil
}

func (s *MemoryCounterStore) IncrementUnder(_ context.Context, key CycleKey, limit int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.counts[key] >= limit {
		return s.counts[key], false, nil
	}
	s.counts[key]++
	return s.counts[key], true, nil
}

// MemoryArtifactStore is an in-memory ArtifactStore for tests and local
// development.
type MemoryArtifactStore struct {
	mu        sync.Mutex
	artifacts map[uuid.UUID]*Artifact
}

// NewMemoryArtifactStore creates an empty in-memory artifact store.
func NewMemoryArtifactStore() *MemoryArtifactStore {
	return &MemoryArtifactStore{artifacts: make(map[uuid.UUID]*Artifact)}
}

func (s *MemoryArtifactStore) Get(_ context.Context, id uuid.UUID) (*Artifact, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return nil, ErrArtifactNotFound
	}
	return a.Clone(), nil
}

func (s *MemoryArtifactStore) Create(_ context.Context, artifact *Artifact) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.artifacts[artifact.ID]; ok {
		return ErrArtifactAlreadyExists
	}
	s.artifacts[artifact.ID] = artifact.Clone()
	return nil
}

func (s *MemoryArtifactStore) MarkFirstGenerated(_ context.Context, id uuid.UUID, at time.Time) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return false, ErrArtifactNotFound
	}
	if a.FirstGeneratedAt != nil {
		return false, nil
	}
	t := at
	a.FirstGeneratedAt = &t
	return true, nil
}

func (s *MemoryArtifactStore) IncrementCustomisations(_ context.Context, id uuid.UUID) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return 0, ErrArtifactNotFound
	}
	a.CustomisationsUsed++
	return a.CustomisationsUsed, nil
}

func (s *MemoryArtifactStore) IncrementCustomisationsUnder(_ context.Context, id uuid.UUID, limit int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, ok := s.artifacts[id]
	if !ok {
		return 0, false, ErrArtifactNotFound
	}
	if a.CustomisationsUsed >= limit {
		return a.CustomisationsUsed, false, nil
	}
	a.CustomisationsUsed++
	return a.CustomisationsUsed, true, nil
}
