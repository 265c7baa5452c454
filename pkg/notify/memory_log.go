package notify

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrEntryNotFound = errors.New("dispatch log entry not found")

// MemoryDispatchLog is an in-memory DispatchLog for tests and local
// development.
type MemoryDispatchLog struct {
	mu      sync.Mutex
	entries map[string]*Entry
}

// NewMemoryDispatchLog creates an empty in-memory log.
func NewMemoryDispatchLog() *MemoryDispatchLog {
	return &MemoryDispatchLog{entries: make(map[string]*Entry)}
}

func (l *MemoryDispatchLog) Claim(_ context.Context, entry Entry) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.entries[entry.Key]; ok {
		return false, nil
	}
	entry.Outcome = OutcomePending
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	entry.UpdatedAt = entry.CreatedAt
	l.entries[entry.Key] = &entry
	return true, nil
}

func (l *MemoryDispatchLog) SetOutcome(_ context.Context, key string, outcome Outcome, recipient string, sendErr error) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return ErrEntryNotFound
	}
	e.Outcome = outcome
	e.Recipient = recipient
	if sendErr != nil {
		e.Error = sendErr.Error()
	}
	e.UpdatedAt = time.Now().UTC()
	return nil
}

func (l *MemoryDispatchLog) Get(_ context.Context, key string) (*Entry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	e, ok := l.entries[key]
	if !ok {
		return nil, ErrEntryNotFound
	}
	c := *e
	return &c, nil
}

// Entries returns a copy of every entry, for assertions.
func (l *MemoryDispatchLog) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, 0, len(l.entries))
	for _, e := range l.entries {
		out = append(out, *e)
	}
	return out
}
