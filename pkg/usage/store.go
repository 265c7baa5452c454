package usage

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// CounterStore is the cycle-keyed usage ledger. All increments are atomic at
// the store level; IncrementUnder must never let the count exceed limit even
// under concurrent callers.
type CounterStore interface {
	// Count returns the current count for the key, zero when no row exists.
	Count(ctx context.Context, key CycleKey) (int64, error)

	// Increment unconditionally increments the key and returns the new count.
	// Used for unlimited plans where no cap applies.
	Increment(ctx context.Context, key CycleKey) (int64, error)

	// IncrementUnder increments the key only while the stored count is below
	// limit. It returns the count after the operation and whether the
	// increment was applied. On a denied call the count is unchanged.
	IncrementUnder(ctx context.Context, key CycleKey, limit int64) (int64, bool, error)
}

// ArtifactStore persists generated artifacts and their per-artifact
// customisation counters.
type ArtifactStore interface {
	Get(ctx context.Context, id uuid.UUID) (*Artifact, error)
	Create(ctx context.Context, artifact *Artifact) error

	// MarkFirstGenerated stamps FirstGeneratedAt if it is not already set.
	// It reports whether this call applied the stamp; false means the
	// artifact was already marked and nothing changed.
	MarkFirstGenerated(ctx context.Context, id uuid.UUID, at time.Time) (bool, error)

	// IncrementCustomisations unconditionally increments the artifact's
	// customisation counter and returns the new value.
	IncrementCustomisations(ctx context.Context, id uuid.UUID) (int64, error)

	// IncrementCustomisationsUnder increments only while the stored counter
	// is below limit, returning the counter after the operation and whether
	// the increment was applied.
	IncrementCustomisationsUnder(ctx context.Context, id uuid.UUID, limit int64) (int64, bool, error)
}
