package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGCounterStore is the postgres-backed usage ledger. The conditional
// increment relies on the guarded upsert executing atomically per row, so no
// application-side locking is needed.
type PGCounterStore struct {
	pool *pgxpool.Pool
}

// NewPGCounterStore creates a ledger on the given pool. Panics if pool is nil.
func NewPGCounterStore(pool *pgxpool.Pool) *PGCounterStore {
	if pool == nil {
		panic("usage: pgxpool is required")
	}
	return &PGCounterStore{pool: pool}
}

func (s *PGCounterStore) Count(ctx context.Context, key CycleKey) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`SELECT count FROM usage_cycle_counters WHERE tenant_id = $1 AND cycle_start = $2`,
		key.TenantID, key.CycleStart,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("count usage: %w", err)
	}
	return count, nil
}

func (s *PGCounterStore) Increment(ctx context.Context, key CycleKey) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO usage_cycle_counters (tenant_id, cycle_start, cycle_end, count, updated_at)
		 VALUES ($1, $2, $3, 1, now())
		 ON CONFLICT (tenant_id, cycle_start) DO UPDATE
		 SET count = usage_cycle_counters.count + 1, updated_at = now()
		 RETURNING count`,
		key.TenantID, key.CycleStart, key.CycleEnd,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("increment usage: %w", err)
	}
	return count, nil
}

func (s *PGCounterStore) IncrementUnder(ctx context.Context, key CycleKey, limit int64) (int64, bool, error) {
	if limit < 1 {
		count, err := s.Count(ctx, key)
		return count, false, err
	}
	var count int64
	err := s.pool.QueryRow(ctx,
		`INSERT INTO usage_cycle_counters (tenant_id, cycle_start, cycle_end, count, updated_at)
		 VALUES ($1, $2, $3, 1, now())
		 ON CONFLICT (tenant_id, cycle_start) DO UPDATE
		 SET count = usage_cycle_counters.count + 1, updated_at = now()
		 WHERE usage_cycle_counters.count < $4
		 RETURNING count`,
		key.TenantID, key.CycleStart, key.CycleEnd, limit,
	).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		// The row exists and is already at the limit.
		count, err := s.Count(ctx, key)
		return count, false, err
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment usage: %w", err)
	}
	return count, true, nil
}

const artifactColumns = `id, tenant_id, first_generated_at, customisations_used, created_at`

// PGArtifactStore is the postgres-backed ArtifactStore.
type PGArtifactStore struct {
	pool *pgxpool.Pool
}

// NewPGArtifactStore creates an artifact store on the given pool. Panics if
// pool is nil.
func NewPGArtifactStore(pool *pgxpool.Pool) *PGArtifactStore {
	if pool == nil {
		panic("usage: pgxpool is required")
	}
	return &PGArtifactStore{pool: pool}
}

func (s *PGArtifactStore) Get(ctx context.Context, id uuid.UUID) (*Artifact, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+artifactColumns+` FROM generated_artifacts WHERE id = $1`, id)
	return scanArtifact(row)
}

func (s *PGArtifactStore) Create(ctx context.Context, artifact *Artifact) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO generated_artifacts (id, tenant_id, first_generated_at, customisations_used, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		artifact.ID, artifact.TenantID, artifact.FirstGeneratedAt,
		artifact.CustomisationsUsed, artifact.CreatedAt,
	)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return ErrArtifactAlreadyExists
	}
	if err != nil {
		return fmt.Errorf("create artifact: %w", err)
	}
	return nil
}

func (s *PGArtifactStore) MarkFirstGenerated(ctx context.Context, id uuid.UUID, at time.Time) (bool, error) {
	tag, err := s.pool.Exec(ctx,
		`UPDATE generated_artifacts SET first_generated_at = $2
		 WHERE id = $1 AND first_generated_at IS NULL`,
		id, at,
	)
	if err != nil {
		return false, fmt.Errorf("mark first generated: %w", err)
	}
	if tag.RowsAffected() > 0 {
		return true, nil
	}
	if _, err := s.Get(ctx, id); err != nil {
		return false, err
	}
	return false, nil
}

func (s *PGArtifactStore) IncrementCustomisations(ctx context.Context, id uuid.UUID) (int64, error) {
	var used int64
	err := s.pool.QueryRow(ctx,
		`UPDATE generated_artifacts SET customisations_used = customisations_used + 1
		 WHERE id = $1 RETURNING customisations_used`,
		id,
	).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrArtifactNotFound
	}
	if err != nil {
		return 0, fmt.Errorf("increment customisations: %w", err)
	}
	return used, nil
}

func (s *PGArtifactStore) IncrementCustomisationsUnder(ctx context.Context, id uuid.UUID, limit int64) (int64, bool, error) {
	if limit < 1 {
		a, err := s.Get(ctx, id)
		if err != nil {
			return 0, false, err
		}
		return a.CustomisationsUsed, false, nil
	}
	var used int64
	err := s.pool.QueryRow(ctx,
		`UPDATE generated_artifacts SET customisations_used = customisations_used + 1
		 WHERE id = $1 AND customisations_used < $2
		 RETURNING customisations_used`,
		id, limit,
	).Scan(&used)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either missing or already at the limit; a read tells them apart.
		a, err := s.Get(ctx, id)
		if err != nil {
			return 0, false, err
		}
		return a.CustomisationsUsed, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("increment customisations: %w", err)
	}
	return used, true, nil
}

func scanArtifact(row pgx.Row) (*Artifact, error) {
	var a Artifact
	err := row.Scan(&a.ID, &a.TenantID, &a.FirstGeneratedAt, &a.CustomisationsUsed, &a.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrArtifactNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan artifact: %w", err)
	}
	return &a, nil
}
