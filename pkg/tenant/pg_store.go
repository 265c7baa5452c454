package tenant

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore persists tenant accounts in Postgres.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Postgres-backed account store.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	if pool == nil {
		panic("tenant: pgx pool is required")
	}
	return &PGStore{pool: pool}
}

const accountColumns = `tenant_id, email, name, email_verified, provider_customer_id, created_at, updated_at`

func scanAccount(row pgx.Row) (*Account, error) {
	var (
		account    Account
		customerID *string
	)
	err := row.Scan(
		&account.TenantID, &account.Email, &account.Name, &account.EmailVerified,
		&customerID, &account.CreatedAt, &account.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("scan tenant account: %w", err)
	}
	if customerID != nil {
		account.ProviderCustomerID = *customerID
	}
	return &account, nil
}

func (s *PGStore) Get(ctx context.Context, tenantID uuid.UUID) (*Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM tenant_accounts WHERE tenant_id = $1`,
		tenantID)
	return scanAccount(row)
}

func (s *PGStore) GetByProviderCustomerID(ctx context.Context, customerID string) (*Account, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+accountColumns+` FROM tenant_accounts WHERE provider_customer_id = $1`,
		customerID)
	return scanAccount(row)
}

func (s *PGStore) Save(ctx context.Context, account *Account) error {
	var customerID *string
	if account.ProviderCustomerID != "" {
		customerID = &account.ProviderCustomerID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO tenant_accounts (tenant_id, email, name, email_verified, provider_customer_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, now(), now())
		ON CONFLICT (tenant_id) DO UPDATE SET
			email = EXCLUDED.email,
			name = EXCLUDED.name,
			email_verified = EXCLUDED.email_verified,
			provider_customer_id = EXCLUDED.provider_customer_id,
			updated_at = now()`,
		account.TenantID, account.Email, account.Name, account.EmailVerified, customerID,
	)
	if err != nil {
		return fmt.Errorf("save tenant account: %w", err)
	}
	return nil
}
