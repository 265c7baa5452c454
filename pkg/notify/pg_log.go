package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGDispatchLog is the postgres-backed DispatchLog. The claim rides on the
// primary key: the insert that hits a conflict lost the race.
type PGDispatchLog struct {
	pool *pgxpool.Pool
}

// NewPGDispatchLog creates a dispatch log on the given pool. Panics if pool
// is nil.
func NewPGDispatchLog(pool *pgxpool.Pool) *PGDispatchLog {
	if pool == nil {
		panic("notify: pgxpool is required")
	}
	return &PGDispatchLog{pool: pool}
}

func (l *PGDispatchLog) Claim(ctx context.Context, entry Entry) (bool, error) {
	tag, err := l.pool.Exec(ctx,
		`INSERT INTO email_dispatch_log (key, event_id, notification_type, customer_id, outcome, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, now(), now())
		 ON CONFLICT (key) DO NOTHING`,
		entry.Key, entry.EventID, string(entry.Type), entry.CustomerID, string(OutcomePending),
	)
	if err != nil {
		return false, fmt.Errorf("claim dispatch: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

func (l *PGDispatchLog) SetOutcome(ctx context.Context, key string, outcome Outcome, recipient string, sendErr error) error {
	errText := ""
	if sendErr != nil {
		errText = sendErr.Error()
	}
	tag, err := l.pool.Exec(ctx,
		`UPDATE email_dispatch_log
		 SET outcome = $2, recipient = $3, error = $4, updated_at = now()
		 WHERE key = $1`,
		key, string(outcome), recipient, errText,
	)
	if err != nil {
		return fmt.Errorf("finalize dispatch: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrEntryNotFound
	}
	return nil
}

func (l *PGDispatchLog) Get(ctx context.Context, key string) (*Entry, error) {
	var e Entry
	var typ, outcome string
	err := l.pool.QueryRow(ctx,
		`SELECT key, event_id, notification_type, customer_id, recipient, outcome, error, created_at, updated_at
		 FROM email_dispatch_log WHERE key = $1`, key,
	).Scan(&e.Key, &e.EventID, &typ, &e.CustomerID, &e.Recipient, &outcome, &e.Error, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrEntryNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get dispatch entry: %w", err)
	}
	e.Type = Type(typ)
	e.Outcome = Outcome(outcome)
	return &e, nil
}
