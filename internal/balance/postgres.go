package balance

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresStore keeps one row per (account, currency) counter and enforces
// optimistic concurrency with a row version column. It deliberately never
// wraps two counters in one transaction: the contract is per-key atomicity
// only, and the orchestrator's compensation logic depends on that.
type PostgresStore struct {
	db *pgxpool.Pool
}

// NewPostgresStore builds a store backed by PostgreSQL.
func NewPostgresStore(db *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{db: db}
}

// EnsureAccount inserts zeroed counters for both currencies if absent.
func (s *PostgresStore) EnsureAccount(ctx context.Context, accountID string) error {
	for _, c := range []Currency{PKR, Token} {
		_, err := s.db.Exec(ctx, `INSERT INTO balances (account_id, currency, amount, version)
            VALUES ($1, $2, 0, 0) ON CONFLICT (account_id, currency) DO NOTHING`, accountID, string(c))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
	}
	return nil
}

// Balance reads the committed value of one counter.
func (s *PostgresStore) Balance(ctx context.Context, accountID string, currency Currency) (int64, error) {
	var amount int64
	err := s.db.QueryRow(ctx, `SELECT amount FROM balances WHERE account_id = $1 AND currency = $2`,
		accountID, string(currency)).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrAccountUnknown
	}
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return amount, nil
}

// AtomicUpdate performs the read-apply-conditional-write cycle. The write
// succeeds only when the row version is unchanged since the read; a lost race
// re-reads and retries up to maxAttempts.
func (s *PostgresStore) AtomicUpdate(ctx context.Context, accountID string, currency Currency, fn UpdateFn) (int64, error) {
	for attempt := 0; attempt < maxAttempts; attempt++ {
		var current int64
		var version int64
		err := s.db.QueryRow(ctx, `SELECT amount, version FROM balances WHERE account_id = $1 AND currency = $2`,
			accountID, string(currency)).Scan(&current, &version)
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, ErrAccountUnknown
		}
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}

		next, err := fn(current)
		if err != nil {
			return 0, err
		}

		tag, err := s.db.Exec(ctx, `UPDATE balances SET amount = $1, version = version + 1
            WHERE account_id = $2 AND currency = $3 AND version = $4`,
			next, accountID, string(currency), version)
		if err != nil {
			return 0, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		if tag.RowsAffected() == 1 {
			return next, nil
		}
		// version moved under us, retry
	}
	return 0, ErrConcurrentConflict
}
