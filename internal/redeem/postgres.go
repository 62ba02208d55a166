package redeem

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository keeps codes in redeem_codes and per-account claims in
// redeem_claims with a unique (code, account_id) key. A claim inserts the
// claim row and bumps the guarded use counter in one transaction, so two
// racing claimants can never both pass the checks.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create mints a new code.
func (r *PostgresRepository) Create(ctx context.Context, code Code) error {
	if code.CreatedAt.IsZero() {
		code.CreatedAt = time.Now().UTC()
	}
	tag, err := r.db.Exec(ctx, `INSERT INTO redeem_codes (code, amount, max_uses, times_used, created_at)
        VALUES ($1, $2, $3, 0, $4) ON CONFLICT (code) DO NOTHING`,
		code.Code, code.Amount, code.MaxUses, code.CreatedAt.UTC())
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrCodeExists
	}
	return nil
}

// Get fetches a code and its claim set.
func (r *PostgresRepository) Get(ctx context.Context, codeStr string) (Code, error) {
	var code Code
	var createdAt time.Time
	err := r.db.QueryRow(ctx, `SELECT code, amount, max_uses, times_used, created_at
        FROM redeem_codes WHERE code = $1`, codeStr).
		Scan(&code.Code, &code.Amount, &code.MaxUses, &code.TimesUsed, &createdAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Code{}, ErrNotFound
	}
	if err != nil {
		return Code{}, err
	}
	code.CreatedAt = createdAt.UTC()
	code.ClaimedBy = make(map[string]time.Time)

	rows, err := r.db.Query(ctx, `SELECT account_id, claimed_at FROM redeem_claims WHERE code = $1`, codeStr)
	if err != nil {
		return Code{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var accountID string
		var claimedAt time.Time
		if err := rows.Scan(&accountID, &claimedAt); err != nil {
			return Code{}, err
		}
		code.ClaimedBy[accountID] = claimedAt.UTC()
	}
	return code, rows.Err()
}

// Claim consumes one use for accountID. The unique claim key kills repeat
// claims and the guarded counter update kills over-use; either failing rolls
// the whole claim back.
func (r *PostgresRepository) Claim(ctx context.Context, codeStr, accountID string) (int64, error) {
	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return 0, err
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	tag, err := tx.Exec(ctx, `INSERT INTO redeem_claims (code, account_id, claimed_at)
        VALUES ($1, $2, $3) ON CONFLICT (code, account_id) DO NOTHING`,
		codeStr, accountID, time.Now().UTC())
	if err != nil {
		return 0, err
	}
	if tag.RowsAffected() == 0 {
		return 0, ErrCodeUnavailable
	}

	var amount int64
	err = tx.QueryRow(ctx, `UPDATE redeem_codes SET times_used = times_used + 1
        WHERE code = $1 AND times_used < max_uses RETURNING amount`, codeStr).Scan(&amount)
	if errors.Is(err, pgx.ErrNoRows) {
		// Either the code does not exist or its uses ran out; the deferred
		// rollback discards the claim row.
		var exists bool
		if probeErr := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM redeem_codes WHERE code = $1)`,
			codeStr).Scan(&exists); probeErr == nil && !exists {
			return 0, ErrNotFound
		}
		return 0, ErrCodeUnavailable
	}
	if err != nil {
		return 0, err
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, err
	}
	return amount, nil
}
