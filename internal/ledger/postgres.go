package ledger

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository persists ledger entries in PostgreSQL. The status guard
// lives in the UPDATE predicate so racing settlements cannot both win.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Append inserts one entry.
func (r *PostgresRepository) Append(ctx context.Context, entry Entry) error {
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO ledger_entries
        (id, account_id, type, amount, currency, status, description, related_entity_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9)`,
		entry.ID, entry.AccountID, string(entry.Type), entry.Amount, entry.Currency, string(entry.Status),
		entry.Description, entry.RelatedEntityID, entry.CreatedAt.UTC())
	return err
}

// Get fetches one entry by id.
func (r *PostgresRepository) Get(ctx context.Context, id string) (Entry, error) {
	row := r.db.QueryRow(ctx, `SELECT id, account_id, type, amount, currency, status, description,
        related_entity_id, created_at, updated_at FROM ledger_entries WHERE id = $1`, id)
	return scanEntry(row)
}

// ListByAccount returns up to limit entries for the account, newest first.
func (r *PostgresRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.db.Query(ctx, `SELECT id, account_id, type, amount, currency, status, description,
        related_entity_id, created_at, updated_at FROM ledger_entries
        WHERE account_id = $1 ORDER BY created_at DESC LIMIT $2`, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// UpdateStatus flips the entry status only when it still holds `from`.
func (r *PostgresRepository) UpdateStatus(ctx context.Context, id string, from, to Status) error {
	tag, err := r.db.Exec(ctx, `UPDATE ledger_entries SET status = $1, updated_at = $2
        WHERE id = $3 AND status = $4`, string(to), time.Now().UTC(), id, string(from))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		if _, getErr := r.Get(ctx, id); errors.Is(getErr, ErrNotFound) {
			return ErrNotFound
		}
		return ErrTerminalStatus
	}
	return nil
}

func scanEntry(row pgx.Row) (Entry, error) {
	var e Entry
	var typ, status string
	var createdAt, updatedAt time.Time
	if err := row.Scan(&e.ID, &e.AccountID, &typ, &e.Amount, &e.Currency, &status,
		&e.Description, &e.RelatedEntityID, &createdAt, &updatedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Entry{}, ErrNotFound
		}
		return Entry{}, err
	}
	e.Type = Type(typ)
	e.Status = Status(status)
	e.CreatedAt = createdAt.UTC()
	e.UpdatedAt = updatedAt.UTC()
	return e, nil
}
