package account

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNotFound indicates no account matches the lookup.
var ErrNotFound = errors.New("account not found")

// Repository persists account profiles.
type Repository interface {
	Create(ctx context.Context, acct Account) error
	FindByID(ctx context.Context, id string) (Account, error)
	FindByPhone(ctx context.Context, phone string) (Account, error)
	UpdateDevice(ctx context.Context, id, deviceID string) error
	UpdateTokenVersion(ctx context.Context, id string, version int) error
	SoftDelete(ctx context.Context, id string) error
}

// PostgresRepository stores accounts in PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts an account record.
func (r *PostgresRepository) Create(ctx context.Context, acct Account) error {
	_, err := r.db.Exec(ctx, `INSERT INTO accounts
        (id, phone, display_name, role, pin_hash, device_id, token_version, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		acct.ID, acct.Phone, acct.DisplayName, acct.Role, acct.PINHash,
		acct.DeviceID, acct.TokenVersion, acct.Status, acct.CreatedAt.UTC())
	return err
}

// FindByID fetches an account by identifier.
func (r *PostgresRepository) FindByID(ctx context.Context, id string) (Account, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectAccount+` WHERE id = $1`, id))
}

// FindByPhone fetches an account by phone number.
func (r *PostgresRepository) FindByPhone(ctx context.Context, phone string) (Account, error) {
	return r.scanOne(r.db.QueryRow(ctx, selectAccount+` WHERE phone = $1`, phone))
}

// UpdateDevice binds a device to the account.
func (r *PostgresRepository) UpdateDevice(ctx context.Context, id, deviceID string) error {
	_, err := r.db.Exec(ctx, `UPDATE accounts SET device_id = $1 WHERE id = $2`, deviceID, id)
	return err
}

// UpdateTokenVersion bumps the token version, invalidating issued tokens.
func (r *PostgresRepository) UpdateTokenVersion(ctx context.Context, id string, version int) error {
	_, err := r.db.Exec(ctx, `UPDATE accounts SET token_version = $1 WHERE id = $2`, version, id)
	return err
}

// SoftDelete flags the account deleted without removing the row.
func (r *PostgresRepository) SoftDelete(ctx context.Context, id string) error {
	_, err := r.db.Exec(ctx, `UPDATE accounts SET status = $1 WHERE id = $2`, StatusDeleted, id)
	return err
}

const selectAccount = `SELECT id, phone, display_name, role, pin_hash, device_id,
    token_version, status, created_at FROM accounts`

func (r *PostgresRepository) scanOne(row pgx.Row) (Account, error) {
	var a Account
	var createdAt time.Time
	if err := row.Scan(&a.ID, &a.Phone, &a.DisplayName, &a.Role, &a.PINHash,
		&a.DeviceID, &a.TokenVersion, &a.Status, &createdAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Account{}, ErrNotFound
		}
		return Account{}, err
	}
	a.CreatedAt = createdAt.UTC()
	return a, nil
}
