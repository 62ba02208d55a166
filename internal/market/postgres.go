package market

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository persists sell orders. Transitions out of active are
// guarded in the UPDATE predicate, so a racing fulfill and cancel can never
// both succeed.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Create inserts a new active order.
func (r *PostgresRepository) Create(ctx context.Context, order SellOrder) error {
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now().UTC()
	}
	_, err := r.db.Exec(ctx, `INSERT INTO sell_orders
        (id, seller_id, token_amount, price_per_token, status, created_at)
        VALUES ($1, $2, $3, $4, $5, $6)`,
		order.ID, order.SellerID, order.TokenAmount, order.PricePerToken,
		string(order.Status), order.CreatedAt.UTC())
	return err
}

// Get fetches one order.
func (r *PostgresRepository) Get(ctx context.Context, id string) (SellOrder, error) {
	row := r.db.QueryRow(ctx, `SELECT id, seller_id, token_amount, price_per_token, status,
        COALESCE(buyer_id, ''), created_at, COALESCE(completed_at, 'epoch'::timestamptz)
        FROM sell_orders WHERE id = $1`, id)
	return scanOrder(row)
}

// ListOpen returns active orders, oldest first.
func (r *PostgresRepository) ListOpen(ctx context.Context, limit int) ([]SellOrder, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.Query(ctx, `SELECT id, seller_id, token_amount, price_per_token, status,
        COALESCE(buyer_id, ''), created_at, COALESCE(completed_at, 'epoch'::timestamptz)
        FROM sell_orders WHERE status = $1 ORDER BY created_at ASC LIMIT $2`,
		string(StatusActive), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SellOrder
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// Complete flips active → completed, recording the buyer.
func (r *PostgresRepository) Complete(ctx context.Context, id, buyerID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE sell_orders
        SET status = $1, buyer_id = $2, completed_at = $3
        WHERE id = $4 AND status = $5`,
		string(StatusCompleted), buyerID, time.Now().UTC(), id, string(StatusActive))
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyLostRace(ctx, id, "")
	}
	return nil
}

// Cancel flips active → cancelled when the caller is the seller.
func (r *PostgresRepository) Cancel(ctx context.Context, id, callerID string) error {
	tag, err := r.db.Exec(ctx, `UPDATE sell_orders
        SET status = $1, completed_at = $2
        WHERE id = $3 AND status = $4 AND seller_id = $5`,
		string(StatusCancelled), time.Now().UTC(), id, string(StatusActive), callerID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return r.classifyLostRace(ctx, id, callerID)
	}
	return nil
}

// classifyLostRace distinguishes a missing order, a wrong caller and a lost
// status race after a guarded update matched no rows.
func (r *PostgresRepository) classifyLostRace(ctx context.Context, id, callerID string) error {
	order, err := r.Get(ctx, id)
	if err != nil {
		return err
	}
	if callerID != "" && order.SellerID != callerID {
		return ErrNotSeller
	}
	return ErrOrderUnavailable
}

func scanOrder(row pgx.Row) (SellOrder, error) {
	var o SellOrder
	var status string
	var createdAt, completedAt time.Time
	if err := row.Scan(&o.ID, &o.SellerID, &o.TokenAmount, &o.PricePerToken, &status,
		&o.BuyerID, &createdAt, &completedAt); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return SellOrder{}, ErrNotFound
		}
		return SellOrder{}, err
	}
	o.Status = Status(status)
	o.CreatedAt = createdAt.UTC()
	if completedAt.Unix() > 0 {
		o.CompletedAt = completedAt.UTC()
	}
	return o, nil
}
