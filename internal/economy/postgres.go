package economy

import (
	"context"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgresRepository keeps the aggregate as one row; every mutation is a
// single-statement atomic increment so concurrent trades never lose updates.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository builds a repository backed by PostgreSQL, seeding the
// singleton row if absent.
func NewPostgresRepository(ctx context.Context, db *pgxpool.Pool) (*PostgresRepository, error) {
	if _, err := db.Exec(ctx, `INSERT INTO economy (id, circulating_supply, volume_since_adjustment)
        VALUES (1, 0, 0) ON CONFLICT (id) DO NOTHING`); err != nil {
		return nil, err
	}
	return &PostgresRepository{db: db}, nil
}

func (r *PostgresRepository) Snapshot(ctx context.Context) (Aggregate, error) {
	var agg Aggregate
	err := r.db.QueryRow(ctx, `SELECT circulating_supply, volume_since_adjustment
        FROM economy WHERE id = 1`).Scan(&agg.CirculatingSupply, &agg.VolumeSinceAdjustment)
	return agg, err
}

func (r *PostgresRepository) AdjustSupply(ctx context.Context, delta int64) (int64, error) {
	var supply int64
	err := r.db.QueryRow(ctx, `UPDATE economy SET circulating_supply = circulating_supply + $1
        WHERE id = 1 RETURNING circulating_supply`, delta).Scan(&supply)
	return supply, err
}

func (r *PostgresRepository) AddVolume(ctx context.Context, amount int64) (int64, error) {
	var volume int64
	err := r.db.QueryRow(ctx, `UPDATE economy SET volume_since_adjustment = volume_since_adjustment + $1
        WHERE id = 1 RETURNING volume_since_adjustment`, amount).Scan(&volume)
	return volume, err
}

func (r *PostgresRepository) ResetVolumeIfAtLeast(ctx context.Context, threshold int64) (bool, error) {
	tag, err := r.db.Exec(ctx, `UPDATE economy SET volume_since_adjustment = 0
        WHERE id = 1 AND volume_since_adjustment >= $1`, threshold)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() == 1, nil
}
