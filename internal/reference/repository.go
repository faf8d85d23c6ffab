package reference

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema creates the reference tables owned by the catalogue tooling.
const Schema = `
CREATE TABLE IF NOT EXISTS hs_tariff_rates (
	hs_code    TEXT PRIMARY KEY,
	base_rate  DOUBLE PRECISION NOT NULL CHECK (base_rate >= 0),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS additional_tariffs (
	origin_country  TEXT PRIMARY KEY,
	additional_rate DOUBLE PRECISION NOT NULL CHECK (additional_rate >= 0),
	is_active       BOOLEAN NOT NULL DEFAULT TRUE,
	updated_at      TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS shipping_weight_tiers (
	weight_upper_bound DOUBLE PRECISION PRIMARY KEY,
	estimated_shipping DOUBLE PRECISION NOT NULL CHECK (estimated_shipping >= 0)
);
`

// Querier is the subset of pgxpool.Pool used by the repository.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// PostgresRepository loads reference tables from PostgreSQL.
type PostgresRepository struct {
	db Querier
}

// NewPostgresRepository constructs the repository.
func NewPostgresRepository(db Querier) *PostgresRepository {
	return &PostgresRepository{db: db}
}

// Migrate applies Schema.
func (r *PostgresRepository) Migrate(ctx context.Context) error {
	if _, err := r.db.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("reference: migrate: %w", err)
	}
	return nil
}

// LoadSnapshot reads all three tables into a Snapshot.
func (r *PostgresRepository) LoadSnapshot(ctx context.Context) (*Snapshot, error) {
	tariffs, err := r.loadTariffs(ctx)
	if err != nil {
		return nil, err
	}
	additional, err := r.loadAdditional(ctx)
	if err != nil {
		return nil, err
	}
	tiers, err := r.loadTiers(ctx)
	if err != nil {
		return nil, err
	}
	return NewSnapshot(tariffs, additional, tiers), nil
}

func (r *PostgresRepository) loadTariffs(ctx context.Context) (map[string]float64, error) {
	rows, err := r.db.Query(ctx, `SELECT hs_code, base_rate FROM hs_tariff_rates`)
	if err != nil {
		return nil, fmt.Errorf("reference: load tariffs: %w", err)
	}
	defer rows.Close()

	out := make(map[string]float64)
	for rows.Next() {
		var code string
		var rate float64
		if err := rows.Scan(&code, &rate); err != nil {
			return nil, fmt.Errorf("reference: scan tariff: %w", err)
		}
		out[code] = rate
	}
	return out, rows.Err()
}

func (r *PostgresRepository) loadAdditional(ctx context.Context) ([]AdditionalTariff, error) {
	rows, err := r.db.Query(ctx, `SELECT origin_country, additional_rate, is_active FROM additional_tariffs`)
	if err != nil {
		return nil, fmt.Errorf("reference: load additional tariffs: %w", err)
	}
	defer rows.Close()

	var out []AdditionalTariff
	for rows.Next() {
		var row AdditionalTariff
		if err := rows.Scan(&row.OriginCountry, &row.Rate, &row.Active); err != nil {
			return nil, fmt.Errorf("reference: scan additional tariff: %w", err)
		}
		out = append(out, row)
	}
	return out, rows.Err()
}

func (r *PostgresRepository) loadTiers(ctx context.Context) ([]WeightTier, error) {
	rows, err := r.db.Query(ctx, `SELECT weight_upper_bound, estimated_shipping FROM shipping_weight_tiers ORDER BY weight_upper_bound`)
	if err != nil {
		return nil, fmt.Errorf("reference: load weight tiers: %w", err)
	}
	defer rows.Close()

	var out []WeightTier
	for rows.Next() {
		var tier WeightTier
		if err := rows.Scan(&tier.WeightBand, &tier.EstimatedShipping); err != nil {
			return nil, fmt.Errorf("reference: scan weight tier: %w", err)
		}
		out = append(out, tier)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("reference: weight tiers: %w", ErrNotFound)
	}
	return out, nil
}
