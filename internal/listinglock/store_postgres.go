package listinglock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// PostgresSchema enforces one active lock per SKU with a partial unique index.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS listing_locks (
	id                UUID PRIMARY KEY,
	sku               TEXT NOT NULL,
	locked_platform   TEXT NOT NULL,
	locked_account_id TEXT NOT NULL,
	reason            TEXT NOT NULL DEFAULT '',
	is_active         BOOLEAN NOT NULL DEFAULT TRUE,
	locked_at         TIMESTAMPTZ NOT NULL,
	unlocked_at       TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS listing_locks_one_active_idx ON listing_locks (sku) WHERE is_active;
CREATE INDEX IF NOT EXISTS listing_locks_active_locked_at_idx ON listing_locks (locked_at) WHERE is_active;
`

const uniqueViolation = "23505"

// DBTX is satisfied by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore persists locks in PostgreSQL.
type PostgresStore struct {
	db DBTX
}

// NewPostgresStore constructs the store.
func NewPostgresStore(db DBTX) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate applies PostgresSchema.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("listinglock: migrate postgres: %w", err)
	}
	return nil
}

func (s *PostgresStore) TryInsert(ctx context.Context, lock Lock) (bool, error) {
	_, err := s.db.Exec(ctx, `INSERT INTO listing_locks (id, sku, locked_platform, locked_account_id, reason, is_active, locked_at)
VALUES ($1, $2, $3, $4, $5, TRUE, $6)`,
		lock.ID, lock.SKU, lock.Platform, lock.AccountID, lock.Reason, lock.LockedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

const selectLockColumns = `SELECT id::text, sku, locked_platform, locked_account_id, reason, is_active, locked_at, unlocked_at FROM listing_locks`

func (s *PostgresStore) Active(ctx context.Context, sku string) (Lock, error) {
	row := s.db.QueryRow(ctx, selectLockColumns+` WHERE sku = $1 AND is_active`, sku)
	lock, err := scanLock(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return Lock{}, ErrNoActiveLock
	}
	return lock, err
}

func (s *PostgresStore) Deactivate(ctx context.Context, sku, lockID string, at time.Time) (bool, error) {
	tag, err := s.db.Exec(ctx, `UPDATE listing_locks SET is_active = FALSE, unlocked_at = $2
WHERE sku = $1 AND is_active AND ($3 = '' OR id::text = $3)`, sku, at, lockID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) ListActiveBefore(ctx context.Context, cutoff time.Time) ([]Lock, error) {
	rows, err := s.db.Query(ctx, selectLockColumns+` WHERE is_active AND locked_at < $1 ORDER BY locked_at`, cutoff)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lock
	for rows.Next() {
		lock, err := scanLock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lock)
	}
	return out, rows.Err()
}

func scanLock(row pgx.Row) (Lock, error) {
	var lock Lock
	if err := row.Scan(&lock.ID, &lock.SKU, &lock.Platform, &lock.AccountID, &lock.Reason,
		&lock.IsActive, &lock.LockedAt, &lock.UnlockedAt); err != nil {
		return Lock{}, err
	}
	lock.LockedAt = lock.LockedAt.UTC()
	return lock, nil
}
