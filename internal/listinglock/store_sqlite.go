package listinglock

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var sqliteSchema string

// SQLiteStore persists locks in a local SQLite file for single-host setups.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens or creates the database at path and applies the schema.
// ":memory:" is accepted for tests.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("listinglock: open sqlite: %w", err)
	}
	// One connection keeps :memory: databases shared and serialises writers.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("listinglock: set busy timeout: %w", err)
	}
	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("listinglock: create schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) TryInsert(ctx context.Context, lock Lock) (bool, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO listing_locks (id, sku, locked_platform, locked_account_id, reason, is_active, locked_at_ns)
		VALUES (?, ?, ?, ?, ?, 1, ?)
	`, lock.ID, lock.SKU, lock.Platform, lock.AccountID, lock.Reason, lock.LockedAt.UnixNano())
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

const sqliteLockColumns = `SELECT id, sku, locked_platform, locked_account_id, reason, is_active, locked_at_ns, unlocked_at_ns FROM listing_locks`

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) Active(ctx context.Context, sku string) (Lock, error) {
	row := s.db.QueryRowContext(ctx, sqliteLockColumns+` WHERE sku = ? AND is_active = 1`, sku)
	lock, err := scanSQLiteLock(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Lock{}, ErrNoActiveLock
	}
	return lock, err
}

func (s *SQLiteStore) Deactivate(ctx context.Context, sku, lockID string, at time.Time) (bool, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE listing_locks SET is_active = 0, unlocked_at_ns = ?
		WHERE sku = ? AND is_active = 1 AND (? = '' OR id = ?)
	`, at.UnixNano(), sku, lockID, lockID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *SQLiteStore) ListActiveBefore(ctx context.Context, cutoff time.Time) ([]Lock, error) {
	rows, err := s.db.QueryContext(ctx, sqliteLockColumns+` WHERE is_active = 1 AND locked_at_ns < ? ORDER BY locked_at_ns`, cutoff.UnixNano())
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lock
	for rows.Next() {
		lock, err := scanSQLiteLock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lock)
	}
	return out, rows.Err()
}

// History returns every lock row for sku, oldest first. It is an audit helper
// for tests and operators; the Store interface does not need it.
func (s *SQLiteStore) History(ctx context.Context, sku string) ([]Lock, error) {
	rows, err := s.db.QueryContext(ctx, sqliteLockColumns+` WHERE sku = ? ORDER BY locked_at_ns`, sku)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Lock
	for rows.Next() {
		lock, err := scanSQLiteLock(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, lock)
	}
	return out, rows.Err()
}

func scanSQLiteLock(row rowScanner) (Lock, error) {
	var (
		lock       Lock
		active     int
		lockedAt   int64
		unlockedAt sql.NullInt64
	)
	if err := row.Scan(&lock.ID, &lock.SKU, &lock.Platform, &lock.AccountID, &lock.Reason,
		&active, &lockedAt, &unlockedAt); err != nil {
		return Lock{}, err
	}
	lock.IsActive = active == 1
	lock.LockedAt = time.Unix(0, lockedAt).UTC()
	if unlockedAt.Valid {
		t := time.Unix(0, unlockedAt.Int64).UTC()
		lock.UnlockedAt = &t
	}
	return lock, nil
}
