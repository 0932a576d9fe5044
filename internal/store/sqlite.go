package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteBackend implements Backend using a single SQLite key/value table.
type SQLiteBackend struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteBackend opens (and creates if needed) the database at dbPath.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	// Open database with WAL mode for better concurrency.
	dsn := dbPath + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	b := &SQLiteBackend{db: db, now: time.Now}
	if err := b.initSchema(); err != nil {
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return b, nil
}

func (b *SQLiteBackend) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS kv (
		key TEXT PRIMARY KEY,
		value BLOB NOT NULL,
		expires_at INTEGER,
		updated_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_kv_expires ON kv(expires_at) WHERE expires_at IS NOT NULL;
	`
	if _, err := b.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Name implements Backend.
func (b *SQLiteBackend) Name() string { return "sqlite" }

func (b *SQLiteBackend) expiry(ttl time.Duration) interface{} {
	if ttl <= 0 {
		return nil
	}
	return b.now().Add(ttl).UnixMilli()
}

// Set implements Backend.
func (b *SQLiteBackend) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	query := `
	INSERT INTO kv (key, value, expires_at, updated_at)
	VALUES (?, ?, ?, ?)
	ON CONFLICT(key) DO UPDATE SET
		value = excluded.value,
		expires_at = excluded.expires_at,
		updated_at = excluded.updated_at`

	return withBusyRetry(ctx, "set", key, func() error {
		_, err := b.db.ExecContext(ctx, query, key, value, b.expiry(ttl), b.now().UnixMilli())
		if err != nil {
			return fmt.Errorf("upsert key: %w", err)
		}
		return nil
	})
}

// Get implements Backend. Expired rows read as missing.
func (b *SQLiteBackend) Get(ctx context.Context, key string) ([]byte, error) {
	query := `SELECT value, expires_at FROM kv WHERE key = ?`

	var value []byte
	var expiresAt sql.NullInt64
	err := b.db.QueryRowContext(ctx, query, key).Scan(&value, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan kv row: %w", err)
	}
	if expiresAt.Valid && expiresAt.Int64 <= b.now().UnixMilli() {
		return nil, ErrNotFound
	}
	return value, nil
}

// Delete implements Backend.
func (b *SQLiteBackend) Delete(ctx context.Context, key string) error {
	return withBusyRetry(ctx, "delete", key, func() error {
		if _, err := b.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
			return fmt.Errorf("delete key: %w", err)
		}
		return nil
	})
}

// Expire implements Backend.
func (b *SQLiteBackend) Expire(ctx context.Context, key string, ttl time.Duration) error {
	query := `UPDATE kv SET expires_at = ?, updated_at = ? WHERE key = ?`
	return withBusyRetry(ctx, "expire", key, func() error {
		result, err := b.db.ExecContext(ctx, query, b.expiry(ttl), b.now().UnixMilli(), key)
		if err != nil {
			return fmt.Errorf("update expires_at: %w", err)
		}
		rows, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("get rows affected: %w", err)
		}
		if rows == 0 {
			slog.Debug("Expire affected 0 rows", "key", key)
		}
		return nil
	})
}

// PurgeExpired deletes rows whose expiry has passed.
func (b *SQLiteBackend) PurgeExpired(ctx context.Context) (int64, error) {
	query := `DELETE FROM kv WHERE expires_at IS NOT NULL AND expires_at <= ?`
	result, err := b.db.ExecContext(ctx, query, b.now().UnixMilli())
	if err != nil {
		return 0, fmt.Errorf("purge expired keys: %w", err)
	}
	return result.RowsAffected()
}

// Ping implements Backend.
func (b *SQLiteBackend) Ping(ctx context.Context) error {
	return b.db.PingContext(ctx)
}

// Close implements Backend.
func (b *SQLiteBackend) Close() error {
	if err := b.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}

// withBusyRetry retries op with exponential backoff while SQLite reports
// lock contention.
func withBusyRetry(ctx context.Context, op, key string, fn func() error) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	var err error
	for i := 0; i < maxRetries; i++ {
		err = fn()
		if err == nil {
			return nil
		}
		if !isSQLiteConflictError(err) || i == maxRetries-1 {
			break
		}

		delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms, 200ms
		slog.Debug("SQLite busy, retrying",
			"op", op,
			"key", key,
			"attempt", i+1,
			"delay", delay)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
	return err
}
