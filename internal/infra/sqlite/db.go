// Package sqlite provides the SQLite-backed key-value engine for focusbot.
// Uses WAL mode for concurrent reads and crash-safe writes.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver (no CGO required)

	"github.com/focusgroup/focusbot/internal/domain"
)

// DB wraps a SQLite connection with WAL mode and migrations.
// It implements domain.KV.
type DB struct {
	db *sql.DB
}

var _ domain.KV = (*DB)(nil)

// Open creates or opens the SQLite database at dir/state.db.
// Enables WAL mode and a 5-second busy timeout.
func Open(dir string) (*DB, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	dbPath := filepath.Join(dir, "state.db")
	dsn := dbPath + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	// SQLite is single-writer
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return d, nil
}

// Close cleanly shuts down the database.
func (d *DB) Close() error {
	return d.db.Close()
}

// Ping checks database connectivity.
func (d *DB) Ping() error {
	return d.db.Ping()
}

// migrate runs idempotent schema migrations.
func (d *DB) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS kv (
			key        TEXT PRIMARY KEY,
			value      TEXT NOT NULL,
			updated_at INTEGER NOT NULL
		)`,
	}

	for _, m := range migrations {
		if _, err := d.db.Exec(m); err != nil {
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}

// ─── Key-Value ──────────────────────────────────────────────────────────────

// Get retrieves a value by key. Returns domain.ErrKeyNotFound if absent.
func (d *DB) Get(ctx context.Context, key string) (string, error) {
	var value string
	err := d.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", domain.ErrKeyNotFound
	}
	return value, err
}

// Set stores a key-value pair, replacing any previous value.
func (d *DB) Set(ctx context.Context, key, value string) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET value=excluded.value, updated_at=excluded.updated_at`,
		key, value, time.Now().UnixMilli(),
	)
	return err
}

// Delete removes a key. Deleting a missing key is not an error.
func (d *DB) Delete(ctx context.Context, key string) error {
	_, err := d.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key)
	return err
}

// ListKeys returns keys with the given prefix in ascending order.
func (d *DB) ListKeys(ctx context.Context, prefix string, limit int) ([]string, error) {
	query := `SELECT key FROM kv WHERE key LIKE ? ESCAPE '\' ORDER BY key ASC`
	args := []any{escapeLike(prefix) + "%"}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, rows.Err()
}

// CompareAndDelete removes key only while it still holds expected.
// A single DELETE statement, so the check and the removal cannot interleave.
func (d *DB) CompareAndDelete(ctx context.Context, key, expected string) (bool, error) {
	result, err := d.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ? AND value = ?`, key, expected)
	if err != nil {
		return false, err
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

// Count returns the number of stored keys with the given prefix.
func (d *DB) Count(ctx context.Context, prefix string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM kv WHERE key LIKE ? ESCAPE '\'`, escapeLike(prefix)+"%",
	).Scan(&n)
	return n, err
}

// ─── Helpers ────────────────────────────────────────────────────────────────

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
