package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"
	"unicode/utf8"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	sberrors "github.com/matzehuels/sheetblocks/pkg/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BLOB NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLStore keeps records in a single SQLite table. The DSN is a file path
// or ":memory:".
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (and if needed creates) a SQLite database.
func NewSQLStore(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "open sqlite %s", dsn)
	}
	// One connection: ":memory:" databases are per connection, and SQLite
	// serializes writers anyway.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "create kv table")
	}
	return &SQLStore{db: db}, nil
}

// Get implements Store.
func (s *SQLStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, `SELECT value FROM kv WHERE key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, sberrors.Wrap(sberrors.ErrCodeStorage, err, "read %s", key)
	}
	return data, true, nil
}

// Put implements Store.
func (s *SQLStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, data, time.Now().Unix())
	if err != nil {
		return sberrors.Wrap(sberrors.ErrCodeStorage, err, "write %s", key)
	}
	return nil
}

// Exists implements Store.
func (s *SQLStore) Exists(ctx context.Context, key string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM kv WHERE key = ?`, key).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, sberrors.Wrap(sberrors.ErrCodeStorage, err, "stat %s", key)
	}
	return true, nil
}

// Delete implements Store.
func (s *SQLStore) Delete(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM kv WHERE key = ?`, key); err != nil {
		return sberrors.Wrap(sberrors.ErrCodeStorage, err, "delete %s", key)
	}
	return nil
}

// List implements Store.
func (s *SQLStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT key FROM kv WHERE substr(key, 1, ?) = ? ORDER BY key`,
		utf8.RuneCountInString(prefix), prefix)
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "list %s", prefix)
	}
	defer rows.Close()

	var keys []string
	for rows.Next() {
		var k string
		if err := rows.Scan(&k); err != nil {
			return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "list %s", prefix)
		}
		keys = append(keys, k)
	}
	if err := rows.Err(); err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "list %s", prefix)
	}
	return keys, nil
}

// Close closes the database.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

var _ Store = (*SQLStore)(nil)
