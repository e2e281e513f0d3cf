package storage

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	sberrors "github.com/matzehuels/sheetblocks/pkg/errors"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS kv (
	key        TEXT PRIMARY KEY,
	value      BYTEA NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// PostgresConfig tunes the connection pool.
type PostgresConfig struct {
	DSN             string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
	MaxConnIdleTime time.Duration
	DialTimeout     time.Duration
}

// DefaultPostgresConfig returns pool settings for dsn.
func DefaultPostgresConfig(dsn string) PostgresConfig {
	return PostgresConfig{
		DSN:             dsn,
		MaxConns:        10,
		MinConns:        1,
		MaxConnLifetime: 30 * time.Minute,
		MaxConnIdleTime: 5 * time.Minute,
		DialTimeout:     3 * time.Second,
	}
}

// PostgresStore keeps records in a PostgreSQL table through a pgx pool.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects, pings and ensures the kv table exists.
func NewPostgresStore(ctx context.Context, cfg PostgresConfig) (*PostgresStore, error) {
	pc, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "parse postgres dsn")
	}
	if cfg.MaxConns > 0 {
		pc.MaxConns = cfg.MaxConns
	}
	pc.MinConns = cfg.MinConns
	pc.MaxConnLifetime = cfg.MaxConnLifetime
	pc.MaxConnIdleTime = cfg.MaxConnIdleTime
	pc.ConnConfig.RuntimeParams["application_name"] = "sheetblocks"

	var pool *pgxpool.Pool
	err = RetryWithBackoff(ctx, func() error {
		dialCtx := ctx
		if cfg.DialTimeout > 0 {
			var cancel context.CancelFunc
			dialCtx, cancel = context.WithTimeout(ctx, cfg.DialTimeout)
			defer cancel()
		}
		p, err := pgxpool.NewWithConfig(dialCtx, pc)
		if err != nil {
			return err
		}
		if err := p.Ping(dialCtx); err != nil {
			p.Close()
			return Retryable(err)
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "connect to postgres")
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "create kv table")
	}
	return &PostgresStore{pool: pool}, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	var data []byte
	err := s.pool.QueryRow(ctx, `SELECT value FROM kv WHERE key = $1`, key).Scan(&data)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, sberrors.Wrap(sberrors.ErrCodeStorage, err, "read %s", key)
	}
	return data, true, nil
}

// Put implements Store.
func (s *PostgresStore) Put(ctx context.Context, key string, data []byte) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO kv (key, value, updated_at) VALUES ($1, $2, now())
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
		key, data)
	if err != nil {
		return sberrors.Wrap(sberrors.ErrCodeStorage, err, "write %s", key)
	}
	return nil
}

// Exists implements Store.
func (s *PostgresStore) Exists(ctx context.Context, key string) (bool, error) {
	var ok bool
	err := s.pool.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM kv WHERE key = $1)`, key).Scan(&ok)
	if err != nil {
		return false, sberrors.Wrap(sberrors.ErrCodeStorage, err, "stat %s", key)
	}
	return ok, nil
}

// Delete implements Store.
func (s *PostgresStore) Delete(ctx context.Context, key string) error {
	if _, err := s.pool.Exec(ctx, `DELETE FROM kv WHERE key = $1`, key); err != nil {
		return sberrors.Wrap(sberrors.ErrCodeStorage, err, "delete %s", key)
	}
	return nil
}

// List implements Store.
func (s *PostgresStore) List(ctx context.Context, prefix string) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT key FROM kv WHERE starts_with(key, $1) ORDER BY key`, prefix)
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "list %s", prefix)
	}
	keys, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "list %s", prefix)
	}
	return keys, nil
}

// Close closes the pool.
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

var _ Store = (*PostgresStore)(nil)
