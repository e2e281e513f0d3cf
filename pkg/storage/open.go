package storage

import (
	"context"
	"path/filepath"

	"github.com/matzehuels/sheetblocks/pkg/errors"
)

// Supported engine names.
const (
	DriverFile     = "file"
	DriverMemory   = "memory"
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
	DriverMongo    = "mongo"
)

// Drivers lists the engine names accepted by Open.
var Drivers = []string{DriverFile, DriverMemory, DriverSQLite, DriverPostgres, DriverRedis, DriverMongo}

// Config selects and configures an engine.
type Config struct {
	// Driver is one of the Driver* constants. Empty means file.
	Driver string

	// Dir is the root of the file engine and the default location of the
	// SQLite database.
	Dir string

	// DSN is the connection string of the sqlite, postgres, redis and
	// mongo engines.
	DSN string
}

// Open creates the engine named by cfg.Driver.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch cfg.Driver {
	case "", DriverFile:
		if cfg.Dir == "" {
			return nil, errors.InvalidInput("file storage requires a data directory")
		}
		return NewFileStore(cfg.Dir)
	case DriverMemory:
		return NewMemoryStore(), nil
	case DriverSQLite:
		dsn := cfg.DSN
		if dsn == "" {
			if cfg.Dir == "" {
				return nil, errors.InvalidInput("sqlite storage requires a dsn or a data directory")
			}
			dsn = filepath.Join(cfg.Dir, "sheetblocks.db")
		}
		return NewSQLStore(ctx, dsn)
	case DriverPostgres:
		if cfg.DSN == "" {
			return nil, errors.InvalidInput("postgres storage requires a dsn")
		}
		return NewPostgresStore(ctx, DefaultPostgresConfig(cfg.DSN))
	case DriverRedis:
		if cfg.DSN == "" {
			return nil, errors.InvalidInput("redis storage requires an address")
		}
		return NewRedisStore(ctx, cfg.DSN)
	case DriverMongo:
		if cfg.DSN == "" {
			return nil, errors.InvalidInput("mongo storage requires a uri")
		}
		return NewMongoStore(ctx, cfg.DSN)
	default:
		return nil, errors.New(errors.ErrCodeUnsupported, "unknown storage driver %q", cfg.Driver)
	}
}
