// Package storage provides the durable key/value layer behind layouts,
// templates and uploaded files.
//
// Every record is an opaque byte slice stored under a slash-separated key
// such as "layouts/<file_id>_<filename>_layout.json". A [Keyer] builds those
// keys; [ScopedKeyer] prefixes them so several tenants can share one backend.
//
// # Engines
//
//   - [FileStore]: one file per key below a root directory (the default)
//   - [MemoryStore]: process-local map, for tests and throwaway runs
//   - [SQLStore]: a kv table in SQLite (modernc.org/sqlite)
//   - [PostgresStore]: the same table in PostgreSQL (pgx)
//   - [RedisStore]: plain Redis strings
//   - [MongoStore]: one document per key
//
// [Open] picks an engine from a [Config].
//
// Writes are last-writer-wins. No engine coordinates writers across
// processes.
package storage

import "context"

// Store is a flat key/value store.
type Store interface {
	// Get returns the value for key. A missing key is not an error: it
	// returns (nil, false, nil).
	Get(ctx context.Context, key string) ([]byte, bool, error)

	// Put stores data under key, replacing any existing value.
	Put(ctx context.Context, key string, data []byte) error

	// Exists reports whether key is present.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes key. Deleting a missing key succeeds.
	Delete(ctx context.Context, key string) error

	// List returns every key starting with prefix, sorted.
	List(ctx context.Context, prefix string) ([]string, error)

	// Close releases the underlying resources.
	Close() error
}
