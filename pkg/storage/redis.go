package storage

import (
	"context"
	"errors"
	"sort"
	"strings"

	"github.com/redis/go-redis/v9"

	sberrors "github.com/matzehuels/sheetblocks/pkg/errors"
)

// RedisStore keeps each record as a Redis string. Values never expire.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore connects to the server named by a redis:// URL, or a bare
// host:port address.
func NewRedisStore(ctx context.Context, addr string) (*RedisStore, error) {
	opts, err := redisOptions(addr)
	if err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "parse redis address")
	}
	client := redis.NewClient(opts)

	err = RetryWithBackoff(ctx, func() error {
		if err := client.Ping(ctx).Err(); err != nil {
			return Retryable(err)
		}
		return nil
	})
	if err != nil {
		_ = client.Close()
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "connect to redis")
	}
	return &RedisStore{client: client}, nil
}

func redisOptions(addr string) (*redis.Options, error) {
	if strings.Contains(addr, "://") {
		return redis.ParseURL(addr)
	}
	return &redis.Options{Addr: addr}, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, key string) ([]byte, bool, error) {
	data, err := s.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, sberrors.Wrap(sberrors.ErrCodeStorage, err, "read %s", key)
	}
	return data, true, nil
}

// Put implements Store.
func (s *RedisStore) Put(ctx context.Context, key string, data []byte) error {
	if err := s.client.Set(ctx, key, data, 0).Err(); err != nil {
		return sberrors.Wrap(sberrors.ErrCodeStorage, err, "write %s", key)
	}
	return nil
}

// Exists implements Store.
func (s *RedisStore) Exists(ctx context.Context, key string) (bool, error) {
	n, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return false, sberrors.Wrap(sberrors.ErrCodeStorage, err, "stat %s", key)
	}
	return n > 0, nil
}

// Delete implements Store.
func (s *RedisStore) Delete(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, key).Err(); err != nil {
		return sberrors.Wrap(sberrors.ErrCodeStorage, err, "delete %s", key)
	}
	return nil
}

// List scans the keyspace with a MATCH pattern built from prefix.
func (s *RedisStore) List(ctx context.Context, prefix string) ([]string, error) {
	var keys []string
	iter := s.client.Scan(ctx, 0, globEscape(prefix)+"*", 256).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return nil, sberrors.Wrap(sberrors.ErrCodeStorage, err, "list %s", prefix)
	}
	sort.Strings(keys)
	return compactSorted(keys), nil
}

// Close closes the client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

// globEscape quotes the characters Redis MATCH patterns treat specially.
func globEscape(s string) string {
	var b strings.Builder
	for _, r := range s {
		switch r {
		case '*', '?', '[', ']', '\\':
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// compactSorted drops adjacent duplicates; SCAN may return a key twice.
func compactSorted(keys []string) []string {
	out := keys[:0]
	for i, k := range keys {
		if i > 0 && k == keys[i-1] {
			continue
		}
		out = append(out, k)
	}
	return out
}

var _ Store = (*RedisStore)(nil)
