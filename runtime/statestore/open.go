package statestore

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/redis/go-redis/v9"
)

// Backends accepted by Open.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
)

// DefaultSQLitePath is used when the sqlite backend has no URL.
const DefaultSQLitePath = ".bluestar/runs.db"

// Open builds the store named by backend. url is a Redis URL, a SQLite file
// path or a PostgreSQL DSN depending on the backend.
func Open(ctx context.Context, backend, url string) (Store, error) {
	switch backend {
	case "", BackendMemory:
		return NewMemoryStore(), nil
	case BackendRedis:
		if url == "" {
			url = "redis://localhost:6379/0"
		}
		opts, err := redis.ParseURL(url)
		if err != nil {
			return nil, fmt.Errorf("parse redis URL: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, fmt.Errorf("connect to redis: %w", err)
		}
		return NewRedisStore(client), nil
	case BackendSQLite:
		if url == "" {
			url = DefaultSQLitePath
		}
		if err := os.MkdirAll(filepath.Dir(url), 0o750); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
		return OpenSQLite(ctx, url)
	case BackendPostgres:
		if url == "" {
			return nil, fmt.Errorf("postgres store needs a DSN (BLUESTAR_STORE_URL)")
		}
		return OpenPostgres(ctx, url)
	default:
		return nil, fmt.Errorf("unknown store backend %q (want memory, redis, sqlite or postgres)", backend)
	}
}
