package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/alexedwards/scs/sqlite3store"
	"github.com/redis/go-redis/v9"

	"github.com/nutrinani/nutrinani/internal/config"
)

var ErrUnknownBackend = errors.New("storage: unknown backend")

// Open builds the Store selected by cfg.Storage. sqlDB is only used by the
// sqlite backend and must already contain the sessions table. The returned
// close function releases background cleanup and connections.
func Open(ctx context.Context, cfg config.Demo, sqlDB *sql.DB) (Store, func() error, error) {
	switch cfg.Storage {
	case config.DemoStorageSQLite, "":
		if sqlDB == nil {
			return nil, nil, errors.New("storage: sqlite backend requires a database")
		}
		st := sqlite3store.New(sqlDB)
		return NewSCSStore(st), func() error { st.StopCleanup(); return nil }, nil

	case config.DemoStorageMemory:
		return NewMemoryStore(), func() error { return nil }, nil

	case config.DemoStorageRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err := client.Ping(ctx).Err(); err != nil {
			_ = client.Close()
			return nil, nil, fmt.Errorf("storage: redis ping %s: %w", cfg.RedisAddr, err)
		}
		return NewRedisStore(client), client.Close, nil
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownBackend, cfg.Storage)
}
