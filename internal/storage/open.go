package storage

import (
	"context"
	"database/sql"
	"fmt"

	"whats-cooking/internal/config"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Open builds the Store selected by cfg.Storage.Driver. db is only used by
// the sqlite driver. The returned close func releases driver resources and
// is never nil.
func Open(ctx context.Context, cfg *config.Config, db *sql.DB) (Store, func() error, error) {
	noop := func() error { return nil }

	switch cfg.Storage.Driver {
	case "memory":
		log.Warn("Using in-memory storage: overrides and plans will not survive a restart")
		return NewMemoryStore(), noop, nil
	case "file":
		s, err := NewFileStore(cfg.Storage.Dir)
		if err != nil {
			return nil, noop, err
		}
		return s, noop, nil
	case "sqlite":
		if db == nil {
			return nil, noop, fmt.Errorf("sqlite storage driver requires a database")
		}
		return NewSQLiteStore(db), noop, nil
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     fmt.Sprintf("%s:%d", cfg.Redis.Host, cfg.Redis.Port),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			rdb.Close()
			return nil, noop, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Infof("Connected to Redis at %s:%d", cfg.Redis.Host, cfg.Redis.Port)
		s := NewRedisStore(rdb, cfg.Redis.Prefix)
		return s, s.Close, nil
	default:
		return nil, noop, fmt.Errorf("%w: %s", ErrUnsupportedDriver, cfg.Storage.Driver)
	}
}
