package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// Open builds the StateStore named by backend.
func Open(ctx context.Context, backend, dsn, namespace string) (StateStore, error) {
	switch backend {
	case "memory":
		return NewMemoryStore(), nil
	case "sqlite", "postgres":
		return NewSQLStore(backend, dsn, namespace)
	case "redis":
		opts, err := redis.ParseURL(dsn)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := redis.NewClient(opts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("redis connection failed: %w", err)
		}
		return NewRedisStore(client, namespace), nil
	case "mongo":
		db, err := ConnectMongoDB(ctx, dsn, "storefront")
		if err != nil {
			return nil, err
		}
		return NewMongoStore(db, namespace), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
}
