package db

import (
	"context"
	"fmt"
	"time"

	"github.com/bohemiyan/insights-rbac/internal/config"
	"github.com/redis/go-redis/v9"
)

// NewRedisClient returns a client for the grants cache, or nil when the cache is disabled.
// The server must answer a PING within three seconds.
func NewRedisClient(ctx context.Context, cfg *config.Config) (*redis.Client, error) {
	if !cfg.RedisEnabled {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:        cfg.RedisAddr(),
		Password:    cfg.RedisPassword,
		DB:          cfg.RedisDB,
		DialTimeout: 3 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to reach redis at %s: %w", cfg.RedisAddr(), err)
	}

	return client, nil
}
