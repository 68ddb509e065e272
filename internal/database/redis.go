package database

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/questlog-app/questlog/internal/config"
)

// redisPingTimeout bounds the startup connectivity check. Unlike MariaDB
// there is no retry loop: Redis starts near-instantly, and only session
// state lives there, so failing fast is the better signal.
const redisPingTimeout = 5 * time.Second

// NewRedis creates the Redis client backing session storage. The URL form
// (redis://[user:pass@]host:port/db) carries auth and database selection,
// so a single env var configures the whole connection.
func NewRedis(cfg config.RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis URL: %w", err)
	}
	opts.ClientName = "questlog"

	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), redisPingTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}

	return client, nil
}
