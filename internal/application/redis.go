package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"thirdcoast.systems/scribe/internal/config"
)

// OpenRedisWithRetry connects to REDIS_ADDR and pings it with the same backoff as the
// database pool.
func OpenRedisWithRetry(ctx context.Context, conf config.Config) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     conf.RedisAddr,
		Password: conf.RedisPassword,
		DB:       conf.RedisDB,
	})

	retries := max(conf.DatabaseRetries, 1)
	var lastErr error
	for i := range retries {
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := rdb.Ping(pingCtx).Err()
		cancel()
		if err == nil {
			slog.Info("connected to redis", "addr", conf.RedisAddr, "db", conf.RedisDB)
			return rdb, nil
		}
		lastErr = err

		wait := backoff(i)
		slog.Warn("redis ping failed, retrying", "addr", conf.RedisAddr, "attempt", i+1, "retry_in", wait, "error", err)
		if err := sleepCtx(ctx, wait); err != nil {
			_ = rdb.Close()
			return nil, err
		}
	}
	_ = rdb.Close()
	return nil, fmt.Errorf("failed to ping redis after %d attempts: %w", retries, lastErr)
}
