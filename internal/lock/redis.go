package lock

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const (
	redisLockPrefix   = "lock:v1:"
	defaultLockTTL    = 10 * time.Second
	defaultRetryDelay = 25 * time.Millisecond
	defaultMaxWait    = 5 * time.Second
)

// releaseScript deletes the key only if it still carries our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisLocker coordinates several service instances through SET NX PX.
type RedisLocker struct {
	client     *redis.Client
	ttl        time.Duration
	retryDelay time.Duration
	maxWait    time.Duration
	logger     *slog.Logger
}

// NewRedisLocker builds a RedisLocker. A non-positive ttl falls back to 10s.
func NewRedisLocker(client *redis.Client, ttl time.Duration, logger *slog.Logger) *RedisLocker {
	if ttl <= 0 {
		ttl = defaultLockTTL
	}
	return &RedisLocker{
		client:     client,
		ttl:        ttl,
		retryDelay: defaultRetryDelay,
		maxWait:    defaultMaxWait,
		logger:     logger,
	}
}

// Lock polls until the key is free, maxWait elapses or ctx is done.
func (r *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	redisKey := redisLockPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.maxWait)

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.retryDelay):
		}
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := releaseScript.Run(releaseCtx, r.client, []string{redisKey}, token).Err(); err != nil && r.logger != nil {
			r.logger.Warn("release lock failed", slog.String("key", key), slog.Any("error", err))
		}
	}, nil
}
