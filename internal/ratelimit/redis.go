package ratelimit

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// RedisLimiter is a fixed-window counter shared by every API instance.
// Redis failures fail open.
type RedisLimiter struct {
	client  *redis.Client
	log     *zap.Logger
	prefix  string
	timeout time.Duration
}

func NewRedisLimiter(client *redis.Client, log *zap.Logger) *RedisLimiter {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisLimiter{
		client:  client,
		log:     log,
		prefix:  "sitecraft:ratelimit:",
		timeout: 250 * time.Millisecond,
	}
}

// Connect dials and pings Redis.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{Addr: addr, Password: password, DB: db})

	pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := client.Ping(pctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return client, nil
}

func (rl *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) Decision {
	if limit <= 0 {
		return Decision{Allowed: true}
	}
	if window <= 0 {
		window = time.Minute
	}

	ctx, cancel := context.WithTimeout(ctx, rl.timeout)
	defer cancel()

	redisKey := rl.prefix + key
	counter, err := rl.client.Incr(ctx, redisKey).Result()
	if err != nil {
		rl.log.Warn("rate limiter incr failed", zap.Error(err))
		return Decision{Allowed: true, Remaining: limit}
	}
	if counter == 1 {
		if err := rl.client.Expire(ctx, redisKey, window).Err(); err != nil {
			rl.log.Warn("rate limiter expire failed", zap.Error(err))
		}
	}

	ttl, err := rl.client.TTL(ctx, redisKey).Result()
	if err != nil || ttl <= 0 {
		ttl = window
	}

	remaining := limit - int(counter)
	if remaining < 0 {
		remaining = 0
	}
	return Decision{
		Allowed:   int(counter) <= limit,
		Remaining: remaining,
		ResetAt:   time.Now().Add(ttl),
	}
}

func (rl *RedisLimiter) Close() error {
	return rl.client.Close()
}
