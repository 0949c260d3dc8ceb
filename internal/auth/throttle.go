package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LoginThrottle limits repeated failed logins for the same account.
type LoginThrottle interface {
	Allow(ctx context.Context, email string) bool
	RecordFailure(ctx context.Context, email string)
	Reset(ctx context.Context, email string)
}

// RedisLoginThrottle counts failures in Redis with a fixed window per email.
// Redis errors fail open and are logged.
type RedisLoginThrottle struct {
	client      *redis.Client
	maxAttempts int64
	window      time.Duration
	logger      *zap.Logger
}

// NewRedisLoginThrottle builds a throttle. A nil client or non-positive limit disables it.
func NewRedisLoginThrottle(client *redis.Client, maxAttempts int, window time.Duration, logger *zap.Logger) *RedisLoginThrottle {
	if window <= 0 {
		window = 15 * time.Minute
	}
	return &RedisLoginThrottle{client: client, maxAttempts: int64(maxAttempts), window: window, logger: logger}
}

func throttleKey(email string) string {
	return "login:failures:" + strings.ToLower(strings.TrimSpace(email))
}

func (t *RedisLoginThrottle) enabled() bool {
	return t != nil && t.client != nil && t.maxAttempts > 0
}

// Allow reports whether another login attempt is permitted.
func (t *RedisLoginThrottle) Allow(ctx context.Context, email string) bool {
	if !t.enabled() {
		return true
	}
	count, err := t.client.Get(ctx, throttleKey(email)).Int64()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			t.logger.Warn("login throttle unavailable", zap.Error(err))
		}
		return true
	}
	return count < t.maxAttempts
}

// RecordFailure increments the failure counter. The key is created with its expiry in the
// same MULTI block, so a counter can never outlive its window.
func (t *RedisLoginThrottle) RecordFailure(ctx context.Context, email string) {
	if !t.enabled() {
		return
	}
	key := throttleKey(email)
	_, err := t.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.SetNX(ctx, key, 0, t.window)
		pipe.Incr(ctx, key)
		return nil
	})
	if err != nil {
		t.logger.Warn("login throttle unavailable", zap.Error(err))
	}
}

// Reset clears the failure counter after a successful login.
func (t *RedisLoginThrottle) Reset(ctx context.Context, email string) {
	if !t.enabled() {
		return
	}
	if err := t.client.Del(ctx, throttleKey(email)).Err(); err != nil {
		t.logger.Warn("login throttle reset failed", zap.Error(err))
	}
}
