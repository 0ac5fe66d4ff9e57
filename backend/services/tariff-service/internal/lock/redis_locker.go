// Package lock provides the cross-instance scope key lock backed by Redis.
package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"careportal/backend/services/tariff-service/internal/service"
)

const (
	defaultKeyPrefix = "careportal:tariff:lock:"
	minBackoff       = 10 * time.Millisecond
	maxBackoff       = 250 * time.Millisecond
	releaseTimeout   = time.Second
)

var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisLocker implements service.ScopeLocker with SET NX PX and an owner token.
type RedisLocker struct {
	client    redis.UniversalClient
	keyPrefix string
	ttl       time.Duration
	timeout   time.Duration
	logger    *zap.Logger
}

// NewRedisLocker returns a locker whose locks expire after ttl and whose callers wait at most timeout.
func NewRedisLocker(client redis.UniversalClient, keyPrefix string, ttl, timeout time.Duration, logger *zap.Logger) *RedisLocker {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = 10 * time.Second
	}
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &RedisLocker{
		client:    client,
		keyPrefix: keyPrefix,
		ttl:       ttl,
		timeout:   timeout,
		logger:    logger,
	}
}

// Lock retries SET NX with capped exponential backoff until the wait budget runs out.
func (l *RedisLocker) Lock(ctx context.Context, key string) (func(), error) {
	lockKey := l.keyPrefix + key
	token := uuid.NewString()
	deadline := time.Now().Add(l.timeout)
	backoff := minBackoff

	for {
		ok, err := l.client.SetNX(ctx, lockKey, token, l.ttl).Result()
		if err != nil {
			return nil, fmt.Errorf("lock: acquire %s: %w", key, err)
		}
		if ok {
			return l.releaser(lockKey, token), nil
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, fmt.Errorf("%w: %s", service.ErrConflict, key)
		}
		wait := min(backoff, remaining)

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, ctx.Err()
		case <-timer.C:
		}
		backoff = min(backoff*2, maxBackoff)
	}
}

func (l *RedisLocker) releaser(lockKey, token string) func() {
	released := false
	return func() {
		if released {
			return
		}
		released = true

		ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
		defer cancel()
		n, err := releaseScript.Run(ctx, l.client, []string{lockKey}, token).Int64()
		switch {
		case err != nil:
			l.logger.Warn("failed to release scope lock", zap.String("key", lockKey), zap.Error(err))
		case n == 0:
			l.logger.Warn("scope lock expired before release", zap.String("key", lockKey))
		}
	}
}
