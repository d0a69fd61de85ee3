package calls

import (
	"context"
	"time"

	"payment-call-system/pkg/utils"

	"github.com/redis/go-redis/v9"
)

// Limiter caps how many non-terminal sessions one caller may hold.
type Limiter interface {
	Acquire(ctx context.Context, callerID string) error
	Release(ctx context.Context, callerID string) error
}

// RedisLimiter keeps one counter per caller. The ttl bounds how long a slot
// leaked by a crashed process stays held; it should exceed the longest call.
type RedisLimiter struct {
	rdb   *redis.Client
	limit int
	ttl   time.Duration
}

func NewRedisLimiter(rdb *redis.Client, limit int, ttl time.Duration) *RedisLimiter {
	return &RedisLimiter{rdb: rdb, limit: limit, ttl: ttl}
}

func activeCallsKey(callerID string) string {
	return "calls:active:" + callerID
}

func (l *RedisLimiter) Acquire(ctx context.Context, callerID string) error {
	ok, err := utils.AcquireConcurrencyCap(ctx, l.rdb, activeCallsKey(callerID), l.limit, l.ttl)
	if err != nil {
		return err
	}
	if !ok {
		return ErrCallLimitReached
	}
	return nil
}

func (l *RedisLimiter) Release(ctx context.Context, callerID string) error {
	return utils.ReleaseConcurrencyCap(ctx, l.rdb, activeCallsKey(callerID))
}

// NoopLimiter admits everything. Used when the cap is disabled or Redis is not configured.
type NoopLimiter struct{}

func (NoopLimiter) Acquire(context.Context, string) error { return nil }
func (NoopLimiter) Release(context.Context, string) error { return nil }
