package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
)

// Throttle limits how often a message goes to the same recipient
type Throttle interface {
	// Allow reports whether a message may be sent now and, if not, how long to wait
	Allow(ctx context.Context, key string) (bool, time.Duration, error)
}

// RedisThrottle keeps one marker key per recipient with the period as TTL
type RedisThrottle struct {
	rdb    *redis.Client
	period time.Duration
}

func NewRedisThrottle(rdb *redis.Client, period time.Duration) *RedisThrottle {
	return &RedisThrottle{rdb: rdb, period: period}
}

func (t *RedisThrottle) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	markerKey := fmt.Sprintf("reset_mail_%s", strings.ToLower(key))

	ok, err := t.rdb.SetNX(ctx, markerKey, 1, t.period).Result()
	if err != nil {
		return false, 0, fmt.Errorf("reset mail throttle: %w", err)
	}
	if ok {
		return true, 0, nil
	}

	ttl, err := t.rdb.TTL(ctx, markerKey).Result()
	if err != nil || ttl < 0 {
		ttl = t.period
	}
	return false, ttl, nil
}

// NoThrottle allows everything
type NoThrottle struct{}

func (NoThrottle) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	return true, 0, nil
}
