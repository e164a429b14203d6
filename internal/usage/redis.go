package usage

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/verba-platform/verba/internal/plans"
)

const usageKeyPrefix = "usage:"

// RedisLedger keeps usage events in one sorted set per (user, capability),
// scored by event time in epoch milliseconds. Appends are single ZADDs, so
// concurrent commits are never lost; reads count members newer than the
// window start.
type RedisLedger struct {
	rdb    redis.Cmdable
	window time.Duration
}

// NewRedisLedger creates a ledger with the given rolling window size.
func NewRedisLedger(rdb redis.Cmdable, window time.Duration) *RedisLedger {
	return &RedisLedger{rdb: rdb, window: window}
}

func (l *RedisLedger) key(userID uuid.UUID, capability plans.Capability) string {
	return usageKeyPrefix + string(capability) + ":" + userID.String()
}

// InWindow counts events recorded within the trailing window ending now.
func (l *RedisLedger) InWindow(ctx context.Context, userID uuid.UUID, capability plans.Capability) (int, error) {
	if err := validateCapability(capability); err != nil {
		return 0, err
	}

	windowStart := float64(time.Now().Add(-l.window).UnixMilli())
	count, err := l.rdb.ZCount(ctx, l.key(userID, capability),
		strconv.FormatFloat(windowStart, 'f', 0, 64), "+inf").Result()
	if err != nil {
		return 0, fmt.Errorf("counting usage in window: %w", err)
	}
	return int(count), nil
}

// Record appends units usage events stamped now.
func (l *RedisLedger) Record(ctx context.Context, userID uuid.UUID, capability plans.Capability, units int) error {
	if err := validateCapability(capability); err != nil {
		return err
	}
	if units <= 0 {
		return fmt.Errorf("units must be positive, got %d", units)
	}

	now := time.Now()
	key := l.key(userID, capability)
	score := float64(now.UnixMilli())

	members := make([]redis.Z, units)
	for i := range members {
		// Member uniqueness keeps concurrent appends from collapsing into one
		// sorted-set entry.
		members[i] = redis.Z{
			Score:  score,
			Member: fmt.Sprintf("%d:%s:%d", now.UnixNano(), uuid.New().String(), i),
		}
	}

	pipe := l.rdb.Pipeline()
	pipe.ZAdd(ctx, key, members...)
	// Drop events that can no longer fall inside any window.
	pipe.ZRemRangeByScore(ctx, key, "-inf",
		strconv.FormatFloat(float64(now.Add(-l.window).UnixMilli()), 'f', 0, 64))
	pipe.Expire(ctx, key, l.window+time.Minute)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("recording usage: %w", err)
	}
	return nil
}
