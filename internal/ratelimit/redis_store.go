package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const RATE_LIMIT_KEY = "rate-limit:%s:%s" // <userID>:<action>

func RateLimitKey(userID string, action Action) string {
	return fmt.Sprintf(RATE_LIMIT_KEY, userID, action)
}

// RedisStore keeps last-action timestamps as unix milliseconds. Records expire after
// ttl, which must exceed the longest cooldown.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{
		rdb: rdb,
		ttl: ttl,
	}
}

func (s *RedisStore) LastAction(ctx context.Context, userID string, action Action) (time.Time, bool, error) {
	value, err := s.rdb.Get(ctx, RateLimitKey(userID, action)).Result()
	if errors.Is(err, redis.Nil) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}

	millis, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("malformed rate limit record %q: %w", value, err)
	}
	return time.UnixMilli(millis), true, nil
}

func (s *RedisStore) SetLastAction(ctx context.Context, userID string, action Action, at time.Time) error {
	return s.rdb.Set(ctx, RateLimitKey(userID, action), at.UnixMilli(), s.ttl).Err()
}
