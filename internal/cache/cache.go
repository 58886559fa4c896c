package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"chainhire/internal/middleware"
	"chainhire/internal/observability"

	"github.com/redis/go-redis/v9"
)

// TTLs per key family.
const (
	FeedTTL    = 30 * time.Second
	JobsTTL    = 60 * time.Second
	JobTTL     = 5 * time.Minute
	ProfileTTL = 5 * time.Minute
)

// FeedPageKey caches a page of the public feed (no per-user like flags).
func FeedPageKey(limit, offset int) string {
	return fmt.Sprintf("feed:page:%d:%d", limit, offset)
}

// FeedPattern matches every cached feed page.
const FeedPattern = "feed:page:*"

// JobListKey caches an unfiltered page of active jobs.
func JobListKey(limit, offset int) string {
	return fmt.Sprintf("jobs:active:%d:%d", limit, offset)
}

// JobListPattern matches every cached job list page.
const JobListPattern = "jobs:active:*"

// JobKey caches a single job.
func JobKey(id uint) string {
	return fmt.Sprintf("job:%d", id)
}

// ProfileKey caches a public profile by user id.
func ProfileKey(userID uint) string {
	return fmt.Sprintf("profile:%d", userID)
}

// GetJSON attempts to get the key from Redis and unmarshal into dest.
// Returns (true, nil) if found and unmarshaled, (false, nil) if not found.
func GetJSON(ctx context.Context, key string, dest any) (bool, error) {
	if client == nil {
		return false, nil
	}
	b, err := client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(b, dest); err != nil {
		return false, err
	}
	return true, nil
}

// SetJSON marshals v and sets the key with TTL.
func SetJSON(ctx context.Context, key string, v any, ttl time.Duration) error {
	if client == nil {
		return nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	return client.Set(ctx, key, b, ttl).Err()
}

// Aside tries Redis first; on a miss it calls fetch, which must populate dest, then
// stores dest with ttl. Cache errors never fail the read.
func Aside(ctx context.Context, family, key string, dest any, ttl time.Duration, fetch func() error) error {
	found, err := GetJSON(ctx, key, dest)
	if err != nil {
		middleware.Logger.WarnContext(ctx, "cache read failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	if found {
		observability.CacheLookups.WithLabelValues(family, "hit").Inc()
		return nil
	}
	observability.CacheLookups.WithLabelValues(family, "miss").Inc()

	if err := fetch(); err != nil {
		return err
	}

	if err := SetJSON(ctx, key, dest, ttl); err != nil {
		middleware.Logger.WarnContext(ctx, "cache write failed", slog.String("key", key), slog.String("error", err.Error()))
	}
	return nil
}

// Invalidate deletes the given keys.
func Invalidate(ctx context.Context, keys ...string) {
	if client == nil || len(keys) == 0 {
		return
	}
	if err := client.Del(ctx, keys...).Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache invalidation failed", slog.Any("keys", keys), slog.String("error", err.Error()))
	}
}

// InvalidatePattern deletes every key matching pattern using SCAN.
func InvalidatePattern(ctx context.Context, pattern string) {
	if client == nil {
		return
	}
	iter := client.Scan(ctx, 0, pattern, 100).Iterator()
	var keys []string
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		middleware.Logger.WarnContext(ctx, "cache scan failed", slog.String("pattern", pattern), slog.String("error", err.Error()))
		return
	}
	Invalidate(ctx, keys...)
}
