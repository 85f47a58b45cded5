package calendar

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"studiobook/internal/models"
)

// CachedSource is a read-through Redis cache in front of another BusySource.
// Redis failures fall through to the wrapped source.
type CachedSource struct {
	next  BusySource
	redis *redis.Client
	ttl   time.Duration
	loc   *time.Location
}

func NewCachedSource(next BusySource, rdb *redis.Client, ttl time.Duration, loc *time.Location) *CachedSource {
	if loc == nil {
		loc = time.UTC
	}
	return &CachedSource{next: next, redis: rdb, ttl: ttl, loc: loc}
}

func (c *CachedSource) BusyIntervals(ctx context.Context, studio models.Studio, day time.Time) ([]models.BusyInterval, error) {
	key := c.key(studio, day)

	var cached []models.BusyInterval
	if c.readCache(ctx, key, &cached) {
		return cached, nil
	}

	busy, err := c.next.BusyIntervals(ctx, studio, day)
	if err != nil {
		return nil, err
	}
	c.writeCache(ctx, key, busy)
	return busy, nil
}

// Invalidate drops the cached day so the next read goes to the calendar.
func (c *CachedSource) Invalidate(ctx context.Context, studio models.Studio, day time.Time) error {
	if c.redis == nil {
		return nil
	}
	return c.redis.Del(ctx, c.key(studio, day)).Err()
}

func (c *CachedSource) key(studio models.Studio, day time.Time) string {
	return fmt.Sprintf("busy:%s:%s", studio, day.In(c.loc).Format(time.DateOnly))
}

func (c *CachedSource) readCache(ctx context.Context, key string, out any) bool {
	if c.redis == nil || c.ttl <= 0 {
		return false
	}
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return false
	}
	if err := json.Unmarshal([]byte(val), out); err != nil {
		return false
	}
	return true
}

func (c *CachedSource) writeCache(ctx context.Context, key string, val any) {
	if c.redis == nil || c.ttl <= 0 {
		return
	}
	data, err := json.Marshal(val)
	if err != nil {
		return
	}
	_ = c.redis.Set(ctx, key, data, c.ttl).Err()
}
