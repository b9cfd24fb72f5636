package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// EventCache is a fast-path replica of the webhook dedup ledger. The DB
// unique index stays authoritative; the cache only short-circuits obvious
// replays before they reach a transaction.
type EventCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewEventCache(rdb *redis.Client, ttl time.Duration) *EventCache {
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &EventCache{rdb: rdb, ttl: ttl}
}

func InitRedis(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return rdb, nil
}

func (c *EventCache) Seen(ctx context.Context, endpoint, eventID string) (bool, error) {
	n, err := c.rdb.Exists(ctx, eventKey(endpoint, eventID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

func (c *EventCache) MarkSeen(ctx context.Context, endpoint, eventID string) error {
	return c.rdb.Set(ctx, eventKey(endpoint, eventID), 1, c.ttl).Err()
}

func eventKey(endpoint, eventID string) string {
	return fmt.Sprintf("webhook:%s:%s", endpoint, eventID)
}
