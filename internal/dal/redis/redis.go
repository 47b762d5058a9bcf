package redis

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
)

// Webhook event dedup keys live under dedup:payments:<event_id>. The cache is
// a fast path only; the conditional update in Postgres stays authoritative.
const (
	keyEventDedup = "dedup:payments:%s"

	TTLEventDedup = 48 * time.Hour
)

// Client wraps the Redis connection used for webhook event dedup.
type Client struct {
	rdb *redis.Client
}

// MustNewClient creates a new Redis client.
func MustNewClient() *Client {
	rdb := redis.NewClient(&redis.Options{
		Addr: os.Getenv("PAYMENT_REDIS_ADDR"),
	})

	if err := rdb.Ping(context.Background()).Err(); err != nil {
		panic(fmt.Sprintf("failed to connect to Redis: %v", err))
	}

	return &Client{rdb: rdb}
}

// Close closes the connection for graceful shutdown.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// MarkEventSeen records a webhook event id, returning true if this call was
// the first to record it.
func (c *Client) MarkEventSeen(ctx context.Context, eventID string) (bool, error) {
	key := fmt.Sprintf(keyEventDedup, eventID)

	first, err := c.rdb.SetNX(ctx, key, 1, TTLEventDedup).Result()
	if err != nil {
		return false, fmt.Errorf("failed to set dedup key: %w", err)
	}

	return first, nil
}

// ForgetEvent drops a dedup key so a failed handling attempt can be retried
// by the gateway's redelivery.
func (c *Client) ForgetEvent(ctx context.Context, eventID string) error {
	key := fmt.Sprintf(keyEventDedup, eventID)

	if err := c.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("failed to delete dedup key: %w", err)
	}

	return nil
}
