package redis

import (
	"context"
	"time"

	"postcard-service/internal/logger"

	"github.com/go-redis/redis/v8"
)

type Cache struct {
	Client *redis.Client
	Logger *logger.Logger
}

func NewCache(client *redis.Client, log *logger.Logger) *Cache {
	return &Cache{Client: client, Logger: log}
}

const (
	webhookGuardTTL = 10 * time.Minute
	statusTTL       = 24 * time.Hour
)

// ClaimWebhookEvent marks a gateway event ID as being processed. The first
// caller wins; duplicate deliveries of the same event see false and skip.
func (c *Cache) ClaimWebhookEvent(ctx context.Context, eventID string) (bool, error) {
	return c.Client.SetNX(ctx, "webhook_event:"+eventID, "processing", webhookGuardTTL).Result()
}

// ReleaseWebhookEvent drops the claim so a failed handler can be redelivered.
func (c *Cache) ReleaseWebhookEvent(ctx context.Context, eventID string) error {
	return c.Client.Del(ctx, "webhook_event:"+eventID).Err()
}

// CacheStatus mirrors an order's status for cheap polling reads.
func (c *Cache) CacheStatus(ctx context.Context, transactionID, status string) {
	if err := c.Client.Set(ctx, "order_status:"+transactionID, status, statusTTL).Err(); err != nil {
		c.Logger.Warn("REDIS", "status cache write for "+transactionID+" failed: "+err.Error())
	}
}

// GetStatus returns the cached status, or "" on miss.
func (c *Cache) GetStatus(ctx context.Context, transactionID string) string {
	val, err := c.Client.Get(ctx, "order_status:"+transactionID).Result()
	if err == redis.Nil {
		return ""
	}
	if err != nil {
		c.Logger.Warn("REDIS", "status cache read for "+transactionID+" failed: "+err.Error())
		return ""
	}
	return val
}
