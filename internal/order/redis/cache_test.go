package redis

import (
	"context"
	"testing"

	"postcard-service/internal/logger"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestCache(t *testing.T) *Cache {
	t.Helper()
	mr, err := miniredis.Run()
	require.NoError(t, err)
	t.Cleanup(mr.Close)

	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	log := logger.NewLogger()
	t.Cleanup(log.Close)
	return NewCache(client, log)
}

func TestClaimWebhookEventFirstWins(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	first, err := c.ClaimWebhookEvent(ctx, "evt_123")
	require.NoError(t, err)
	assert.True(t, first)

	// The duplicate delivery loses the claim.
	second, err := c.ClaimWebhookEvent(ctx, "evt_123")
	require.NoError(t, err)
	assert.False(t, second)

	// A different event is unaffected.
	other, err := c.ClaimWebhookEvent(ctx, "evt_456")
	require.NoError(t, err)
	assert.True(t, other)
}

func TestReleaseWebhookEventAllowsRetry(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	_, err := c.ClaimWebhookEvent(ctx, "evt_123")
	require.NoError(t, err)
	require.NoError(t, c.ReleaseWebhookEvent(ctx, "evt_123"))

	again, err := c.ClaimWebhookEvent(ctx, "evt_123")
	require.NoError(t, err)
	assert.True(t, again)
}

func TestStatusCacheRoundTrip(t *testing.T) {
	c := setupTestCache(t)
	ctx := context.Background()

	assert.Equal(t, "", c.GetStatus(ctx, "txn_1"))

	c.CacheStatus(ctx, "txn_1", "ready_for_payment")
	assert.Equal(t, "ready_for_payment", c.GetStatus(ctx, "txn_1"))
}
