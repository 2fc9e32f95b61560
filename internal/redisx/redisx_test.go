package redisx

import (
	"context"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func newTestClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewSummaryCache(client, time.Minute)
	ctx := context.Background()

	_, ok, err := cache.Get(ctx, "ORD-12345")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, cache.Put(ctx, orders.OrderSummary{ID: "ORD-12345", CustomerName: "Ana", Total: 179.8, Status: orders.StatusPending}))

	got, ok, err := cache.Get(ctx, " ord-12345 ")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, orders.StatusPending, got.Status)
	assert.Equal(t, 179.8, got.Total)

	mr.FastForward(2 * time.Minute)
	_, ok, err = cache.Get(ctx, "ORD-12345")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSummaryCacheCorruptEntryIsMiss(t *testing.T) {
	mr, client := newTestClient(t)
	cache := NewSummaryCache(client, time.Minute)
	require.NoError(t, mr.Set("order_summary:ord-00001", "{not json"))

	_, ok, err := cache.Get(context.Background(), "ORD-00001")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, mr.Exists("order_summary:ord-00001"))
}

func TestSummaryCacheInvalidate(t *testing.T) {
	_, client := newTestClient(t)
	cache := NewSummaryCache(client, time.Minute)
	ctx := context.Background()
	require.NoError(t, cache.Put(ctx, orders.OrderSummary{ID: "ORD-00002", Status: orders.StatusPending}))
	require.NoError(t, cache.Invalidate(ctx, "ord-00002"))
	_, ok, err := cache.Get(ctx, "ORD-00002")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMarkOnce(t *testing.T) {
	_, client := newTestClient(t)
	ctx := context.Background()
	first, err := MarkOnce(ctx, client, "dedup:test:1", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)
	second, err := MarkOnce(ctx, client, "dedup:test:1", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	ok, err := Exists(ctx, client, "dedup:test:1")
	require.NoError(t, err)
	assert.True(t, ok)
}
