package redisx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// SummaryCache keeps order summaries for a short TTL so repeated tracking
// lookups skip the workbook scan. Reads may be stale for up to the TTL.
type SummaryCache struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewSummaryCache(rdb *redis.Client, ttl time.Duration) *SummaryCache {
	if ttl <= 0 {
		ttl = TTLSummaryCache
	}
	return &SummaryCache{rdb: rdb, ttl: ttl}
}

func summaryKey(orderID string) string {
	return fmt.Sprintf(KeyOrderSummary, orders.NormalizeID(orderID))
}

// Get reports ok=false on a miss; err is only set for transport failures.
func (c *SummaryCache) Get(ctx context.Context, orderID string) (orders.OrderSummary, bool, error) {
	var s orders.OrderSummary
	raw, err := c.rdb.Get(ctx, summaryKey(orderID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return s, false, nil
	}
	if err != nil {
		return s, false, err
	}
	if err := json.Unmarshal(raw, &s); err != nil {
		// corrupt entry behaves as a miss
		_ = c.rdb.Del(ctx, summaryKey(orderID)).Err()
		return s, false, nil
	}
	return s, true, nil
}

func (c *SummaryCache) Put(ctx context.Context, s orders.OrderSummary) error {
	b, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return c.rdb.Set(ctx, summaryKey(s.ID), b, c.ttl).Err()
}

func (c *SummaryCache) Invalidate(ctx context.Context, orderID string) error {
	return c.rdb.Del(ctx, summaryKey(orderID)).Err()
}
