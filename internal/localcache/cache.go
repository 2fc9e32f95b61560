// Package localcache keeps the shopper's own order history in a single named
// slot, newest first. It is the client's fallback when the store has not
// caught up with a recent write.
package localcache

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const SlotName = "order_history"

// Slot is one persisted byte value. Load returns nil, nil when nothing was stored.
type Slot interface {
	Load(ctx context.Context) ([]byte, error)
	Store(ctx context.Context, value []byte) error
}

type Cache struct {
	mu   sync.Mutex
	slot Slot
	log  *slog.Logger
}

func New(slot Slot, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{slot: slot, log: log}
}

// Save prepends o to the history. Failures are logged and returned; the
// history is never partially written.
func (c *Cache) Save(ctx context.Context, o orders.Order) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	history := c.load(ctx)
	out := make([]orders.Order, 0, len(history)+1)
	out = append(out, o)
	out = append(out, history...)
	b, err := json.Marshal(out)
	if err != nil {
		c.log.Error("encode order history", slog.Any("error", err))
		return err
	}
	if err := c.slot.Store(ctx, b); err != nil {
		c.log.Error("save order history", slog.String("order_id", o.ID), slog.Any("error", err))
		return err
	}
	return nil
}

// ListAll returns the history newest first. Missing or corrupt data reads as empty.
func (c *Cache) ListAll(ctx context.Context) []orders.Order {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.load(ctx)
}

// FindByID returns the first order whose id matches id after normalization.
func (c *Cache) FindByID(ctx context.Context, id string) (orders.Order, bool) {
	for _, o := range c.ListAll(ctx) {
		if orders.SameID(o.ID, id) {
			return o, true
		}
	}
	return orders.Order{}, false
}

func (c *Cache) load(ctx context.Context) []orders.Order {
	b, err := c.slot.Load(ctx)
	if err != nil {
		c.log.Error("read order history", slog.Any("error", err))
		return []orders.Order{}
	}
	if len(b) == 0 {
		return []orders.Order{}
	}
	var history []orders.Order
	if err := json.Unmarshal(b, &history); err != nil {
		c.log.Error("decode order history", slog.Any("error", err))
		return []orders.Order{}
	}
	if history == nil {
		history = []orders.Order{}
	}
	return history
}
