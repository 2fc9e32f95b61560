package checkout

import (
	"strings"
	"sync"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Cart is the shopper's pending selection. Quantities are clamped to the
// stock known when the product was added; the store re-checks on submit.
type Cart struct {
	mu    sync.Mutex
	items []orders.CartItem
}

// Add merges qty of p into the cart and returns the resulting line quantity.
// Nothing is added for non-positive qty or a sold out product.
func (c *Cart) Add(p orders.Product, qty int) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	if qty <= 0 || p.Stock <= 0 || orders.NormalizeID(p.ID) == "" {
		return c.quantityLocked(p.ID)
	}
	for i := range c.items {
		if !orders.SameID(c.items[i].ID, p.ID) {
			continue
		}
		c.items[i].Quantity = min(c.items[i].Quantity+qty, p.Stock)
		return c.items[i].Quantity
	}
	c.items = append(c.items, orders.CartItem{Product: p, Quantity: min(qty, p.Stock)})
	return c.items[len(c.items)-1].Quantity
}

func (c *Cart) Remove(id string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := c.items[:0]
	for _, it := range c.items {
		if !orders.SameID(it.ID, id) {
			out = append(out, it)
		}
	}
	c.items = out
}

func (c *Cart) Clear() {
	c.mu.Lock()
	c.items = nil
	c.mu.Unlock()
}

// Items returns a copy of the cart lines in insertion order.
func (c *Cart) Items() []orders.CartItem {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]orders.CartItem(nil), c.items...)
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items) == 0
}

// Count is the number of units, not lines.
func (c *Cart) Count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

func (c *Cart) Total() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return orders.SumItems(c.items)
}

func (c *Cart) quantityLocked(id string) int {
	if strings.TrimSpace(id) == "" {
		return 0
	}
	for _, it := range c.items {
		if orders.SameID(it.ID, id) {
			return it.Quantity
		}
	}
	return 0
}
