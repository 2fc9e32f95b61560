package sheets

import (
	"context"
	"sync"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Memory keeps both tables in process memory.
type Memory struct {
	mu       sync.RWMutex
	products []orders.Product
	rows     []OrderRow
}

func NewMemory(products ...orders.Product) *Memory {
	m := &Memory{}
	m.products = append(m.products, products...)
	return m
}

func (m *Memory) Products(ctx context.Context) ([]orders.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]orders.Product, len(m.products))
	copy(out, m.products)
	return out, nil
}

func (m *Memory) Orders(ctx context.Context) ([]OrderRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OrderRow, len(m.rows))
	copy(out, m.rows)
	return out, nil
}

func (m *Memory) Commit(ctx context.Context, deductions []Deduction, row OrderRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	next, err := applyDeductions(m.products, deductions)
	if err != nil {
		return err
	}
	m.products = next
	m.rows = append(m.rows, row)
	return nil
}

func (m *Memory) SetStatus(ctx context.Context, orderID string, status orders.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.rows {
		if orders.SameID(m.rows[i].OrderID, orderID) {
			m.rows[i].Status = status
			return nil
		}
	}
	return ErrRowNotFound
}

func (m *Memory) SeedProducts(ctx context.Context, products []orders.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.products = append(m.products[:0:0], products...)
	return nil
}
