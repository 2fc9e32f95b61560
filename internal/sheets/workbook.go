// Package sheets holds the tabular storage behind the order store: a
// "Productos" table of catalogue rows and a "Pedidos" table of order rows.
package sheets

import (
	"context"
	"errors"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const (
	ProductsSheet = "Productos"
	OrdersSheet   = "Pedidos"
)

var (
	ProductHeaders = []string{"id", "name", "price", "oldPrice", "stock", "imageUrl", "videoUrl", "description"}
	OrderHeaders   = []string{"orderId", "date", "customerName", "phone", "total", "items", "paymentMethod", "status"}
)

var (
	ErrRowNotFound   = errors.New("sheets: row not found")
	ErrStockConflict = errors.New("sheets: deduction would make stock negative")
)

// OrderRow is one persisted line of the orders table.
type OrderRow struct {
	OrderID       string
	Date          time.Time
	CustomerName  string
	Phone         string
	Total         float64
	Items         []orders.CartItem
	PaymentMethod orders.PaymentMethod
	Status        orders.Status
}

func (r OrderRow) Summary(withItems bool) orders.OrderSummary {
	s := orders.OrderSummary{
		ID:           r.OrderID,
		CustomerName: r.CustomerName,
		Total:        r.Total,
		Status:       r.Status,
	}
	if withItems {
		s.Items = r.Items
	}
	return s
}

// Deduction removes Qty units from the product whose normalized id matches.
type Deduction struct {
	ProductID string
	Qty       int
}

// Workbook is the storage contract. Reads are lock-free; Commit must apply
// every deduction and the order append as one unit or not at all.
type Workbook interface {
	Products(ctx context.Context) ([]orders.Product, error)
	Orders(ctx context.Context) ([]OrderRow, error)
	Commit(ctx context.Context, deductions []Deduction, row OrderRow) error
	SetStatus(ctx context.Context, orderID string, status orders.Status) error
	SeedProducts(ctx context.Context, products []orders.Product) error
}

// FindProduct does the normalized-id scan shared by all backends.
func FindProduct(products []orders.Product, id string) (orders.Product, bool) {
	for _, p := range products {
		if orders.SameID(p.ID, id) {
			return p, true
		}
	}
	return orders.Product{}, false
}

func FindOrder(rows []OrderRow, id string) (OrderRow, bool) {
	for _, r := range rows {
		if orders.SameID(r.OrderID, id) {
			return r, true
		}
	}
	return OrderRow{}, false
}

// applyDeductions returns the product table with deductions applied, leaving
// the input untouched when any deduction fails.
func applyDeductions(products []orders.Product, deductions []Deduction) ([]orders.Product, error) {
	out := make([]orders.Product, len(products))
	copy(out, products)
	for _, d := range deductions {
		idx := -1
		for i := range out {
			if orders.SameID(out[i].ID, d.ProductID) {
				idx = i
				break
			}
		}
		if idx < 0 {
			return nil, ErrRowNotFound
		}
		if out[idx].Stock < d.Qty {
			return nil, ErrStockConflict
		}
		out[idx].Stock -= d.Qty
	}
	return out, nil
}
