package sheets

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

func catalogue() []orders.Product {
	old := 120.0
	return []orders.Product{
		{ID: "P001", Name: "Zapatillas Urban Flow", Price: 89.90, OldPrice: &old, Stock: 15, ImageURL: "img/shoe"},
		{ID: "P002", Name: "Audífonos Bluetooth Pro", Price: 45, Stock: 5},
		{ID: "P003", Name: "Reloj SmartWatch T500", Price: 65, Stock: 0},
	}
}

func sampleRow(id string) OrderRow {
	return OrderRow{
		OrderID:       id,
		Date:          time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		CustomerName:  "Ana",
		Phone:         "999111222",
		Total:         179.80,
		Items:         []orders.CartItem{{Product: orders.Product{ID: "P001", Name: "Zapatillas Urban Flow", Price: 89.90}, Quantity: 2}},
		PaymentMethod: orders.PaymentYape,
		Status:        orders.StatusPending,
	}
}

func backends(t *testing.T) map[string]Workbook {
	t.Helper()
	ctx := context.Background()

	mem := NewMemory()
	require.NoError(t, mem.SeedProducts(ctx, catalogue()))

	x, err := OpenXLSX(filepath.Join(t.TempDir(), "store.xlsx"))
	require.NoError(t, err)
	require.NoError(t, x.SeedProducts(ctx, catalogue()))

	return map[string]Workbook{"memory": mem, "xlsx": x}
}

func stockOf(t *testing.T, wb Workbook, id string) int {
	t.Helper()
	ps, err := wb.Products(context.Background())
	require.NoError(t, err)
	p, ok := FindProduct(ps, id)
	require.True(t, ok, id)
	return p.Stock
}

func TestWorkbookCommit(t *testing.T) {
	for name, wb := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, wb.Commit(ctx, []Deduction{{ProductID: "p001", Qty: 2}}, sampleRow("ORD-00001")))

			assert.Equal(t, 13, stockOf(t, wb, "P001"))
			assert.Equal(t, 5, stockOf(t, wb, "P002"))

			rows, err := wb.Orders(ctx)
			require.NoError(t, err)
			require.Len(t, rows, 1)
			row, ok := FindOrder(rows, " ord-00001 ")
			require.True(t, ok)
			assert.Equal(t, orders.StatusPending, row.Status)
			assert.Equal(t, 179.80, row.Total)
			require.Len(t, row.Items, 1)
			assert.Equal(t, 2, row.Items[0].Quantity)
			assert.True(t, row.Date.Equal(sampleRow("").Date))
		})
	}
}

func TestWorkbookCommitIsAllOrNothing(t *testing.T) {
	for name, wb := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			err := wb.Commit(ctx, []Deduction{
				{ProductID: "P001", Qty: 1},
				{ProductID: "P002", Qty: 6},
			}, sampleRow("ORD-00002"))
			require.ErrorIs(t, err, ErrStockConflict)

			err = wb.Commit(ctx, []Deduction{
				{ProductID: "P001", Qty: 1},
				{ProductID: "P999", Qty: 1},
			}, sampleRow("ORD-00003"))
			require.ErrorIs(t, err, ErrRowNotFound)

			assert.Equal(t, 15, stockOf(t, wb, "P001"))
			assert.Equal(t, 5, stockOf(t, wb, "P002"))
			rows, err := wb.Orders(ctx)
			require.NoError(t, err)
			assert.Empty(t, rows)
		})
	}
}

func TestWorkbookSetStatus(t *testing.T) {
	for name, wb := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			require.NoError(t, wb.Commit(ctx, nil, sampleRow("ORD-00004")))
			require.NoError(t, wb.SetStatus(ctx, "ord-00004", orders.StatusConfirmed))
			require.ErrorIs(t, wb.SetStatus(ctx, "ORD-99999", orders.StatusConfirmed), ErrRowNotFound)

			rows, err := wb.Orders(ctx)
			require.NoError(t, err)
			row, ok := FindOrder(rows, "ORD-00004")
			require.True(t, ok)
			assert.Equal(t, orders.StatusConfirmed, row.Status)
		})
	}
}

func TestXLSXReopenKeepsData(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "store.xlsx")
	x, err := OpenXLSX(path)
	require.NoError(t, err)
	require.NoError(t, x.SeedProducts(ctx, catalogue()))

	again, err := OpenXLSX(path)
	require.NoError(t, err)
	ps, err := again.Products(ctx)
	require.NoError(t, err)
	require.Len(t, ps, 3)

	p, ok := FindProduct(ps, "P001")
	require.True(t, ok)
	assert.Equal(t, 89.90, p.Price)
	require.NotNil(t, p.OldPrice)
	assert.Equal(t, 120.0, *p.OldPrice)

	p3, ok := FindProduct(ps, "P003")
	require.True(t, ok)
	assert.Nil(t, p3.OldPrice)
	assert.Equal(t, 0, p3.Stock)
}
