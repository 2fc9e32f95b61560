package postgres

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sheets"
)

// newWorkbook runs against POSTGRES_DSN inside a throwaway schema.
func newWorkbook(t *testing.T) *Workbook {
	t.Helper()
	dsn := os.Getenv("POSTGRES_DSN")
	if dsn == "" {
		t.Skip("POSTGRES_DSN not set")
	}
	ctx := context.Background()

	admin, err := Connect(ctx, dsn, 2)
	require.NoError(t, err)
	schema := fmt.Sprintf("storefront_test_%d", time.Now().UnixNano())
	_, err = admin.Exec(ctx, "CREATE SCHEMA "+schema)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA "+schema+" CASCADE")
		admin.Close()
	})

	sep := " "
	if strings.Contains(dsn, "://") {
		sep = "?"
		if strings.Contains(dsn, "?") {
			sep = "&"
		}
	}
	db, err := Connect(ctx, dsn+sep+"search_path="+schema, 4)
	require.NoError(t, err)
	t.Cleanup(db.Close)

	wb := &Workbook{DB: db}
	require.NoError(t, wb.Migrate(ctx))
	return wb
}

func stockOf(t *testing.T, wb *Workbook, id string) int {
	t.Helper()
	ps, err := wb.Products(context.Background())
	require.NoError(t, err)
	p, ok := sheets.FindProduct(ps, id)
	require.True(t, ok, id)
	return p.Stock
}

func orderRow(id string, qty int) sheets.OrderRow {
	return sheets.OrderRow{
		OrderID:       id,
		Date:          time.Date(2026, 10, 1, 12, 0, 0, 0, time.UTC),
		CustomerName:  "Ana",
		Phone:         "999111222",
		Total:         orders.RoundCents(89.90 * float64(qty)),
		Items:         []orders.CartItem{{Product: orders.Product{ID: "P001", Name: "Zapatillas Urban Flow", Price: 89.90}, Quantity: qty}},
		PaymentMethod: orders.PaymentYape,
		Status:        orders.StatusPending,
	}
}

func TestPostgresWorkbook(t *testing.T) {
	wb := newWorkbook(t)
	ctx := context.Background()
	old := 120.0
	require.NoError(t, wb.SeedProducts(ctx, []orders.Product{
		{ID: "P001", Name: "Zapatillas Urban Flow", Price: 89.90, OldPrice: &old, Stock: 5},
		{ID: "\tP002\n", Name: "Audífonos Bluetooth Pro", Price: 45, Stock: 1},
	}))

	t.Run("commit deducts and appends", func(t *testing.T) {
		err := wb.Commit(ctx, []sheets.Deduction{{ProductID: " p001 ", Qty: 2}, {ProductID: "p002", Qty: 1}}, orderRow("ORD-00001", 2))
		require.NoError(t, err)
		assert.Equal(t, 3, stockOf(t, wb, "P001"))
		assert.Equal(t, 0, stockOf(t, wb, "P002"))

		rows, err := wb.Orders(ctx)
		require.NoError(t, err)
		row, ok := sheets.FindOrder(rows, "ord-00001")
		require.True(t, ok)
		assert.InDelta(t, 179.80, row.Total, 0.001)
		require.Len(t, row.Items, 1)
		assert.Equal(t, 2, row.Items[0].Quantity)
	})

	t.Run("commit is all or nothing", func(t *testing.T) {
		err := wb.Commit(ctx, []sheets.Deduction{{ProductID: "P001", Qty: 1}, {ProductID: "P002", Qty: 1}}, orderRow("ORD-00002", 1))
		assert.ErrorIs(t, err, sheets.ErrStockConflict)
		err = wb.Commit(ctx, []sheets.Deduction{{ProductID: "P001", Qty: 1}, {ProductID: "P404", Qty: 1}}, orderRow("ORD-00003", 1))
		assert.ErrorIs(t, err, sheets.ErrRowNotFound)

		assert.Equal(t, 3, stockOf(t, wb, "P001"))
		rows, err := wb.Orders(ctx)
		require.NoError(t, err)
		assert.Len(t, rows, 1)
	})

	t.Run("set status", func(t *testing.T) {
		require.NoError(t, wb.SetStatus(ctx, " ord-00001", orders.StatusConfirmed))
		rows, err := wb.Orders(ctx)
		require.NoError(t, err)
		assert.Equal(t, orders.StatusConfirmed, rows[0].Status)

		assert.ErrorIs(t, wb.SetStatus(ctx, "ORD-99999", orders.StatusConfirmed), sheets.ErrRowNotFound)
	})

	t.Run("seed replaces catalogue", func(t *testing.T) {
		require.NoError(t, wb.SeedProducts(ctx, []orders.Product{{ID: "P010", Name: "Mochila", Price: 30, Stock: 2}}))
		ps, err := wb.Products(ctx)
		require.NoError(t, err)
		require.Len(t, ps, 1)
		assert.Equal(t, "P010", ps[0].ID)
		assert.Nil(t, ps[0].OldPrice)
	})
}
