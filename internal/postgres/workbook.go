package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sheets"
)

const Schema = `
CREATE TABLE IF NOT EXISTS productos (
	id          TEXT PRIMARY KEY,
	id_key      TEXT,
	name        TEXT NOT NULL,
	price       NUMERIC(12,2) NOT NULL,
	old_price   NUMERIC(12,2),
	stock       INTEGER NOT NULL CHECK (stock >= 0),
	image_url   TEXT NOT NULL DEFAULT '',
	video_url   TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS pedidos (
	order_id       TEXT PRIMARY KEY,
	order_key      TEXT,
	created_at     TIMESTAMPTZ NOT NULL,
	customer_name  TEXT NOT NULL,
	phone          TEXT NOT NULL,
	total          NUMERIC(12,2) NOT NULL,
	items          JSONB NOT NULL,
	payment_method TEXT NOT NULL,
	status         TEXT NOT NULL
);
ALTER TABLE productos ADD COLUMN IF NOT EXISTS id_key TEXT;
ALTER TABLE pedidos ADD COLUMN IF NOT EXISTS order_key TEXT;
CREATE UNIQUE INDEX IF NOT EXISTS productos_id_key ON productos (id_key);
CREATE INDEX IF NOT EXISTS pedidos_order_key ON pedidos (order_key);`

// Workbook stores the two tables in Postgres. Commit runs in one transaction.
// Rows are matched on id_key/order_key, which hold orders.NormalizeID of the
// id as computed in Go, so SQL lookups agree with the in-memory checks.
type Workbook struct{ DB *pgxpool.Pool }

func (w *Workbook) Migrate(ctx context.Context) error {
	if _, err := w.DB.Exec(ctx, Schema); err != nil {
		return err
	}
	if err := w.backfillKeys(ctx, "productos", "id", "id_key"); err != nil {
		return err
	}
	return w.backfillKeys(ctx, "pedidos", "order_id", "order_key")
}

// backfillKeys fills key columns for rows written before the column existed.
func (w *Workbook) backfillKeys(ctx context.Context, table, idCol, keyCol string) error {
	rows, err := w.DB.Query(ctx, fmt.Sprintf(`SELECT %s FROM %s WHERE %s IS NULL`, idCol, table, keyCol))
	if err != nil {
		return err
	}
	ids, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return err
	}
	for _, id := range ids {
		if _, err := w.DB.Exec(ctx, fmt.Sprintf(`UPDATE %s SET %s = $2 WHERE %s = $1`, table, keyCol, idCol),
			id, orders.NormalizeID(id)); err != nil {
			return fmt.Errorf("postgres: backfill %s: %w", table, err)
		}
	}
	return nil
}

func (w *Workbook) Products(ctx context.Context) ([]orders.Product, error) {
	rows, err := w.DB.Query(ctx, `SELECT id, name, price::float8, old_price::float8, stock, image_url, video_url, description
	                               FROM productos ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.Product
	for rows.Next() {
		var p orders.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.OldPrice, &p.Stock, &p.ImageURL, &p.VideoURL, &p.Description); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (w *Workbook) Orders(ctx context.Context) ([]sheets.OrderRow, error) {
	rows, err := w.DB.Query(ctx, `SELECT order_id, created_at, customer_name, phone, total::float8, items, payment_method, status
	                               FROM pedidos ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []sheets.OrderRow
	for rows.Next() {
		var (
			r      sheets.OrderRow
			items  []byte
			method string
			status string
		)
		if err := rows.Scan(&r.OrderID, &r.Date, &r.CustomerName, &r.Phone, &r.Total, &items, &method, &status); err != nil {
			return nil, err
		}
		r.PaymentMethod = orders.PaymentMethod(method)
		r.Status = orders.Status(status)
		_ = json.Unmarshal(items, &r.Items)
		out = append(out, r)
	}
	return out, rows.Err()
}

// Commit: deduct per product (guarded by stock >= qty) then insert the order.
// Any miss rolls the whole transaction back.
func (w *Workbook) Commit(ctx context.Context, deductions []sheets.Deduction, row sheets.OrderRow) error {
	tx, err := w.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	for _, d := range deductions {
		var stock int
		err := tx.QueryRow(ctx, `SELECT stock FROM productos WHERE id_key = $1 FOR UPDATE`,
			orders.NormalizeID(d.ProductID)).Scan(&stock)
		if errors.Is(err, pgx.ErrNoRows) {
			return sheets.ErrRowNotFound
		}
		if err != nil {
			return err
		}
		if stock < d.Qty {
			return sheets.ErrStockConflict
		}
		if _, err := tx.Exec(ctx, `UPDATE productos SET stock = stock - $2 WHERE id_key = $1`,
			orders.NormalizeID(d.ProductID), d.Qty); err != nil {
			return err
		}
	}

	items, err := json.Marshal(row.Items)
	if err != nil {
		return fmt.Errorf("postgres: encode items: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO pedidos(order_id, order_key, created_at, customer_name, phone, total, items, payment_method, status)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		row.OrderID, orders.NormalizeID(row.OrderID), row.Date, row.CustomerName, row.Phone, row.Total, string(items),
		string(row.PaymentMethod), string(row.Status),
	); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

func (w *Workbook) SetStatus(ctx context.Context, orderID string, status orders.Status) error {
	ct, err := w.DB.Exec(ctx, `UPDATE pedidos SET status = $2 WHERE order_key = $1`,
		orders.NormalizeID(orderID), string(status))
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return sheets.ErrRowNotFound
	}
	return nil
}

func (w *Workbook) SeedProducts(ctx context.Context, products []orders.Product) error {
	tx, err := w.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `DELETE FROM productos`); err != nil {
		return err
	}
	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(`INSERT INTO productos(id, id_key, name, price, old_price, stock, image_url, video_url, description)
		             VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
			p.ID, orders.NormalizeID(p.ID), p.Name, p.Price, p.OldPrice, p.Stock, p.ImageURL, p.VideoURL, p.Description)
	}
	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

var _ sheets.Workbook = (*Workbook)(nil)
