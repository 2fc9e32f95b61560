package sheets

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/tealeg/xlsx"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const (
	colProductID    = 0
	colProductStock = 4
	colOrderID      = 0
	colOrderStatus  = 7
)

// XLSX persists the two tables as sheets of a single .xlsx workbook. Every
// write rewrites the file through a temp file + rename, so a commit is either
// fully on disk or not at all.
type XLSX struct {
	path string
	mu   sync.RWMutex
}

// OpenXLSX opens the workbook at path, creating it with header rows when missing.
func OpenXLSX(path string) (*XLSX, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("sheets: workbook path is required")
	}
	x := &XLSX{path: filepath.Clean(path)}
	if _, err := os.Stat(x.path); errors.Is(err, os.ErrNotExist) {
		f := xlsx.NewFile()
		for _, def := range []struct {
			name    string
			headers []string
		}{{ProductsSheet, ProductHeaders}, {OrdersSheet, OrderHeaders}} {
			sh, err := f.AddSheet(def.name)
			if err != nil {
				return nil, fmt.Errorf("sheets: add sheet %s: %w", def.name, err)
			}
			row := sh.AddRow()
			for _, h := range def.headers {
				row.AddCell().SetString(h)
			}
		}
		if err := x.save(f); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, fmt.Errorf("sheets: stat workbook: %w", err)
	}
	return x, nil
}

func (x *XLSX) Path() string { return x.path }

func (x *XLSX) Products(ctx context.Context) ([]orders.Product, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	f, err := x.load()
	if err != nil {
		return nil, err
	}
	products, _, err := readProducts(f)
	return products, err
}

func (x *XLSX) Orders(ctx context.Context) ([]OrderRow, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	x.mu.RLock()
	defer x.mu.RUnlock()
	f, err := x.load()
	if err != nil {
		return nil, err
	}
	sh, err := sheet(f, OrdersSheet)
	if err != nil {
		return nil, err
	}
	var out []OrderRow
	for i := 1; i < len(sh.Rows); i++ {
		row := sh.Rows[i]
		if row == nil || cellString(row, colOrderID) == "" {
			continue
		}
		out = append(out, parseOrderRow(row))
	}
	return out, nil
}

func (x *XLSX) Commit(ctx context.Context, deductions []Deduction, row OrderRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	f, err := x.load()
	if err != nil {
		return err
	}
	products, rowIdx, err := readProducts(f)
	if err != nil {
		return err
	}
	next, err := applyDeductions(products, deductions)
	if err != nil {
		return err
	}
	psh, err := sheet(f, ProductsSheet)
	if err != nil {
		return err
	}
	for i := range next {
		if next[i].Stock != products[i].Stock {
			cellAt(psh.Rows[rowIdx[i]], colProductStock).SetInt(next[i].Stock)
		}
	}
	osh, err := sheet(f, OrdersSheet)
	if err != nil {
		return err
	}
	items, err := json.Marshal(row.Items)
	if err != nil {
		return fmt.Errorf("sheets: encode items: %w", err)
	}
	r := osh.AddRow()
	r.AddCell().SetString(row.OrderID)
	r.AddCell().SetString(row.Date.UTC().Format(time.RFC3339))
	r.AddCell().SetString(row.CustomerName)
	r.AddCell().SetString(row.Phone)
	r.AddCell().SetFloat(row.Total)
	r.AddCell().SetString(string(items))
	r.AddCell().SetString(string(row.PaymentMethod))
	r.AddCell().SetString(string(row.Status))
	return x.save(f)
}

func (x *XLSX) SetStatus(ctx context.Context, orderID string, status orders.Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	f, err := x.load()
	if err != nil {
		return err
	}
	sh, err := sheet(f, OrdersSheet)
	if err != nil {
		return err
	}
	for i := 1; i < len(sh.Rows); i++ {
		row := sh.Rows[i]
		if row == nil || !orders.SameID(cellString(row, colOrderID), orderID) {
			continue
		}
		cellAt(row, colOrderStatus).SetString(string(status))
		return x.save(f)
	}
	return ErrRowNotFound
}

func (x *XLSX) SeedProducts(ctx context.Context, products []orders.Product) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	f, err := x.load()
	if err != nil {
		return err
	}
	sh, err := sheet(f, ProductsSheet)
	if err != nil {
		return err
	}
	if len(sh.Rows) > 1 {
		sh.Rows = sh.Rows[:1]
		sh.MaxRow = 1
	}
	for _, p := range products {
		r := sh.AddRow()
		r.AddCell().SetString(p.ID)
		r.AddCell().SetString(p.Name)
		r.AddCell().SetFloat(p.Price)
		if p.OldPrice != nil {
			r.AddCell().SetFloat(*p.OldPrice)
		} else {
			r.AddCell().SetString("")
		}
		r.AddCell().SetInt(p.Stock)
		r.AddCell().SetString(p.ImageURL)
		r.AddCell().SetString(p.VideoURL)
		r.AddCell().SetString(p.Description)
	}
	return x.save(f)
}

func (x *XLSX) load() (*xlsx.File, error) {
	f, err := xlsx.OpenFile(x.path)
	if err != nil {
		return nil, fmt.Errorf("sheets: open workbook: %w", err)
	}
	return f, nil
}

func (x *XLSX) save(f *xlsx.File) error {
	tmp := x.path + ".tmp"
	if err := f.Save(tmp); err != nil {
		return fmt.Errorf("sheets: save workbook: %w", err)
	}
	if err := os.Rename(tmp, x.path); err != nil {
		return fmt.Errorf("sheets: replace workbook: %w", err)
	}
	return nil
}

func sheet(f *xlsx.File, name string) (*xlsx.Sheet, error) {
	sh, ok := f.Sheet[name]
	if !ok {
		return nil, fmt.Errorf("sheets: missing sheet %q", name)
	}
	return sh, nil
}

// readProducts returns the catalogue rows plus each one's index in sh.Rows.
func readProducts(f *xlsx.File) ([]orders.Product, []int, error) {
	sh, err := sheet(f, ProductsSheet)
	if err != nil {
		return nil, nil, err
	}
	var (
		products []orders.Product
		idx      []int
	)
	for i := 1; i < len(sh.Rows); i++ {
		row := sh.Rows[i]
		if row == nil || cellString(row, colProductID) == "" {
			continue
		}
		p := orders.Product{
			ID:          cellString(row, 0),
			Name:        cellString(row, 1),
			Price:       cellFloat(row, 2),
			Stock:       int(cellFloat(row, colProductStock)),
			ImageURL:    cellString(row, 5),
			VideoURL:    cellString(row, 6),
			Description: cellString(row, 7),
		}
		if s := cellString(row, 3); s != "" {
			if v, err := strconv.ParseFloat(s, 64); err == nil {
				p.OldPrice = &v
			}
		}
		products = append(products, p)
		idx = append(idx, i)
	}
	return products, idx, nil
}

func parseOrderRow(row *xlsx.Row) OrderRow {
	r := OrderRow{
		OrderID:       cellString(row, colOrderID),
		CustomerName:  cellString(row, 2),
		Phone:         cellString(row, 3),
		Total:         cellFloat(row, 4),
		PaymentMethod: orders.PaymentMethod(cellString(row, 6)),
		Status:        orders.Status(cellString(row, colOrderStatus)),
	}
	if t, err := time.Parse(time.RFC3339, cellString(row, 1)); err == nil {
		r.Date = t
	}
	if raw := cellString(row, 5); raw != "" {
		// A hand-edited items cell is not fatal; the order still resolves.
		_ = json.Unmarshal([]byte(raw), &r.Items)
	}
	return r
}

func cellString(row *xlsx.Row, i int) string {
	if i >= len(row.Cells) || row.Cells[i] == nil {
		return ""
	}
	return strings.TrimSpace(row.Cells[i].String())
}

func cellFloat(row *xlsx.Row, i int) float64 {
	v, err := strconv.ParseFloat(cellString(row, i), 64)
	if err != nil {
		return 0
	}
	return v
}

func cellAt(row *xlsx.Row, i int) *xlsx.Cell {
	for len(row.Cells) <= i {
		row.AddCell()
	}
	return row.Cells[i]
}
