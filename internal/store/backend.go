package store

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/postgres"
	"github.com/ariefcatur/go-storefront-orders/internal/sheets"
)

type WorkbookConfig struct {
	Driver      string
	Path        string
	PostgresDSN string
	MaxConns    int32
}

// OpenWorkbook opens the backend named by cfg.Driver. The returned close
// func is never nil.
func OpenWorkbook(ctx context.Context, cfg WorkbookConfig) (sheets.Workbook, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		return sheets.NewMemory(), func() {}, nil
	case config.DriverXLSX, "":
		wb, err := sheets.OpenXLSX(cfg.Path)
		if err != nil {
			return nil, func() {}, err
		}
		return wb, func() {}, nil
	case config.DriverPostgres:
		db, err := postgres.Connect(ctx, cfg.PostgresDSN, cfg.MaxConns)
		if err != nil {
			return nil, func() {}, err
		}
		wb := &postgres.Workbook{DB: db}
		if err := wb.Migrate(ctx); err != nil {
			db.Close()
			return nil, func() {}, err
		}
		return wb, db.Close, nil
	}
	return nil, func() {}, fmt.Errorf("store: unknown workbook driver %q", cfg.Driver)
}

// LoadCatalogue reads a JSON array of products, as used by the -seed flag.
func LoadCatalogue(path string) ([]orders.Product, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("store: read catalogue: %w", err)
	}
	var ps []orders.Product
	if err := json.Unmarshal(b, &ps); err != nil {
		return nil, fmt.Errorf("store: decode catalogue: %w", err)
	}
	return ps, nil
}
