// Package store is the authoritative order store: it owns stock and order
// status and serializes order creation behind a single named lock.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/lock"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sheets"
)

// ErrServerBusy is returned when the create lock could not be taken in time.
// Nothing has been written when it is returned.
var ErrServerBusy = errors.New("server busy, try again")

type Service struct {
	wb     sheets.Workbook
	locker lock.Locker
	cfg    Config

	created       Publisher
	statusChanged Publisher
	cache         SummaryCache
	metrics       Metrics
	log           *slog.Logger
	now           func() time.Time
	newID         func() string

	products singleflight.Group
}

func NewService(wb sheets.Workbook, locker lock.Locker, cfg Config, opts ...Option) *Service {
	s := &Service{
		wb:     wb,
		locker: locker,
		cfg:    cfg.withDefaults(),
		log:    slog.Default(),
		now:    time.Now,
		newID:  orders.NewOrderID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateOrder validates every requested item against current stock and, only
// if all pass, deducts stock and appends the order row as PENDING.
func (s *Service) CreateOrder(ctx context.Context, o orders.Order) (orders.Receipt, error) {
	start := time.Now()
	rec, err := s.createOrder(ctx, o)
	s.observe(err, time.Since(start))
	if err != nil {
		s.log.Warn("create order rejected", slog.String("customer", o.CustomerName), slog.Any("error", err))
		return orders.Receipt{}, err
	}
	s.log.Info("order created", slog.String("order_id", rec.OrderID), slog.Float64("total", rec.Total), slog.Int("items", len(o.Items)))
	return rec, nil
}

func (s *Service) createOrder(ctx context.Context, o orders.Order) (orders.Receipt, error) {
	if err := orders.ValidateOrder(o); err != nil {
		return orders.Receipt{}, err
	}

	var row sheets.OrderRow
	err := lock.With(ctx, s.locker, s.cfg.LockName, s.cfg.LockWait, func(ctx context.Context) error {
		products, err := s.wb.Products(ctx)
		if err != nil {
			return fmt.Errorf("store: read products: %w", err)
		}
		items, deductions, err := reserve(products, o.Items)
		if err != nil {
			return err
		}
		id, err := s.uniqueOrderID(ctx)
		if err != nil {
			return err
		}
		row = sheets.OrderRow{
			OrderID:       id,
			Date:          s.now().UTC(),
			CustomerName:  strings.TrimSpace(o.CustomerName),
			Phone:         strings.TrimSpace(o.CustomerPhone),
			Total:         orders.SumItems(items),
			Items:         items,
			PaymentMethod: o.PaymentMethod,
			Status:        orders.StatusPending,
		}
		if err := s.wb.Commit(ctx, deductions, row); err != nil {
			return fmt.Errorf("store: commit order: %w", err)
		}
		return nil
	})
	if errors.Is(err, lock.ErrBusy) {
		return orders.Receipt{}, ErrServerBusy
	}
	if err != nil {
		return orders.Receipt{}, err
	}

	s.afterCreate(ctx, row)
	return orders.Receipt{OrderID: row.OrderID, Total: row.Total}, nil
}

// reserve is the validation pass. It aggregates repeated ids, checks each
// against stock and returns the priced item list and the deductions to commit.
func reserve(products []orders.Product, requested []orders.CartItem) ([]orders.CartItem, []sheets.Deduction, error) {
	type want struct {
		label string
		qty   int
		p     orders.Product
	}
	var order []string
	wants := map[string]*want{}
	for _, it := range requested {
		key := orders.NormalizeID(it.ID)
		if w, ok := wants[key]; ok {
			w.qty += it.Quantity
			continue
		}
		p, ok := sheets.FindProduct(products, it.ID)
		if !ok {
			return nil, nil, &orders.UnknownProductError{Item: strings.TrimSpace(it.ID)}
		}
		wants[key] = &want{label: strings.TrimSpace(it.ID), qty: it.Quantity, p: p}
		order = append(order, key)
	}

	items := make([]orders.CartItem, 0, len(order))
	deductions := make([]sheets.Deduction, 0, len(order))
	for _, key := range order {
		w := wants[key]
		if w.p.Stock < w.qty {
			return nil, nil, &orders.InsufficientStockError{Item: w.label, Required: w.qty, Available: w.p.Stock}
		}
		snap := w.p
		snap.Stock -= w.qty
		items = append(items, orders.CartItem{Product: snap, Quantity: w.qty})
		deductions = append(deductions, sheets.Deduction{ProductID: w.p.ID, Qty: w.qty})
	}
	return items, deductions, nil
}

func (s *Service) uniqueOrderID(ctx context.Context) (string, error) {
	rows, err := s.wb.Orders(ctx)
	if err != nil {
		return "", fmt.Errorf("store: read orders: %w", err)
	}
	for i := 0; i < s.cfg.IDAttempts; i++ {
		id := s.newID()
		if _, taken := sheets.FindOrder(rows, id); !taken {
			return id, nil
		}
	}
	return "", errors.New("store: could not allocate a free order id")
}

func (s *Service) afterCreate(ctx context.Context, row sheets.OrderRow) {
	if s.cache != nil {
		if err := s.cache.Put(ctx, row.Summary(s.cfg.SummaryItems)); err != nil {
			s.log.Warn("summary cache put failed", slog.String("order_id", row.OrderID), slog.Any("error", err))
		}
	}
	if s.created != nil {
		env := kafkax.NewEnvelope(orders.EventOrderCreated, s.cfg.ServiceName, traceID(ctx), row.OrderID, orders.OrderCreatedPayload{
			OrderID:       row.OrderID,
			CustomerName:  row.CustomerName,
			PaymentMethod: row.PaymentMethod,
			Items:         orders.ItemQuantities(row.Items),
			Total:         row.Total,
		})
		s.created.Publish(orders.PartitionKey(row.OrderID), kafkax.MustMarshal(env), kafkax.Headers(orders.EventOrderCreated)...)
	}
}

func (s *Service) observe(err error, took time.Duration) {
	if s.metrics == nil {
		return
	}
	outcome := "success"
	switch {
	case err == nil:
	case errors.Is(err, orders.ErrOutOfStock):
		outcome = "stock"
	case errors.Is(err, orders.ErrProductNotFound):
		outcome = "not_found"
	case errors.Is(err, ErrServerBusy):
		outcome = "busy"
	case errors.Is(err, orders.ErrInvalidOrder):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	s.metrics.ObserveCreate(outcome, took)
}

// CheckStock is a lock-free read. Found=false for unknown ids.
func (s *Service) CheckStock(ctx context.Context, id string) (orders.StockLevel, error) {
	products, err := s.wb.Products(ctx)
	if err != nil {
		return orders.StockLevel{}, fmt.Errorf("store: read products: %w", err)
	}
	p, ok := sheets.FindProduct(products, id)
	if !ok {
		return orders.StockLevel{ProductID: strings.TrimSpace(id)}, nil
	}
	return orders.StockLevel{ProductID: p.ID, Stock: p.Stock, Found: true}, nil
}

// GetOrder returns the summary projection for id, possibly from cache.
func (s *Service) GetOrder(ctx context.Context, id string) (orders.OrderSummary, error) {
	if orders.NormalizeID(id) == "" {
		return orders.OrderSummary{}, orders.ErrOrderNotFound
	}
	if s.cache != nil {
		if sum, ok, err := s.cache.Get(ctx, id); err != nil {
			s.log.Warn("summary cache get failed", slog.String("order_id", id), slog.Any("error", err))
		} else if ok {
			return sum, nil
		}
	}
	rows, err := s.wb.Orders(ctx)
	if err != nil {
		return orders.OrderSummary{}, fmt.Errorf("store: read orders: %w", err)
	}
	row, ok := sheets.FindOrder(rows, id)
	if !ok {
		return orders.OrderSummary{}, orders.ErrOrderNotFound
	}
	sum := row.Summary(s.cfg.SummaryItems)
	if s.cache != nil {
		_ = s.cache.Put(ctx, sum)
	}
	return sum, nil
}

// sharedReadTimeout bounds the catalogue read shared by concurrent callers.
const sharedReadTimeout = 10 * time.Second

// ListProducts returns the sellable catalogue. Concurrent callers share one
// workbook read; the returned slice must not be modified. The shared read is
// detached from any single caller, so one caller giving up does not fail the
// others.
func (s *Service) ListProducts(ctx context.Context) ([]orders.Product, error) {
	ch := s.products.DoChan("products", func() (any, error) {
		rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sharedReadTimeout)
		defer cancel()
		all, err := s.wb.Products(rctx)
		if err != nil {
			return nil, err
		}
		out := make([]orders.Product, 0, len(all))
		for _, p := range all {
			if !p.Sellable() {
				s.log.Warn("skipping invalid catalogue row", slog.String("product_id", p.ID))
				continue
			}
			if _, ok := p.Discounted(); !ok {
				p.OldPrice = nil
			}
			out = append(out, p)
		}
		return out, nil
	})
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("store: read products: %w", ctx.Err())
	case res := <-ch:
		if res.Err != nil {
			return nil, fmt.Errorf("store: read products: %w", res.Err)
		}
		return res.Val.([]orders.Product), nil
	}
}

// UpdateStatus applies a staff-driven lifecycle transition.
func (s *Service) UpdateStatus(ctx context.Context, id string, to orders.Status) (orders.OrderSummary, error) {
	if !to.Known() {
		return orders.OrderSummary{}, fmt.Errorf("%w: unknown status %q", orders.ErrInvalidStatus, to)
	}
	rows, err := s.wb.Orders(ctx)
	if err != nil {
		return orders.OrderSummary{}, fmt.Errorf("store: read orders: %w", err)
	}
	row, ok := sheets.FindOrder(rows, id)
	if !ok {
		return orders.OrderSummary{}, orders.ErrOrderNotFound
	}
	from := row.Status
	if !orders.CanTransition(from, to) {
		return orders.OrderSummary{}, fmt.Errorf("%w: %s -> %s", orders.ErrInvalidStatus, from, to)
	}
	if err := s.wb.SetStatus(ctx, row.OrderID, to); err != nil {
		return orders.OrderSummary{}, fmt.Errorf("store: set status: %w", err)
	}
	row.Status = to

	if s.cache != nil {
		if err := s.cache.Invalidate(ctx, row.OrderID); err != nil {
			s.log.Warn("summary cache invalidate failed", slog.String("order_id", row.OrderID), slog.Any("error", err))
		}
	}
	if s.statusChanged != nil {
		env := kafkax.NewEnvelope(orders.EventStatusChanged, s.cfg.ServiceName, traceID(ctx), row.OrderID,
			orders.StatusChangedPayload{OrderID: row.OrderID, From: from, To: to})
		s.statusChanged.Publish(orders.PartitionKey(row.OrderID), kafkax.MustMarshal(env), kafkax.Headers(orders.EventStatusChanged)...)
	}
	s.log.Info("order status changed", slog.String("order_id", row.OrderID), slog.String("from", string(from)), slog.String("to", string(to)))
	return row.Summary(s.cfg.SummaryItems), nil
}

// SeedProducts replaces the catalogue; every row must be sellable.
func (s *Service) SeedProducts(ctx context.Context, products []orders.Product) error {
	for _, p := range products {
		if !p.Sellable() {
			return fmt.Errorf("%w: catalogue row %q", orders.ErrInvalidProduct, p.ID)
		}
	}
	return s.wb.SeedProducts(ctx, products)
}
