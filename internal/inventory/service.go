// Package inventory watches order.created events and raises StockLow when an
// order leaves a product at or below the reorder threshold.
package inventory

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
)

// StockReader is implemented by *store.Service.
type StockReader interface {
	CheckStock(ctx context.Context, id string) (orders.StockLevel, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

type Service struct {
	Redis       *redis.Client
	Stock       StockReader
	Alerts      Publisher // product.stock.low
	Threshold   int
	ServiceName string
	Log         *slog.Logger
}

// HandleOrderCreated is installed as the consumer handler.
func (s *Service) HandleOrderCreated(ctx context.Context, m kafkago.Message) error {
	var env orders.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		s.logger().Warn("dropping undecodable message", slog.Int64("offset", m.Offset), slog.Any("error", err))
		return nil
	}
	if env.EventType != orders.EventOrderCreated {
		return nil
	}

	dkey := fmt.Sprintf(redisx.KeyDedup, "inventory", env.EventID)
	first, err := redisx.MarkOnce(ctx, s.Redis, dkey, redisx.TTLDedup)
	if err != nil {
		return fmt.Errorf("inventory: dedup: %w", err)
	}
	if !first {
		return nil
	}

	if err := s.check(ctx, env); err != nil {
		// let the redelivery run again
		_ = s.Redis.Del(ctx, dkey).Err()
		return err
	}
	return nil
}

func (s *Service) check(ctx context.Context, env orders.Envelope) error {
	p, err := kafkax.UnwrapPayload[orders.OrderCreatedPayload](env.Payload)
	if err != nil {
		return err
	}
	seen := map[string]bool{}
	for _, it := range p.Items {
		key := orders.NormalizeID(it.ProductID)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true

		lvl, err := s.Stock.CheckStock(ctx, it.ProductID)
		if err != nil {
			return fmt.Errorf("inventory: check stock %s: %w", it.ProductID, err)
		}
		if !lvl.Found || lvl.Stock > s.Threshold {
			continue
		}
		s.publishLow(env.TraceID, p.OrderID, lvl)
	}
	return nil
}

func (s *Service) publishLow(traceID, orderID string, lvl orders.StockLevel) {
	s.logger().Info("stock low", slog.String("product_id", lvl.ProductID), slog.Int("stock", lvl.Stock), slog.String("order_id", orderID))
	if s.Alerts == nil {
		return
	}
	env := kafkax.NewEnvelope(orders.EventStockLow, s.ServiceName, traceID, orderID, orders.StockLowPayload{
		ProductID: lvl.ProductID,
		Stock:     lvl.Stock,
		Threshold: s.Threshold,
		OrderID:   orderID,
	})
	s.Alerts.Publish(orders.PartitionKey(lvl.ProductID), kafkax.MustMarshal(env), kafkax.Headers(orders.EventStockLow)...)
}

func (s *Service) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}
