package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

// Publisher is satisfied by *kafka.Producer (internal/kafka).
type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}

type SummaryCache interface {
	Get(ctx context.Context, orderID string) (orders.OrderSummary, bool, error)
	Put(ctx context.Context, s orders.OrderSummary) error
	Invalidate(ctx context.Context, orderID string) error
}

// Metrics receives createOrder outcomes ("success", "stock", "not_found", "busy", "invalid", "error").
type Metrics interface {
	ObserveCreate(outcome string, took time.Duration)
}

type Config struct {
	ServiceName  string
	LockName     string
	LockWait     time.Duration
	SummaryItems bool // include the item list in getOrder projections
	IDAttempts   int
}

func (c Config) withDefaults() Config {
	if c.ServiceName == "" {
		c.ServiceName = "order-api"
	}
	if c.LockName == "" {
		c.LockName = "orders:create"
	}
	if c.LockWait <= 0 {
		c.LockWait = 10 * time.Second
	}
	if c.IDAttempts <= 0 {
		c.IDAttempts = 8
	}
	return c
}

type Option func(*Service)

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithEvents wires the order.created and order.status.changed producers. Either may be nil.
func WithEvents(created, statusChanged Publisher) Option {
	return func(s *Service) {
		s.created = created
		s.statusChanged = statusChanged
	}
}

func WithSummaryCache(c SummaryCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithMetrics(m Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithIDGenerator(gen func() string) Option {
	return func(s *Service) { s.newID = gen }
}

type traceKey struct{}

// WithTraceID tags ctx with the request id that ends up on published events.
func WithTraceID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, traceKey{}, id)
}

func traceID(ctx context.Context) string {
	id, _ := ctx.Value(traceKey{}).(string)
	return id
}
