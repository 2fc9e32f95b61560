package inventory

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type stockTable struct {
	levels map[string]int
	err    error
}

func (s stockTable) CheckStock(_ context.Context, id string) (orders.StockLevel, error) {
	if s.err != nil {
		return orders.StockLevel{}, s.err
	}
	n, ok := s.levels[orders.NormalizeID(id)]
	return orders.StockLevel{ProductID: id, Stock: n, Found: ok}, nil
}

type capture struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (c *capture) Publish(key, value []byte, headers ...kafkago.Header) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.msgs = append(c.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func newService(t *testing.T, stock StockReader) (*Service, *capture) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	alerts := &capture{}
	return &Service{Redis: rdb, Stock: stock, Alerts: alerts, Threshold: 3, ServiceName: "order-inventory"}, alerts
}

func createdMessage(items ...orders.ItemQty) kafkago.Message {
	env := kafkax.NewEnvelope(orders.EventOrderCreated, "order-api", "req-1", "ORD-00001", orders.OrderCreatedPayload{
		OrderID: "ORD-00001", Items: items, Total: 10,
	})
	return kafkago.Message{Value: kafkax.MustMarshal(env)}
}

func TestStockLowPublished(t *testing.T) {
	svc, alerts := newService(t, stockTable{levels: map[string]int{"p001": 2, "p002": 10}})

	msg := createdMessage(orders.ItemQty{ProductID: "P001", Qty: 1}, orders.ItemQty{ProductID: "P002", Qty: 1}, orders.ItemQty{ProductID: "p001", Qty: 1})
	require.NoError(t, svc.HandleOrderCreated(context.Background(), msg))

	require.Len(t, alerts.msgs, 1)
	var env orders.Envelope
	require.NoError(t, json.Unmarshal(alerts.msgs[0].Value, &env))
	assert.Equal(t, orders.EventStockLow, env.EventType)
	assert.Equal(t, "req-1", env.TraceID)
	p, err := kafkax.UnwrapPayload[orders.StockLowPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, orders.StockLowPayload{ProductID: "P001", Stock: 2, Threshold: 3, OrderID: "ORD-00001"}, p)
}

func TestDuplicateEventIgnored(t *testing.T) {
	svc, alerts := newService(t, stockTable{levels: map[string]int{"p001": 0}})
	msg := createdMessage(orders.ItemQty{ProductID: "P001", Qty: 1})

	require.NoError(t, svc.HandleOrderCreated(context.Background(), msg))
	require.NoError(t, svc.HandleOrderCreated(context.Background(), msg))
	assert.Len(t, alerts.msgs, 1)
}

func TestFailureAllowsRedelivery(t *testing.T) {
	stock := stockTable{err: errors.New("workbook unavailable")}
	svc, alerts := newService(t, stock)
	msg := createdMessage(orders.ItemQty{ProductID: "P001", Qty: 1})

	require.Error(t, svc.HandleOrderCreated(context.Background(), msg))

	svc.Stock = stockTable{levels: map[string]int{"p001": 1}}
	require.NoError(t, svc.HandleOrderCreated(context.Background(), msg))
	assert.Len(t, alerts.msgs, 1)
}

func TestOtherEventsIgnored(t *testing.T) {
	svc, alerts := newService(t, stockTable{})
	env := kafkax.NewEnvelope(orders.EventStatusChanged, "order-api", "", "ORD-00001", orders.StatusChangedPayload{OrderID: "ORD-00001"})
	require.NoError(t, svc.HandleOrderCreated(context.Background(), kafkago.Message{Value: kafkax.MustMarshal(env)}))
	require.NoError(t, svc.HandleOrderCreated(context.Background(), kafkago.Message{Value: []byte("garbage")}))
	assert.Empty(t, alerts.msgs)
}
