package orders

import (
	"encoding/json"
	"time"
)

const (
	EventOrderCreated  = "OrderCreated"
	EventStatusChanged = "OrderStatusChanged"
	EventStockLow      = "StockLow"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"` // order id
	Payload       json.RawMessage `json:"payload"`
}

type ItemQty struct {
	ProductID string `json:"product_id"`
	Qty       int    `json:"qty"`
}

type OrderCreatedPayload struct {
	OrderID       string        `json:"order_id"`
	CustomerName  string        `json:"customer_name"`
	PaymentMethod PaymentMethod `json:"payment_method"`
	Items         []ItemQty     `json:"items"`
	Total         float64       `json:"total"`
}

type StatusChangedPayload struct {
	OrderID string `json:"order_id"`
	From    Status `json:"from"`
	To      Status `json:"to"`
}

type StockLowPayload struct {
	ProductID string `json:"product_id"`
	Stock     int    `json:"stock"`
	Threshold int    `json:"threshold"`
	OrderID   string `json:"order_id"`
}

func ItemQuantities(items []CartItem) []ItemQty {
	out := make([]ItemQty, 0, len(items))
	for _, it := range items {
		out = append(out, ItemQty{ProductID: it.ID, Qty: it.Quantity})
	}
	return out
}
