package orders

import (
	"math"
	"time"
)

type PaymentMethod string

const (
	PaymentYape PaymentMethod = "YAPE"
	PaymentPlin PaymentMethod = "PLIN"
)

func (m PaymentMethod) Valid() bool {
	return m == PaymentYape || m == PaymentPlin
}

type Product struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Price       float64  `json:"price"`
	OldPrice    *float64 `json:"oldPrice,omitempty"`
	Stock       int      `json:"stock"`
	ImageURL    string   `json:"imageUrl"`
	VideoURL    string   `json:"videoUrl,omitempty"`
	Description string   `json:"description"`
}

// Sellable reports whether the row satisfies the catalogue invariants
// (non-empty id, positive price, non-negative stock).
func (p Product) Sellable() bool {
	return NormalizeID(p.ID) != "" && p.Price > 0 && p.Stock >= 0
}

// Discounted returns the old price when it is strictly greater than the price.
func (p Product) Discounted() (float64, bool) {
	if p.OldPrice == nil || *p.OldPrice <= p.Price {
		return 0, false
	}
	return *p.OldPrice, true
}

type CartItem struct {
	Product
	Quantity int `json:"quantity" validate:"gt=0"`
}

func (c CartItem) Subtotal() float64 {
	return RoundCents(c.Price * float64(c.Quantity))
}

// Order is the full record a client builds at checkout. ID and Status are
// assigned by the store; Items may be missing from store summaries.
type Order struct {
	ID            string        `json:"id,omitempty"`
	CustomerName  string        `json:"customerName" validate:"required"`
	CustomerPhone string        `json:"customerPhone" validate:"required"`
	Items         []CartItem    `json:"items" validate:"required,min=1,dive"`
	Total         float64       `json:"total"`
	PaymentMethod PaymentMethod `json:"paymentMethod" validate:"oneof=YAPE PLIN"`
	Status        Status        `json:"status,omitempty"`
	Date          time.Time     `json:"date,omitempty"`
}

// OrderSummary is the projection returned by order lookups.
type OrderSummary struct {
	ID           string     `json:"id"`
	CustomerName string     `json:"customerName"`
	Total        float64    `json:"total"`
	Status       Status     `json:"status"`
	Items        []CartItem `json:"items,omitempty"`
}

// StockLevel distinguishes an unknown product from one that is sold out.
type StockLevel struct {
	ProductID string `json:"productId"`
	Stock     int    `json:"stock"`
	Found     bool   `json:"found"`
}

// Receipt is what the store hands back after a successful createOrder.
type Receipt struct {
	OrderID string  `json:"orderId"`
	Total   float64 `json:"total"`
}

func RoundCents(v float64) float64 {
	return float64(toCents(v)) / 100
}

func toCents(v float64) int64 {
	return int64(math.Round(v * 100))
}

// SumItems adds price*quantity in integer cents.
func SumItems(items []CartItem) float64 {
	var cents int64
	for _, it := range items {
		cents += toCents(it.Price) * int64(it.Quantity)
	}
	return float64(cents) / 100
}
