package orders

import (
	"errors"
	"fmt"
)

var (
	ErrOrderNotFound   = errors.New("order not found")
	ErrProductNotFound = errors.New("product not found")
	ErrOutOfStock      = errors.New("insufficient stock")
	ErrInvalidOrder    = errors.New("invalid order")
	ErrInvalidProduct  = errors.New("invalid product")
	ErrInvalidStatus   = errors.New("invalid status transition")
)

// UnknownProductError names the first item of an order that has no catalogue row.
type UnknownProductError struct {
	Item string
}

func (e *UnknownProductError) Error() string {
	return fmt.Sprintf("product not found: %s", e.Item)
}

func (e *UnknownProductError) Unwrap() error { return ErrProductNotFound }

type InsufficientStockError struct {
	Item      string
	Required  int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s, available: %d", e.Item, e.Available)
}

func (e *InsufficientStockError) Unwrap() error { return ErrOutOfStock }
