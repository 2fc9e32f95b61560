// Package checkout drives the client side of an order: the cart, the
// submission protocol, the confirmation state machine and order lookup.
package checkout

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/ariefcatur/go-storefront-orders/internal/client"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

var (
	ErrEmptyCart          = errors.New("cart is empty")
	ErrMissingCustomer    = errors.New("customer name and phone are required")
	ErrSubmissionInFlight = errors.New("an order is already being submitted")
	ErrWrongStep          = errors.New("action not allowed at this step")
	ErrNotConfirmed       = errors.New("no confirmed order")
)

// Remote is implemented by *client.Client.
type Remote interface {
	CreateOrder(ctx context.Context, o orders.Order) (orders.Receipt, error)
	GetOrder(ctx context.Context, id string) (orders.OrderSummary, error)
}

// History is implemented by *localcache.Cache.
type History interface {
	Save(ctx context.Context, o orders.Order) error
	ListAll(ctx context.Context) []orders.Order
	FindByID(ctx context.Context, id string) (orders.Order, bool)
}

type Customer struct {
	Name          string
	Phone         string
	PaymentMethod orders.PaymentMethod
}

type Submitter struct {
	Remote Remote
	Cache  History
	Cart   *Cart
	Log    *slog.Logger
	Now    func() time.Time
}

// Submit sends the cart as a PENDING order. The cart and history are only
// touched after the store accepts the order; on error both are unchanged.
func (s *Submitter) Submit(ctx context.Context, c Customer) (orders.Order, error) {
	items := s.Cart.Items()
	if len(items) == 0 {
		return orders.Order{}, ErrEmptyCart
	}
	if strings.TrimSpace(c.Name) == "" || strings.TrimSpace(c.Phone) == "" {
		return orders.Order{}, ErrMissingCustomer
	}
	now := time.Now
	if s.Now != nil {
		now = s.Now
	}
	o := orders.Order{
		CustomerName:  strings.TrimSpace(c.Name),
		CustomerPhone: strings.TrimSpace(c.Phone),
		Items:         items,
		Total:         orders.SumItems(items),
		PaymentMethod: c.PaymentMethod,
		Status:        orders.StatusPending,
		Date:          now().UTC(),
	}

	rec, err := s.Remote.CreateOrder(ctx, o)
	if err != nil {
		return orders.Order{}, err
	}
	o.ID = rec.OrderID
	if rec.Total > 0 {
		o.Total = rec.Total
	}

	if err := s.Cache.Save(ctx, o); err != nil {
		s.logger().Warn("order accepted but not saved locally", slog.String("order_id", o.ID), slog.Any("error", err))
	}
	s.Cart.Clear()
	return o, nil
}

func (s *Submitter) logger() *slog.Logger {
	if s.Log != nil {
		return s.Log
	}
	return slog.Default()
}

// UserMessage turns a submission error into the text shown to the shopper.
// Store validation messages are shown verbatim.
func UserMessage(err error) string {
	var re *client.RemoteError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, client.ErrBusy):
		return client.ErrBusy.Error()
	case errors.As(err, &re) && re.Message != "" && !errors.Is(err, client.ErrNetwork):
		return re.Message
	case errors.Is(err, client.ErrNetwork):
		return "could not reach the store, check your connection and try again"
	default:
		return err.Error()
	}
}
