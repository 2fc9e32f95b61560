package checkout

import (
	"context"
	"log/slog"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

type Tracker struct {
	Remote Remote
	Cache  History
	Log    *slog.Logger
}

// FetchOrder looks id up remotely and falls back to the local copy when the
// store errors or has not caught up yet. orders.ErrOrderNotFound is returned
// only when neither side knows the order.
func (t *Tracker) FetchOrder(ctx context.Context, id string) (orders.Order, error) {
	if orders.NormalizeID(id) == "" {
		return orders.Order{}, orders.ErrOrderNotFound
	}
	local, hasLocal := t.Cache.FindByID(ctx, id)

	remote, err := t.Remote.GetOrder(ctx, id)
	if err == nil && orders.NormalizeID(remote.ID) == "" {
		err = orders.ErrOrderNotFound
	}
	if err == nil {
		if hasLocal {
			return Reconcile(remote, &local), nil
		}
		return Reconcile(remote, nil), nil
	}
	if hasLocal {
		t.logger().Info("serving order from local history", slog.String("order_id", local.ID), slog.Any("remote_error", err))
		if local.Items == nil {
			local.Items = []orders.CartItem{}
		}
		return local, nil
	}
	t.logger().Info("order lookup failed", slog.String("order_id", id), slog.Any("error", err))
	return orders.Order{}, orders.ErrOrderNotFound
}

// History returns the locally recorded orders, newest first.
func (t *Tracker) History(ctx context.Context) []orders.Order {
	return t.Cache.ListAll(ctx)
}

func (t *Tracker) logger() *slog.Logger {
	if t.Log != nil {
		return t.Log
	}
	return slog.Default()
}

// Reconcile merges a store summary with the local copy of the same order.
// The store wins for identity, customer name, total and status; local data
// fills fields the summary does not carry, including items when the store
// sent none. Items is never nil.
func Reconcile(remote orders.OrderSummary, local *orders.Order) orders.Order {
	out := orders.Order{
		ID:           remote.ID,
		CustomerName: remote.CustomerName,
		Total:        remote.Total,
		Status:       remote.Status,
		Items:        remote.Items,
	}
	if local != nil {
		out.CustomerPhone = local.CustomerPhone
		out.PaymentMethod = local.PaymentMethod
		out.Date = local.Date
		if len(out.Items) == 0 {
			out.Items = local.Items
		}
		if out.ID == "" {
			out.ID = local.ID
		}
	}
	if out.Items == nil {
		out.Items = []orders.CartItem{}
	}
	return out
}
