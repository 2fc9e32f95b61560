package httpx

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/httprate"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

const (
	ActionGetProducts  = "getProducts"
	ActionCheckStock   = "checkStock"
	ActionGetOrder     = "getOrder"
	ActionCreateOrder  = "createOrder"
	ActionUpdateStatus = "updateStatus"

	AdminKeyHeader = "X-Admin-Key"

	readTimeout   = 3 * time.Second
	createTimeout = 15 * time.Second
	maxBodyBytes  = 1 << 20
)

// Store is implemented by *store.Service.
type Store interface {
	ListProducts(ctx context.Context) ([]orders.Product, error)
	CheckStock(ctx context.Context, id string) (orders.StockLevel, error)
	GetOrder(ctx context.Context, id string) (orders.OrderSummary, error)
	CreateOrder(ctx context.Context, o orders.Order) (orders.Receipt, error)
	UpdateStatus(ctx context.Context, id string, to orders.Status) (orders.OrderSummary, error)
}

type StoreHandler struct {
	Store    Store
	Log      *slog.Logger
	AdminKey string // empty disables updateStatus
	// RateLimit caps POST /exec per client IP per minute; zero disables it.
	RateLimit int
}

type postRequest struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type statusUpdate struct {
	OrderID string        `json:"orderId"`
	Status  orders.Status `json:"status"`
}

func (h *StoreHandler) Register(r chi.Router) {
	if h.Log == nil {
		h.Log = slog.Default()
	}
	r.Get("/exec", h.get)
	if h.RateLimit > 0 {
		r.With(httprate.Limit(h.RateLimit, time.Minute,
			httprate.WithKeyFuncs(httprate.KeyByIP),
			httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
				respondMessage(w, http.StatusTooManyRequests, "too many requests")
			}),
		)).Post("/exec", h.post)
		return
	}
	r.Post("/exec", h.post)
}

func (h *StoreHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), readTimeout)
	defer cancel()

	q := r.URL.Query()
	switch action := q.Get("action"); action {
	case ActionGetProducts:
		ps, err := h.Store.ListProducts(ctx)
		if err != nil {
			respondError(w, h.Log, err)
			return
		}
		respondOK(w, ps)

	case ActionCheckStock:
		id := q.Get("id")
		if orders.NormalizeID(id) == "" {
			respondMessage(w, http.StatusBadRequest, "missing id")
			return
		}
		lvl, err := h.Store.CheckStock(ctx, id)
		if err != nil {
			respondError(w, h.Log, err)
			return
		}
		if !lvl.Found {
			writeJSON(w, http.StatusNotFound, Response{Status: statusError, Message: orders.ErrProductNotFound.Error(), Data: 0})
			return
		}
		respondOK(w, lvl.Stock)

	case ActionGetOrder:
		id := q.Get("orderId")
		if orders.NormalizeID(id) == "" {
			respondMessage(w, http.StatusBadRequest, "missing orderId")
			return
		}
		sum, err := h.Store.GetOrder(ctx, id)
		if err != nil {
			respondError(w, h.Log, err)
			return
		}
		respondOK(w, sum)

	default:
		respondMessage(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", action))
	}
}

func (h *StoreHandler) post(w http.ResponseWriter, r *http.Request) {
	var req postRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondMessage(w, http.StatusBadRequest, "invalid json")
		return
	}

	ctx := store.WithTraceID(r.Context(), middleware.GetReqID(r.Context()))
	switch req.Action {
	case ActionCreateOrder:
		var o orders.Order
		if err := decodePayload(req.Payload, &o); err != nil {
			respondError(w, h.Log, err)
			return
		}
		ctx, cancel := context.WithTimeout(ctx, createTimeout)
		defer cancel()
		rec, err := h.Store.CreateOrder(ctx, o)
		if err != nil {
			respondError(w, h.Log, err)
			return
		}
		respondOK(w, rec)

	case ActionUpdateStatus:
		if !h.admin(r) {
			respondMessage(w, http.StatusForbidden, "forbidden")
			return
		}
		var upd statusUpdate
		if err := decodePayload(req.Payload, &upd); err != nil {
			respondError(w, h.Log, err)
			return
		}
		ctx, cancel := context.WithTimeout(ctx, readTimeout)
		defer cancel()
		sum, err := h.Store.UpdateStatus(ctx, upd.OrderID, upd.Status)
		if err != nil {
			respondError(w, h.Log, err)
			return
		}
		respondOK(w, sum)

	default:
		respondMessage(w, http.StatusBadRequest, fmt.Sprintf("unknown action %q", req.Action))
	}
}

func (h *StoreHandler) admin(r *http.Request) bool {
	if h.AdminKey == "" {
		return false
	}
	got := r.Header.Get(AdminKeyHeader)
	return subtle.ConstantTimeCompare([]byte(got), []byte(h.AdminKey)) == 1
}

func decodePayload(raw json.RawMessage, v any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return fmt.Errorf("%w: missing payload", errBadRequest)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: invalid payload", errBadRequest)
	}
	return nil
}
