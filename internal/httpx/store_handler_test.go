package httpx

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ariefcatur/go-storefront-orders/internal/lock"
	"github.com/ariefcatur/go-storefront-orders/internal/observability"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/sheets"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

type rawResponse struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

func newTestServer(t *testing.T, h *StoreHandler) *httptest.Server {
	t.Helper()
	r := NewRouter(RouterConfig{Metrics: observability.NewMetrics()})
	h.Register(r)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func newStore() *store.Service {
	wb := sheets.NewMemory(
		orders.Product{ID: "P001", Name: "Zapatillas Urban Flow", Price: 89.90, Stock: 15},
		orders.Product{ID: "P002", Name: "Audífonos Bluetooth Pro", Price: 45, Stock: 1},
	)
	return store.NewService(wb, lock.NewLocal(), store.Config{})
}

func get(t *testing.T, srv *httptest.Server, query string) (int, rawResponse) {
	t.Helper()
	resp, err := http.Get(srv.URL + "/exec?" + query)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out rawResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func post(t *testing.T, srv *httptest.Server, body any, header http.Header) (int, rawResponse) {
	t.Helper()
	b, err := json.Marshal(body)
	require.NoError(t, err)
	req, err := http.NewRequest(http.MethodPost, srv.URL+"/exec", bytes.NewReader(b))
	require.NoError(t, err)
	for k, v := range header {
		req.Header[k] = v
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out rawResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func createPayload(items ...orders.CartItem) map[string]any {
	return map[string]any{
		"action": ActionCreateOrder,
		"payload": orders.Order{
			CustomerName:  "Ana Torres",
			CustomerPhone: "999111222",
			Items:         items,
			PaymentMethod: orders.PaymentYape,
			Status:        orders.StatusPending,
			Date:          time.Now(),
		},
	}
}

func line(id string, qty int) orders.CartItem {
	return orders.CartItem{Product: orders.Product{ID: id}, Quantity: qty}
}

func TestGetProducts(t *testing.T) {
	srv := newTestServer(t, &StoreHandler{Store: newStore()})

	code, resp := get(t, srv, "action=getProducts")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", resp.Status)
	var ps []orders.Product
	require.NoError(t, json.Unmarshal(resp.Data, &ps))
	require.Len(t, ps, 2)
	assert.Equal(t, "P001", ps[0].ID)
}

func TestCheckStock(t *testing.T) {
	srv := newTestServer(t, &StoreHandler{Store: newStore()})

	code, resp := get(t, srv, "action=checkStock&id=p001")
	require.Equal(t, http.StatusOK, code)
	assert.JSONEq(t, "15", string(resp.Data))

	code, resp = get(t, srv, "action=checkStock&id=NOPE")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "error", resp.Status)
	assert.Equal(t, "product not found", resp.Message)
	assert.JSONEq(t, "0", string(resp.Data))

	code, _ = get(t, srv, "action=checkStock")
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateThenGetOrder(t *testing.T) {
	srv := newTestServer(t, &StoreHandler{Store: newStore()})

	code, resp := post(t, srv, createPayload(line("P001", 2)), nil)
	require.Equal(t, http.StatusOK, code, resp.Message)
	var rec orders.Receipt
	require.NoError(t, json.Unmarshal(resp.Data, &rec))
	assert.True(t, orders.ValidOrderID(rec.OrderID), rec.OrderID)
	assert.InDelta(t, 179.80, rec.Total, 0.001)

	code, resp = get(t, srv, "action=getOrder&orderId="+rec.OrderID)
	require.Equal(t, http.StatusOK, code)
	var sum orders.OrderSummary
	require.NoError(t, json.Unmarshal(resp.Data, &sum))
	assert.Equal(t, orders.StatusPending, sum.Status)
	assert.Equal(t, "Ana Torres", sum.CustomerName)

	code, resp = get(t, srv, "action=getOrder&orderId=ORD-00000")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, "order not found", resp.Message)
}

func TestCreateOrderErrorsAreMapped(t *testing.T) {
	srv := newTestServer(t, &StoreHandler{Store: newStore()})

	code, resp := post(t, srv, createPayload(line("P002", 3)), nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "insufficient stock for P002, available: 1", resp.Message)

	code, resp = post(t, srv, createPayload(line("P404", 1)), nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, "product not found: P404", resp.Message)

	code, _ = post(t, srv, createPayload(), nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = post(t, srv, map[string]any{"action": "dropTables"}, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = post(t, srv, map[string]any{"action": ActionCreateOrder}, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

type busyLocker struct{}

func (busyLocker) Acquire(context.Context, string, time.Duration) (lock.Release, error) {
	return nil, lock.ErrBusy
}

func TestCreateOrderBusy(t *testing.T) {
	svc := store.NewService(sheets.NewMemory(orders.Product{ID: "P001", Name: "x", Price: 1, Stock: 1}), busyLocker{}, store.Config{})
	srv := newTestServer(t, &StoreHandler{Store: svc})

	code, resp := post(t, srv, createPayload(line("P001", 1)), nil)
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "server busy, try again", resp.Message)
}

func TestUpdateStatusRequiresAdminKey(t *testing.T) {
	srv := newTestServer(t, &StoreHandler{Store: newStore(), AdminKey: "s3cret"})

	_, resp := post(t, srv, createPayload(line("P001", 1)), nil)
	var rec orders.Receipt
	require.NoError(t, json.Unmarshal(resp.Data, &rec))

	body := map[string]any{"action": ActionUpdateStatus, "payload": statusUpdate{OrderID: rec.OrderID, Status: orders.StatusConfirmed}}
	code, _ := post(t, srv, body, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, resp = post(t, srv, body, http.Header{AdminKeyHeader: {"s3cret"}})
	require.Equal(t, http.StatusOK, code, resp.Message)
	var sum orders.OrderSummary
	require.NoError(t, json.Unmarshal(resp.Data, &sum))
	assert.Equal(t, orders.StatusConfirmed, sum.Status)

	back := map[string]any{"action": ActionUpdateStatus, "payload": statusUpdate{OrderID: rec.OrderID, Status: orders.StatusPending}}
	code, _ = post(t, srv, back, http.Header{AdminKeyHeader: {"s3cret"}})
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestCreateOrderRateLimited(t *testing.T) {
	srv := newTestServer(t, &StoreHandler{Store: newStore(), RateLimit: 1})

	code, _ := post(t, srv, createPayload(line("P001", 1)), nil)
	require.Equal(t, http.StatusOK, code)
	code, resp := post(t, srv, createPayload(line("P001", 1)), nil)
	assert.Equal(t, http.StatusTooManyRequests, code)
	assert.Equal(t, "error", resp.Status)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(t, &StoreHandler{Store: newStore()})
	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
}
