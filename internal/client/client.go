// Package client talks to the remote order store over its /exec endpoint.
// It never retries; every failure is classified and returned to the caller.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

var (
	// ErrNetwork covers requests that did not complete and malformed or
	// unexpected responses.
	ErrNetwork    = errors.New("network failure")
	ErrValidation = errors.New("validation failure")
	ErrBusy       = errors.New("server busy, try again")
	ErrNotFound   = errors.New("not found")
)

// RemoteError carries the store's message verbatim. Kind is one of the
// package sentinels.
type RemoteError struct {
	Code    int
	Message string
	Kind    error
}

func (e *RemoteError) Error() string { return e.Message }

func (e *RemoteError) Unwrap() error { return e.Kind }

type Client struct {
	endpoint string
	hc       *http.Client
	log      *slog.Logger
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.hc = hc }
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a client for the store endpoint, e.g. "http://host:8081/exec".
func New(endpoint string, opts ...Option) *Client {
	c := &Client{endpoint: endpoint, hc: http.DefaultClient, log: slog.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Status  string          `json:"status"`
	Data    json.RawMessage `json:"data"`
	Message string          `json:"message"`
}

// Products returns the catalogue. On any failure the list is empty and the
// error says why.
func (c *Client) Products(ctx context.Context) ([]orders.Product, error) {
	var ps []orders.Product
	if err := c.get(ctx, url.Values{"action": {"getProducts"}}, &ps); err != nil {
		c.log.Warn("products fetch failed", slog.Any("error", err))
		return []orders.Product{}, err
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	return ps, nil
}

// CheckStock returns the live stock for id. Unknown products yield ErrNotFound.
func (c *Client) CheckStock(ctx context.Context, id string) (int, error) {
	var n int
	if err := c.get(ctx, url.Values{"action": {"checkStock"}, "id": {id}}, &n); err != nil {
		return 0, err
	}
	return n, nil
}

// GetOrder returns the store's summary for id. A success envelope without an
// order is reported as ErrNotFound.
func (c *Client) GetOrder(ctx context.Context, id string) (orders.OrderSummary, error) {
	var sum *orders.OrderSummary
	if err := c.get(ctx, url.Values{"action": {"getOrder"}, "orderId": {id}}, &sum); err != nil {
		return orders.OrderSummary{}, err
	}
	if sum == nil || orders.NormalizeID(sum.ID) == "" {
		return orders.OrderSummary{}, &RemoteError{Code: http.StatusOK, Message: "order not found", Kind: ErrNotFound}
	}
	return *sum, nil
}

func (c *Client) CreateOrder(ctx context.Context, o orders.Order) (orders.Receipt, error) {
	body, err := json.Marshal(struct {
		Action  string       `json:"action"`
		Payload orders.Order `json:"payload"`
	}{Action: "createOrder", Payload: o})
	if err != nil {
		return orders.Receipt{}, fmt.Errorf("client: encode order: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return orders.Receipt{}, fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var rec orders.Receipt
	if err := c.do(req, &rec); err != nil {
		return orders.Receipt{}, err
	}
	if rec.OrderID == "" {
		return orders.Receipt{}, fmt.Errorf("%w: response carries no order id", ErrNetwork)
	}
	return rec, nil
}

func (c *Client) get(ctx context.Context, q url.Values, out any) error {
	u, err := url.Parse(c.endpoint)
	if err != nil {
		return fmt.Errorf("client: endpoint: %w", err)
	}
	u.RawQuery = q.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("client: build request: %w", err)
	}
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrNetwork, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read body: %v", ErrNetwork, err)
	}
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return fmt.Errorf("%w: http %d: malformed body", ErrNetwork, resp.StatusCode)
	}
	if env.Status != "success" || resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &RemoteError{Code: resp.StatusCode, Message: env.Message, Kind: classify(resp.StatusCode, env.Message)}
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("%w: decode data: %v", ErrNetwork, err)
	}
	return nil
}

// classify uses the HTTP code first and falls back to the message, since
// some deployments answer every call with 200.
func classify(code int, msg string) error {
	switch code {
	case http.StatusConflict, http.StatusBadRequest:
		return ErrValidation
	case http.StatusServiceUnavailable:
		return ErrBusy
	case http.StatusNotFound:
		return ErrNotFound
	}
	m := strings.ToLower(msg)
	switch {
	case strings.Contains(m, "insufficient stock"), strings.HasPrefix(m, "product not found:"):
		return ErrValidation
	case strings.Contains(m, "busy"):
		return ErrBusy
	case strings.Contains(m, "not found"):
		return ErrNotFound
	case code >= 200 && code < 300:
		return ErrValidation
	}
	return ErrNetwork
}
