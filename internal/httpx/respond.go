package httpx

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

const (
	statusSuccess = "success"
	statusError   = "error"
)

// Response is the envelope every /exec call answers with.
type Response struct {
	Status  string `json:"status"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
}

var errBadRequest = errors.New("bad request")

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func respondOK(w http.ResponseWriter, data any) {
	writeJSON(w, http.StatusOK, Response{Status: statusSuccess, Data: data})
}

func respondMessage(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, Response{Status: statusError, Message: msg})
}

// respondError maps store and domain errors onto HTTP codes. Validation
// messages are passed through verbatim; anything unexpected is logged and
// reported as an internal error.
func respondError(w http.ResponseWriter, log *slog.Logger, err error) {
	var (
		stockErr   *orders.InsufficientStockError
		unknownErr *orders.UnknownProductError
	)
	switch {
	case errors.As(err, &stockErr), errors.As(err, &unknownErr):
		respondMessage(w, http.StatusConflict, err.Error())
	case errors.Is(err, store.ErrServerBusy):
		respondMessage(w, http.StatusServiceUnavailable, store.ErrServerBusy.Error())
	case errors.Is(err, orders.ErrOrderNotFound):
		respondMessage(w, http.StatusNotFound, orders.ErrOrderNotFound.Error())
	case errors.Is(err, orders.ErrProductNotFound):
		respondMessage(w, http.StatusNotFound, orders.ErrProductNotFound.Error())
	case errors.Is(err, orders.ErrInvalidOrder),
		errors.Is(err, orders.ErrInvalidStatus),
		errors.Is(err, errBadRequest):
		respondMessage(w, http.StatusBadRequest, err.Error())
	default:
		log.Error("request failed", slog.Any("error", err))
		respondMessage(w, http.StatusInternalServerError, "internal error")
	}
}
