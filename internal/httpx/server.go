package httpx

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/unrolled/secure"

	"github.com/ariefcatur/go-storefront-orders/internal/observability"
)

type RouterConfig struct {
	Timeout    time.Duration
	Metrics    *observability.Metrics
	Production bool
}

func NewRouter(cfg RouterConfig) *chi.Mux {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	headers := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
		ReferrerPolicy:     "strict-origin-when-cross-origin",
		SSLRedirect:        cfg.Production,
		SSLProxyHeaders:    map[string]string{"X-Forwarded-Proto": "https"},
	})

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, middleware.Logger, middleware.Recoverer)
	r.Use(headers.Handler, cfg.Metrics.Middleware)
	r.Use(middleware.Timeout(cfg.Timeout))
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if cfg.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", cfg.Metrics.Handler())
	}
	return r
}
