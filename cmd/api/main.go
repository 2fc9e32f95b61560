package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/httpx"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/lock"
	"github.com/ariefcatur/go-storefront-orders/internal/observability"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

func main() {
	seed := flag.String("seed", "", "load a JSON product catalogue into the workbook before serving")
	flag.Parse()

	_ = godotenv.Load()
	cfg, err := config.LoadServer()
	if err != nil {
		slog.Error("config", slog.Any("error", err))
		os.Exit(1)
	}
	log := config.NewLogger(os.Stdout, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	wb, closeWB, err := store.OpenWorkbook(ctx, store.WorkbookConfig{
		Driver:      cfg.WorkbookDriver,
		Path:        cfg.WorkbookPath,
		PostgresDSN: cfg.PostgresDSN,
		MaxConns:    cfg.PostgresConns,
	})
	if err != nil {
		log.Error("open workbook", slog.String("driver", cfg.WorkbookDriver), slog.Any("error", err))
		os.Exit(1)
	}
	defer closeWB()

	metrics := observability.NewMetrics()
	opts := []store.Option{store.WithLogger(log), store.WithMetrics(metrics)}

	// Redis: distributed lock + summary cache. Without it the lock is in-process.
	var locker lock.Locker = lock.NewLocal()
	if cfg.RedisAddr != "" {
		rdb, err := redisx.New(ctx, cfg.RedisAddr)
		if err != nil {
			log.Error("redis connect", slog.Any("error", err))
			os.Exit(1)
		}
		defer rdb.Close()
		locker = lock.NewRedis(rdb, cfg.LockLease)
		opts = append(opts, store.WithSummaryCache(redisx.NewSummaryCache(rdb, redisx.TTLSummaryCache)))
	}

	var producers []*kafkax.Producer
	if len(cfg.KafkaBrokers) > 0 {
		created := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicOrderCreated, 1024, log)
		changed := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStatusChanged, 256, log)
		created.Start()
		changed.Start()
		producers = append(producers, created, changed)
		opts = append(opts, store.WithEvents(created, changed))
	}

	svc := store.NewService(wb, locker, store.Config{
		ServiceName:  cfg.ServiceName,
		LockWait:     cfg.LockWait,
		SummaryItems: cfg.SummaryItems,
	}, opts...)

	if *seed != "" {
		ps, err := store.LoadCatalogue(*seed)
		if err == nil {
			err = svc.SeedProducts(ctx, ps)
		}
		if err != nil {
			log.Error("seed catalogue", slog.String("path", *seed), slog.Any("error", err))
			os.Exit(1)
		}
		log.Info("catalogue seeded", slog.Int("products", len(ps)))
	}

	router := httpx.NewRouter(httpx.RouterConfig{Timeout: cfg.RequestTimeout, Metrics: metrics})
	h := &httpx.StoreHandler{Store: svc, Log: log, AdminKey: cfg.AdminKey, RateLimit: cfg.RateLimit}
	h.Register(router)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: router, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("HTTP listening", slog.String("addr", cfg.HTTPAddr), slog.String("workbook", cfg.WorkbookDriver))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("listen", slog.Any("error", err))
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case <-sig:
	case <-ctx.Done():
	}
	log.Info("shutting down")

	ctx2, cancel2 := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel2()
	_ = srv.Shutdown(ctx2)
	for _, p := range producers {
		p.Close()
	}
	for _, p := range producers {
		p.WaitClosed()
	}
}
