package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"golang.org/x/sync/errgroup"

	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/inventory"
	kafkax "github.com/ariefcatur/go-storefront-orders/internal/kafka"
	"github.com/ariefcatur/go-storefront-orders/internal/lock"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
	"github.com/ariefcatur/go-storefront-orders/internal/redisx"
	"github.com/ariefcatur/go-storefront-orders/internal/store"
)

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadInventory()
	if err != nil {
		slog.Error("config", slog.Any("error", err))
		os.Exit(1)
	}
	log := config.NewLogger(os.Stdout, cfg.LogFormat)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	wb, closeWB, err := store.OpenWorkbook(ctx, store.WorkbookConfig{
		Driver:      cfg.WorkbookDriver,
		Path:        cfg.WorkbookPath,
		PostgresDSN: cfg.PostgresDSN,
		MaxConns:    cfg.PostgresConns,
	})
	if err != nil {
		log.Error("open workbook", slog.Any("error", err))
		os.Exit(1)
	}
	defer closeWB()

	rdb, err := redisx.New(ctx, cfg.RedisAddr)
	if err != nil {
		log.Error("redis connect", slog.Any("error", err))
		os.Exit(1)
	}
	defer rdb.Close()

	alerts := kafkax.NewProducer(cfg.KafkaBrokers, orders.TopicStockLow, 256, log)
	alerts.Start()

	// Only CheckStock is used; it never takes the create lock.
	reader := store.NewService(wb, lock.NewLocal(), store.Config{ServiceName: cfg.ServiceName}, store.WithLogger(log))
	svc := &inventory.Service{
		Redis:       rdb,
		Stock:       reader,
		Alerts:      alerts,
		Threshold:   cfg.LowStock,
		ServiceName: cfg.ServiceName,
		Log:         log,
	}
	cons := kafkax.NewConsumer(cfg.KafkaBrokers, cfg.Group, orders.TopicOrderCreated, cfg.Workers, log)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("inventory consumer started",
			slog.String("group", cfg.Group), slog.String("topic", orders.TopicOrderCreated),
			slog.Int("workers", cfg.Workers), slog.Int("low_stock", cfg.LowStock))
		return cons.Start(gctx, svc.HandleOrderCreated)
	})
	if err := g.Wait(); err != nil {
		log.Error("consumer exit", slog.Any("error", err))
	}

	log.Info("shutting down consumer")
	alerts.Close()
	alerts.WaitClosed()
}
