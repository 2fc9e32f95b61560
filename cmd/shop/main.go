package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/joho/godotenv"

	"github.com/ariefcatur/go-storefront-orders/internal/checkout"
	"github.com/ariefcatur/go-storefront-orders/internal/client"
	"github.com/ariefcatur/go-storefront-orders/internal/config"
	"github.com/ariefcatur/go-storefront-orders/internal/localcache"
	"github.com/ariefcatur/go-storefront-orders/internal/orders"
)

const usage = `usage: shop <command> [flags]

commands:
  products                      list the catalogue
  stock <id>                    show live stock for a product
  order -name N -phone P [-method YAPE|PLIN] -item ID:QTY [-item ...]
  track <orderId>               look an order up (falls back to local history)
  history                       list orders placed from this device
`

type itemFlags []string

func (f *itemFlags) String() string     { return strings.Join(*f, ",") }
func (f *itemFlags) Set(v string) error { *f = append(*f, v); return nil }

type app struct {
	cfg   config.Shop
	log   *slog.Logger
	api   *client.Client
	cache *localcache.Cache
}

func main() {
	_ = godotenv.Load()
	cfg, err := config.LoadShop()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	if len(os.Args) < 2 {
		fmt.Fprint(os.Stderr, usage)
		os.Exit(2)
	}
	// stdout carries command output only.
	log := config.NewLogger(os.Stderr, cfg.LogFormat)

	slot, closeSlot, err := openSlot(cfg)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer closeSlot()

	a := &app{
		cfg:   cfg,
		log:   log,
		api:   client.New(cfg.StoreURL, client.WithLogger(log)),
		cache: localcache.New(slot, log),
	}
	if err := a.run(context.Background(), os.Args[1], os.Args[2:]); err != nil {
		fmt.Fprintln(os.Stderr, "error:", checkout.UserMessage(err))
		closeSlot()
		os.Exit(1)
	}
}

func openSlot(cfg config.Shop) (localcache.Slot, func(), error) {
	if cfg.CacheDriver == config.CacheSQLite {
		s, err := localcache.OpenSQLiteSlot(filepath.Join(cfg.CacheDir, "shop.db"), localcache.SlotName)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() { _ = s.Close() }, nil
	}
	s, err := localcache.NewFileSlot(cfg.CacheDir, localcache.SlotName)
	return s, func() {}, err
}

func (a *app) run(ctx context.Context, cmd string, args []string) error {
	switch cmd {
	case "products":
		return a.products(ctx)
	case "stock":
		if len(args) != 1 {
			return errors.New("stock needs a product id")
		}
		n, err := a.api.CheckStock(ctx, args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s: %d\n", args[0], n)
		return nil
	case "order":
		return a.order(ctx, args)
	case "track":
		if len(args) != 1 {
			return errors.New("track needs an order id")
		}
		return a.track(ctx, args[0])
	case "history":
		return a.history(ctx)
	}
	fmt.Fprint(os.Stderr, usage)
	return fmt.Errorf("unknown command %q", cmd)
}

func (a *app) products(ctx context.Context) error {
	ps, err := a.api.Products(ctx)
	if err != nil {
		return err
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tPRICE\tSTOCK")
	for _, p := range ps {
		price := fmt.Sprintf("S/ %.2f", p.Price)
		if old, ok := p.Discounted(); ok {
			price += fmt.Sprintf(" (antes S/ %.2f)", old)
		}
		stock := strconv.Itoa(p.Stock)
		if p.Stock == 0 {
			stock = "agotado"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.ID, p.Name, price, stock)
	}
	return w.Flush()
}

func (a *app) order(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("order", flag.ContinueOnError)
	name := fs.String("name", "", "customer name")
	phone := fs.String("phone", "", "customer phone")
	method := fs.String("method", string(orders.PaymentYape), "payment method (YAPE or PLIN)")
	var items itemFlags
	fs.Var(&items, "item", "product ID:QTY, repeatable")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ps, err := a.api.Products(ctx)
	if err != nil {
		return err
	}
	cart := &checkout.Cart{}
	for _, raw := range items {
		id, qty, err := parseItem(raw)
		if err != nil {
			return err
		}
		p, ok := findProduct(ps, id)
		if !ok {
			return fmt.Errorf("product not found: %s", id)
		}
		if got := cart.Add(p, qty); got < qty {
			fmt.Fprintf(os.Stderr, "note: %s limited to %d (stock)\n", p.ID, got)
		}
	}

	m := checkout.NewMachine(&checkout.Submitter{Remote: a.api, Cache: a.cache, Cart: cart, Log: a.log})
	m.SetCustomer(*name, *phone)
	if err := m.SetPaymentMethod(orders.PaymentMethod(strings.ToUpper(*method))); err != nil {
		return err
	}
	if err := m.ToPayment(); err != nil {
		return err
	}
	o, err := m.Confirm(ctx)
	if err != nil {
		return err
	}
	link, err := m.PaymentLink(a.cfg.WhatsAppPhone)
	if err != nil {
		return err
	}
	fmt.Printf("pedido %s registrado, total S/ %.2f\n", o.ID, o.Total)
	fmt.Printf("envía tu constancia de pago: %s\n", link)
	return nil
}

func (a *app) track(ctx context.Context, id string) error {
	tr := &checkout.Tracker{Remote: a.api, Cache: a.cache, Log: a.log}
	o, err := tr.FetchOrder(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("%s  %s  S/ %.2f  %s (%d/4)\n", o.ID, o.CustomerName, o.Total, o.Status, o.Status.Step())
	for _, it := range o.Items {
		fmt.Printf("  - %dx %s\n", it.Quantity, it.Name)
	}
	return nil
}

func (a *app) history(ctx context.Context) error {
	tr := &checkout.Tracker{Remote: a.api, Cache: a.cache, Log: a.log}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tDATE\tTOTAL\tITEMS")
	for _, o := range tr.History(ctx) {
		fmt.Fprintf(w, "%s\t%s\tS/ %.2f\t%d\n", o.ID, o.Date.Local().Format("2006-01-02 15:04"), o.Total, len(o.Items))
	}
	return w.Flush()
}

func parseItem(s string) (string, int, error) {
	id, qtyStr, ok := strings.Cut(s, ":")
	qty := 1
	if ok {
		n, err := strconv.Atoi(qtyStr)
		if err != nil || n <= 0 {
			return "", 0, fmt.Errorf("bad quantity in %q", s)
		}
		qty = n
	}
	if strings.TrimSpace(id) == "" {
		return "", 0, fmt.Errorf("bad item %q", s)
	}
	return id, qty, nil
}

func findProduct(ps []orders.Product, id string) (orders.Product, bool) {
	for _, p := range ps {
		if orders.SameID(p.ID, id) {
			return p, true
		}
	}
	return orders.Product{}, false
}
