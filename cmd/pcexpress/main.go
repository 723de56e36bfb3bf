package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/common-nighthawk/go-figure"
	"github.com/jrsteele09/pcexpress-session/credentials"
	"github.com/jrsteele09/pcexpress-session/internal/config"
	apperrors "github.com/jrsteele09/pcexpress-session/internal/errors"
	"github.com/jrsteele09/pcexpress-session/internal/logging"
	"github.com/jrsteele09/pcexpress-session/inventory"
	"github.com/jrsteele09/pcexpress-session/pipeline"
	"github.com/jrsteele09/pcexpress-session/sessions"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

const usage = `usage: pcexpress [flags] <command> [command flags]

commands:
  login       sign in and store the session
  register    create an account
  status      show the current session
  logout      clear the stored session
  products    list products (-q, -category, -low, -sort, -desc)
  suppliers   list suppliers
  orders      list purchase orders
  dashboard   stock overview
`

type app struct {
	cfg   config.Config
	store *credentials.Store
	ctrl  *sessions.Controller
	email string
	pass  string
	json  bool
}

func main() {
	if err := run(os.Args[1:]); err != nil && !errors.Is(err, flag.ErrHelp) {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func run(args []string) error {
	fs := flag.NewFlagSet("pcexpress", flag.ContinueOnError)
	fs.Usage = func() { fmt.Fprint(fs.Output(), usage); fs.PrintDefaults() }
	envFile := fs.String("env-file", ".env", "dotenv file to load")
	email := fs.String("email", os.Getenv("PCEXPRESS_EMAIL"), "account email")
	password := fs.String("password", os.Getenv("PCEXPRESS_PASSWORD"), "account password")
	asJSON := fs.Bool("json", false, "print JSON instead of tables")
	banner := fs.Bool("banner", false, "print the application banner")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return fmt.Errorf("no command given")
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	log.Logger = logging.New(cfg.GetEnv(), cfg.GetLogLevel())
	if *banner {
		displayAppname(cfg.GetAppName())
	}

	store, err := newStore(cfg)
	if err != nil {
		return err
	}
	metrics, err := pipeline.NewMetrics(prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}
	ctrl, err := sessions.New(cfg, store, sessions.WithMetrics(metrics))
	if err != nil {
		return err
	}
	ctrl.Initialize()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, store: store, ctrl: ctrl, email: *email, pass: *password, json: *asJSON}
	cmd, rest := fs.Arg(0), fs.Args()[1:]
	switch cmd {
	case "login":
		return a.login(ctx)
	case "register":
		return a.register(ctx)
	case "status":
		return a.status()
	case "logout":
		ctrl.Logout()
		fmt.Println("Logged out")
		return nil
	case "products":
		return a.products(ctx, rest)
	case "suppliers":
		return a.suppliers(ctx)
	case "orders":
		return a.orders(ctx)
	case "dashboard":
		return a.dashboard(ctx)
	default:
		fs.Usage()
		return fmt.Errorf("unknown command %q", cmd)
	}
}

// newStore persists to Redis when REDIS_ADDR is set. Otherwise the session
// lives in a cookie jar for the lifetime of this process only.
func newStore(cfg config.Config) (*credentials.Store, error) {
	opts := []credentials.StoreOption{credentials.WithKeyPrefix(cfg.GetKeyPrefix())}

	if addr := cfg.GetRedisAddr(); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: cfg.GetRedisPassword()})
		backend := credentials.NewRedisBackend(client, cfg.GetAppName(), cfg.GetCookieMaxAge())
		return credentials.NewStore(backend, opts...), nil
	}

	backend, err := credentials.NewCookieJarBackend(cfg.GetAppURL(), credentials.CookieOptions{
		Secure: cfg.IsSecureCookie(),
		MaxAge: cfg.GetCookieMaxAge(),
	})
	if err != nil {
		return nil, err
	}
	return credentials.NewStore(backend, opts...), nil
}

func (a *app) login(ctx context.Context) error {
	if a.email == "" || a.pass == "" {
		return fmt.Errorf("-email and -password are required")
	}
	res := a.ctrl.Login(ctx, a.email, a.pass)
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	fmt.Printf("Logged in as %s\n", a.email)
	return nil
}

func (a *app) register(ctx context.Context) error {
	if a.email == "" || a.pass == "" {
		return fmt.Errorf("-email and -password are required")
	}
	res := a.ctrl.Register(ctx, a.email, a.pass)
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}
	fmt.Printf("Registered %s, you can now log in\n", a.email)
	return nil
}

func (a *app) status() error {
	state := a.ctrl.State()
	if !state.Authenticated {
		fmt.Println("Not logged in")
		return nil
	}
	rec := a.store.Load()
	fmt.Printf("Logged in as %s\n", state.User.Email)
	fmt.Printf("Session:       %s\n", rec.SessionID)
	fmt.Printf("Last activity: %s\n", rec.LastActivity.Format(time.RFC1123))
	fmt.Printf("Login time:    %s\n", time.UnixMilli(state.User.LoginTime).Format(time.RFC1123))
	if claims, err := credentials.Claims(state.Token); err == nil && !claims.ExpiresAt.IsZero() {
		fmt.Printf("Token expires: %s\n", claims.ExpiresAt.Format(time.RFC1123))
	}
	return nil
}

// ensureSession logs in with the supplied credentials when no stored session
// survived initialisation.
func (a *app) ensureSession(ctx context.Context) error {
	if a.ctrl.IsAuthenticated() {
		return nil
	}
	if a.email == "" || a.pass == "" {
		if a.ctrl.State().SessionExpired {
			return fmt.Errorf("%w, log in again", apperrors.ErrSessionExpired)
		}
		return fmt.Errorf("%w, pass -email and -password to log in", apperrors.ErrNoSession)
	}
	return a.login(ctx)
}

func (a *app) products(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("products", flag.ContinueOnError)
	text := fs.String("q", "", "search name or SKU")
	category := fs.String("category", "", "only this category")
	low := fs.Bool("low", false, "only low stock")
	sortBy := fs.String("sort", "name", "name, sku, category, price or quantity")
	desc := fs.Bool("desc", false, "sort descending")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if err := a.ensureSession(ctx); err != nil {
		return err
	}

	products, err := inventory.NewService(a.ctrl.API()).ListProducts(ctx)
	if err != nil {
		return err
	}
	products = inventory.Filter(products, inventory.Query{Text: *text, Category: *category, LowStock: *low})
	products = inventory.Sort(products, inventory.ParseSortField(*sortBy), *desc)
	if a.json {
		return printJSON(products)
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "SKU\tNAME\tCATEGORY\tPRICE\tQTY\t")
	for _, p := range products {
		marker := ""
		if p.LowStock() {
			marker = "LOW"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%s\n", p.SKU, p.Name, p.Category, p.Price, p.Quantity, marker)
	}
	return tw.Flush()
}

func (a *app) suppliers(ctx context.Context) error {
	if err := a.ensureSession(ctx); err != nil {
		return err
	}
	suppliers, err := inventory.NewService(a.ctrl.API()).ListSuppliers(ctx)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(suppliers)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tEMAIL\tPHONE")
	for _, s := range suppliers {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.ID, s.Name, s.Email, s.Phone)
	}
	return tw.Flush()
}

func (a *app) orders(ctx context.Context) error {
	if err := a.ensureSession(ctx); err != nil {
		return err
	}
	orders, err := inventory.NewService(a.ctrl.API()).ListPurchaseOrders(ctx)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(orders)
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSUPPLIER\tSTATUS\tLINES\tTOTAL\tCREATED")
	for _, o := range orders {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%.2f\t%s\n", o.ID, o.SupplierID, o.Status, len(o.Lines), o.Total(), o.CreatedAt.Format(time.DateOnly))
	}
	return tw.Flush()
}

func (a *app) dashboard(ctx context.Context) error {
	if err := a.ensureSession(ctx); err != nil {
		return err
	}
	d, err := inventory.NewService(a.ctrl.API()).Dashboard(ctx)
	if err != nil {
		return err
	}
	if a.json {
		return printJSON(d)
	}
	fmt.Printf("Products:    %d\n", d.TotalProducts)
	fmt.Printf("Units:       %d\n", d.TotalUnits)
	fmt.Printf("Stock value: %.2f\n", d.StockValue)
	fmt.Printf("Low stock:   %d\n", d.LowStockCount())
	for _, p := range d.LowStock {
		fmt.Printf("  %-20s %3d (reorder at %d)\n", p.SKU, p.Quantity, p.ReorderLevel)
	}
	fmt.Println("Categories:")
	for _, p := range inventory.Sort(categoryRows(d.Categories), inventory.SortByName, false) {
		fmt.Printf("  %-20s %d\n", p.Name, p.Quantity)
	}
	return nil
}

// categoryRows reuses Product rows so the category table sorts like the
// product list.
func categoryRows(categories map[string]int) []inventory.Product {
	rows := make([]inventory.Product, 0, len(categories))
	for name, n := range categories {
		rows = append(rows, inventory.Product{ID: name, Name: name, Quantity: n})
	}
	return rows
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}
