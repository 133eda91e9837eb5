package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"

	"storefront/internal/address"
	"storefront/internal/api"
	"storefront/internal/cart"
	"storefront/internal/catalog"
	"storefront/internal/checkout"
	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/offline"
	"storefront/internal/order"
	"storefront/internal/session"
	"storefront/internal/storage"

	"go.uber.org/zap"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	st, err := storage.OpenFile(cfg.StateFile)
	if err != nil {
		logger.L().Error("failed to open state file", zap.String("path", cfg.StateFile), zap.Error(err))
		fmt.Fprintln(os.Stderr, "could not open local state:", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	code := run(ctx, cfg, st, http.DefaultTransport, os.Args[1:], os.Stdin, os.Stdout)
	if code != 0 {
		stop()
		logger.Sync()
		os.Exit(code)
	}
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, cfg *config.Config, st storage.Store, rt http.RoundTripper, args []string, in io.Reader, out io.Writer) int {
	if len(args) == 0 || args[0] == "help" || args[0] == "-h" || args[0] == "--help" {
		usage(out)
		if len(args) == 0 {
			return 1
		}
		return 0
	}

	a, err := newApp(cfg, st, rt, in, out)
	if err != nil {
		fmt.Fprintln(out, "Error:", err)
		return 1
	}
	defer a.close()

	cmd, ok := commands[args[0]]
	if !ok {
		fmt.Fprintf(out, "unknown command %q\n\n", args[0])
		usage(out)
		return 1
	}

	if err := a.prepare(ctx); err != nil {
		return a.fail(err)
	}
	if err := cmd.run(ctx, a, args[1:]); err != nil {
		return a.fail(err)
	}
	return 0
}

// app owns every store for the lifetime of one command.
type app struct {
	cfg *config.Config
	in  *bufio.Reader
	out io.Writer

	client    *api.Client
	session   *session.Store
	cart      *cart.Store
	addresses address.Service
	orders    order.Service
	flow      *checkout.Flow

	products *catalog.Products
	reviews  *catalog.Reviews
	wishlist *catalog.Wishlist
	recent   *catalog.RecentlyViewed

	unsubscribe func()
}

func newApp(cfg *config.Config, st storage.Store, rt http.RoundTripper, in io.Reader, out io.Writer) (*app, error) {
	cache, err := offline.NewTransport(rt, offline.Options{Size: cfg.OfflineCacheSize})
	if err != nil {
		return nil, err
	}

	client, err := api.NewClient(cfg.APIBaseURL,
		api.WithTimeout(cfg.RequestTimeout),
		api.WithRateLimit(cfg.OutboundRPS),
		api.WithTransport(cache),
	)
	if err != nil {
		return nil, err
	}

	sess := session.New(client, st)

	var cartOpts []cart.Option
	if cfg.AnonymousCart {
		cartOpts = append(cartOpts, cart.WithAnonymousCarts())
	}
	cartStore := cart.NewStore(cart.NewRepository(client), sess, cartOpts...)

	addresses := address.NewService(address.NewRepository(client))
	orders := order.NewService(order.NewRepository(client))

	a := &app{
		cfg:       cfg,
		in:        bufio.NewReader(in),
		out:       out,
		client:    client,
		session:   sess,
		cart:      cartStore,
		addresses: addresses,
		orders:    orders,
		flow: checkout.New(sess, cartStore, addresses, orders,
			checkout.WithMaxOtpAttempts(cfg.OTPMaxAttempts),
			checkout.WithPayee(cfg.WalletPayee),
		),
		products: catalog.NewProducts(client),
		reviews:  catalog.NewReviews(client),
		wishlist: catalog.NewWishlist(client),
		recent:   catalog.NewRecentlyViewed(st, cfg.RecentlyViewedLimit),
	}
	a.unsubscribe = sess.Subscribe(cartStore.IdentityChanged)
	return a, nil
}

// prepare resolves a stored token before any command runs.
func (a *app) prepare(ctx context.Context) error {
	err := a.session.Restore(ctx)
	a.cart.Wait()
	if err != nil && !errors.Is(err, api.ErrNotAuthenticated) {
		return err
	}
	return nil
}

func (a *app) close() {
	a.flow.Cancel(context.Background())
	a.unsubscribe()
	a.cart.Wait()
}

// loginRequiredError ends a command after a 401 sent the user to login.
type loginRequiredError struct {
	redirect session.Redirect
}

func (e *loginRequiredError) Error() string {
	return "login required: " + e.redirect.Reason
}

func (e *loginRequiredError) Unwrap() error {
	return api.ErrNotAuthenticated
}

// redirected reports a pending redirect to login and cancels any checkout in
// progress. A nil error means the session is still valid.
func (a *app) redirected(ctx context.Context) error {
	select {
	case r := <-a.session.Redirects():
		logger.Component(ctx, "cli").Info("redirecting to login", zap.String("reason", r.Reason))
		a.flow.Cancel(ctx)
		return &loginRequiredError{redirect: r}
	default:
		return nil
	}
}

func (a *app) fail(err error) int {
	var lr *loginRequiredError
	if !errors.As(err, &lr) {
		if rerr := a.redirected(context.Background()); rerr != nil {
			errors.As(rerr, &lr)
		}
	}

	switch {
	case errors.Is(err, flag.ErrHelp):
		return 0
	case lr != nil:
		fmt.Fprintf(a.out, "Your %s. Run `storefront login -email <email>` to log in again.\n", lr.redirect.Reason)
		return 1
	case errors.Is(err, io.EOF):
		fmt.Fprintln(a.out, "\nInput ended before the command finished.")
		return 1
	case errors.Is(err, api.ErrNotAuthenticated):
		fmt.Fprintln(a.out, "You are not logged in. Run `storefront login -email <email>` first.")
		return 1
	}

	logger.L().Debug("command failed", zap.Error(err))
	fmt.Fprintln(a.out, "Error:", api.UserMessage(err))
	return 1
}

func (a *app) printf(format string, args ...any) {
	fmt.Fprintf(a.out, format, args...)
}

// prompt reads one trimmed line; io.EOF ends the conversation.
func (a *app) prompt(label string) (string, error) {
	a.printf("%s", label)
	line, err := a.in.ReadString('\n')
	if err != nil && (!errors.Is(err, io.EOF) || line == "") {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

type command struct {
	summary string
	run     func(ctx context.Context, a *app, args []string) error
}

func usage(out io.Writer) {
	fmt.Fprintln(out, "usage: storefront <command> [flags]")
	fmt.Fprintln(out)
	fmt.Fprintln(out, "commands:")

	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		fmt.Fprintf(out, "  %-12s %s\n", name, commands[name].summary)
	}
}
