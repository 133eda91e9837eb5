package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"storefront/internal/config"
	"storefront/internal/logger"
	"storefront/internal/middleware"
	"storefront/internal/offline"

	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger.Init(cfg.AppEnv)
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		logger.L().Error("offline proxy stopped", zap.Error(err))
		stop()
		logger.Sync()
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	p, err := newServer(cfg)
	if err != nil {
		return err
	}
	srv := p.server

	go p.limiter.Run(ctx, time.Minute)

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("offline proxy listening",
			zap.String("addr", srv.Addr),
			zap.String("upstream", cfg.ProxyUpstream),
		)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.L().Info("shutting down offline proxy")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	stats := p.cache.Stats()
	logger.L().Info("offline cache stats",
		zap.Uint64("hits", stats.Hits),
		zap.Uint64("misses", stats.Misses),
		zap.Uint64("stale", stats.Stale),
		zap.Int("entries", stats.Entries),
	)
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

type proxyServer struct {
	server  *http.Server
	limiter *middleware.RateLimiter
	cache   *offline.Transport
}

func newServer(cfg *config.Config) (*proxyServer, error) {
	upstream, err := url.Parse(cfg.ProxyUpstream)
	if err != nil || upstream.Scheme == "" || upstream.Host == "" {
		return nil, fmt.Errorf("invalid PROXY_UPSTREAM %q", cfg.ProxyUpstream)
	}

	cache, err := offline.NewTransport(http.DefaultTransport, offline.Options{Size: cfg.OfflineCacheSize})
	if err != nil {
		return nil, err
	}

	limiter := middleware.NewRateLimiter()
	return &proxyServer{
		server: &http.Server{
			Addr:              ":" + cfg.ProxyPort,
			Handler:           setupRouter(offline.Handler(upstream, cache), limiter),
			ReadHeaderTimeout: 10 * time.Second,
		},
		limiter: limiter,
		cache:   cache,
	}, nil
}

func setupRouter(proxy http.Handler, limiter *middleware.RateLimiter) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})
	mux.Handle("/", proxy)

	return middleware.RequestID(middleware.Logging(limiter.Middleware(mux)))
}
