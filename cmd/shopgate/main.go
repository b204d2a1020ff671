// cmd/shopgate/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"shopgate/internal/billing"
	"shopgate/internal/gateway"
	"shopgate/internal/ratelimit"
	"shopgate/internal/shopify"
	"shopgate/internal/studio"
	"shopgate/pkg/config"
	"shopgate/pkg/db"
	"shopgate/pkg/logger"
	"shopgate/pkg/middleware"
	"shopgate/pkg/shops"
)

func main() {
	cfg := config.Load()
	log := logger.New(cfg.Env)

	if cfg.APIKey == "" || cfg.APISecret == "" {
		log.Warnw("platform API credentials not set; install and session validation will fail")
	}

	pool := db.MustConnect(cfg, log)
	rdb := db.MustRedis(cfg, log)

	client := shopify.NewClient(cfg.AdminAPIVersion, log)
	billingSvc := billing.NewService(client, log, cfg.SubscriptionName, cfg.UsageDescription, cfg.UsageTerms, cfg.UsagePriceUSD, cfg.TestBilling)
	studioClient := studio.NewClient(cfg.StudioBaseURL, cfg.StudioServiceKey, log)

	var limiter ratelimit.Limiter
	if rdb != nil {
		limiter = ratelimit.NewRedisLimiter(rdb, cfg.RateLimitWindow, cfg.RateLimitMax)
	} else {
		limiter = ratelimit.NewMemoryLimiter(cfg.RateLimitWindow, cfg.RateLimitMax)
	}

	// The store needs the app before the app needs the store; resolve the
	// install-URL cycle with a late-bound reference.
	var app *gateway.App
	installURL := func(shop string) string { return app.InstallURL(shop, "") }

	var store shops.Store
	if pool != nil {
		if err := shops.EnsureSchema(context.Background(), pool); err != nil {
			log.Fatalw("schema", "err", err)
		}
		store = shops.NewPostgresStore(pool, log, installURL)
	} else {
		store = shops.NewMemoryStore(log, installURL)
	}

	app = gateway.New(log, cfg, store, limiter, client, billingSvc, studioClient)

	r := chi.NewRouter()
	r.Use(middleware.RequestID())
	r.Use(middleware.Recover(log))
	r.Use(middleware.Tracing(cfg))
	r.Use(middleware.CSP(app.Verifier()))
	r.Use(middleware.RequireSession(app.Verifier(), log))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) { w.Write([]byte("ok")) })
	app.RegisterRoutes(r)
	r.Get("/metrics", promhttp.Handler().ServeHTTP)

	srv := &http.Server{Addr: cfg.HTTPAddr, Handler: r}
	go func() {
		log.Infow("shopgate listening", "addr", cfg.HTTPAddr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalw("ListenAndServe", "err", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	_ = srv.Shutdown(ctx)
	fmt.Println("shopgate stopped")
}
