package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sony/gobreaker/v2"
	"go.uber.org/multierr"

	"github.com/smesmis/pos-checkout/api/routes"
	"github.com/smesmis/pos-checkout/internal/cart"
	"github.com/smesmis/pos-checkout/internal/catalog"
	"github.com/smesmis/pos-checkout/internal/checkout"
	"github.com/smesmis/pos-checkout/internal/cron"
	"github.com/smesmis/pos-checkout/internal/discounts"
	"github.com/smesmis/pos-checkout/internal/payments"
	"github.com/smesmis/pos-checkout/pkg/auth/session"
	"github.com/smesmis/pos-checkout/pkg/backend"
	"github.com/smesmis/pos-checkout/pkg/config"
	"github.com/smesmis/pos-checkout/pkg/instance"
	"github.com/smesmis/pos-checkout/pkg/logger"
	"github.com/smesmis/pos-checkout/pkg/metrics"
	"github.com/smesmis/pos-checkout/pkg/redis"
)

const shutdownTimeout = 30 * time.Second

func main() {
	logg := logger.New(logger.Options{ServiceName: "pos-api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "pos-api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		Format:      cfg.App.LogFormat,
		WarnStack:   cfg.App.LogWarnStack,
		Fields:      map[string]any{"instance": instance.GetID()},
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	var (
		redisClient *redis.Client
		cartStore   cart.Store
	)
	if cfg.Redis.Enabled {
		redisClient, err = redis.New(ctx, cfg.Redis, logg)
		if err != nil {
			logg.Error(ctx, "failed to bootstrap redis", err)
			os.Exit(1)
		}
		cartStore = cart.NewRedisStore(redisClient, cfg.Cart.SessionTTL)
	} else {
		logg.Warn(ctx, "redis disabled; carts are kept in memory and checkout idempotency is off")
		cartStore = cart.NewMemoryStore()
	}

	sessions := session.Provider{}
	checkoutMetrics.SetBreakerState("mis-backend", float64(gobreaker.StateClosed))
	backendClient, err := backend.NewClient(cfg.Backend, cfg.Breaker,
		backend.WithTokenSource(sessions),
		backend.WithStateObserver(func(name string, from, to gobreaker.State) {
			checkoutMetrics.SetBreakerState(name, float64(to))
			logg.Warn(logg.WithFields(context.Background(), map[string]any{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}), "backend circuit breaker changed state")
		}),
	)
	if err != nil {
		logg.Error(ctx, "failed to create backend client", err)
		os.Exit(1)
	}

	cartOpts, err := cart.OptionsFromConfig(cfg.Cart)
	if err != nil {
		logg.Error(ctx, "invalid cart config", err)
		os.Exit(1)
	}
	cartService, err := cart.NewService(cartStore, sessions, cartOpts, logg)
	if err != nil {
		logg.Error(ctx, "failed to create cart service", err)
		os.Exit(1)
	}
	catalogService, err := catalog.NewService(backendClient)
	if err != nil {
		logg.Error(ctx, "failed to create catalog service", err)
		os.Exit(1)
	}
	discountService, err := discounts.NewService(backendClient, time.Now)
	if err != nil {
		logg.Error(ctx, "failed to create discount service", err)
		os.Exit(1)
	}
	runner, err := payments.NewRunner(backendClient, cfg.Payment,
		payments.WithRecorder(checkoutMetrics),
		payments.WithLogger(logg),
	)
	if err != nil {
		logg.Error(ctx, "failed to create payment runner", err)
		os.Exit(1)
	}
	checkoutService, err := checkout.NewService(cartService, runner, backendClient, checkoutMetrics, logg)
	if err != nil {
		logg.Error(ctx, "failed to create checkout service", err)
		os.Exit(1)
	}
	tracker, err := checkout.NewTracker(checkoutService, sessions, cfg.Checkout.SessionRetention, logg)
	if err != nil {
		logg.Error(ctx, "failed to create checkout tracker", err)
		os.Exit(1)
	}

	sweepJob, err := cron.NewCheckoutSessionSweepJob(tracker, logg)
	if err != nil {
		logg.Error(ctx, "failed to create session sweep job", err)
		os.Exit(1)
	}
	housekeeping, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: cron.NewRegistry(sweepJob),
		Interval: cfg.Checkout.SweepInterval,
	})
	if err != nil {
		logg.Error(ctx, "failed to create housekeeping service", err)
		os.Exit(1)
	}
	go func() {
		_ = housekeeping.Run(ctx)
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":             cfg.App.Env,
		"addr":            addr,
		"backend":         cfg.Backend.BaseURL,
		"quantity_policy": cfg.Cart.QuantityPolicy,
	})
	logg.Info(logCtx, "starting pos api server")

	handler := routes.NewRouter(
		cfg,
		logg,
		redisClient,
		promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		cartService,
		catalogService,
		discountService,
		checkoutService,
		tracker,
	)
	server := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			logg.Error(logCtx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	shutdownErr := multierr.Combine(
		server.Shutdown(shutdownCtx),
		tracker.Shutdown(shutdownCtx),
	)
	if redisClient != nil {
		shutdownErr = multierr.Append(shutdownErr, redisClient.Close())
	}
	if shutdownErr != nil {
		for _, e := range multierr.Errors(shutdownErr) {
			logg.Error(logCtx, "shutdown error", e)
		}
		os.Exit(1)
	}
	logg.Info(logCtx, "shutdown complete")
}
