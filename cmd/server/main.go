package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"github.com/calebmartin/sif/internal"
	"github.com/calebmartin/sif/internal/handler/api"
	"github.com/calebmartin/sif/internal/middleware"
	"github.com/calebmartin/sif/internal/postgres"
	"github.com/calebmartin/sif/internal/router"
	"github.com/calebmartin/sif/internal/service"
	"github.com/calebmartin/sif/internal/telemetry"
	"github.com/calebmartin/sif/internal/worker"
)

func run() error {
	ctx := context.Background()

	// Load configuration
	cfg, err := internal.NewConfig()
	if err != nil {
		return fmt.Errorf("config initialization failed: %w", err)
	}

	// Configure logger
	logger := internal.NewLogger(os.Stdout, cfg.Env, cfg.LogLevel)

	// Initialize Sentry error tracking
	sentryCleanup, err := telemetry.InitSentry(telemetry.SentryConfig{
		DSN:              cfg.Sentry.DSN,
		Enabled:          cfg.Sentry.Enabled,
		Environment:      cfg.Sentry.Environment,
		Release:          cfg.Sentry.Release,
		SampleRate:       cfg.Sentry.SampleRate,
		TracesSampleRate: cfg.Sentry.TracesSampleRate,
		Debug:            cfg.Sentry.Debug,
	}, logger)
	if err != nil {
		return fmt.Errorf("sentry initialization failed: %w", err)
	}
	defer sentryCleanup()

	// Initialize database/sql connection for migrations
	logger.Info("Connecting to database...")
	sqlDB, err := sql.Open("pgx", cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("database connection failed: %w", err)
	}
	defer sqlDB.Close()

	if err := sqlDB.Ping(); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}
	logger.Info("Database connection established")

	// Run migrations
	logger.Info("Running database migrations...")
	if err := internal.RunMigrations(sqlDB); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	logger.Info("Database migrations completed successfully")

	// Initialize pgx connection pool for application
	pool, err := pgxpool.New(ctx, cfg.DatabaseUrl)
	if err != nil {
		return fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	// Initialize stores
	catalog := postgres.NewCatalog(pool)
	cartStore := postgres.NewCartStore(pool)
	orderStore := postgres.NewOrderStore(pool)

	// Initialize telemetry
	metrics := middleware.NewMetrics("sif")
	businessMetrics := telemetry.NewBusinessMetrics("sif")

	// Initialize services
	rates := service.CheckoutRates{
		TaxRate:               decimal.NewFromFloat(cfg.Checkout.TaxRate),
		FreeShippingThreshold: decimal.NewFromFloat(cfg.Checkout.FreeShippingThreshold),
		StandardShippingFee:   decimal.NewFromFloat(cfg.Checkout.StandardShippingFee),
	}
	cartService := service.NewCartService(cartStore, catalog, rates, businessMetrics)
	orderService := service.NewOrderService(orderStore, cartStore, catalog, cartService, rates, businessMetrics)
	logger.Info("Services initialized")

	// Start the abandoned guest-cart sweeper
	sweeperCtx, stopSweeper := context.WithCancel(ctx)
	defer stopSweeper()
	sweeper := worker.NewCartSweeper(cartStore, worker.CartSweeperConfig{
		Interval:  cfg.Sweeper.Interval,
		Retention: time.Duration(cfg.Sweeper.RetentionDays) * 24 * time.Hour,
	}, logger)
	go func() {
		if err := sweeper.Start(sweeperCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Error("cart sweeper stopped", "error", err)
		}
	}()

	// ==========================================================================
	// Create router and register routes
	// ==========================================================================

	r := router.New(
		router.Recovery(logger),
		middleware.RequestID,
		middleware.WithClientIP(),
		middleware.SecurityHeaders(middleware.DefaultSecurityHeadersConfig()),
		middleware.MaxBodySize(),
		middleware.RateLimit(middleware.DefaultRateLimiterConfig()),
		metrics.Middleware,
		telemetry.SentryMiddleware(),
		middleware.WithIdentity,
		middleware.WithRequestLogger(logger),
		router.Logger(logger),
	)

	// Metrics endpoint (protect via firewall in production)
	r.Get("/metrics", func(w http.ResponseWriter, req *http.Request) {
		metrics.Handler().ServeHTTP(w, req)
	})

	// Health check endpoint
	r.Get("/health", func(w http.ResponseWriter, req *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	api.NewProductHandler(catalog).RegisterRoutes(r)
	api.NewCartHandler(cartService).RegisterRoutes(r)
	api.NewOrderHandler(orderService).RegisterRoutes(r)

	// ==========================================================================
	// Start server with graceful shutdown
	// ==========================================================================

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Starting server", "address", addr, "env", cfg.Env)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("server failed: %w", err)
	case sig := <-stop:
		logger.Info("Shutting down", "signal", sig.String())
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown failed: %w", err)
	}

	logger.Info("Server stopped")
	return nil
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
