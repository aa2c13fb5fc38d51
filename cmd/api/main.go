package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"shopkart/internal/config"
	"shopkart/internal/database"
	"shopkart/internal/events"
	"shopkart/internal/handler"
	"shopkart/internal/metrics"
	"shopkart/internal/payment"
	"shopkart/internal/repository"
	"shopkart/internal/router"
	"shopkart/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// Initialize logger
	logger := config.NewLogger(cfg.Logger)
	logger.Info().Msg("starting shopkart API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize repositories
	productRepo := repository.NewProductRepository(pool, logger)
	cartRepo := repository.NewCartRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	// Initialize event publisher (nop when Kafka is unconfigured)
	publisher := events.NewPublisher(cfg.Kafka, logger)
	defer publisher.Close()

	// Initialize payment collaborators
	verifier := payment.NewVerifier(cfg.Payment.Secret, logger)
	gateway := payment.NewGateway(cfg.Payment.GatewayURL, logger)

	// Parse checkout pricing knobs
	shippingFee, err := decimal.NewFromString(cfg.Checkout.ShippingFee)
	if err != nil {
		return fmt.Errorf("invalid shipping fee %q: %w", cfg.Checkout.ShippingFee, err)
	}
	taxRate, err := decimal.NewFromString(cfg.Checkout.BuyNowTaxRate)
	if err != nil {
		return fmt.Errorf("invalid buy-now tax rate %q: %w", cfg.Checkout.BuyNowTaxRate, err)
	}

	// Initialize services
	productService := service.NewProductService(productRepo, logger)
	cartService := service.NewCartService(cartRepo, productRepo, publisher, logger)
	checkoutService := service.NewCheckoutService(
		orderRepo, cartRepo, productRepo, verifier, gateway, publisher,
		service.CheckoutConfig{
			ShippingFee:   shippingFee,
			BuyNowTaxRate: taxRate,
			NumberFloor:   cfg.Checkout.OrderNumFloor,
			NumberRetries: cfg.Checkout.OrderNumRetry,
			Currency:      cfg.Payment.Currency,
		},
		logger,
	)

	// Initialize metrics
	registry := prometheus.NewRegistry()
	m := metrics.New(registry)

	// Initialize HTTP handlers
	productHandler := handler.NewProductHandler(productService, logger)
	cartHandler := handler.NewCartHandler(cartService, m, logger)
	checkoutHandler := handler.NewCheckoutHandler(checkoutService, m, logger)

	// Initialize router
	mux := router.New(productHandler, cartHandler, checkoutHandler, m, registry, logger)

	// Create HTTP server
	server := &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      mux,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Channel to listen for errors from the server
	serverErrors := make(chan error, 1)

	// Start HTTP server in a goroutine
	go func() {
		logger.Info().
			Str("address", cfg.Server.Address()).
			Msg("HTTP server started")
		serverErrors <- server.ListenAndServe()
	}()

	// Channel to listen for interrupt signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Block until we receive a signal or an error
	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info().
			Str("signal", sig.String()).
			Msg("shutdown signal received, starting graceful shutdown")

		// Create a context with timeout for shutdown
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer shutdownCancel()

		// Attempt graceful shutdown
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown server gracefully")
			// Force close
			if closeErr := server.Close(); closeErr != nil {
				logger.Error().Err(closeErr).Msg("failed to close server")
			}
			return fmt.Errorf("server shutdown failed: %w", err)
		}

		logger.Info().Msg("server shutdown completed")
	}

	return nil
}
