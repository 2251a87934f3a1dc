package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-core/internal/cache"
	"checkout-core/internal/config"
	"checkout-core/internal/database"
	"checkout-core/internal/handler"
	"checkout-core/internal/mail"
	"checkout-core/internal/repository"
	"checkout-core/internal/router"
	"checkout-core/internal/service"
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
	logger.Info().Msg("starting checkout-core API server")

	// Create context for application lifecycle
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize database connection pool
	pool, err := database.NewPool(ctx, cfg.Database, logger)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer pool.Close()

	// Initialize cache with Redis and in-process fallback
	var listCache cache.Cache
	if cfg.Redis.Enabled {
		redisCache, err := cache.NewRedisCache(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			logger.Warn().
				Err(err).
				Msg("failed to connect to redis, falling back to in-process cache")
			listCache = cache.NewInMemoryCache()
		} else {
			listCache = redisCache
			logger.Info().Str("addr", cfg.Redis.Addr).Msg("redis cache connected")
		}
	} else {
		listCache = cache.NewInMemoryCache()
		logger.Info().Msg("using in-process cache (redis disabled)")
	}

	// Initialize mailer; without an SMTP host, codes are only logged
	var mailer mail.Mailer
	if cfg.Mail.SMTPHost != "" {
		mailer = mail.NewSMTPMailer(
			cfg.Mail.SMTPHost,
			cfg.Mail.SMTPPort,
			cfg.Mail.Username,
			cfg.Mail.Password,
			cfg.Mail.From,
			logger,
		)
	} else {
		mailer = mail.NewLogMailer(logger)
		logger.Warn().Msg("SMTP not configured, verification emails will not be delivered")
	}

	// Initialize repositories
	couponRepo := repository.NewCouponRepository(pool, logger)
	usageRepo := repository.NewCouponUsageRepository(pool, logger)
	sessionRepo := repository.NewLookupSessionRepository(pool, logger)
	orderRepo := repository.NewOrderRepository(pool, logger)

	// Initialize services
	couponCfg := service.DefaultCouponConfig()
	couponCfg.ListCacheTTL = cfg.Coupon.ListCacheTTL
	couponService := service.NewCouponService(couponRepo, usageRepo, listCache, couponCfg, logger)

	verificationCfg := service.DefaultVerificationConfig()
	verificationCfg.ResendInterval = cfg.Verification.ResendInterval
	verificationCfg.CodeTTL = cfg.Verification.CodeTTL
	verificationCfg.TokenTTL = cfg.Verification.TokenTTL
	verificationCfg.MaxAttempts = cfg.Verification.MaxAttempts
	verificationService := service.NewVerificationService(sessionRepo, mailer, verificationCfg, logger)

	lookupService := service.NewLookupService(verificationService, orderRepo, logger)

	// Initialize HTTP handlers
	couponHandler := handler.NewCouponHandler(couponService, logger)
	lookupHandler := handler.NewLookupHandler(verificationService, lookupService, logger)

	// Initialize router
	mux := router.New(couponHandler, lookupHandler, cfg.Auth.APIKey, logger)

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
