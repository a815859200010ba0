package main

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Priya8975/donate/internal/analytics"
	"github.com/Priya8975/donate/internal/api"
	"github.com/Priya8975/donate/internal/config"
	"github.com/Priya8975/donate/internal/email"
	"github.com/Priya8975/donate/internal/payments"
	"github.com/Priya8975/donate/internal/resilience"
	"github.com/Priya8975/donate/internal/store"
	"github.com/Priya8975/donate/internal/webhook"
	ws "github.com/Priya8975/donate/internal/websocket"
	"github.com/sendgrid/sendgrid-go"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.New(slog.NewJSONHandler(os.Stderr, nil)).Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Live feed
	hub := ws.NewHub(logger)
	go hub.Run(ctx)

	sinks := []analytics.Tracker{hub}
	checks := map[string]api.HealthCheck{}

	deps := api.Deps{
		Hub:               hub,
		HealthChecks:      checks,
		Logger:            logger,
		CanonicalHost:     cfg.CanonicalHost,
		MaxDonationCents:  cfg.MaxDonationCents,
		CheckoutRateLimit: cfg.CheckoutRateLimit,
	}

	mailer := email.NewMailer(sendgrid.NewSendClient(cfg.SendGrid.APIKey), email.Config{
		FromEmail:         cfg.SendGrid.FromEmail,
		FromName:          cfg.SendGrid.FromName,
		ReceiptTemplateID: cfg.SendGrid.ReceiptTemplateID,
		FailureTemplateID: cfg.SendGrid.FailureTemplateID,
	}, logger)

	// Initialize PostgreSQL
	if cfg.DatabaseURL != "" {
		pgStore, err := store.NewPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer pgStore.Close()
		logger.Info("connected to PostgreSQL")

		if err := pgStore.RunMigrations(ctx, os.DirFS(cfg.MigrationsDir)); err != nil {
			logger.Error("failed to run migrations", "error", err)
			os.Exit(1)
		}
		logger.Info("database migrations applied")

		sinks = append(sinks, pgStore)
		deps.Store = pgStore
		checks["postgres"] = pgStore.Ping
	} else {
		logger.Warn("DATABASE_URL not set, analytics storage disabled")
	}

	// Initialize Redis
	var claims webhook.ClaimStore
	if cfg.RedisURL != "" {
		redisStore, err := store.NewRedis(ctx, cfg.RedisURL)
		if err != nil {
			logger.Error("failed to connect to redis", "error", err)
			os.Exit(1)
		}
		defer redisStore.Close()
		logger.Info("connected to Redis")

		client := redisStore.Client()
		breaker := resilience.NewCircuitBreaker(client, logger)
		mailer.WithBreaker(breaker)

		claims = store.NewRedisClaimStore(client)
		deps.Breaker = breaker
		deps.Limiter = resilience.NewRateLimiter(client, cfg.CheckoutRateWindow, logger)
		checks["redis"] = func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		}
	} else {
		logger.Warn("REDIS_URL not set, using in-process webhook claims and no checkout rate limit")
	}

	processor := payments.NewStripe(cfg.Stripe.SecretKey, cfg.BaseURL, cfg.MigrationMarkerKey, cfg.IntegrationName)
	deps.Checkout = processor
	deps.Dispatcher = webhook.NewDispatcher(processor, mailer, webhook.Options{
		Secret:          cfg.Stripe.WebhookSecret,
		Tolerance:       cfg.Stripe.WebhookTolerance,
		IntegrationName: cfg.IntegrationName,
		MarkerKey:       cfg.MigrationMarkerKey,
		Claims:          claims,
		ClaimTTL:        cfg.ClaimTTL,
		Tracker:         analytics.NewMulti(logger, sinks...),
	}, logger)

	var static fs.FS = api.DefaultStatic()
	if cfg.StaticDir != "" {
		static = os.DirFS(cfg.StaticDir)
	}
	deps.Assets = api.NewAssetCache(static, time.Hour)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      api.NewRouter(deps),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	go func() {
		logger.Info("server starting", "port", cfg.Port, "base_url", cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
	}

	logger.Info("server stopped")
}
