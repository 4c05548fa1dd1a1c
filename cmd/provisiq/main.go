package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	stripeapi "github.com/stripe/stripe-go/v74"

	"github.com/neomorfeo/provisiq/internal/adapter/docker"
	"github.com/neomorfeo/provisiq/internal/adapter/fsm"
	otelx "github.com/neomorfeo/provisiq/internal/adapter/otel"
	riverx "github.com/neomorfeo/provisiq/internal/adapter/river"
	"github.com/neomorfeo/provisiq/internal/adapter/script"
	"github.com/neomorfeo/provisiq/internal/adapter/sqlite"
	stripex "github.com/neomorfeo/provisiq/internal/adapter/stripe"
	"github.com/neomorfeo/provisiq/internal/app"

	handler "github.com/neomorfeo/provisiq/internal/adapter/http"
)

type config struct {
	Port             string
	DatabasePath     string
	ScriptsDir       string
	ContainerPrefix  string
	BaseDomain       string
	AdminAPIKey      string
	StripeSecretKey  string
	WebhookSecret    string
	PriceID          string
	ProvisionTimeout time.Duration
}

func configFromEnv() (config, error) {
	cfg := config{
		Port:            envOrDefault("PORT", "8080"),
		DatabasePath:    envOrDefault("DATABASE_PATH", "provisiq.db"),
		ScriptsDir:      envOrDefault("SCRIPTS_DIR", "scripts"),
		ContainerPrefix: envOrDefault("CONTAINER_PREFIX", "customer"),
		BaseDomain:      envOrDefault("BASE_DOMAIN", "example.com"),
		AdminAPIKey:     os.Getenv("ADMIN_API_KEY"),
		StripeSecretKey: os.Getenv("STRIPE_SECRET_KEY"),
		WebhookSecret:   os.Getenv("STRIPE_WEBHOOK_SECRET"),
		PriceID:         os.Getenv("STRIPE_PRICE_ID"),
	}

	timeout, err := time.ParseDuration(envOrDefault("PROVISION_TIMEOUT", "10m"))
	if err != nil {
		return config{}, fmt.Errorf("parsing PROVISION_TIMEOUT: %w", err)
	}
	cfg.ProvisionTimeout = timeout

	return cfg, nil
}

func main() {
	if err := run(); err != nil {
		slog.Error("provisiq failed", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := configFromEnv()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	providers, err := otelx.Setup(ctx, otelx.ConfigFromEnv())
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			slog.Error("otel shutdown", "error", err)
		}
	}()

	// --- Adapters (out) ---
	db, err := otelx.OpenDB(cfg.DatabasePath)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}

	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	defer repo.Close()

	riverClient, err := riverx.Setup(ctx, db)
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := riverClient.Start(ctx); err != nil {
		return fmt.Errorf("river start: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := riverClient.Stop(stopCtx); err != nil {
			slog.Error("river stop", "error", err)
		}
	}()

	stripeapi.Key = cfg.StripeSecretKey

	bridge := script.New(cfg.ScriptsDir, script.WithTimeout(cfg.ProvisionTimeout))
	prober := docker.New(cfg.ContainerPrefix)
	verifier := stripex.NewVerifier(cfg.WebhookSecret)
	checkout := stripex.NewCheckout(cfg.PriceID, cfg.BaseDomain)
	publisher := otelx.NewTracingPublisher(riverx.NewPublisher(riverClient))

	// --- Application ---
	svc := app.NewProvisioningService(
		otelx.NewTracingRepository(repo),
		bridge, verifier, prober, fsm.New(), publisher,
	)

	// --- Adapters (in) ---
	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware("provisiq", otelchi.WithChiRoutes(router)))

	api := humachi.New(router, huma.DefaultConfig("provisiq", "0.1.0"))
	handler.Register(api, svc, checkout, cfg.AdminAPIKey)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("provisiq listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
			return
		}
		serveErr <- nil
	}()

	select {
	case err := <-serveErr:
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown: %w", err)
	}

	slog.Info("stopped")
	return nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
