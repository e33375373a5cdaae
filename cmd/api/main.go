// Command api serves the billing HTTP surface: subscriptions, invoices,
// orders, and the Midtrans payment notification webhook.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/artisancrate/billing-engine/api/controllers"
	"github.com/artisancrate/billing-engine/api/routes"
	"github.com/artisancrate/billing-engine/internal/engine"
	"github.com/artisancrate/billing-engine/internal/payments"
	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/metrics"
	"github.com/artisancrate/billing-engine/pkg/migrate"
	"github.com/artisancrate/billing-engine/pkg/redis"
)

const (
	serviceKind       = "api"
	replayScope       = "midtrans"
	readHeaderTimeout = 10 * time.Second
	shutdownTimeout   = 15 * time.Second
)

func main() {
	logg := logger.New(logger.Options{ServiceName: serviceKind})
	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}
	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}
	cfg.Service.Kind = serviceKind
	logg = logger.New(logger.Options{
		ServiceName: serviceKind,
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
		Format:      cfg.App.LogFormat,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	addr := listenAddr(cfg)
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instanceID(),
	})

	if err := run(ctx, cfg, logg, addr); err != nil {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "api server stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, addr string) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	redisClient, err := redis.New(ctx, cfg.Redis, logg)
	if err != nil {
		return fmt.Errorf("bootstrap redis: %w", err)
	}
	defer closeQuietly(logg, "redis", redisClient.Close)

	components, err := engine.Build(engine.Params{
		Config:  cfg,
		Logger:  logg,
		DB:      dbClient,
		Metrics: metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
	})
	if err != nil {
		return fmt.Errorf("wire billing components: %w", err)
	}

	replayGuard, err := payments.NewReplayGuard(redisClient, cfg.Webhook.ReplayTTL, replayScope)
	if err != nil {
		return fmt.Errorf("webhook replay guard: %w", err)
	}

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Invoices:      components.Invoices,
			Reconciler:    components.Reconciler,
			Subscriptions: components.Subscriptions,
			Orders:        components.Orders,
			ReplayGuard:   replayGuard,
			Readiness: map[string]controllers.Pinger{
				"database": dbClient,
				"redis":    redisClient,
			},
			MetricsHandler: routes.MetricsHandler(),
		}),
		ReadHeaderTimeout: readHeaderTimeout,
	}
	return serve(ctx, logg, server)
}

// serve runs server until it fails or ctx ends, then drains in-flight
// requests for up to shutdownTimeout.
func serve(ctx context.Context, logg *logger.Logger, server *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		logg.Info(ctx, "starting api server")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(ctx, "api server shutting down gracefully")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// listenAddr prefers the platform-assigned PORT over the configured one.
func listenAddr(cfg *config.Config) string {
	if port := os.Getenv("PORT"); port != "" {
		return ":" + port
	}
	return ":" + cfg.App.Port
}

func instanceID() string {
	if id := os.Getenv("DYNO"); id != "" {
		return id
	}
	return "local"
}

func closeQuietly(logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+what, err)
	}
}
