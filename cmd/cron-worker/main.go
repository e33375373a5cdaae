// Command cron-worker runs the scheduled billing jobs: recurring invoice
// generation and notification retention. With -once it runs a single cycle
// and exits, sharing the worker lock so a manual run never overlaps a
// scheduled one.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/artisancrate/billing-engine/internal/cron"
	"github.com/artisancrate/billing-engine/internal/engine"
	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/metrics"
	"github.com/artisancrate/billing-engine/pkg/migrate"
	"github.com/artisancrate/billing-engine/pkg/outbox"
	"github.com/artisancrate/billing-engine/pkg/redis"
)

const (
	serviceKind = "cron-worker"
	lockName    = "cron-worker"
)

func main() {
	once := flag.Bool("once", false, "run one cycle and exit")
	only := flag.String("jobs", "", "comma separated job names to run (default: all)")
	flag.Parse()

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
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": cfg.Service.Kind, "once": *once})

	if err := run(ctx, cfg, logg, *once, *only); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker failed", err)
		os.Exit(1)
	}
	logg.Info(ctx, "cron worker stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, once bool, only string) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
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

	jobs, err := buildJobs(cfg, logg, dbClient, components)
	if err != nil {
		return err
	}
	registry, err := selectJobs(jobs, only)
	if err != nil {
		return err
	}

	lock, err := cron.NewRedisLock(redisClient, lockName, cfg.Billing.LockTTL)
	if err != nil {
		return err
	}
	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  metrics.NewCronJobMetrics(prometheus.DefaultRegisterer),
		Interval: cfg.Billing.CronInterval,
	})
	if err != nil {
		return err
	}

	if once {
		logg.Info(ctx, "running one billing cycle")
		return service.RunOnce(ctx)
	}
	logg.Info(logg.WithField(ctx, "interval", cfg.Billing.CronInterval.String()), "starting cron worker")
	return service.Run(ctx)
}

func buildJobs(cfg *config.Config, logg *logger.Logger, dbClient *db.Client, components *engine.Components) ([]cron.Job, error) {
	invoices, err := cron.NewRecurringInvoiceJob(cron.RecurringInvoiceJobParams{
		Logger:    logg,
		Generator: components.Generator,
	})
	if err != nil {
		return nil, fmt.Errorf("recurring invoice job: %w", err)
	}
	retention, err := cron.NewNotificationRetentionJob(cron.NotificationRetentionJobParams{
		Logger:      logg,
		DB:          dbClient,
		Outbox:      components.OutboxRepo,
		DeadLetters: outbox.NewDLQRepository(dbClient.DB()),
		Published:   cfg.Outbox.PublishedRetention,
		DeadLetter:  cfg.Outbox.DeadLetterRetention,
	})
	if err != nil {
		return nil, fmt.Errorf("notification retention job: %w", err)
	}
	return []cron.Job{invoices, retention}, nil
}

// selectJobs keeps the jobs named in only, in their normal run order.
func selectJobs(jobs []cron.Job, only string) (*cron.Registry, error) {
	if strings.TrimSpace(only) == "" {
		return cron.NewRegistry(jobs...), nil
	}
	wanted := map[string]bool{}
	for _, name := range strings.Split(only, ",") {
		if name = strings.TrimSpace(name); name != "" {
			wanted[name] = true
		}
	}
	registry := cron.NewRegistry()
	for _, job := range jobs {
		if wanted[job.Name()] {
			_ = registry.Register(job)
			delete(wanted, job.Name())
		}
	}
	for name := range wanted {
		return nil, fmt.Errorf("unknown job %q", name)
	}
	return registry, nil
}

func closeQuietly(logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+what, err)
	}
}
