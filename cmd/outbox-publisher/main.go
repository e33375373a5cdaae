// Command outbox-publisher relays committed customer notifications from the
// outbox table to Pub/Sub. The -dlq and -requeue flags run one-shot dead
// letter maintenance instead of the relay.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/metrics"
	"github.com/artisancrate/billing-engine/pkg/migrate"
	"github.com/artisancrate/billing-engine/pkg/outbox"
	"github.com/artisancrate/billing-engine/pkg/outbox/registry"
	"github.com/artisancrate/billing-engine/pkg/pubsub"
)

const serviceKind = "outbox-publisher"

// dlqCommand is the one-shot dead letter maintenance requested on the
// command line.
type dlqCommand struct {
	list    bool
	reason  string
	requeue string
}

func (c dlqCommand) requested() bool {
	return c.list || c.requeue != ""
}

type deadLetterAdmin interface {
	List(ctx context.Context, reason *enums.OutboxDLQErrorReason, limit int) ([]models.OutboxDLQ, error)
	Requeue(ctx context.Context, eventID uuid.UUID) (bool, error)
}

func main() {
	var cmd dlqCommand
	flag.BoolVar(&cmd.list, "dlq", false, "print dead-lettered notifications as JSON lines and exit")
	flag.StringVar(&cmd.reason, "dlq-reason", "", "with -dlq, only list max_attempts or non_retryable entries")
	flag.StringVar(&cmd.requeue, "requeue", "", "outbox event id to move from the dead letter table back to pending, then exit")
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
	ctx = logg.WithFields(ctx, map[string]any{"env": cfg.App.Env, "serviceKind": serviceKind})

	if err := run(ctx, cfg, logg, cmd); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "outbox publisher stopped unexpectedly", err)
		os.Exit(1)
	}
	logg.Info(ctx, "outbox publisher stopped")
}

func run(ctx context.Context, cfg *config.Config, logg *logger.Logger, cmd dlqCommand) error {
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return fmt.Errorf("bootstrap database: %w", err)
	}
	defer closeQuietly(logg, "database", dbClient.Close)

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return fmt.Errorf("dev migrations: %w", err)
	}

	dlq := outbox.NewDLQRepository(dbClient.DB())
	if cmd.requested() {
		return operate(ctx, os.Stdout, dlq, cmd)
	}

	pubsubClient, err := pubsub.NewClient(ctx, cfg.GCP, cfg.PubSub, logg)
	if err != nil {
		return fmt.Errorf("bootstrap pubsub: %w", err)
	}
	defer closeQuietly(logg, "pubsub client", pubsubClient.Close)

	catalog, err := registry.NewCatalog(cfg.PubSub)
	if err != nil {
		return fmt.Errorf("notification catalog: %w", err)
	}
	relay, err := NewRelay(RelayParams{
		Logger:      logg,
		DB:          dbClient,
		PubSub:      pubsubClient,
		Store:       outbox.NewRepository(dbClient.DB()),
		DeadLetters: dlq,
		Catalog:     catalog,
		Publishers: func(topic string) topicPublisher {
			if pub := pubsubClient.Publisher(topic); pub != nil {
				return gcpTopic{pub: pub}
			}
			return nil
		},
		Metrics: metrics.NewBillingMetrics(prometheus.DefaultRegisterer),
		Outbox:  cfg.Outbox,
	})
	if err != nil {
		return fmt.Errorf("outbox relay: %w", err)
	}

	logg.Info(ctx, "starting outbox publisher")
	return relay.Run(ctx)
}

// operate runs the one-shot dead letter commands. A requeue runs before
// the listing so the output reflects it.
func operate(ctx context.Context, out io.Writer, dlq deadLetterAdmin, cmd dlqCommand) error {
	if cmd.requeue != "" {
		id, err := uuid.Parse(cmd.requeue)
		if err != nil {
			return fmt.Errorf("invalid -requeue id: %w", err)
		}
		ok, err := dlq.Requeue(ctx, id)
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("no dead letter for outbox event %s", id)
		}
		fmt.Fprintln(out, "requeued", id)
	}
	if !cmd.list {
		return nil
	}

	var reason *enums.OutboxDLQErrorReason
	if cmd.reason != "" {
		r := enums.OutboxDLQErrorReason(cmd.reason)
		if !r.IsValid() {
			return fmt.Errorf("invalid -dlq-reason %q", cmd.reason)
		}
		reason = &r
	}
	rows, err := dlq.List(ctx, reason, 0)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	for _, row := range rows {
		if err := enc.Encode(row); err != nil {
			return err
		}
	}
	return nil
}

func closeQuietly(logg *logger.Logger, what string, closeFn func() error) {
	if err := closeFn(); err != nil {
		logg.Error(context.Background(), "error closing "+what, err)
	}
}
