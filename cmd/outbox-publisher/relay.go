package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/outbox/registry"
)

const (
	defaultBatchSize    = 50
	defaultPollInterval = 500 * time.Millisecond
	defaultMaxAttempts  = 10
	publishTimeout      = 15 * time.Second
	maxFailureBackoff   = 10 * time.Second
	pollJitter          = 250 * time.Millisecond
)

type database interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type pinger interface {
	Ping(context.Context) error
}

type relayStore interface {
	FetchUnpublishedForPublish(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublishedTx(tx *gorm.DB, id uuid.UUID) error
	MarkFailedTx(tx *gorm.DB, id uuid.UUID, err error) error
	MarkTerminalTx(tx *gorm.DB, id uuid.UUID, err error, terminalAttempts int) error
}

type deadLetters interface {
	InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error
}

type decoder interface {
	Decode(models.OutboxEvent) (*registry.Message, error)
}

// topicPublisher is the slice of *pubsub.Publisher the relay needs.
type topicPublisher interface {
	Publish(context.Context, *gcppubsub.Message) publishResult
	ResumePublish(orderingKey string)
}

type publishResult interface {
	Get(context.Context) (string, error)
}

type relayMetrics interface {
	OutboxOutcome(eventType, outcome string)
}

// delivery is what happened to one outbox row in a drain pass.
type delivery int

const (
	delivered delivery = iota
	deferred
	deadLettered
)

func (d delivery) String() string {
	switch d {
	case delivered:
		return "published"
	case deferred:
		return "retry"
	default:
		return "dlq"
	}
}

type RelayParams struct {
	Logger      *logger.Logger
	DB          database
	PubSub      pinger
	Store       relayStore
	DeadLetters deadLetters
	Catalog     decoder
	Publishers  func(topic string) topicPublisher
	Metrics     relayMetrics
	Outbox      config.OutboxConfig
	Clock       func() time.Time
}

// Relay moves committed customer notifications from outbox_events onto
// Pub/Sub, one customer-ordered stream per recipient.
type Relay struct {
	logg        *logger.Logger
	db          database
	pubsub      pinger
	store       relayStore
	dead        deadLetters
	catalog     decoder
	publishers  func(topic string) topicPublisher
	metrics     relayMetrics
	clock       func() time.Time
	batchSize   int
	maxAttempts int
	poll        time.Duration
}

func NewRelay(params RelayParams) (*Relay, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger is required")
	case params.DB == nil:
		return nil, errors.New("database is required")
	case params.PubSub == nil:
		return nil, errors.New("pubsub client is required")
	case params.Store == nil:
		return nil, errors.New("outbox store is required")
	case params.DeadLetters == nil:
		return nil, errors.New("dead letter store is required")
	case params.Catalog == nil:
		return nil, errors.New("event catalog is required")
	case params.Publishers == nil:
		return nil, errors.New("publisher factory is required")
	}

	r := &Relay{
		logg:        params.Logger,
		db:          params.DB,
		pubsub:      params.PubSub,
		store:       params.Store,
		dead:        params.DeadLetters,
		catalog:     params.Catalog,
		publishers:  params.Publishers,
		metrics:     params.Metrics,
		clock:       params.Clock,
		batchSize:   params.Outbox.BatchSize,
		maxAttempts: params.Outbox.MaxAttempts,
		poll:        time.Duration(params.Outbox.PollIntervalMS) * time.Millisecond,
	}
	if r.clock == nil {
		r.clock = time.Now
	}
	if r.batchSize <= 0 {
		r.batchSize = defaultBatchSize
	}
	if r.maxAttempts <= 0 {
		r.maxAttempts = defaultMaxAttempts
	}
	if r.poll <= 0 {
		r.poll = defaultPollInterval
	}
	return r, nil
}

// Run drains the outbox until ctx ends. A full batch is followed immediately
// by another drain; failures back off exponentially up to maxFailureBackoff.
func (r *Relay) Run(ctx context.Context) error {
	for name, dep := range map[string]pinger{"database": r.db, "pubsub": r.pubsub} {
		if err := dep.Ping(ctx); err != nil {
			r.logg.Error(ctx, name+" ping failed", err)
			return fmt.Errorf("%s ping failed: %w", name, err)
		}
	}

	wait := r.poll
	for {
		if err := ctx.Err(); err != nil {
			r.logg.Info(ctx, "outbox relay stopping")
			return err
		}

		n, err := r.Drain(ctx)
		switch {
		case err != nil:
			r.logg.Error(ctx, "outbox drain failed", err)
			wait = min(wait*2, maxFailureBackoff)
		case n >= r.batchSize:
			wait = r.poll
			continue
		default:
			wait = r.poll
		}

		if err := sleepCtx(ctx, wait+rand.N(pollJitter)); err != nil {
			return err
		}
	}
}

// Drain publishes one batch inside a transaction and returns how many rows
// it handled.
func (r *Relay) Drain(ctx context.Context) (int, error) {
	handled := 0
	err := r.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := r.store.FetchUnpublishedForPublish(tx, r.batchSize, r.maxAttempts)
		if err != nil {
			return fmt.Errorf("fetch outbox batch: %w", err)
		}
		for _, row := range rows {
			outcome, err := r.deliver(ctx, tx, row)
			if err != nil {
				return err
			}
			handled++
			if r.metrics != nil {
				r.metrics.OutboxOutcome(string(row.EventType), outcome.String())
			}
		}
		return nil
	})
	return handled, err
}

func (r *Relay) deliver(ctx context.Context, tx *gorm.DB, row models.OutboxEvent) (delivery, error) {
	ctx = r.logg.WithFields(ctx, map[string]any{
		"outbox_id":     row.ID.String(),
		"event_type":    row.EventType,
		"aggregate_id":  row.AggregateID.String(),
		"attempt_count": row.AttemptCount,
	})

	msg, err := r.catalog.Decode(row)
	if err != nil {
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, err)
	}

	pubErr := r.publish(ctx, row, msg)
	switch {
	case pubErr == nil:
		if err := r.store.MarkPublishedTx(tx, row.ID); err != nil {
			return delivered, fmt.Errorf("mark published %s: %w", row.ID, err)
		}
		r.logg.Info(ctx, "customer notification published")
		return delivered, nil
	case registry.IsPermanent(pubErr):
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonNonRetryable, pubErr)
	case row.AttemptCount+1 >= r.maxAttempts:
		return r.deadLetter(ctx, tx, row, enums.OutboxDLQReasonMaxAttempts,
			fmt.Errorf("gave up after %d attempts: %w", row.AttemptCount+1, pubErr))
	default:
		r.logg.Warn(r.logg.WithField(ctx, "error", pubErr.Error()), "customer notification publish failed, will retry")
		if err := r.store.MarkFailedTx(tx, row.ID, pubErr); err != nil {
			return deferred, fmt.Errorf("mark failed %s: %w", row.ID, err)
		}
		return deferred, nil
	}
}

func (r *Relay) publish(ctx context.Context, row models.OutboxEvent, msg *registry.Message) error {
	pub := r.publishers(msg.Route.Topic)
	if pub == nil {
		return registry.Permanent(fmt.Errorf("no publisher for topic %s", msg.Route.Topic))
	}

	key := msg.OrderingKey()
	attrs := msg.Notification.Attributes()
	attrs["event_id"] = msg.Envelope.EventID
	attrs["event_type"] = string(row.EventType)
	attrs["aggregate_type"] = string(row.AggregateType)
	attrs["aggregate_id"] = row.AggregateID.String()
	attrs["customer_id"] = key
	attrs["occurred_at"] = msg.Envelope.OccurredAt.UTC().Format(time.RFC3339Nano)

	publishCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	result := pub.Publish(publishCtx, &gcppubsub.Message{
		Data:        row.Payload,
		Attributes:  attrs,
		OrderingKey: key,
	})
	if result == nil {
		return registry.Permanent(fmt.Errorf("publisher for %s returned no result", msg.Route.Topic))
	}
	if _, err := result.Get(publishCtx); err != nil {
		// A failed ordered publish pauses the key until resumed.
		pub.ResumePublish(key)
		return err
	}
	return nil
}

func (r *Relay) deadLetter(ctx context.Context, tx *gorm.DB, row models.OutboxEvent, reason enums.OutboxDLQErrorReason, cause error) (delivery, error) {
	r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
		"error":        cause.Error(),
		"error_reason": reason,
	}), "customer notification dead-lettered")

	message := cause.Error()
	entry := models.OutboxDLQ{
		EventID:       row.ID,
		EventType:     row.EventType,
		AggregateType: row.AggregateType,
		AggregateID:   row.AggregateID,
		Payload:       row.Payload,
		ErrorReason:   reason,
		ErrorMessage:  &message,
		AttemptCount:  row.AttemptCount,
		FailedAt:      r.clock().UTC(),
	}
	if err := r.dead.InsertTx(tx, entry); err != nil {
		return deadLettered, fmt.Errorf("insert dlq %s: %w", row.ID, err)
	}
	if err := r.store.MarkTerminalTx(tx, row.ID, cause, r.maxAttempts); err != nil {
		return deadLettered, fmt.Errorf("mark terminal %s: %w", row.ID, err)
	}
	return deadLettered, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// gcpTopic adapts *pubsub.Publisher to topicPublisher.
type gcpTopic struct {
	pub *gcppubsub.Publisher
}

func (t gcpTopic) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	return t.pub.Publish(ctx, msg)
}

func (t gcpTopic) ResumePublish(orderingKey string) {
	t.pub.ResumePublish(orderingKey)
}
