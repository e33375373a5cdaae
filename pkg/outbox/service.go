package outbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

// CurrentVersion is stamped on envelopes that do not set one.
const CurrentVersion = 1

var errNoTransaction = errors.New("outbox emit requires a transaction")

// DomainEvent is a state change to announce once its transaction commits.
type DomainEvent struct {
	EventType     enums.OutboxEventType
	AggregateType enums.OutboxAggregateType
	AggregateID   uuid.UUID
	// Source names the emitting process, e.g. "api" or "cron-worker".
	Source     string
	Data       any
	Version    int
	OccurredAt time.Time
}

func (e DomainEvent) validate() error {
	switch {
	case !e.EventType.IsValid():
		return fmt.Errorf("unknown outbox event type %q", e.EventType)
	case !e.AggregateType.IsValid():
		return fmt.Errorf("unknown outbox aggregate type %q", e.AggregateType)
	case e.AggregateID == uuid.Nil:
		return fmt.Errorf("%s event has no aggregate id", e.EventType)
	}
	return nil
}

type Service struct {
	repo *Repository
	logg *logger.Logger
	now  func() time.Time
}

func NewService(repo *Repository, logg *logger.Logger) *Service {
	return &Service{repo: repo, logg: logg, now: time.Now}
}

// Emit queues the event in the caller's transaction so it commits or rolls
// back together with the state change it describes.
func (s *Service) Emit(ctx context.Context, tx *gorm.DB, event DomainEvent) error {
	if tx == nil {
		return errNoTransaction
	}
	if err := event.validate(); err != nil {
		return err
	}

	row, eventID, err := s.stage(event)
	if err != nil {
		return fmt.Errorf("stage %s: %w", event.EventType, err)
	}
	if err := s.repo.Insert(tx, row); err != nil {
		return fmt.Errorf("insert %s: %w", event.EventType, err)
	}

	if s.logg != nil {
		s.logg.Info(s.logg.WithFields(ctx, map[string]any{
			"event_id":       eventID,
			"event_type":     event.EventType,
			"aggregate_type": event.AggregateType,
			"aggregate_id":   event.AggregateID.String(),
		}), "outbox event queued")
	}
	return nil
}

// stage wraps the event body in a fresh envelope and returns the row to insert.
func (s *Service) stage(event DomainEvent) (models.OutboxEvent, string, error) {
	data, err := json.Marshal(event.Data)
	if err != nil {
		return models.OutboxEvent{}, "", err
	}

	envelope := PayloadEnvelope{
		Version:    event.Version,
		EventID:    uuid.NewString(),
		OccurredAt: event.OccurredAt,
		Source:     event.Source,
		Data:       data,
	}
	if envelope.Version <= 0 {
		envelope.Version = CurrentVersion
	}
	if envelope.OccurredAt.IsZero() {
		envelope.OccurredAt = s.now()
	}
	envelope.OccurredAt = envelope.OccurredAt.UTC()

	payload, err := json.Marshal(envelope)
	if err != nil {
		return models.OutboxEvent{}, "", err
	}
	return models.OutboxEvent{
		EventType:     event.EventType,
		AggregateType: event.AggregateType,
		AggregateID:   event.AggregateID,
		Payload:       payload,
	}, envelope.EventID, nil
}
