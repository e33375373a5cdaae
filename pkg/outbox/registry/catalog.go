// Package registry maps outbox rows to the Pub/Sub topic and typed payload
// the notification service expects.
package registry

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/outbox"
	"github.com/artisancrate/billing-engine/pkg/outbox/payloads"
)

// PermanentError marks a row that will never publish no matter how often it
// is retried.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	if e.Err == nil {
		return "permanent outbox error"
	}
	return e.Err.Error()
}

func (e *PermanentError) Unwrap() error { return e.Err }

// Permanent wraps err as a PermanentError.
func Permanent(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, or anything it wraps, is permanent.
func IsPermanent(err error) bool {
	var target *PermanentError
	return errors.As(err, &target)
}

// Route binds an event type to its aggregate, topic and payload decoder.
type Route struct {
	EventType enums.OutboxEventType
	Aggregate enums.OutboxAggregateType
	Topic     string
	decode    func(outbox.PayloadEnvelope) (payloads.Notification, error)
}

// Message is a decoded outbox row ready for publishing.
type Message struct {
	Route        Route
	Envelope     outbox.PayloadEnvelope
	Notification payloads.Notification
}

// OrderingKey groups messages per customer.
func (m *Message) OrderingKey() string {
	return m.Notification.Recipient().String()
}

// Catalog is the set of publishable event types.
type Catalog struct {
	routes map[enums.OutboxEventType]Route
}

// NewCatalog routes every customer notification to the configured topic.
func NewCatalog(cfg config.PubSubConfig) (*Catalog, error) {
	topic := strings.TrimSpace(cfg.NotificationTopic)
	if topic == "" {
		return nil, fmt.Errorf("notification topic is required")
	}
	c := &Catalog{routes: map[enums.OutboxEventType]Route{}}
	c.add(route[payloads.InvoicePaymentLinkEvent](enums.EventInvoicePaymentLink, enums.AggregateInvoice, topic))
	c.add(route[payloads.InvoicePaidEvent](enums.EventInvoicePaid, enums.AggregateInvoice, topic))
	c.add(route[payloads.OrderStatusChangedEvent](enums.EventOrderStatusChanged, enums.AggregateOrder, topic))
	return c, nil
}

func route[T payloads.Notification](eventType enums.OutboxEventType, aggregate enums.OutboxAggregateType, topic string) Route {
	return Route{
		EventType: eventType,
		Aggregate: aggregate,
		Topic:     topic,
		decode: func(env outbox.PayloadEnvelope) (payloads.Notification, error) {
			var payload T
			if err := env.DecodeData(&payload); err != nil {
				return nil, err
			}
			return payload, nil
		},
	}
}

func (c *Catalog) add(r Route) {
	c.routes[r.EventType] = r
}

// Routes lists the registered routes.
func (c *Catalog) Routes() []Route {
	out := make([]Route, 0, len(c.routes))
	for _, r := range c.routes {
		out = append(out, r)
	}
	return out
}

// Decode validates the row against its route and unpacks the payload. Every
// failure is permanent: a malformed row stays malformed.
func (c *Catalog) Decode(event models.OutboxEvent) (*Message, error) {
	r, ok := c.routes[event.EventType]
	if !ok {
		return nil, Permanent(fmt.Errorf("no route for event type %s", event.EventType))
	}
	if r.Aggregate != event.AggregateType {
		return nil, Permanent(fmt.Errorf("%s must reference a %s aggregate, got %s", event.EventType, r.Aggregate, event.AggregateType))
	}
	if event.AggregateID == uuid.Nil {
		return nil, Permanent(fmt.Errorf("%s row %s has no aggregate id", event.EventType, event.ID))
	}

	envelope, err := outbox.ParseEnvelope(event.Payload)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%s: %w", event.EventType, err))
	}

	notification, err := r.decode(envelope)
	if err != nil {
		return nil, Permanent(fmt.Errorf("decode %s payload: %w", event.EventType, err))
	}
	if notification.Recipient() == uuid.Nil {
		return nil, Permanent(fmt.Errorf("%s payload has no customer", event.EventType))
	}

	return &Message{Route: r, Envelope: envelope, Notification: notification}, nil
}
