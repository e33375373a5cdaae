// Package notifications turns billing and fulfillment milestones into
// customer notification events. Events are written to the outbox and
// delivered to Pub/Sub by the outbox publisher.
package notifications

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/dates"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/outbox"
	"github.com/artisancrate/billing-engine/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type emitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Notifier queues customer notifications. Callers treat failures as
// best-effort; the business state is already committed when it runs.
type Notifier struct {
	tx     txRunner
	outbox emitter
	logg   *logger.Logger
	clock  dates.Clock
	source string
}

type NotifierParams struct {
	TransactionRunner txRunner
	Outbox            emitter
	Logger            *logger.Logger
	Clock             dates.Clock
	// Source is stamped on every envelope; usually the service kind.
	Source string
}

func NewNotifier(params NotifierParams) (*Notifier, error) {
	if params.TransactionRunner == nil {
		return nil, errors.New("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox service required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = dates.SystemClock
	}
	return &Notifier{
		tx:     params.TransactionRunner,
		outbox: params.Outbox,
		logg:   params.Logger,
		clock:  clock,
		source: params.Source,
	}, nil
}

// InvoicePaymentLink announces a payable invoice. Invoices without a stored
// link are skipped.
func (n *Notifier) InvoicePaymentLink(ctx context.Context, invoice *models.Invoice) error {
	if invoice == nil {
		return errors.New("invoice required")
	}
	if invoice.GatewayPaymentLink == nil || *invoice.GatewayPaymentLink == "" {
		n.logg.Warn(n.logg.WithInvoice(ctx, invoice.ID.String(), invoice.InvoiceNumber), "invoice has no payment link; notification skipped")
		return nil
	}
	return n.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventInvoicePaymentLink,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Data: payloads.InvoicePaymentLinkEvent{
			InvoiceID:      invoice.ID,
			InvoiceNumber:  invoice.InvoiceNumber,
			SubscriptionID: invoice.SubscriptionID,
			CustomerID:     invoice.CustomerID,
			Amount:         invoice.Amount,
			Currency:       invoice.Currency,
			PaymentLink:    *invoice.GatewayPaymentLink,
			DueDate:        invoice.DueDate,
		},
	})
}

// InvoicePaid confirms a settled invoice. order is nil when no fulfillment
// order was produced.
func (n *Notifier) InvoicePaid(ctx context.Context, invoice *models.Invoice, order *models.Order) error {
	if invoice == nil {
		return errors.New("invoice required")
	}
	paidAt := n.clock().UTC()
	if invoice.PaidAt != nil {
		paidAt = *invoice.PaidAt
	}
	event := payloads.InvoicePaidEvent{
		InvoiceID:      invoice.ID,
		InvoiceNumber:  invoice.InvoiceNumber,
		SubscriptionID: invoice.SubscriptionID,
		CustomerID:     invoice.CustomerID,
		Amount:         invoice.Amount,
		Currency:       invoice.Currency,
		PaidAt:         paidAt,
	}
	if order != nil {
		id := order.ID
		event.OrderID = &id
	}
	return n.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventInvoicePaid,
		AggregateType: enums.AggregateInvoice,
		AggregateID:   invoice.ID,
		Data:          event,
	})
}

// OrderStatusChanged tells the customer their shipment moved.
func (n *Notifier) OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus) error {
	if order == nil {
		return errors.New("order required")
	}
	return n.emit(ctx, outbox.DomainEvent{
		EventType:     enums.EventOrderStatusChanged,
		AggregateType: enums.AggregateOrder,
		AggregateID:   order.ID,
		Data: payloads.OrderStatusChangedEvent{
			OrderID:         order.ID,
			InvoiceID:       order.InvoiceID,
			SubscriptionID:  order.SubscriptionID,
			CustomerID:      order.CustomerID,
			PreviousStatus:  previous,
			Status:          order.Status,
			ShippingCourier: order.ShippingCourier,
			TrackingNumber:  order.TrackingNumber,
			ShippingDate:    formatDate(order.ShippingDate),
			DeliveredDate:   formatDate(order.DeliveredDate),
		},
	})
}

func (n *Notifier) emit(ctx context.Context, event outbox.DomainEvent) error {
	event.OccurredAt = n.clock().UTC()
	event.Source = n.source
	return n.tx.WithTx(ctx, func(tx *gorm.DB) error {
		return n.outbox.Emit(ctx, tx, event)
	})
}

func formatDate(value *time.Time) *string {
	if value == nil {
		return nil
	}
	formatted := dates.Format(*value)
	return &formatted
}
