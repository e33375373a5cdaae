package payloads

import (
	"time"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/enums"
)

// InvoicePaymentLinkEvent tells the customer an invoice is ready to pay.
type InvoicePaymentLinkEvent struct {
	InvoiceID      uuid.UUID      `json:"invoice_id"`
	InvoiceNumber  string         `json:"invoice_number"`
	SubscriptionID uuid.UUID      `json:"subscription_id"`
	CustomerID     uuid.UUID      `json:"customer_id"`
	Amount         int64          `json:"amount"`
	Currency       enums.Currency `json:"currency"`
	PaymentLink    string         `json:"payment_link"`
	DueDate        *time.Time     `json:"due_date,omitempty"`
}

// InvoicePaidEvent confirms a settled invoice and the order it produced.
type InvoicePaidEvent struct {
	InvoiceID      uuid.UUID      `json:"invoice_id"`
	InvoiceNumber  string         `json:"invoice_number"`
	SubscriptionID uuid.UUID      `json:"subscription_id"`
	CustomerID     uuid.UUID      `json:"customer_id"`
	Amount         int64          `json:"amount"`
	Currency       enums.Currency `json:"currency"`
	PaidAt         time.Time      `json:"paid_at"`
	OrderID        *uuid.UUID     `json:"order_id,omitempty"`
}

// OrderStatusChangedEvent reports a fulfillment status move.
type OrderStatusChangedEvent struct {
	OrderID         uuid.UUID         `json:"order_id"`
	InvoiceID       uuid.UUID         `json:"invoice_id"`
	SubscriptionID  uuid.UUID         `json:"subscription_id"`
	CustomerID      uuid.UUID         `json:"customer_id"`
	PreviousStatus  enums.OrderStatus `json:"previous_status"`
	Status          enums.OrderStatus `json:"status"`
	ShippingCourier *string           `json:"shipping_courier,omitempty"`
	TrackingNumber  *string           `json:"tracking_number,omitempty"`
	ShippingDate    *string           `json:"shipping_date,omitempty"`
	DeliveredDate   *string           `json:"delivered_date,omitempty"`
}

// Notification is a customer-facing event payload. Recipient drives the
// Pub/Sub ordering key so one customer's messages arrive in commit order.
type Notification interface {
	Recipient() uuid.UUID
	Attributes() map[string]string
}

func (e InvoicePaymentLinkEvent) Recipient() uuid.UUID { return e.CustomerID }

func (e InvoicePaymentLinkEvent) Attributes() map[string]string {
	return map[string]string{
		"invoice_number":  e.InvoiceNumber,
		"subscription_id": e.SubscriptionID.String(),
	}
}

func (e InvoicePaidEvent) Recipient() uuid.UUID { return e.CustomerID }

func (e InvoicePaidEvent) Attributes() map[string]string {
	attrs := map[string]string{
		"invoice_number":  e.InvoiceNumber,
		"subscription_id": e.SubscriptionID.String(),
	}
	if e.OrderID != nil {
		attrs["order_id"] = e.OrderID.String()
	}
	return attrs
}

func (e OrderStatusChangedEvent) Recipient() uuid.UUID { return e.CustomerID }

func (e OrderStatusChangedEvent) Attributes() map[string]string {
	return map[string]string{
		"order_id":        e.OrderID.String(),
		"subscription_id": e.SubscriptionID.String(),
		"order_status":    string(e.Status),
	}
}
