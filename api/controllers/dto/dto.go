// Package dto shapes billing models into API responses. Calendar dates are
// rendered as YYYY-MM-DD, instants as RFC 3339.
package dto

import (
	"time"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/dates"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
)

type Invoice struct {
	ID                 uuid.UUID           `json:"id"`
	SubscriptionID     uuid.UUID           `json:"subscription_id"`
	CustomerID         uuid.UUID           `json:"customer_id"`
	InvoiceNumber      string              `json:"invoice_number"`
	Amount             int64               `json:"amount"`
	Currency           enums.Currency      `json:"currency"`
	BillingPeriodStart *string             `json:"billing_period_start,omitempty"`
	BillingPeriodEnd   *string             `json:"billing_period_end,omitempty"`
	Status             enums.InvoiceStatus `json:"status"`
	DueDate            *time.Time          `json:"due_date,omitempty"`
	PaymentLink        *string             `json:"payment_link,omitempty"`
	PaidAt             *time.Time          `json:"paid_at,omitempty"`
	CreatedAt          time.Time           `json:"created_at"`
}

func NewInvoice(m *models.Invoice) *Invoice {
	if m == nil {
		return nil
	}
	return &Invoice{
		ID:                 m.ID,
		SubscriptionID:     m.SubscriptionID,
		CustomerID:         m.CustomerID,
		InvoiceNumber:      m.InvoiceNumber,
		Amount:             m.Amount,
		Currency:           m.Currency,
		BillingPeriodStart: formatDate(m.BillingPeriodStart),
		BillingPeriodEnd:   formatDate(m.BillingPeriodEnd),
		Status:             m.Status,
		DueDate:            m.DueDate,
		PaymentLink:        m.GatewayPaymentLink,
		PaidAt:             m.PaidAt,
		CreatedAt:          m.CreatedAt,
	}
}

type InvoicePage struct {
	Invoices   []Invoice `json:"invoices"`
	NextCursor string    `json:"next_cursor,omitempty"`
}

func NewInvoicePage(items []models.Invoice, next string) InvoicePage {
	out := InvoicePage{Invoices: make([]Invoice, 0, len(items)), NextCursor: next}
	for i := range items {
		out.Invoices = append(out.Invoices, *NewInvoice(&items[i]))
	}
	return out
}

type Subscription struct {
	ID                uuid.UUID                `json:"id"`
	CustomerID        uuid.UUID                `json:"customer_id"`
	PlanID            uuid.UUID                `json:"plan_id"`
	ShippingAddressID uuid.UUID                `json:"shipping_address_id"`
	StartDate         string                   `json:"start_date"`
	NextBillingDate   *string                  `json:"next_billing_date,omitempty"`
	BillingPeriod     enums.BillingPeriod      `json:"billing_period"`
	BillingInterval   int                      `json:"billing_interval"`
	Status            enums.SubscriptionStatus `json:"status"`
	PaymentMethodType enums.PaymentMethodType  `json:"payment_method_type"`
	CancelledAt       *time.Time               `json:"cancelled_at,omitempty"`
	PausedAt          *time.Time               `json:"paused_at,omitempty"`
	CreatedAt         time.Time                `json:"created_at"`
}

func NewSubscription(m *models.Subscription) *Subscription {
	if m == nil {
		return nil
	}
	return &Subscription{
		ID:                m.ID,
		CustomerID:        m.CustomerID,
		PlanID:            m.PlanID,
		ShippingAddressID: m.ShippingAddressID,
		StartDate:         dates.Format(m.StartDate),
		NextBillingDate:   formatDate(m.NextBillingDate),
		BillingPeriod:     m.BillingPeriod,
		BillingInterval:   m.BillingInterval,
		Status:            m.Status,
		PaymentMethodType: m.PaymentMethodType,
		CancelledAt:       m.CancelledAt,
		PausedAt:          m.PausedAt,
		CreatedAt:         m.CreatedAt,
	}
}

type SubscriptionPage struct {
	Subscriptions []Subscription `json:"subscriptions"`
	NextCursor    string         `json:"next_cursor,omitempty"`
}

func NewSubscriptionPage(items []models.Subscription, next string) SubscriptionPage {
	out := SubscriptionPage{Subscriptions: make([]Subscription, 0, len(items)), NextCursor: next}
	for i := range items {
		out.Subscriptions = append(out.Subscriptions, *NewSubscription(&items[i]))
	}
	return out
}

type Order struct {
	ID                uuid.UUID         `json:"id"`
	SubscriptionID    uuid.UUID         `json:"subscription_id"`
	InvoiceID         uuid.UUID         `json:"invoice_id"`
	CustomerID        uuid.UUID         `json:"customer_id"`
	ShippingAddressID uuid.UUID         `json:"shipping_address_id"`
	Status            enums.OrderStatus `json:"status"`
	ShippingCourier   *string           `json:"shipping_courier,omitempty"`
	TrackingNumber    *string           `json:"tracking_number,omitempty"`
	ShippingDate      *string           `json:"shipping_date,omitempty"`
	DeliveredDate     *string           `json:"delivered_date,omitempty"`
	CreatedAt         time.Time         `json:"created_at"`
}

func NewOrder(m *models.Order) *Order {
	if m == nil {
		return nil
	}
	return &Order{
		ID:                m.ID,
		SubscriptionID:    m.SubscriptionID,
		InvoiceID:         m.InvoiceID,
		CustomerID:        m.CustomerID,
		ShippingAddressID: m.ShippingAddressID,
		Status:            m.Status,
		ShippingCourier:   m.ShippingCourier,
		TrackingNumber:    m.TrackingNumber,
		ShippingDate:      formatDate(m.ShippingDate),
		DeliveredDate:     formatDate(m.DeliveredDate),
		CreatedAt:         m.CreatedAt,
	}
}

type OrderPage struct {
	Orders     []Order `json:"orders"`
	NextCursor string  `json:"next_cursor,omitempty"`
}

func NewOrderPage(items []models.Order, next string) OrderPage {
	out := OrderPage{Orders: make([]Order, 0, len(items)), NextCursor: next}
	for i := range items {
		out.Orders = append(out.Orders, *NewOrder(&items[i]))
	}
	return out
}

func formatDate(t *time.Time) *string {
	if t == nil {
		return nil
	}
	value := dates.Format(*t)
	return &value
}
