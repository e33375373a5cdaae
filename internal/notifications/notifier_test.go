package notifications

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/dates"
	"github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/db/dbtest"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/outbox"
	"github.com/artisancrate/billing-engine/pkg/outbox/payloads"
)

var fixedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func newTestNotifier(t *testing.T) (*Notifier, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	logg := logger.New(logger.Options{ServiceName: "test"})
	notifier, err := NewNotifier(NotifierParams{
		TransactionRunner: db.NewFromGorm(conn),
		Outbox:            outbox.NewService(outbox.NewRepository(conn), logg),
		Logger:            logg,
		Clock:             func() time.Time { return fixedNow },
	})
	if err != nil {
		t.Fatalf("new notifier: %v", err)
	}
	return notifier, conn
}

func loadOnlyEvent(t *testing.T, conn *gorm.DB, target any) models.OutboxEvent {
	t.Helper()
	var rows []models.OutboxEvent
	if err := conn.Find(&rows).Error; err != nil {
		t.Fatalf("load outbox: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected one outbox row, got %d", len(rows))
	}
	var envelope outbox.PayloadEnvelope
	if err := json.Unmarshal(rows[0].Payload, &envelope); err != nil {
		t.Fatalf("decode envelope: %v", err)
	}
	if !envelope.OccurredAt.Equal(fixedNow) {
		t.Fatalf("expected occurred_at %s, got %s", fixedNow, envelope.OccurredAt)
	}
	if err := json.Unmarshal(envelope.Data, target); err != nil {
		t.Fatalf("decode data: %v", err)
	}
	return rows[0]
}

func TestInvoicePaymentLinkQueuesEvent(t *testing.T) {
	notifier, conn := newTestNotifier(t)
	link := "https://app.sandbox.midtrans.com/snap/v2/vtweb/token"
	due := dates.DateOf(fixedNow).AddDate(0, 0, 3)
	invoice := &models.Invoice{
		ID:                 uuid.New(),
		SubscriptionID:     uuid.New(),
		CustomerID:         uuid.New(),
		InvoiceNumber:      "INV-20240301-000001",
		Amount:             120000,
		Currency:           enums.CurrencyIDR,
		DueDate:            &due,
		GatewayPaymentLink: &link,
	}

	if err := notifier.InvoicePaymentLink(context.Background(), invoice); err != nil {
		t.Fatalf("notify: %v", err)
	}

	var payload payloads.InvoicePaymentLinkEvent
	row := loadOnlyEvent(t, conn, &payload)
	if row.EventType != enums.EventInvoicePaymentLink || row.AggregateID != invoice.ID {
		t.Fatalf("unexpected row %+v", row)
	}
	if payload.PaymentLink != link || payload.Amount != 120000 || payload.CustomerID != invoice.CustomerID {
		t.Fatalf("unexpected payload %+v", payload)
	}
}

func TestInvoicePaymentLinkSkipsWithoutLink(t *testing.T) {
	notifier, conn := newTestNotifier(t)
	invoice := &models.Invoice{ID: uuid.New(), InvoiceNumber: "INV-20240301-000002"}

	if err := notifier.InvoicePaymentLink(context.Background(), invoice); err != nil {
		t.Fatalf("notify: %v", err)
	}
	var count int64
	conn.Model(&models.OutboxEvent{}).Count(&count)
	if count != 0 {
		t.Fatalf("expected no event, got %d", count)
	}
}

func TestInvoicePaidCarriesOrder(t *testing.T) {
	notifier, conn := newTestNotifier(t)
	paidAt := fixedNow.Add(-time.Minute)
	invoice := &models.Invoice{
		ID:             uuid.New(),
		SubscriptionID: uuid.New(),
		CustomerID:     uuid.New(),
		InvoiceNumber:  "INV-20240301-000003",
		Amount:         95000,
		Currency:       enums.CurrencyIDR,
		PaidAt:         &paidAt,
	}
	order := &models.Order{ID: uuid.New()}

	if err := notifier.InvoicePaid(context.Background(), invoice, order); err != nil {
		t.Fatalf("notify: %v", err)
	}

	var payload payloads.InvoicePaidEvent
	row := loadOnlyEvent(t, conn, &payload)
	if row.EventType != enums.EventInvoicePaid {
		t.Fatalf("unexpected event type %s", row.EventType)
	}
	if payload.OrderID == nil || *payload.OrderID != order.ID {
		t.Fatalf("expected order id, got %+v", payload.OrderID)
	}
	if !payload.PaidAt.Equal(paidAt) {
		t.Fatalf("expected paid_at %s, got %s", paidAt, payload.PaidAt)
	}
}

func TestOrderStatusChangedFormatsDates(t *testing.T) {
	notifier, conn := newTestNotifier(t)
	shipped := time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC)
	courier := "JNE"
	tracking := "JNE123"
	order := &models.Order{
		ID:              uuid.New(),
		InvoiceID:       uuid.New(),
		SubscriptionID:  uuid.New(),
		CustomerID:      uuid.New(),
		Status:          enums.OrderStatusShipped,
		ShippingCourier: &courier,
		TrackingNumber:  &tracking,
		ShippingDate:    &shipped,
	}

	if err := notifier.OrderStatusChanged(context.Background(), order, enums.OrderStatusPendingFulfillment); err != nil {
		t.Fatalf("notify: %v", err)
	}

	var payload payloads.OrderStatusChangedEvent
	row := loadOnlyEvent(t, conn, &payload)
	if row.AggregateType != enums.AggregateOrder || row.AggregateID != order.ID {
		t.Fatalf("unexpected row %+v", row)
	}
	if payload.PreviousStatus != enums.OrderStatusPendingFulfillment || payload.Status != enums.OrderStatusShipped {
		t.Fatalf("unexpected statuses %+v", payload)
	}
	if payload.ShippingDate == nil || *payload.ShippingDate != "2024-03-02" {
		t.Fatalf("unexpected shipping date %v", payload.ShippingDate)
	}
	if payload.DeliveredDate != nil {
		t.Fatalf("expected no delivered date, got %v", *payload.DeliveredDate)
	}
}

func TestNewNotifierValidation(t *testing.T) {
	if _, err := NewNotifier(NotifierParams{}); err == nil {
		t.Fatal("expected error for missing dependencies")
	}
}
