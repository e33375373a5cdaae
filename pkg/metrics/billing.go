package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// BillingMetrics counts invoice generation, gateway notification, gateway
// call and outbox delivery outcomes.
type BillingMetrics struct {
	invoices      *prometheus.CounterVec
	notifications *prometheus.CounterVec
	gatewayCalls  *prometheus.CounterVec
	outbox        *prometheus.CounterVec
}

// NewBillingMetrics registers the billing counters on the provided registerer.
func NewBillingMetrics(reg prometheus.Registerer) *BillingMetrics {
	if reg == nil {
		return &BillingMetrics{}
	}
	invoices := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_invoices_total",
		Help: "Recurring invoice generator outcomes per subscription.",
	}, []string{"outcome"})
	notifications := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_gateway_notifications_total",
		Help: "Payment gateway notifications by processing outcome.",
	}, []string{"outcome"})
	gatewayCalls := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "billing_gateway_calls_total",
		Help: "Outbound payment gateway calls by result.",
	}, []string{"result"})
	outbox := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "outbox_events_total",
		Help: "Outbox rows handled by the publisher.",
	}, []string{"event_type", "outcome"})
	reg.MustRegister(invoices, notifications, gatewayCalls, outbox)
	return &BillingMetrics{
		invoices:      invoices,
		notifications: notifications,
		gatewayCalls:  gatewayCalls,
		outbox:        outbox,
	}
}

// InvoiceOutcome adds count to the generator outcome counter.
func (b *BillingMetrics) InvoiceOutcome(outcome string, count int) {
	if b == nil || b.invoices == nil || count <= 0 {
		return
	}
	b.invoices.WithLabelValues(normalizeLabel(outcome)).Add(float64(count))
}

// NotificationOutcome increments the gateway notification counter.
func (b *BillingMetrics) NotificationOutcome(outcome string) {
	if b == nil || b.notifications == nil {
		return
	}
	b.notifications.WithLabelValues(normalizeLabel(outcome)).Inc()
}

// GatewayCall increments the outbound gateway call counter.
func (b *BillingMetrics) GatewayCall(result string) {
	if b == nil || b.gatewayCalls == nil {
		return
	}
	b.gatewayCalls.WithLabelValues(normalizeLabel(result)).Inc()
}

// OutboxOutcome increments the publisher counter.
func (b *BillingMetrics) OutboxOutcome(eventType, outcome string) {
	if b == nil || b.outbox == nil {
		return
	}
	b.outbox.WithLabelValues(normalizeLabel(eventType), normalizeLabel(outcome)).Inc()
}
