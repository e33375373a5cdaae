package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestBillingMetricsCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewBillingMetrics(reg)

	m.InvoiceOutcome("created", 3)
	m.InvoiceOutcome("skipped", 0)
	m.NotificationOutcome("paid")
	m.NotificationOutcome("paid")
	m.GatewayCall("")
	m.OutboxOutcome("invoice.paid", "published")

	cases := []struct {
		name   string
		labels map[string]string
		want   float64
	}{
		{"billing_invoices_total", map[string]string{"outcome": "created"}, 3},
		{"billing_gateway_notifications_total", map[string]string{"outcome": "paid"}, 2},
		{"billing_gateway_calls_total", map[string]string{"result": "unknown"}, 1},
		{"outbox_events_total", map[string]string{"event_type": "invoice.paid", "outcome": "published"}, 1},
	}
	for _, tc := range cases {
		got := sample(t, reg, tc.name, tc.labels)
		if got == nil {
			t.Fatalf("%s: series missing", tc.name)
		}
		if v := got.GetCounter().GetValue(); v != tc.want {
			t.Fatalf("%s: expected %v, got %v", tc.name, tc.want, v)
		}
	}

	if sample(t, reg, "billing_invoices_total", map[string]string{"outcome": "skipped"}) != nil {
		t.Fatal("zero counts should not create a series")
	}
}
