package orders

import (
	"testing"

	"github.com/artisancrate/billing-engine/pkg/enums"
)

func TestCanTransitionTable(t *testing.T) {
	allowed := map[[2]enums.OrderStatus]bool{
		{enums.OrderStatusPendingFulfillment, enums.OrderStatusBeingPrepared}: true,
		{enums.OrderStatusPendingFulfillment, enums.OrderStatusCancelled}:     true,
		{enums.OrderStatusBeingPrepared, enums.OrderStatusShipped}:            true,
		{enums.OrderStatusBeingPrepared, enums.OrderStatusCancelled}:          true,
		{enums.OrderStatusShipped, enums.OrderStatusDelivered}:                true,
	}

	statuses := enums.OrderStatuses()
	if len(statuses) != 5 {
		t.Fatalf("expected 5 order statuses, got %d", len(statuses))
	}
	checked := 0
	for _, from := range statuses {
		for _, to := range statuses {
			want := from == to || allowed[[2]enums.OrderStatus{from, to}]
			if got := CanTransition(from, to); got != want {
				t.Errorf("CanTransition(%s, %s) = %v, want %v", from, to, got, want)
			}
			checked++
		}
	}
	if checked != 25 {
		t.Fatalf("expected 25 pairs, checked %d", checked)
	}
}

func TestTerminalStatusesHaveNoExits(t *testing.T) {
	for _, terminal := range []enums.OrderStatus{enums.OrderStatusDelivered, enums.OrderStatusCancelled} {
		for _, next := range enums.OrderStatuses() {
			if next == terminal {
				continue
			}
			if CanTransition(terminal, next) {
				t.Fatalf("%s must not move to %s", terminal, next)
			}
		}
	}
}
