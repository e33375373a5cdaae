package orders

import "github.com/artisancrate/billing-engine/pkg/enums"

var allowedTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPendingFulfillment: {enums.OrderStatusBeingPrepared, enums.OrderStatusCancelled},
	enums.OrderStatusBeingPrepared:      {enums.OrderStatusShipped, enums.OrderStatusCancelled},
	enums.OrderStatusShipped:            {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:          {},
	enums.OrderStatusCancelled:          {},
}

// CanTransition reports whether an order may move from current to next.
// Staying in the same status is always allowed.
func CanTransition(current, next enums.OrderStatus) bool {
	if current == next {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}
