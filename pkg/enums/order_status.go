package enums

import "slices"

// OrderStatus is the fulfillment progress of one shipment.
type OrderStatus string

const (
	OrderStatusPendingFulfillment OrderStatus = "pending_fulfillment"
	OrderStatusBeingPrepared      OrderStatus = "being_prepared"
	OrderStatusShipped            OrderStatus = "shipped"
	OrderStatusDelivered          OrderStatus = "delivered"
	OrderStatusCancelled          OrderStatus = "cancelled"
)

var orderStatuses = values[OrderStatus]{
	OrderStatusPendingFulfillment,
	OrderStatusBeingPrepared,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// OrderStatuses lists every status in lifecycle order.
func OrderStatuses() []OrderStatus {
	return slices.Clone([]OrderStatus(orderStatuses))
}

func (s OrderStatus) IsValid() bool { return orderStatuses.has(s) }

func ParseOrderStatus(raw string) (OrderStatus, error) {
	return orderStatuses.parse("order status", raw)
}
