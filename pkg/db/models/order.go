package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/enums"
)

// Order tracks the physical shipment produced by one paid invoice.
type Order struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID    uuid.UUID         `gorm:"column:subscription_id;type:uuid;not null;index"`
	InvoiceID         uuid.UUID         `gorm:"column:invoice_id;type:uuid;not null;uniqueIndex:ux_orders_invoice_id"`
	CustomerID        uuid.UUID         `gorm:"column:customer_id;type:uuid;not null;index"`
	ShippingAddressID uuid.UUID         `gorm:"column:shipping_address_id;type:uuid;not null"`
	Status            enums.OrderStatus `gorm:"column:status;type:order_status;not null"`
	ShippingCourier   *string           `gorm:"column:shipping_courier"`
	TrackingNumber    *string           `gorm:"column:tracking_number"`
	ShippingDate      *time.Time        `gorm:"column:shipping_date;type:date"`
	DeliveredDate     *time.Time        `gorm:"column:delivered_date;type:date"`
	Notes             *string           `gorm:"column:notes"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (Order) TableName() string { return "orders" }
