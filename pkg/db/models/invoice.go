package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/enums"
)

// Invoice is a single amount owed for one billing period of a subscription.
type Invoice struct {
	ID                 uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	SubscriptionID     uuid.UUID           `gorm:"column:subscription_id;type:uuid;not null;index"`
	CustomerID         uuid.UUID           `gorm:"column:customer_id;type:uuid;not null;index"`
	InvoiceNumber      string              `gorm:"column:invoice_number;not null;uniqueIndex:ux_invoices_invoice_number"`
	Amount             int64               `gorm:"column:amount;not null"`
	Currency           enums.Currency      `gorm:"column:currency;not null;default:'IDR'"`
	BillingPeriodStart *time.Time          `gorm:"column:billing_period_start;type:date"`
	BillingPeriodEnd   *time.Time          `gorm:"column:billing_period_end;type:date"`
	Status             enums.InvoiceStatus `gorm:"column:status;type:invoice_status;not null"`
	DueDate            *time.Time          `gorm:"column:due_date"`
	GatewayOrderID     *string             `gorm:"column:gateway_order_id"`
	GatewayPaymentLink *string             `gorm:"column:gateway_payment_link"`
	PaidAt             *time.Time          `gorm:"column:paid_at"`
	CreatedAt          time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt          time.Time           `gorm:"column:updated_at;autoUpdateTime"`

	Subscription *Subscription `gorm:"foreignKey:SubscriptionID;references:ID"`
}

func (Invoice) TableName() string { return "invoices" }
