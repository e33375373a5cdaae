package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/enums"
)

// Subscription is a customer's recurring delivery agreement for one plan.
type Subscription struct {
	ID                uuid.UUID                `gorm:"column:id;type:uuid;primaryKey"`
	CustomerID        uuid.UUID                `gorm:"column:customer_id;type:uuid;not null;index"`
	PlanID            uuid.UUID                `gorm:"column:plan_id;type:uuid;not null"`
	ShippingAddressID uuid.UUID                `gorm:"column:shipping_address_id;type:uuid;not null"`
	StartDate         time.Time                `gorm:"column:start_date;type:date;not null"`
	NextBillingDate   *time.Time               `gorm:"column:next_billing_date;type:date"`
	BillingPeriod     enums.BillingPeriod      `gorm:"column:billing_period;type:billing_period;not null"`
	BillingInterval   int                      `gorm:"column:billing_interval;not null;default:1"`
	Status            enums.SubscriptionStatus `gorm:"column:status;type:subscription_status;not null"`
	PaymentMethodType enums.PaymentMethodType  `gorm:"column:payment_method_type;type:payment_method_type;not null"`
	CancelledAt       *time.Time               `gorm:"column:cancelled_at"`
	PausedAt          *time.Time               `gorm:"column:paused_at"`
	CreatedAt         time.Time                `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time                `gorm:"column:updated_at;autoUpdateTime"`

	Plan *SubscriptionPlan `gorm:"foreignKey:PlanID;references:ID"`
}

func (Subscription) TableName() string { return "user_subscriptions" }
