package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/enums"
)

// SubscriptionPlan is the catalog entry a subscription bills against. Plans
// are managed by the catalog service and only read here.
type SubscriptionPlan struct {
	ID              uuid.UUID           `gorm:"column:id;type:uuid;primaryKey"`
	Name            string              `gorm:"column:name;not null"`
	Description     *string             `gorm:"column:description"`
	BillingPeriod   enums.BillingPeriod `gorm:"column:billing_period;type:billing_period;not null"`
	BillingInterval int                 `gorm:"column:billing_interval;not null;default:1"`
	Price           int64               `gorm:"column:price;not null"`
	Currency        enums.Currency      `gorm:"column:currency;not null;default:'IDR'"`
	IsActive        bool                `gorm:"column:is_active;not null;default:true"`
	CreatedAt       time.Time           `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt       time.Time           `gorm:"column:updated_at;autoUpdateTime"`
}

func (SubscriptionPlan) TableName() string { return "subscription_plans" }
