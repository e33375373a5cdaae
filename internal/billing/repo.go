package billing

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/pagination"
)

// Repository handles subscription, plan, and invoice persistence.
type Repository interface {
	WithTx(tx *gorm.DB) Repository

	FindPlan(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error)

	CreateSubscription(ctx context.Context, subscription *models.Subscription) error
	UpdateSubscription(ctx context.Context, subscription *models.Subscription) error
	FindSubscription(ctx context.Context, id uuid.UUID, lock bool) (*models.Subscription, error)
	ListDueSubscriptions(ctx context.Context, today time.Time) ([]models.Subscription, error)
	ListSubscriptions(ctx context.Context, params ListSubscriptionsQuery) ([]models.Subscription, *pagination.Cursor, error)

	CreateInvoice(ctx context.Context, invoice *models.Invoice) (bool, error)
	UpdateInvoice(ctx context.Context, invoice *models.Invoice) error
	SetInvoicePaymentLink(ctx context.Context, invoiceID uuid.UUID, gatewayOrderID, link string) error
	FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error)
	FindInvoiceByNumber(ctx context.Context, number string, lock bool) (*models.Invoice, error)
	FindInvoiceForPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.Invoice, error)
	ListInvoices(ctx context.Context, params ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error)
}

// ListSubscriptionsQuery filters subscription listings. A nil CustomerID lists
// across customers.
type ListSubscriptionsQuery struct {
	CustomerID *uuid.UUID
	Status     *enums.SubscriptionStatus
	Limit      int
	Cursor     *pagination.Cursor
}

// ListInvoicesQuery filters invoice listings.
type ListInvoicesQuery struct {
	CustomerID     *uuid.UUID
	SubscriptionID *uuid.UUID
	Status         *enums.InvoiceStatus
	Limit          int
	Cursor         *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a billing repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) FindPlan(ctx context.Context, id uuid.UUID) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&plan).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &plan, nil
}

func (r *repository) CreateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Create(subscription).Error
}

func (r *repository) UpdateSubscription(ctx context.Context, subscription *models.Subscription) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(subscription).Error
}

// FindSubscription loads a subscription with its plan. Callers that write the
// row back pass lock so concurrent writers queue behind the transaction.
func (r *repository) FindSubscription(ctx context.Context, id uuid.UUID, lock bool) (*models.Subscription, error) {
	query := r.db.WithContext(ctx)
	if lock {
		query = db.ForUpdate(query)
	}
	var sub models.Subscription
	if err := query.
		Preload("Plan").
		Where("id = ?", id).
		First(&sub).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &sub, nil
}

// ListDueSubscriptions returns active subscriptions whose next billing date is
// on or before today.
func (r *repository) ListDueSubscriptions(ctx context.Context, today time.Time) ([]models.Subscription, error) {
	var subs []models.Subscription
	if err := r.db.WithContext(ctx).
		Preload("Plan").
		Where("status = ?", enums.SubscriptionStatusActive).
		Where("next_billing_date IS NOT NULL AND next_billing_date <= ?", today).
		Order("next_billing_date ASC, id ASC").
		Find(&subs).Error; err != nil {
		return nil, err
	}
	return subs, nil
}

func (r *repository) ListSubscriptions(ctx context.Context, params ListSubscriptionsQuery) ([]models.Subscription, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Subscription{}).Preload("Plan")
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var subs []models.Subscription
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&subs).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(subs, params.Limit, func(row models.Subscription) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}

// CreateInvoice inserts the invoice unless one already exists for the same
// subscription and billing period start. It reports whether a row was written.
// Invoice number collisions surface as unique violations.
func (r *repository) CreateInvoice(ctx context.Context, invoice *models.Invoice) (bool, error) {
	res := r.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "subscription_id"}, {Name: "billing_period_start"}},
			DoNothing: true,
		}).
		Create(invoice)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) UpdateInvoice(ctx context.Context, invoice *models.Invoice) error {
	return r.db.WithContext(ctx).Omit(clause.Associations).Save(invoice).Error
}

// SetInvoicePaymentLink writes only the gateway columns so a concurrent
// status change is never overwritten.
func (r *repository) SetInvoicePaymentLink(ctx context.Context, invoiceID uuid.UUID, gatewayOrderID, link string) error {
	return r.db.WithContext(ctx).
		Model(&models.Invoice{}).
		Where("id = ?", invoiceID).
		Updates(map[string]any{
			"gateway_order_id":     gatewayOrderID,
			"gateway_payment_link": link,
			"updated_at":           time.Now().UTC(),
		}).Error
}

func (r *repository) FindInvoice(ctx context.Context, id uuid.UUID) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

// FindInvoiceByNumber looks an invoice up by its customer-facing number. When
// lock is set the row is held for update until the surrounding transaction ends.
func (r *repository) FindInvoiceByNumber(ctx context.Context, number string, lock bool) (*models.Invoice, error) {
	if number == "" {
		return nil, nil
	}
	query := r.db.WithContext(ctx)
	if lock {
		query = db.ForUpdate(query)
	}
	var invoice models.Invoice
	if err := query.Where("invoice_number = ?", number).First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) FindInvoiceForPeriod(ctx context.Context, subscriptionID uuid.UUID, periodStart time.Time) (*models.Invoice, error) {
	var invoice models.Invoice
	if err := r.db.WithContext(ctx).
		Where("subscription_id = ? AND billing_period_start = ?", subscriptionID, periodStart).
		First(&invoice).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &invoice, nil
}

func (r *repository) ListInvoices(ctx context.Context, params ListInvoicesQuery) ([]models.Invoice, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Invoice{})
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.SubscriptionID != nil {
		query = query.Where("subscription_id = ?", *params.SubscriptionID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var invoices []models.Invoice
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&invoices).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(invoices, params.Limit, func(row models.Invoice) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
