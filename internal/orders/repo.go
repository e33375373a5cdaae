package orders

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/pagination"
)

// Repository defines persistence operations for fulfillment orders.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateIfAbsent(ctx context.Context, order *models.Order) (bool, error)
	Save(ctx context.Context, order *models.Order) error
	FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Order, error)
	FindByInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Order, error)
	List(ctx context.Context, params ListQuery) ([]models.Order, *pagination.Cursor, error)
}

// ListQuery filters order listings. A nil CustomerID lists across customers.
type ListQuery struct {
	CustomerID     *uuid.UUID
	SubscriptionID *uuid.UUID
	Status         *enums.OrderStatus
	Limit          int
	Cursor         *pagination.Cursor
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an order repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// CreateIfAbsent inserts the order unless one already exists for its invoice.
func (r *repository) CreateIfAbsent(ctx context.Context, order *models.Order) (bool, error) {
	res := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "invoice_id"}},
			DoNothing: true,
		}).
		Create(order)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}

func (r *repository) Save(ctx context.Context, order *models.Order) error {
	return r.db.WithContext(ctx).Save(order).Error
}

func (r *repository) FindByID(ctx context.Context, id uuid.UUID, lock bool) (*models.Order, error) {
	query := r.db.WithContext(ctx)
	if lock {
		query = db.ForUpdate(query)
	}
	var order models.Order
	if err := query.Where("id = ?", id).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) FindByInvoice(ctx context.Context, invoiceID uuid.UUID) (*models.Order, error) {
	var order models.Order
	if err := r.db.WithContext(ctx).Where("invoice_id = ?", invoiceID).First(&order).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &order, nil
}

func (r *repository) List(ctx context.Context, params ListQuery) ([]models.Order, *pagination.Cursor, error) {
	query := r.db.WithContext(ctx).Model(&models.Order{})
	if params.CustomerID != nil {
		query = query.Where("customer_id = ?", *params.CustomerID)
	}
	if params.SubscriptionID != nil {
		query = query.Where("subscription_id = ?", *params.SubscriptionID)
	}
	if params.Status != nil {
		query = query.Where("status = ?", *params.Status)
	}

	var orders []models.Order
	if err := pagination.Keyset(query, params.Cursor, params.Limit).Find(&orders).Error; err != nil {
		return nil, nil, err
	}
	page, next := pagination.Trim(orders, params.Limit, func(row models.Order) pagination.Cursor {
		return pagination.Cursor{CreatedAt: row.CreatedAt, ID: row.ID}
	})
	return page, next, nil
}
