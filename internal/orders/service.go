package orders

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/pkg/dates"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/pagination"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// StatusNotifier tells the customer their order moved.
type StatusNotifier interface {
	OrderStatusChanged(ctx context.Context, order *models.Order, previous enums.OrderStatus) error
}

// Service defines fulfillment order operations.
type Service interface {
	CreateForInvoice(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, subscription *models.Subscription) (*models.Order, bool, error)
	UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error)
	GetForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error)
	ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*OrderList, error)
}

// UpdateStatusInput moves an order along its fulfillment path. Nil courier or
// tracking leaves the stored value alone; an empty string clears it.
type UpdateStatusInput struct {
	OrderID         uuid.UUID
	Status          enums.OrderStatus
	ShippingCourier *string
	TrackingNumber  *string
}

// OrderList is a page of orders.
type OrderList struct {
	Orders     []models.Order
	NextCursor string
}

// ServiceParams wires the order service.
type ServiceParams struct {
	Repo     Repository
	Tx       txRunner
	Notifier StatusNotifier
	Logger   *logger.Logger
	Clock    dates.Clock
}

type service struct {
	repo     Repository
	tx       txRunner
	notifier StatusNotifier
	logg     *logger.Logger
	clock    dates.Clock
}

// NewService builds the order service.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("orders repo required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = dates.SystemClock
	}
	return &service{
		repo:     params.Repo,
		tx:       params.Tx,
		notifier: params.Notifier,
		logg:     params.Logger,
		clock:    clock,
	}, nil
}

// CreateForInvoice opens the fulfillment order for a paid invoice inside the
// caller's transaction. It reports false when the invoice already has one.
func (s *service) CreateForInvoice(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, subscription *models.Subscription) (*models.Order, bool, error) {
	if invoice == nil || subscription == nil {
		return nil, false, pkgerrors.New(pkgerrors.CodeInternal, "invoice and subscription required")
	}
	repo := s.repo.WithTx(tx)

	existing, err := repo.FindByInvoice(ctx, invoice.ID)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice order")
	}
	if existing != nil {
		return existing, false, nil
	}

	order := &models.Order{
		SubscriptionID:    subscription.ID,
		InvoiceID:         invoice.ID,
		CustomerID:        invoice.CustomerID,
		ShippingAddressID: subscription.ShippingAddressID,
		Status:            enums.OrderStatusPendingFulfillment,
	}
	created, err := repo.CreateIfAbsent(ctx, order)
	if err != nil {
		return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create fulfillment order")
	}
	if !created {
		existing, err := repo.FindByInvoice(ctx, invoice.ID)
		if err != nil {
			return nil, false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice order")
		}
		return existing, false, nil
	}
	return order, true, nil
}

func (s *service) UpdateStatus(ctx context.Context, input UpdateStatusInput) (*models.Order, error) {
	if input.OrderID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if !input.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", input.Status))
	}

	var (
		order    *models.Order
		previous enums.OrderStatus
	)
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		current, err := repo.FindByID(ctx, input.OrderID, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
		}
		if current == nil {
			return pkgerrors.NotFound("order not found")
		}
		if !CanTransition(current.Status, input.Status) {
			return pkgerrors.InvalidTransition(
				pkgerrors.ReasonInvalidStatusTransition,
				fmt.Sprintf("order cannot move from %s to %s", current.Status, input.Status),
			).WithDetails(map[string]any{"from": current.Status, "to": input.Status})
		}

		previous = current.Status
		applyStatus(current, input, dates.Today(s.clock))
		if err := repo.Save(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save order")
		}
		order = current
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notify(ctx, order, previous)
	return order, nil
}

func applyStatus(order *models.Order, input UpdateStatusInput, today time.Time) {
	order.Status = input.Status
	if input.ShippingCourier != nil {
		order.ShippingCourier = optionalString(*input.ShippingCourier)
	}
	if input.TrackingNumber != nil {
		order.TrackingNumber = optionalString(*input.TrackingNumber)
	}
	if input.Status == enums.OrderStatusShipped && order.ShippingDate == nil {
		order.ShippingDate = dates.Ptr(today)
	}
	if input.Status == enums.OrderStatusDelivered && order.DeliveredDate == nil {
		order.DeliveredDate = dates.Ptr(today)
	}
}

func optionalString(value string) *string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func (s *service) notify(ctx context.Context, order *models.Order, previous enums.OrderStatus) {
	if s.notifier == nil || order == nil || order.Status == previous {
		return
	}
	if err := s.notifier.OrderStatusChanged(ctx, order, previous); err != nil {
		s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
			"order_id": order.ID.String(),
			"error":    err.Error(),
		}), "order status notification failed")
	}
}

func (s *service) GetForCustomer(ctx context.Context, customerID, orderID uuid.UUID) (*models.Order, error) {
	order, err := s.repo.FindByID(ctx, orderID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load order")
	}
	if order == nil || order.CustomerID != customerID {
		return nil, pkgerrors.NotFound("order not found")
	}
	return order, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*OrderList, error) {
	return s.list(ctx, ListQuery{CustomerID: &customerID, Limit: params.Limit}, params.Cursor)
}

func (s *service) ListAll(ctx context.Context, status *enums.OrderStatus, params pagination.Params) (*OrderList, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid order status %q", *status))
	}
	return s.list(ctx, ListQuery{Status: status, Limit: params.Limit}, params.Cursor)
}

func (s *service) list(ctx context.Context, query ListQuery, rawCursor string) (*OrderList, error) {
	cursor, err := pagination.ParseCursor(rawCursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor
	orders, next, err := s.repo.List(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list orders")
	}
	out := &OrderList{Orders: orders}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}
