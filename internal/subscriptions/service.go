package subscriptions

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/internal/billing"
	"github.com/artisancrate/billing-engine/pkg/dates"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/pagination"
)

const defaultInitialDueDays = 3

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the subscription lifecycle surface.
type Service interface {
	Create(ctx context.Context, input CreateSubscriptionInput) (*CreateResult, error)
	Cancel(ctx context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error)
	Pause(ctx context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error)
	Resume(ctx context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error)
	AdminSetStatus(ctx context.Context, subscriptionID uuid.UUID, status enums.SubscriptionStatus) (*models.Subscription, error)
	Get(ctx context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*SubscriptionList, error)
	ListAll(ctx context.Context, status *enums.SubscriptionStatus, params pagination.Params) (*SubscriptionList, error)
}

// ServiceParams groups dependencies for the subscription service.
type ServiceParams struct {
	BillingRepo       billing.Repository
	TransactionRunner txRunner
	Logger            *logger.Logger
	DueDays           int
	Clock             dates.Clock
	InvoiceNumber     billing.InvoiceNumberFunc
}

// CreateSubscriptionInput captures the data required to start a subscription.
type CreateSubscriptionInput struct {
	CustomerID        uuid.UUID
	PlanID            uuid.UUID
	ShippingAddressID uuid.UUID
	PaymentMethodType enums.PaymentMethodType
}

// CreateResult carries the new subscription and the invoice for its first payment.
type CreateResult struct {
	Subscription   *models.Subscription
	InitialInvoice *models.Invoice
}

// SubscriptionList is a page of subscriptions.
type SubscriptionList struct {
	Subscriptions []models.Subscription
	NextCursor    string
}

type service struct {
	billingRepo billing.Repository
	txRunner    txRunner
	logg        *logger.Logger
	dueDays     int
	clock       dates.Clock
	number      billing.InvoiceNumberFunc
}

// NewService builds a subscription service with the required dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.BillingRepo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.TransactionRunner == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	dueDays := params.DueDays
	if dueDays <= 0 {
		dueDays = defaultInitialDueDays
	}
	clock := params.Clock
	if clock == nil {
		clock = dates.SystemClock
	}
	number := params.InvoiceNumber
	if number == nil {
		number = billing.NewInvoiceNumber
	}
	return &service{
		billingRepo: params.BillingRepo,
		txRunner:    params.TransactionRunner,
		logg:        params.Logger,
		dueDays:     dueDays,
		clock:       clock,
		number:      number,
	}, nil
}

// Create starts a subscription awaiting its first payment together with the
// unperiodised invoice that pays for it.
func (s *service) Create(ctx context.Context, input CreateSubscriptionInput) (*CreateResult, error) {
	if input.CustomerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id is required")
	}
	if input.PlanID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription_plan_id is required")
	}
	if input.ShippingAddressID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shipping_address_id is required")
	}
	method := input.PaymentMethodType
	if method == "" {
		method = enums.PaymentMethodTypeManualPaymentLink
	}
	if !method.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid payment method type %q", method))
	}
	if method == enums.PaymentMethodTypeCreditCardToken {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "credit_card_token payments are not supported yet").
			WithReason(pkgerrors.ReasonPaymentMethodNotSupported)
	}

	plan, err := s.billingRepo.FindPlan(ctx, input.PlanID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load plan")
	}
	if plan == nil || !plan.IsActive {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription plan not found or inactive").
			WithReason(pkgerrors.ReasonPlanUnavailable)
	}
	if err := billing.ValidateCycle(plan.BillingPeriod, plan.BillingInterval); err != nil {
		return nil, err
	}

	now := s.clock().UTC()
	today := dates.DateOf(now)
	sub := &models.Subscription{
		CustomerID:        input.CustomerID,
		PlanID:            plan.ID,
		ShippingAddressID: input.ShippingAddressID,
		StartDate:         today,
		NextBillingDate:   dates.Ptr(today),
		BillingPeriod:     plan.BillingPeriod,
		BillingInterval:   plan.BillingInterval,
		Status:            enums.SubscriptionStatusPendingInitialPayment,
		PaymentMethodType: method,
	}
	invoice := &models.Invoice{
		CustomerID: input.CustomerID,
		Amount:     plan.Price,
		Currency:   plan.Currency,
		Status:     enums.InvoiceStatusPending,
		DueDate:    dates.Ptr(now.AddDate(0, 0, s.dueDays)),
	}

	err = s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.billingRepo.WithTx(tx)
		if err := txRepo.CreateSubscription(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create subscription")
		}
		invoice.SubscriptionID = sub.ID
		created, err := billing.IssueInvoice(ctx, txRepo, invoice, now, s.number)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "create initial invoice")
		}
		if !created {
			return pkgerrors.New(pkgerrors.CodeInternal, "initial invoice was not written")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sub.Plan = plan
	logCtx := s.logg.WithSubscriptionID(ctx, sub.ID.String())
	logCtx = s.logg.WithInvoice(logCtx, invoice.ID.String(), invoice.InvoiceNumber)
	s.logg.Info(logCtx, "subscription created")
	return &CreateResult{Subscription: sub, InitialInvoice: invoice}, nil
}

// Cancel ends a subscription for good. Cancelled and expired subscriptions
// cannot be cancelled again.
func (s *service) Cancel(ctx context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	return s.mutateOwned(ctx, customerID, subscriptionID, func(sub *models.Subscription, now time.Time) error {
		if sub.Status.IsTerminal() {
			return pkgerrors.AlreadyTerminal(pkgerrors.ReasonSubscriptionTerminated, "subscription already ended")
		}
		sub.Status = enums.SubscriptionStatusCancelled
		sub.CancelledAt = &now
		return nil
	})
}

func (s *service) Pause(ctx context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	return s.mutateOwned(ctx, customerID, subscriptionID, func(sub *models.Subscription, now time.Time) error {
		if sub.Status != enums.SubscriptionStatusActive {
			return invalidStatus(sub.Status, "only active subscriptions can be paused")
		}
		sub.Status = enums.SubscriptionStatusPaused
		sub.PausedAt = &now
		return nil
	})
}

// Resume reactivates a paused subscription and bills it from today.
func (s *service) Resume(ctx context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	return s.mutateOwned(ctx, customerID, subscriptionID, func(sub *models.Subscription, now time.Time) error {
		if sub.Status != enums.SubscriptionStatusPaused {
			return invalidStatus(sub.Status, "only paused subscriptions can be resumed")
		}
		sub.Status = enums.SubscriptionStatusActive
		sub.PausedAt = nil
		sub.NextBillingDate = dates.Ptr(dates.DateOf(now))
		return nil
	})
}

// AdminSetStatus forces a subscription into status without consulting the
// lifecycle rules. It exists for back-office corrections only.
func (s *service) AdminSetStatus(ctx context.Context, subscriptionID uuid.UUID, status enums.SubscriptionStatus) (*models.Subscription, error) {
	if !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid subscription status %q", status))
	}
	sub, err := s.mutate(ctx, subscriptionID, func(sub *models.Subscription) error { return nil }, func(sub *models.Subscription, now time.Time) error {
		sub.Status = status
		switch status {
		case enums.SubscriptionStatusCancelled:
			sub.CancelledAt = &now
		case enums.SubscriptionStatusPaused:
			sub.PausedAt = &now
		case enums.SubscriptionStatusActive:
			sub.PausedAt = nil
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
		"subscription_id": sub.ID.String(),
		"status":          status,
	}), "subscription status overridden by admin")
	return sub, nil
}

func (s *service) Get(ctx context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.billingRepo.FindSubscription(ctx, subscriptionID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
	}
	if sub == nil || sub.CustomerID != customerID {
		return nil, pkgerrors.NotFound("subscription not found")
	}
	return sub, nil
}

func (s *service) ListForCustomer(ctx context.Context, customerID uuid.UUID, params pagination.Params) (*SubscriptionList, error) {
	return s.list(ctx, billing.ListSubscriptionsQuery{CustomerID: &customerID, Limit: params.Limit}, params.Cursor)
}

func (s *service) ListAll(ctx context.Context, status *enums.SubscriptionStatus, params pagination.Params) (*SubscriptionList, error) {
	if status != nil && !status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid subscription status %q", *status))
	}
	return s.list(ctx, billing.ListSubscriptionsQuery{Status: status, Limit: params.Limit}, params.Cursor)
}

func (s *service) list(ctx context.Context, query billing.ListSubscriptionsQuery, rawCursor string) (*SubscriptionList, error) {
	cursor, err := pagination.ParseCursor(rawCursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor
	subs, next, err := s.billingRepo.ListSubscriptions(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list subscriptions")
	}
	out := &SubscriptionList{Subscriptions: subs}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}

func (s *service) mutateOwned(ctx context.Context, customerID, subscriptionID uuid.UUID, modify func(*models.Subscription, time.Time) error) (*models.Subscription, error) {
	sub, err := s.mutate(ctx, subscriptionID, func(sub *models.Subscription) error {
		if sub.CustomerID != customerID {
			return pkgerrors.NotFound("subscription not found")
		}
		return nil
	}, modify)
	if err != nil {
		return nil, err
	}
	s.logg.Info(s.logg.WithFields(s.logg.WithSubscriptionID(ctx, sub.ID.String()), map[string]any{
		"status": sub.Status,
	}), "subscription status changed")
	return sub, nil
}

func (s *service) mutate(ctx context.Context, subscriptionID uuid.UUID, authorize func(*models.Subscription) error, modify func(*models.Subscription, time.Time) error) (*models.Subscription, error) {
	if subscriptionID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "subscription id is required")
	}
	var updated *models.Subscription
	err := s.txRunner.WithTx(ctx, func(tx *gorm.DB) error {
		txRepo := s.billingRepo.WithTx(tx)
		sub, err := txRepo.FindSubscription(ctx, subscriptionID, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup subscription")
		}
		if sub == nil {
			return pkgerrors.NotFound("subscription not found")
		}
		if err := authorize(sub); err != nil {
			return err
		}
		if err := modify(sub, s.clock().UTC()); err != nil {
			return err
		}
		if err := txRepo.UpdateSubscription(ctx, sub); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "update subscription")
		}
		updated = sub
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func invalidStatus(current enums.SubscriptionStatus, message string) error {
	return pkgerrors.InvalidTransition(pkgerrors.ReasonInvalidStatus, message).
		WithDetails(map[string]any{"status": current})
}
