package payments

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/artisancrate/billing-engine/internal/billing"
	"github.com/artisancrate/billing-engine/pkg/dates"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/midtrans"
)

// Notification outcome labels reported to NotificationMetrics.
const (
	NotificationInvalidSignature = "invalid_signature"
	NotificationUnknownInvoice   = "unknown_invoice"
	NotificationPaid             = "paid"
	NotificationUpdated          = "updated"
	NotificationFailed           = "failed"
)

// Cascade step names, in execution order.
const (
	StepMarkInvoicePaid        = "mark_invoice_paid"
	StepActivateSubscription   = "activate_subscription"
	StepAdvanceNextBillingDate = "advance_next_billing_date"
	StepCreateFulfillmentOrder = "create_fulfillment_order"
)

const (
	planItemPrefix             = "PLAN-"
	defaultCustomerDisplayName = "Customer"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Gateway is the hosted payment page provider.
type Gateway interface {
	CreateTransaction(ctx context.Context, req midtrans.SnapRequest) (*midtrans.SnapResponse, error)
	VerifyNotification(n midtrans.Notification) bool
}

// Customer is the payer descriptor sent to the gateway.
type Customer struct {
	Name  string
	Email string
	Phone string
}

// CustomerDirectory resolves payer details. A nil customer means unknown.
type CustomerDirectory interface {
	Lookup(ctx context.Context, customerID uuid.UUID) (*Customer, error)
}

// FulfillmentCreator opens the shipment for a paid invoice inside tx.
type FulfillmentCreator interface {
	CreateForInvoice(ctx context.Context, tx *gorm.DB, invoice *models.Invoice, subscription *models.Subscription) (*models.Order, bool, error)
}

// PaymentNotifier tells the customer a payment went through.
type PaymentNotifier interface {
	InvoicePaid(ctx context.Context, invoice *models.Invoice, order *models.Order) error
}

// NotificationMetrics counts processed gateway notifications by outcome.
type NotificationMetrics interface {
	NotificationOutcome(outcome string)
}

// StepResult records whether one cascade step changed anything.
type StepResult struct {
	Name    string `json:"name"`
	Applied bool   `json:"applied"`
}

// Outcome describes what a notification did to its invoice.
type Outcome struct {
	InvoiceID      uuid.UUID           `json:"invoice_id"`
	InvoiceNumber  string              `json:"invoice_number"`
	PreviousStatus enums.InvoiceStatus `json:"previous_status"`
	Status         enums.InvoiceStatus `json:"status"`
	Steps          []StepResult        `json:"steps,omitempty"`
	OrderID        *uuid.UUID          `json:"order_id,omitempty"`
}

// Params wires the reconciler.
type Params struct {
	Repo        billing.Repository
	Tx          txRunner
	Gateway     Gateway
	Customers   CustomerDirectory
	Fulfillment FulfillmentCreator
	Notifier    PaymentNotifier
	Metrics     NotificationMetrics
	Logger      *logger.Logger
	Clock       dates.Clock
}

// Reconciler keeps invoices in step with the payment gateway: it opens
// transactions for payable invoices and applies the gateway's status
// notifications, running the paid cascade exactly once per invoice.
type Reconciler struct {
	repo        billing.Repository
	tx          txRunner
	gateway     Gateway
	customers   CustomerDirectory
	fulfillment FulfillmentCreator
	notifier    PaymentNotifier
	metrics     NotificationMetrics
	logg        *logger.Logger
	clock       dates.Clock
}

// NewReconciler validates params and builds a Reconciler.
func NewReconciler(params Params) (*Reconciler, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Gateway == nil {
		return nil, fmt.Errorf("payment gateway required")
	}
	if params.Fulfillment == nil {
		return nil, fmt.Errorf("fulfillment creator required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	clock := params.Clock
	if clock == nil {
		clock = dates.SystemClock
	}
	return &Reconciler{
		repo:        params.Repo,
		tx:          params.Tx,
		gateway:     params.Gateway,
		customers:   params.Customers,
		fulfillment: params.Fulfillment,
		notifier:    params.Notifier,
		metrics:     params.Metrics,
		logg:        params.Logger,
		clock:       clock,
	}, nil
}

// OpenPayableTransaction registers the invoice with the gateway and stores the
// hosted payment link on it. The invoice is left untouched on failure.
func (r *Reconciler) OpenPayableTransaction(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := r.repo.FindInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
	}
	if invoice == nil {
		return nil, pkgerrors.NotFound("invoice not found")
	}
	switch invoice.Status {
	case enums.InvoiceStatusPaid:
		return nil, pkgerrors.AlreadyTerminal(pkgerrors.ReasonInvoiceAlreadyPaid, "invoice is already paid")
	case enums.InvoiceStatusCancelled:
		return nil, pkgerrors.AlreadyTerminal(pkgerrors.ReasonInvoiceCancelled, "invoice is cancelled")
	}

	ctx = r.logg.WithInvoice(ctx, invoice.ID.String(), invoice.InvoiceNumber)

	sub, err := r.repo.FindSubscription(ctx, invoice.SubscriptionID, false)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil || sub.Plan == nil {
		return nil, pkgerrors.NotFound("subscription plan not found").WithReason(pkgerrors.ReasonPlanUnavailable)
	}

	req := midtrans.SnapRequest{
		TransactionDetails: midtrans.TransactionDetails{
			OrderID:     invoice.InvoiceNumber,
			GrossAmount: invoice.Amount,
		},
		CustomerDetails: r.customerDetails(ctx, invoice.CustomerID),
		ItemDetails: []midtrans.ItemDetail{{
			ID:       planItemPrefix + sub.Plan.ID.String(),
			Price:    invoice.Amount,
			Quantity: 1,
			Name:     midtrans.TruncateItemName(sub.Plan.Name),
		}},
	}

	resp, err := r.gateway.CreateTransaction(ctx, req)
	if err != nil {
		if pkgerrors.As(err) != nil {
			return nil, err
		}
		return nil, pkgerrors.PaymentGateway(err, "create payment transaction")
	}

	if err := r.repo.SetInvoicePaymentLink(ctx, invoice.ID, invoice.InvoiceNumber, resp.RedirectURL); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "store payment link")
	}
	orderID := invoice.InvoiceNumber
	link := resp.RedirectURL
	invoice.GatewayOrderID = &orderID
	invoice.GatewayPaymentLink = &link

	r.logg.Info(ctx, "payment transaction opened")
	return invoice, nil
}

func (r *Reconciler) customerDetails(ctx context.Context, customerID uuid.UUID) *midtrans.CustomerDetails {
	if r.customers == nil {
		return nil
	}
	customer, err := r.customers.Lookup(ctx, customerID)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "customer lookup failed, sending transaction without payer details")
		return nil
	}
	if customer == nil {
		r.logg.Warn(ctx, "customer not found, sending transaction without payer details")
		return nil
	}
	name := customer.Name
	if name == "" {
		name = defaultCustomerDisplayName
	}
	return &midtrans.CustomerDetails{
		FirstName: name,
		Email:     customer.Email,
		Phone:     customer.Phone,
	}
}

// Authenticate checks the notification signature. Nothing may act on a
// notification that fails it.
func (r *Reconciler) Authenticate(ctx context.Context, n midtrans.Notification) error {
	if r.gateway.VerifyNotification(n) {
		return nil
	}
	r.record(NotificationInvalidSignature)
	r.logg.Warn(r.logg.WithField(ctx, "order_id", n.OrderID), "notification signature rejected")
	return pkgerrors.InvalidSignature()
}

// ApplyNotification verifies and applies one gateway status notification. It
// returns nil, nil when the notification names an unknown invoice.
func (r *Reconciler) ApplyNotification(ctx context.Context, n midtrans.Notification) (*Outcome, error) {
	if err := r.Authenticate(ctx, n); err != nil {
		return nil, err
	}

	ctx = r.logg.WithFields(ctx, map[string]any{
		"order_id":           n.OrderID,
		"transaction_status": n.TransactionStatus,
		"fraud_status":       n.FraudStatus,
	})
	now := r.clock().UTC()

	var (
		outcome *Outcome
		invoice *models.Invoice
		order   *models.Order
	)
	err := r.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := r.repo.WithTx(tx)
		current, err := repo.FindInvoiceByNumber(ctx, n.OrderID, true)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load invoice")
		}
		if current == nil {
			return nil
		}
		invoice = current
		r.checkAmount(ctx, current, n.GrossAmount)

		previous := current.Status
		next := MapStatus(enums.TransactionStatus(n.TransactionStatus), enums.FraudStatus(n.FraudStatus), previous)
		wasPaid := previous == enums.InvoiceStatusPaid
		willBePaid := next == enums.InvoiceStatusPaid
		if wasPaid && !willBePaid {
			r.logg.Warn(r.logg.WithField(ctx, "mapped_status", next), "ignoring status downgrade on paid invoice")
			next = previous
		}

		outcome = &Outcome{
			InvoiceID:      current.ID,
			InvoiceNumber:  current.InvoiceNumber,
			PreviousStatus: previous,
			Status:         next,
		}

		if willBePaid && !wasPaid {
			state := &cascadeState{tx: tx, repo: repo, invoice: current, now: now}
			steps, err := r.runCascade(ctx, state)
			outcome.Steps = steps
			if err != nil {
				return err
			}
			order = state.order
			if order != nil {
				outcome.OrderID = &order.ID
			}
		}

		current.Status = next
		if err := repo.UpdateInvoice(ctx, current); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "save invoice")
		}
		return nil
	})
	if err != nil {
		r.record(NotificationFailed)
		r.logg.Error(ctx, "notification processing failed", err)
		return nil, err
	}

	if outcome == nil {
		r.record(NotificationUnknownInvoice)
		r.logg.Warn(ctx, "notification for unknown invoice ignored")
		return nil, nil
	}

	ctx = r.logg.WithInvoice(ctx, outcome.InvoiceID.String(), outcome.InvoiceNumber)
	if outcome.PreviousStatus != enums.InvoiceStatusPaid && outcome.Status == enums.InvoiceStatusPaid {
		r.record(NotificationPaid)
		r.logg.Info(r.logg.WithField(ctx, "steps", outcome.Steps), "invoice paid")
		r.notifyPaid(ctx, invoice, order)
	} else {
		r.record(NotificationUpdated)
		r.logg.Info(r.logg.WithFields(ctx, map[string]any{
			"previous_status": outcome.PreviousStatus,
			"status":          outcome.Status,
		}), "invoice status applied")
	}
	return outcome, nil
}

func (r *Reconciler) checkAmount(ctx context.Context, invoice *models.Invoice, grossAmount string) {
	amount, err := midtrans.ParseGrossAmount(grossAmount)
	if err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "notification gross amount unreadable")
		return
	}
	if !amount.Equal(decimal.NewFromInt(invoice.Amount)) {
		r.logg.Warn(r.logg.WithFields(ctx, map[string]any{
			"gross_amount":   amount.String(),
			"invoice_amount": invoice.Amount,
		}), "notification amount differs from invoice")
	}
}

func (r *Reconciler) notifyPaid(ctx context.Context, invoice *models.Invoice, order *models.Order) {
	if r.notifier == nil || invoice == nil {
		return
	}
	if err := r.notifier.InvoicePaid(ctx, invoice, order); err != nil {
		r.logg.Warn(r.logg.WithField(ctx, "error", err.Error()), "payment success notification failed")
	}
}

func (r *Reconciler) record(outcome string) {
	if r.metrics != nil {
		r.metrics.NotificationOutcome(outcome)
	}
}

type cascadeState struct {
	tx           *gorm.DB
	repo         billing.Repository
	invoice      *models.Invoice
	subscription *models.Subscription
	order        *models.Order
	now          time.Time
}

type cascadeStep struct {
	name string
	run  func(ctx context.Context, state *cascadeState) (bool, error)
}

func (r *Reconciler) cascade() []cascadeStep {
	return []cascadeStep{
		{name: StepMarkInvoicePaid, run: markInvoicePaid},
		{name: StepActivateSubscription, run: activateSubscription},
		{name: StepAdvanceNextBillingDate, run: advanceNextBillingDate},
		{name: StepCreateFulfillmentOrder, run: r.createFulfillmentOrder},
	}
}

// runCascade executes the paid cascade in order, stopping at the first error
// so the surrounding transaction rolls everything back.
func (r *Reconciler) runCascade(ctx context.Context, state *cascadeState) ([]StepResult, error) {
	sub, err := state.repo.FindSubscription(ctx, state.invoice.SubscriptionID, true)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load subscription")
	}
	if sub == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, fmt.Sprintf("subscription %s missing for invoice", state.invoice.SubscriptionID))
	}
	state.subscription = sub

	steps := r.cascade()
	results := make([]StepResult, 0, len(steps))
	for _, step := range steps {
		applied, err := step.run(ctx, state)
		if err != nil {
			return results, fmt.Errorf("%s: %w", step.name, err)
		}
		results = append(results, StepResult{Name: step.name, Applied: applied})
	}
	return results, nil
}

func markInvoicePaid(_ context.Context, state *cascadeState) (bool, error) {
	if state.invoice.PaidAt != nil {
		return false, nil
	}
	paidAt := state.now
	state.invoice.PaidAt = &paidAt
	return true, nil
}

func activateSubscription(ctx context.Context, state *cascadeState) (bool, error) {
	sub := state.subscription
	if sub.Status != enums.SubscriptionStatusPendingInitialPayment {
		return false, nil
	}
	sub.Status = enums.SubscriptionStatusActive
	if err := state.repo.UpdateSubscription(ctx, sub); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "activate subscription")
	}
	return true, nil
}

func advanceNextBillingDate(ctx context.Context, state *cascadeState) (bool, error) {
	sub := state.subscription
	next := billing.NextBillingDate(state.now, sub.BillingPeriod, sub.BillingInterval)
	if sub.NextBillingDate != nil && sub.NextBillingDate.Equal(next) {
		return false, nil
	}
	sub.NextBillingDate = dates.Ptr(next)
	if err := state.repo.UpdateSubscription(ctx, sub); err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "advance next billing date")
	}
	return true, nil
}

func (r *Reconciler) createFulfillmentOrder(ctx context.Context, state *cascadeState) (bool, error) {
	order, created, err := r.fulfillment.CreateForInvoice(ctx, state.tx, state.invoice, state.subscription)
	if err != nil {
		return false, err
	}
	state.order = order
	return created, nil
}
