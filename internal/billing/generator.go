package billing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"

	"github.com/artisancrate/billing-engine/pkg/dates"
	"github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

const (
	defaultInvoiceDueDays = 3
	maxNumberAttempts     = 3

	invoiceNumberConstraint = "ux_invoices_invoice_number"
)

// Outcome labels reported to InvoiceMetrics.
const (
	OutcomeCreated     = "created"
	OutcomeSkipped     = "skipped"
	OutcomeLinkRetried = "link_retried"
	OutcomeFailed      = "failed"
)

// PaymentLinkOpener opens a gateway transaction for an invoice and persists
// the resulting payment link.
type PaymentLinkOpener interface {
	OpenPayableTransaction(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
}

// LinkNotifier tells the customer a payment link is ready.
type LinkNotifier interface {
	InvoicePaymentLink(ctx context.Context, invoice *models.Invoice) error
}

// InvoiceMetrics records per-subscription generator outcomes.
type InvoiceMetrics interface {
	InvoiceOutcome(outcome string, count int)
}

// RunSummary tallies one generator pass.
type RunSummary struct {
	Due         int
	Created     int
	Skipped     int
	LinkRetried int
	Failed      int
}

// GeneratorParams wires the recurring invoice generator.
type GeneratorParams struct {
	Repo          Repository
	Payments      PaymentLinkOpener
	Notifier      LinkNotifier
	Metrics       InvoiceMetrics
	Logger        *logger.Logger
	DueDays       int
	Clock         dates.Clock
	InvoiceNumber InvoiceNumberFunc
}

// Generator issues the invoice for every active subscription whose billing
// date has arrived. Re-running it on the same day is a no-op.
type Generator struct {
	repo     Repository
	payments PaymentLinkOpener
	notifier LinkNotifier
	metrics  InvoiceMetrics
	logg     *logger.Logger
	dueDays  int
	clock    dates.Clock
	number   InvoiceNumberFunc
}

// NewGenerator validates params and builds a Generator.
func NewGenerator(params GeneratorParams) (*Generator, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	if params.Payments == nil {
		return nil, fmt.Errorf("payment link opener required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	dueDays := params.DueDays
	if dueDays <= 0 {
		dueDays = defaultInvoiceDueDays
	}
	clock := params.Clock
	if clock == nil {
		clock = dates.SystemClock
	}
	number := params.InvoiceNumber
	if number == nil {
		number = NewInvoiceNumber
	}
	return &Generator{
		repo:     params.Repo,
		payments: params.Payments,
		notifier: params.Notifier,
		metrics:  params.Metrics,
		logg:     params.Logger,
		dueDays:  dueDays,
		clock:    clock,
		number:   number,
	}, nil
}

// Generate runs one pass. Only a failure to load the due set aborts the pass;
// per-subscription failures are logged, counted, and returned combined once
// every subscription has been attempted.
func (g *Generator) Generate(ctx context.Context) (RunSummary, error) {
	now := g.clock().UTC()
	today := dates.DateOf(now)

	var summary RunSummary
	subs, err := g.repo.ListDueSubscriptions(ctx, today)
	if err != nil {
		return summary, fmt.Errorf("list due subscriptions: %w", err)
	}
	summary.Due = len(subs)

	runCtx := g.logg.WithFields(ctx, map[string]any{
		"billing_date": dates.Format(today),
		"due_count":    summary.Due,
	})
	g.logg.Info(runCtx, "recurring billing run started")

	var errs error
	for i := range subs {
		sub := &subs[i]
		subCtx := g.logg.WithSubscriptionID(runCtx, sub.ID.String())
		outcome, err := g.billSubscription(subCtx, sub, now)
		switch outcome {
		case OutcomeCreated:
			summary.Created++
		case OutcomeLinkRetried:
			summary.LinkRetried++
		case OutcomeSkipped:
			summary.Skipped++
		default:
			summary.Failed++
		}
		if err != nil {
			g.logg.Error(subCtx, "recurring invoice failed", err)
			errs = multierr.Append(errs, fmt.Errorf("subscription %s: %w", sub.ID, err))
		}
	}

	g.record(summary)
	doneCtx := g.logg.WithFields(runCtx, map[string]any{
		"created":      summary.Created,
		"skipped":      summary.Skipped,
		"link_retried": summary.LinkRetried,
		"failed":       summary.Failed,
	})
	g.logg.Info(doneCtx, "recurring billing run finished")
	return summary, errs
}

func (g *Generator) billSubscription(ctx context.Context, sub *models.Subscription, now time.Time) (string, error) {
	if sub.Plan == nil {
		g.logg.Warn(ctx, "subscription plan missing, skipping")
		return OutcomeSkipped, nil
	}
	if sub.NextBillingDate == nil {
		g.logg.Warn(ctx, "subscription has no next billing date, skipping")
		return OutcomeSkipped, nil
	}
	periodStart := dates.DateOf(*sub.NextBillingDate)

	existing, err := g.repo.FindInvoiceForPeriod(ctx, sub.ID, periodStart)
	if err != nil {
		return OutcomeFailed, fmt.Errorf("lookup period invoice: %w", err)
	}
	if existing != nil {
		if existing.Status == enums.InvoiceStatusPending && existing.GatewayPaymentLink == nil {
			if err := g.openLink(ctx, existing); err != nil {
				return OutcomeFailed, err
			}
			return OutcomeLinkRetried, nil
		}
		return OutcomeSkipped, nil
	}

	invoice := &models.Invoice{
		SubscriptionID:     sub.ID,
		CustomerID:         sub.CustomerID,
		Amount:             sub.Plan.Price,
		Currency:           sub.Plan.Currency,
		BillingPeriodStart: dates.Ptr(periodStart),
		BillingPeriodEnd:   dates.Ptr(PeriodEnd(periodStart, sub.BillingPeriod, sub.BillingInterval)),
		Status:             enums.InvoiceStatusPending,
		DueDate:            dates.Ptr(now.AddDate(0, 0, g.dueDays)),
	}
	created, err := IssueInvoice(ctx, g.repo, invoice, now, g.number)
	if err != nil {
		return OutcomeFailed, err
	}
	if !created {
		g.logg.Info(ctx, "invoice for period already created by a concurrent run")
		return OutcomeSkipped, nil
	}

	invCtx := g.logg.WithInvoice(ctx, invoice.ID.String(), invoice.InvoiceNumber)
	g.logg.Info(invCtx, "recurring invoice created")
	if err := g.openLink(invCtx, invoice); err != nil {
		return OutcomeFailed, err
	}
	return OutcomeCreated, nil
}

// IssueInvoice numbers and inserts invoice, drawing a fresh number when the
// random one collides with an existing invoice. It reports false when an
// invoice for the same subscription period already exists.
func IssueInvoice(ctx context.Context, repo Repository, invoice *models.Invoice, now time.Time, number InvoiceNumberFunc) (bool, error) {
	if number == nil {
		number = NewInvoiceNumber
	}
	var lastErr error
	for attempt := 0; attempt < maxNumberAttempts; attempt++ {
		value, err := number(now)
		if err != nil {
			return false, err
		}
		invoice.InvoiceNumber = value
		invoice.ID = uuid.Nil

		created, err := repo.CreateInvoice(ctx, invoice)
		if err == nil {
			return created, nil
		}
		if !db.IsUniqueViolation(err, invoiceNumberConstraint) {
			return false, fmt.Errorf("create invoice: %w", err)
		}
		lastErr = err
	}
	return false, fmt.Errorf("create invoice after %d attempts: %w", maxNumberAttempts, lastErr)
}

func (g *Generator) openLink(ctx context.Context, invoice *models.Invoice) error {
	updated, err := g.payments.OpenPayableTransaction(ctx, invoice.ID)
	if err != nil {
		return fmt.Errorf("open payment link for %s: %w", invoice.InvoiceNumber, err)
	}
	if g.notifier == nil || updated == nil {
		return nil
	}
	if err := g.notifier.InvoicePaymentLink(ctx, updated); err != nil {
		g.logg.Warn(g.logg.WithField(ctx, "error", err.Error()), "payment link notification failed")
	}
	return nil
}

func (g *Generator) record(summary RunSummary) {
	if g.metrics == nil {
		return
	}
	g.metrics.InvoiceOutcome(OutcomeCreated, summary.Created)
	g.metrics.InvoiceOutcome(OutcomeSkipped, summary.Skipped)
	g.metrics.InvoiceOutcome(OutcomeLinkRetried, summary.LinkRetried)
	g.metrics.InvoiceOutcome(OutcomeFailed, summary.Failed)
}
