package cron

import (
	"context"
	"fmt"

	"github.com/artisancrate/billing-engine/internal/billing"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

// RecurringInvoiceJobName labels the job in logs, metrics, and the lock.
const RecurringInvoiceJobName = "recurring-invoices"

type invoiceGenerator interface {
	Generate(ctx context.Context) (billing.RunSummary, error)
}

type RecurringInvoiceJobParams struct {
	Logger    *logger.Logger
	Generator invoiceGenerator
}

// NewRecurringInvoiceJob wraps the generator as a cron job.
func NewRecurringInvoiceJob(params RecurringInvoiceJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Generator == nil {
		return nil, fmt.Errorf("invoice generator required")
	}
	return &recurringInvoiceJob{logg: params.Logger, generator: params.Generator}, nil
}

type recurringInvoiceJob struct {
	logg      *logger.Logger
	generator invoiceGenerator
}

func (j *recurringInvoiceJob) Name() string { return RecurringInvoiceJobName }

// Run fails when any due subscription failed, after the whole pass ran.
func (j *recurringInvoiceJob) Run(ctx context.Context) error {
	summary, err := j.generator.Generate(ctx)
	if err != nil {
		return fmt.Errorf("recurring invoices: %d of %d subscriptions failed: %w", summary.Failed, summary.Due, err)
	}
	return nil
}
