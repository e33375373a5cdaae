package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/artisancrate/billing-engine/internal/billing"
	"github.com/artisancrate/billing-engine/pkg/logger"
)

type stubGenerator struct {
	summary billing.RunSummary
	err     error
	calls   int
}

func (s *stubGenerator) Generate(context.Context) (billing.RunSummary, error) {
	s.calls++
	return s.summary, s.err
}

func TestRecurringInvoiceJobRunsGenerator(t *testing.T) {
	gen := &stubGenerator{summary: billing.RunSummary{Due: 2, Created: 2}}
	job, err := NewRecurringInvoiceJob(RecurringInvoiceJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Generator: gen,
	})
	if err != nil {
		t.Fatalf("new job: %v", err)
	}
	if job.Name() != RecurringInvoiceJobName {
		t.Fatalf("unexpected name %s", job.Name())
	}
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if gen.calls != 1 {
		t.Fatalf("expected one generator pass, got %d", gen.calls)
	}
}

func TestRecurringInvoiceJobReportsFailures(t *testing.T) {
	cause := errors.New("gateway down")
	gen := &stubGenerator{summary: billing.RunSummary{Due: 3, Created: 2, Failed: 1}, err: cause}
	job, _ := NewRecurringInvoiceJob(RecurringInvoiceJobParams{
		Logger:    logger.New(logger.Options{ServiceName: "test"}),
		Generator: gen,
	})

	err := job.Run(context.Background())
	if !errors.Is(err, cause) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}
}

func TestNewRecurringInvoiceJobValidation(t *testing.T) {
	if _, err := NewRecurringInvoiceJob(RecurringInvoiceJobParams{}); err == nil {
		t.Fatal("expected validation error")
	}
}
