package billing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/pagination"
)

// InvoiceList is a page of invoices.
type InvoiceList struct {
	Invoices   []models.Invoice
	NextCursor string
}

// InvoiceReader serves invoice reads for customers and admins.
type InvoiceReader struct {
	repo Repository
}

func NewInvoiceReader(repo Repository) (*InvoiceReader, error) {
	if repo == nil {
		return nil, fmt.Errorf("billing repo required")
	}
	return &InvoiceReader{repo: repo}, nil
}

// GetForCustomer hides invoices owned by someone else behind NotFound.
func (r *InvoiceReader) GetForCustomer(ctx context.Context, customerID, invoiceID uuid.UUID) (*models.Invoice, error) {
	invoice, err := r.repo.FindInvoice(ctx, invoiceID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "lookup invoice")
	}
	if invoice == nil || invoice.CustomerID != customerID {
		return nil, pkgerrors.NotFound("invoice not found")
	}
	return invoice, nil
}

func (r *InvoiceReader) ListForCustomer(ctx context.Context, customerID uuid.UUID, status *enums.InvoiceStatus, params pagination.Params) (*InvoiceList, error) {
	return r.list(ctx, ListInvoicesQuery{CustomerID: &customerID, Status: status, Limit: params.Limit}, params.Cursor)
}

func (r *InvoiceReader) ListAll(ctx context.Context, status *enums.InvoiceStatus, params pagination.Params) (*InvoiceList, error) {
	return r.list(ctx, ListInvoicesQuery{Status: status, Limit: params.Limit}, params.Cursor)
}

func (r *InvoiceReader) list(ctx context.Context, query ListInvoicesQuery, rawCursor string) (*InvoiceList, error) {
	if query.Status != nil && !query.Status.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf("invalid invoice status %q", *query.Status))
	}
	cursor, err := pagination.ParseCursor(rawCursor)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
	}
	query.Cursor = cursor
	invoices, next, err := r.repo.ListInvoices(ctx, query)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list invoices")
	}
	out := &InvoiceList{Invoices: invoices}
	if next != nil {
		out.NextCursor = pagination.EncodeCursor(*next)
	}
	return out, nil
}
