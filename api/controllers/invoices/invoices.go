package invoices

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/api/controllers/dto"
	"github.com/artisancrate/billing-engine/api/middleware"
	"github.com/artisancrate/billing-engine/api/responses"
	"github.com/artisancrate/billing-engine/api/validators"
	"github.com/artisancrate/billing-engine/internal/billing"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/pagination"
)

type invoiceReader interface {
	GetForCustomer(ctx context.Context, customerID, invoiceID uuid.UUID) (*models.Invoice, error)
	ListForCustomer(ctx context.Context, customerID uuid.UUID, status *enums.InvoiceStatus, params pagination.Params) (*billing.InvoiceList, error)
	ListAll(ctx context.Context, status *enums.InvoiceStatus, params pagination.Params) (*billing.InvoiceList, error)
}

type paymentOpener interface {
	OpenPayableTransaction(ctx context.Context, invoiceID uuid.UUID) (*models.Invoice, error)
}

// Pay opens (or reopens) the hosted payment page for one of the caller's invoices.
func Pay(reader invoiceReader, payments paymentOpener, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil || payments == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}
		customerID, err := middleware.ActorIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := validators.ParseUUIDParam(r, "invoiceId", "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if _, err := reader.GetForCustomer(r.Context(), customerID, invoiceID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := payments.OpenPayableTransaction(r.Context(), invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewInvoice(invoice))
	}
}

func Get(reader invoiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}
		customerID, err := middleware.ActorIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoiceID, err := validators.ParseUUIDParam(r, "invoiceId", "invoice id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		invoice, err := reader.GetForCustomer(r.Context(), customerID, invoiceID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewInvoice(invoice))
	}
}

// List returns the caller's invoices, newest first.
func List(reader invoiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}
		customerID, err := middleware.ActorIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, params, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := reader.ListForCustomer(r.Context(), customerID, status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewInvoicePage(list.Invoices, list.NextCursor))
	}
}

// AdminList returns invoices across customers, optionally filtered by status.
func AdminList(reader invoiceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "invoice service unavailable"))
			return
		}
		status, params, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := reader.ListAll(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewInvoicePage(list.Invoices, list.NextCursor))
	}
}

func parseListQuery(r *http.Request) (*enums.InvoiceStatus, pagination.Params, error) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		return nil, pagination.Params{}, err
	}
	raw := validators.ParseQueryString(r, "status")
	if raw == nil {
		return nil, params, nil
	}
	status, err := enums.ParseInvoiceStatus(*raw)
	if err != nil {
		return nil, pagination.Params{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid status %q", *raw))
	}
	return &status, params, nil
}
