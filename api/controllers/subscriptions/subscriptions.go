package subscriptions

import (
	"context"
	"fmt"
	"net/http"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/api/controllers/dto"
	"github.com/artisancrate/billing-engine/api/middleware"
	"github.com/artisancrate/billing-engine/api/responses"
	"github.com/artisancrate/billing-engine/api/validators"
	"github.com/artisancrate/billing-engine/internal/subscriptions"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/pagination"
)

type createRequest struct {
	PlanID            string `json:"subscription_plan_id" validate:"required,uuid"`
	ShippingAddressID string `json:"shipping_address_id" validate:"required,uuid"`
	PaymentMethodType string `json:"payment_method_type" validate:"required,payment_method"`
}

type statusRequest struct {
	Status string `json:"status" validate:"required"`
}

type createResponse struct {
	Subscription   *dto.Subscription `json:"subscription"`
	InitialInvoice *dto.Invoice      `json:"initial_invoice"`
}

type lifecycleAction func(ctx context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error)

// Create starts a subscription and returns it with the invoice for its first payment.
func Create(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		customerID, err := middleware.ActorIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		var req createRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		methodType, err := enums.ParsePaymentMethodType(req.PaymentMethodType)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid payment_method_type"))
			return
		}

		result, err := svc.Create(r.Context(), subscriptions.CreateSubscriptionInput{
			CustomerID:        customerID,
			PlanID:            uuid.MustParse(req.PlanID),
			ShippingAddressID: uuid.MustParse(req.ShippingAddressID),
			PaymentMethodType: methodType,
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, createResponse{
			Subscription:   dto.NewSubscription(result.Subscription),
			InitialInvoice: dto.NewInvoice(result.InitialInvoice),
		})
	}
}

func List(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		customerID, err := middleware.ActorIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		params, err := validators.ParsePagination(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListForCustomer(r.Context(), customerID, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewSubscriptionPage(list.Subscriptions, list.NextCursor))
	}
}

func Get(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedAction(svc, logg, func(svc subscriptions.Service) lifecycleAction { return svc.Get })
}

func Cancel(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedAction(svc, logg, func(svc subscriptions.Service) lifecycleAction { return svc.Cancel })
}

func Pause(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedAction(svc, logg, func(svc subscriptions.Service) lifecycleAction { return svc.Pause })
}

func Resume(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return ownedAction(svc, logg, func(svc subscriptions.Service) lifecycleAction { return svc.Resume })
}

// ownedAction runs a customer-scoped operation against the subscription in the path.
func ownedAction(svc subscriptions.Service, logg *logger.Logger, pick func(subscriptions.Service) lifecycleAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		customerID, err := middleware.ActorIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		subscriptionID, err := validators.ParseUUIDParam(r, "subscriptionId", "subscription id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		sub, err := pick(svc)(r.Context(), customerID, subscriptionID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewSubscription(sub))
	}
}

// AdminList returns subscriptions across customers, optionally filtered by status.
func AdminList(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		status, params, err := parseListQuery(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListAll(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewSubscriptionPage(list.Subscriptions, list.NextCursor))
	}
}

// AdminSetStatus forces a subscription into the requested status.
func AdminSetStatus(svc subscriptions.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "subscription service unavailable"))
			return
		}
		subscriptionID, err := validators.ParseUUIDParam(r, "subscriptionId", "subscription id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req statusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseSubscriptionStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid status %q", req.Status)))
			return
		}
		sub, err := svc.AdminSetStatus(r.Context(), subscriptionID, status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if logg != nil {
			ctx := logg.WithField(logg.WithSubscriptionID(r.Context(), sub.ID.String()), "status", string(sub.Status))
			logg.Info(ctx, "admin set subscription status")
		}
		responses.WriteSuccess(w, dto.NewSubscription(sub))
	}
}

func parseListQuery(r *http.Request) (*enums.SubscriptionStatus, pagination.Params, error) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		return nil, pagination.Params{}, err
	}
	raw := validators.ParseQueryString(r, "status")
	if raw == nil {
		return nil, params, nil
	}
	status, err := enums.ParseSubscriptionStatus(*raw)
	if err != nil {
		return nil, pagination.Params{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid status %q", *raw))
	}
	return &status, params, nil
}
