package orders

import (
	"fmt"
	"net/http"

	"github.com/artisancrate/billing-engine/api/controllers/dto"
	"github.com/artisancrate/billing-engine/api/middleware"
	"github.com/artisancrate/billing-engine/api/responses"
	"github.com/artisancrate/billing-engine/api/validators"
	"github.com/artisancrate/billing-engine/internal/orders"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/pagination"
)

const maxShippingFieldLen = 128

type updateStatusRequest struct {
	Status          string  `json:"status" validate:"required,order_status"`
	ShippingCourier *string `json:"shipping_courier"`
	TrackingNumber  *string `json:"tracking_number"`
}

func List(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
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
		responses.WriteSuccess(w, dto.NewOrderPage(list.Orders, list.NextCursor))
	}
}

func Get(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		customerID, err := middleware.ActorIDFromContext(r.Context())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		order, err := svc.GetForCustomer(r.Context(), customerID, orderID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewOrder(order))
	}
}

// AdminList returns orders across customers, optionally filtered by status.
func AdminList(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		status, params, err := parseAdminFilter(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		list, err := svc.ListAll(r.Context(), status, params)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewOrderPage(list.Orders, list.NextCursor))
	}
}

// AdminUpdateStatus moves an order along its fulfillment path. An empty
// courier or tracking number clears the stored value; an absent one keeps it.
func AdminUpdateStatus(svc orders.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "order service unavailable"))
			return
		}
		orderID, err := validators.ParseUUIDParam(r, "orderId", "order id")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		var req updateStatusRequest
		if err := validators.DecodeJSONBody(r, &req); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		status, err := enums.ParseOrderStatus(req.Status)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid status %q", req.Status)))
			return
		}

		order, err := svc.UpdateStatus(r.Context(), orders.UpdateStatusInput{
			OrderID:         orderID,
			Status:          status,
			ShippingCourier: sanitizeOptional(req.ShippingCourier),
			TrackingNumber:  sanitizeOptional(req.TrackingNumber),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, dto.NewOrder(order))
	}
}

func parseAdminFilter(r *http.Request) (*enums.OrderStatus, pagination.Params, error) {
	params, err := validators.ParsePagination(r)
	if err != nil {
		return nil, pagination.Params{}, err
	}
	raw := validators.ParseQueryString(r, "status")
	if raw == nil {
		return nil, params, nil
	}
	status, err := enums.ParseOrderStatus(*raw)
	if err != nil {
		return nil, pagination.Params{}, pkgerrors.Wrap(pkgerrors.CodeValidation, err, fmt.Sprintf("invalid status %q", *raw))
	}
	return &status, params, nil
}

func sanitizeOptional(value *string) *string {
	if value == nil {
		return nil
	}
	clean := validators.SanitizeString(*value, maxShippingFieldLen)
	return &clean
}
