package webhooks

import (
	"context"
	"net/http"

	"github.com/artisancrate/billing-engine/api/responses"
	"github.com/artisancrate/billing-engine/api/validators"
	"github.com/artisancrate/billing-engine/internal/payments"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/midtrans"
)

type notificationApplier interface {
	Authenticate(ctx context.Context, n midtrans.Notification) error
	ApplyNotification(ctx context.Context, n midtrans.Notification) (*payments.Outcome, error)
}

type replayGuard interface {
	CheckAndMark(ctx context.Context, key string) (bool, error)
	Forget(ctx context.Context, key string) error
}

type notificationAck struct {
	Status  string            `json:"status"`
	Outcome *payments.Outcome `json:"outcome,omitempty"`
}

// MidtransNotification applies a Snap payment status notification. Unknown
// invoices and replays are acknowledged with 200 so the gateway stops retrying.
// Only notifications with a valid signature reach the replay filter.
func MidtransNotification(svc notificationApplier, guard replayGuard, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "reconciler unavailable"))
			return
		}

		var notification midtrans.Notification
		if err := validators.DecodeJSONBodyLenient(r, &notification); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		if err := svc.Authenticate(ctx, notification); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		key := notification.ReplayKey()
		marked := false
		if guard != nil {
			seen, err := guard.CheckAndMark(ctx, key)
			switch {
			case err != nil:
				if logg != nil {
					logg.Warn(logg.WithField(ctx, "error", err.Error()), "replay filter unavailable, processing notification")
				}
			case seen:
				if logg != nil {
					logg.Info(logg.WithField(ctx, "order_id", notification.OrderID), "duplicate notification acknowledged")
				}
				responses.WriteSuccess(w, notificationAck{Status: "duplicate"})
				return
			default:
				marked = true
			}
		}

		outcome, err := svc.ApplyNotification(ctx, notification)
		if err != nil {
			if marked {
				if forgetErr := guard.Forget(context.WithoutCancel(ctx), key); forgetErr != nil && logg != nil {
					logg.Error(ctx, "failed to clear replay key", forgetErr)
				}
			}
			responses.WriteError(ctx, logg, w, err)
			return
		}
		if outcome == nil {
			responses.WriteSuccess(w, notificationAck{Status: "ignored"})
			return
		}
		responses.WriteSuccess(w, notificationAck{Status: "processed", Outcome: outcome})
	}
}
