package engine

import (
	"fmt"

	"github.com/artisancrate/billing-engine/internal/billing"
	"github.com/artisancrate/billing-engine/internal/notifications"
	"github.com/artisancrate/billing-engine/internal/orders"
	"github.com/artisancrate/billing-engine/internal/payments"
	"github.com/artisancrate/billing-engine/internal/subscriptions"
	"github.com/artisancrate/billing-engine/internal/users"
	"github.com/artisancrate/billing-engine/pkg/config"
	"github.com/artisancrate/billing-engine/pkg/db"
	"github.com/artisancrate/billing-engine/pkg/logger"
	"github.com/artisancrate/billing-engine/pkg/metrics"
	"github.com/artisancrate/billing-engine/pkg/midtrans"
	"github.com/artisancrate/billing-engine/pkg/outbox"
)

// Params are the process-level dependencies every binary already owns.
type Params struct {
	Config  *config.Config
	Logger  *logger.Logger
	DB      *db.Client
	Metrics *metrics.BillingMetrics
	// Gateway overrides the Snap client built from Config.Gateway.
	Gateway payments.Gateway
}

// Components is the billing domain wired against one database.
type Components struct {
	BillingRepo   billing.Repository
	Invoices      *billing.InvoiceReader
	Outbox        *outbox.Service
	OutboxRepo    *outbox.Repository
	Notifier      *notifications.Notifier
	Orders        orders.Service
	Reconciler    *payments.Reconciler
	Generator     *billing.Generator
	Subscriptions subscriptions.Service
}

// Build wires repositories and services shared by the api, the cron worker
// and the one-shot billing run.
func Build(params Params) (*Components, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	cfg := params.Config
	logg := params.Logger
	conn := params.DB.DB()

	gateway := params.Gateway
	if gateway == nil {
		client, err := NewGateway(cfg.Gateway, logg, params.Metrics)
		if err != nil {
			return nil, err
		}
		gateway = client
	}

	billingRepo := billing.NewRepository(conn)
	invoiceReader, err := billing.NewInvoiceReader(billingRepo)
	if err != nil {
		return nil, err
	}
	outboxRepo := outbox.NewRepository(conn)
	outboxService := outbox.NewService(outboxRepo, logg)

	notifier, err := notifications.NewNotifier(notifications.NotifierParams{
		TransactionRunner: params.DB,
		Outbox:            outboxService,
		Logger:            logg,
		Source:            params.Config.Service.Kind,
	})
	if err != nil {
		return nil, fmt.Errorf("notifier: %w", err)
	}

	orderService, err := orders.NewService(orders.ServiceParams{
		Repo:     orders.NewRepository(conn),
		Tx:       params.DB,
		Notifier: notifier,
		Logger:   logg,
	})
	if err != nil {
		return nil, fmt.Errorf("orders service: %w", err)
	}

	reconciler, err := payments.NewReconciler(payments.Params{
		Repo:        billingRepo,
		Tx:          params.DB,
		Gateway:     gateway,
		Customers:   users.NewDirectory(conn),
		Fulfillment: orderService,
		Notifier:    notifier,
		Metrics:     params.Metrics,
		Logger:      logg,
	})
	if err != nil {
		return nil, fmt.Errorf("reconciler: %w", err)
	}

	generator, err := billing.NewGenerator(billing.GeneratorParams{
		Repo:     billingRepo,
		Payments: reconciler,
		Notifier: notifier,
		Metrics:  params.Metrics,
		Logger:   logg,
		DueDays:  cfg.Billing.InvoiceDueDays,
	})
	if err != nil {
		return nil, fmt.Errorf("invoice generator: %w", err)
	}

	subscriptionService, err := subscriptions.NewService(subscriptions.ServiceParams{
		BillingRepo:       billingRepo,
		TransactionRunner: params.DB,
		Logger:            logg,
		DueDays:           cfg.Billing.InvoiceDueDays,
	})
	if err != nil {
		return nil, fmt.Errorf("subscriptions service: %w", err)
	}

	return &Components{
		BillingRepo:   billingRepo,
		Invoices:      invoiceReader,
		Outbox:        outboxService,
		OutboxRepo:    outboxRepo,
		Notifier:      notifier,
		Orders:        orderService,
		Reconciler:    reconciler,
		Generator:     generator,
		Subscriptions: subscriptionService,
	}, nil
}

// NewGateway builds the Snap client from configuration.
func NewGateway(cfg config.GatewayConfig, logg *logger.Logger, recorder *metrics.BillingMetrics) (*midtrans.Client, error) {
	opts := []midtrans.Option{
		midtrans.WithBaseURL(cfg.BaseURLOrDefault()),
		midtrans.WithTimeout(cfg.Timeout),
		midtrans.WithBreaker(midtrans.BreakerSettings{
			ConsecutiveFailures: cfg.BreakerFailures,
			OpenFor:             cfg.BreakerOpenFor,
			HalfOpenRequests:    cfg.BreakerHalfOpens,
		}),
		midtrans.WithLogger(logg),
	}
	if recorder != nil {
		opts = append(opts, midtrans.WithRecorder(recorder))
	}
	client, err := midtrans.NewClient(cfg.ServerKey, opts...)
	if err != nil {
		return nil, fmt.Errorf("midtrans client: %w", err)
	}
	return client, nil
}
