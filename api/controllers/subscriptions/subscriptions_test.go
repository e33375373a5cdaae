package subscriptions

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/api/middleware"
	"github.com/artisancrate/billing-engine/internal/subscriptions"
	"github.com/artisancrate/billing-engine/pkg/db/models"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/pagination"
)

type stubService struct {
	createInput subscriptions.CreateSubscriptionInput
	sub         *models.Subscription
	setStatus   enums.SubscriptionStatus
	listStatus  *enums.SubscriptionStatus
	cancelErr   error
}

func (s *stubService) Create(_ context.Context, input subscriptions.CreateSubscriptionInput) (*subscriptions.CreateResult, error) {
	s.createInput = input
	sub := &models.Subscription{
		ID:                uuid.New(),
		CustomerID:        input.CustomerID,
		PlanID:            input.PlanID,
		ShippingAddressID: input.ShippingAddressID,
		StartDate:         time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC),
		Status:            enums.SubscriptionStatusPendingInitialPayment,
		PaymentMethodType: input.PaymentMethodType,
	}
	invoice := &models.Invoice{
		ID:             uuid.New(),
		SubscriptionID: sub.ID,
		CustomerID:     input.CustomerID,
		InvoiceNumber:  "INV-20240201-000001",
		Amount:         120000,
		Currency:       enums.CurrencyIDR,
		Status:         enums.InvoiceStatusPending,
	}
	return &subscriptions.CreateResult{Subscription: sub, InitialInvoice: invoice}, nil
}

func (s *stubService) owned(customerID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	if s.sub == nil || s.sub.ID != subscriptionID || s.sub.CustomerID != customerID {
		return nil, pkgerrors.NotFound("subscription not found")
	}
	return s.sub, nil
}

func (s *stubService) Cancel(_ context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	if s.cancelErr != nil {
		return nil, s.cancelErr
	}
	sub, err := s.owned(customerID, subscriptionID)
	if err != nil {
		return nil, err
	}
	sub.Status = enums.SubscriptionStatusCancelled
	return sub, nil
}

func (s *stubService) Pause(_ context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.owned(customerID, subscriptionID)
	if err != nil {
		return nil, err
	}
	sub.Status = enums.SubscriptionStatusPaused
	return sub, nil
}

func (s *stubService) Resume(_ context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	sub, err := s.owned(customerID, subscriptionID)
	if err != nil {
		return nil, err
	}
	sub.Status = enums.SubscriptionStatusActive
	return sub, nil
}

func (s *stubService) AdminSetStatus(_ context.Context, subscriptionID uuid.UUID, status enums.SubscriptionStatus) (*models.Subscription, error) {
	if s.sub == nil || s.sub.ID != subscriptionID {
		return nil, pkgerrors.NotFound("subscription not found")
	}
	s.setStatus = status
	s.sub.Status = status
	return s.sub, nil
}

func (s *stubService) Get(_ context.Context, customerID, subscriptionID uuid.UUID) (*models.Subscription, error) {
	return s.owned(customerID, subscriptionID)
}

func (s *stubService) ListForCustomer(_ context.Context, _ uuid.UUID, _ pagination.Params) (*subscriptions.SubscriptionList, error) {
	return &subscriptions.SubscriptionList{Subscriptions: []models.Subscription{*s.sub}}, nil
}

func (s *stubService) ListAll(_ context.Context, status *enums.SubscriptionStatus, _ pagination.Params) (*subscriptions.SubscriptionList, error) {
	s.listStatus = status
	return &subscriptions.SubscriptionList{Subscriptions: []models.Subscription{*s.sub}}, nil
}

func newRouter(userID uuid.UUID, svc subscriptions.Service) http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			next.ServeHTTP(w, req.WithContext(middleware.WithUserID(req.Context(), userID.String())))
		})
	})
	r.Post("/subscriptions", Create(svc, nil))
	r.Get("/subscriptions", List(svc, nil))
	r.Get("/subscriptions/{subscriptionId}", Get(svc, nil))
	r.Post("/subscriptions/{subscriptionId}/cancel", Cancel(svc, nil))
	r.Post("/subscriptions/{subscriptionId}/pause", Pause(svc, nil))
	r.Post("/subscriptions/{subscriptionId}/resume", Resume(svc, nil))
	r.Get("/admin/subscriptions", AdminList(svc, nil))
	r.Patch("/admin/subscriptions/{subscriptionId}/status", AdminSetStatus(svc, nil))
	return r
}

func activeSubscription(customerID uuid.UUID) *models.Subscription {
	return &models.Subscription{
		ID:                uuid.New(),
		CustomerID:        customerID,
		PlanID:            uuid.New(),
		ShippingAddressID: uuid.New(),
		StartDate:         time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		BillingPeriod:     enums.BillingPeriodMonthly,
		BillingInterval:   1,
		Status:            enums.SubscriptionStatusActive,
		PaymentMethodType: enums.PaymentMethodTypeManualPaymentLink,
	}
}

func TestCreateReturnsSubscriptionAndInitialInvoice(t *testing.T) {
	customer := uuid.New()
	svc := &stubService{}
	router := newRouter(customer, svc)

	planID := uuid.New()
	body, _ := json.Marshal(map[string]string{
		"subscription_plan_id": planID.String(),
		"shipping_address_id":  uuid.NewString(),
		"payment_method_type":  "manual_payment_link",
	})
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(body)))
	if rec.Code != http.StatusCreated {
		t.Fatalf("expected 201 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.createInput.CustomerID != customer || svc.createInput.PlanID != planID {
		t.Fatalf("unexpected input %+v", svc.createInput)
	}

	var resp struct {
		Data struct {
			Subscription   map[string]any `json:"subscription"`
			InitialInvoice map[string]any `json:"initial_invoice"`
		} `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Data.Subscription["status"] != string(enums.SubscriptionStatusPendingInitialPayment) {
		t.Fatalf("unexpected subscription %v", resp.Data.Subscription)
	}
	if resp.Data.InitialInvoice["invoice_number"] != "INV-20240201-000001" {
		t.Fatalf("unexpected invoice %v", resp.Data.InitialInvoice)
	}
}

func TestCreateRejectsInvalidBody(t *testing.T) {
	router := newRouter(uuid.New(), &stubService{})

	cases := map[string]map[string]string{
		"missing plan": {
			"shipping_address_id": uuid.NewString(),
			"payment_method_type": "manual_payment_link",
		},
		"bad method": {
			"subscription_plan_id": uuid.NewString(),
			"shipping_address_id":  uuid.NewString(),
			"payment_method_type":  "cash",
		},
	}
	for name, payload := range cases {
		t.Run(name, func(t *testing.T) {
			body, _ := json.Marshal(payload)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subscriptions", bytes.NewReader(body)))
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("expected 400 got %d", rec.Code)
			}
		})
	}
}

func TestLifecycleActions(t *testing.T) {
	customer := uuid.New()
	sub := activeSubscription(customer)
	svc := &stubService{sub: sub}
	router := newRouter(customer, svc)

	for action, want := range map[string]enums.SubscriptionStatus{
		"pause":  enums.SubscriptionStatusPaused,
		"resume": enums.SubscriptionStatusActive,
		"cancel": enums.SubscriptionStatusCancelled,
	} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subscriptions/"+sub.ID.String()+"/"+action, nil))
		if rec.Code != http.StatusOK {
			t.Fatalf("%s: expected 200 got %d", action, rec.Code)
		}
		var resp struct {
			Data struct {
				Status string `json:"status"`
			} `json:"data"`
		}
		if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if resp.Data.Status != string(want) {
			t.Fatalf("%s: expected %s got %s", action, want, resp.Data.Status)
		}
	}
}

func TestCancelMapsInvalidTransition(t *testing.T) {
	customer := uuid.New()
	sub := activeSubscription(customer)
	svc := &stubService{sub: sub, cancelErr: pkgerrors.InvalidTransition(pkgerrors.ReasonSubscriptionTerminated, "subscription is already cancelled")}
	router := newRouter(customer, svc)

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/subscriptions/"+sub.ID.String()+"/cancel", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422 got %d", rec.Code)
	}
}

func TestGetHidesForeignSubscription(t *testing.T) {
	sub := activeSubscription(uuid.New())
	router := newRouter(uuid.New(), &stubService{sub: sub})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscriptions/"+sub.ID.String(), nil))
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/subscriptions/not-a-uuid", nil))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}
}

func TestAdminSetStatusAndList(t *testing.T) {
	sub := activeSubscription(uuid.New())
	svc := &stubService{sub: sub}
	router := newRouter(uuid.New(), svc)

	body := bytes.NewBufferString(`{"status":"paused"}`)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/subscriptions/"+sub.ID.String()+"/status", body))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d (%s)", rec.Code, rec.Body.String())
	}
	if svc.setStatus != enums.SubscriptionStatusPaused {
		t.Fatalf("expected paused got %s", svc.setStatus)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPatch, "/admin/subscriptions/"+sub.ID.String()+"/status", bytes.NewBufferString(`{"status":"frozen"}`)))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/admin/subscriptions?status=active", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	if svc.listStatus == nil || *svc.listStatus != enums.SubscriptionStatusActive {
		t.Fatalf("unexpected status filter %v", svc.listStatus)
	}
}
