package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/artisancrate/billing-engine/internal/payments"
	"github.com/artisancrate/billing-engine/pkg/enums"
	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
	"github.com/artisancrate/billing-engine/pkg/midtrans"
)

const settlementBody = `{
  "order_id": "INV-20240101-123456",
  "status_code": "200",
  "gross_amount": "120000.00",
  "signature_key": "sig",
  "transaction_status": "settlement",
  "fraud_status": "accept",
  "transaction_time": "2024-01-01 10:30:00",
  "currency": "IDR"
}`

type fakeApplier struct {
	mu           sync.Mutex
	calls        int
	err          error
	outcome      *payments.Outcome
	authenticate func(midtrans.Notification) error
}

func (f *fakeApplier) Authenticate(_ context.Context, n midtrans.Notification) error {
	if f.authenticate == nil {
		return nil
	}
	return f.authenticate(n)
}

func (f *fakeApplier) ApplyNotification(_ context.Context, n midtrans.Notification) (*payments.Outcome, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.outcome, nil
}

func (f *fakeApplier) applied() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type inMemoryStore struct {
	mu   sync.Mutex
	keys map[string]struct{}
}

func newInMemoryStore() *inMemoryStore {
	return &inMemoryStore{keys: map[string]struct{}{}}
}

func (s *inMemoryStore) MarkOnce(_ context.Context, scope, id string, _ time.Duration) (bool, error) {
	key := scope + ":" + id
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false, nil
	}
	s.keys[key] = struct{}{}
	return true, nil
}

func (s *inMemoryStore) Unmark(_ context.Context, scope, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.keys, scope+":"+id)
	return nil
}

func newGuard(t *testing.T) *payments.ReplayGuard {
	t.Helper()
	guard, err := payments.NewReplayGuard(newInMemoryStore(), time.Hour, "midtrans")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	return guard
}

func post(handler http.Handler, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/midtrans", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestMidtransNotificationProcessesOnceAndAcksReplay(t *testing.T) {
	applier := &fakeApplier{outcome: &payments.Outcome{
		InvoiceID:      uuid.New(),
		InvoiceNumber:  "INV-20240101-123456",
		PreviousStatus: enums.InvoiceStatusPending,
		Status:         enums.InvoiceStatusPaid,
	}}
	handler := MidtransNotification(applier, newGuard(t), nil)

	rec := post(handler, settlementBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d (%s)", rec.Code, rec.Body.String())
	}
	var body struct {
		Data notificationAck `json:"data"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body.Data.Status != "processed" || body.Data.Outcome == nil || body.Data.Outcome.Status != enums.InvoiceStatusPaid {
		t.Fatalf("unexpected ack %+v", body.Data)
	}

	rec = post(handler, settlementBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 on replay, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `"duplicate"`) {
		t.Fatalf("expected duplicate ack, got %s", rec.Body.String())
	}
	if applier.calls != 1 {
		t.Fatalf("expected one application, got %d", applier.calls)
	}
}

func TestMidtransNotificationFailureAllowsRetry(t *testing.T) {
	applier := &fakeApplier{err: pkgerrors.Wrap(pkgerrors.CodeDependency, context.DeadlineExceeded, "save invoice")}
	handler := MidtransNotification(applier, newGuard(t), nil)

	rec := post(handler, settlementBody)
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}

	applier.err = nil
	rec = post(handler, settlementBody)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected retry to succeed, got %d", rec.Code)
	}
	if applier.calls != 2 {
		t.Fatalf("expected retry to reach the reconciler, got %d calls", applier.calls)
	}
	if !strings.Contains(rec.Body.String(), `"ignored"`) {
		t.Fatalf("expected ignored ack for unknown invoice, got %s", rec.Body.String())
	}
}

func rejectSignature(bad string) func(midtrans.Notification) error {
	return func(n midtrans.Notification) error {
		if n.SignatureKey == bad {
			return pkgerrors.InvalidSignature()
		}
		return nil
	}
}

func TestMidtransNotificationInvalidSignature(t *testing.T) {
	store := newInMemoryStore()
	guard, err := payments.NewReplayGuard(store, time.Hour, "midtrans")
	if err != nil {
		t.Fatalf("guard setup: %v", err)
	}
	applier := &fakeApplier{authenticate: rejectSignature("forged")}
	handler := MidtransNotification(applier, guard, nil)

	rec := post(handler, strings.Replace(settlementBody, `"sig"`, `"forged"`, 1))
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), string(pkgerrors.ReasonInvalidSignature)) {
		t.Fatalf("expected reason in body, got %s", rec.Body.String())
	}
	if applier.applied() != 0 {
		t.Fatal("unsigned notification must not reach the reconciler")
	}
	if len(store.keys) != 0 {
		t.Fatalf("unsigned notification must not mark the replay filter, got %v", store.keys)
	}
}

func TestMidtransNotificationForgedDeliveryDoesNotShadowGenuine(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	applier := &fakeApplier{
		outcome: &payments.Outcome{
			InvoiceID:      uuid.New(),
			InvoiceNumber:  "INV-20240101-123456",
			PreviousStatus: enums.InvoiceStatusPending,
			Status:         enums.InvoiceStatusPaid,
		},
		authenticate: func(n midtrans.Notification) error {
			if n.SignatureKey != "forged" {
				return nil
			}
			close(entered)
			<-release
			return pkgerrors.InvalidSignature()
		},
	}
	handler := MidtransNotification(applier, newGuard(t), nil)

	forged := make(chan int, 1)
	go func() {
		forged <- post(handler, strings.Replace(settlementBody, `"sig"`, `"forged"`, 1)).Code
	}()
	<-entered

	rec := post(handler, settlementBody)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"processed"`) {
		t.Fatalf("expected genuine notification to be processed, got %d (%s)", rec.Code, rec.Body.String())
	}
	close(release)
	if code := <-forged; code != http.StatusForbidden {
		t.Fatalf("expected forged notification to be rejected, got %d", code)
	}
	if applier.applied() != 1 {
		t.Fatalf("expected exactly the genuine notification to apply, got %d", applier.applied())
	}
}

func TestMidtransNotificationRejectsMalformedBody(t *testing.T) {
	applier := &fakeApplier{}
	handler := MidtransNotification(applier, nil, nil)

	rec := post(handler, `{"order_id":"INV-20240101-123456"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if applier.calls != 0 {
		t.Fatal("reconciler should not run for malformed payloads")
	}
}
