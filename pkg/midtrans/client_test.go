package midtrans

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	pkgerrors "github.com/artisancrate/billing-engine/pkg/errors"
)

type countingRecorder struct {
	results map[string]int
}

func (r *countingRecorder) GatewayCall(result string) {
	if r.results == nil {
		r.results = map[string]int{}
	}
	r.results[result]++
}

func sampleRequest() SnapRequest {
	return SnapRequest{
		TransactionDetails: TransactionDetails{OrderID: "INV-20240101-123456", GrossAmount: 120000},
		CustomerDetails:    &CustomerDetails{FirstName: "Dewi", Email: "dewi@example.com"},
		ItemDetails: []ItemDetail{{
			ID:       "PLAN-1",
			Price:    120000,
			Quantity: 1,
			Name:     "Single Origin Monthly",
		}},
	}
}

func TestNewClientRequiresServerKey(t *testing.T) {
	if _, err := NewClient("  "); err == nil {
		t.Fatal("expected error for empty server key")
	}
}

func TestCreateTransactionSuccess(t *testing.T) {
	var got SnapRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/snap/v1/transactions" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		wantAuth := "Basic " + base64.StdEncoding.EncodeToString([]byte("SB-server-key:"))
		if r.Header.Get("Authorization") != wantAuth {
			t.Errorf("unexpected authorization header %q", r.Header.Get("Authorization"))
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"token":"tok_123","redirect_url":"https://app.sandbox.midtrans.com/snap/v2/vtweb/tok_123"}`))
	}))
	defer server.Close()

	recorder := &countingRecorder{}
	client, err := NewClient("SB-server-key", WithBaseURL(server.URL), WithRecorder(recorder))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	resp, err := client.CreateTransaction(context.Background(), sampleRequest())
	if err != nil {
		t.Fatalf("create transaction: %v", err)
	}
	if resp.Token != "tok_123" || resp.RedirectURL == "" {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.TransactionDetails.OrderID != "INV-20240101-123456" || got.TransactionDetails.GrossAmount != 120000 {
		t.Fatalf("unexpected transaction details %+v", got.TransactionDetails)
	}
	if len(got.ItemDetails) != 1 || got.ItemDetails[0].Quantity != 1 {
		t.Fatalf("unexpected item details %+v", got.ItemDetails)
	}
	if recorder.results[ResultSuccess] != 1 {
		t.Fatalf("expected one success recorded, got %v", recorder.results)
	}
}

func TestCreateTransactionMapsFailures(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error_messages":["transaction_details.order_id has already been taken"]}`))
	}))
	defer server.Close()

	client, err := NewClient("SB-server-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	_, err = client.CreateTransaction(context.Background(), sampleRequest())
	if err == nil {
		t.Fatal("expected error")
	}
	if !pkgerrors.IsCode(err, pkgerrors.CodeDependency) {
		t.Fatalf("expected dependency error, got %v", err)
	}
	if pkgerrors.ReasonOf(err) != pkgerrors.ReasonPaymentGatewayError {
		t.Fatalf("expected payment gateway reason, got %q", pkgerrors.ReasonOf(err))
	}
}

func TestCreateTransactionBreakerOpensOnServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	recorder := &countingRecorder{}
	client, err := NewClient("SB-server-key",
		WithBaseURL(server.URL),
		WithRecorder(recorder),
		WithBreaker(BreakerSettings{ConsecutiveFailures: 2, OpenFor: time.Minute}),
	)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}

	for i := 0; i < 3; i++ {
		if _, err := client.CreateTransaction(context.Background(), sampleRequest()); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if atomic.LoadInt32(&hits) != 2 {
		t.Fatalf("expected breaker to stop the third request, server saw %d", hits)
	}
	if recorder.results[ResultError] != 2 || recorder.results[ResultBreakerOpen] != 1 {
		t.Fatalf("unexpected recorded results %v", recorder.results)
	}
}

func TestCreateTransactionClientErrorsDoNotTripBreaker(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client, err := NewClient("SB-server-key", WithBaseURL(server.URL), WithBreaker(BreakerSettings{ConsecutiveFailures: 1}))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	for i := 0; i < 3; i++ {
		_, _ = client.CreateTransaction(context.Background(), sampleRequest())
	}
	if atomic.LoadInt32(&hits) != 3 {
		t.Fatalf("expected every request to reach the server, got %d", hits)
	}
}

func TestCreateTransactionRejectsMissingRedirect(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"token":"tok"}`))
	}))
	defer server.Close()

	client, err := NewClient("SB-server-key", WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := client.CreateTransaction(context.Background(), sampleRequest()); err == nil {
		t.Fatal("expected error for response without redirect_url")
	}
}

func TestTruncateItemName(t *testing.T) {
	long := "Kopi Arabika Gayo Wine Process Limited Edition Subscription Box"
	if got := TruncateItemName(long); len([]rune(got)) != ItemNameLimit {
		t.Fatalf("expected %d runes, got %d", ItemNameLimit, len([]rune(got)))
	}
	if got := TruncateItemName("Teh Hijau"); got != "Teh Hijau" {
		t.Fatalf("short names must be untouched, got %q", got)
	}
}
