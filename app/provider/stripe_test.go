package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

func cardInput() *InitializeInput {
	return &InitializeInput{
		TxRef:    "chk-1",
		Intent:   entity.IntentTuition,
		Amount:   decimal.NewFromInt(10),
		Currency: "USD",
		Customer: Customer{
			StudentID: 42,
			FirstName: "Abebe",
			LastName:  "Kebede",
			Email:     "abebe@example.com",
		},
		RequestedMonths: []string{"2024-09"},
		ReturnURL:       "https://school.example/payments/return",
		CallbackURL:     "https://school.example/payments/callback",
	}
}

func requireGatewayError(t *testing.T, err error, kind ErrorKind, reason string) *GatewayError {
	t.Helper()
	var gwErr *GatewayError
	if !errors.As(err, &gwErr) {
		t.Fatalf("expected gateway error, got %v", err)
	}
	if gwErr.Kind != kind {
		t.Fatalf("expected kind %s, got %s", kind, gwErr.Kind)
	}
	if gwErr.Reason != reason {
		t.Fatalf("expected reason %q, got %q", reason, gwErr.Reason)
	}
	return gwErr
}

func TestStripeInitializeBuildsSession(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/checkout/sessions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk_test" {
			t.Errorf("unexpected authorization %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		if got := r.PostForm.Get("line_items[0][price_data][unit_amount]"); got != "1000" {
			t.Errorf("unexpected unit amount %q", got)
		}
		if got := r.PostForm.Get("line_items[0][price_data][currency]"); got != "usd" {
			t.Errorf("unexpected currency %q", got)
		}
		if got := r.PostForm.Get("success_url"); got != "https://school.example/payments/return?tx_ref=chk-1&session_id={CHECKOUT_SESSION_ID}" {
			t.Errorf("unexpected success url %q", got)
		}
		if got := r.PostForm.Get("cancel_url"); !strings.HasSuffix(got, "status=cancelled") {
			t.Errorf("unexpected cancel url %q", got)
		}
		if got := r.PostForm.Get("metadata[tx_ref]"); got != "chk-1" {
			t.Errorf("unexpected metadata tx_ref %q", got)
		}
		if got := r.PostForm.Get("line_items[0][price_data][product_data][metadata][transactionReference]"); got != "chk-1" {
			t.Errorf("unexpected line item reference %q", got)
		}
		if got := r.PostForm.Get("metadata[callback_url]"); got != "https://school.example/payments/callback" {
			t.Errorf("unexpected callback url %q", got)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"cs_test_1","url":"https://checkout.stripe.com/c/pay/cs_test_1"}`))
	}))
	defer server.Close()

	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})
	out, err := p.Initialize(context.Background(), cardInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.CheckoutURL != "https://checkout.stripe.com/c/pay/cs_test_1" {
		t.Fatalf("unexpected checkout url %q", out.CheckoutURL)
	}
	if out.SessionID != "cs_test_1" {
		t.Fatalf("unexpected session id %q", out.SessionID)
	}
}

func TestStripeInitializeZeroDecimalCurrency(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if got := r.PostForm.Get("line_items[0][price_data][unit_amount]"); got != "10" {
			t.Errorf("unexpected unit amount %q", got)
		}
		_, _ = w.Write([]byte(`{"id":"cs_2","url":"https://checkout.stripe.com/c/pay/cs_2"}`))
	}))
	defer server.Close()

	input := cardInput()
	input.Currency = "JPY"
	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})
	if _, err := p.Initialize(context.Background(), input); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStripeInitializeForwardsInvalidRequestMessage(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Amount must be at least 50 cents"}}`))
	}))
	defer server.Close()

	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})
	_, err := p.Initialize(context.Background(), cardInput())
	gwErr := requireGatewayError(t, err, KindRejection, "")
	if gwErr.Message != "Amount must be at least 50 cents" {
		t.Fatalf("unexpected message %q", gwErr.Message)
	}
	if gwErr.HTTPStatus != http.StatusBadRequest {
		t.Fatalf("unexpected status %d", gwErr.HTTPStatus)
	}
}

func TestStripeInitializeUnauthorizedIsConfiguration(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error":{"type":"invalid_request_error","message":"Invalid API Key provided"}}`))
	}))
	defer server.Close()

	p := NewStripeProvider(StripeConfig{SecretKey: "sk_bad", APIBaseURL: server.URL})
	_, err := p.Initialize(context.Background(), cardInput())
	requireGatewayError(t, err, KindConfiguration, "")
}

func TestStripeInitializeMissingURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":"cs_3","url":null}`))
	}))
	defer server.Close()

	p := NewStripeProvider(StripeConfig{SecretKey: "sk_test", APIBaseURL: server.URL})
	_, err := p.Initialize(context.Background(), cardInput())
	requireGatewayError(t, err, KindProtocol, ReasonEmptyCheckoutURL)
}

func TestStripeCheckConfiguration(t *testing.T) {
	p := NewStripeProvider(StripeConfig{})
	requireGatewayError(t, p.CheckConfiguration(), KindConfiguration, "")

	_, err := p.Initialize(context.Background(), cardInput())
	requireGatewayError(t, err, KindConfiguration, "")
}

func TestDescribePurchase(t *testing.T) {
	input := cardInput()
	input.RequestedMonths = []string{"2024-09", " ", "2024-10"}
	if got := describePurchase(input); got != "Tuition - Abebe Kebede (2024-09, 2024-10)" {
		t.Fatalf("unexpected description %q", got)
	}

	input.Intent = entity.IntentDeposit
	input.RequestedMonths = nil
	input.Customer = Customer{}
	if got := describePurchase(input); got != "Deposit" {
		t.Fatalf("unexpected description %q", got)
	}
}

func TestExcerptTruncates(t *testing.T) {
	long := strings.Repeat("a", 600)
	if got := excerpt([]byte(long)); len(got) != maxExcerptBytes {
		t.Fatalf("expected %d bytes, got %d", maxExcerptBytes, len(got))
	}
	if got := excerpt([]byte("  short  ")); got != "short" {
		t.Fatalf("unexpected excerpt %q", got)
	}
}
