package provider

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/vibast-solutions/ms-go-checkout/app/entity"
)

func mobileMoneyInput() *InitializeInput {
	return &InitializeInput{
		TxRef:    "chk-mm-1",
		Intent:   entity.IntentTuition,
		Amount:   decimal.NewFromInt(500),
		Currency: "ETB",
		Customer: Customer{
			StudentID: 42,
			FirstName: "Abebe",
			LastName:  "Kebede",
			Phone:     "+251 911-223-344",
		},
		RequestedMonths: []string{"2024-09"},
		ReturnURL:       "https://school.example/payments/return",
		CallbackURL:     "https://school.example/payments/callback",
	}
}

func newChapaServer(t *testing.T, status int, contentType, body string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if contentType != "" {
			w.Header().Set("Content-Type", contentType)
		}
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
}

func TestChapaInitializeSendsNormalizedRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/transaction/initialize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer CHASECK_TEST-1" {
			t.Errorf("unexpected authorization %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		expected := map[string]string{
			"amount":       "500.00",
			"currency":     "ETB",
			"tx_ref":       "chk-mm-1",
			"phone_number": "911223344",
			"first_name":   "Abebe",
			"last_name":    "Kebede",
			"return_url":   "https://school.example/payments/return?tx_ref=chk-mm-1",
			"meta[intent]": "tuition",
		}
		for key, want := range expected {
			if got := r.PostForm.Get(key); got != want {
				t.Errorf("field %s: expected %q, got %q", key, want, got)
			}
		}
		if _, ok := r.PostForm["callback_url"]; ok {
			t.Errorf("callback_url must not be sent")
		}
		if got := r.PostForm.Get("customization[description]"); got != "Tuition - Abebe Kebede 2024-09" {
			t.Errorf("unexpected description %q", got)
		}
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		_, _ = w.Write([]byte(`{"message":"Hosted Link","status":"success","data":{"checkout_url":"https://checkout.chapa.co/checkout/payment/abc123"}}`))
	}))
	defer server.Close()

	p := NewChapaProvider(ChapaConfig{SecretKey: "  bearer  CHASECK_TEST-1 ", APIBaseURL: server.URL})
	out, err := p.Initialize(context.Background(), mobileMoneyInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.CheckoutURL != "https://checkout.chapa.co/checkout/payment/abc123" {
		t.Fatalf("unexpected checkout url %q", out.CheckoutURL)
	}
	if out.Salvaged {
		t.Fatalf("expected a regular response")
	}
}

func TestChapaRejectsAnomalousCheckoutURL(t *testing.T) {
	server := newChapaServer(t, http.StatusOK, "application/json",
		`{"status":"success","message":"Hosted Link","data":{"checkout_url":"https://checkout.chapa.co/payment-error?code=1"}}`)
	defer server.Close()

	p := NewChapaProvider(ChapaConfig{SecretKey: "key", APIBaseURL: server.URL})
	_, err := p.Initialize(context.Background(), mobileMoneyInput())
	requireGatewayError(t, err, KindProtocol, ReasonAnomalousCheckoutURL)
}

func TestChapaSalvagesURLFromHTMLSuccess(t *testing.T) {
	server := newChapaServer(t, http.StatusOK, "text/html",
		`<html><body><a href="https://checkout.chapa.co/checkout/payment/xyz-789">Continue</a></body></html>`)
	defer server.Close()

	p := NewChapaProvider(ChapaConfig{SecretKey: "key", APIBaseURL: server.URL})
	out, err := p.Initialize(context.Background(), mobileMoneyInput())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out.CheckoutURL != "https://checkout.chapa.co/checkout/payment/xyz-789" || !out.Salvaged {
		t.Fatalf("unexpected output %+v", out)
	}
}

func TestChapaSalvagesURLOnAnyCheckoutHost(t *testing.T) {
	cases := []string{
		"https://checkout.sandbox.chapa.co/checkout/payment/sbx-1",
		"https://checkout.chapa.et/checkout/payment/Et_42",
	}
	for _, want := range cases {
		server := newChapaServer(t, http.StatusOK, "text/html",
			`<html><body><script>window.location="`+want+`";</script></body></html>`)

		p := NewChapaProvider(ChapaConfig{SecretKey: "key", APIBaseURL: server.URL})
		out, err := p.Initialize(context.Background(), mobileMoneyInput())
		server.Close()
		if err != nil {
			t.Fatalf("%s: unexpected error: %v", want, err)
		}
		if out.CheckoutURL != want || !out.Salvaged {
			t.Fatalf("%s: unexpected output %+v", want, out)
		}
	}
}

func TestChapaHTMLSuccessWithoutURL(t *testing.T) {
	server := newChapaServer(t, http.StatusOK, "text/html", `<html><body>Something went wrong</body></html>`)
	defer server.Close()

	p := NewChapaProvider(ChapaConfig{SecretKey: "key", APIBaseURL: server.URL})
	_, err := p.Initialize(context.Background(), mobileMoneyInput())
	gwErr := requireGatewayError(t, err, KindProtocol, ReasonNonJSONBody)
	if gwErr.Excerpt == "" {
		t.Fatalf("expected excerpt")
	}
}

func TestChapaNonJSONFailure(t *testing.T) {
	server := newChapaServer(t, http.StatusBadGateway, "text/html", `<html>bad gateway</html>`)
	defer server.Close()

	p := NewChapaProvider(ChapaConfig{SecretKey: "key", APIBaseURL: server.URL})
	_, err := p.Initialize(context.Background(), mobileMoneyInput())
	requireGatewayError(t, err, KindProtocol, ReasonNonJSONBody)
}

func TestChapaFlattensFieldErrors(t *testing.T) {
	server := newChapaServer(t, http.StatusBadRequest, "application/json",
		`{"status":"failed","message":{"phone_number":["The phone number must be 10 digits"],"amount":["The amount must be numeric"]},"data":null}`)
	defer server.Close()

	p := NewChapaProvider(ChapaConfig{SecretKey: "key", APIBaseURL: server.URL})
	_, err := p.Initialize(context.Background(), mobileMoneyInput())
	gwErr := requireGatewayError(t, err, KindRejection, "")
	want := "amount: The amount must be numeric; phone_number: The phone number must be 10 digits"
	if gwErr.Message != want {
		t.Fatalf("expected %q, got %q", want, gwErr.Message)
	}
}

func TestChapaFailedStatusOnSuccessResponse(t *testing.T) {
	server := newChapaServer(t, http.StatusOK, "application/json", `{"status":"failed","message":"Invalid currency","data":null}`)
	defer server.Close()

	p := NewChapaProvider(ChapaConfig{SecretKey: "key", APIBaseURL: server.URL})
	_, err := p.Initialize(context.Background(), mobileMoneyInput())
	gwErr := requireGatewayError(t, err, KindRejection, "")
	if gwErr.Message != "Invalid currency" {
		t.Fatalf("unexpected message %q", gwErr.Message)
	}
}

func TestChapaMissingCheckoutURL(t *testing.T) {
	server := newChapaServer(t, http.StatusOK, "text/plain", `{"status":"success","message":"ok","data":{}}`)
	defer server.Close()

	p := NewChapaProvider(ChapaConfig{SecretKey: "key", APIBaseURL: server.URL})
	_, err := p.Initialize(context.Background(), mobileMoneyInput())
	requireGatewayError(t, err, KindProtocol, ReasonEmptyCheckoutURL)
}

func TestChapaCheckConfiguration(t *testing.T) {
	p := NewChapaProvider(ChapaConfig{SecretKey: "Bearer "})
	requireGatewayError(t, p.CheckConfiguration(), KindConfiguration, "")
	if p.Code() != entity.ProviderMobileMoney {
		t.Fatalf("unexpected code %d", p.Code())
	}
}

func TestAuthorizationValue(t *testing.T) {
	cases := map[string]string{
		"abc":             "abc",
		"Bearer abc":      "abc",
		"  BEARER   abc ": "abc",
		"bearerabc":       "bearerabc",
	}
	for in, want := range cases {
		if got := authorizationValue(in); got != want {
			t.Fatalf("authorizationValue(%q): expected %q, got %q", in, want, got)
		}
	}
}
