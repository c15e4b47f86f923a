package payment

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"milaf-storefront/internal/domain"
)

func TestCreateOrder_SendsMinorUnits(t *testing.T) {
	var got createOrderRequest
	var user, pass string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/v1/orders" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		user, pass, _ = r.BasicAuth()
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"order_123","amount":2599,"currency":"AUD","status":"created"}`))
	}))
	defer srv.Close()

	c := &Client{BaseURL: srv.URL, KeyID: "rzp_test_key", KeySecret: "secret", HTTP: srv.Client()}
	handle, err := c.CreateOrder(context.Background(), 2599, "aud", "rcpt_1", map[string]string{"userId": "u1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if handle.OrderID != "order_123" || handle.Amount != 2599 || handle.Currency != "AUD" {
		t.Fatalf("unexpected handle %+v", handle)
	}
	if got.Amount != 2599 || got.Currency != "AUD" || got.Receipt != "rcpt_1" || got.Notes["userId"] != "u1" {
		t.Fatalf("unexpected request body %+v", got)
	}
	if user != "rzp_test_key" || pass != "secret" {
		t.Fatalf("unexpected basic auth %q:%q", user, pass)
	}
}

func TestCreateOrder_Failures(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   error
	}{
		"server error": {http.StatusInternalServerError, `{"error":{"code":"SERVER_ERROR","description":"try later"}}`, domain.ErrUpstreamUnavailable},
		"bad request":  {http.StatusBadRequest, `{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`, domain.ErrUpstreamUnavailable},
		"bad body":     {http.StatusOK, `not json`, domain.ErrUpstreamMalformed},
		"no id":        {http.StatusOK, `{"amount":100}`, domain.ErrUpstreamMalformed},
	}
	for name, tc := range cases {
		tc := tc
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
			_, _ = w.Write([]byte(tc.body))
		}))
		c := &Client{BaseURL: srv.URL, KeyID: "k", KeySecret: "s", HTTP: srv.Client()}
		_, err := c.CreateOrder(context.Background(), 100, "AUD", "r", nil)
		srv.Close()
		if !errors.Is(err, tc.want) {
			t.Fatalf("%s: expected %v, got %v", name, tc.want, err)
		}
	}

	c := &Client{BaseURL: "http://127.0.0.1:0"}
	if _, err := c.CreateOrder(context.Background(), 0, "AUD", "r", nil); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error for zero amount, got %v", err)
	}
}

func TestCreateOrder_TransportFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	c := &Client{BaseURL: srv.URL, HTTP: srv.Client()}
	srv.Close()
	if _, err := c.CreateOrder(context.Background(), 100, "AUD", "r", nil); !errors.Is(err, domain.ErrUpstreamUnavailable) {
		t.Fatalf("expected ErrUpstreamUnavailable, got %v", err)
	}
}

func TestVerifyPayment(t *testing.T) {
	c := &Client{KeySecret: "test_secret"}
	good := Sign([]byte("test_secret"), []byte("o1|p1"))

	if err := c.VerifyPayment("o1", "p1", good); err != nil {
		t.Fatalf("expected valid signature, got %v", err)
	}
	if err := c.VerifyPayment("o1", "p1", "deadbeef"); !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("expected ErrSignatureMismatch, got %v", err)
	}
	if err := c.VerifyPayment("o1", "p2", good); !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("signature must bind the payment id, got %v", err)
	}
	for _, args := range [][3]string{{"", "p1", good}, {"o1", "", good}, {"o1", "p1", ""}} {
		if err := c.VerifyPayment(args[0], args[1], args[2]); !errors.Is(err, domain.ErrValidation) {
			t.Fatalf("expected validation error for %v, got %v", args, err)
		}
	}
	if err := (&Client{}).VerifyPayment("o1", "p1", Sign(nil, []byte("o1|p1"))); !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("empty secret must never verify, got %v", err)
	}
}

func TestVerifyWebhook_UsesRawBytes(t *testing.T) {
	c := &Client{WebhookSecret: "whsec"}
	raw := []byte(`{"event":"payment.captured",  "payload":{}}`)
	sig := Sign([]byte("whsec"), raw)

	if err := c.VerifyWebhook(raw, sig); err != nil {
		t.Fatalf("expected valid webhook, got %v", err)
	}
	reserialized := []byte(`{"event":"payment.captured","payload":{}}`)
	if err := c.VerifyWebhook(reserialized, sig); !errors.Is(err, domain.ErrSignatureMismatch) {
		t.Fatalf("expected mismatch for re-serialized body, got %v", err)
	}
	if err := c.VerifyWebhook(raw, ""); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestPublicKey(t *testing.T) {
	c := &Client{KeyID: "rzp_test_key", KeySecret: "secret"}
	if c.PublicKey() != "rzp_test_key" {
		t.Fatalf("unexpected public key %q", c.PublicKey())
	}
}
