// Package payment creates gateway orders and verifies the HMAC signatures the
// gateway attaches to completed payments and webhook deliveries.
package payment

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"milaf-storefront/internal/domain"
)

const (
	serviceName  = "payment"
	snippetBytes = 200

	// SignatureHeader carries the webhook body signature.
	SignatureHeader = "X-Razorpay-Signature"
)

type Client struct {
	BaseURL       string
	KeyID         string
	KeySecret     string
	WebhookSecret string
	HTTP          *http.Client
	Logger        *zap.Logger
}

type createOrderRequest struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type createOrderResponse struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Status   string `json:"status"`
}

type errorResponse struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// PublicKey returns the key id the client-side checkout needs. The secret is
// never exposed.
func (c *Client) PublicKey() string {
	return c.KeyID
}

// CreateOrder registers a gateway order for amountMinor in the given currency.
func (c *Client) CreateOrder(ctx context.Context, amountMinor int64, currency, receipt string, notes map[string]string) (*domain.PaymentOrderHandle, error) {
	if amountMinor <= 0 {
		return nil, domain.Invalid("amount", "must be positive")
	}
	if currency == "" {
		return nil, domain.Invalid("currency", "required")
	}
	payload, err := json.Marshal(createOrderRequest{Amount: amountMinor, Currency: strings.ToUpper(currency), Receipt: receipt, Notes: notes})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, strings.TrimRight(c.BaseURL, "/")+"/v1/orders", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.KeyID, c.KeySecret)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		c.logger().Warn("gateway create order failed", zap.Error(err))
		return nil, &domain.UpstreamError{Service: serviceName, Message: err.Error(), Kind: domain.ErrUpstreamUnavailable}
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &domain.UpstreamError{Service: serviceName, Status: resp.StatusCode, Message: "read body: " + err.Error(), Kind: domain.ErrUpstreamUnavailable}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("gateway returned %d", resp.StatusCode)
		var er errorResponse
		if json.Unmarshal(body, &er) == nil && er.Error.Description != "" {
			msg = er.Error.Description
		}
		c.logger().Warn("gateway create order rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("body", domain.Snip(body, snippetBytes)),
		)
		return nil, &domain.UpstreamError{Service: serviceName, Status: resp.StatusCode, Message: msg, Snippet: domain.Snip(body, snippetBytes), Kind: domain.ErrUpstreamUnavailable}
	}

	var out createOrderResponse
	if err := json.Unmarshal(body, &out); err != nil || out.ID == "" {
		reason := "missing order id"
		if err != nil {
			reason = err.Error()
		}
		c.logger().Warn("gateway create order malformed", zap.String("body", domain.Snip(body, snippetBytes)))
		return nil, &domain.UpstreamError{Service: serviceName, Status: resp.StatusCode, Message: reason, Snippet: domain.Snip(body, snippetBytes), Kind: domain.ErrUpstreamMalformed}
	}
	if out.Currency == "" {
		out.Currency = strings.ToUpper(currency)
	}
	return &domain.PaymentOrderHandle{OrderID: out.ID, Amount: out.Amount, Currency: out.Currency}, nil
}

// VerifyPayment checks the signature returned to the client after payment.
func (c *Client) VerifyPayment(orderID, paymentID, signature string) error {
	switch {
	case orderID == "":
		return domain.Invalid("orderId", "required")
	case paymentID == "":
		return domain.Invalid("paymentId", "required")
	case signature == "":
		return domain.Invalid("signature", "required")
	}
	if !validSignature([]byte(c.KeySecret), []byte(orderID+"|"+paymentID), signature) {
		return domain.ErrSignatureMismatch
	}
	return nil
}

// VerifyWebhook checks the signature of a webhook delivery over the exact
// bytes received.
func (c *Client) VerifyWebhook(rawBody []byte, signature string) error {
	if signature == "" {
		return domain.Invalid(SignatureHeader, "required")
	}
	if !validSignature([]byte(c.WebhookSecret), rawBody, signature) {
		return domain.ErrSignatureMismatch
	}
	return nil
}

// Sign returns the hex HMAC-SHA256 of message under secret.
func Sign(secret, message []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(message)
	return hex.EncodeToString(mac.Sum(nil))
}

func validSignature(secret, message []byte, signature string) bool {
	if len(secret) == 0 {
		return false
	}
	expected := Sign(secret, message)
	return hmac.Equal([]byte(expected), []byte(strings.ToLower(strings.TrimSpace(signature))))
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return &http.Client{Timeout: 15 * time.Second}
}

func (c *Client) logger() *zap.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return zap.NewNop()
}
